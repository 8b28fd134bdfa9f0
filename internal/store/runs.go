package store

import (
	"context"
	"fmt"
	"time"

	"leadgen-engine/internal/domain"
)

// InsertRun opens a pipeline_runs row and returns its id.
func (d *DB) InsertRun(ctx context.Context) (int64, error) {
	res, err := d.Pool.ExecContext(ctx,
		`INSERT INTO pipeline_runs(started_at, status) VALUES(?, 'running');`,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("ledger: insert run: %w", err)
	}
	return res.LastInsertId()
}

// FinishRun writes the final status and stats snapshot for a run.
func (d *DB) FinishRun(ctx context.Context, runID int64, status string, stats *domain.RunStats, errMsg string) error {
	_, err := d.Pool.ExecContext(ctx, `
UPDATE pipeline_runs SET
  finished_at = ?,
  status = ?,
  postings_scraped = ?,
  postings_new = ?,
  postings_deduped = ?,
  registry_matches = ?,
  domains_resolved = ?,
  prospects_found = ?,
  emails_verified = ?,
  contacts_stored = ?,
  entity_failures = ?,
  error_message = ?
WHERE id = ?;`,
		time.Now().UTC().Format(time.RFC3339),
		status,
		stats.PostingsScraped,
		stats.PostingsNew,
		stats.PostingsDeduped,
		stats.RegistryMatches,
		stats.DomainsResolved,
		stats.ProspectsFound,
		stats.EmailsVerified,
		stats.ContactsStored,
		stats.EntityFailures,
		errMsg,
		runID,
	)
	if err != nil {
		return fmt.Errorf("ledger: finish run %d: %w", runID, err)
	}
	return nil
}
