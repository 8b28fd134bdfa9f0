package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"leadgen-engine/internal/domain"
)

// Ledger is the authoritative record of previously-seen postings and
// contacts. Record on an existing key is a no-op success; re-running the
// pipeline on identical input is always safe.

func (d *DB) PostingExists(ctx context.Context, source, externalID string) (bool, error) {
	var one int
	err := d.Pool.QueryRowContext(ctx,
		`SELECT 1 FROM postings WHERE source = ? AND external_id = ? LIMIT 1;`,
		source, externalID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger: posting exists: %w", err)
	}
	return true, nil
}

// RecordPosting inserts a posting if its (source, external_id) identity is
// unseen. Returns whether a row was inserted and the row id either way.
func (d *DB) RecordPosting(ctx context.Context, p domain.Posting) (bool, int64, error) {
	var postedAt any
	if p.PostedAt != nil && !p.PostedAt.IsZero() {
		postedAt = p.PostedAt.UTC().Format(time.RFC3339)
	}
	discovered := p.DiscoveredAt
	if discovered.IsZero() {
		discovered = time.Now().UTC()
	}

	res, err := d.Pool.ExecContext(ctx, `
INSERT OR IGNORE INTO postings(source, external_id, title, company_name, company_domain, org_number, location, url, keyword_matched, posted_at, discovered_at)
VALUES(?,?,?,?,?,?,?,?,?,?,?);`,
		p.Source,
		p.ExternalID,
		p.Title,
		p.CompanyName,
		p.CompanyDomain,
		p.OrgNumber,
		p.LocationRaw,
		p.URL,
		p.KeywordMatched,
		postedAt,
		discovered.Format(time.RFC3339),
	)
	if err != nil {
		return false, 0, fmt.Errorf("ledger: record posting %s: %w", p.Key(), err)
	}

	n, _ := res.RowsAffected()
	if n > 0 {
		id, _ := res.LastInsertId()
		return true, id, nil
	}

	var id int64
	err = d.Pool.QueryRowContext(ctx,
		`SELECT id FROM postings WHERE source = ? AND external_id = ?;`,
		p.Source, p.ExternalID,
	).Scan(&id)
	if err != nil {
		return false, 0, fmt.Errorf("ledger: find existing posting %s: %w", p.Key(), err)
	}
	return false, id, nil
}

// UpdatePostingEnrichment backfills domain and org number on a stored posting.
func (d *DB) UpdatePostingEnrichment(ctx context.Context, postingID int64, companyDomain, orgNumber string) error {
	_, err := d.Pool.ExecContext(ctx, `
UPDATE postings SET company_domain = ?, org_number = ? WHERE id = ?;`,
		companyDomain, orgNumber, postingID)
	if err != nil {
		return fmt.Errorf("ledger: update posting %d: %w", postingID, err)
	}
	return nil
}

func (d *DB) ContactExists(ctx context.Context, email string) (bool, error) {
	p := domain.Prospect{Email: email}
	var one int
	err := d.Pool.QueryRowContext(ctx,
		`SELECT 1 FROM prospects WHERE email = ? LIMIT 1;`,
		p.NormalizedEmail(),
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger: contact exists: %w", err)
	}
	return true, nil
}

// RecordProspect inserts a contact keyed by normalized email. Duplicate
// emails are a no-op success, never an error.
func (d *DB) RecordProspect(ctx context.Context, postingID int64, p domain.Prospect) (bool, error) {
	res, err := d.Pool.ExecContext(ctx, `
INSERT OR IGNORE INTO prospects(posting_id, email, first_name, last_name, full_name, position, company_name, company_domain, org_number, verification, discovered_via, linkedin_url, created_at)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?);`,
		postingID,
		p.NormalizedEmail(),
		p.FirstName,
		p.LastName,
		p.FullName,
		p.Position,
		p.CompanyName,
		p.CompanyDomain,
		p.OrgNumber,
		p.Verification,
		p.DiscoveredVia,
		p.LinkedInURL,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("ledger: record prospect %s: %w", p.NormalizedEmail(), err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// UpsertCompany stores or refreshes a registry-resolved company keyed by its
// organization number.
func (d *DB) UpsertCompany(ctx context.Context, co domain.Company) error {
	if co.OrgNumber == "" {
		return nil
	}
	officers, _ := json.Marshal(co.Officers)

	_, err := d.Pool.ExecContext(ctx, `
INSERT INTO companies(org_number, name, website, employee_count, legal_form, officers, created_at)
VALUES(?,?,?,?,?,?,?)
ON CONFLICT(org_number) DO UPDATE SET
  name = excluded.name,
  website = excluded.website,
  employee_count = excluded.employee_count,
  legal_form = excluded.legal_form,
  officers = excluded.officers;
`,
		co.OrgNumber,
		co.Name,
		co.Website,
		co.EmployeeCount,
		co.LegalForm,
		string(officers),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("ledger: upsert company %s: %w", co.OrgNumber, err)
	}
	return nil
}

// CompanyByName checks the local companies table before any registry call.
func (d *DB) CompanyByName(ctx context.Context, name string) (*domain.Company, error) {
	var co domain.Company
	var officersJSON string
	err := d.Pool.QueryRowContext(ctx, `
SELECT org_number, name, website, employee_count, legal_form, officers
FROM companies WHERE LOWER(name) = LOWER(?) LIMIT 1;`,
		name,
	).Scan(&co.OrgNumber, &co.Name, &co.Website, &co.EmployeeCount, &co.LegalForm, &officersJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: company by name: %w", err)
	}
	_ = json.Unmarshal([]byte(officersJSON), &co.Officers)
	return &co, nil
}
