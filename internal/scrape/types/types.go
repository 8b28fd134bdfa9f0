package types

import (
	"context"

	"leadgen-engine/internal/domain"
)

type ScrapeResult struct {
	Source   string
	Postings []domain.Posting
}

// Fetcher is one posting source. Implementations must deduplicate their own
// output by URL before returning; a fresh Fetch re-scans from the start.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, keywords []string) (ScrapeResult, error)
}
