package scrape

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/scrape/types"
	"leadgen-engine/internal/scrape/util"
)

// ErrTotalSourceFailure means every adapter failed and nothing was scraped.
// An empty-but-healthy run (all adapters returned zero postings without
// error) is not this; that's just a quiet day.
var ErrTotalSourceFailure = errors.New("all sources failed to produce postings")

// Collect fans in every configured source in parallel, merges the results,
// and union-deduplicates across sources by identity and by canonical URL.
// One source failing is recorded in stats and does not cancel its siblings.
func Collect(ctx context.Context, fetchers []types.Fetcher, keywords []string, perSourceTimeout time.Duration, stats *domain.RunStats) ([]domain.Posting, error) {
	var g errgroup.Group
	results := make([]types.ScrapeResult, len(fetchers))
	failures := make([]error, len(fetchers))

	for i, f := range fetchers {
		i, f := i, f
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, perSourceTimeout)
			defer cancel()

			log.Printf("[collect] running source=%s", f.Name())
			res, err := f.Fetch(fctx, keywords)
			if err != nil {
				log.Printf("[collect:%s] error: %v", f.Name(), err)
				failures[i] = err
				return nil // best-effort: don't cancel siblings
			}
			results[i] = res
			return nil
		})
	}

	_ = g.Wait()

	for i, f := range fetchers {
		if failures[i] != nil {
			stats.SourceFailures[f.Name()] = failures[i].Error()
		}
	}

	var merged []domain.Posting
	seenKey := map[string]bool{}
	seenURL := map[string]bool{}

	// Merge in fetcher-declaration order, not goroutine-completion order, so
	// a cross-source duplicate is always charged to the same source and the
	// same identity lands in the ledger on every run.
	for i, res := range results {
		if failures[i] != nil {
			continue
		}
		kept := 0
		for _, p := range res.Postings {
			stats.PostingsScraped++
			urlKey := util.CanonicalizeURL(p.URL)
			if seenKey[p.Key()] || (urlKey != "" && seenURL[urlKey]) {
				stats.CrossSourceDedup++
				continue
			}
			seenKey[p.Key()] = true
			if urlKey != "" {
				seenURL[urlKey] = true
			}
			merged = append(merged, p)
			kept++
		}
		stats.PostingsBySource[fetchers[i].Name()] = kept
		log.Printf("[collect] source=%s scraped=%d kept=%d", fetchers[i].Name(), len(res.Postings), kept)
	}

	// Zero postings with at least one raised adapter is an ambiguous total
	// outage; surface it instead of silently reporting an empty run.
	if len(merged) == 0 && len(stats.SourceFailures) > 0 {
		return nil, fmt.Errorf("%w: %d source(s) raised", ErrTotalSourceFailure, len(stats.SourceFailures))
	}

	return merged, nil
}
