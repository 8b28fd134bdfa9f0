package scrape

import (
	"context"
	"errors"
	"testing"
	"time"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/scrape/types"
)

type stubFetcher struct {
	name     string
	postings []domain.Posting
	err      error
	delay    time.Duration
}

func (f *stubFetcher) Name() string { return f.name }

func (f *stubFetcher) Fetch(ctx context.Context, keywords []string) (types.ScrapeResult, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return types.ScrapeResult{Source: f.name}, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return types.ScrapeResult{Source: f.name}, f.err
	}
	return types.ScrapeResult{Source: f.name, Postings: f.postings}, nil
}

func TestCollectMergesAndDedupsAcrossSources(t *testing.T) {
	stats := domain.NewRunStats()
	fetchers := []types.Fetcher{
		&stubFetcher{name: "finn", postings: []domain.Posting{
			{Source: "finn", ExternalID: "1", URL: "https://www.finn.no/job/ad/1?utm_source=x"},
			{Source: "finn", ExternalID: "2", URL: "https://www.finn.no/job/ad/2"},
		}},
		&stubFetcher{name: "nav", postings: []domain.Posting{
			{Source: "nav", ExternalID: "a", URL: "https://arbeidsplassen.nav.no/stillinger/stilling/a"},
			// Same ad as finn:1, tracked URL variant.
			{Source: "nav", ExternalID: "b", URL: "HTTPS://www.finn.no/job/ad/1"},
		}},
	}

	merged, err := Collect(context.Background(), fetchers, []string{"utvikler"}, 5*time.Second, stats)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(merged) != 3 {
		t.Fatalf("merged = %d postings, want 3", len(merged))
	}
	if stats.PostingsScraped != 4 {
		t.Errorf("PostingsScraped = %d, want 4", stats.PostingsScraped)
	}
	if stats.CrossSourceDedup != 1 {
		t.Errorf("CrossSourceDedup = %d, want 1", stats.CrossSourceDedup)
	}
	// The merge runs in fetcher-declaration order, so the duplicate is always
	// charged to the later source and finn's identity is the one kept.
	if stats.PostingsBySource["finn"] != 2 {
		t.Errorf("finn kept = %d, want 2", stats.PostingsBySource["finn"])
	}
	if stats.PostingsBySource["nav"] != 1 {
		t.Errorf("nav kept = %d, want 1", stats.PostingsBySource["nav"])
	}
	for i, want := range []string{"finn:1", "finn:2", "nav:a"} {
		if merged[i].Key() != want {
			t.Errorf("merged[%d] = %s, want %s", i, merged[i].Key(), want)
		}
	}
}

// Slow and fast sources finish in either order; the winner of a cross-source
// duplicate must not depend on which one drains first.
func TestCollectMergeOrderIsStable(t *testing.T) {
	dupURL := "https://www.finn.no/job/ad/9"
	for run := 0; run < 3; run++ {
		stats := domain.NewRunStats()
		fetchers := []types.Fetcher{
			&stubFetcher{name: "finn", delay: 30 * time.Millisecond, postings: []domain.Posting{
				{Source: "finn", ExternalID: "9", URL: dupURL},
			}},
			&stubFetcher{name: "nav", postings: []domain.Posting{
				{Source: "nav", ExternalID: "z", URL: dupURL},
			}},
		}

		merged, err := Collect(context.Background(), fetchers, nil, 5*time.Second, stats)
		if err != nil {
			t.Fatalf("Collect: %v", err)
		}
		if len(merged) != 1 || merged[0].Key() != "finn:9" {
			t.Fatalf("merged = %v, want only finn:9", merged)
		}
		if stats.PostingsBySource["nav"] != 0 {
			t.Fatalf("nav kept = %d, want 0", stats.PostingsBySource["nav"])
		}
	}
}

func TestCollectIsolatesSourceFailure(t *testing.T) {
	stats := domain.NewRunStats()
	fetchers := []types.Fetcher{
		&stubFetcher{name: "finn", err: errors.New("403 blocked")},
		&stubFetcher{name: "nav", postings: []domain.Posting{
			{Source: "nav", ExternalID: "a", URL: "https://arbeidsplassen.nav.no/stillinger/stilling/a"},
		}},
	}

	merged, err := Collect(context.Background(), fetchers, nil, 5*time.Second, stats)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(merged) != 1 {
		t.Fatalf("merged = %d, want 1", len(merged))
	}
	if stats.SourceFailures["finn"] == "" {
		t.Fatalf("SourceFailures = %v, want finn entry", stats.SourceFailures)
	}
}

func TestCollectTotalFailure(t *testing.T) {
	stats := domain.NewRunStats()
	fetchers := []types.Fetcher{
		&stubFetcher{name: "finn", err: errors.New("blocked")},
		&stubFetcher{name: "nav", err: errors.New("down")},
	}

	_, err := Collect(context.Background(), fetchers, nil, 5*time.Second, stats)
	if !errors.Is(err, ErrTotalSourceFailure) {
		t.Fatalf("err = %v, want ErrTotalSourceFailure", err)
	}
}

func TestCollectEmptyButHealthyIsNotFailure(t *testing.T) {
	stats := domain.NewRunStats()
	fetchers := []types.Fetcher{
		&stubFetcher{name: "finn"},
		&stubFetcher{name: "nav"},
	}

	merged, err := Collect(context.Background(), fetchers, nil, 5*time.Second, stats)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(merged) != 0 {
		t.Fatalf("merged = %d, want 0", len(merged))
	}
}

func TestCollectPerSourceTimeout(t *testing.T) {
	stats := domain.NewRunStats()
	fetchers := []types.Fetcher{
		&stubFetcher{name: "slow", delay: time.Second},
		&stubFetcher{name: "nav", postings: []domain.Posting{
			{Source: "nav", ExternalID: "a", URL: "https://arbeidsplassen.nav.no/stillinger/stilling/a"},
		}},
	}

	merged, err := Collect(context.Background(), fetchers, nil, 20*time.Millisecond, stats)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(merged) != 1 {
		t.Fatalf("merged = %d, want 1 (slow source timed out)", len(merged))
	}
	if stats.SourceFailures["slow"] == "" {
		t.Fatalf("SourceFailures = %v, want slow entry", stats.SourceFailures)
	}
}
