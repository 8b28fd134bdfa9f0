package nav

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"leadgen-engine/internal/scrape/util"
)

const searchPage = `<html><body>
<article>
  <a href="/stillinger/stilling/0195aabb-1122-7ccd-9eef-001122334455">Utvikler backend</a>
  <p class="navds-detail employer-name">Beta AS</p>
  <span class="location-tag">Trondheim</span>
</article>
<article>
  <a href="/stillinger/stilling/0195aabb-1122-7ccd-9eef-001122334455">Utvikler backend (re-rendered)</a>
</article>
<article>
  <a href="https://arbeidsplassen.nav.no/stillinger/stilling/aabbccdd-0011-2233-4455-667788990011">Sykepleier natt</a>
  <p class="employer">Omsorg Nord</p>
</article>
</body></html>`

func newTestScraper(t *testing.T, handler http.Handler) *Scraper {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, MaxPages: 1}, util.NewHostLimiter(1000, 1000))
}

func TestFetchParsesListings(t *testing.T) {
	s := newTestScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stillinger" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, searchPage)
	}))

	res, err := s.Fetch(context.Background(), []string{"utvikler"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Source != "nav" {
		t.Fatalf("source = %q", res.Source)
	}
	if len(res.Postings) != 2 {
		t.Fatalf("postings = %d, want 2 (re-rendered card dropped)", len(res.Postings))
	}

	p := res.Postings[0]
	if p.ExternalID != "0195aabb-1122-7ccd-9eef-001122334455" {
		t.Fatalf("id = %q", p.ExternalID)
	}
	if p.Title != "Utvikler backend" || p.CompanyName != "Beta AS" {
		t.Fatalf("posting = %+v", p)
	}
	if p.URL[0] == '/' {
		t.Fatalf("relative URL not absolutized: %q", p.URL)
	}

	if res.Postings[1].CompanyName != "Omsorg Nord" {
		t.Fatalf("second posting = %+v", res.Postings[1])
	}
}

func TestFetchPaginationOffset(t *testing.T) {
	var offsets []string
	s := newTestScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offsets = append(offsets, r.URL.Query().Get("from"))
		if len(offsets) == 1 {
			fmt.Fprint(w, searchPage)
			return
		}
		fmt.Fprint(w, "<html><body></body></html>")
	}))
	s.cfg.MaxPages = 3

	if _, err := s.Fetch(context.Background(), []string{"utvikler"}); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(offsets) != 2 || offsets[0] != "" || offsets[1] != "50" {
		t.Fatalf("offsets = %v, want [\"\" \"50\"]", offsets)
	}
}

func TestFetchSurfacesHTTPError(t *testing.T) {
	s := newTestScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))

	if _, err := s.Fetch(context.Background(), []string{"utvikler"}); err == nil {
		t.Fatal("expected error for 429")
	}
}
