package finn

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
  <a href="/job/ad/111">Senior Utvikler</a>
  <div class="text-caption s-text-subtle">Acme AS</div>
  <ul><li class="min-w-0"><span>Oslo</span></li></ul>
</article>
<article>
  <a href="https://www.finn.no/job/ad/222">Sykepleier</a>
  <div class="text-caption s-text-subtle">Helse Bergen HF</div>
  <ul><li class="min-w-0"><span>Bergen</span></li></ul>
</article>
<article>
  <p>Sponsored content without a posting link</p>
</article>
<article>
  <a href="/job/ad/111">Senior Utvikler (duplicate render)</a>
</article>
</body></html>`

func newTestScraper(t *testing.T, handler http.Handler, maxPages int) *Scraper {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, MaxPages: maxPages}, util.NewHostLimiter(1000, 1000))
}

func TestFetchParsesCards(t *testing.T) {
	s := newTestScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/job/search" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("q") != "utvikler" {
			http.Error(w, "unexpected query", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, searchPage)
	}), 1)

	res, err := s.Fetch(context.Background(), []string{"utvikler"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Source != "finn" {
		t.Fatalf("source = %q", res.Source)
	}
	if len(res.Postings) != 2 {
		t.Fatalf("postings = %d, want 2 (duplicate and linkless cards dropped)", len(res.Postings))
	}

	p := res.Postings[0]
	if p.ExternalID != "111" || p.Title != "Senior Utvikler" || p.CompanyName != "Acme AS" || p.LocationRaw != "Oslo" {
		t.Fatalf("posting = %+v", p)
	}
	if p.KeywordMatched != "utvikler" {
		t.Fatalf("keyword = %q", p.KeywordMatched)
	}
	if p.URL == "" || p.URL[0] == '/' {
		t.Fatalf("relative URL not absolutized: %q", p.URL)
	}

	if res.Postings[1].ExternalID != "222" {
		t.Fatalf("second posting = %+v", res.Postings[1])
	}
}

func TestFetchStopsOnEmptyPage(t *testing.T) {
	var pages []string
	s := newTestScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages = append(pages, r.URL.Query().Get("page"))
		if r.URL.Query().Get("page") == "" {
			fmt.Fprint(w, searchPage)
			return
		}
		fmt.Fprint(w, "<html><body></body></html>")
	}), 3)

	res, err := s.Fetch(context.Background(), []string{"utvikler"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(res.Postings) != 2 {
		t.Fatalf("postings = %d, want 2", len(res.Postings))
	}
	// Page 1, then page 2 empty, then stop; page 3 never requested.
	if len(pages) != 2 {
		t.Fatalf("requested pages %v, want 2 requests", pages)
	}
}

func TestFetchSurfacesHTTPError(t *testing.T) {
	s := newTestScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "captcha", http.StatusForbidden)
	}), 1)

	if _, err := s.Fetch(context.Background(), []string{"utvikler"}); err == nil {
		t.Fatal("expected error for 403")
	}
}

func TestExtractID(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"https://www.finn.no/job/ad/123456", "123456"},
		{"https://www.finn.no/job/fulltime/ad.html?finnkode=987", "987"},
		{"https://www.finn.no/stilling/456789/", "456789"},
		{"https://www.finn.no/job/search", ""},
	}
	for _, tc := range cases {
		if got := extractID(tc.in); got != tc.want {
			t.Errorf("extractID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
