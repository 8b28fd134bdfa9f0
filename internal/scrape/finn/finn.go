package finn

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/scrape/types"
	"leadgen-engine/internal/scrape/util"
)

const baseURL = "https://www.finn.no"

// New posting URLs look like /job/ad/123456789; legacy ones carry
// finnkode=123456789.
var (
	adIDRe       = regexp.MustCompile(`/job/ad/(\d+)`)
	finnkodeRe   = regexp.MustCompile(`finnkode=(\d+)`)
	trailingIDRe = regexp.MustCompile(`/(\d+)$`)
)

type Config struct {
	BaseURL  string // override for tests
	MaxPages int    // per keyword; 0 means 1
}

type Scraper struct {
	cfg     Config
	hc      *http.Client
	limiter *util.HostLimiter
}

func New(cfg Config, limiter *util.HostLimiter) *Scraper {
	if cfg.BaseURL == "" {
		cfg.BaseURL = baseURL
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1
	}
	return &Scraper{
		cfg:     cfg,
		hc:      &http.Client{Timeout: 20 * time.Second},
		limiter: limiter,
	}
}

func (s *Scraper) Name() string { return "finn" }

// Fetch scans every keyword's search results and returns the postings found,
// deduplicated by canonical URL within this invocation.
func (s *Scraper) Fetch(ctx context.Context, keywords []string) (types.ScrapeResult, error) {
	res := types.ScrapeResult{Source: s.Name()}
	seen := map[string]bool{}

	for _, kw := range keywords {
		for page := 1; page <= s.cfg.MaxPages; page++ {
			postings, err := s.fetchPage(ctx, kw, page)
			if err != nil {
				return res, fmt.Errorf("finn: keyword %q page %d: %w", kw, page, err)
			}
			if len(postings) == 0 {
				break
			}
			for _, p := range postings {
				key := util.CanonicalizeURL(p.URL)
				if seen[key] {
					continue
				}
				seen[key] = true
				res.Postings = append(res.Postings, p)
			}
		}
	}

	log.Printf("[finn] %d postings across %d keywords", len(res.Postings), len(keywords))
	return res, nil
}

func (s *Scraper) fetchPage(ctx context.Context, keyword string, page int) ([]domain.Posting, error) {
	u := s.searchPageURL(keyword, page)
	if err := s.limiter.WaitURL(ctx, u); err != nil {
		return nil, err
	}

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	req.Header.Set("User-Agent", "leadgen-engine/1.0 (+local)")

	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("search status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse search html: %w", err)
	}

	var out []domain.Posting
	now := time.Now().UTC()

	doc.Find("article").Each(func(_ int, card *goquery.Selection) {
		link := card.Find("a[href*='/job/ad/']").First()
		href, ok := link.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		if strings.HasPrefix(href, "/") {
			href = s.cfg.BaseURL + href
		}

		id := extractID(href)
		if id == "" {
			return
		}

		title := util.CleanText(link.Text())
		if title == "" {
			title = util.CleanText(card.Find("h2, h3, .h4").First().Text())
		}
		if title == "" {
			return
		}

		company := util.CleanText(card.Find(".text-caption.s-text-subtle, .s-text-subtle strong, strong").First().Text())
		location := util.CleanText(card.Find("li.min-w-0 span").First().Text())

		out = append(out, domain.Posting{
			Source:         "finn",
			ExternalID:     id,
			Title:          title,
			CompanyName:    company,
			LocationRaw:    location,
			URL:            href,
			KeywordMatched: keyword,
			DiscoveredAt:   now,
		})
	})

	return out, nil
}

func (s *Scraper) searchPageURL(keyword string, page int) string {
	u := s.cfg.BaseURL + "/job/search?q=" + url.QueryEscape(keyword)
	if page > 1 {
		u += fmt.Sprintf("&page=%d", page)
	}
	return u
}

func extractID(raw string) string {
	if m := adIDRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	if m := finnkodeRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	if m := trailingIDRe.FindStringSubmatch(strings.TrimRight(raw, "/")); m != nil {
		return m[1]
	}
	return ""
}
