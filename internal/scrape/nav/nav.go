package nav

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

// arbeidsplassen.nav.no is Norway's official public job board.
const baseURL = "https://arbeidsplassen.nav.no"

// Posting URLs: /stillinger/stilling/<uuid>.
var jobIDRe = regexp.MustCompile(`/stilling/([a-f0-9\-]+)`)

type Config struct {
	BaseURL  string // override for tests
	MaxPages int    // per keyword; NAV pages hold 50 results
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

func (s *Scraper) Name() string { return "nav" }

func (s *Scraper) Fetch(ctx context.Context, keywords []string) (types.ScrapeResult, error) {
	res := types.ScrapeResult{Source: s.Name()}
	seen := map[string]bool{}

	for _, kw := range keywords {
		for page := 0; page < s.cfg.MaxPages; page++ {
			postings, err := s.fetchPage(ctx, kw, page)
			if err != nil {
				return res, fmt.Errorf("nav: keyword %q page %d: %w", kw, page, err)
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

	log.Printf("[nav] %d postings across %d keywords", len(res.Postings), len(keywords))
	return res, nil
}

func (s *Scraper) fetchPage(ctx context.Context, keyword string, page int) ([]domain.Posting, error) {
	u := s.cfg.BaseURL + "/stillinger?q=" + url.QueryEscape(keyword)
	if page > 0 {
		u += fmt.Sprintf("&from=%d", page*50)
	}
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
	seenIDs := map[string]bool{}

	// NAV sometimes renders the same posting twice on a page.
	doc.Find("a[href*='/stillinger/stilling/']").Each(func(_ int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		if strings.HasPrefix(href, "/") {
			href = s.cfg.BaseURL + href
		}

		m := jobIDRe.FindStringSubmatch(href)
		if m == nil {
			return
		}
		id := m[1]
		if seenIDs[id] {
			return
		}
		seenIDs[id] = true

		title := util.CleanText(link.Text())
		if title == "" {
			title = util.CleanText(link.Find("h2, h3").First().Text())
		}
		if title == "" {
			return
		}

		card := link.Closest("article, li, div[class*='card']")
		company := util.CleanText(card.Find("[class*='employer'], .navds-detail, strong").First().Text())
		location := util.CleanText(card.Find("[class*='location'], .navds-tag").First().Text())

		out = append(out, domain.Posting{
			Source:         "nav",
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
