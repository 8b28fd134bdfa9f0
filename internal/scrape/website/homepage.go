package website

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"leadgen-engine/internal/scrape/util"
)

// Hosts that can't be a company's own site: job boards, ATSes, aggregators.
var homepageBlocklist = []string{
	"finn.no",
	"nav.no",
	"linkedin.com",
	"indeed.com",
	"glassdoor.com",
	"facebook.com",
	"instagram.com",
	"twitter.com",
	"x.com",
	"youtube.com",
	"google.com",
	"wikipedia.org",
	"greenhouse.io",
	"lever.co",
	"myworkdayjobs.com",
	"smartrecruiters.com",
	"webcruiter.no",
	"jobbnorge.no",
	"easycruit.com",
	"recman.no",
}

// PostingHomepage visits a posting page and extracts the advertiser's own
// website domain from its homepage link (finn.no labels it "Hjemmeside").
// Returns "" when no usable link is present.
func (s *Scraper) PostingHomepage(ctx context.Context, postingURL string) string {
	if !s.robots.allowed(ctx, postingURL) {
		return ""
	}

	doc, err := s.fetch(ctx, postingURL)
	if err != nil {
		return ""
	}

	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		label := strings.ToLower(util.CleanText(a.Text()))
		if label != "hjemmeside" && label != "nettside" && label != "website" && label != "webside" {
			return true
		}
		href, _ := a.Attr("href")
		host := util.HostFromURL(href)
		if host == "" || blockedHomepage(host) {
			return true
		}
		found = host
		return false
	})
	return found
}

func blockedHomepage(host string) bool {
	for _, b := range homepageBlocklist {
		if host == b || strings.HasSuffix(host, "."+b) {
			return true
		}
	}
	return false
}
