package pipeline

import (
	"context"
	"log"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/gateway"
	"leadgen-engine/internal/retry"
	"leadgen-engine/internal/scrape/util"
)

// Resolver determines a company's web domain with an ordered strategy:
// the posting's own data, then the homepage link on the posting page, then a
// billed gateway name lookup. First non-empty answer wins. Results (including
// misses) are cached per company so one run never pays twice for the same
// name.
type Resolver struct {
	web         SiteScraper
	gw          Gateway
	cache       *gocache.Cache
	retryBudget int
}

func NewResolver(web SiteScraper, gw Gateway, retryBudget int) *Resolver {
	return &Resolver{
		web:         web,
		gw:          gw,
		cache:       gocache.New(30*time.Minute, 10*time.Minute),
		retryBudget: retryBudget,
	}
}

// Resolve returns the company domain for a posting, or "" when every
// strategy came up empty. Misses are not errors.
func (r *Resolver) Resolve(ctx context.Context, p domain.Posting) string {
	if d := strings.TrimSpace(p.CompanyDomain); d != "" {
		return strings.TrimPrefix(strings.ToLower(d), "www.")
	}

	key := strings.ToLower(util.CleanCompanyName(p.CompanyName))
	if key != "" {
		if cached, found := r.cache.Get(key); found {
			return cached.(string)
		}
	}

	dom := ""
	if p.URL != "" {
		dom = r.web.PostingHomepage(ctx, p.URL)
	}

	if dom == "" && p.CompanyName != "" {
		cleaned := util.CleanCompanyName(p.CompanyName)
		err := retry.Do(ctx, "resolve-domain", r.retryBudget, 2*time.Second, gateway.Retryable, func() error {
			var err error
			dom, err = r.gw.FindDomainByName(ctx, cleaned)
			return err
		})
		if err != nil {
			log.Printf("[resolve] gateway lookup failed company=%q: %v", p.CompanyName, err)
			dom = ""
		}
	}

	// Cache even the empty answer to avoid retry storms within a run.
	if key != "" {
		r.cache.Set(key, dom, gocache.DefaultExpiration)
	}
	return dom
}
