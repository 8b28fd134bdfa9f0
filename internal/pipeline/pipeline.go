// Package pipeline drives one end-to-end lead generation run: collect
// postings, filter against the ledger, enrich with registry data, resolve
// company domains, discover and verify contacts, commit, and hand off.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"leadgen-engine/internal/config"
	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/gateway"
	"leadgen-engine/internal/outreach"
	"leadgen-engine/internal/retry"
	"leadgen-engine/internal/scrape"
	"leadgen-engine/internal/scrape/types"
	"leadgen-engine/internal/scrape/util"
	"leadgen-engine/internal/scrape/website"
	"leadgen-engine/internal/store"
)

// Gateway is the slice of the enrichment API the pipeline consumes.
type Gateway interface {
	FindDomainByName(ctx context.Context, companyName string) (string, error)
	DomainEmailCount(ctx context.Context, dom string) (int, error)
	ProspectsByDomain(ctx context.Context, dom string, positions []string) ([]domain.Prospect, error)
	EmailByName(ctx context.Context, firstName, lastName, dom string) (email, smtpStatus string, err error)
	VerifyEmail(ctx context.Context, email string) (string, error)
}

// Registry looks up official company records by name.
type Registry interface {
	Lookup(ctx context.Context, name string) (*domain.Company, error)
}

// SiteScraper mines company websites for contacts and homepage links.
type SiteScraper interface {
	FindContacts(ctx context.Context, dom string) []website.Contact
	PostingHomepage(ctx context.Context, postingURL string) string
}

type Pipeline struct {
	cfg      config.Config
	db       *store.DB
	fetchers []types.Fetcher
	gw       Gateway
	reg      Registry
	web      SiteScraper
	handoff  outreach.Handoff
	resolver *Resolver
}

func New(cfg config.Config, db *store.DB, fetchers []types.Fetcher, gw Gateway, reg Registry, web SiteScraper, handoff outreach.Handoff) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		db:       db,
		fetchers: fetchers,
		gw:       gw,
		reg:      reg,
		web:      web,
		handoff:  handoff,
		resolver: NewResolver(web, gw, cfg.Gateway.RetryBudget),
	}
}

// Run executes one full pipeline pass. A single company or contact failing is
// counted and skipped; the run only aborts on ledger failures, total source
// failure, or context cancellation. The returned stats are valid either way.
func (pl *Pipeline) Run(ctx context.Context) (*domain.RunStats, error) {
	stats := domain.NewRunStats()

	runID, err := pl.db.InsertRun(ctx)
	if err != nil {
		return stats, err
	}
	started := time.Now()
	log.Printf("[pipeline] run %d started keywords=%v", runID, pl.cfg.Run.Keywords)

	srcTimeout := time.Duration(pl.cfg.Run.SourceSeconds) * time.Second
	postings, err := scrape.Collect(ctx, pl.fetchers, pl.cfg.Run.Keywords, srcTimeout, stats)
	if err != nil {
		pl.finish(runID, "failed", stats, err)
		return stats, err
	}

	for _, p := range postings {
		if ctx.Err() != nil {
			pl.finish(runID, "aborted", stats, ctx.Err())
			return stats, ctx.Err()
		}
		if err := pl.processPosting(ctx, p, stats); err != nil {
			pl.finish(runID, "failed", stats, err)
			return stats, err
		}
	}

	status := "completed"
	if stats.PartialFailure() {
		status = "completed_with_failures"
	}
	pl.finish(runID, status, stats, nil)

	log.Printf("[pipeline] run %d %s in %s", runID, status, time.Since(started).Round(time.Second))
	pl.logStats(stats)
	return stats, nil
}

// finish persists the run outcome. Uses a fresh context so a cancelled run
// still gets its final row written.
func (pl *Pipeline) finish(runID int64, status string, stats *domain.RunStats, cause error) {
	errMsg := ""
	if cause != nil {
		errMsg = cause.Error()
	}
	fctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pl.db.FinishRun(fctx, runID, status, stats, errMsg); err != nil {
		log.Printf("[pipeline] finish run %d: %v", runID, err)
	}
}

// processPosting runs one posting through the ledger filter, enrichment, and
// contact stages. A returned error is always a ledger failure and fatal to
// the run; everything else is logged, counted, and skipped.
func (pl *Pipeline) processPosting(ctx context.Context, p domain.Posting, stats *domain.RunStats) error {
	if strings.TrimSpace(p.CompanyName) == "" && p.CompanyDomain == "" {
		log.Printf("[pipeline] skip %s: no company attribution", p.Key())
		return nil
	}

	inserted, postingID, err := pl.db.RecordPosting(ctx, p)
	if err != nil {
		return err
	}
	if !inserted {
		stats.PostingsDeduped++
		return nil
	}
	stats.PostingsNew++
	log.Printf("[pipeline] new posting %s %q company=%q", p.Key(), p.Title, p.CompanyName)

	co, err := pl.enrichRegistry(ctx, &p, stats)
	if err != nil {
		return err
	}
	if p.CompanyDomain == "" && co != nil && co.Website != "" {
		p.CompanyDomain = util.HostFromURL(co.Website)
	}

	dom := pl.resolver.Resolve(ctx, p)
	if dom == "" {
		stats.DomainsMissing++
		log.Printf("[pipeline] no domain for %q, contact discovery skipped", p.CompanyName)
		return pl.db.UpdatePostingEnrichment(ctx, postingID, "", p.OrgNumber)
	}
	stats.DomainsResolved++
	p.CompanyDomain = dom
	if err := pl.db.UpdatePostingEnrichment(ctx, postingID, dom, p.OrgNumber); err != nil {
		return err
	}

	candidates := pl.discoverContacts(ctx, p, stats)
	if len(candidates) == 0 {
		log.Printf("[pipeline] no contacts for %s", dom)
		return nil
	}
	stats.ProspectsFound += len(candidates)

	for _, cand := range candidates {
		if err := pl.processContact(ctx, postingID, cand, stats); err != nil {
			return err
		}
	}
	return nil
}

// enrichRegistry attaches the official company record when the registry has
// an exact name match. The registry indexes full registered names, legal
// suffix included ("ACME AS"), so the posting's name is whitespace-folded but
// never cleaned here; cleaning is for gateway lookups only. A lookup failure
// or miss never blocks the posting.
func (pl *Pipeline) enrichRegistry(ctx context.Context, p *domain.Posting, stats *domain.RunStats) (*domain.Company, error) {
	name := strings.Join(strings.Fields(p.CompanyName), " ")
	if name == "" {
		return nil, nil
	}

	co, err := pl.db.CompanyByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if co == nil {
		co, err = pl.reg.Lookup(ctx, name)
		if err != nil {
			log.Printf("[pipeline] registry lookup %q: %v", name, err)
			stats.EntityFailures++
			return nil, nil
		}
		if co == nil {
			return nil, nil
		}
		if err := pl.db.UpsertCompany(ctx, *co); err != nil {
			return nil, err
		}
	}

	stats.RegistryMatches++
	p.OrgNumber = co.OrgNumber
	return co, nil
}

// discoverContacts finds candidate contacts for a posting's company. The
// company's own website is tried first; the billed gateway search only runs
// when the site yields nothing and the free count says a search can pay off.
func (pl *Pipeline) discoverContacts(ctx context.Context, p domain.Posting, stats *domain.RunStats) []domain.Prospect {
	found := pl.web.FindContacts(ctx, p.CompanyDomain)
	if len(found) > 0 {
		out := make([]domain.Prospect, 0, len(found))
		for _, c := range found {
			out = append(out, prospectFromSite(c, p))
		}
		return out
	}

	budget := pl.cfg.Gateway.RetryBudget
	var count int
	err := retry.Do(ctx, "email-count", budget, 2*time.Second, gateway.Retryable, func() error {
		var err error
		count, err = pl.gw.DomainEmailCount(ctx, p.CompanyDomain)
		return err
	})
	if err != nil {
		log.Printf("[pipeline] email count %s: %v", p.CompanyDomain, err)
		stats.EntityFailures++
		return nil
	}
	if count == 0 {
		return nil
	}

	var prospects []domain.Prospect
	err = retry.Do(ctx, "prospect-search", budget, 2*time.Second, gateway.Retryable, func() error {
		var err error
		prospects, err = pl.gw.ProspectsByDomain(ctx, p.CompanyDomain, pl.cfg.Run.TargetPositions)
		return err
	})
	if err != nil {
		log.Printf("[pipeline] prospect search %s: %v", p.CompanyDomain, err)
		stats.EntityFailures++
		return nil
	}

	out := make([]domain.Prospect, 0, len(prospects))
	for _, pr := range prospects {
		if pr.FirstName == "" && pr.LastName == "" {
			continue
		}
		var email, smtp string
		err := retry.Do(ctx, "email-by-name", budget, 2*time.Second, gateway.Retryable, func() error {
			var err error
			email, smtp, err = pl.gw.EmailByName(ctx, pr.FirstName, pr.LastName, p.CompanyDomain)
			return err
		})
		if err != nil {
			log.Printf("[pipeline] email by name %s %s: %v", pr.FullName, p.CompanyDomain, err)
			stats.EntityFailures++
			continue
		}
		if email == "" {
			continue
		}
		pr.Email = email
		if smtp != "" {
			// The search already reports an smtp status; no point paying to
			// verify the same address again.
			pr.Verification = gateway.ClassifySMTPStatus(smtp)
		}
		pr.CompanyName = p.CompanyName
		pr.OrgNumber = p.OrgNumber
		out = append(out, pr)
	}
	return out
}

// processContact dedups, verifies, commits, and hands off one candidate.
// Contacts already in the ledger are never re-verified.
func (pl *Pipeline) processContact(ctx context.Context, postingID int64, cand domain.Prospect, stats *domain.RunStats) error {
	email := cand.NormalizedEmail()
	if email == "" {
		return nil
	}

	exists, err := pl.db.ContactExists(ctx, email)
	if err != nil {
		return err
	}
	if exists {
		stats.ContactsDeduped++
		return nil
	}

	if cand.Verification == "" || cand.Verification == domain.VerifyUnverified {
		var status string
		err := retry.Do(ctx, "verify", pl.cfg.Gateway.RetryBudget, 2*time.Second, gateway.Retryable, func() error {
			var err error
			status, err = pl.gw.VerifyEmail(ctx, email)
			return err
		})
		if err != nil {
			log.Printf("[pipeline] verify %s: %v", email, err)
			stats.EntityFailures++
			return nil
		}
		cand.Verification = status
	}

	stats.EmailsVerified++
	switch cand.Verification {
	case domain.VerifyValid:
		stats.EmailsValid++
	case domain.VerifyInvalid:
		stats.EmailsInvalid++
		log.Printf("[pipeline] discard %s: invalid", email)
		return nil
	default:
		stats.EmailsRisky++
	}

	inserted, err := pl.db.RecordProspect(ctx, postingID, cand)
	if err != nil {
		return err
	}
	if !inserted {
		stats.ContactsDeduped++
		return nil
	}
	stats.ContactsStored++

	if cand.Verification == domain.VerifyValid {
		if err := pl.handoff.Deliver(ctx, cand); err != nil {
			log.Printf("[pipeline] handoff %s: %v", email, err)
			stats.EntityFailures++
		} else {
			stats.HandoffDelivered++
		}
	}
	return nil
}

func prospectFromSite(c website.Contact, p domain.Posting) domain.Prospect {
	first, last := splitName(c.Name)
	return domain.Prospect{
		Email:         c.Email,
		FirstName:     first,
		LastName:      last,
		FullName:      c.Name,
		Position:      c.Title,
		CompanyName:   p.CompanyName,
		CompanyDomain: p.CompanyDomain,
		OrgNumber:     p.OrgNumber,
		Verification:  domain.VerifyUnverified,
		DiscoveredVia: domain.ViaWebsiteScrape,
	}
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch {
	case len(parts) == 0:
		return "", ""
	case len(parts) == 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

func (pl *Pipeline) logStats(s *domain.RunStats) {
	line := func(label string, n int) { log.Printf("  %-22s %d", label, n) }
	log.Printf("[pipeline] run summary:")
	line("postings scraped", s.PostingsScraped)
	for src, n := range s.PostingsBySource {
		line(fmt.Sprintf("  from %s", src), n)
	}
	line("cross-source dups", s.CrossSourceDedup)
	line("already in ledger", s.PostingsDeduped)
	line("new postings", s.PostingsNew)
	line("registry matches", s.RegistryMatches)
	line("domains resolved", s.DomainsResolved)
	line("domains missing", s.DomainsMissing)
	line("prospects found", s.ProspectsFound)
	line("emails verified", s.EmailsVerified)
	line("  valid", s.EmailsValid)
	line("  invalid", s.EmailsInvalid)
	line("  risky", s.EmailsRisky)
	line("contacts deduped", s.ContactsDeduped)
	line("contacts stored", s.ContactsStored)
	line("handed off", s.HandoffDelivered)
	line("entity failures", s.EntityFailures)
	for src, msg := range s.SourceFailures {
		log.Printf("  source %s failed: %s", src, msg)
	}
}
