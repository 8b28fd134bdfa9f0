// Package website discovers contact emails directly on a company's own site.
// The enrichment service has thin coverage for small Norwegian companies, so
// this runs before any billed gateway search.
package website

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"leadgen-engine/internal/scrape/util"
)

// Paths checked for contact info, in order. Norwegian sites first.
var contactPaths = []string{
	"",
	"/kontakt",
	"/kontakt-oss",
	"/contact",
	"/contact-us",
	"/om-oss",
	"/about",
	"/about-us",
	"/ansatte",
	"/team",
	"/ledelse",
	"/people",
	"/staff",
}

var emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]{1,64}@[a-zA-Z0-9.\-]{2,255}\.[a-zA-Z]{2,10}`)

// Local parts that are never worth outreach.
var skipPrefixes = map[string]bool{
	"noreply": true, "no-reply": true, "donotreply": true,
	"support": true, "help": true, "helpdesk": true,
	"webmaster": true, "postmaster": true, "hostmaster": true, "abuse": true,
	"newsletter": true, "unsubscribe": true,
	"sales": true, "marketing": true, "admin": true,
	"faktura": true, "invoice": true, "regnskap": true,
	"kundeservice": true, "customer": true,
	"booking": true, "bestilling": true, "order": true,
	"privacy": true, "gdpr": true, "personvern": true,
	"media": true, "press": true, "presse": true,
}

// Role addresses still worth contacting.
var goodRolePrefixes = []string{
	"dagligleder", "ceo", "director", "leder",
	"rekruttering", "recruitment", "recruiting",
	"hr", "personal", "personalsjef",
	"careers", "jobb", "jobs",
	"kontakt", "contact", "post", "info",
}

// Norwegian/English title keywords looked for near an address.
var titleRe = regexp.MustCompile(`(?i)(daglig\s*leder|adm\.?\s*dir|administrerende\s*direkt\S*|ceo|cto|cfo|coo|` +
	`direkt\S*|manager|leder|sjef|head\s+of|partner|founder|` +
	`hr|personal\S*|rekrutter\S*|talent|` +
	`prosjekt\S*|project|teknisk|technical)`)

// Contact is one address found on a company site, with whatever name/title
// context sat next to it.
type Contact struct {
	Email string
	Name  string
	Title string
	Score int
}

type Scraper struct {
	hc     *http.Client
	robots *robotsCache
}

func New(userAgent string) *Scraper {
	return &Scraper{
		hc:     &http.Client{Timeout: 15 * time.Second},
		robots: newRobotsCache(userAgent, 10*time.Second),
	}
}

// FindContacts probes the contact-ish pages of a domain and returns scored
// candidate contacts, best first. An unreachable site returns an empty list,
// not an error; the caller falls back to the gateway search.
func (s *Scraper) FindContacts(ctx context.Context, dom string) []Contact {
	dom = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(dom)), "www.")
	if dom == "" {
		return nil
	}

	byEmail := map[string]Contact{}

	for _, path := range contactPaths {
		select {
		case <-ctx.Done():
			return ranked(byEmail)
		default:
		}

		pageURL := "https://" + dom + path
		if ok := s.robots.allowed(ctx, pageURL); !ok {
			continue
		}

		doc, err := s.fetch(ctx, pageURL)
		if err != nil {
			continue
		}

		s.harvestMailtos(doc, dom, byEmail)
		s.harvestBodyText(doc, dom, byEmail)

		// Enough candidates; no need to hammer the rest of the paths.
		if len(byEmail) >= 5 {
			break
		}
	}

	contacts := ranked(byEmail)
	if len(contacts) > 0 {
		log.Printf("[website] %s: %d contact(s)", dom, len(contacts))
	}
	return contacts
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.robots.userAgent)

	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

// harvestMailtos pulls mailto links and mines the surrounding element text
// for a person's name and title ("John Doe - CEO  john@co.no").
func (s *Scraper) harvestMailtos(doc *goquery.Document, dom string, byEmail map[string]Contact) {
	doc.Find("a[href^='mailto:']").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		email := strings.ToLower(strings.TrimPrefix(href, "mailto:"))
		if i := strings.IndexAny(email, "?&"); i >= 0 {
			email = email[:i]
		}
		if !usableEmail(email, dom) {
			return
		}

		contextText := util.CleanText(a.Parent().Text())
		name, title := nameAndTitle(contextText, email)
		record(byEmail, Contact{Email: email, Name: name, Title: title, Score: scoreEmail(email)})
	})
}

// harvestBodyText scans visible text for bare email patterns.
func (s *Scraper) harvestBodyText(doc *goquery.Document, dom string, byEmail map[string]Contact) {
	body := util.CleanText(doc.Find("body").Text())
	for _, email := range emailRe.FindAllString(body, -1) {
		email = strings.ToLower(email)
		if !usableEmail(email, dom) {
			continue
		}

		// Look at a window of text before the address for a title hint.
		title := ""
		if i := strings.Index(strings.ToLower(body), email); i >= 0 {
			start := i - 120
			if start < 0 {
				start = 0
			}
			if m := titleRe.FindString(body[start:i]); m != "" {
				title = util.CleanText(m)
			}
		}
		record(byEmail, Contact{Email: email, Title: title, Score: scoreEmail(email)})
	}
}

func record(byEmail map[string]Contact, c Contact) {
	prev, ok := byEmail[c.Email]
	if !ok {
		byEmail[c.Email] = c
		return
	}
	// Keep the richer record.
	if prev.Name == "" && c.Name != "" {
		prev.Name = c.Name
	}
	if prev.Title == "" && c.Title != "" {
		prev.Title = c.Title
	}
	byEmail[c.Email] = prev
}

func ranked(byEmail map[string]Contact) []Contact {
	out := make([]Contact, 0, len(byEmail))
	for _, c := range byEmail {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Email < out[j].Email
	})
	return out
}

// usableEmail filters to same-domain, non-automated addresses.
func usableEmail(email, dom string) bool {
	local, emailDom, ok := strings.Cut(strings.ToLower(email), "@")
	if !ok {
		return false
	}
	root := strings.TrimPrefix(strings.ToLower(dom), "www.")
	if emailDom != root && !strings.HasSuffix(emailDom, "."+root) {
		return false
	}
	for prefix := range skipPrefixes {
		if local == prefix || strings.HasPrefix(local, prefix+".") || strings.HasPrefix(local, prefix+"+") {
			return false
		}
	}
	return true
}

// scoreEmail ranks candidates: personal firstname.lastname beats role
// addresses beats everything else.
func scoreEmail(email string) int {
	local := strings.ToLower(strings.Split(email, "@")[0])

	isRole := false
	for _, role := range goodRolePrefixes {
		if local == role || strings.HasPrefix(local, role) {
			isRole = true
			break
		}
	}
	if strings.Contains(local, ".") && !isRole {
		return 10
	}
	if isRole {
		return 5
	}
	return 1
}

// nameAndTitle splits element text around the email into a person name and a
// title guess.
func nameAndTitle(text, email string) (name, title string) {
	text = strings.ReplaceAll(text, email, " ")
	text = util.CleanText(text)
	if text == "" {
		return "", ""
	}

	if m := titleRe.FindString(text); m != "" {
		title = util.CleanText(m)
	}

	// First two capitalized-ish words are usually the person.
	words := strings.Fields(text)
	if len(words) >= 2 && looksLikeName(words[0]) && looksLikeName(words[1]) {
		name = words[0] + " " + words[1]
	}
	return name, title
}

func looksLikeName(w string) bool {
	w = strings.Trim(w, ".,:-")
	if len(w) < 2 {
		return false
	}
	r := rune(w[0])
	return r >= 'A' && r <= 'Z'
}
