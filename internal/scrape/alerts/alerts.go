// Package alerts treats a mailbox of job-alert emails as a posting source:
// unseen alert messages are scanned for posting links and each link becomes a
// raw posting record.
package alerts

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"leadgen-engine/internal/config"
	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/scrape/types"
	"leadgen-engine/internal/scrape/util"
)

var (
	finnLinkRe = regexp.MustCompile(`https?://(?:www\.)?finn\.no/job/ad/(\d+)`)
	navLinkRe  = regexp.MustCompile(`https?://arbeidsplassen\.nav\.no/stillinger/stilling/([a-f0-9\-]+)`)
	urlRe      = regexp.MustCompile(`https?://[^\s<>"']+`)
	// "Ny stilling hos Acme AS" / "New job at Acme AS"
	companyRe = regexp.MustCompile(`(?i)(?:hos|at)\s+(.{2,60})$`)
)

type Fetcher struct {
	Cfg      config.AlertsConfig
	Password string
}

func (f *Fetcher) Name() string { return "alerts" }

// Fetch pulls unseen alert messages and converts every posting link in them
// into a Posting. Keywords are applied as a subject/body filter since the
// mailbox itself was populated by saved searches. Processed messages are
// flagged \Seen so the next run starts where this one left off; the ledger
// still protects against re-delivery.
func (f *Fetcher) Fetch(ctx context.Context, keywords []string) (types.ScrapeResult, error) {
	res := types.ScrapeResult{Source: f.Name()}

	addr := f.Cfg.IMAPHost
	if !strings.Contains(addr, ":") {
		addr = fmt.Sprintf("%s:%d", addr, f.Cfg.IMAPPort)
	}

	c, err := imapclient.DialTLS(addr, &imapclient.Options{
		TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12, ServerName: f.Cfg.IMAPHost},
	})
	if err != nil {
		return res, fmt.Errorf("alerts: imap dial: %w", err)
	}
	defer func() {
		_ = c.Logout().Wait()
		_ = c.Close()
	}()

	if err := c.Login(f.Cfg.Username, f.Password).Wait(); err != nil {
		return res, fmt.Errorf("alerts: imap login: %w", err)
	}
	if _, err := c.Select("INBOX", &imap.SelectOptions{ReadOnly: false}).Wait(); err != nil {
		return res, fmt.Errorf("alerts: imap select: %w", err)
	}

	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
		Since:   time.Now().AddDate(0, -3, 0),
	}
	searchData, err := c.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return res, fmt.Errorf("alerts: imap search: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return res, nil
	}
	if len(uids) > f.Cfg.MaxMessages {
		uids = uids[len(uids)-f.Cfg.MaxMessages:]
	}

	bodyAll := &imap.FetchItemBodySection{Specifier: imap.PartSpecifierNone, Peek: true}
	fetchCmd := c.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:         true,
		Envelope:    true,
		BodySection: []*imap.FetchItemBodySection{bodyAll},
	})
	defer func() { _ = fetchCmd.Close() }()

	seen := map[string]bool{}
	var processed []imap.UID
	now := time.Now().UTC()

	for {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		msgData := fetchCmd.Next()
		if msgData == nil {
			break
		}
		buf, err := msgData.Collect()
		if err != nil {
			return res, fmt.Errorf("alerts: imap collect: %w", err)
		}

		subject := ""
		if buf.Envelope != nil {
			subject = buf.Envelope.Subject
		}
		if f.Cfg.SubjectMatch != "" && !strings.Contains(strings.ToLower(subject), strings.ToLower(f.Cfg.SubjectMatch)) {
			processed = append(processed, buf.UID)
			continue
		}

		var raw []byte
		if b := buf.FindBodySection(bodyAll); b != nil {
			raw = append([]byte(nil), b...)
		}

		for _, p := range postingsFromMessage(subject, raw, keywords, now) {
			key := util.CanonicalizeURL(p.URL)
			if seen[key] {
				continue
			}
			seen[key] = true
			res.Postings = append(res.Postings, p)
		}
		processed = append(processed, buf.UID)
	}

	if len(processed) > 0 {
		store := c.Store(imap.UIDSetNum(processed...), &imap.StoreFlags{
			Op:     imap.StoreFlagsAdd,
			Silent: true,
			Flags:  []imap.Flag{imap.FlagSeen},
		}, nil)
		if err := store.Close(); err != nil {
			log.Printf("[alerts] mark seen failed: %v", err)
		}
	}

	log.Printf("[alerts] %d postings from %d messages", len(res.Postings), len(processed))
	return res, nil
}

// postingsFromMessage extracts posting links from one alert email. Only links
// to boards we know how to identify become postings; anything else would have
// no stable external id.
func postingsFromMessage(subject string, raw []byte, keywords []string, now time.Time) []domain.Posting {
	body := messageText(raw)
	if body == "" {
		return nil
	}

	matched := matchedKeyword(subject+" "+body, keywords)
	if len(keywords) > 0 && matched == "" {
		return nil
	}

	company := ""
	if m := companyRe.FindStringSubmatch(util.CleanText(subject)); m != nil {
		company = util.CleanText(m[1])
	}

	var out []domain.Posting
	for _, link := range urlRe.FindAllString(body, -1) {
		link = strings.TrimRight(link, ".,);:]\"'")

		var source, id string
		if m := finnLinkRe.FindStringSubmatch(link); m != nil {
			source, id = "finn", m[1]
		} else if m := navLinkRe.FindStringSubmatch(link); m != nil {
			source, id = "nav", m[1]
		} else {
			continue
		}

		out = append(out, domain.Posting{
			// Keep the board as the source so the ledger identity matches a
			// direct scrape of the same posting.
			Source:         source,
			ExternalID:     id,
			Title:          util.CleanText(subject),
			CompanyName:    company,
			URL:            link,
			KeywordMatched: matched,
			DiscoveredAt:   now,
		})
	}
	return out
}

// messageText returns a best-effort plaintext rendering of an RFC822 message.
// Quoted-printable soft breaks are unfolded so URLs survive line wrapping.
func messageText(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	var body []byte
	if err != nil {
		body = raw
	} else {
		b := new(bytes.Buffer)
		_, _ = b.ReadFrom(msg.Body)
		body = b.Bytes()
	}

	s := string(body)
	s = strings.ReplaceAll(s, "=\r\n", "")
	s = strings.ReplaceAll(s, "=\n", "")
	s = strings.ReplaceAll(s, "=3D", "=")
	s = strings.ReplaceAll(s, "&amp;", "&")
	return s
}

func matchedKeyword(text string, keywords []string) string {
	low := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(low, strings.ToLower(kw)) {
			return kw
		}
	}
	return ""
}
