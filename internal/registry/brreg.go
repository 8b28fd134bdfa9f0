package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"leadgen-engine/internal/domain"
)

// DefaultBaseURL is the public Norwegian business registry
// (Brønnøysundregistrene). Free, unauthenticated, so keep requests polite.
const DefaultBaseURL = "https://data.brreg.no/enhetsregisteret/api"

// Officer role codes worth extracting: CEO, board chair, vice chair, board
// member, deputy member.
var decisionMakerRoles = map[string]bool{
	"DAGL": true,
	"LEDE": true,
	"NEST": true,
	"MEDL": true,
	"VARA": true,
}

type Client struct {
	hc      *http.Client
	limiter *rate.Limiter
	baseURL string
}

func New(baseURL string, reqPerSec float64) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if reqPerSec <= 0 {
		reqPerSec = 2
	}
	return &Client{
		hc:      &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(reqPerSec), 1),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// WithHTTPClient swaps the transport (used by tests).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.hc = hc
	return c
}

type entity struct {
	OrgNumber string `json:"organisasjonsnummer"`
	Name      string `json:"navn"`
	Website   string `json:"hjemmeside"`
	Employees int    `json:"antallAnsatte"`
	LegalForm struct {
		Code string `json:"kode"`
	} `json:"organisasjonsform"`
}

// Lookup matches a company name against the registry's canonical name index.
// Matching is exact after case folding and whitespace normalization; anything
// less certain returns (nil, nil). A miss is a business outcome, not an error.
func (c *Client) Lookup(ctx context.Context, companyName string) (*domain.Company, error) {
	name := normalizeName(companyName)
	if name == "" {
		return nil, nil
	}

	params := url.Values{
		"navn": {strings.TrimSpace(companyName)},
		"size": {"5"},
	}
	raw, err := c.get(ctx, "/enheter", params)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Embedded struct {
			Entities []entity `json:"enheter"`
		} `json:"_embedded"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("registry: decode search: %w", err)
	}

	for _, e := range payload.Embedded.Entities {
		if normalizeName(e.Name) != name {
			continue
		}
		co := &domain.Company{
			OrgNumber:     e.OrgNumber,
			Name:          e.Name,
			Website:       strings.TrimSpace(e.Website),
			EmployeeCount: e.Employees,
			LegalForm:     e.LegalForm.Code,
		}
		// Officers are best-effort; a failed roles call doesn't void the match.
		if officers, err := c.Roles(ctx, e.OrgNumber); err == nil {
			co.Officers = officers
		}
		return co, nil
	}
	return nil, nil
}

// Roles returns the registered decision makers for an organization.
func (c *Client) Roles(ctx context.Context, orgNumber string) ([]domain.Officer, error) {
	raw, err := c.get(ctx, "/enheter/"+url.PathEscape(orgNumber)+"/roller", nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		RoleGroups []struct {
			Roles []struct {
				Role struct {
					Code string `json:"kode"`
					Desc string `json:"beskrivelse"`
				} `json:"rolle"`
				Person struct {
					Name struct {
						First  string `json:"fornavn"`
						Middle string `json:"mellomnavn"`
						Last   string `json:"etternavn"`
					} `json:"navn"`
				} `json:"person"`
			} `json:"roller"`
		} `json:"rollegrupper"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("registry: decode roles: %w", err)
	}

	var out []domain.Officer
	for _, g := range payload.RoleGroups {
		for _, r := range g.Roles {
			if !decisionMakerRoles[r.Role.Code] {
				continue
			}
			full := joinNonEmpty(r.Person.Name.First, r.Person.Name.Middle, r.Person.Name.Last)
			if full == "" {
				continue
			}
			out = append(out, domain.Officer{
				Name:     full,
				RoleCode: r.Role.Code,
				RoleDesc: r.Role.Desc,
			})
		}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "leadgen-engine/1.0 (lead generation tool)")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return []byte("{}"), nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("registry: status %d for %s", resp.StatusCode, path)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("registry: read body: %w", err)
	}
	return b, nil
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
