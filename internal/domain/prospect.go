package domain

import "strings"

// Verification states for a prospect email. Valid and Invalid are terminal;
// Risky and Unverified prospects may be re-checked on a later run.
const (
	VerifyUnverified = "unverified"
	VerifyValid      = "valid"
	VerifyInvalid    = "invalid"
	VerifyRisky      = "risky"
)

// How a prospect was discovered.
const (
	ViaWebsiteScrape = "website_scrape"
	ViaGatewaySearch = "gateway_search"
)

// Prospect is a contact discovered for outreach. Identity is the normalized
// (lowercased) email address.
type Prospect struct {
	Email         string
	FirstName     string
	LastName      string
	FullName      string
	Position      string
	CompanyName   string
	CompanyDomain string
	OrgNumber     string
	Verification  string // unverified/valid/invalid/risky
	DiscoveredVia string // website_scrape/gateway_search
	LinkedInURL   string
}

// NormalizedEmail is the ledger identity for the prospect.
func (p Prospect) NormalizedEmail() string {
	return strings.ToLower(strings.TrimSpace(p.Email))
}
