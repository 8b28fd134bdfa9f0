package domain

import "time"

// Posting is a single job advertisement pulled from one external source.
// Identity is (Source, ExternalID); a posting is immutable once stored.
type Posting struct {
	Source         string // finn/nav/alerts
	ExternalID     string
	Title          string
	CompanyName    string
	CompanyDomain  string // only if the source carried it
	OrgNumber      string // filled by registry enrichment
	LocationRaw    string
	URL            string
	KeywordMatched string
	PostedAt       *time.Time
	DiscoveredAt   time.Time
}

// Key returns the ledger identity for the posting.
func (p Posting) Key() string {
	return p.Source + ":" + p.ExternalID
}
