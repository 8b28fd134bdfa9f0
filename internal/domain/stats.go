package domain

// RunStats is the per-invocation summary of one pipeline run. It only lives
// for the duration of the run; the final snapshot is written to the
// pipeline_runs table and logged.
type RunStats struct {
	PostingsScraped  int
	PostingsBySource map[string]int
	SourceFailures   map[string]string // source -> error text
	CrossSourceDedup int               // dropped in-batch as duplicate URL across sources
	PostingsDeduped  int               // dropped because already in the ledger
	PostingsNew      int
	RegistryMatches  int
	DomainsResolved  int
	DomainsMissing   int
	ProspectsFound   int
	EmailsVerified   int
	EmailsValid      int
	EmailsInvalid    int
	EmailsRisky      int
	ContactsDeduped  int
	ContactsStored   int
	HandoffDelivered int
	EntityFailures   int
}

func NewRunStats() *RunStats {
	return &RunStats{
		PostingsBySource: make(map[string]int),
		SourceFailures:   make(map[string]string),
	}
}

// PartialFailure reports whether the run completed but lost at least one
// source or entity along the way.
func (s *RunStats) PartialFailure() bool {
	return len(s.SourceFailures) > 0 || s.EntityFailures > 0
}
