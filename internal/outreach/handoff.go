// Package outreach is the boundary to the campaign side: finalized, verified
// contacts are handed off here for draft generation and enrollment. The
// engine only delivers; everything downstream is external.
package outreach

import (
	"context"
	"fmt"
	"log"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/gateway"
)

// Handoff receives newly committed contacts at the end of a pipeline run.
type Handoff interface {
	Deliver(ctx context.Context, p domain.Prospect) error
}

// ListHandoff enrolls contacts on a gateway prospect list, which attaches
// them to whatever campaign is bound to that list upstream.
type ListHandoff struct {
	gw       *gateway.Client
	listName string
	listID   string
}

func NewListHandoff(gw *gateway.Client, listName, listID string) *ListHandoff {
	if listName == "" {
		listName = "Multi-Source Leads"
	}
	return &ListHandoff{gw: gw, listName: listName, listID: listID}
}

func (h *ListHandoff) Deliver(ctx context.Context, p domain.Prospect) error {
	if h.listID == "" {
		id, err := h.gw.EnsureList(ctx, h.listName)
		if err != nil {
			return fmt.Errorf("outreach: ensure list: %w", err)
		}
		h.listID = id
	}

	added, err := h.gw.AddProspectToList(ctx, h.listID, p)
	if err != nil {
		return fmt.Errorf("outreach: add prospect %s: %w", p.NormalizedEmail(), err)
	}
	if !added {
		log.Printf("[outreach] %s not added (already on list %s?)", p.NormalizedEmail(), h.listID)
	}
	return nil
}

// LogHandoff is the no-op sink used when no campaign list is configured.
type LogHandoff struct{}

func (LogHandoff) Deliver(_ context.Context, p domain.Prospect) error {
	log.Printf("[outreach] would deliver %s (%s)", p.NormalizedEmail(), p.Verification)
	return nil
}
