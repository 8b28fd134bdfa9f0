package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"leadgen-engine/internal/domain"
)

// EnsureList returns the id of the named prospect list, creating it if the
// account does not have one yet.
func (c *Client) EnsureList(ctx context.Context, name string) (string, error) {
	raw, err := c.Get(ctx, "/v1/get-user-lists", nil)
	if err != nil {
		return "", err
	}

	var lists []struct {
		ID   json.Number `json:"id"`
		Name string      `json:"name"`
	}
	// The endpoint returns either a bare array or {"data": [...]}.
	if err := json.Unmarshal(raw, &lists); err != nil {
		var wrapped struct {
			Data []struct {
				ID   json.Number `json:"id"`
				Name string      `json:"name"`
			} `json:"data"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return "", fmt.Errorf("decode user lists: %w", err)
		}
		lists = wrapped.Data
	}

	for _, l := range lists {
		if l.Name == name {
			return l.ID.String(), nil
		}
	}

	raw, err = c.Post(ctx, "/v1/lists", map[string]any{"name": name})
	if err != nil {
		return "", err
	}
	var created struct {
		ID   json.Number `json:"id"`
		Data struct {
			ID json.Number `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &created); err != nil {
		return "", fmt.Errorf("decode created list: %w", err)
	}
	id := created.Data.ID.String()
	if id == "" || id == "0" {
		id = created.ID.String()
	}
	if id == "" || id == "0" {
		return "", fmt.Errorf("create list %q: no id in response", name)
	}
	log.Printf("[gateway] created prospect list %q id=%s", name, id)
	return id, nil
}

// AddProspectToList registers a prospect on a list, which enrolls them in any
// campaign attached to that list.
func (c *Client) AddProspectToList(ctx context.Context, listID string, p domain.Prospect) (bool, error) {
	site := p.CompanyDomain
	if site != "" && !strings.HasPrefix(site, "http") {
		site = "https://" + site
	}

	raw, err := c.Post(ctx, "/v1/add-prospect-to-list", map[string]any{
		"listId":           listID,
		"email":            p.Email,
		"firstName":        p.FirstName,
		"lastName":         p.LastName,
		"fullName":         p.FullName,
		"position":         p.Position,
		"companyName":      p.CompanyName,
		"companySite":      site,
		"updateContact":    false,
		"createDuplicates": false,
	})
	if err != nil {
		return false, err
	}

	var payload struct {
		Added bool `json:"added"`
		Data  struct {
			Added bool `json:"added"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return false, fmt.Errorf("decode add-prospect response: %w", err)
	}
	return payload.Added || payload.Data.Added, nil
}
