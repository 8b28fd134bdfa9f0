package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"leadgen-engine/internal/domain"
)

// Most v2 endpoints are asynchronous: a start call returns a task_hash and the
// result is polled until ready. Polls go through the same rate gate as every
// other call.

type taskEnvelope struct {
	TaskHash string `json:"task_hash"`
	Data     struct {
		TaskHash string `json:"task_hash"`
	} `json:"data"`
}

func (e taskEnvelope) hash() string {
	if e.TaskHash != "" {
		return e.TaskHash
	}
	return e.Data.TaskHash
}

type pollResult struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func (c *Client) startTask(ctx context.Context, path string, body any) (string, error) {
	raw, err := c.Post(ctx, path, body)
	if err != nil {
		return "", err
	}
	var env taskEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("decode task start: %w", err)
	}
	if env.hash() == "" {
		return "", fmt.Errorf("no task_hash in start response for %s", path)
	}
	return env.hash(), nil
}

// pollTask polls resultPath until the task completes or maxWait elapses.
// A nil result with nil error means the task never completed; callers treat
// that as "no data", matching how a registry miss is handled.
func (c *Client) pollTask(ctx context.Context, resultPath, taskHash string, maxWait time.Duration) (json.RawMessage, error) {
	deadline := time.Now().Add(maxWait)
	params := url.Values{"task_hash": {taskHash}}

	for time.Now().Before(deadline) {
		raw, err := c.Get(ctx, resultPath, params)
		if err != nil {
			return nil, err
		}
		var res pollResult
		if err := json.Unmarshal(raw, &res); err != nil {
			return nil, fmt.Errorf("decode poll result: %w", err)
		}
		if res.Status == "complete" || len(res.Data) > 0 {
			return res.Data, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}

	log.Printf("[gateway] poll timed out task_hash=%s path=%s", taskHash, resultPath)
	return nil, nil
}

// FindDomainByName resolves a company name to its web domain, or "" if the
// upstream has no answer.
func (c *Client) FindDomainByName(ctx context.Context, companyName string) (string, error) {
	hash, err := c.startTask(ctx, "/v2/company-domain-by-name/start",
		map[string]any{"names": []string{companyName}})
	if err != nil {
		return "", err
	}

	data, err := c.pollTask(ctx, "/v2/company-domain-by-name/result", hash, 30*time.Second)
	if err != nil || data == nil {
		return "", err
	}

	var items []struct {
		Domain string `json:"domain"`
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return "", fmt.Errorf("decode domain result: %w", err)
	}
	if len(items) == 0 {
		return "", nil
	}
	return strings.ToLower(strings.TrimSpace(items[0].Domain)), nil
}

// DomainEmailCount is the free pre-check for how many addresses the upstream
// knows for a domain. Zero means a prospect search would be wasted spend.
func (c *Client) DomainEmailCount(ctx context.Context, dom string) (int, error) {
	raw, err := c.Post(ctx, "/v1/get-domain-emails-count", map[string]any{"domain": dom})
	if err != nil {
		return 0, err
	}
	var payload struct {
		Data struct {
			Total int `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return 0, fmt.Errorf("decode email count: %w", err)
	}
	return payload.Data.Total, nil
}

// ProspectsByDomain returns prospect profiles for a domain, optionally
// filtered by target positions (upstream caps the filter at 10).
func (c *Client) ProspectsByDomain(ctx context.Context, dom string, positions []string) ([]domain.Prospect, error) {
	body := map[string]any{"domain": dom, "page": 1}
	if len(positions) > 0 {
		if len(positions) > 10 {
			positions = positions[:10]
		}
		body["positions[]"] = positions
	}

	hash, err := c.startTask(ctx, "/v2/domain-search/prospects/start", body)
	if err != nil {
		return nil, err
	}

	data, err := c.pollTask(ctx, "/v2/domain-search/prospects/result/"+hash, hash, 30*time.Second)
	if err != nil || data == nil {
		return nil, err
	}

	var items []struct {
		FirstName   string `json:"first_name"`
		LastName    string `json:"last_name"`
		Position    string `json:"position"`
		LinkedInURL string `json:"linkedin_url"`
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode prospects: %w", err)
	}

	out := make([]domain.Prospect, 0, len(items))
	for _, it := range items {
		out = append(out, domain.Prospect{
			FirstName:     it.FirstName,
			LastName:      it.LastName,
			FullName:      strings.TrimSpace(it.FirstName + " " + it.LastName),
			Position:      it.Position,
			CompanyDomain: dom,
			Verification:  domain.VerifyUnverified,
			DiscoveredVia: domain.ViaGatewaySearch,
			LinkedInURL:   it.LinkedInURL,
		})
	}
	return out, nil
}

// EmailByName finds a person's address given name and domain. Returns the
// address and its reported smtp status, or "" if none found.
func (c *Client) EmailByName(ctx context.Context, firstName, lastName, dom string) (email, smtpStatus string, err error) {
	hash, err := c.startTask(ctx, "/v2/emails-by-domain-by-name/start", map[string]any{
		"names[]": []map[string]string{{
			"first_name": firstName,
			"last_name":  lastName,
			"domain":     dom,
		}},
	})
	if err != nil {
		return "", "", err
	}

	data, err := c.pollTask(ctx, "/v2/emails-by-domain-by-name/result", hash, 30*time.Second)
	if err != nil || data == nil {
		return "", "", err
	}

	var items []struct {
		Email      string `json:"email"`
		SMTPStatus string `json:"smtp_status"`
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return "", "", fmt.Errorf("decode email result: %w", err)
	}
	if len(items) == 0 || items[0].Email == "" {
		return "", "", nil
	}
	return items[0].Email, items[0].SMTPStatus, nil
}

// VerifyEmail classifies an address as valid, invalid, or risky.
// The upstream reports smtp_status "valid" / "not_valid" / anything else
// (unknown, greylisted, catch-all); everything else maps to risky.
func (c *Client) VerifyEmail(ctx context.Context, email string) (string, error) {
	hash, err := c.startTask(ctx, "/v2/email-verification/start",
		map[string]any{"emails": []string{email}})
	if err != nil {
		return "", err
	}

	// Verification can take 5-15s upstream.
	data, err := c.pollTask(ctx, "/v2/email-verification/result", hash, 60*time.Second)
	if err != nil {
		return "", err
	}
	if data == nil {
		return domain.VerifyRisky, nil
	}

	var items []struct {
		Email  string `json:"email"`
		Result struct {
			SMTPStatus string `json:"smtp_status"`
		} `json:"result"`
		SMTPStatus string `json:"smtp_status"`
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return "", fmt.Errorf("decode verification: %w", err)
	}
	if len(items) == 0 {
		return domain.VerifyRisky, nil
	}

	status := items[0].Result.SMTPStatus
	if status == "" {
		status = items[0].SMTPStatus
	}
	return ClassifySMTPStatus(status), nil
}

// ClassifySMTPStatus maps the upstream tri-state onto verification states.
func ClassifySMTPStatus(smtpStatus string) string {
	switch strings.ToLower(strings.TrimSpace(smtpStatus)) {
	case "valid":
		return domain.VerifyValid
	case "not_valid":
		return domain.VerifyInvalid
	default:
		return domain.VerifyRisky
	}
}

// Balance returns the account's remaining credit balance.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	raw, err := c.Get(ctx, "/v1/get-balance", nil)
	if err != nil {
		return 0, err
	}
	var payload struct {
		Data struct {
			Balance float64 `json:"balance"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return 0, fmt.Errorf("decode balance: %w", err)
	}
	return payload.Data.Balance, nil
}
