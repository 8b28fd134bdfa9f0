package config

import (
	"fmt"
	"strings"
)

// NormalizeAndValidate trims keyword/position lists, fills defaults, and
// checks the handful of settings a run cannot proceed without.
func NormalizeAndValidate(cfg Config) (Config, error) {
	out := cfg
	var errs []string

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Run.Keywords = trimList(out.Run.Keywords)
	out.Run.TargetPositions = trimList(out.Run.TargetPositions)

	if len(out.Run.Keywords) == 0 {
		errs = append(errs, "run.keywords must have at least 1 keyword")
	}
	if !out.Sources.Finn.Enabled && !out.Sources.Nav.Enabled && !out.Sources.Alerts.Enabled {
		errs = append(errs, "no sources enabled: enable finn, nav, or alerts")
	}
	if out.Sources.Alerts.Enabled {
		if out.Sources.Alerts.IMAPHost == "" {
			errs = append(errs, "sources.alerts.imap_host is required when alerts are enabled")
		}
		if out.Sources.Alerts.Username == "" {
			errs = append(errs, "sources.alerts.username is required when alerts are enabled")
		}
	}
	if out.Gateway.ClientID == "" {
		errs = append(errs, "gateway.client_id is required")
	}

	if out.Gateway.BaseURL == "" {
		out.Gateway.BaseURL = "https://api.snov.io"
	}
	if out.Gateway.RequestsPerMin <= 0 {
		out.Gateway.RequestsPerMin = 60
	}
	if out.Gateway.RetryBudget <= 0 {
		out.Gateway.RetryBudget = 2
	}
	if out.Registry.RequestsPerSec <= 0 {
		out.Registry.RequestsPerSec = 2
	}
	if out.Run.SourceSeconds <= 0 {
		out.Run.SourceSeconds = 300
	}
	if out.Sources.Alerts.MaxMessages <= 0 {
		out.Sources.Alerts.MaxMessages = 50
	}
	if out.Sources.Alerts.IMAPPort <= 0 {
		out.Sources.Alerts.IMAPPort = 993
	}

	if len(errs) > 0 {
		return out, fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return out, nil
}
