package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"leadgen-engine/internal/domain"
)

func tokenHandler(exchanges *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(exchanges, 1)
		if r.FormValue("grant_type") != "client_credentials" {
			http.Error(w, "bad grant", http.StatusBadRequest)
			return
		}
		n := atomic.LoadInt32(exchanges)
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": fmt.Sprintf("tok-%d", n),
			"expires_in":   3600,
		})
	}
}

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New(srv.URL, "cid", "shh", 60, WithMinInterval(time.Millisecond))
}

func TestTokenExchangedOnceAcrossCalls(t *testing.T) {
	var exchanges int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth/access_token", tokenHandler(&exchanges))
	mux.HandleFunc("/v1/get-balance", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			http.Error(w, "nope", http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"data":{"balance":12.5}}`)
	})

	c := newTestClient(t, mux)
	for i := 0; i < 3; i++ {
		bal, err := c.Balance(context.Background())
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if bal != 12.5 {
			t.Fatalf("balance = %v, want 12.5", bal)
		}
	}
	if got := atomic.LoadInt32(&exchanges); got != 1 {
		t.Fatalf("token exchanges = %d, want 1", got)
	}
}

func TestUnauthorizedTriggersSingleRefresh(t *testing.T) {
	var exchanges int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth/access_token", tokenHandler(&exchanges))
	mux.HandleFunc("/v1/get-balance", func(w http.ResponseWriter, r *http.Request) {
		// The first token is treated as expired server-side.
		if r.Header.Get("Authorization") == "Bearer tok-1" {
			http.Error(w, "expired", http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"data":{"balance":3}}`)
	})

	c := newTestClient(t, mux)
	bal, err := c.Balance(context.Background())
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if bal != 3 {
		t.Fatalf("balance = %v, want 3", bal)
	}
	if got := atomic.LoadInt32(&exchanges); got != 2 {
		t.Fatalf("token exchanges = %d, want 2", got)
	}
}

func TestTokenRejectedAfterRefreshIsAuthFailure(t *testing.T) {
	var exchanges int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth/access_token", tokenHandler(&exchanges))
	mux.HandleFunc("/v1/get-balance", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "never", http.StatusUnauthorized)
	})

	c := newTestClient(t, mux)
	_, err := c.Balance(context.Background())
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("err = %v, want ErrAuthFailed", err)
	}
	if got := atomic.LoadInt32(&exchanges); got != 2 {
		t.Fatalf("token exchanges = %d, want 2 (one refresh, no loop)", got)
	}
}

func TestExchangeFailureIsAuthFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusForbidden)
	})

	c := newTestClient(t, mux)
	_, err := c.Balance(context.Background())
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("err = %v, want ErrAuthFailed", err)
	}
}

func TestCallSpacingHolds(t *testing.T) {
	var exchanges int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth/access_token", tokenHandler(&exchanges))
	mux.HandleFunc("/v1/get-balance", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"balance":1}}`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	const interval = 40 * time.Millisecond
	c := New(srv.URL, "cid", "shh", 60, WithMinInterval(interval))

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := c.Balance(context.Background()); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	// First call is immediate; the next two each wait a full slot.
	if elapsed := time.Since(start); elapsed < 2*interval-interval/4 {
		t.Fatalf("3 calls took %v, want at least ~%v", elapsed, 2*interval)
	}
}

func TestUpstreamErrorCarriesStatus(t *testing.T) {
	var exchanges int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth/access_token", tokenHandler(&exchanges))
	mux.HandleFunc("/v1/get-balance", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	c := newTestClient(t, mux)
	_, err := c.Balance(context.Background())
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want *UpstreamError", err)
	}
	if ue.Status != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", ue.Status)
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network", &NetworkError{Err: errors.New("conn reset")}, true},
		{"rate limit", &RateLimitError{RetryAfter: "2"}, true},
		{"server error", &UpstreamError{Status: 503}, true},
		{"client error", &UpstreamError{Status: 404}, false},
		{"auth", fmt.Errorf("wrap: %w", ErrAuthFailed), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Retryable(tc.err); got != tc.want {
				t.Fatalf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestVerifyEmailStartAndPoll(t *testing.T) {
	var exchanges int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth/access_token", tokenHandler(&exchanges))
	mux.HandleFunc("/v2/email-verification/start", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"task_hash":"abc123"}`)
	})
	mux.HandleFunc("/v2/email-verification/result", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("task_hash") != "abc123" {
			http.Error(w, "unknown task", http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"status":"complete","data":[{"email":"a@b.no","result":{"smtp_status":"valid"}}]}`)
	})

	c := newTestClient(t, mux)
	status, err := c.VerifyEmail(context.Background(), "a@b.no")
	if err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	if status != domain.VerifyValid {
		t.Fatalf("status = %q, want valid", status)
	}
}

func TestClassifySMTPStatus(t *testing.T) {
	cases := map[string]string{
		"valid":      domain.VerifyValid,
		"VALID":      domain.VerifyValid,
		"not_valid":  domain.VerifyInvalid,
		"unknown":    domain.VerifyRisky,
		"greylisted": domain.VerifyRisky,
		"":           domain.VerifyRisky,
	}
	for in, want := range cases {
		if got := ClassifySMTPStatus(in); got != want {
			t.Errorf("ClassifySMTPStatus(%q) = %q, want %q", in, got, want)
		}
	}
}
