package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// TestNewClient tests client construction with various options.
func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("https://api.example.com", "test-key")

		if c.baseURL != "https://api.example.com" {
			t.Errorf("baseURL = %q, want %q", c.baseURL, "https://api.example.com")
		}
		if c.apiKey != "test-key" {
			t.Errorf("apiKey = %q, want %q", c.apiKey, "test-key")
		}
		if c.httpClient.Timeout != 20*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 20*time.Second)
		}
		if c.maxRetries != 0 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 0)
		}
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
	})

	t.Run("with multiple options", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		c := NewClient("https://api.example.com", "key",
			WithTimeout(15*time.Second),
			WithRetries(2, 500*time.Millisecond),
			WithLogger(logger),
		)
		if c.httpClient.Timeout != 15*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 15*time.Second)
		}
		if c.maxRetries != 2 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 2)
		}
		if c.retryBackoff != 500*time.Millisecond {
			t.Errorf("retryBackoff = %v, want %v", c.retryBackoff, 500*time.Millisecond)
		}
		if c.logger != logger {
			t.Error("logger not set correctly")
		}
	})

	t.Run("nil logger keeps default", func(t *testing.T) {
		c := NewClient("https://api.example.com", "", WithLogger(nil))
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
	})
}

// TestAPIError tests the APIError type.
func TestAPIError(t *testing.T) {
	err := &APIError{StatusCode: 401, Message: "Unauthorized"}
	if err.Error() != "odds api error 401: Unauthorized" {
		t.Errorf("Error() = %q, want %q", err.Error(), "odds api error 401: Unauthorized")
	}

	tests := []struct {
		code     int
		expected bool
	}{
		{500, true},
		{503, true},
		{429, true},
		{400, false},
		{401, false},
		{404, false},
	}
	for _, tt := range tests {
		err := &APIError{StatusCode: tt.code}
		if got := err.IsRetryable(); got != tt.expected {
			t.Errorf("IsRetryable() for status %d = %v, want %v", tt.code, got, tt.expected)
		}
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"api error", &APIError{StatusCode: 503}, true},
		{"wrapped api error", errors.Join(errors.New("get odds"), &APIError{StatusCode: 401}), true},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"decode", errors.New("unmarshal response: bad json"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestGetOdds(t *testing.T) {
	t.Run("sends query and decodes events", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/sports/soccer_epl/odds" {
				t.Errorf("path = %q, want %q", r.URL.Path, "/sports/soccer_epl/odds")
			}
			q := r.URL.Query()
			if q.Get("apiKey") != "test-key" {
				t.Errorf("apiKey = %q, want %q", q.Get("apiKey"), "test-key")
			}
			if q.Get("regions") != "eu,uk" {
				t.Errorf("regions = %q, want %q", q.Get("regions"), "eu,uk")
			}
			if q.Get("markets") != "h2h,totals" {
				t.Errorf("markets = %q, want %q", q.Get("markets"), "h2h,totals")
			}
			if q.Get("oddsFormat") != "decimal" {
				t.Errorf("oddsFormat = %q, want %q", q.Get("oddsFormat"), "decimal")
			}
			if q.Get("dateFormat") != "iso" {
				t.Errorf("dateFormat = %q, want %q", q.Get("dateFormat"), "iso")
			}
			if q.Has("bookmakers") {
				t.Errorf("bookmakers should not be sent when empty")
			}
			w.Header().Set("x-requests-remaining", "480")
			w.Header().Set("x-requests-used", "20")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`[{"id":"e1","sport_key":"soccer_epl","commence_time":"2025-10-19T16:00:00Z",
				"home_team":"Arsenal","away_team":"Chelsea",
				"bookmakers":[{"key":"pinnacle","markets":[{"key":"totals","outcomes":[
					{"name":"Over","price":1.8,"point":2.5},{"name":"Under","price":2.05,"point":2.5}]}]}]}]`))
		}))
		defer server.Close()

		var quota Quota
		c := NewClient(server.URL, "test-key", WithQuotaHook(func(q Quota) { quota = q }))
		events, err := c.GetOdds(context.Background(), "soccer_epl", OddsOptions{
			Regions: []string{"eu", "uk"},
			Markets: []string{"h2h", "totals"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(events) != 1 {
			t.Fatalf("len(events) = %d, want 1", len(events))
		}
		if events[0].HomeTeam != "Arsenal" {
			t.Errorf("HomeTeam = %q, want %q", events[0].HomeTeam, "Arsenal")
		}
		if got := events[0].Bookmakers[0].Markets[0].Outcomes[1].Selection(); got != "UNDER_2.5" {
			t.Errorf("selection = %q, want %q", got, "UNDER_2.5")
		}
		if quota.Remaining != 480 || quota.Used != 20 {
			t.Errorf("quota = %+v, want {480 20}", quota)
		}
	})

	t.Run("missing sport key", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:0", "key")
		if _, err := c.GetOdds(context.Background(), "", OddsOptions{}); err == nil {
			t.Fatal("expected error, got nil")
		}
	})

	t.Run("error status is transient and not retried", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`busy`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "key")
		_, err := c.GetOdds(context.Background(), "soccer_epl", OddsOptions{})
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !IsTransient(err) {
			t.Errorf("IsTransient(%v) = false, want true", err)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != 503 {
			t.Errorf("expected wrapped *APIError 503, got %v", err)
		}
		if attempts != 1 {
			t.Errorf("attempts = %d, want 1", attempts)
		}
	})

	t.Run("timeout is transient", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		c := NewClient(server.URL, "key", WithTimeout(20*time.Millisecond))
		_, err := c.GetOdds(context.Background(), "soccer_epl", OddsOptions{})
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !IsTransient(err) {
			t.Errorf("IsTransient(%v) = false, want true", err)
		}
	})

	t.Run("invalid JSON response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{not json`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "key")
		_, err := c.GetOdds(context.Background(), "soccer_epl", OddsOptions{})
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "unmarshal response") {
			t.Errorf("error should mention unmarshal, got %v", err)
		}
	})
}

// TestDoWithRetry tests the retry logic when retries are enabled.
func TestDoWithRetry(t *testing.T) {
	t.Run("retries on 429 and succeeds", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := atomic.AddInt32(&attempts, 1)
			if n < 2 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`[]`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "key", WithRetries(3, 10*time.Millisecond))
		body, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != `[]` {
			t.Errorf("body = %q, want %q", string(body), `[]`)
		}
		if attempts != 2 {
			t.Errorf("attempts = %d, want 2", attempts)
		}
	})

	t.Run("does not retry on 4xx", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		c := NewClient(server.URL, "key", WithRetries(3, 10*time.Millisecond))
		if _, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil); err == nil {
			t.Fatal("expected error, got nil")
		}
		if attempts != 1 {
			t.Errorf("attempts = %d, want 1", attempts)
		}
	})

	t.Run("max retries exceeded", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		c := NewClient(server.URL, "key", WithRetries(2, 5*time.Millisecond))
		_, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil)
		if err == nil || !strings.Contains(err.Error(), "max retries exceeded") {
			t.Errorf("error = %v, want max retries exceeded", err)
		}
	})
}
