package zoom

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angelajfisher/call-logger/internal/metrics"
	"github.com/angelajfisher/call-logger/internal/types"
)

func newTokenServer(t *testing.T, calls *int32, expiresIn int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := atomic.AddInt32(calls, 1)

		if r.Method != http.MethodPost || r.URL.Path != "/oauth/token" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("grant_type") != "account_credentials" {
			t.Errorf("expected account_credentials grant, got %q", r.URL.Query().Get("grant_type"))
		}
		if r.URL.Query().Get("account_id") != "acct_1" {
			t.Errorf("expected account id, got %q", r.URL.Query().Get("account_id"))
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client_1" || pass != "secret_1" {
			t.Errorf("expected basic auth client_1:secret_1, got %q:%q", user, pass)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"token_%d","token_type":"bearer","expires_in":%d}`, current, expiresIn)
	}))
}

func TestTokenCacheReusesTokenWithinValidity(t *testing.T) {
	var calls int32
	server := newTokenServer(t, &calls, 3600)
	defer server.Close()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cache := NewTokenCache(TokenCacheConfig{
		AccountID:    "acct_1",
		ClientID:     "client_1",
		ClientSecret: "secret_1",
		OAuthURL:     server.URL,
		HTTPClient:   server.Client(),
		Now:          func() time.Time { return now },
	})

	first, err := cache.Get(context.Background())
	if err != nil {
		t.Fatalf("first get: %v", err)
	}

	now = now.Add(30 * time.Minute)
	second, err := cache.Get(context.Background())
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	third, err := cache.Get(context.Background())
	if err != nil {
		t.Fatalf("third get: %v", err)
	}

	if first != "token_1" || second != first || third != first {
		t.Fatalf("expected cached token reuse, got %q %q %q", first, second, third)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a single exchange, got %d", atomic.LoadInt32(&calls))
	}
}

func TestTokenCacheRefreshesAfterExpiry(t *testing.T) {
	var calls int32
	server := newTokenServer(t, &calls, 3600)
	defer server.Close()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cache := NewTokenCache(TokenCacheConfig{
		AccountID:    "acct_1",
		ClientID:     "client_1",
		ClientSecret: "secret_1",
		OAuthURL:     server.URL,
		HTTPClient:   server.Client(),
		Now:          func() time.Time { return now },
	})

	if _, err := cache.Get(context.Background()); err != nil {
		t.Fatalf("first get: %v", err)
	}

	// One second before the 60s safety margin runs out the token is still served
	now = now.Add(3600*time.Second - 61*time.Second)
	if token, _ := cache.Get(context.Background()); token != "token_1" {
		t.Fatalf("expected cached token before margin, got %q", token)
	}

	// Expiry is exclusive
	now = now.Add(time.Second)
	token, err := cache.Get(context.Background())
	if err != nil {
		t.Fatalf("refresh get: %v", err)
	}
	if token != "token_2" {
		t.Fatalf("expected refreshed token, got %q", token)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected exactly one refresh, got %d exchanges", atomic.LoadInt32(&calls))
	}
}

func TestTokenCacheForceRefreshAlwaysExchanges(t *testing.T) {
	var calls int32
	server := newTokenServer(t, &calls, 3600)
	defer server.Close()

	cache := NewTokenCache(TokenCacheConfig{
		AccountID:    "acct_1",
		ClientID:     "client_1",
		ClientSecret: "secret_1",
		OAuthURL:     server.URL,
		HTTPClient:   server.Client(),
	})

	if _, err := cache.Get(context.Background()); err != nil {
		t.Fatalf("get: %v", err)
	}
	token, err := cache.ForceRefresh(context.Background())
	if err != nil {
		t.Fatalf("force refresh: %v", err)
	}
	if token != "token_2" {
		t.Fatalf("expected new token, got %q", token)
	}
	if cached, _ := cache.Get(context.Background()); cached != "token_2" {
		t.Fatalf("expected forced token to be cached, got %q", cached)
	}
}

func TestTokenCacheNonSuccessReturnsAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"reason":"Invalid client_id or client_secret","error":"invalid_client"}`))
	}))
	defer server.Close()

	m := metrics.New()
	cache := NewTokenCache(TokenCacheConfig{
		AccountID:    "acct_1",
		ClientID:     "client_1",
		ClientSecret: "wrong",
		OAuthURL:     server.URL,
		HTTPClient:   server.Client(),
		Metrics:      m,
	})

	_, err := cache.Get(context.Background())
	if err == nil {
		t.Fatalf("expected token exchange error")
	}
	if !types.IsTextCode(err, types.ErrorUpstreamAuth) {
		t.Fatalf("expected upstream auth error, got %v", err)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `calllogger_token_exchanges_total{result="failure"} 1`) {
		t.Fatalf("expected failed exchange to be counted, got:\n%s", rec.Body.String())
	}
}

func TestTokenCacheRequiresCredentials(t *testing.T) {
	cache := NewTokenCache(TokenCacheConfig{AccountID: "acct_1", ClientID: "client_1"})
	_, err := cache.Get(context.Background())
	if !types.IsTextCode(err, types.ErrorConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
