// momo-gateway/internal/momo/token_test.go
package momo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/momo-gateway/internal/config"
	apperr "github.com/example/momo-gateway/pkg/errors"
)

func newTokenServer(t *testing.T, status int, expiresIn int64, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if u, p, ok := r.BasicAuth(); !ok || u != "api-user" || p != "api-key" {
			t.Errorf("bad basic auth: %q %q", u, p)
		}
		if k := r.Header.Get("Ocp-Apim-Subscription-Key"); k != "sub-key" {
			t.Errorf("missing subscription key, got %q", k)
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-abc", "token_type": "access_token", "expires_in": expiresIn,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetTokenCachedWithinLifetime(t *testing.T) {
	var calls atomic.Int64
	srv := newTokenServer(t, http.StatusOK, 3600, &calls)
	tc := NewTokenCache(srv.URL, testCreds())

	for i := 0; i < 3; i++ {
		tok, err := tc.GetToken(context.Background(), config.ScopeCollection)
		if err != nil { t.Fatal(err) }
		if tok != "tok-abc" {
			t.Fatalf("unexpected token %q", tok)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("expected exactly 1 token call, got %d", n)
	}
}

func TestGetTokenScopesCachedIndependently(t *testing.T) {
	var calls atomic.Int64
	srv := newTokenServer(t, http.StatusOK, 3600, &calls)
	tc := NewTokenCache(srv.URL, testCreds())

	if _, err := tc.GetToken(context.Background(), config.ScopeCollection); err != nil { t.Fatal(err) }
	if _, err := tc.GetToken(context.Background(), config.ScopeDisbursement); err != nil { t.Fatal(err) }
	if n := calls.Load(); n != 2 {
		t.Fatalf("expected one token call per scope, got %d", n)
	}
}

func TestGetTokenRefreshesInsideSafetyMargin(t *testing.T) {
	var calls atomic.Int64
	// expires_in 90s: with a 60s margin the token dies 30s after issue.
	srv := newTokenServer(t, http.StatusOK, 90, &calls)
	tc := NewTokenCache(srv.URL, testCreds())

	now := time.Now().UTC()
	tc.nowFn = func() time.Time { return now }
	if _, err := tc.GetToken(context.Background(), config.ScopeCollection); err != nil { t.Fatal(err) }

	tc.nowFn = func() time.Time { return now.Add(31 * time.Second) }
	if _, err := tc.GetToken(context.Background(), config.ScopeCollection); err != nil { t.Fatal(err) }

	if n := calls.Load(); n != 2 {
		t.Fatalf("expected refresh past the safety margin, got %d calls", n)
	}
}

func TestGetTokenAuthFailureNotCached(t *testing.T) {
	var calls atomic.Int64
	srv := newTokenServer(t, http.StatusUnauthorized, 0, &calls)
	tc := NewTokenCache(srv.URL, testCreds())

	for i := 0; i < 2; i++ {
		_, err := tc.GetToken(context.Background(), config.ScopeCollection)
		if !apperr.Is(err, apperr.KindAuth) {
			t.Fatalf("expected AUTH error, got %v", err)
		}
	}
	// No caching on auth failure: both attempts hit the endpoint.
	if n := calls.Load(); n != 2 {
		t.Fatalf("expected 2 calls, got %d", n)
	}
}

func TestGetTokenTransportFailure(t *testing.T) {
	srv := httptest.NewServer(nil)
	srv.Close() // connection refused from here on
	tc := NewTokenCache(srv.URL, testCreds())

	_, err := tc.GetToken(context.Background(), config.ScopeCollection)
	if !apperr.Is(err, apperr.KindTransient) {
		t.Fatalf("expected TRANSIENT error, got %v", err)
	}
}

func TestClearDropsTokens(t *testing.T) {
	var calls atomic.Int64
	srv := newTokenServer(t, http.StatusOK, 3600, &calls)
	tc := NewTokenCache(srv.URL, testCreds())

	if _, err := tc.GetToken(context.Background(), config.ScopeCollection); err != nil { t.Fatal(err) }
	tc.Clear()
	if _, err := tc.GetToken(context.Background(), config.ScopeCollection); err != nil { t.Fatal(err) }
	if n := calls.Load(); n != 2 {
		t.Fatalf("expected refetch after Clear, got %d calls", n)
	}
}

func TestGetTokenConfigErrorNoNetworkCall(t *testing.T) {
	var calls atomic.Int64
	srv := newTokenServer(t, http.StatusOK, 3600, &calls)
	tc := NewTokenCache(srv.URL, stubCreds{err: apperr.New(apperr.KindConfig, "missing_env", "MOMO_DISBURSEMENT_API_KEY is required")})

	_, err := tc.GetToken(context.Background(), config.ScopeDisbursement)
	if !apperr.Is(err, apperr.KindConfig) {
		t.Fatalf("expected CONFIG error, got %v", err)
	}
	if n := calls.Load(); n != 0 {
		t.Fatalf("expected no network call on config error, got %d", n)
	}
}
