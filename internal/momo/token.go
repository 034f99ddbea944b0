// momo-gateway/internal/momo/token.go
package momo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/example/momo-gateway/internal/config"
	apperr "github.com/example/momo-gateway/pkg/errors"
	m "github.com/example/momo-gateway/pkg/metrics"
)

// tokenSafetyMargin keeps us from racing expiry mid-request.
const tokenSafetyMargin = 60 * time.Second

const tokenRequestTimeout = 10 * time.Second

// CredentialSource resolves the credential set for a scope without
// touching the network.
type CredentialSource interface {
	Credentials(scope config.Scope) (config.CredentialSet, error)
}

type cachedToken struct {
	value     string
	issuedAt  time.Time
	expiresAt time.Time
}

func (t cachedToken) usable(now time.Time) bool {
	return t.value != "" && now.Before(t.expiresAt.Add(-tokenSafetyMargin))
}

// TokenCache holds one short-lived bearer token per scope. Concurrent
// refreshes for the same scope are allowed to race; last write wins at
// the cost of at most one redundant token call.
type TokenCache struct {
	baseURL string
	creds   CredentialSource
	client  *http.Client

	mu     sync.RWMutex
	tokens map[config.Scope]cachedToken

	nowFn func() time.Time
}

func NewTokenCache(baseURL string, creds CredentialSource) *TokenCache {
	return &TokenCache{
		baseURL: baseURL,
		creds:   creds,
		client:  &http.Client{Timeout: tokenRequestTimeout},
		tokens:  make(map[config.Scope]cachedToken),
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// GetToken returns a usable bearer token for the scope, refreshing it
// from the provider only when absent or inside the safety margin.
func (tc *TokenCache) GetToken(ctx context.Context, scope config.Scope) (string, error) {
	now := tc.nowFn()

	tc.mu.RLock()
	tok := tc.tokens[scope]
	tc.mu.RUnlock()
	if tok.usable(now) {
		return tok.value, nil
	}

	cs, err := tc.creds.Credentials(scope)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/%s/token/", tc.baseURL, scope), nil)
	if err != nil {
		return "", apperr.Wrap(apperr.KindTransient, "token_request", "build token request", err)
	}
	req.SetBasicAuth(cs.UserID, cs.APIKey)
	req.Header.Set("Ocp-Apim-Subscription-Key", cs.SubscriptionKey)

	resp, err := tc.client.Do(req)
	if err != nil {
		m.IncTokenRefresh(string(scope), "transport_error")
		return "", apperr.Wrap(apperr.KindTransient, "token_transport", "token endpoint unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		// Never cache anything on an auth failure; the operator has to
		// fix credentials before a retry makes sense.
		m.IncTokenRefresh(string(scope), "auth_error")
		return "", apperr.New(apperr.KindAuth, "token_denied",
			fmt.Sprintf("provider rejected %s credentials (HTTP %d)", scope, resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		m.IncTokenRefresh(string(scope), "error")
		return "", apperr.New(apperr.KindTransient, "token_status",
			fmt.Sprintf("token endpoint HTTP %d: %s", resp.StatusCode, body))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil || tr.AccessToken == "" {
		m.IncTokenRefresh(string(scope), "error")
		return "", apperr.Wrap(apperr.KindTransient, "token_decode", "bad token response", err)
	}
	if tr.ExpiresIn <= 0 {
		tr.ExpiresIn = 3600
	}

	fresh := cachedToken{
		value:     tr.AccessToken,
		issuedAt:  now,
		expiresAt: now.Add(time.Duration(tr.ExpiresIn) * time.Second),
	}
	tc.mu.Lock()
	tc.tokens[scope] = fresh // replace wholesale, never patch
	tc.mu.Unlock()

	m.IncTokenRefresh(string(scope), "ok")
	return fresh.value, nil
}

// Clear drops all cached tokens. Used by tests and after repeated auth
// failures.
func (tc *TokenCache) Clear() {
	tc.mu.Lock()
	tc.tokens = make(map[config.Scope]cachedToken)
	tc.mu.Unlock()
}
