// momo-gateway/internal/momo/helpers_test.go
package momo

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/example/momo-gateway/internal/config"
	"github.com/example/momo-gateway/internal/intent"
)

type stubCreds struct {
	cs  config.CredentialSet
	err error
}

func (s stubCreds) Credentials(scope config.Scope) (config.CredentialSet, error) {
	if s.err != nil {
		return config.CredentialSet{}, s.err
	}
	cs := s.cs
	cs.Scope = scope
	return cs, nil
}

func testCreds() stubCreds {
	return stubCreds{cs: config.CredentialSet{
		UserID:          "api-user",
		APIKey:          "api-key",
		SubscriptionKey: "sub-key",
		CallbackBaseURL: "https://app.example.com",
	}}
}

// fakeProvider is a minimal provider: it always issues tokens and routes
// everything else to handle. calls counts non-token requests.
type fakeProvider struct {
	srv    *httptest.Server
	calls  atomic.Int64
	tokens atomic.Int64
}

func newFakeProvider(t *testing.T, handle http.HandlerFunc) *fakeProvider {
	t.Helper()
	fp := &fakeProvider{}
	mux := http.NewServeMux()
	mux.HandleFunc("/collection/token/", fp.tokenHandler)
	mux.HandleFunc("/disbursement/token/", fp.tokenHandler)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fp.calls.Add(1)
		handle(w, r)
	})
	fp.srv = httptest.NewServer(mux)
	t.Cleanup(fp.srv.Close)
	return fp
}

func (fp *fakeProvider) tokenHandler(w http.ResponseWriter, _ *http.Request) {
	fp.tokens.Add(1)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": "tok-123", "token_type": "access_token", "expires_in": 3600,
	})
}

func newTestStack(t *testing.T, handle http.HandlerFunc) (*fakeProvider, *Client, *intent.MemoryStore) {
	t.Helper()
	fp := newFakeProvider(t, handle)
	creds := testCreds()
	tokens := NewTokenCache(fp.srv.URL, creds)
	client := NewClient(fp.srv.URL, "sandbox", creds, tokens)
	return fp, client, intent.NewMemoryStore()
}
