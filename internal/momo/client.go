// momo-gateway/internal/momo/client.go
package momo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/example/momo-gateway/internal/config"
	apperr "github.com/example/momo-gateway/pkg/errors"
)

const callTimeout = 30 * time.Second

// Client executes authenticated requests against the provider. It attaches
// the bearer token, the scope's subscription key and the target environment
// header, and surfaces the raw status code; it does not interpret business
// semantics.
type Client struct {
	baseURL   string
	targetEnv string
	creds     CredentialSource
	tokens    *TokenCache
	http      *http.Client
}

func NewClient(baseURL, targetEnv string, creds CredentialSource, tokens *TokenCache) *Client {
	return &Client{
		baseURL:   baseURL,
		targetEnv: targetEnv,
		creds:     creds,
		tokens:    tokens,
		http:      &http.Client{Timeout: callTimeout},
	}
}

// Execute performs one provider call. referenceID, when non-empty, is sent
// as X-Reference-Id (initiation calls). The returned body is fully read.
func (c *Client) Execute(ctx context.Context, scope config.Scope, method, path, referenceID string, body any) (int, []byte, error) {
	cs, err := c.creds.Credentials(scope)
	if err != nil {
		return 0, nil, err
	}
	token, err := c.tokens.GetToken(ctx, scope)
	if err != nil {
		return 0, nil, err
	}

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, nil, apperr.Wrap(apperr.KindValidation, "encode_body", "marshal request body", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, apperr.Wrap(apperr.KindTransient, "build_request", "build provider request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Ocp-Apim-Subscription-Key", cs.SubscriptionKey)
	req.Header.Set("X-Target-Environment", c.targetEnv)
	if referenceID != "" {
		req.Header.Set("X-Reference-Id", referenceID)
		req.Header.Set("X-Callback-Url", cs.CallbackBaseURL+"/webhooks/momo")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return 0, nil, apperr.Wrap(apperr.KindTransient, "timeout", "provider call timed out", err)
		}
		return 0, nil, apperr.Wrap(apperr.KindTransient, "transport", "provider unreachable", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, apperr.Wrap(apperr.KindTransient, "read_body", "read provider response", err)
	}
	return resp.StatusCode, respBody, nil
}

// IsTimeout reports whether err stems from a transport timeout, where the
// provider may have accepted the request despite us never seeing the answer.
func IsTimeout(err error) bool {
	var e apperr.E
	if errors.As(err, &e) && e.Code == "timeout" {
		return true
	}
	return false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
