// momo-gateway/internal/momo/webhook.go
package momo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/example/momo-gateway/internal/intent"
	apperr "github.com/example/momo-gateway/pkg/errors"
	m "github.com/example/momo-gateway/pkg/metrics"
)

// WebhookProcessor validates inbound provider notifications and turns
// them into reconciliation events. It never trusts an unsigned payload.
type WebhookProcessor struct {
	secret []byte
}

func NewWebhookProcessor(secret string) *WebhookProcessor {
	return &WebhookProcessor{secret: []byte(secret)}
}

type webhookPayload struct {
	ExternalID             string `json:"externalId"`
	ReferenceID            string `json:"referenceId"`
	Status                 string `json:"status"`
	Amount                 string `json:"amount"`
	Currency               string `json:"currency"`
	Reason                 string `json:"reason"`
	FinancialTransactionID string `json:"financialTransactionId"`
}

// Handle verifies the signature over the raw payload and maps the
// notification into a ReconciliationEvent. The status mapping is the
// same one the polling path uses; the two must never diverge.
//
// The provider retries on anything but 2xx, so a bad signature is a
// RejectedWebhook the HTTP layer answers with 400, never 500.
func (w *WebhookProcessor) Handle(rawPayload []byte, signatureHeader string) (intent.ReconciliationEvent, error) {
	if !w.signatureValid(rawPayload, signatureHeader) {
		m.IncWebhook("bad_signature")
		return intent.ReconciliationEvent{}, apperr.New(apperr.KindRejectedWebhook,
			"bad_signature", "webhook signature mismatch")
	}

	var p webhookPayload
	if err := json.Unmarshal(rawPayload, &p); err != nil {
		m.IncWebhook("bad_payload")
		return intent.ReconciliationEvent{}, apperr.Wrap(apperr.KindRejectedWebhook,
			"bad_payload", "webhook payload is not valid JSON", err)
	}
	if p.ReferenceID == "" {
		m.IncWebhook("bad_payload")
		return intent.ReconciliationEvent{}, apperr.New(apperr.KindRejectedWebhook,
			"missing_reference", "webhook payload missing referenceId")
	}

	m.IncWebhook("ok")
	return intent.ReconciliationEvent{
		ReferenceID:       p.ReferenceID,
		ExternalID:        p.ExternalID,
		NewStatus:         MapProviderStatus(p.Status),
		Amount:            p.Amount,
		Currency:          p.Currency,
		Reason:            p.Reason,
		ProviderReference: p.FinancialTransactionID,
		Source:            "webhook",
	}, nil
}

// signatureValid recomputes HMAC-SHA256 over the raw body and compares in
// constant time. Accepts the header with or without the "sha256=" prefix.
func (w *WebhookProcessor) signatureValid(rawPayload []byte, signatureHeader string) bool {
	sig := strings.TrimPrefix(strings.TrimSpace(signatureHeader), "sha256=")
	if sig == "" {
		return false
	}
	mac := hmac.New(sha256.New, w.secret)
	mac.Write(rawPayload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(sig)))
}

// Sign computes the signature the provider would send for a payload.
// Exported for tests and the sandbox simulator.
func (w *WebhookProcessor) Sign(rawPayload []byte) string {
	mac := hmac.New(sha256.New, w.secret)
	mac.Write(rawPayload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
