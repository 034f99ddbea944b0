// momo-gateway/internal/momo/gateway.go
package momo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/momo-gateway/internal/config"
	"github.com/example/momo-gateway/internal/intent"
	apperr "github.com/example/momo-gateway/pkg/errors"
	m "github.com/example/momo-gateway/pkg/metrics"
)

// Gateway drives one endpoint family (collection request-to-pay or
// disbursement transfer). Both scopes share the same protocol shape, so
// a single implementation is parameterized instead of duplicated.
type Gateway struct {
	client *Client
	store  intent.Store

	scope        config.Scope
	direction    intent.Direction
	initiatePath string
	statusPath   string
	partyField   string // "payer" on collection, "payee" on disbursement
	// Disbursement moves money out, so a malformed recipient is validated
	// client-side before any network call. Collection only requests money
	// in and stays lenient.
	strictPartyCheck bool
}

func NewCollectionGateway(client *Client, store intent.Store) *Gateway {
	return &Gateway{
		client:       client,
		store:        store,
		scope:        config.ScopeCollection,
		direction:    intent.DirectionCollect,
		initiatePath: "/collection/v1_0/requesttopay",
		statusPath:   "/collection/v1_0/requesttopay/",
		partyField:   "payer",
	}
}

func NewDisbursementGateway(client *Client, store intent.Store) *Gateway {
	return &Gateway{
		client:           client,
		store:            store,
		scope:            config.ScopeDisbursement,
		direction:        intent.DirectionDisburse,
		initiatePath:     "/disbursement/v1_0/transfer",
		statusPath:       "/disbursement/v1_0/transfer/",
		partyField:       "payee",
		strictPartyCheck: true,
	}
}

// InitiateRequest carries the caller-supplied inputs for one payment.
// ExternalID is the caller's idempotency key; generated when empty.
type InitiateRequest struct {
	Amount     string
	Currency   string
	Phone      string
	Note       string
	ExternalID string
}

type initiateBody struct {
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	ExternalID   string `json:"externalId"`
	Payer        *party `json:"payer,omitempty"`
	Payee        *party `json:"payee,omitempty"`
	PayerMessage string `json:"payerMessage"`
	PayeeNote    string `json:"payeeNote"`
}

type party struct {
	PartyIDType string `json:"partyIdType"`
	PartyID     string `json:"partyId"`
}

type statusBody struct {
	Status                 string `json:"status"`
	Amount                 string `json:"amount"`
	Currency               string `json:"currency"`
	Reason                 string `json:"reason"`
	FinancialTransactionID string `json:"financialTransactionId"`
}

// Initiate submits one payment and stores the resulting intent. HTTP
// acceptance (202) is distinct from final settlement: the intent comes
// back PENDING and settles later via poll or webhook.
func (g *Gateway) Initiate(ctx context.Context, req InitiateRequest) (intent.PaymentIntent, error) {
	if err := g.validate(req); err != nil {
		return intent.PaymentIntent{}, err
	}

	referenceID := uuid.NewString()
	externalID := req.ExternalID
	if externalID == "" {
		externalID = uuid.NewString()
	}

	body := initiateBody{
		Amount:       req.Amount,
		Currency:     strings.ToUpper(req.Currency),
		ExternalID:   externalID,
		PayerMessage: req.Note,
		PayeeNote:    req.Note,
	}
	p := &party{PartyIDType: "MSISDN", PartyID: req.Phone}
	if g.partyField == "payer" {
		body.Payer = p
	} else {
		body.Payee = p
	}

	it := intent.PaymentIntent{
		ReferenceID:       referenceID,
		ExternalID:        externalID,
		Direction:         g.direction,
		Scope:             g.scope,
		Amount:            body.Amount,
		Currency:          body.Currency,
		CounterpartyPhone: req.Phone,
		Status:            intent.StatusPending,
		CreatedAt:         time.Now().UTC(),
	}

	status, respBody, err := g.client.Execute(ctx, g.scope, http.MethodPost, g.initiatePath, referenceID, body)
	if err != nil {
		if IsTimeout(err) {
			// The provider may have accepted the request even though we
			// timed out. Persist the intent as UNKNOWN; the caller must
			// reconcile via CheckStatus before retrying. The caller's
			// context is already dead here, so persist on a fresh one.
			it.Status = intent.StatusUnknown
			persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if serr := g.store.Create(persistCtx, it); serr != nil {
				return intent.PaymentIntent{}, serr
			}
			m.IncProviderCall(string(g.scope), "initiate", "unknown")
			return it, apperr.Wrap(apperr.KindUnknownOutcome, "initiate_timeout",
				"initiation timed out, outcome unknown: poll before retrying", err)
		}
		m.IncProviderCall(string(g.scope), "initiate", "transport_error")
		return intent.PaymentIntent{}, err
	}

	switch {
	case status == http.StatusAccepted || status == http.StatusOK:
		if err := g.store.Create(ctx, it); err != nil {
			return intent.PaymentIntent{}, err
		}
		m.IncProviderCall(string(g.scope), "initiate", "accepted")
		return it, nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		m.IncProviderCall(string(g.scope), "initiate", "auth_error")
		return intent.PaymentIntent{}, apperr.New(apperr.KindAuth, "initiate_denied",
			fmt.Sprintf("provider rejected %s credentials (HTTP %d)", g.scope, status))
	case status >= 400 && status < 500:
		m.IncProviderCall(string(g.scope), "initiate", "rejected")
		return intent.PaymentIntent{}, apperr.New(apperr.KindValidation, "initiate_rejected",
			fmt.Sprintf("provider rejected request (HTTP %d): %s", status, providerReason(respBody)))
	default:
		m.IncProviderCall(string(g.scope), "initiate", "provider_error")
		return intent.PaymentIntent{}, apperr.New(apperr.KindTransient, "initiate_upstream",
			fmt.Sprintf("provider error (HTTP %d)", status))
	}
}

// CheckStatus queries the provider for the settlement status of a
// reference and reconciles the stored intent with the answer.
func (g *Gateway) CheckStatus(ctx context.Context, referenceID string) (intent.PaymentIntent, error) {
	status, respBody, err := g.client.Execute(ctx, g.scope, http.MethodGet, g.statusPath+referenceID, "", nil)
	if err != nil {
		m.IncProviderCall(string(g.scope), "status", "transport_error")
		return intent.PaymentIntent{}, err
	}

	switch {
	case status == http.StatusNotFound:
		// Distinct from FAILED: callers use this to tell "not yet
		// replicated" apart from "genuinely absent".
		m.IncProviderCall(string(g.scope), "status", "not_found")
		return intent.PaymentIntent{}, apperr.New(apperr.KindNotFound, "reference_unknown",
			"provider has no record of reference "+referenceID)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		m.IncProviderCall(string(g.scope), "status", "auth_error")
		return intent.PaymentIntent{}, apperr.New(apperr.KindAuth, "status_denied",
			fmt.Sprintf("provider rejected %s credentials (HTTP %d)", g.scope, status))
	case status != http.StatusOK:
		m.IncProviderCall(string(g.scope), "status", "provider_error")
		return intent.PaymentIntent{}, apperr.New(apperr.KindTransient, "status_upstream",
			fmt.Sprintf("provider error (HTTP %d)", status))
	}

	var sb statusBody
	if err := json.Unmarshal(respBody, &sb); err != nil {
		m.IncProviderCall(string(g.scope), "status", "bad_body")
		return intent.PaymentIntent{}, apperr.Wrap(apperr.KindTransient, "status_decode",
			"bad status response", err)
	}
	m.IncProviderCall(string(g.scope), "status", "ok")

	return g.store.Apply(ctx, intent.ReconciliationEvent{
		ReferenceID:       referenceID,
		NewStatus:         MapProviderStatus(sb.Status),
		Amount:            sb.Amount,
		Currency:          sb.Currency,
		Reason:            sb.Reason,
		ProviderReference: sb.FinancialTransactionID,
		Source:            "poll",
	})
}

func (g *Gateway) validate(req InitiateRequest) error {
	amt, err := strconv.ParseFloat(req.Amount, 64)
	if err != nil || amt <= 0 {
		return apperr.New(apperr.KindValidation, "bad_amount",
			fmt.Sprintf("amount must be a positive number, got %q", req.Amount))
	}
	if len(req.Currency) != 3 {
		return apperr.New(apperr.KindValidation, "bad_currency",
			fmt.Sprintf("currency must be a 3-letter code, got %q", req.Currency))
	}
	if strings.TrimSpace(req.Phone) == "" {
		return apperr.New(apperr.KindValidation, "missing_phone", "counterparty phone is required")
	}
	if g.strictPartyCheck {
		if err := ValidateMSISDN(req.Phone); err != nil {
			return err
		}
	}
	return nil
}

// ValidateMSISDN enforces a wallet-address shape: 8 to 15 digits with an
// optional leading +. Mandatory on the disbursement path.
func ValidateMSISDN(phone string) error {
	p := strings.TrimPrefix(phone, "+")
	if len(p) < 8 || len(p) > 15 {
		return apperr.New(apperr.KindValidation, "bad_msisdn",
			fmt.Sprintf("invalid recipient phone %q", phone))
	}
	for _, r := range p {
		if r < '0' || r > '9' {
			return apperr.New(apperr.KindValidation, "bad_msisdn",
				fmt.Sprintf("invalid recipient phone %q", phone))
		}
	}
	return nil
}

func providerReason(body []byte) string {
	var eb struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &eb); err == nil && (eb.Code != "" || eb.Message != "") {
		return strings.TrimSpace(eb.Code + " " + eb.Message)
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
