// momo-gateway/internal/momo/gateway_test.go
package momo

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/example/momo-gateway/internal/intent"
	apperr "github.com/example/momo-gateway/pkg/errors"
)

func TestInitiateCollectionAcceptedIsPending(t *testing.T) {
	fp, client, store := newTestStack(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collection/v1_0/requesttopay" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Reference-Id") == "" {
			t.Error("missing X-Reference-Id")
		}
		if r.Header.Get("X-Target-Environment") != "sandbox" {
			t.Error("missing X-Target-Environment")
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["amount"] != "10" || body["currency"] != "EUR" {
			t.Errorf("unexpected body %v", body)
		}
		if _, ok := body["payer"]; !ok {
			t.Error("collection body must carry payer")
		}
		w.WriteHeader(http.StatusAccepted)
	})
	gw := NewCollectionGateway(client, store)

	it, err := gw.Initiate(context.Background(), InitiateRequest{
		Amount: "10", Currency: "EUR", Phone: "250700000001", Note: "invoice 42",
	})
	if err != nil { t.Fatal(err) }
	if it.Status != intent.StatusPending {
		t.Fatalf("expected PENDING, got %s", it.Status)
	}
	if _, err := uuid.Parse(it.ReferenceID); err != nil {
		t.Fatalf("referenceId is not a uuid: %q", it.ReferenceID)
	}
	if it.ExternalID == "" {
		t.Fatal("externalId should default to a generated id")
	}
	stored, err := store.Get(context.Background(), it.ReferenceID)
	if err != nil || stored.Status != intent.StatusPending {
		t.Fatalf("intent not stored pending: %v %v", stored, err)
	}
	if fp.calls.Load() != 1 {
		t.Fatalf("expected 1 provider call, got %d", fp.calls.Load())
	}
}

func TestCheckStatusSuccessfulSettlesIntent(t *testing.T) {
	_, client, store := newTestStack(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		if !strings.HasPrefix(r.URL.Path, "/collection/v1_0/requesttopay/") {
			t.Errorf("unexpected status path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "SUCCESSFUL", "amount": "10", "currency": "EUR",
			"financialTransactionId": "FT-998877",
		})
	})
	gw := NewCollectionGateway(client, store)

	it, err := gw.Initiate(context.Background(), InitiateRequest{Amount: "10", Currency: "EUR", Phone: "250700000001"})
	if err != nil { t.Fatal(err) }

	settled, err := gw.CheckStatus(context.Background(), it.ReferenceID)
	if err != nil { t.Fatal(err) }
	if settled.Status != intent.StatusSuccessful {
		t.Fatalf("expected SUCCESSFUL, got %s", settled.Status)
	}
	if settled.ProviderReference != "FT-998877" {
		t.Fatalf("provider reference not captured: %q", settled.ProviderReference)
	}
}

func TestInitiateRejected4xxIsValidation(t *testing.T) {
	_, client, store := newTestStack(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": "PAYER_NOT_FOUND", "message": "unsupported payer"})
	})
	gw := NewCollectionGateway(client, store)

	_, err := gw.Initiate(context.Background(), InitiateRequest{Amount: "10", Currency: "EUR", Phone: "250700000001"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected VALIDATION, got %v", err)
	}
}

func TestInitiate5xxIsTransient(t *testing.T) {
	_, client, store := newTestStack(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	gw := NewCollectionGateway(client, store)

	_, err := gw.Initiate(context.Background(), InitiateRequest{Amount: "10", Currency: "EUR", Phone: "250700000001"})
	if !apperr.Is(err, apperr.KindTransient) {
		t.Fatalf("expected TRANSIENT, got %v", err)
	}
	if !apperr.Retryable(err) {
		t.Fatal("5xx should be retryable")
	}
}

func TestInitiateTimeoutStoresUnknownIntent(t *testing.T) {
	fp, client, store := newTestStack(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusAccepted)
	})
	gw := NewDisbursementGateway(client, store)

	// Warm the token with a generous context first so the timeout hits
	// the money-moving call itself.
	if _, err := client.tokens.GetToken(context.Background(), gw.scope); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	it, err := gw.Initiate(ctx, InitiateRequest{Amount: "25", Currency: "EUR", Phone: "250700000002"})
	if !apperr.Is(err, apperr.KindUnknownOutcome) {
		t.Fatalf("expected UNKNOWN_OUTCOME, got %v", err)
	}
	if apperr.Retryable(err) {
		t.Fatal("unknown outcome must not be blindly retryable")
	}
	stored, serr := store.Get(context.Background(), it.ReferenceID)
	if serr != nil { t.Fatal(serr) }
	if stored.Status != intent.StatusUnknown {
		t.Fatalf("expected stored UNKNOWN intent, got %s", stored.Status)
	}
	if fp.calls.Load() != 1 {
		t.Fatalf("expected the initiation to reach the wire once, got %d", fp.calls.Load())
	}
}

func TestCheckStatusNotFoundIsDistinctFromFailed(t *testing.T) {
	_, client, store := newTestStack(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	gw := NewCollectionGateway(client, store)

	_, err := gw.CheckStatus(context.Background(), uuid.NewString())
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestDisbursementRequiresValidRecipientBeforeNetworkCall(t *testing.T) {
	fp, client, store := newTestStack(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	gw := NewDisbursementGateway(client, store)

	_, err := gw.Initiate(context.Background(), InitiateRequest{Amount: "10", Currency: "EUR", Phone: "not-a-phone"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected VALIDATION, got %v", err)
	}
	if fp.calls.Load() != 0 || fp.tokens.Load() != 0 {
		t.Fatalf("malformed recipient must not reach the network: %d calls, %d token calls",
			fp.calls.Load(), fp.tokens.Load())
	}
}

func TestCollectionIsLenientOnPhoneShape(t *testing.T) {
	_, client, store := newTestStack(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	gw := NewCollectionGateway(client, store)

	// The provider is the validator on the collection path.
	if _, err := gw.Initiate(context.Background(), InitiateRequest{Amount: "10", Currency: "EUR", Phone: "short"}); err != nil {
		t.Fatalf("collection should accept loosely-shaped phones client-side: %v", err)
	}
}

func TestInitiateConfigErrorNoNetworkCall(t *testing.T) {
	fp := newFakeProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	badCreds := stubCreds{err: apperr.New(apperr.KindConfig, "missing_env", "MOMO_DISBURSEMENT_API_KEY is required")}
	tokens := NewTokenCache(fp.srv.URL, badCreds)
	client := NewClient(fp.srv.URL, "sandbox", badCreds, tokens)
	gw := NewDisbursementGateway(client, intent.NewMemoryStore())

	_, err := gw.Initiate(context.Background(), InitiateRequest{Amount: "10", Currency: "EUR", Phone: "250700000001"})
	if !apperr.Is(err, apperr.KindConfig) {
		t.Fatalf("expected CONFIG, got %v", err)
	}
	if fp.calls.Load() != 0 || fp.tokens.Load() != 0 {
		t.Fatal("config error must not produce network calls")
	}
}

func TestValidateMSISDN(t *testing.T) {
	for _, ok := range []string{"250700000001", "+250700000001", "25670000000"} {
		if err := ValidateMSISDN(ok); err != nil {
			t.Errorf("expected %q valid: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "abc", "12345", "2507000x0001", "1234567890123456"} {
		if err := ValidateMSISDN(bad); !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("expected %q invalid", bad)
		}
	}
}
