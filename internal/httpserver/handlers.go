// momo-gateway/internal/httpserver/handlers.go
package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/momo-gateway/internal/intent"
	"github.com/example/momo-gateway/internal/momo"
	apperr "github.com/example/momo-gateway/pkg/errors"
)

const requestTimeout = 35 * time.Second

type initiateIn struct {
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	Phone      string `json:"phone"`
	Note       string `json:"note"`
	ExternalID string `json:"external_id"`
}

type errorOut struct {
	Status string `json:"status"`
	Kind   string `json:"error_kind"`
	Reason string `json:"reason"`
	// Set when an intent exists despite the error (UNKNOWN_OUTCOME):
	// the caller must poll it before retrying.
	ReferenceID string `json:"reference_id,omitempty"`
}

func initiateHandler(gw *momo.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in initiateIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, errorOut{Status: "FAILED", Kind: "VALIDATION", Reason: "bad_json"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		it, err := gw.Initiate(ctx, momo.InitiateRequest{
			Amount:     in.Amount,
			Currency:   in.Currency,
			Phone:      in.Phone,
			Note:       in.Note,
			ExternalID: in.ExternalID,
		})
		if err != nil {
			writeError(w, err, it.ReferenceID)
			return
		}
		writeJSON(w, http.StatusAccepted, it)
	}
}

func batchHandler(batch *momo.BatchOrchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Items []momo.PayoutInstruction `json:"items"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, errorOut{Status: "FAILED", Kind: "VALIDATION", Reason: "bad_json"})
			return
		}
		if len(in.Items) == 0 {
			writeJSON(w, http.StatusBadRequest, errorOut{Status: "FAILED", Kind: "VALIDATION", Reason: "empty_batch"})
			return
		}

		// No per-request timeout tighter than the client's own: a large
		// payroll run legitimately takes a while at bounded fan-out.
		run := batch.Run(r.Context(), in.Items)
		writeJSON(w, http.StatusOK, run)
	}
}

func statusHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		referenceID := mux.Vars(r)["referenceId"]

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		it, err := d.Store.Get(ctx, referenceID)
		if err != nil {
			writeError(w, err, "")
			return
		}
		if it.Status.Terminal() && r.URL.Query().Get("refresh") == "" {
			writeJSON(w, http.StatusOK, it)
			return
		}

		gw := d.Collection
		if it.Direction == intent.DirectionDisburse {
			gw = d.Disbursement
		}
		polled, err := gw.CheckStatus(ctx, referenceID)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				// Accepted locally but not yet visible provider-side;
				// surface what we stored rather than a misleading 404.
				writeJSON(w, http.StatusOK, it)
				return
			}
			writeError(w, err, referenceID)
			return
		}
		publishIfTerminal(ctx, d, polled)
		writeJSON(w, http.StatusOK, polled)
	}
}

func webhookHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorOut{Status: "REJECTED", Kind: "REJECTED_WEBHOOK", Reason: "unreadable_body"})
			return
		}

		ev, err := d.Webhooks.Handle(raw, r.Header.Get("X-Momo-Signature"))
		if err != nil {
			// Always 400, never 500: the provider must not keep retrying
			// a payload we will never accept.
			writeError(w, err, "")
			return
		}

		applied, err := d.Store.Apply(r.Context(), ev)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				// Signed and well-formed but for a reference we never
				// issued. Acknowledge so the provider stops retrying.
				log.Printf("[webhook] no local intent for %s, acknowledging", ev.ReferenceID)
				writeJSON(w, http.StatusOK, map[string]any{"applied": false})
				return
			}
			writeError(w, err, ev.ReferenceID)
			return
		}
		publishIfTerminal(r.Context(), d, applied)
		writeJSON(w, http.StatusOK, map[string]any{"applied": true, "status": applied.Status})
	}
}

func publishIfTerminal(ctx context.Context, d Deps, it intent.PaymentIntent) {
	if d.Bus == nil || !it.Status.Terminal() {
		return
	}
	ev := intent.ReconciliationEvent{
		ReferenceID:       it.ReferenceID,
		ExternalID:        it.ExternalID,
		NewStatus:         it.Status,
		Amount:            it.Amount,
		Currency:          it.Currency,
		Reason:            it.Reason,
		ProviderReference: it.ProviderReference,
		Source:            "gateway",
	}
	if err := d.Bus.PublishReconciliation(ctx, ev); err != nil {
		// Best effort: the stored intent is the source of truth.
		log.Printf("[webhook] publish reconciliation for %s: %v", it.ReferenceID, err)
	}
}

func writeError(w http.ResponseWriter, err error, referenceID string) {
	kind := apperr.KindOf(err)
	out := errorOut{Status: "FAILED", Kind: string(kind), Reason: err.Error(), ReferenceID: referenceID}
	switch kind {
	case apperr.KindValidation:
		writeJSON(w, http.StatusBadRequest, out)
	case apperr.KindRejectedWebhook:
		out.Status = "REJECTED"
		writeJSON(w, http.StatusBadRequest, out)
	case apperr.KindNotFound:
		writeJSON(w, http.StatusNotFound, out)
	case apperr.KindAuth, apperr.KindConfig:
		writeJSON(w, http.StatusBadGateway, out)
	case apperr.KindUnknownOutcome:
		out.Status = "UNKNOWN"
		writeJSON(w, http.StatusGatewayTimeout, out)
	case apperr.KindTransient:
		writeJSON(w, http.StatusBadGateway, out)
	default:
		writeJSON(w, http.StatusInternalServerError, out)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
