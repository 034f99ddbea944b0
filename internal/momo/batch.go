// momo-gateway/internal/momo/batch.go
package momo

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/example/momo-gateway/internal/intent"
	apperr "github.com/example/momo-gateway/pkg/errors"
)

// defaultFanout bounds concurrent initiations to respect provider rate
// limits.
const defaultFanout = 4

// PayoutInstruction is one recipient in a batch run (e.g. one payroll
// record).
type PayoutInstruction struct {
	RecipientID string `json:"recipient_id"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Phone       string `json:"phone"`
	Note        string `json:"note"`
}

// PayoutOutcome records initiation success for one recipient. Settlement
// arrives later via poll or webhook against the stored intent.
type PayoutOutcome struct {
	RecipientID       string `json:"recipient_id"`
	Success           bool   `json:"success"`
	ReferenceID       string `json:"reference_id,omitempty"`
	ProviderReference string `json:"provider_reference,omitempty"`
	ErrorKind         string `json:"error_kind,omitempty"`
	ErrorDetail       string `json:"error_detail,omitempty"`
}

// BatchDisbursementRun is the aggregate report for one batch. Outcomes
// are keyed by recipient id; their order need not match the input order.
type BatchDisbursementRun struct {
	RunID    string              `json:"run_id"`
	Items    []PayoutInstruction `json:"items"`
	Outcomes []PayoutOutcome     `json:"outcomes"`
}

// disburser is the slice of Gateway the orchestrator needs.
type disburser interface {
	Initiate(ctx context.Context, req InitiateRequest) (intent.PaymentIntent, error)
}

// BatchOrchestrator drives the disbursement gateway over a list of payout
// instructions with per-item isolation: one bad recipient never aborts
// payroll for the rest.
type BatchOrchestrator struct {
	gateway disburser
	fanout  int
}

func NewBatchOrchestrator(gateway disburser, fanout int) *BatchOrchestrator {
	if fanout <= 0 {
		fanout = defaultFanout
	}
	return &BatchOrchestrator{gateway: gateway, fanout: fanout}
}

// Run initiates every item and always returns exactly one outcome per
// item. It never returns an error: failures are captured per item.
func (b *BatchOrchestrator) Run(ctx context.Context, items []PayoutInstruction) BatchDisbursementRun {
	run := BatchDisbursementRun{
		RunID:    uuid.NewString(),
		Items:    items,
		Outcomes: make([]PayoutOutcome, 0, len(items)),
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, b.fanout)
	)
	for _, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(item PayoutInstruction) {
			defer wg.Done()
			defer func() { <-sem }()
			out := b.runOne(ctx, item)
			mu.Lock()
			run.Outcomes = append(run.Outcomes, out)
			mu.Unlock()
		}(item)
	}
	wg.Wait()

	log.Printf("[batch] run %s: %d items, %d initiated", run.RunID, len(items), countSuccess(run.Outcomes))
	return run
}

func (b *BatchOrchestrator) runOne(ctx context.Context, item PayoutInstruction) (out PayoutOutcome) {
	out.RecipientID = item.RecipientID
	defer func() {
		if r := recover(); r != nil {
			out.Success = false
			out.ErrorKind = string(apperr.KindTransient)
			out.ErrorDetail = fmt.Sprintf("panic during payout: %v", r)
			log.Printf("[batch] recovered panic for recipient %s: %v", item.RecipientID, r)
		}
	}()

	it, err := b.gateway.Initiate(ctx, InitiateRequest{
		Amount:     item.Amount,
		Currency:   item.Currency,
		Phone:      item.Phone,
		Note:       item.Note,
		ExternalID: item.RecipientID, // idempotency key per recipient
	})
	if err != nil {
		out.Success = false
		out.ErrorKind = string(apperr.KindOf(err))
		out.ErrorDetail = err.Error()
		// UNKNOWN_OUTCOME still produced an intent to reconcile against.
		if it.ReferenceID != "" {
			out.ReferenceID = it.ReferenceID
		}
		return out
	}
	out.Success = true
	out.ReferenceID = it.ReferenceID
	out.ProviderReference = it.ProviderReference
	return out
}

func countSuccess(outcomes []PayoutOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Success {
			n++
		}
	}
	return n
}
