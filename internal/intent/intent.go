// momo-gateway/internal/intent/intent.go
package intent

import (
	"time"

	"github.com/example/momo-gateway/internal/config"
)

// Status is the internal settlement vocabulary. Both the polling path and
// the webhook path write these; the provider's wire vocabulary is mapped
// in one place (momo.MapProviderStatus).
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusSuccessful Status = "SUCCESSFUL"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
	StatusTimedOut   Status = "TIMED_OUT"
	// StatusUnknown marks an initiation whose transport call timed out:
	// the provider may or may not have accepted it. Must be resolved by a
	// status query before any retry (double-disbursement guard).
	StatusUnknown Status = "UNKNOWN"
)

// Terminal reports whether no further transition is expected.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccessful, StatusFailed, StatusCancelled, StatusTimedOut:
		return true
	}
	return false
}

// Direction of money movement relative to the business account.
type Direction string

const (
	DirectionCollect  Direction = "COLLECT"
	DirectionDisburse Direction = "DISBURSE"
)

// PaymentIntent is one initiated collection or payout awaiting settlement.
type PaymentIntent struct {
	ReferenceID       string       `json:"reference_id"`
	ExternalID        string       `json:"external_id"`
	Direction         Direction    `json:"direction"`
	Scope             config.Scope `json:"scope"`
	Amount            string       `json:"amount"`
	Currency          string       `json:"currency"`
	CounterpartyPhone string       `json:"counterparty_phone"`
	Status            Status       `json:"status"`
	ProviderReference string       `json:"provider_reference,omitempty"`
	Reason            string       `json:"reason,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	LastCheckedAt     time.Time    `json:"last_checked_at,omitempty"`
}

// ReconciliationEvent is a normalized status observation, produced by
// either the status poller or the webhook processor, applied to the store.
type ReconciliationEvent struct {
	ReferenceID       string `json:"reference_id"`
	ExternalID        string `json:"external_id,omitempty"`
	NewStatus         Status `json:"new_status"`
	Amount            string `json:"amount,omitempty"`
	Currency          string `json:"currency,omitempty"`
	Reason            string `json:"reason,omitempty"`
	ProviderReference string `json:"provider_reference,omitempty"`
	Source            string `json:"source"` // "poll" | "webhook" | "sweep"
}
