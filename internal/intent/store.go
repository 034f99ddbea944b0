// momo-gateway/internal/intent/store.go
package intent

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	apperr "github.com/example/momo-gateway/pkg/errors"
)

// Store persists payment intents and arbitrates between the two racing
// writers (poll path, webhook path).
type Store interface {
	Create(ctx context.Context, it PaymentIntent) error
	Get(ctx context.Context, referenceID string) (PaymentIntent, error)
	// Apply merges a reconciliation event under the first-terminal-wins
	// rule and returns the stored intent afterwards. Applying the same
	// terminal event twice is a no-op, not an error.
	Apply(ctx context.Context, ev ReconciliationEvent) (PaymentIntent, error)
	// ListUnsettled returns intents still PENDING or UNKNOWN that were
	// created before the cutoff, oldest first.
	ListUnsettled(ctx context.Context, cutoff time.Time, limit int) ([]PaymentIntent, error)
}

// merge applies ev to cur under the reconciliation rule shared by both
// store implementations. Returns the resulting intent and whether it changed.
func merge(cur PaymentIntent, ev ReconciliationEvent, now time.Time) (PaymentIntent, bool) {
	cur.LastCheckedAt = now
	if cur.Status.Terminal() {
		if ev.NewStatus != cur.Status {
			// Late writer lost the race. Keep the first terminal status.
			log.Printf("[intent] ignoring %s from %s for %s: already %s",
				ev.NewStatus, ev.Source, cur.ReferenceID, cur.Status)
		}
		return cur, false
	}
	if ev.ProviderReference != "" {
		cur.ProviderReference = ev.ProviderReference
	}
	if ev.NewStatus == cur.Status {
		// Pending -> Pending and Unknown -> Unknown are safe no-ops.
		return cur, false
	}
	cur.Status = ev.NewStatus
	if ev.Reason != "" {
		cur.Reason = ev.Reason
	}
	return cur, true
}

// MemoryStore is the process-local Store used in tests and when no
// DATABASE_URL is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	intents map[string]PaymentIntent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{intents: make(map[string]PaymentIntent)}
}

func (m *MemoryStore) Create(_ context.Context, it PaymentIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.intents[it.ReferenceID]; ok {
		return apperr.New(apperr.KindValidation, "duplicate_reference",
			"intent already exists: "+it.ReferenceID)
	}
	m.intents[it.ReferenceID] = it
	return nil
}

func (m *MemoryStore) Get(_ context.Context, referenceID string) (PaymentIntent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.intents[referenceID]
	if !ok {
		return PaymentIntent{}, apperr.New(apperr.KindNotFound, "intent_not_found",
			"no intent with reference "+referenceID)
	}
	return it, nil
}

func (m *MemoryStore) Apply(_ context.Context, ev ReconciliationEvent) (PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.intents[ev.ReferenceID]
	if !ok {
		return PaymentIntent{}, apperr.New(apperr.KindNotFound, "intent_not_found",
			"no intent with reference "+ev.ReferenceID)
	}
	next, _ := merge(cur, ev, time.Now().UTC())
	m.intents[ev.ReferenceID] = next
	return next, nil
}

func (m *MemoryStore) ListUnsettled(_ context.Context, cutoff time.Time, limit int) ([]PaymentIntent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []PaymentIntent
	for _, it := range m.intents {
		if (it.Status == StatusPending || it.Status == StatusUnknown) && it.CreatedAt.Before(cutoff) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
