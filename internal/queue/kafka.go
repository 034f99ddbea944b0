// momo-gateway/internal/queue/kafka.go
package queue

import (
    "context"
    "encoding/json"
    "log"

    "github.com/segmentio/kafka-go"

    "github.com/example/momo-gateway/internal/intent"
)

// EventBus publishes reconciliation events for host-application
// consumers (ledger posting, notifications). Best-effort fan-out; the
// stored intent is the source of truth.
type EventBus interface {
    PublishReconciliation(ctx context.Context, ev intent.ReconciliationEvent) error
}

type Bus struct {
    Brokers []string
    Topic   string
}

func New(brokers []string, topic string) *Bus {
    return &Bus{Brokers: brokers, Topic: topic}
}

func (b *Bus) PublishReconciliation(ctx context.Context, ev intent.ReconciliationEvent) error {
    payload, err := json.Marshal(ev)
    if err != nil {
        return err
    }
    w := &kafka.Writer{
        Addr:     kafka.TCP(b.Brokers...),
        Topic:    b.Topic,
        Balancer: &kafka.LeastBytes{},
    }
    defer w.Close()
    // key = referenceId supaya event per intent tetap terurut di satu partition
    return w.WriteMessages(ctx, kafka.Message{Key: []byte(ev.ReferenceID), Value: payload})
}

// NopBus is used when no brokers are configured (tests, single-binary
// sandbox runs).
type NopBus struct{}

func (NopBus) PublishReconciliation(_ context.Context, ev intent.ReconciliationEvent) error {
    log.Printf("[queue] no brokers configured, dropping event for %s (%s)", ev.ReferenceID, ev.NewStatus)
    return nil
}
