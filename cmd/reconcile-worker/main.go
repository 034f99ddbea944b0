// momo-gateway/cmd/reconcile-worker/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/momo-gateway/internal/config"
	"github.com/example/momo-gateway/internal/intent"
	"github.com/example/momo-gateway/internal/momo"
	"github.com/example/momo-gateway/internal/queue"
	apperr "github.com/example/momo-gateway/pkg/errors"
)

const sweepBatchSize = 100

// The worker sweeps intents still PENDING or UNKNOWN after a configured
// age, polls the provider for their real status and publishes terminal
// transitions. Intents unresolved past the give-up deadline are marked
// TIMED_OUT so they stop being swept forever.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[reconcile-worker] config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatalf("[reconcile-worker] DATABASE_URL is required: an in-memory store has nothing to sweep")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := intent.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[reconcile-worker] store: %v", err)
	}
	defer store.Close()

	var bus queue.EventBus = queue.NopBus{}
	if len(cfg.KafkaBrokers) > 0 {
		bus = queue.New(cfg.KafkaBrokers, cfg.ReconciliationTopic)
	}

	tokens := momo.NewTokenCache(cfg.BaseURL, cfg)
	client := momo.NewClient(cfg.BaseURL, cfg.TargetEnvironment, cfg, tokens)
	gateways := map[intent.Direction]*momo.Gateway{
		intent.DirectionCollect:  momo.NewCollectionGateway(client, store),
		intent.DirectionDisburse: momo.NewDisbursementGateway(client, store),
	}

	log.Printf("[reconcile-worker] started, interval %s, min age %s", cfg.ReconcileInterval, cfg.ReconcileMinAge)
	ticker := time.NewTicker(cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[reconcile-worker] stopping")
			return
		case <-ticker.C:
			sweep(ctx, cfg, store, gateways, bus)
		}
	}
}

func sweep(ctx context.Context, cfg *config.Config, store intent.Store,
	gateways map[intent.Direction]*momo.Gateway, bus queue.EventBus) {

	cutoff := time.Now().UTC().Add(-cfg.ReconcileMinAge)
	pending, err := store.ListUnsettled(ctx, cutoff, sweepBatchSize)
	if err != nil {
		log.Printf("[reconcile-worker] list unsettled: %v", err)
		return
	}

	for _, it := range pending {
		if ctx.Err() != nil {
			return
		}

		// Past the give-up deadline nothing will settle this anymore.
		if time.Since(it.CreatedAt) > cfg.ReconcileGiveUp {
			timedOut, err := store.Apply(ctx, intent.ReconciliationEvent{
				ReferenceID: it.ReferenceID,
				NewStatus:   intent.StatusTimedOut,
				Reason:      "unresolved past reconciliation deadline",
				Source:      "sweep",
			})
			if err != nil {
				log.Printf("[reconcile-worker] give up %s: %v", it.ReferenceID, err)
				continue
			}
			publish(ctx, bus, timedOut)
			continue
		}

		polled, err := gateways[it.Direction].CheckStatus(ctx, it.ReferenceID)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) && it.Status == intent.StatusUnknown {
				// The timed-out initiation never reached the provider;
				// safe to close it out as failed-by-timeout.
				closed, aerr := store.Apply(ctx, intent.ReconciliationEvent{
					ReferenceID: it.ReferenceID,
					NewStatus:   intent.StatusTimedOut,
					Reason:      "initiation never reached provider",
					Source:      "sweep",
				})
				if aerr == nil {
					publish(ctx, bus, closed)
				}
				continue
			}
			log.Printf("[reconcile-worker] poll %s: %v", it.ReferenceID, err)
			continue
		}
		if polled.Status.Terminal() {
			publish(ctx, bus, polled)
		}
	}
}

func publish(ctx context.Context, bus queue.EventBus, it intent.PaymentIntent) {
	err := bus.PublishReconciliation(ctx, intent.ReconciliationEvent{
		ReferenceID:       it.ReferenceID,
		ExternalID:        it.ExternalID,
		NewStatus:         it.Status,
		Amount:            it.Amount,
		Currency:          it.Currency,
		Reason:            it.Reason,
		ProviderReference: it.ProviderReference,
		Source:            "sweep",
	})
	if err != nil {
		log.Printf("[reconcile-worker] publish %s: %v", it.ReferenceID, err)
	}
}
