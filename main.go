// momo-gateway/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/momo-gateway/internal/config"
	"github.com/example/momo-gateway/internal/httpserver"
	"github.com/example/momo-gateway/internal/intent"
	"github.com/example/momo-gateway/internal/momo"
	"github.com/example/momo-gateway/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[momo-api] config: %v", err)
	}

	ctx := context.Background()

	var store intent.Store
	if cfg.DatabaseURL != "" {
		pg, err := intent.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("[momo-api] store: %v", err)
		}
		defer pg.Close()
		store = pg
	} else {
		log.Printf("[momo-api] DATABASE_URL not set, using in-memory intent store")
		store = intent.NewMemoryStore()
	}

	var bus queue.EventBus = queue.NopBus{}
	if len(cfg.KafkaBrokers) > 0 {
		bus = queue.New(cfg.KafkaBrokers, cfg.ReconciliationTopic)
	}

	tokens := momo.NewTokenCache(cfg.BaseURL, cfg)
	client := momo.NewClient(cfg.BaseURL, cfg.TargetEnvironment, cfg, tokens)
	collection := momo.NewCollectionGateway(client, store)
	disbursement := momo.NewDisbursementGateway(client, store)

	handler := httpserver.New(httpserver.Deps{
		Collection:   collection,
		Disbursement: disbursement,
		Batch:        momo.NewBatchOrchestrator(disbursement, 0),
		Store:        store,
		Webhooks:     momo.NewWebhookProcessor(cfg.WebhookSecret),
		Bus:          bus,
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("[momo-api] shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Printf("[momo-api] HTTP server Shutdown: %v", err)
		}
	}()

	log.Printf("[momo-api] listening at %s (%s)", cfg.HTTPAddr, cfg.TargetEnvironment)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("[momo-api] server error: %v", err)
	}
}
