// momo-gateway/internal/httpserver/server.go
package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/example/momo-gateway/internal/intent"
	"github.com/example/momo-gateway/internal/momo"
	"github.com/example/momo-gateway/internal/queue"
	m "github.com/example/momo-gateway/pkg/metrics"
)

const serviceName = "momo-api"

// Deps wires the gateway components into the HTTP surface.
type Deps struct {
	Collection   *momo.Gateway
	Disbursement *momo.Gateway
	Batch        *momo.BatchOrchestrator
	Store        intent.Store
	Webhooks     *momo.WebhookProcessor
	Bus          queue.EventBus
}

// New builds the full router: business routes, webhook ingress, health
// and metrics.
func New(d Deps) http.Handler {
	r := mux.NewRouter()
	r.Use(metricsMiddleware)

	// metrics & health
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":      true,
			"service": serviceName,
			"ts":      time.Now().UTC(),
		})
	}).Methods(http.MethodGet)

	// API
	r.HandleFunc("/api/collections", initiateHandler(d.Collection)).Methods(http.MethodPost)
	r.HandleFunc("/api/disbursements", initiateHandler(d.Disbursement)).Methods(http.MethodPost)
	r.HandleFunc("/api/disbursements/batch", batchHandler(d.Batch)).Methods(http.MethodPost)
	r.HandleFunc("/api/payments/{referenceId}", statusHandler(d)).Methods(http.MethodGet)

	// provider ingress
	r.HandleFunc("/webhooks/momo", webhookHandler(d)).Methods(http.MethodPost)

	return cors.AllowAll().Handler(r)
}

/*************** Metrics middleware ***************/
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Jangan instrument endpoint /metrics
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		statusLabel := "FAILED"
		if rec.status >= 200 && rec.status < 400 {
			statusLabel = "SUCCESS"
		}
		m.ObserveDuration(serviceName, statusLabel, time.Since(start).Seconds())
	})
}
