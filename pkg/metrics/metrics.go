// momo-gateway/pkg/metrics/metrics.go
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
    // Label "scope" supaya 1 query bisa bandingkan collection vs disbursement
    ProviderCallsTotal = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "momo",
            Name:      "provider_calls_total",
            Help:      "Total calls against the mobile-money provider",
        },
        []string{"scope", "op", "outcome"},
    )

    TokenRefreshTotal = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "momo",
            Name:      "token_refresh_total",
            Help:      "Token refresh attempts per scope",
        },
        []string{"scope", "outcome"},
    )

    WebhookEventsTotal = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "momo",
            Name:      "webhook_events_total",
            Help:      "Inbound webhook notifications by result",
        },
        []string{"result"},
    )

    RequestDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "momo",
            Name:      "request_duration_seconds",
            Help:      "Duration of HTTP requests on the gateway API",
            // bucket cukup rapat di sub-second
            Buckets: []float64{
                0.01, 0.02, 0.03, 0.05, 0.08, 0.12,
                0.2, 0.3, 0.5, 0.8, 1.2, 2, 3, 5,
            },
        },
        []string{"service", "status"},
    )
)

func init() {
    prometheus.MustRegister(ProviderCallsTotal, TokenRefreshTotal, WebhookEventsTotal, RequestDuration)
}

// Helper biar rapi dipanggil dari gateway & handler
func IncProviderCall(scope, op, outcome string) {
    ProviderCallsTotal.WithLabelValues(scope, op, outcome).Inc()
}
func IncTokenRefresh(scope, outcome string) {
    TokenRefreshTotal.WithLabelValues(scope, outcome).Inc()
}
func IncWebhook(result string) {
    WebhookEventsTotal.WithLabelValues(result).Inc()
}
func ObserveDuration(service, status string, seconds float64) {
    RequestDuration.WithLabelValues(service, status).Observe(seconds)
}
