// Package metrics defines the prometheus collectors for social platform
// connections.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics groups the collectors. Use New with a dedicated registry in tests.
type Metrics struct {
	// ConnectTotal counts connect attempts by platform and outcome.
	ConnectTotal *prometheus.CounterVec
	// TokenExchangeDuration measures provider token exchange latency.
	TokenExchangeDuration *prometheus.HistogramVec
	// SyncTotal counts metric syncs by platform and outcome.
	SyncTotal *prometheus.CounterVec
	// DisconnectTotal counts disconnects by platform and outcome.
	DisconnectTotal *prometheus.CounterVec
	// BreakerState reports circuit breaker state per platform:
	// 0 closed, 1 half-open, 2 open.
	BreakerState *prometheus.GaugeVec
}

// New registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ConnectTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flaresync_connect_total",
				Help: "Total number of social platform connect attempts",
			},
			[]string{"platform", "outcome"},
		),
		TokenExchangeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flaresync_token_exchange_duration_seconds",
				Help:    "Duration of provider token exchange operations",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"platform"},
		),
		SyncTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flaresync_sync_total",
				Help: "Total number of social platform metric syncs",
			},
			[]string{"platform", "outcome"},
		),
		DisconnectTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flaresync_disconnect_total",
				Help: "Total number of social platform disconnects",
			},
			[]string{"platform", "outcome"},
		),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "flaresync_circuit_breaker_state",
				Help: "Provider circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"platform"},
		),
	}
}

// RecordConnect counts a connect attempt.
func (m *Metrics) RecordConnect(platform string, err error) {
	if m == nil {
		return
	}
	m.ConnectTotal.WithLabelValues(platform, outcome(err)).Inc()
}

// ObserveExchange records a token exchange duration.
func (m *Metrics) ObserveExchange(platform string, d time.Duration) {
	if m == nil {
		return
	}
	m.TokenExchangeDuration.WithLabelValues(platform).Observe(d.Seconds())
}

// RecordSync counts a sync attempt.
func (m *Metrics) RecordSync(platform string, err error) {
	if m == nil {
		return
	}
	m.SyncTotal.WithLabelValues(platform, outcome(err)).Inc()
}

// RecordDisconnect counts a disconnect attempt.
func (m *Metrics) RecordDisconnect(platform string, err error) {
	if m == nil {
		return
	}
	m.DisconnectTotal.WithLabelValues(platform, outcome(err)).Inc()
}

// SetBreakerState records a breaker state value.
func (m *Metrics) SetBreakerState(platform string, state float64) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(platform).Set(state)
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
