package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecordOutcomes(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordConnect("twitch", nil)
	m.RecordConnect("twitch", errors.New("boom"))
	m.RecordConnect("twitch", nil)
	m.RecordSync("youtube", nil)
	m.RecordDisconnect("tiktok", errors.New("boom"))
	m.SetBreakerState("twitter", 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ConnectTotal.WithLabelValues("twitch", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectTotal.WithLabelValues("twitch", OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncTotal.WithLabelValues("youtube", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DisconnectTotal.WithLabelValues("tiktok", OutcomeFailure)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("twitter")))
}

func TestMetricsObserveExchange(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveExchange("instagram", 150*time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(m.TokenExchangeDuration, "flaresync_token_exchange_duration_seconds"))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordConnect("twitch", nil)
		m.ObserveExchange("twitch", time.Second)
		m.RecordSync("twitch", nil)
		m.RecordDisconnect("twitch", nil)
		m.SetBreakerState("twitch", 0)
	})
}
