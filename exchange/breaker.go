package exchange

import (
	"errors"
	"sync"
	"time"

	"github.com/goliatone/flaresync"
	"github.com/goliatone/flaresync/metrics"
	"github.com/goliatone/flaresync/social"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig configures the per platform circuit breakers.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultBreakerConfig returns the default breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

type breakers struct {
	mu      sync.Mutex
	cfg     BreakerConfig
	items   map[flaresync.Platform]*gobreaker.CircuitBreaker[any]
	metrics *metrics.Metrics
	logger  flaresync.Logger
}

func newBreakers(cfg BreakerConfig, m *metrics.Metrics, logger flaresync.Logger) *breakers {
	return &breakers{
		cfg:     cfg,
		items:   map[flaresync.Platform]*gobreaker.CircuitBreaker[any]{},
		metrics: m,
		logger:  logger,
	}
}

func (b *breakers) get(platform flaresync.Platform) *gobreaker.CircuitBreaker[any] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.items[platform]; ok {
		return cb
	}

	threshold := b.cfg.FailureThreshold
	if threshold == 0 {
		threshold = DefaultBreakerConfig().FailureThreshold
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        platform.String(),
		MaxRequests: b.cfg.MaxRequests,
		Interval:    b.cfg.Interval,
		Timeout:     b.cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn("provider circuit breaker state changed", "platform", name, "from", from.String(), "to", to.String())
			b.metrics.SetBreakerState(name, float64(to))
		},
	})
	b.items[platform] = cb
	return cb
}

// execute runs fn through the platform breaker.
func execute[T any](b *breakers, platform flaresync.Platform, fn func() (T, error)) (T, error) {
	var zero T
	out, err := b.get(platform).Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		return zero, err
	}
	v, _ := out.(T)
	return v, nil
}

// countsAsSuccess keeps caller mistakes (4xx from the provider) from
// tripping the breaker; only transport failures and 5xx count.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	var perr *social.ProviderError
	return errors.As(err, &perr) && perr.Rejected()
}
