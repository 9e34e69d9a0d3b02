package mapbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/couchcryptid/location-fix-service/internal/domain"
)

// Default circuit breaker settings.
const (
	defaultBreakerFailures uint32        = 3
	defaultBreakerTimeout  time.Duration = 30 * time.Second
	defaultBreakerInterval time.Duration = 60 * time.Second
)

// BreakerConfig configures the circuit breaker around the resolver.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before a probe is allowed.
	Timeout time.Duration
	// Interval clears failure counts while the circuit is closed.
	Interval time.Duration
}

// BreakerGeocoder fails fast once the wrapped resolver keeps failing. Calls
// rejected by an open circuit report domain.ErrRateLimited.
type BreakerGeocoder struct {
	inner   domain.AddressResolver
	breaker *gobreaker.CircuitBreaker[[]domain.Address]
}

// NewBreakerGeocoder wraps inner with a circuit breaker. Zero config fields
// select defaults.
func NewBreakerGeocoder(inner domain.AddressResolver, cfg BreakerConfig, logger *slog.Logger) *BreakerGeocoder {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = defaultBreakerFailures
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultBreakerTimeout
	}
	if cfg.Interval == 0 {
		cfg.Interval = defaultBreakerInterval
	}

	cb := gobreaker.NewCircuitBreaker[[]domain.Address](gobreaker.Settings{
		Name:        "mapbox:reverse",
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		// A lookup abandoned by its caller says nothing about Mapbox health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &BreakerGeocoder{inner: inner, breaker: cb}
}

func (b *BreakerGeocoder) ReverseGeocode(ctx context.Context, coord domain.Coordinate) ([]domain.Address, error) {
	result, err := b.breaker.Execute(func() ([]domain.Address, error) {
		return b.inner.ReverseGeocode(ctx, coord)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("mapbox circuit open: %v: %w", err, domain.ErrRateLimited)
	}
	return result, err
}

// State reports the breaker state for diagnostics.
func (b *BreakerGeocoder) State() gobreaker.State {
	return b.breaker.State()
}
