package runtime

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/multiocr/internal/engine/sdk"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig configures the optional per-engine circuit breaker.
// Disabled by default: every engine is invoked for every file.
type BreakerConfig struct {
	// Enabled turns the breakers on.
	Enabled bool

	// MaxRequests is the maximum number of requests allowed in half-open state.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state.
	Interval time.Duration

	// Timeout is the period of the open state.
	Timeout time.Duration

	// FailureThreshold is the number of consecutive failures that trips the breaker.
	FailureThreshold uint32
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Enabled:          false,
		MaxRequests:      1,
		Interval:         0,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

type breakers struct {
	mu      sync.Mutex
	config  BreakerConfig
	byName  map[string]*gobreaker.CircuitBreaker[*sdk.Result]
	onState func(name string, from, to gobreaker.State)
}

func newBreakers(config BreakerConfig, onState func(name string, from, to gobreaker.State)) *breakers {
	return &breakers{
		config:  config,
		byName:  make(map[string]*gobreaker.CircuitBreaker[*sdk.Result]),
		onState: onState,
	}
}

// get returns the breaker for an engine, or nil when breakers are disabled.
func (b *breakers) get(engine string) *gobreaker.CircuitBreaker[*sdk.Result] {
	if !b.config.Enabled {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if breaker, exists := b.byName[engine]; exists {
		return breaker
	}

	threshold := b.config.FailureThreshold
	breaker := gobreaker.NewCircuitBreaker[*sdk.Result](gobreaker.Settings{
		Name:        engine,
		MaxRequests: b.config.MaxRequests,
		Interval:    b.config.Interval,
		Timeout:     b.config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Only engine failures trip the breaker; a bad document is not the engine's fault.
		IsSuccessful: func(err error) bool {
			return err == nil || sdk.CategoryOf(err) != sdk.CategoryEngine
		},
		OnStateChange: b.onState,
	})
	b.byName[engine] = breaker
	return breaker
}

// state returns the breaker state name for an engine, or "" when none exists.
func (b *breakers) state(engine string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if breaker, ok := b.byName[engine]; ok {
		return breaker.State().String()
	}
	return ""
}

func circuitOpenError(engine string) error {
	return sdk.EngineFailure(fmt.Sprintf("Circuit breaker open for %s", engine), sdk.ErrCircuitOpen)
}

func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
