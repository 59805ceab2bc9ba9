package registration

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker"

	"pushbridge/internal/config"
	"pushbridge/pkg/circuitbreaker"
)

// CircuitBreakerStore shields the dedup store behind a circuit breaker so
// a struggling Redis does not slow down every registration event.
type CircuitBreakerStore struct {
	store Store
	cb    *circuitbreaker.Wrapper
}

func NewCircuitBreakerStore(store Store, cfg config.CircuitBreakerConfig) *CircuitBreakerStore {
	if !cfg.Enabled {
		return &CircuitBreakerStore{
			store: store,
			cb:    nil,
		}
	}

	cbConfig := circuitbreaker.DefaultConfig("redis-registration")
	if cfg.MaxRequests > 0 {
		cbConfig.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		cbConfig.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		cbConfig.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 && cfg.MinRequests > 0 {
		cbConfig.ReadyToTrip = func(counts gobreaker.Counts) bool {
			if counts.Requests < uint32(cfg.MinRequests) {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		}
	}

	return &CircuitBreakerStore{
		store: store,
		cb:    circuitbreaker.NewWrapper(cbConfig),
	}
}

func (s *CircuitBreakerStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.cb == nil {
		return s.store.Get(ctx, key)
	}

	type getResult struct {
		value string
		found bool
	}

	result, err := s.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		value, found, err := s.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		return getResult{value: value, found: found}, nil
	})

	s.cb.RecordRequest(err == nil)

	if err != nil {
		if s.cb.IsOpen() {
			return "", false, fmt.Errorf("circuit breaker is open for redis-registration: %w", err)
		}
		return "", false, err
	}

	r, ok := result.(getResult)
	if !ok {
		return "", false, fmt.Errorf("store returned invalid result type")
	}
	return r.value, r.found, nil
}

func (s *CircuitBreakerStore) Set(ctx context.Context, key, value string) error {
	if s.cb == nil {
		return s.store.Set(ctx, key, value)
	}

	_, err := s.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, s.store.Set(ctx, key, value)
	})

	s.cb.RecordRequest(err == nil)

	if err != nil {
		if s.cb.IsOpen() {
			return fmt.Errorf("circuit breaker is open for redis-registration: %w", err)
		}
		return err
	}
	return nil
}

func (s *CircuitBreakerStore) Close() error {
	return s.store.Close()
}

func (s *CircuitBreakerStore) State() string {
	if s.cb == nil {
		return "disabled"
	}
	return s.cb.State().String()
}
