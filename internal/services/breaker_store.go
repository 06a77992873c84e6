package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"amy-weather/internal/models"
	"amy-weather/pkg/logging"
)

// ErrStoreUnavailable is returned while the outcome store circuit is open.
var ErrStoreUnavailable = errors.New("outcome store unavailable")

// BreakerStore guards an OutcomeStore with a circuit breaker so that a failing
// database is skipped instead of being retried by every task.
type BreakerStore struct {
	next    OutcomeStore
	circuit *gobreaker.CircuitBreaker
}

// NewBreakerStore opens the circuit after failures consecutive errors and
// probes again after timeout.
func NewBreakerStore(next OutcomeStore, failures uint32, timeout time.Duration, logger *logging.StructuredLogger) *BreakerStore {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "outcome-store",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "[STORE_CIRCUIT] Circuit state changed", logging.Fields{
				"circuit": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})

	return &BreakerStore{next: next, circuit: cb}
}

// CreateOutcome stores the outcome unless the circuit is open.
func (s *BreakerStore) CreateOutcome(ctx context.Context, outcome *models.TaskOutcome) error {
	_, err := s.circuit.Execute(func() (interface{}, error) {
		return nil, s.next.CreateOutcome(ctx, outcome)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}
