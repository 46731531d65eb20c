// Package circuitbreaker guards calls to flaky external collaborators.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the state of the circuit breaker.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects calls until the open timeout elapses.
	StateOpen
	// StateHalfOpen lets trial calls through to probe recovery.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config configures a circuit breaker.
type Config struct {
	// FailureThreshold is the number of consecutive failures before opening.
	FailureThreshold int
	// SuccessThreshold is the number of half-open successes needed to close.
	SuccessThreshold int
	// Timeout is how long the circuit stays open before going half-open.
	Timeout time.Duration
	// OnStateChange is called with the lock held; it must not call back into the breaker.
	OnStateChange func(from, to State)
	// IsFailure decides whether an error counts against the circuit.
	// Defaults to every non-nil error except context cancellation.
	IsFailure func(error) bool
}

// Default values.
const (
	DefaultFailureThreshold = 5
	DefaultSuccessThreshold = 2
	DefaultTimeout          = 60 * time.Second
)

// Breaker implements the circuit breaker pattern.
type Breaker struct {
	mu              sync.Mutex
	state           State
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	config          Config
	now             func() time.Time
}

// New creates a circuit breaker. Non-positive values take the defaults.
func New(config Config) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultFailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = DefaultSuccessThreshold
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.IsFailure == nil {
		config.IsFailure = defaultIsFailure
	}

	return &Breaker{
		state:  StateClosed,
		config: config,
		now:    time.Now,
	}
}

func defaultIsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// Execute runs fn unless the circuit is open.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.beforeCall(); err != nil {
		return err
	}

	err := fn(ctx)
	b.afterCall(err)

	return err
}

func (b *Breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}

	elapsed := b.now().Sub(b.lastFailureTime)
	if elapsed < b.config.Timeout {
		return fmt.Errorf("%w: retry after %v", ErrCircuitOpen, b.config.Timeout-elapsed)
	}

	b.transitionTo(StateHalfOpen)
	return nil
}

func (b *Breaker) afterCall(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.config.IsFailure(err) {
		b.recordFailure()
		return
	}
	if err == nil {
		b.recordSuccess()
	}
}

func (b *Breaker) recordFailure() {
	b.failureCount++
	b.lastFailureTime = b.now()

	switch b.state {
	case StateClosed:
		if b.failureCount >= b.config.FailureThreshold {
			b.transitionTo(StateOpen)
		}
	case StateHalfOpen:
		b.transitionTo(StateOpen)
	case StateOpen:
	}
}

func (b *Breaker) recordSuccess() {
	b.failureCount = 0

	if b.state == StateHalfOpen {
		b.successCount++
		if b.successCount >= b.config.SuccessThreshold {
			b.transitionTo(StateClosed)
		}
	}
}

func (b *Breaker) transitionTo(newState State) {
	if b.state == newState {
		return
	}

	oldState := b.state
	b.state = newState
	b.successCount = 0
	if newState != StateHalfOpen {
		b.failureCount = 0
	}

	if b.config.OnStateChange != nil {
		b.config.OnStateChange(oldState, newState)
	}
}

// State returns the current state of the circuit breaker.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
