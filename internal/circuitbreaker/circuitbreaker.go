package circuitbreaker

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrOpen is reported when a call is rejected by an open circuit.
var ErrOpen = errors.New("circuit breaker is open")

// State represents circuit breaker states.
type State uint32

const (
	StateClosed   State = iota // calls pass through
	StateOpen                  // calls are rejected immediately
	StateHalfOpen              // one probe call is in flight
)

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

// Config holds breaker thresholds.
type Config struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// CircuitBreaker implements the circuit breaker pattern.
//
// State transitions:
//
//	Closed → Open:      after maxFailures consecutive failures
//	Open → Half-Open:   on the first Allow after timeout (that call is the probe)
//	Half-Open → Closed: when the probe succeeds
//	Half-Open → Open:   when the probe fails
type CircuitBreaker struct {
	maxFailures int
	timeout     time.Duration
	now         func() time.Time
	onChange    func(State)

	mu       sync.Mutex
	state    atomic.Uint32
	failures int
	openedAt time.Time
}

// New creates a breaker that opens after maxFailures consecutive failures and
// probes again after timeout. onChange, if non-nil, observes every transition.
func New(maxFailures int, timeout time.Duration, onChange func(State)) *CircuitBreaker {
	return newWithClock(maxFailures, timeout, onChange, time.Now)
}

func newWithClock(maxFailures int, timeout time.Duration, onChange func(State), now func() time.Time) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 1
	}
	cb := &CircuitBreaker{
		maxFailures: maxFailures,
		timeout:     timeout,
		now:         now,
		onChange:    onChange,
	}
	cb.state.Store(uint32(StateClosed))
	return cb
}

// Allow reports whether a call may proceed.
func (cb *CircuitBreaker) Allow() bool {
	if cb.State() == StateClosed {
		return true
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.State() {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Sub(cb.openedAt) >= cb.timeout {
			cb.setState(StateHalfOpen)
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess resets the failure count and closes a half-open circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.State() == StateHalfOpen {
		cb.setState(StateClosed)
	}
}

// RecordFailure counts a failure, opening the circuit at the threshold or
// when the half-open probe fails.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	switch cb.State() {
	case StateHalfOpen:
		cb.open()
	case StateClosed:
		if cb.failures >= cb.maxFailures {
			cb.open()
		}
	}
}

// State returns the current state without locking.
func (cb *CircuitBreaker) State() State {
	return State(cb.state.Load())
}

// open must be called with mu held.
func (cb *CircuitBreaker) open() {
	cb.openedAt = cb.now()
	cb.setState(StateOpen)
}

// setState must be called with mu held.
func (cb *CircuitBreaker) setState(s State) {
	if State(cb.state.Swap(uint32(s))) != s && cb.onChange != nil {
		cb.onChange(s)
	}
}
