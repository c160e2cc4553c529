package circuitbreaker

import (
	"sync"
)

// PerBackend keeps a separate breaker per backend address, so one failing
// backend does not reject calls bound for healthy ones.
type PerBackend struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	cfg      Config
	onChange func(backend string, s State)
}

// NewPerBackend creates a per-backend breaker set. onChange, if non-nil,
// observes transitions of every backend's breaker.
func NewPerBackend(cfg Config, onChange func(backend string, s State)) *PerBackend {
	return &PerBackend{
		breakers: make(map[string]*CircuitBreaker),
		cfg:      cfg,
		onChange: onChange,
	}
}

// Allow checks whether calls to backend may proceed.
func (pb *PerBackend) Allow(backend string) bool {
	return pb.get(backend).Allow()
}

// RecordSuccess records a successful call to backend.
func (pb *PerBackend) RecordSuccess(backend string) {
	pb.get(backend).RecordSuccess()
}

// RecordFailure records a failed call to backend.
func (pb *PerBackend) RecordFailure(backend string) {
	pb.get(backend).RecordFailure()
}

// State returns the state of backend's breaker.
func (pb *PerBackend) State(backend string) State {
	return pb.get(backend).State()
}

func (pb *PerBackend) get(backend string) *CircuitBreaker {
	pb.mu.RLock()
	cb, ok := pb.breakers[backend]
	pb.mu.RUnlock()
	if ok {
		return cb
	}

	pb.mu.Lock()
	defer pb.mu.Unlock()
	if cb, ok := pb.breakers[backend]; ok {
		return cb
	}

	var onChange func(State)
	if pb.onChange != nil {
		onChange = func(s State) { pb.onChange(backend, s) }
	}
	cb = New(pb.cfg.MaxFailures, pb.cfg.Timeout, onChange)
	pb.breakers[backend] = cb
	return cb
}
