// Package health tracks which backends should receive gateway calls.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Checker reports whether a backend may receive calls.
type Checker interface {
	IsHealthy(backend string) bool
}

// Status represents backend health status.
type Status int

const (
	StatusUnknown Status = iota
	StatusHealthy
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// ActiveConfig holds active probe settings.
type ActiveConfig struct {
	Interval           time.Duration `yaml:"interval"`
	Timeout            time.Duration `yaml:"timeout"`
	Path               string        `yaml:"path"`
	HealthyThreshold   int           `yaml:"healthy_threshold"`
	UnhealthyThreshold int           `yaml:"unhealthy_threshold"`
}

func (cfg ActiveConfig) withDefaults() ActiveConfig {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.Path == "" {
		cfg.Path = "/health"
	}
	if cfg.HealthyThreshold <= 0 {
		cfg.HealthyThreshold = 2
	}
	if cfg.UnhealthyThreshold <= 0 {
		cfg.UnhealthyThreshold = 3
	}
	return cfg
}

type probeState struct {
	status    Status
	successes int
	failures  int
}

// ActiveChecker probes every backend's health path on an interval.
// Backends start as unknown, which counts as healthy.
type ActiveChecker struct {
	cfg      ActiveConfig
	client   *http.Client
	onChange func(backend string, healthy bool)

	mu       sync.RWMutex
	backends map[string]*probeState

	cancel context.CancelFunc
	done   chan struct{}
}

// NewActiveChecker starts probing backends. onChange, if non-nil, observes
// every transition between healthy and unhealthy.
func NewActiveChecker(backends []string, cfg ActiveConfig, onChange func(backend string, healthy bool)) *ActiveChecker {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	ac := &ActiveChecker{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		onChange: onChange,
		backends: make(map[string]*probeState, len(backends)),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for _, addr := range backends {
		ac.backends[addr] = &probeState{}
	}

	go ac.run(ctx)
	return ac
}

// IsHealthy reports false only for backends that failed enough probes in a row.
func (ac *ActiveChecker) IsHealthy(backend string) bool {
	return ac.Status(backend) != StatusUnhealthy
}

// Status returns the probe status of backend.
func (ac *ActiveChecker) Status(backend string) Status {
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	if ps, ok := ac.backends[backend]; ok {
		return ps.status
	}
	return StatusUnknown
}

// Close stops probing and waits for the probe loop to exit.
func (ac *ActiveChecker) Close() error {
	ac.cancel()
	<-ac.done
	return nil
}

func (ac *ActiveChecker) run(ctx context.Context) {
	defer close(ac.done)

	ticker := time.NewTicker(ac.cfg.Interval)
	defer ticker.Stop()

	ac.probeAll(ctx)
	for {
		select {
		case <-ticker.C:
			ac.probeAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (ac *ActiveChecker) probeAll(ctx context.Context) {
	ac.mu.RLock()
	backends := make([]string, 0, len(ac.backends))
	for addr := range ac.backends {
		backends = append(backends, addr)
	}
	ac.mu.RUnlock()

	var wg sync.WaitGroup
	for _, addr := range backends {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ac.record(addr, ac.probe(ctx, addr))
		}()
	}
	wg.Wait()
}

// probe reports whether backend answered its health path with a 2xx.
func (ac *ActiveChecker) probe(ctx context.Context, backend string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, backend+ac.cfg.Path, nil)
	if err != nil {
		return false
	}
	resp, err := ac.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (ac *ActiveChecker) record(backend string, ok bool) {
	ac.mu.Lock()
	ps, exists := ac.backends[backend]
	if !exists {
		ac.mu.Unlock()
		return
	}
	before := ps.status
	if ok {
		ps.successes++
		ps.failures = 0
		if ps.successes >= ac.cfg.HealthyThreshold {
			ps.status = StatusHealthy
		}
	} else {
		ps.failures++
		ps.successes = 0
		if ps.failures >= ac.cfg.UnhealthyThreshold {
			ps.status = StatusUnhealthy
		}
	}
	after := ps.status
	ac.mu.Unlock()

	wasHealthy := before != StatusUnhealthy
	isHealthy := after != StatusUnhealthy
	if wasHealthy != isHealthy && ac.onChange != nil {
		ac.onChange(backend, isHealthy)
	}
}

// AllStatus returns a snapshot of every backend's status.
func (ac *ActiveChecker) AllStatus() map[string]Status {
	ac.mu.RLock()
	defer ac.mu.RUnlock()

	out := make(map[string]Status, len(ac.backends))
	for addr, ps := range ac.backends {
		out[addr] = ps.status
	}
	return out
}
