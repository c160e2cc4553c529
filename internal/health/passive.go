package health

import (
	"sync"
	"time"
)

// PassiveConfig holds passive check settings.
type PassiveConfig struct {
	Window         time.Duration `yaml:"window"`
	ErrorThreshold float64       `yaml:"error_threshold"` // 0.5 marks a backend unhealthy at 50% errors
	MinRequests    int           `yaml:"min_requests"`
}

func (cfg PassiveConfig) withDefaults() PassiveConfig {
	if cfg.Window <= 0 {
		cfg.Window = 30 * time.Second
	}
	if cfg.ErrorThreshold <= 0 {
		cfg.ErrorThreshold = 0.5
	}
	if cfg.MinRequests <= 0 {
		cfg.MinRequests = 10
	}
	return cfg
}

type outcome struct {
	at      time.Time
	success bool
}

type window struct {
	mu       sync.Mutex
	outcomes []outcome
}

// trim drops outcomes older than cutoff. mu must be held.
func (w *window) trim(cutoff time.Time) {
	i := 0
	for i < len(w.outcomes) && w.outcomes[i].at.Before(cutoff) {
		i++
	}
	w.outcomes = w.outcomes[i:]
}

// errorRate must be called with mu held.
func (w *window) errorRate() float64 {
	if len(w.outcomes) == 0 {
		return 0
	}
	failures := 0
	for _, o := range w.outcomes {
		if !o.success {
			failures++
		}
	}
	return float64(failures) / float64(len(w.outcomes))
}

// PassiveChecker infers backend health from the outcomes of real calls.
type PassiveChecker struct {
	cfg PassiveConfig
	now func() time.Time

	mu       sync.RWMutex
	backends map[string]*window
}

// NewPassiveChecker creates a passive checker.
func NewPassiveChecker(cfg PassiveConfig) *PassiveChecker {
	return newPassive(cfg, time.Now)
}

func newPassive(cfg PassiveConfig, now func() time.Time) *PassiveChecker {
	return &PassiveChecker{
		cfg:      cfg.withDefaults(),
		now:      now,
		backends: make(map[string]*window),
	}
}

// RecordSuccess records a successful call to backend.
func (pc *PassiveChecker) RecordSuccess(backend string) { pc.record(backend, true) }

// RecordFailure records a failed call to backend.
func (pc *PassiveChecker) RecordFailure(backend string) { pc.record(backend, false) }

func (pc *PassiveChecker) record(backend string, success bool) {
	w := pc.window(backend)
	now := pc.now()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.outcomes = append(w.outcomes, outcome{at: now, success: success})
	w.trim(now.Add(-pc.cfg.Window))
}

// IsHealthy reports whether backend's error rate in the window is below the
// threshold. Backends with fewer than MinRequests outcomes are healthy.
func (pc *PassiveChecker) IsHealthy(backend string) bool {
	pc.mu.RLock()
	w, ok := pc.backends[backend]
	pc.mu.RUnlock()
	if !ok {
		return true
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.trim(pc.now().Add(-pc.cfg.Window))
	if len(w.outcomes) < pc.cfg.MinRequests {
		return true
	}
	return w.errorRate() < pc.cfg.ErrorThreshold
}

// ErrorRate returns backend's current error rate.
func (pc *PassiveChecker) ErrorRate(backend string) float64 {
	pc.mu.RLock()
	w, ok := pc.backends[backend]
	pc.mu.RUnlock()
	if !ok {
		return 0
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.trim(pc.now().Add(-pc.cfg.Window))
	return w.errorRate()
}

func (pc *PassiveChecker) window(backend string) *window {
	pc.mu.RLock()
	w, ok := pc.backends[backend]
	pc.mu.RUnlock()
	if ok {
		return w
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()
	if w, ok := pc.backends[backend]; ok {
		return w
	}
	w = &window{}
	pc.backends[backend] = w
	return w
}
