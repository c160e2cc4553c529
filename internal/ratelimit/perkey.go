package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"
)

type keyEntry struct {
	limiter    Limiter
	lastAccess atomic.Int64 // unix nanos
}

// PerKey keeps one Limiter per key (client IP, API key, route...).
//
// A background goroutine drops limiters idle longer than staleThreshold.
type PerKey struct {
	mu             sync.RWMutex
	keys           map[string]*keyEntry
	newLimiter     func() Limiter
	staleThreshold time.Duration
	stop           chan struct{}
	closeOnce      sync.Once
}

// NewPerKey creates a keyed limiter. newLimiter builds the limiter for a key
// on first use. A zero staleThreshold defaults to 10 minutes.
func NewPerKey(newLimiter func() Limiter, staleThreshold time.Duration) *PerKey {
	if staleThreshold <= 0 {
		staleThreshold = 10 * time.Minute
	}
	pk := &PerKey{
		keys:           make(map[string]*keyEntry),
		newLimiter:     newLimiter,
		staleThreshold: staleThreshold,
		stop:           make(chan struct{}),
	}
	go pk.gc()
	return pk
}

// NewPerClient creates a keyed token-bucket limiter.
func NewPerClient(capacity int, rate float64, staleThreshold time.Duration) *PerKey {
	return NewPerKey(func() Limiter { return NewTokenBucket(capacity, rate) }, staleThreshold)
}

// Allow checks the limit for key, creating its limiter on first use.
func (pk *PerKey) Allow(key string) (ok bool, retryAfter time.Duration) {
	e := pk.entry(key)
	e.lastAccess.Store(time.Now().UnixNano())
	return e.limiter.Allow()
}

// Len returns the number of tracked keys.
func (pk *PerKey) Len() int {
	pk.mu.RLock()
	defer pk.mu.RUnlock()
	return len(pk.keys)
}

func (pk *PerKey) entry(key string) *keyEntry {
	pk.mu.RLock()
	e, ok := pk.keys[key]
	pk.mu.RUnlock()
	if ok {
		return e
	}

	pk.mu.Lock()
	defer pk.mu.Unlock()
	if e, ok := pk.keys[key]; ok {
		return e
	}
	e = &keyEntry{limiter: pk.newLimiter()}
	e.lastAccess.Store(time.Now().UnixNano())
	pk.keys[key] = e
	return e
}

func (pk *PerKey) gc() {
	ticker := time.NewTicker(pk.staleThreshold / 2)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			pk.sweep(now)
		case <-pk.stop:
			return
		}
	}
}

// sweep drops keys not used since staleThreshold before now.
func (pk *PerKey) sweep(now time.Time) {
	cutoff := now.Add(-pk.staleThreshold).UnixNano()
	pk.mu.Lock()
	defer pk.mu.Unlock()
	for key, e := range pk.keys {
		if e.lastAccess.Load() < cutoff {
			delete(pk.keys, key)
		}
	}
}

// Close stops the background garbage collection. It is safe to call twice.
func (pk *PerKey) Close() error {
	pk.closeOnce.Do(func() { close(pk.stop) })
	return nil
}
