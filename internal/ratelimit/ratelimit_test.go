package ratelimit

import (
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// --- Token Bucket ---

func TestTokenBucketAllowsBurst(t *testing.T) {
	tb := newTokenBucket(5, 1.0, newFakeClock().Now)

	for i := 0; i < 5; i++ {
		if ok, _ := tb.Allow(); !ok {
			t.Fatalf("call %d should be allowed (burst)", i)
		}
	}

	ok, retry := tb.Allow()
	if ok {
		t.Fatal("6th call should be rejected")
	}
	if retry != time.Second {
		t.Fatalf("expected retry-after 1s, got %v", retry)
	}
}

func TestTokenBucketRefills(t *testing.T) {
	clock := newFakeClock()
	tb := newTokenBucket(2, 10.0, clock.Now)

	tb.Allow()
	tb.Allow()
	if ok, _ := tb.Allow(); ok {
		t.Fatal("should be empty")
	}

	clock.Advance(150 * time.Millisecond)

	if ok, _ := tb.Allow(); !ok {
		t.Fatal("should have refilled at least 1 token")
	}
}

func TestTokenBucketDoesNotExceedCapacity(t *testing.T) {
	clock := newFakeClock()
	tb := newTokenBucket(3, 100.0, clock.Now)

	clock.Advance(time.Hour)

	allowed := 0
	for i := 0; i < 10; i++ {
		if ok, _ := tb.Allow(); ok {
			allowed++
		}
	}
	if allowed != 3 {
		t.Fatalf("expected 3 allowed (capacity), got %d", allowed)
	}
}

func TestTokenBucketNoRefillHasUnknownRetry(t *testing.T) {
	tb := NewTokenBucket(1, 0)
	tb.Allow()
	ok, retry := tb.Allow()
	if ok || retry != 0 {
		t.Fatalf("expected rejection with unknown retry, got ok=%v retry=%v", ok, retry)
	}
}

func TestTokenBucketConcurrent(t *testing.T) {
	tb := NewTokenBucket(100, 0)

	var wg sync.WaitGroup
	allowed := make(chan bool, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := tb.Allow()
			allowed <- ok
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for ok := range allowed {
		if ok {
			count++
		}
	}
	if count != 100 {
		t.Fatalf("expected exactly 100 allowed, got %d", count)
	}
}

// --- Sliding Window ---

func TestSlidingWindowBasic(t *testing.T) {
	sw := newSlidingWindow(5, time.Second, newFakeClock().Now)

	for i := 0; i < 5; i++ {
		if ok, _ := sw.Allow(); !ok {
			t.Fatalf("call %d should be allowed", i)
		}
	}

	ok, retry := sw.Allow()
	if ok {
		t.Fatal("6th call should be rejected")
	}
	if retry != time.Second {
		t.Fatalf("expected retry-after 1s, got %v", retry)
	}
}

func TestSlidingWindowResetsAfterIdle(t *testing.T) {
	clock := newFakeClock()
	sw := newSlidingWindow(2, 100*time.Millisecond, clock.Now)

	sw.Allow()
	sw.Allow()
	if ok, _ := sw.Allow(); ok {
		t.Fatal("should be limited")
	}

	clock.Advance(200 * time.Millisecond)

	if ok, _ := sw.Allow(); !ok {
		t.Fatal("should be allowed after two idle windows")
	}
}

func TestSlidingWindowWeightsPreviousWindow(t *testing.T) {
	clock := newFakeClock()
	sw := newSlidingWindow(10, 100*time.Millisecond, clock.Now)

	for i := 0; i < 10; i++ {
		sw.Allow()
	}

	// Halfway into the next window: half of the previous 10 still counts.
	clock.Advance(150 * time.Millisecond)

	allowed := 0
	for i := 0; i < 8; i++ {
		if ok, _ := sw.Allow(); ok {
			allowed++
		}
	}
	if allowed != 5 {
		t.Fatalf("expected exactly 5 allowed, got %d", allowed)
	}
}

func TestSlidingWindowConcurrent(t *testing.T) {
	sw := NewSlidingWindow(100, time.Minute)

	var wg sync.WaitGroup
	allowed := make(chan bool, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := sw.Allow()
			allowed <- ok
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for ok := range allowed {
		if ok {
			count++
		}
	}
	if count != 100 {
		t.Fatalf("expected 100 allowed, got %d", count)
	}
}

// --- Per-Key ---

func TestPerKeyIsolation(t *testing.T) {
	pk := NewPerClient(2, 0, 10*time.Minute)
	defer pk.Close()

	pk.Allow("A")
	pk.Allow("A")
	if ok, _ := pk.Allow("A"); ok {
		t.Fatal("A should be rate limited")
	}
	if ok, _ := pk.Allow("B"); !ok {
		t.Fatal("B should not be affected by A")
	}
	if pk.Len() != 2 {
		t.Fatalf("expected 2 keys, got %d", pk.Len())
	}
}

func TestPerKeyUsesFactory(t *testing.T) {
	created := 0
	pk := NewPerKey(func() Limiter {
		created++
		return NewSlidingWindow(1, time.Minute)
	}, time.Minute)
	defer pk.Close()

	pk.Allow("x")
	if ok, _ := pk.Allow("x"); ok {
		t.Fatal("sliding window of 1 should reject the second call")
	}
	if created != 1 {
		t.Fatalf("expected 1 limiter created, got %d", created)
	}
}

func TestPerKeyGarbageCollection(t *testing.T) {
	pk := NewPerClient(5, 1.0, 100*time.Millisecond)
	defer pk.Close()

	pk.Allow("temp-client")

	// gc runs every 50ms; wait for a pass after the key went stale
	time.Sleep(300 * time.Millisecond)

	if pk.Len() != 0 {
		t.Fatal("stale key should have been garbage collected")
	}
}

func TestPerKeyNewEntrySurvivesSweep(t *testing.T) {
	pk := NewPerClient(5, 1.0, time.Minute)
	defer pk.Close()

	// a sweep between creation and the first Allow must not see a zero timestamp
	e := pk.entry("fresh")
	if e.lastAccess.Load() == 0 {
		t.Fatal("new entry should carry a creation timestamp")
	}
	pk.sweep(time.Now())
	if pk.Len() != 1 {
		t.Fatalf("fresh key swept, %d keys left", pk.Len())
	}

	pk.sweep(time.Now().Add(2 * time.Minute))
	if pk.Len() != 0 {
		t.Fatal("key idle past the threshold should be swept")
	}
}

func TestPerKeyCloseTwice(t *testing.T) {
	pk := NewPerClient(1, 1, time.Minute)
	if err := pk.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := pk.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestPerKeyConcurrent(t *testing.T) {
	pk := NewPerClient(1000, 0, 10*time.Minute)
	defer pk.Close()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pk.Allow("shared-key")
		}()
	}
	wg.Wait()
	if pk.Len() != 1 {
		t.Fatalf("expected a single key, got %d", pk.Len())
	}
}

// --- Config ---

func TestConfigFactory(t *testing.T) {
	newTB, err := Config{Capacity: 1, Rate: 1}.Factory()
	if err != nil {
		t.Fatalf("token bucket factory: %v", err)
	}
	if _, ok := newTB().(*TokenBucket); !ok {
		t.Fatal("default strategy should build a token bucket")
	}

	newSW, err := Config{Strategy: StrategySlidingWindow, MaxRequests: 3, Window: time.Second}.Factory()
	if err != nil {
		t.Fatalf("sliding window factory: %v", err)
	}
	if _, ok := newSW().(*SlidingWindow); !ok {
		t.Fatal("expected a sliding window")
	}

	if _, err := (Config{Strategy: "leaky"}).Factory(); err == nil {
		t.Fatal("unknown strategy should fail")
	}
	if _, err := (Config{}).Factory(); err == nil {
		t.Fatal("zero capacity should fail")
	}
	if _, err := (Config{Strategy: StrategySlidingWindow}).Factory(); err == nil {
		t.Fatal("empty sliding window should fail")
	}
}
