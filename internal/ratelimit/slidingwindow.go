package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindow approximates a sliding window with two counters:
//
//	effective = prevCount × (1 - elapsed/windowSize) + currCount
type SlidingWindow struct {
	mu          sync.Mutex
	maxRequests int
	windowSize  time.Duration
	windowStart time.Time
	prevCount   int
	currCount   int
	now         func() time.Time
}

// NewSlidingWindow allows maxRequests per windowSize.
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return newSlidingWindow(maxRequests, windowSize, time.Now)
}

func newSlidingWindow(maxRequests int, windowSize time.Duration, now func() time.Time) *SlidingWindow {
	return &SlidingWindow{
		maxRequests: maxRequests,
		windowSize:  windowSize,
		windowStart: now(),
		now:         now,
	}
}

// Allow admits one call if the weighted count stays within the limit.
func (sw *SlidingWindow) Allow() (ok bool, retryAfter time.Duration) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	elapsed := now.Sub(sw.windowStart)

	switch {
	case elapsed >= 2*sw.windowSize:
		sw.prevCount = 0
		sw.currCount = 0
		sw.windowStart = now
		elapsed = 0
	case elapsed >= sw.windowSize:
		sw.prevCount = sw.currCount
		sw.currCount = 0
		sw.windowStart = sw.windowStart.Add(sw.windowSize)
		elapsed = now.Sub(sw.windowStart)
	}

	weight := 1.0 - elapsed.Seconds()/sw.windowSize.Seconds()
	if weight < 0 {
		weight = 0
	}
	effective := float64(sw.prevCount)*weight + float64(sw.currCount)

	if effective+1 > float64(sw.maxRequests) {
		return false, sw.windowSize - elapsed
	}
	sw.currCount++
	return true, 0
}
