package lb

import "sync/atomic"

type leastConnEntry struct {
	addr   string
	active atomic.Int64
}

// LeastConnections picks the backend with the fewest in-flight calls.
// Every Next must be paired with a Done for the returned address.
type LeastConnections struct {
	entries []leastConnEntry
}

// NewLeastConnections creates a least-connections balancer.
func NewLeastConnections(backends []string) *LeastConnections {
	entries := make([]leastConnEntry, len(backends))
	for i, addr := range backends {
		entries[i].addr = addr
	}
	return &LeastConnections{entries: entries}
}

// Next returns the least busy eligible backend and counts the call against it.
func (lc *LeastConnections) Next(_ string, eligible Eligible) string {
	if len(lc.entries) == 0 {
		return ""
	}

	best := lc.pick(eligible)
	if best < 0 {
		best = lc.pick(nil)
	}
	lc.entries[best].active.Add(1)
	return lc.entries[best].addr
}

// pick returns the index of the least busy eligible entry, or -1.
func (lc *LeastConnections) pick(eligible Eligible) int {
	best := -1
	var bestCount int64
	for i := range lc.entries {
		if !eligible.admits(lc.entries[i].addr) {
			continue
		}
		if n := lc.entries[i].active.Load(); best < 0 || n < bestCount {
			best, bestCount = i, n
		}
	}
	return best
}

// Done releases a call counted by Next.
func (lc *LeastConnections) Done(addr string) {
	for i := range lc.entries {
		if lc.entries[i].addr == addr {
			lc.entries[i].active.Add(-1)
			return
		}
	}
}

// Active returns the in-flight count for addr.
func (lc *LeastConnections) Active(addr string) int64 {
	for i := range lc.entries {
		if lc.entries[i].addr == addr {
			return lc.entries[i].active.Load()
		}
	}
	return 0
}

// Backends returns the configured addresses.
func (lc *LeastConnections) Backends() []string {
	addrs := make([]string, len(lc.entries))
	for i := range lc.entries {
		addrs[i] = lc.entries[i].addr
	}
	return addrs
}
