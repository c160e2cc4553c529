package lb

import "sync"

type weightedEntry struct {
	addr          string
	weight        int
	currentWeight int
}

// WeightedRoundRobin implements smooth weighted round robin (nginx algorithm).
//
// Each call to Next:
//  1. adds each backend's weight to its current weight
//  2. picks the backend with the highest current weight
//  3. subtracts the total weight of the round from the pick
type WeightedRoundRobin struct {
	mu      sync.Mutex
	entries []weightedEntry
}

// NewWeightedRoundRobin creates a smooth weighted balancer.
// Weights <= 0 default to 1.
func NewWeightedRoundRobin(backends []Backend) *WeightedRoundRobin {
	entries := make([]weightedEntry, len(backends))
	for i, b := range backends {
		w := b.Weight
		if w <= 0 {
			w = 1
		}
		entries[i] = weightedEntry{addr: b.Addr, weight: w}
	}
	return &WeightedRoundRobin{entries: entries}
}

// Next returns the next eligible backend. Ineligible backends sit out the
// round, as nginx does with peers marked down.
func (wrr *WeightedRoundRobin) Next(_ string, eligible Eligible) string {
	wrr.mu.Lock()
	defer wrr.mu.Unlock()

	if len(wrr.entries) == 0 {
		return ""
	}
	if !wrr.anyEligible(eligible) {
		eligible = nil
	}

	best, total := -1, 0
	for i := range wrr.entries {
		e := &wrr.entries[i]
		if !eligible.admits(e.addr) {
			continue
		}
		e.currentWeight += e.weight
		total += e.weight
		if best < 0 || e.currentWeight > wrr.entries[best].currentWeight {
			best = i
		}
	}
	wrr.entries[best].currentWeight -= total
	return wrr.entries[best].addr
}

func (wrr *WeightedRoundRobin) anyEligible(eligible Eligible) bool {
	for _, e := range wrr.entries {
		if eligible.admits(e.addr) {
			return true
		}
	}
	return false
}

// Backends returns the configured addresses.
func (wrr *WeightedRoundRobin) Backends() []string {
	addrs := make([]string, len(wrr.entries))
	for i, e := range wrr.entries {
		addrs[i] = e.addr
	}
	return addrs
}
