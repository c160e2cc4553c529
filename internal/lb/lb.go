// Package lb picks the backend a gateway call is forwarded to.
package lb

import (
	"fmt"
	"sync/atomic"
)

// Eligible reports whether a backend may be picked. A nil Eligible admits
// every backend.
type Eligible func(addr string) bool

// Balancer selects a backend for a call. key identifies the caller for
// strategies that need affinity; others ignore it. Only eligible backends
// are picked; when none is eligible every backend is.
type Balancer interface {
	Next(key string, eligible Eligible) string
	Backends() []string
}

func (e Eligible) admits(addr string) bool {
	return e == nil || e(addr)
}

// anyEligible reports whether at least one of addrs is admitted by e.
func anyEligible(e Eligible, addrs []string) bool {
	for _, a := range addrs {
		if e.admits(a) {
			return true
		}
	}
	return false
}

// Releaser is implemented by balancers that track in-flight calls. Done
// must be called once per Next when the call finishes.
type Releaser interface {
	Done(addr string)
}

// Backend pairs an address with its weight. Weight only matters to the
// weighted strategy.
type Backend struct {
	Addr   string `yaml:"addr"`
	Weight int    `yaml:"weight,omitempty"`
}

// Strategy names a balancing algorithm in configuration.
type Strategy string

const (
	StrategyRoundRobin     Strategy = "round_robin"
	StrategyWeighted       Strategy = "weighted"
	StrategyLeastConn      Strategy = "least_conn"
	StrategyConsistentHash Strategy = "consistent_hash"
)

// DefaultReplicas is the number of virtual nodes per backend on the hash ring.
const DefaultReplicas = 150

// New builds the balancer named by strategy. An empty strategy means round robin.
func New(strategy Strategy, backends []Backend) (Balancer, error) {
	addrs := make([]string, len(backends))
	for i, b := range backends {
		addrs[i] = b.Addr
	}
	switch strategy {
	case "", StrategyRoundRobin:
		return NewRoundRobin(addrs), nil
	case StrategyWeighted:
		return NewWeightedRoundRobin(backends), nil
	case StrategyLeastConn:
		return NewLeastConnections(addrs), nil
	case StrategyConsistentHash:
		return NewConsistentHash(DefaultReplicas, addrs), nil
	default:
		return nil, fmt.Errorf("unknown balancer %q", strategy)
	}
}

// RoundRobin cycles through backends in order.
type RoundRobin struct {
	backends []string
	counter  atomic.Uint64
}

// NewRoundRobin creates a round robin balancer.
func NewRoundRobin(backends []string) *RoundRobin {
	return &RoundRobin{backends: backends}
}

// Next returns the next eligible backend in order, starting with the first.
func (rr *RoundRobin) Next(_ string, eligible Eligible) string {
	n := uint64(len(rr.backends))
	if n == 0 {
		return ""
	}
	if !anyEligible(eligible, rr.backends) {
		eligible = nil
	}
	for {
		addr := rr.backends[(rr.counter.Add(1)-1)%n]
		if eligible.admits(addr) {
			return addr
		}
	}
}

// Backends returns the configured addresses.
func (rr *RoundRobin) Backends() []string {
	return append([]string(nil), rr.backends...)
}
