package lb

import (
	"hash/crc32"
	"slices"
	"sort"
	"strconv"
)

// ConsistentHash maps call keys to backends on a hash ring with replicas
// virtual nodes per backend. Adding or removing a backend remaps about 1/N
// of the keys. The ring is immutable after construction.
type ConsistentHash struct {
	ring     []uint32
	nodes    map[uint32]string
	backends []string
}

// NewConsistentHash builds the ring.
func NewConsistentHash(replicas int, backends []string) *ConsistentHash {
	if replicas <= 0 {
		replicas = DefaultReplicas
	}
	ch := &ConsistentHash{
		nodes:    make(map[uint32]string, replicas*len(backends)),
		backends: append([]string(nil), backends...),
	}
	for _, addr := range backends {
		for i := 0; i < replicas; i++ {
			h := crc32.ChecksumIEEE([]byte(addr + "-" + strconv.Itoa(i)))
			ch.ring = append(ch.ring, h)
			ch.nodes[h] = addr
		}
	}
	slices.Sort(ch.ring)
	return ch
}

// Next returns the backend owning key: the first eligible virtual node
// clockwise. Keys of an ineligible backend spill to its ring successors
// while the keys of other backends stay where they are.
func (ch *ConsistentHash) Next(key string, eligible Eligible) string {
	if len(ch.ring) == 0 {
		return ""
	}
	h := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(ch.ring), func(i int) bool { return ch.ring[i] >= h })
	for i := 0; i < len(ch.ring); i++ {
		addr := ch.nodes[ch.ring[(idx+i)%len(ch.ring)]]
		if eligible.admits(addr) {
			return addr
		}
	}
	return ch.nodes[ch.ring[idx%len(ch.ring)]]
}

// Backends returns the configured addresses.
func (ch *ConsistentHash) Backends() []string {
	return append([]string(nil), ch.backends...)
}
