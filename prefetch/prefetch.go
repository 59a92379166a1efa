// Package prefetch implements the pluggable prefetcher contract, grounded
// on champsim::modules::prefetcher and reference implementations under
// prefetcher/ in the original source.
package prefetch

import "github.com/ooosim/coretrace/channel"

// Cache is the subset of cache.Controller a prefetcher needs to issue its
// own internal prefetches, kept as a narrow interface to avoid a cyclic
// dependency between the cache and prefetch packages.
type Cache interface {
	PrefetchLine(addr uint64, fillThisLevel bool, metadata uint32) bool
}

// Prefetcher is the contract a cache controller drives on every eligible
// tag check and on every fill.
type Prefetcher interface {
	Initialize(cache Cache)
	CacheOperate(addr, ip uint64, hit, useful bool, typ channel.AccessType, metadataIn uint32) uint32
	CacheFill(addr uint64, set, way int, prefetch bool, evictedAddr uint64, metadataIn uint32) uint32
	CycleOperate()
	BranchOperate(ip uint64, branchType uint8, target uint64)
	FinalStats()
}

// Chain composes multiple prefetchers for a single cache; every
// notification broadcasts, and cache_operate/cache_fill fold
// last-writer-wins over the metadata value, following the module-composition
// rule.
type Chain struct {
	modules []Prefetcher
}

// NewChain builds a prefetcher that broadcasts to every module in order.
func NewChain(modules ...Prefetcher) *Chain {
	return &Chain{modules: modules}
}

func (c *Chain) Initialize(cache Cache) {
	for _, m := range c.modules {
		m.Initialize(cache)
	}
}

func (c *Chain) CacheOperate(addr, ip uint64, hit, useful bool, typ channel.AccessType, metadataIn uint32) uint32 {
	out := metadataIn
	for _, m := range c.modules {
		out = m.CacheOperate(addr, ip, hit, useful, typ, out)
	}
	return out
}

func (c *Chain) CacheFill(addr uint64, set, way int, prefetch bool, evictedAddr uint64, metadataIn uint32) uint32 {
	out := metadataIn
	for _, m := range c.modules {
		out = m.CacheFill(addr, set, way, prefetch, evictedAddr, out)
	}
	return out
}

func (c *Chain) CycleOperate() {
	for _, m := range c.modules {
		m.CycleOperate()
	}
}

func (c *Chain) BranchOperate(ip uint64, branchType uint8, target uint64) {
	for _, m := range c.modules {
		m.BranchOperate(ip, branchType, target)
	}
}

func (c *Chain) FinalStats() {
	for _, m := range c.modules {
		m.FinalStats()
	}
}
