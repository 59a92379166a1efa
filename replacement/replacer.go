// Package replacement implements the pluggable cache replacement-policy
// contract described by the replacement-policy interface, grounded on
// champsim::modules::replacement and its two reference policies in
// replacement/lru/lru.cc and replacement/srrip/srrip.h.
package replacement

import "github.com/ooosim/coretrace/channel"

// BlockView is the read-only view of one cache way a replacer needs to
// pick a victim, mirroring the CACHE::BLOCK pointer champsim passes in.
type BlockView struct {
	Valid   bool
	Address uint64
}

// Replacer is the contract a cache controller drives on every fill and
// every tag-check hit.
type Replacer interface {
	Initialize()
	FindVictim(cpu uint32, instrID uint64, set int, setBlocks []BlockView, ip, fullAddr uint64, typ channel.AccessType) int
	Update(cpu uint32, set, way int, fullAddr, ip, victimAddr uint64, typ channel.AccessType, hit bool)
	FinalStats()
}

// Chain composes multiple replacers for a single cache. find_victim
// delegates to the last configured replacer, per the pluggable-modules
// fold rule; every other notification is broadcast to all.
type Chain struct {
	policies []Replacer
}

// NewChain builds a replacer that broadcasts notifications to every policy
// in order but answers FindVictim using only the last one.
func NewChain(policies ...Replacer) *Chain {
	return &Chain{policies: policies}
}

func (c *Chain) Initialize() {
	for _, p := range c.policies {
		p.Initialize()
	}
}

func (c *Chain) FindVictim(cpu uint32, instrID uint64, set int, setBlocks []BlockView, ip, fullAddr uint64, typ channel.AccessType) int {
	if len(c.policies) == 0 {
		return 0
	}
	return c.policies[len(c.policies)-1].FindVictim(cpu, instrID, set, setBlocks, ip, fullAddr, typ)
}

func (c *Chain) Update(cpu uint32, set, way int, fullAddr, ip, victimAddr uint64, typ channel.AccessType, hit bool) {
	for _, p := range c.policies {
		p.Update(cpu, set, way, fullAddr, ip, victimAddr, typ, hit)
	}
}

func (c *Chain) FinalStats() {
	for _, p := range c.policies {
		p.FinalStats()
	}
}
