package replacement

import "github.com/ooosim/coretrace/channel"

// LRU evicts the way whose last-use cycle is most distant, grounded on
// replacement/lru/lru.cc.
type LRU struct {
	numWay        int
	lastUsedCycle []uint64
	cycle         uint64
}

// NewLRU builds an LRU replacer for a cache of the given set/way geometry.
func NewLRU(numSet, numWay int) *LRU {
	return &LRU{numWay: numWay, lastUsedCycle: make([]uint64, numSet*numWay)}
}

func (l *LRU) Initialize() {}

func (l *LRU) FindVictim(_ uint32, _ uint64, set int, _ []BlockView, _, _ uint64, _ channel.AccessType) int {
	begin := set * l.numWay
	victim := 0
	min := l.lastUsedCycle[begin]
	for way := 1; way < l.numWay; way++ {
		if v := l.lastUsedCycle[begin+way]; v < min {
			min = v
			victim = way
		}
	}
	return victim
}

func (l *LRU) Update(_ uint32, set, way int, _, _, _ uint64, typ channel.AccessType, hit bool) {
	// Skip touching recency for writeback hits, matching lru.cc's
	// `!hit || type != WRITE` guard.
	if hit && typ == channel.Write {
		return
	}
	l.cycle++
	l.lastUsedCycle[set*l.numWay+way] = l.cycle
}

func (l *LRU) FinalStats() {}
