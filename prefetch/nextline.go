package prefetch

import "github.com/ooosim/coretrace/channel"

const blockSize = 64

// NextLine always prefetches the block immediately following the
// triggering access, grounded on prefetcher/next_line/next_line.h.
type NextLine struct {
	cache Cache
}

func (n *NextLine) Initialize(cache Cache) { n.cache = cache }

func (n *NextLine) CacheOperate(addr, _ uint64, _, _ bool, _ channel.AccessType, metadataIn uint32) uint32 {
	n.cache.PrefetchLine(addr+blockSize, true, metadataIn)
	return metadataIn
}

func (n *NextLine) CacheFill(_ uint64, _, _ int, _ bool, _ uint64, metadataIn uint32) uint32 {
	return metadataIn
}

func (n *NextLine) CycleOperate()                             {}
func (n *NextLine) BranchOperate(_ uint64, _ uint8, _ uint64) {}
func (n *NextLine) FinalStats()                               {}
