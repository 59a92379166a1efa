// Package cache implements the set-associative cache controller: tag
// lookup, MSHRs, fills and dirty writebacks, translation coupling, and
// the prefetcher/replacer hooks, grounded on src/cache.cc.
package cache

import (
	"github.com/ooosim/coretrace/addr"
	"github.com/ooosim/coretrace/channel"
	"github.com/ooosim/coretrace/prefetch"
	"github.com/ooosim/coretrace/replacement"
)

// Block is one cache line slot.
type Block struct {
	Valid     bool
	Prefetch  bool
	Dirty     bool
	Address   uint64
	VAddress  uint64
	Data      uint64
	PFMetadata uint32
}

// tagLookup is a request admitted into the tag-check pipeline, mirroring
// CACHE::tag_lookup_type.
type tagLookup struct {
	req              channel.Request
	prefetchFromThis bool
	skipFill         bool
	eventCycle       uint64
	toReturn         []*channel.Channel
	translateIssued  bool
}

// mshrEntry is an outstanding miss, mirroring CACHE::mshr_type.
type mshrEntry struct {
	req            channel.Request
	prefetchFromThis bool
	cycleEnqueued  uint64
	eventCycle     uint64
	toReturn       []*channel.Channel
}

// inflightWrite is a store admitted past the tag check, charged
// FILL_LATENCY before it lands, mirroring CACHE::inflight_writes.
type inflightWrite struct {
	req        channel.Request
	eventCycle uint64
}

// Stats accumulates the per-access-type hit/miss counters and the
// prefetch-accounting counters.
type Stats struct {
	Hits   map[channel.AccessType]uint64
	Misses map[channel.AccessType]uint64

	PFRequested  uint64
	PFIssued     uint64
	PFUseful     uint64
	PFUseless    uint64
	PFFill       uint64
	TotalMissLatency uint64
}

func newStats() Stats {
	return Stats{Hits: make(map[channel.AccessType]uint64), Misses: make(map[channel.AccessType]uint64)}
}

// Config holds a controller's fixed geometry and timing.
type Config struct {
	NumSet int
	NumWay int

	HitLatency  uint64
	FillLatency uint64
	MaxTag      int
	MaxFill     int
	MSHRSize    int

	// VirtualPrefetch, when true, issues internally-generated prefetches
	// with a virtual rather than physical address (they must still be
	// translated before a tag check).
	VirtualPrefetch bool
	PrefetchAsLoad  bool
	MatchOffsetBits bool

	PQSize int
}

// Controller is a set-associative cache, grounded on CACHE.
type Controller struct {
	cfg     Config
	blocks  []Block
	replacer replacement.Replacer
	prefetcher prefetch.Prefetcher

	upper *channel.Channel // RQ/WQ/PQ producers read this level
	lower *channel.Channel // this level's requests go to the level below
	lowerTranslate *channel.Channel // optional, for untranslated requests

	internalPQ []tagLookup
	mshr       []mshrEntry
	inflightWrites []inflightWrite
	inflightTagCheck []tagLookup
	translationStash []tagLookup

	cpu uint32
	now uint64
	warmup bool

	Stats          Stats
	warmupSnapshot Stats
}

// New builds a cache controller with blocks initially invalid.
func New(cfg Config, upper, lower, lowerTranslate *channel.Channel, replacer replacement.Replacer, prefetcher prefetch.Prefetcher) *Controller {
	c := &Controller{
		cfg:            cfg,
		blocks:         make([]Block, cfg.NumSet*cfg.NumWay),
		replacer:       replacer,
		prefetcher:     prefetcher,
		upper:          upper,
		lower:          lower,
		lowerTranslate: lowerTranslate,
		Stats:          newStats(),
		warmupSnapshot: newStats(),
	}
	if replacer != nil {
		replacer.Initialize()
	}
	if prefetcher != nil {
		prefetcher.Initialize(c)
	}
	return c
}

func (c *Controller) setIndex(address uint64) int {
	shift := addr.BlockOffsetBits
	return int((address >> shift) & addr.Bitmask(addr.Lg2(uint64(c.cfg.NumSet))))
}

func (c *Controller) setSpan(address uint64) (int, int) {
	idx := c.setIndex(address)
	begin := idx * c.cfg.NumWay
	return begin, begin + c.cfg.NumWay
}

// PrefetchLine queues an internally-generated prefetch, grounded on
// CACHE::prefetch_line; it implements the narrow prefetch.Cache
// interface a prefetcher module drives.
func (c *Controller) PrefetchLine(pfAddr uint64, fillThisLevel bool, metadata uint32) bool {
	c.Stats.PFRequested++
	if len(c.internalPQ) >= c.cfg.PQSize {
		return false
	}

	req := channel.Request{
		Type:       channel.Prefetch,
		PFMetadata: metadata,
		CPU:        c.cpu,
		Address:    pfAddr,
	}
	if c.cfg.VirtualPrefetch {
		req.VAddress = pfAddr
		req.IsTranslated = false
	} else {
		req.IsTranslated = true
	}

	c.internalPQ = append(c.internalPQ, tagLookup{req: req, prefetchFromThis: true, skipFill: !fillThisLevel})
	c.Stats.PFIssued++
	return true
}

// InvalidateEntry invalidates the block for inval addr, if present,
// returning its way index or -1, grounded on CACHE::invalidate_entry.
func (c *Controller) InvalidateEntry(address uint64) int {
	begin, end := c.setSpan(address)
	for way := begin; way < end; way++ {
		if c.blocks[way].Valid && addr.SameBlock(c.blocks[way].Address, address) {
			c.blocks[way].Valid = false
			return way - begin
		}
	}
	return -1
}

// tryHit performs the tag lookup and, on hit, updates replacement state
// and delivers the response, grounded on CACHE::try_hit.
func (c *Controller) tryHit(pkt tagLookup) bool {
	c.cpu = pkt.req.CPU
	begin, end := c.setSpan(pkt.req.Address)
	way := -1
	for w := begin; w < end; w++ {
		if c.blocks[w].Valid && addr.SameBlock(c.blocks[w].Address, pkt.req.Address) {
			way = w
			break
		}
	}
	hit := way >= 0
	usefulPrefetch := hit && c.blocks[way].Prefetch && !pkt.prefetchFromThis

	metadataThru := pkt.req.PFMetadata
	if c.prefetcher != nil && c.shouldActivatePrefetcher(pkt) {
		base := pkt.req.Address
		if c.cfg.VirtualPrefetch {
			base = pkt.req.VAddress
		}
		metadataThru = c.prefetcher.CacheOperate(base, pkt.req.IP, hit, usefulPrefetch, pkt.req.Type, metadataThru)
	}

	if !hit {
		return false
	}

	c.Stats.Hits[pkt.req.Type]++

	if c.replacer != nil {
		c.replacer.Update(pkt.req.CPU, way/c.cfg.NumWay, way%c.cfg.NumWay, c.blocks[way].Address, pkt.req.IP, 0, pkt.req.Type, true)
	}

	for _, ret := range pkt.toReturn {
		ret.Deliver(channel.Response{
			Address:         pkt.req.Address,
			VAddress:        pkt.req.VAddress,
			Data:            c.blocks[way].Data,
			PFMetadata:      metadataThru,
			InstrDependOnMe: pkt.req.InstrDependOnMe,
		})
	}

	c.blocks[way].Dirty = pkt.req.Type == channel.Write
	if usefulPrefetch {
		c.Stats.PFUseful++
		c.blocks[way].Prefetch = false
	}
	return true
}

func (c *Controller) shouldActivatePrefetcher(pkt tagLookup) bool {
	return pkt.req.Type != channel.Prefetch || pkt.prefetchFromThis
}

// handleMiss allocates or merges an MSHR and forwards the request to
// the lower level, grounded on CACHE::handle_miss.
func (c *Controller) handleMiss(pkt tagLookup) bool {
	c.cpu = pkt.req.CPU

	for i := range c.mshr {
		m := &c.mshr[i]
		if !addr.SameBlock(m.req.Address, pkt.req.Address) {
			continue
		}
		m.req.InstrDependOnMe = unionU64(m.req.InstrDependOnMe, pkt.req.InstrDependOnMe)
		m.toReturn = unionChan(m.toReturn, pkt.toReturn)

		if m.req.Type == channel.Prefetch && pkt.req.Type != channel.Prefetch {
			if m.prefetchFromThis {
				c.Stats.PFUseful++
			}
			priorEventCycle := m.eventCycle
			toReturn := m.toReturn
			*m = mshrEntry{req: pkt.req, prefetchFromThis: pkt.prefetchFromThis, cycleEnqueued: c.now}
			m.eventCycle = priorEventCycle
			m.toReturn = toReturn
		}

		c.Stats.Misses[pkt.req.Type]++
		return true
	}

	if len(c.mshr) >= c.cfg.MSHRSize {
		return false
	}

	fwd := channel.Request{
		ASID:              pkt.req.ASID,
		Type:              pkt.req.Type,
		PFMetadata:        pkt.req.PFMetadata,
		CPU:               pkt.req.CPU,
		Address:           pkt.req.Address,
		VAddress:          pkt.req.VAddress,
		Data:              pkt.req.Data,
		InstrID:           pkt.req.InstrID,
		IP:                pkt.req.IP,
		InstrDependOnMe:   pkt.req.InstrDependOnMe,
		ResponseRequested: !pkt.prefetchFromThis || !pkt.skipFill,
	}
	if fwd.Type == channel.Write {
		fwd.Type = channel.RFO
	}

	sendToRQ := c.cfg.PrefetchAsLoad || pkt.req.Type != channel.Prefetch
	var ok bool
	if sendToRQ {
		ok = c.lower.AddRQ(fwd)
	} else {
		ok = c.lower.AddPQ(fwd)
	}
	if !ok {
		return false
	}

	if fwd.ResponseRequested {
		c.mshr = append(c.mshr, mshrEntry{req: pkt.req, prefetchFromThis: pkt.prefetchFromThis, cycleEnqueued: c.now, toReturn: pkt.toReturn})
	}

	c.Stats.Misses[pkt.req.Type]++
	return true
}

// handleWrite admits a store/writeback past the tag check, charged
// FILL_LATENCY, grounded on CACHE::handle_write.
func (c *Controller) handleWrite(pkt tagLookup) bool {
	penalty := c.cfg.FillLatency
	if c.warmup {
		penalty = 0
	}
	c.inflightWrites = append(c.inflightWrites, inflightWrite{req: pkt.req, eventCycle: c.now + penalty})
	c.Stats.Misses[pkt.req.Type]++
	return true
}

func unionU64(a, b []uint64) []uint64 {
	seen := make(map[uint64]bool, len(a)+len(b))
	var out []uint64
	for _, v := range append(append([]uint64{}, a...), b...) {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func unionChan(a, b []*channel.Channel) []*channel.Channel {
	seen := make(map[*channel.Channel]bool, len(a)+len(b))
	var out []*channel.Channel
	for _, v := range append(append([]*channel.Channel{}, a...), b...) {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
