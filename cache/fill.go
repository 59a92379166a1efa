package cache

import (
	"github.com/ooosim/coretrace/addr"
	"github.com/ooosim/coretrace/channel"
	"github.com/ooosim/coretrace/replacement"
)

// handleFill installs a completed miss into its set, selecting a victim
// if every way is occupied, writing back a dirty victim first, and
// notifying the prefetcher/replacer hooks, grounded on CACHE::fill_block
// + CACHE::handle_fill.
func (c *Controller) handleFill(m mshrEntry) bool {
	c.cpu = m.req.CPU
	begin, end := c.setSpan(m.req.Address)

	way := -1
	for w := begin; w < end; w++ {
		if !c.blocks[w].Valid {
			way = w
			break
		}
	}
	if way == -1 {
		setIdx := c.setIndex(m.req.Address)
		views := make([]replacement.BlockView, c.cfg.NumWay)
		for i := 0; i < c.cfg.NumWay; i++ {
			b := c.blocks[begin+i]
			views[i] = replacement.BlockView{Valid: b.Valid, Address: b.Address}
		}
		victimWay := 0
		if c.replacer != nil {
			victimWay = c.replacer.FindVictim(m.req.CPU, m.req.InstrID, setIdx, views, m.req.IP, m.req.Address, m.req.Type)
		}
		way = begin + victimWay
	}

	if c.blocks[way].Valid && c.blocks[way].Dirty {
		wb := channel.Request{
			CPU:               m.req.CPU,
			Address:           c.blocks[way].Address,
			Data:              c.blocks[way].Data,
			InstrID:           m.req.InstrID,
			Type:              channel.Write,
			PFMetadata:        c.blocks[way].PFMetadata,
			ResponseRequested: false,
		}
		if !c.lower.AddWQ(wb) {
			return false
		}
	}

	var evictingAddress uint64
	if c.blocks[way].Valid {
		if c.cfg.VirtualPrefetch {
			evictingAddress = c.blocks[way].VAddress
		} else {
			evictingAddress = c.blocks[way].Address
		}
	}

	pktAddress := m.req.Address
	if c.cfg.VirtualPrefetch {
		pktAddress = m.req.VAddress
	}

	metadataThru := m.req.PFMetadata
	if c.prefetcher != nil {
		metadataThru = c.prefetcher.CacheFill(pktAddress, c.setIndex(m.req.Address), way-begin, m.req.Type == channel.Prefetch, evictingAddress, m.req.PFMetadata)
	}
	if c.replacer != nil {
		c.replacer.Update(m.req.CPU, c.setIndex(m.req.Address), way-begin, m.req.Address, m.req.IP, evictingAddress, m.req.Type, false)
	}

	wasPrefetchUnused := c.blocks[way].Valid && c.blocks[way].Prefetch
	if wasPrefetchUnused {
		c.Stats.PFUseless++
	}
	if m.req.Type == channel.Prefetch {
		c.Stats.PFFill++
	}

	c.blocks[way] = Block{
		Valid:      true,
		Prefetch:   m.prefetchFromThis,
		Dirty:      m.req.Type == channel.Write,
		Address:    m.req.Address,
		VAddress:   m.req.VAddress,
		Data:       m.req.Data,
		PFMetadata: metadataThru,
	}

	if c.now > m.cycleEnqueued {
		c.Stats.TotalMissLatency += c.now - (m.cycleEnqueued + 1)
	}

	for _, ret := range m.toReturn {
		ret.Deliver(channel.Response{
			Address:         m.req.Address,
			VAddress:        m.req.VAddress,
			Data:            m.req.Data,
			PFMetadata:      metadataThru,
			InstrDependOnMe: m.req.InstrDependOnMe,
		})
	}

	return true
}

// finishPacket consumes one response the lower level returned, pairing
// it back to its MSHR entry and scheduling the fill, grounded on
// CACHE::finish_packet.
func (c *Controller) finishPacket(resp channel.Response) {
	for i := range c.mshr {
		m := &c.mshr[i]
		if addr.SameBlock(m.req.Address, resp.Address) {
			m.req.Data = resp.Data
			penalty := c.cfg.FillLatency
			if c.warmup {
				penalty = 0
			}
			m.eventCycle = c.now + penalty
			return
		}
	}
	panic("cache: response for an address with no matching MSHR entry")
}
