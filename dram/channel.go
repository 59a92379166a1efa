// Package dram implements the per-channel DRAM scheduler: per-bank state
// machines, read/write mode switching with turnaround, refresh
// scheduling, and bus arbitration, grounded on src/dram_controller.cc.
package dram

import (
	"math"

	"github.com/ooosim/coretrace/addr"
	"github.com/ooosim/coretrace/channel"
)

// Geometry is the address-mapping bit layout: |row|rank|column|bank|
// channel|block offset|, matching the comment above
// MEMORY_CONTROLLER::dram_get_channel.
type Geometry struct {
	Channels int
	Ranks    int
	Banks    int
	Columns  int
	Rows     int
}

func (g Geometry) channelShift() uint { return addr.BlockOffsetBits }
func (g Geometry) bankShift() uint    { return addr.Lg2(uint64(g.Channels)) + addr.BlockOffsetBits }
func (g Geometry) columnShift() uint {
	return addr.Lg2(uint64(g.Banks)) + addr.Lg2(uint64(g.Channels)) + addr.BlockOffsetBits
}
func (g Geometry) rankShift() uint {
	return addr.Lg2(uint64(g.Banks)) + addr.Lg2(uint64(g.Columns)) + addr.Lg2(uint64(g.Channels)) + addr.BlockOffsetBits
}
func (g Geometry) rowShift() uint {
	return addr.Lg2(uint64(g.Ranks)) + addr.Lg2(uint64(g.Banks)) + addr.Lg2(uint64(g.Columns)) + addr.Lg2(uint64(g.Channels)) + addr.BlockOffsetBits
}

func (g Geometry) Channel(address uint64) int {
	return int((address >> g.channelShift()) & addr.Bitmask(addr.Lg2(uint64(g.Channels))))
}
func (g Geometry) Bank(address uint64) int {
	return int((address >> g.bankShift()) & addr.Bitmask(addr.Lg2(uint64(g.Banks))))
}
func (g Geometry) Column(address uint64) int {
	return int((address >> g.columnShift()) & addr.Bitmask(addr.Lg2(uint64(g.Columns))))
}
func (g Geometry) Rank(address uint64) int {
	return int((address >> g.rankShift()) & addr.Bitmask(addr.Lg2(uint64(g.Ranks))))
}
func (g Geometry) Row(address uint64) int {
	return int((address >> g.rowShift()) & addr.Bitmask(addr.Lg2(uint64(g.Rows))))
}

const noOpenRow = -1

// bankState is one (rank, bank) pair's state machine, the DRAM bank
// state: {valid, row_buffer_hit, under_refresh, need_refresh, open_row,
// event_cycle, pkt_ref}.
type bankState struct {
	valid        bool
	rowBufferHit bool
	underRefresh bool
	needRefresh  bool
	openRow      int
	eventCycle   uint64
	pkt          *pendingRequest
}

// pendingRequest is a request DRAM has accepted out of its Queue and is
// now solely responsible for scheduling, mirroring one element of
// DRAM_CHANNEL's RQ/WQ together with the scheduled/event_cycle fields
// the original stores directly on the packet.
type pendingRequest struct {
	req        channel.Request
	write      bool
	scheduled  bool
	eventCycle uint64
}

// Timing holds the channel's fixed latencies, in bus cycles.
type Timing struct {
	TCAS               uint64
	TRCD               uint64
	TRP                uint64
	DBusTurnaround     uint64
	DBusReturnTime     uint64
	WriteHighWatermark int
	WriteLowWatermark  int
	RefreshPeriod      uint64 // cycles between successive refresh triggers
	RefreshRows        int
}

// Stats accumulates the supplemented DRAM observability counters.
type Stats struct {
	RQRowBufferHit     uint64
	RQRowBufferMiss    uint64
	WQRowBufferHit     uint64
	WQRowBufferMiss    uint64
	DbusCycleCongested uint64
	DbusCountCongested uint64
	RefreshCycles      uint64
}

// Channel is one DRAM channel, grounded on DRAM_CHANNEL. Queue is the
// shared request/response link the rest of the hierarchy pushes reads
// and writes into and drains responses from.
type Channel struct {
	geom   Geometry
	timing Timing
	Stats  Stats

	Queue *channel.Channel

	warmupSnapshot Stats

	banks         []bankState
	pending       []*pendingRequest
	writeMode     bool
	dbusAvailable uint64
	activeBank    int // index into banks, or -1
	refreshRow    int

	currentCycle uint64
}

// New builds a DRAM channel with the given geometry, timing, and the
// channel it services reads and writes through.
func New(geom Geometry, timing Timing, queue *channel.Channel) *Channel {
	return &Channel{
		geom:       geom,
		timing:     timing,
		Queue:      queue,
		banks:      make([]bankState, geom.Ranks*geom.Banks),
		activeBank: -1,
	}
}

func (c *Channel) bankIndex(address uint64) int {
	return c.geom.Rank(address)*c.geom.Banks + c.geom.Bank(address)
}

// pullPending drains ready entries out of the shared Queue's RQ and WQ
// into DRAM's own scheduling responsibility, the Go counterpart of the
// original's DRAM_CHANNEL owning its RQ/WQ directly.
func (c *Channel) pullPending() {
	for _, r := range c.Queue.RQ {
		c.pending = append(c.pending, &pendingRequest{req: r, eventCycle: c.currentCycle})
	}
	c.Queue.RQ = c.Queue.RQ[:0]
	for _, r := range c.Queue.WQ {
		c.pending = append(c.pending, &pendingRequest{req: r, write: true, eventCycle: c.currentCycle})
	}
	c.Queue.WQ = c.Queue.WQ[:0]
}

// ScheduleRefresh is the periodic refresh trigger and per-bank refresh
// state advance, grounded on DRAM_CHANNEL::schedule_refresh.
func (c *Channel) ScheduleRefresh() int {
	progress := 0
	trigger := c.timing.RefreshPeriod != 0 && c.currentCycle%c.timing.RefreshPeriod == 1
	if trigger {
		c.refreshRow += 8
		c.Stats.RefreshCycles++
		if c.refreshRow >= c.timing.RefreshRows {
			c.refreshRow = 0
		}
	}

	for i := range c.banks {
		b := &c.banks[i]
		switch {
		case trigger:
			b.needRefresh = true
		case b.needRefresh && !b.valid:
			b.needRefresh = false
			b.underRefresh = true
			progress++
		case b.underRefresh && b.eventCycle <= c.currentCycle:
			b.underRefresh = false
			b.openRow = noOpenRow
			progress++
		}
	}
	return progress
}

// SwapWriteMode flips between read-servicing and write-servicing mode
// once the queues are sufficiently unbalanced, grounded on
// DRAM_CHANNEL::swap_write_mode.
func (c *Channel) SwapWriteMode() {
	wqOccu, rqOccu := 0, 0
	for _, p := range c.pending {
		if p.write {
			wqOccu++
		} else {
			rqOccu++
		}
	}

	shouldSwap := (!c.writeMode && (wqOccu >= c.timing.WriteHighWatermark || (rqOccu == 0 && wqOccu > 0))) ||
		(c.writeMode && (wqOccu == 0 || (rqOccu > 0 && wqOccu < c.timing.WriteLowWatermark)))
	if !shouldSwap {
		return
	}

	for i := range c.banks {
		b := &c.banks[i]
		if i == c.activeBank || !b.valid {
			continue
		}
		if b.eventCycle < c.currentCycle+c.timing.TCAS {
			b.openRow = noOpenRow
		}
		b.valid = false
		if b.pkt != nil {
			b.pkt.scheduled = false
			b.pkt.eventCycle = c.currentCycle
		}
	}

	if c.activeBank >= 0 {
		c.dbusAvailable = c.banks[c.activeBank].eventCycle + c.timing.DBusTurnaround
	} else {
		c.dbusAvailable = c.currentCycle + c.timing.DBusTurnaround
	}
	c.writeMode = !c.writeMode
}

// schedulePacket finds the first unscheduled pending request of the
// channel's current mode and attempts to open its bank, grounded on
// DRAM_CHANNEL::schedule_packet + service_packet.
func (c *Channel) schedulePacket() {
	for _, p := range c.pending {
		if p.write != c.writeMode || p.scheduled || p.eventCycle > c.currentCycle {
			continue
		}
		if c.servicePacket(p) {
			return
		}
	}
}

func (c *Channel) servicePacket(p *pendingRequest) bool {
	idx := c.bankIndex(p.req.Address)
	b := &c.banks[idx]
	if b.valid || b.underRefresh {
		return false
	}

	row := c.geom.Row(p.req.Address)
	rowBufferHit := b.openRow != noOpenRow && b.openRow == row
	rowChargeDelay := c.timing.TRCD
	if b.openRow != noOpenRow {
		rowChargeDelay = c.timing.TRP + c.timing.TRCD
	}

	delay := c.timing.TCAS
	if !rowBufferHit {
		delay += rowChargeDelay
	}

	*b = bankState{
		valid:        true,
		rowBufferHit: rowBufferHit,
		openRow:      row,
		eventCycle:   c.currentCycle + delay,
		pkt:          p,
	}
	p.scheduled = true
	p.eventCycle = math.MaxUint64
	return true
}

// populateDBus places the earliest-ready bank's request on the data
// bus, grounded on DRAM_CHANNEL::populate_dbus.
func (c *Channel) populateDBus() {
	next := -1
	var nextCycle uint64 = math.MaxUint64
	for i, b := range c.banks {
		if !b.valid {
			continue
		}
		if next == -1 || b.eventCycle < nextCycle {
			next = i
			nextCycle = b.eventCycle
		}
	}
	if next == -1 || nextCycle > c.currentCycle {
		return
	}

	if c.activeBank < 0 && c.dbusAvailable <= c.currentCycle {
		c.activeBank = next
		c.banks[next].eventCycle = c.currentCycle + c.timing.DBusReturnTime

		switch {
		case c.banks[next].rowBufferHit && c.writeMode:
			c.Stats.WQRowBufferHit++
		case c.banks[next].rowBufferHit:
			c.Stats.RQRowBufferHit++
		case c.writeMode:
			c.Stats.WQRowBufferMiss++
		default:
			c.Stats.RQRowBufferMiss++
		}
		return
	}

	if c.activeBank >= 0 {
		c.Stats.DbusCycleCongested += c.banks[c.activeBank].eventCycle - c.currentCycle
	} else {
		c.Stats.DbusCycleCongested += c.dbusAvailable - c.currentCycle
	}
	c.Stats.DbusCountCongested++
}

// drainDBus completes the active transfer once its return-time elapses,
// freeing its bank and delivering the response for reads (writes have no
// response per the channel contract).
func (c *Channel) drainDBus() {
	if c.activeBank < 0 {
		return
	}
	b := &c.banks[c.activeBank]
	if b.eventCycle > c.currentCycle {
		return
	}

	p := b.pkt
	b.valid = false
	b.pkt = nil
	c.activeBank = -1

	if !p.write {
		c.Queue.Deliver(channel.Response{
			Address:         p.req.Address,
			VAddress:        p.req.VAddress,
			Data:            p.req.Data,
			PFMetadata:      p.req.PFMetadata,
			InstrDependOnMe: p.req.InstrDependOnMe,
		})
	}
	c.removePending(p)
}

func (c *Channel) removePending(target *pendingRequest) {
	for i, p := range c.pending {
		if p == target {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

// Operate runs one cycle of the channel: pull new requests, refresh,
// mode-swap, schedule, arbitrate and drain the bus, the cycle body of
// DRAM_CHANNEL::operate.
func (c *Channel) Operate() {
	c.pullPending()
	c.ScheduleRefresh()
	c.SwapWriteMode()
	c.schedulePacket()
	c.populateDBus()
	c.drainDBus()
	c.currentCycle++
}

// CurrentCycle returns the channel's internal cycle counter.
func (c *Channel) CurrentCycle() uint64 { return c.currentCycle }

// WriteMode reports whether the channel is currently draining writes.
func (c *Channel) WriteMode() bool { return c.writeMode }

// PendingOccupancy reports how many requests DRAM is currently
// responsible for scheduling.
func (c *Channel) PendingOccupancy() int { return len(c.pending) }
