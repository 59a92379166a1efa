// Package channel implements the typed request/response queue pair that
// couples any two memory-hierarchy components, grounded on champsim's
// champsim::channel (inc/channel.h) and its collision/coalescing rules in
// src/cache.cc and src/dram_controller.cc.
package channel

import (
	"sort"

	"github.com/sarchlab/akita/v4/sim"
)

// AccessType classifies a request the way champsim's access_type does.
type AccessType int

const (
	Load AccessType = iota
	RFO
	Prefetch
	Write
	Translation
)

func (t AccessType) String() string {
	switch t {
	case Load:
		return "LOAD"
	case RFO:
		return "RFO"
	case Prefetch:
		return "PREFETCH"
	case Write:
		return "WRITE"
	case Translation:
		return "TRANSLATION"
	default:
		return "UNKNOWN"
	}
}

// Request is the fingerprint of a pending memory operation, grounded on
// champsim::channel::request_type.
type Request struct {
	Address           uint64
	VAddress          uint64
	Data              uint64
	IP                uint64
	InstrID           uint64
	PFMetadata        uint32
	CPU               uint32
	ASID              [2]uint8
	Type              AccessType
	PrefetchFromThis  bool
	SkipFill          bool
	IsTranslated      bool
	ResponseRequested bool
	InstrDependOnMe   []uint64
	ToReturn          []*Channel
}

// Response carries the data and metadata handed back to every channel that
// requested it, mirroring champsim::channel::response_type.
type Response struct {
	Address         uint64
	VAddress        uint64
	Data            uint64
	PFMetadata       uint32
	InstrDependOnMe []uint64
}

func blockOf(addr uint64) uint64 {
	return addr >> 6 // LOG2_BLOCK_SIZE
}

func unionIDs(a, b []uint64) []uint64 {
	seen := make(map[uint64]bool, len(a)+len(b))
	out := make([]uint64, 0, len(a)+len(b))
	for _, id := range a {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range b {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func unionChannels(a, b []*Channel) []*Channel {
	seen := make(map[*Channel]bool, len(a)+len(b))
	out := make([]*Channel, 0, len(a)+len(b))
	for _, c := range append(append([]*Channel{}, a...), b...) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// Channel is the typed link between a producer (upper level) and the
// channel's owning consumer. RQ, PQ and WQ are producer-written,
// consumer-drained; Returned is the reverse.
type Channel struct {
	RQ, PQ, WQ []Request
	Returned   sim.Buffer

	rqCap, pqCap, wqCap int
}

// New builds a channel with the given per-queue capacities.
func New(name string, rqCap, pqCap, wqCap, returnedCap int) *Channel {
	return &Channel{
		rqCap:    rqCap,
		pqCap:    pqCap,
		wqCap:    wqCap,
		Returned: sim.NewBuffer(name+".Returned", returnedCap),
	}
}

// AddRQ enqueues a read request, coalescing against an in-queue entry for
// the same block. Returns false if the queue is full and no merge applied.
func (c *Channel) AddRQ(req Request) bool {
	if idx := findBlock(c.RQ, req.Address); idx >= 0 {
		c.RQ[idx].InstrDependOnMe = unionIDs(c.RQ[idx].InstrDependOnMe, req.InstrDependOnMe)
		c.RQ[idx].ToReturn = unionChannels(c.RQ[idx].ToReturn, req.ToReturn)
		return true
	}
	if len(c.RQ) >= c.rqCap {
		return false
	}
	c.RQ = append(c.RQ, req)
	return true
}

// AddPQ enqueues a prefetch request with the same coalescing rule as AddRQ.
func (c *Channel) AddPQ(req Request) bool {
	if idx := findBlock(c.PQ, req.Address); idx >= 0 {
		c.PQ[idx].InstrDependOnMe = unionIDs(c.PQ[idx].InstrDependOnMe, req.InstrDependOnMe)
		c.PQ[idx].ToReturn = unionChannels(c.PQ[idx].ToReturn, req.ToReturn)
		return true
	}
	if len(c.PQ) >= c.pqCap {
		return false
	}
	c.PQ = append(c.PQ, req)
	return true
}

// AddWQ enqueues a write, overriding the data of an in-queue entry for the
// same block rather than appending a second one.
func (c *Channel) AddWQ(req Request) bool {
	if idx := findBlock(c.WQ, req.Address); idx >= 0 {
		c.WQ[idx].Data = req.Data
		return true
	}
	if len(c.WQ) >= c.wqCap {
		return false
	}
	c.WQ = append(c.WQ, req)
	return true
}

func findBlock(q []Request, addr uint64) int {
	target := blockOf(addr)
	for i, r := range q {
		if blockOf(r.Address) == target {
			return i
		}
	}
	return -1
}

// RQOccupancy, PQOccupancy and WQOccupancy report live queue depth, mirror
// of champsim::channel's rq_occupancy/pq_occupancy/wq_occupancy.
func (c *Channel) RQOccupancy() int { return len(c.RQ) }
func (c *Channel) PQOccupancy() int { return len(c.PQ) }
func (c *Channel) WQOccupancy() int { return len(c.WQ) }

// RQSize, PQSize and WQSize report declared capacity.
func (c *Channel) RQSize() int { return c.rqCap }
func (c *Channel) PQSize() int { return c.pqCap }
func (c *Channel) WQSize() int { return c.wqCap }

// PopReturned drains every response accumulated in Returned this tick.
func (c *Channel) PopReturned() []Response {
	var out []Response
	for {
		item := c.Returned.Pop()
		if item == nil {
			break
		}
		out = append(out, item.(Response))
	}
	return out
}

// Deliver pushes a response onto Returned, returning false if full (used by
// producers forwarding a completed fill/hit to every channel in ToReturn).
func (c *Channel) Deliver(r Response) bool {
	if !c.Returned.CanPush() {
		return false
	}
	c.Returned.Push(r)
	return true
}
