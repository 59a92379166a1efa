// Package ptw implements the multi-level page-table walker with its
// per-level page-size cache (PSCL), grounded on src/ptw.cc.
package ptw

import (
	"sort"

	"github.com/ooosim/coretrace/addr"
	"github.com/ooosim/coretrace/channel"
	"github.com/ooosim/coretrace/lru"
	"github.com/ooosim/coretrace/vm"
)

const (
	pteBytes     = vm.PTEBytes
	log2PageSize = addr.PageOffsetBits
)

// PSCLEntry remembers the physical address of the page-table page
// reached for a virtual-address prefix at a given walk level, the
// PSCL entry.
type PSCLEntry struct {
	VAddr   uint64
	PTWAddr uint64
	Level   int
}

// mshrEntry is an in-flight translation step, mirroring
// PageTableWalker::mshr_type.
type mshrEntry struct {
	req              channel.Request
	translationLevel int
	eventCycle       uint64
	toReturn         []*channel.Channel
}

// Walker is the page-table walker: one per CPU, attached between an
// upper-level channel's translation requests and a lower-level memory
// channel it reads page-table pages through.
type Walker struct {
	levels   int
	vmem     *vm.VirtualMemory
	lowerRQ  func(channel.Request) bool
	mshrSize int

	hitLatency uint64

	// pscl[i] caches walk starting points, ordered from least specific
	// (closest to the root) to most specific, matching ptw.cc's
	// descending-then-folded construction: the last hit wins.
	pscl []*lru.Table[PSCLEntry]

	mshr      []*mshrEntry
	completed []*mshrEntry

	cr3 uint64
}

// PSCLDim configures one page-size cache: the walk level it caches
// (counted from the leaf) and its set-associative geometry.
type PSCLDim struct {
	Level int
	Sets  int
	Ways  int
}

// New builds a page-table walker for the given vmem, with PSCL caches
// at the requested levels.
func New(levels int, vmem *vm.VirtualMemory, lowerRQ func(channel.Request) bool, mshrSize int, hitLatency uint64, dims []PSCLDim) *Walker {
	w := &Walker{levels: levels, vmem: vmem, lowerRQ: lowerRQ, mshrSize: mshrSize, hitLatency: hitLatency, cr3: vmem.RootAddress()}
	sorted := append([]PSCLDim(nil), dims...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Level > sorted[j].Level })
	for _, d := range sorted {
		level := d.Level
		w.pscl = append(w.pscl, lru.New[PSCLEntry](d.Sets, d.Ways,
			func(key uint64) uint64 { return key >> vmem.Shamt(level) },
			func(key uint64) uint64 { return key >> vmem.Shamt(level) }))
	}
	return w
}

// CanAcceptRead reports whether the walker has MSHR room for another
// translation request.
func (w *Walker) CanAcceptRead() bool {
	return len(w.mshr) < w.mshrSize
}

// HandleRead begins a walk for a translation request pulled from an
// upper-level channel's RQ, consulting the PSCL for a shortcut starting
// point, mirroring handle_read.
func (w *Walker) HandleRead(req channel.Request, returnTo *channel.Channel) bool {
	level := w.levels
	ptwAddr := w.cr3
	vaddr := req.VAddress

	for _, p := range w.pscl {
		if hit, ok := p.CheckHit(vaddr); ok {
			ptwAddr = hit.PTWAddr
			level = hit.Level
		}
	}

	offset := w.vmem.GetOffset(vaddr, level) * pteBytes
	walkAddr := addr.Splice(addr.Full(ptwAddr), addr.Full(offset), log2PageSize)

	entry := &mshrEntry{req: req, translationLevel: level}
	entry.req.Address = walkAddr.To64()
	entry.req.VAddress = vaddr
	if req.ResponseRequested && returnTo != nil {
		entry.toReturn = []*channel.Channel{returnTo}
	}

	return w.stepTranslation(entry)
}

// stepTranslation issues the next-level read to the lower memory
// channel; on back-pressure the entry is dropped and the caller must
// retry, matching step_translation's add_rq/nullopt contract.
func (w *Walker) stepTranslation(entry *mshrEntry) bool {
	outgoing := channel.Request{
		Address:           entry.req.Address,
		VAddress:          entry.req.VAddress,
		PFMetadata:        entry.req.PFMetadata,
		CPU:                entry.req.CPU,
		ASID:              entry.req.ASID,
		IsTranslated:      true,
		Type:              channel.Translation,
		ResponseRequested: true,
	}
	if !w.lowerRQ(outgoing) {
		return false
	}
	w.mshr = append(w.mshr, entry)
	return true
}

// HandleFill advances one walk step after the lower level returns a
// page-table-page read: fills the PSCL for the level just resolved, then
// either steps one level closer to the leaf or, if the walk is complete,
// resolves the final physical address and schedules delivery.
func (w *Walker) HandleFill(now uint64, resp channel.Response, warmup bool) {
	for i, entry := range w.mshr {
		if !addr.SameBlock(entry.req.Address, resp.Address) {
			continue
		}
		w.mshr = append(w.mshr[:i], w.mshr[i+1:]...)

		if entry.translationLevel > 0 {
			if pscl := w.psclFor(entry.translationLevel); pscl != nil {
				pscl.Fill(entry.req.VAddress, PSCLEntry{VAddr: entry.req.VAddress, PTWAddr: resp.Data, Level: entry.translationLevel - 1})
			}
		}

		entry.translationLevel--

		if entry.translationLevel > 0 {
			offset := w.vmem.GetOffset(entry.req.VAddress, entry.translationLevel) * pteBytes
			walkAddr := addr.Splice(addr.Full(resp.Data), addr.Full(offset), log2PageSize)
			entry.req.Address = walkAddr.To64()
			w.stepTranslation(entry)
			return
		}

		pa, penalty := w.vmem.VAToPA(entry.req.CPU, entry.req.VAddress)
		entry.req.Address = pa
		if !warmup {
			penalty += w.hitLatency
		}
		entry.eventCycle = now + penalty
		w.completed = append(w.completed, entry)
		return
	}
}

func (w *Walker) psclFor(level int) *lru.Table[PSCLEntry] {
	idx := len(w.pscl) - level
	if idx < 0 || idx >= len(w.pscl) {
		return nil
	}
	return w.pscl[idx]
}

// Operate delivers every completed translation whose resolution latency
// has elapsed, the per-cycle fill-delivery half of PageTableWalker::operate.
func (w *Walker) Operate(now uint64) {
	kept := w.completed[:0]
	for _, entry := range w.completed {
		if entry.eventCycle > now {
			kept = append(kept, entry)
			continue
		}
		for _, ret := range entry.toReturn {
			ret.Deliver(channel.Response{
				Address:         entry.req.VAddress,
				VAddress:        entry.req.VAddress,
				Data:            entry.req.Address,
				PFMetadata:      entry.req.PFMetadata,
				InstrDependOnMe: entry.req.InstrDependOnMe,
			})
		}
	}
	w.completed = kept
}
