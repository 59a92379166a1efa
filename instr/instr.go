// Package instr implements the in-flight instruction and load/store-queue
// records that flow through the out-of-order pipeline, grounded on
// ooo_model_instr and the LSQ entry usage throughout inc/ooo_cpu.h.
package instr

import "github.com/ooosim/coretrace/branch"

// NoRegister is the reserved register index meaning "no register".
const NoRegister = 0

const (
	maxSourceRegisters      = 4
	maxDestinationRegisters = 2
	maxMemorySources        = 2
	maxMemoryDestinations   = 2
)

// Instr is one in-flight instruction record, ooo_instr in the original's data
// model. Registers hold only producer/consumer instr_ids, never values.
type Instr struct {
	InstrID uint64
	IP      uint64

	SourceRegisters      []uint8
	DestinationRegisters []uint8
	SourceMemory         []uint64
	DestinationMemory    []uint64

	IsBranch     bool
	BranchTaken  bool
	BranchType   branch.Type
	BranchTarget uint64

	Translated bool
	Fetched    bool
	Decoded    bool
	Scheduled  bool
	Executed   bool

	NumMemOpsRemaining int
	EventCycle         uint64

	// MemOpsAllocated reports whether this instruction's LQ/SQ entries
	// have already been allocated, so scheduleMemoryInstruction only
	// allocates them once.
	MemOpsAllocated bool

	// RegisterProducer[i] holds the instr_id that last wrote
	// SourceRegisters[i], or 0 (no producer found) if none.
	RegisterProducer []uint64

	// RegistersInstrsDependOnMe mirrors the reverse edge: instr_ids of
	// younger instructions waiting on one of this instruction's
	// destination registers.
	RegistersInstrsDependOnMe []uint64

	// MemoryInstrsDependOnMe mirrors the reverse edge for store-to-load
	// forwarding: instr_ids of loads waiting on this store's data.
	MemoryInstrsDependOnMe []uint64
}

// New builds an instruction record with the given identity and operand
// signature, ready to enter IFETCH.
func New(instrID, ip uint64) *Instr {
	return &Instr{InstrID: instrID, IP: ip}
}

// AllDependenciesSatisfied reports whether every source register either
// has no live producer or that producer has already executed — the
// condition ooo_cpu.h's schedule_instruction gates dispatch on.
func (i *Instr) AllDependenciesSatisfied(executed func(instrID uint64) bool) bool {
	for idx, reg := range i.SourceRegisters {
		if reg == NoRegister {
			continue
		}
		producer := i.RegisterProducer[idx]
		if producer == 0 {
			continue
		}
		if !executed(producer) {
			return false
		}
	}
	return true
}

// LSQEntry is a load- or store-queue slot, lsq_entry in the original's data
// model. A load slot's validity is tracked by the owning queue via
// presence rather than a null pointer (there is no pointer type here to
// be null); see LoadQueue.
type LSQEntry struct {
	InstrID        uint64
	VirtualAddress uint64
	IP             uint64
	ASID           [2]uint8

	FetchIssued bool

	// ProducerID is the instr_id of the store this load forwards from,
	// or 0 if it must be satisfied from the memory hierarchy.
	ProducerID uint64

	// DependentLoads lists LSQEntry.InstrID values of load entries
	// waiting on this store for forwarding.
	DependentLoads []uint64
}

// LoadQueue is a sparse slot array: slot i is either empty or holds one
// in-flight load, matching the original's vector<optional<LSQ_ENTRY>>.
type LoadQueue struct {
	slots   []LSQEntry
	present []bool
}

// NewLoadQueue builds a load queue with the given number of slots.
func NewLoadQueue(size int) *LoadQueue {
	return &LoadQueue{slots: make([]LSQEntry, size), present: make([]bool, size)}
}

// Size returns the number of slots, not the number occupied.
func (q *LoadQueue) Size() int { return len(q.slots) }

// Occupancy returns the number of occupied slots.
func (q *LoadQueue) Occupancy() int {
	n := 0
	for _, p := range q.present {
		if p {
			n++
		}
	}
	return n
}

// Get returns the entry at slot i and whether it is present.
func (q *LoadQueue) Get(i int) (LSQEntry, bool) {
	return q.slots[i], q.present[i]
}

// FreeSlot returns the index of an empty slot and true, or false if full.
func (q *LoadQueue) FreeSlot() (int, bool) {
	for i, p := range q.present {
		if !p {
			return i, true
		}
	}
	return 0, false
}

// Allocate installs entry at slot i, which must be empty.
func (q *LoadQueue) Allocate(i int, entry LSQEntry) {
	q.slots[i] = entry
	q.present[i] = true
}

// Release empties slot i.
func (q *LoadQueue) Release(i int) {
	q.present[i] = false
	q.slots[i] = LSQEntry{}
}

// StoreQueue is insertion-ordered and a slot stays valid until retired,
// matching the original's deque<LSQ_ENTRY>.
type StoreQueue struct {
	entries []LSQEntry
}

// NewStoreQueue builds an empty store queue.
func NewStoreQueue() *StoreQueue { return &StoreQueue{} }

func (q *StoreQueue) Size() int { return len(q.entries) }

func (q *StoreQueue) Push(entry LSQEntry) { q.entries = append(q.entries, entry) }

func (q *StoreQueue) At(i int) LSQEntry { return q.entries[i] }

// MarkIssued records that the write for entry i has been sent to the
// memory hierarchy, reusing LSQEntry's fetch_issued flag.
func (q *StoreQueue) MarkIssued(i int) { q.entries[i].FetchIssued = true }

// IsIssued reports whether entry i's write has already been sent.
func (q *StoreQueue) IsIssued(i int) bool { return q.entries[i].FetchIssued }

// PopFront removes and returns the oldest store, used on retirement.
func (q *StoreQueue) PopFront() LSQEntry {
	e := q.entries[0]
	q.entries = q.entries[1:]
	return e
}

// FindForwardingStore scans from newest to oldest for the closest store
// to addr with a strictly lower instr_id than before, implementing
// memory disambiguation's store-to-load forwarding search.
func (q *StoreQueue) FindForwardingStore(addr uint64, beforeInstrID uint64) (LSQEntry, bool) {
	for i := len(q.entries) - 1; i >= 0; i-- {
		e := q.entries[i]
		if e.InstrID >= beforeInstrID {
			continue
		}
		if e.VirtualAddress == addr {
			return e, true
		}
	}
	return LSQEntry{}, false
}
