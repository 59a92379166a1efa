// Package trace implements the external instruction-record format the
// harness feeds into a core's input queue, grounded on the trace-input
// Interfaces section (no champsim tracer source was retrieved; the
// original's actual on-disk trace format, input_instr/cloudsuite_instr in
// tracer/, is considerably wider than the fields the pluggable-module
// contract actually needs, so only the fields consumed downstream are
// modeled).
package trace

import (
	"github.com/ooosim/coretrace/branch"
	"github.com/ooosim/coretrace/instr"
)

// Record is one trace-sourced instruction, matching the trace-input
// per-instruction field list exactly: an ip, a branch flag pair, up to
// two memory source/destination virtual addresses, and up to four
// source/two destination register indices (0 is reserved "no register").
type Record struct {
	IP uint64

	IsBranch    bool
	BranchTaken bool

	MemorySourceVAddrs      []uint64
	MemoryDestinationVAddrs []uint64

	SourceRegisters      []uint8
	DestinationRegisters []uint8
}

// Signature derives the branch.Signature classification input from a
// record's operand shape, exactly the fields branch.Classify consults.
func (r Record) Signature() branch.Signature {
	return branch.Signature{
		IsBranch:     r.IsBranch,
		Taken:        r.BranchTaken,
		SrcRegisters: r.SourceRegisters,
		DstRegisters: r.DestinationRegisters,
		ReadsMemory:  len(r.MemorySourceVAddrs) > 0,
		WritesMemory: len(r.MemoryDestinationVAddrs) > 0,
	}
}

// ToInstr builds the in-flight instruction record a core's input queue
// carries, assigning it the given instr_id and classifying its branch
// type from its operand signature.
func ToInstr(instrID uint64, r Record) *instr.Instr {
	in := instr.New(instrID, r.IP)
	in.SourceRegisters = r.SourceRegisters
	in.DestinationRegisters = r.DestinationRegisters
	in.SourceMemory = r.MemorySourceVAddrs
	in.DestinationMemory = r.MemoryDestinationVAddrs
	in.IsBranch = r.IsBranch
	in.BranchTaken = r.BranchTaken
	in.BranchType = branch.Classify(r.Signature())
	return in
}
