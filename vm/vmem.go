// Package vm implements a demand-paged allocator and a multi-level
// page-table emulator, the vmem dependency used throughout
// src/ptw.cc (get_pte_pa, va_to_pa, get_offset, shamt, pt_levels).
// There is no vmem.cc/vmem.h among the retrieved sources, so this is
// built from ptw.cc's call sites rather than a direct port.
package vm

import "github.com/ooosim/coretrace/addr"

const (
	// PageOffsetBits mirrors addr.PageOffsetBits: a 4KiB page.
	PageOffsetBits = addr.PageOffsetBits
	// PTEBytes is the size of one page-table entry.
	PTEBytes = 8
	// entriesPerPage is how many PTEs fit in one page-table page.
	entriesPerPage = (1 << PageOffsetBits) / PTEBytes
)

// VirtualMemory allocates physical pages on first touch and emulates the
// multi-level page table a real walk would traverse, including a
// per-level miss penalty charged once (warming up).
type VirtualMemory struct {
	Levels int

	pageTableWalkLatency uint64
	minorFaultPenalty    uint64

	nextPhysicalPage uint64
	pageMap          map[pageKey]uint64 // (asid, vpage) -> ppage

	// ptPages[level] maps a synthetic page-table-page identity to its
	// physical address, so that repeated walks down the same path are
	// stable without modeling actual PTE content.
	ptPages []map[uint64]uint64
	nextPT  uint64

	root uint64
}

type pageKey struct {
	asid  [2]uint8
	vpage uint64
}

// New builds a virtual memory emulator with the given number of
// page-table levels (4 for a standard 4-level walk) and per-level/final
// translation penalties expressed in cycles.
func New(levels int, pageTableWalkLatency, minorFaultPenalty uint64) *VirtualMemory {
	v := &VirtualMemory{
		Levels:               levels,
		pageTableWalkLatency: pageTableWalkLatency,
		minorFaultPenalty:    minorFaultPenalty,
		nextPhysicalPage:     1,
		pageMap:              make(map[pageKey]uint64),
		ptPages:              make([]map[uint64]uint64, levels+1),
		nextPT:               1,
	}
	for i := range v.ptPages {
		v.ptPages[i] = make(map[uint64]uint64)
	}
	v.root = v.pageAddress(v.allocatePT(0, 0))
	return v
}

func (v *VirtualMemory) pageAddress(page uint64) uint64 {
	return page << PageOffsetBits
}

func (v *VirtualMemory) allocatePT(level int, key uint64) uint64 {
	if pa, ok := v.ptPages[level][key]; ok {
		return pa
	}
	pa := v.nextPT
	v.nextPT++
	v.ptPages[level][key] = pa
	return pa
}

// Shamt returns the bit-shift amount for the virtual-address field
// consumed at the given walk level (1-indexed from the leaf).
func (v *VirtualMemory) Shamt(level int) uint {
	return PageOffsetBits + uint(level-1)*entryIndexBits
}

const entryIndexBits = 9 // log2(entriesPerPage), matching a 512-entry PTE page

// GetOffset returns the page-table-page-relative PTE index for addr at
// the given walk level.
func (v *VirtualMemory) GetOffset(address uint64, level int) uint64 {
	return (address >> v.Shamt(level)) & (entriesPerPage - 1)
}

// RootAddress is the physical address of the top-level page-table page
// (the CR3 equivalent).
func (v *VirtualMemory) RootAddress() uint64 {
	return v.root
}

// GetPTEPhysicalAddr returns the physical address holding the entry
// for vaddr at the given walk level, along with the minor-fault penalty
// charged if that entry did not already exist, lazily materializing the
// intermediate page-table page.
func (v *VirtualMemory) GetPTEPhysicalAddr(cpu uint32, vaddr uint64, level int) (uint64, uint64) {
	key := (uint64(cpu) << 48) | (vaddr >> v.Shamt(level+1))
	existed := true
	if _, ok := v.ptPages[level][key]; !ok {
		existed = false
	}
	pa := v.allocatePT(level, key)
	penalty := v.pageTableWalkLatency
	if !existed {
		penalty += v.minorFaultPenalty
	}
	return v.pageAddress(pa) + v.GetOffset(vaddr, level+1)*PTEBytes, penalty
}

// VAToPA resolves a full virtual address to a physical address,
// allocating the backing physical page on first touch (a demand-paged
// minor fault), along with the resolution penalty.
func (v *VirtualMemory) VAToPA(cpu uint32, vaddr uint64) (uint64, uint64) {
	vpage := addr.NewPageNumber(vaddr)
	key := pageKey{vpage: vpage.To64()}
	_ = cpu

	ppage, ok := v.pageMap[key]
	penalty := v.pageTableWalkLatency
	if !ok {
		ppage = v.nextPhysicalPage
		v.nextPhysicalPage++
		v.pageMap[key] = ppage
		penalty += v.minorFaultPenalty
	}

	offset := addr.NewPageOffset(vaddr)
	return addr.SplicePageAddress(addr.NewPageNumber(ppage<<PageOffsetBits), offset), penalty
}
