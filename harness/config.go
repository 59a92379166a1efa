// Package harness wires a cache, DRAM, page-table walker and core into
// one simulated machine, owns the shared clock bus and the deadlock
// watchdog, and exposes the trace-feeding surface a driver program
// consumes, grounded on champsim_main's top-level wiring and O3_CPU's
// construction in inc/ooo_cpu.h/src/main.cc.
package harness

import (
	"github.com/ooosim/coretrace/cache"
	"github.com/ooosim/coretrace/cpu"
	"github.com/ooosim/coretrace/dram"
	"github.com/ooosim/coretrace/ptw"
	"github.com/ooosim/coretrace/vm"
)

// Config is the full set of knobs needed to build one machine: a core,
// its private L1s, a shared L2 and LLC, a DRAM controller, and the page
// table walker the caches translate through.
type Config struct {
	CPU cpu.Config

	L1I cache.Config
	L1D cache.Config
	L2  cache.Config
	LLC cache.Config

	DRAM       dram.Geometry
	DRAMTiming dram.Timing

	VMLevels               int
	VMPageTableWalkLatency uint64
	VMMinorFaultPenalty    uint64

	PTWMSHRSize   int
	PTWHitLatency uint64
	PTWPSCL       []ptw.PSCLDim

	// WarmupInstructions is how many instructions retire before
	// BeginPhase opens the region of interest, mirroring ChampSim's
	// -warmup_instructions.
	WarmupInstructions uint64

	// HeartbeatInstructions is the retirement interval Core.Heartbeat
	// logs an IPC line at.
	HeartbeatInstructions uint64

	// DeadlockCycles is the no-retirement window after which the
	// watchdog declares deadlock and the run aborts, mirroring
	// champsim::deadlock's 1,000,000-cycle window; zero disables the
	// watchdog.
	DeadlockCycles uint64
}

// newVMem builds the virtual memory emulator the page-table walker
// resolves translations against.
func (cfg Config) newVMem() *vm.VirtualMemory {
	return vm.New(cfg.VMLevels, cfg.VMPageTableWalkLatency, cfg.VMMinorFaultPenalty)
}
