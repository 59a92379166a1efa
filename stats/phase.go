// Package stats implements the shared warmup/ROI phase-split machinery
// the per-component statistics structs use, grounded on the
// begin_phase/end_phase pattern common to cache.cc, dram_controller.cc
// and ooo_cpu.h (each keeps a cumulative sim_stats plus a roi_stats that
// discards whatever accumulated before the region of interest began).
package stats

// PhaseAware is implemented by any component whose statistics support
// discarding a warmup prefix once the region of interest begins.
type PhaseAware interface {
	BeginPhase()
	EndPhase()
}

// Window tracks a begin/end instruction-and-cycle pair, the shape
// O3_CPU's cpu_stats uses for both roi_stats and sim_stats.
type Window struct {
	BeginInstrs, BeginCycles uint64
	EndInstrs, EndCycles     uint64
}

// Begin records the counters observed when this window opens.
func (w *Window) Begin(instrs, cycles uint64) { w.BeginInstrs, w.BeginCycles = instrs, cycles }

// End records the counters observed when this window closes.
func (w *Window) End(instrs, cycles uint64) { w.EndInstrs, w.EndCycles = instrs, cycles }

// Instrs reports the number of instructions retired within the window.
func (w Window) Instrs() uint64 { return w.EndInstrs - w.BeginInstrs }

// Cycles reports the number of cycles elapsed within the window.
func (w Window) Cycles() uint64 { return w.EndCycles - w.BeginCycles }
