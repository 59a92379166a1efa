package harness

import "log/slog"

// DeadlockWatchdog declares deadlock once a machine goes too many cycles
// without retiring an instruction, mirroring champsim::deadlock's
// per-component print_deadlock sweep followed by a non-zero exit.
type DeadlockWatchdog struct {
	limit     uint64
	operables []deadlocker
	log       *slog.Logger

	lastRetired  uint64
	sinceRetire  uint64
	haveBaseline bool
}

// NewWatchdog builds a watchdog that fires after limit consecutive cycles
// pass with no forward progress. limit == 0 disables the watchdog.
func NewWatchdog(limit uint64, operables []deadlocker, log *slog.Logger) *DeadlockWatchdog {
	return &DeadlockWatchdog{limit: limit, operables: operables, log: log}
}

// Check records one cycle's retirement count and reports whether the
// machine has been stuck for at least the configured limit of cycles.
func (w *DeadlockWatchdog) Check(retired uint64) (deadlocked bool) {
	if w.limit == 0 {
		return false
	}
	if !w.haveBaseline || retired != w.lastRetired {
		w.haveBaseline = true
		w.lastRetired = retired
		w.sinceRetire = 0
		return false
	}
	w.sinceRetire++
	return w.sinceRetire >= w.limit
}

// Fire logs every registered component's deadlock snapshot, mirroring
// each ChampSim component's own print_deadlock() dump.
func (w *DeadlockWatchdog) Fire() {
	w.log.Error("deadlock detected", "stalled_cycles", w.sinceRetire)
	for _, op := range w.operables {
		op.PrintDeadlock(w.log)
	}
}
