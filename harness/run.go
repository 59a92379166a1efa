package harness

import (
	"fmt"
	"log/slog"

	"github.com/rs/xid"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/tebeka/atexit"

	"github.com/ooosim/coretrace/cache"
	"github.com/ooosim/coretrace/stats"
)

// sumMisses totals a cache's region-of-interest misses across every
// access type, a terse figure for the end-of-run summary line.
func sumMisses(s cache.Stats) uint64 {
	var total uint64
	for _, n := range s.Misses {
		total += n
	}
	return total
}

// machineFreq is the nominal clock every component in a Machine advances
// by on each simulated cycle. The hierarchy's components all count
// cycles on this single shared clock; per-level frequency scaling is out
// of scope.
const machineFreq sim.Freq = 4 * sim.GHz

// sessionID is this process's globally unique run identity, assigned the
// way a parallel-mode xid-backed ID generator hands out opaque handles to
// dynamically allocated tracking objects.
var sessionID = xid.New().String()

// phaseComponents lists every statistics-bearing component that opens
// and closes its own region-of-interest window.
func (m *Machine) phaseComponents() []stats.PhaseAware {
	return []stats.PhaseAware{m.core, m.l1i, m.l1d, m.l2, m.llc}
}

// finish marks that no further trace records will arrive; once the core
// has also drained every in-flight instruction, the machine is done.
func (m *Machine) finish() { m.noMoreInput = true }

func (m *Machine) done() bool {
	return m.noMoreInput && len(m.backlog) == 0 && m.core.Drained()
}

// Tick advances the machine by one cycle and reports whether the run
// should continue, satisfying sim.Ticker for the TickingComponent this
// package's Run wraps the machine in.
func (m *Machine) Tick() bool {
	if m.done() {
		return false
	}

	m.drainBacklog()

	m.dataRouter.Operate()
	m.llc.Operate(m.now, m.warmup)
	m.l2.Operate(m.now, m.warmup)
	m.l1i.Operate(m.now, m.warmup)
	m.l1d.Operate(m.now, m.warmup)
	m.ptwSvc.Operate(m.now, m.warmup)
	m.ptwRouter.Operate()
	m.core.Operate(m.now)

	if m.warmup && m.core.NumRetired() >= m.cfg.WarmupInstructions {
		m.warmup = false
		for _, p := range m.phaseComponents() {
			p.BeginPhase()
		}
		m.log.Info("region of interest begins", "session", sessionID, "cycle", m.now, "retired", m.core.NumRetired())
	}

	if ipc, crossed := m.core.Heartbeat(m.now, m.cfg.HeartbeatInstructions); crossed {
		m.log.Info("heartbeat", "session", sessionID, "retired", m.core.NumRetired(), "cycle", m.now, "ipc", ipc)
	}

	if m.watchdog.Check(m.core.NumRetired()) {
		m.watchdog.Fire()
		m.deadlocked = true
		return false
	}

	m.now++

	if m.done() {
		for _, p := range m.phaseComponents() {
			p.EndPhase()
		}
		m.log.Info("run complete", "session", sessionID, "cycle", m.now, "retired", m.core.NumRetired())
	}

	return true
}

// FinalStats summarizes the region-of-interest statistics every
// phase-aware component accumulated, the harness-level analogue of
// ChampSim's end-of-run stats print.
func (m *Machine) FinalStats() string {
	return fmt.Sprintf(
		"session=%s retired=%d roi_cycles=%d l1i_misses=%d l1d_misses=%d l2_misses=%d llc_misses=%d",
		sessionID,
		m.core.ROIInstrs(),
		m.core.ROICycles(),
		sumMisses(m.l1i.ROIStats()),
		sumMisses(m.l1d.ROIStats()),
		sumMisses(m.l2.ROIStats()),
		sumMisses(m.llc.ROIStats()),
	)
}

// Run drives the machine to completion on its own clock bus: a single
// TickingComponent wraps the ticker and schedules itself on a
// SerialEngine until no more progress is possible. The final-statistics
// flush is registered with atexit so it fires exactly once regardless of
// which exit path the embedding program takes (clean finish, a deadlock
// abort, or a panic caught above this call) — Run itself never calls
// atexit.Exit; that decision belongs to whatever main wraps it.
func Run(cfg Config, feed func(*Machine), log *slog.Logger) (deadlocked bool, err error) {
	if log == nil {
		log = slog.Default()
	}

	m := New(cfg, log)
	atexit.Register(func() { log.Info("final statistics", "report", m.FinalStats()) })

	feed(m)
	m.finish()

	engine := sim.NewSerialEngine()
	tc := sim.NewTickingComponent("Machine"+sessionID, engine, machineFreq, m)
	tc.TickLater()

	if err := engine.Run(); err != nil {
		return false, err
	}

	return m.deadlocked, nil
}
