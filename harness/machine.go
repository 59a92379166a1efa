package harness

import (
	"log/slog"

	"github.com/ooosim/coretrace/branch"
	"github.com/ooosim/coretrace/cache"
	"github.com/ooosim/coretrace/channel"
	"github.com/ooosim/coretrace/cpu"
	"github.com/ooosim/coretrace/dram"
	"github.com/ooosim/coretrace/instr"
	"github.com/ooosim/coretrace/prefetch"
	"github.com/ooosim/coretrace/ptw"
	"github.com/ooosim/coretrace/replacement"
	"github.com/ooosim/coretrace/trace"
)

// deadlocker is any component that can describe its own stuck state,
// the interface DeadlockWatchdog drives across every registered
// operable, mirroring the print_deadlock() every ChampSim component
// implements.
type deadlocker interface {
	PrintDeadlock(log *slog.Logger)
}

// Machine is one fully wired simulated system: a core, its private L1s,
// a shared L2 and LLC, the page-table walker they translate through, and
// the DRAM each of those two paths bottoms out at.
//
// Addresses flow core -> L1I/L1D -> L2 -> LLC -> DRAM. Untranslated
// requests instead detour through L1I/L1D's translation coupling to a
// shared page-table walker, which resolves them against its own,
// separate DRAM path (page tables are not cached anywhere in this
// machine, a deliberate simplification recorded in DESIGN.md).
type Machine struct {
	cfg Config

	core *cpu.Core

	l1i, l1d *cache.Controller
	l2       *cache.Controller
	llc      *cache.Controller

	walker     *ptw.Walker
	ptwSvc     *ptwService
	ptwRouter  *memRouter
	dataRouter *memRouter

	watchdog *DeadlockWatchdog

	now         uint64
	warmup      bool
	nextInstrID uint64
	noMoreInput bool
	deadlocked  bool
	backlog     []*instr.Instr

	log *slog.Logger
}

// New builds a machine from cfg, with freshly constructed predictor/BTB
// chains and replacers, and an IP-stride prefetcher at L2. Exactly one
// core is wired per machine; nothing about this system requires more
// than one.
func New(cfg Config, log *slog.Logger) *Machine {
	if log == nil {
		log = slog.Default()
	}

	l1iUpper := channel.New("L1i", 8, cfg.L1I.PQSize, 8, 16)
	l1dUpper := channel.New("L1d", 8, cfg.L1D.PQSize, 8, 16)
	l2Link := channel.New("L2Link", 8, cfg.L2.PQSize, 8, 16)
	llcLink := channel.New("LlcLink", 8, cfg.LLC.PQSize, 8, 16)
	memLink := channel.New("MemLink", 32, 32, 32, 32)
	translateLink := channel.New("TranslateLink", 16, 0, 0, 16)
	ptwMemLink := channel.New("PtwMemLink", 16, 0, 0, 16)

	l1i := cache.New(cfg.L1I, l1iUpper, l2Link, translateLink, replacement.NewLRU(cfg.L1I.NumSet, cfg.L1I.NumWay), nil)
	l1d := cache.New(cfg.L1D, l1dUpper, l2Link, translateLink, replacement.NewLRU(cfg.L1D.NumSet, cfg.L1D.NumWay), nil)
	l2 := cache.New(cfg.L2, l2Link, llcLink, nil, replacement.NewLRU(cfg.L2.NumSet, cfg.L2.NumWay), prefetch.NewIPStride(4))
	llc := cache.New(cfg.LLC, llcLink, memLink, nil, replacement.NewSRRIP(cfg.LLC.NumSet, cfg.LLC.NumWay), nil)

	walker := ptw.New(cfg.VMLevels, cfg.newVMem(), ptwMemLink.AddRQ, cfg.PTWMSHRSize, cfg.PTWHitLatency, cfg.PTWPSCL)
	ptwSvc := newPTWService(walker, translateLink, ptwMemLink)

	dataGeom := cfg.DRAM
	dataChannels := make([]*dram.Channel, dataGeom.Channels)
	for i := range dataChannels {
		dataChannels[i] = dram.New(dataGeom, cfg.DRAMTiming, channel.New("DramData", 32, 32, 32, 32))
	}
	dataCtrl := dram.NewController(dataGeom, dataChannels)

	ptwGeom := dram.Geometry{Channels: 1, Ranks: dataGeom.Ranks, Banks: dataGeom.Banks, Columns: dataGeom.Columns, Rows: dataGeom.Rows}
	ptwChannels := []*dram.Channel{dram.New(ptwGeom, cfg.DRAMTiming, channel.New("DramPtw", 16, 0, 16, 16))}
	ptwCtrl := dram.NewController(ptwGeom, ptwChannels)

	core := cpu.New(cfg.CPU, branch.NewBimodal(), branch.NewBasicBTB(), l1iUpper, l1dUpper)

	m := &Machine{
		cfg:        cfg,
		core:       core,
		l1i:        l1i,
		l1d:        l1d,
		l2:         l2,
		llc:        llc,
		walker:     walker,
		ptwSvc:     ptwSvc,
		ptwRouter:  newMemRouter(ptwMemLink, ptwCtrl, ptwChannels),
		dataRouter: newMemRouter(memLink, dataCtrl, dataChannels),
		log:        log,
		warmup:     true,
	}
	m.watchdog = NewWatchdog(cfg.DeadlockCycles, m.operables(), log)
	return m
}

func (m *Machine) operables() []deadlocker {
	return []deadlocker{m.core, m.l1i, m.l1d, m.l2, m.llc, m.walker}
}

// Feed assigns sequential instr_ids to a batch of trace records and
// queues them for delivery to the core's input queue, the machine's
// trace-input surface. Records beyond the core's input-queue slack are
// held in a backlog and drained a few at a time as room frees up, the
// same incremental-read behavior the original gets for free by reading
// its trace file one instruction at a time.
func (m *Machine) Feed(batch []trace.Record) {
	for _, r := range batch {
		m.nextInstrID++
		m.backlog = append(m.backlog, trace.ToInstr(m.nextInstrID, r))
	}
	m.drainBacklog()
}

func (m *Machine) drainBacklog() {
	if len(m.backlog) == 0 {
		return
	}
	n := m.core.Feed(m.backlog)
	m.backlog = m.backlog[n:]
}

// NumRetired reports the core's monotonically non-decreasing retired
// count.
func (m *Machine) NumRetired() uint64 { return m.core.NumRetired() }

// Now reports the machine's current cycle counter.
func (m *Machine) Now() uint64 { return m.now }
