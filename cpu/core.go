// Package cpu implements the out-of-order pipeline: a reverse-stage-order
// tick, a reorder buffer, and a load/store queue performing store-to-load
// forwarding, grounded on inc/ooo_cpu.h.
package cpu

import (
	"github.com/ooosim/coretrace/branch"
	"github.com/ooosim/coretrace/channel"
	"github.com/ooosim/coretrace/instr"
	"github.com/ooosim/coretrace/lru"
	"github.com/ooosim/coretrace/stats"
)

// Config holds one core's fixed widths, latencies and buffer sizes,
// mirroring O3_CPU's Builder-populated const fields.
type Config struct {
	CPU uint32

	IFetchBufferSize   int
	DecodeBufferSize   int
	DispatchBufferSize int
	ROBSize            int
	LQSize             int
	SQSize             int

	FetchWidth    int
	DecodeWidth   int
	DispatchWidth int
	ScheduleWidth int
	ExecuteWidth  int
	LQWidth       int
	SQWidth       int
	RetireWidth   int

	BranchMispredictPenalty uint64
	DecodeLatency           uint64
	DispatchLatency         uint64
	ScheduleLatency         uint64
	ExecuteLatency          uint64

	DIBSets       int
	DIBWays       int
	DIBWindowBits uint
}

// Stats accumulates the heartbeat/IPC and branch-type counters the
// supplemented features call for, mirroring cpu_stats.
type Stats struct {
	BeginInstrs, BeginCycles uint64
	EndInstrs, EndCycles     uint64

	TotalROBOccupancyAtMispredict uint64

	TotalBranchTypes [8]uint64
	BranchTypeMisses [8]uint64
}

// Core is one out-of-order pipeline, O3_CPU in the original.
type Core struct {
	cfg Config

	dib *lru.Table[struct{}]

	inputQueue     []*instr.Instr
	ifetchBuffer   []*instr.Instr
	decodeBuffer   []*instr.Instr
	dispatchBuffer []*instr.Instr
	rob            []*instr.Instr

	lq *instr.LoadQueue
	sq *instr.StoreQueue

	// regProducers[r] is the instr_id of the youngest dispatched
	// instruction that writes register r, or 0 if none is live.
	regProducers [256]uint64

	predictor branch.Predictor
	btb       branch.BTB

	l1i *channel.Channel
	l1d *channel.Channel

	// fetchPending tracks cache-block addresses with an outstanding I$
	// read, so a second instruction in the same block does not issue a
	// second request (the channel's own coalescing already dedupes the
	// wire request; this tracks which in-flight instructions are waiting
	// on it so they can be released together on return).
	fetchPending map[uint64][]*instr.Instr

	now              uint64
	fetchResumeCycle uint64
	lastHeartbeatCycle uint64
	lastHeartbeatInstr uint64
	numRetired       uint64

	roiWindow stats.Window

	Stats Stats
}

func dibShift(shamt uint) func(uint64) uint64 {
	return func(v uint64) uint64 { return v >> shamt }
}

// New builds a core with empty buffers, given branch/BTB prediction chains
// and the instruction and data channels it drives as an upper-level
// producer (CacheBus in the original).
func New(cfg Config, predictor branch.Predictor, btb branch.BTB, l1i, l1d *channel.Channel) *Core {
	c := &Core{
		cfg:          cfg,
		dib:          lru.New[struct{}](cfg.DIBSets, cfg.DIBWays, dibShift(cfg.DIBWindowBits), dibShift(cfg.DIBWindowBits)),
		lq:           instr.NewLoadQueue(cfg.LQSize),
		sq:           instr.NewStoreQueue(),
		predictor:    predictor,
		btb:          btb,
		l1i:          l1i,
		l1d:          l1d,
		fetchPending: make(map[uint64][]*instr.Instr),
	}
	predictor.Initialize()
	btb.Initialize()
	return c
}

// Feed appends trace-sourced instructions to the input queue, up to twice
// FETCH_WIDTH of slack as the original's IN_QUEUE_SIZE caps it, and
// reports how many of instrs were accepted so a caller reading a trace
// incrementally knows where to resume.
func (c *Core) Feed(instrs []*instr.Instr) (accepted int) {
	limit := 2 * c.cfg.FetchWidth
	for _, in := range instrs {
		if len(c.inputQueue) >= limit {
			return accepted
		}
		c.inputQueue = append(c.inputQueue, in)
		accepted++
	}
	return accepted
}

// NumRetired reports the monotonically non-decreasing retired-instruction
// count.
func (c *Core) NumRetired() uint64 { return c.numRetired }

// ROBOccupancy reports live reorder-buffer depth.
func (c *Core) ROBOccupancy() int { return len(c.rob) }

// Drained reports whether every pipeline stage and queue has gone empty,
// the condition a driver uses to know a fed trace has fully retired.
func (c *Core) Drained() bool {
	return len(c.inputQueue) == 0 &&
		len(c.ifetchBuffer) == 0 &&
		len(c.decodeBuffer) == 0 &&
		len(c.dispatchBuffer) == 0 &&
		len(c.rob) == 0 &&
		c.lq.Occupancy() == 0 &&
		c.sq.Size() == 0
}

// Heartbeat reports whether a heartbeat boundary was crossed and resets
// the tracking counters, mirroring ooo_cpu.h's show_heartbeat handling;
// the caller (harness) decides what to do with the IPC figure.
func (c *Core) Heartbeat(now uint64, period uint64) (instructionsPerCycle float64, crossed bool) {
	if c.numRetired-c.lastHeartbeatInstr < period {
		return 0, false
	}
	cycles := now - c.lastHeartbeatCycle
	instrs := c.numRetired - c.lastHeartbeatInstr
	c.lastHeartbeatCycle = now
	c.lastHeartbeatInstr = c.numRetired
	if cycles == 0 {
		return 0, true
	}
	return float64(instrs) / float64(cycles), true
}
