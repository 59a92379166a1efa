// Command coresim wires one machine together with a small built-in
// instruction trace and runs it to completion, the minimal driver
// program the harness package's Config/Run surface is meant for. A full
// trace-file reader and flag-driven configuration are out of scope here;
// an embedding program builds its own harness.Config and calls
// harness.Run directly, the way this file does.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/tebeka/atexit"

	"github.com/ooosim/coretrace/cache"
	"github.com/ooosim/coretrace/cpu"
	"github.com/ooosim/coretrace/dram"
	"github.com/ooosim/coretrace/harness"
	"github.com/ooosim/coretrace/ptw"
	"github.com/ooosim/coretrace/trace"
)

func defaultConfig() harness.Config {
	return harness.Config{
		CPU: cpu.Config{
			CPU:                0,
			IFetchBufferSize:   64,
			DecodeBufferSize:   32,
			DispatchBufferSize: 32,
			ROBSize:            352,
			LQSize:             128,
			SQSize:             72,
			FetchWidth:         6,
			DecodeWidth:        6,
			DispatchWidth:      6,
			ScheduleWidth:      128,
			ExecuteWidth:       4,
			LQWidth:            2,
			SQWidth:            2,
			RetireWidth:        5,

			BranchMispredictPenalty: 1,
			DecodeLatency:           1,
			DispatchLatency:         1,
			ScheduleLatency:         0,
			ExecuteLatency:          0,

			DIBSets:       32,
			DIBWays:       8,
			DIBWindowBits: 6,
		},
		L1I: cache.Config{NumSet: 64, NumWay: 8, HitLatency: 4, FillLatency: 1, MaxTag: 2, MaxFill: 2, MSHRSize: 8, PQSize: 8},
		L1D: cache.Config{NumSet: 64, NumWay: 12, HitLatency: 5, FillLatency: 1, MaxTag: 2, MaxFill: 2, MSHRSize: 16, PQSize: 8},
		L2:  cache.Config{NumSet: 1024, NumWay: 8, HitLatency: 10, FillLatency: 1, MaxTag: 1, MaxFill: 1, MSHRSize: 32, PQSize: 16},
		LLC: cache.Config{NumSet: 2048, NumWay: 16, HitLatency: 20, FillLatency: 1, MaxTag: 1, MaxFill: 1, MSHRSize: 64, PQSize: 32},

		DRAM:       dram.Geometry{Channels: 1, Ranks: 1, Banks: 8, Columns: 1 << 10, Rows: 1 << 16},
		DRAMTiming: dram.Timing{TCAS: 12, TRCD: 12, TRP: 12, DBusTurnaround: 2, DBusReturnTime: 4, WriteHighWatermark: 64, WriteLowWatermark: 32, RefreshPeriod: 64 * 1024, RefreshRows: 8},

		VMLevels:               5,
		VMPageTableWalkLatency: 100,
		VMMinorFaultPenalty:    200,

		PTWMSHRSize:   8,
		PTWHitLatency: 1,
		PTWPSCL:       []ptw.PSCLDim{{Level: 1, Sets: 16, Ways: 4}, {Level: 2, Sets: 16, Ways: 4}},

		WarmupInstructions:    0,
		HeartbeatInstructions: 1_000_000,
		DeadlockCycles:        1_000_000,
	}
}

// demoTrace is a short self-contained instruction stream standing in for
// a real trace file: 64 loads, each reading one of four consecutive
// cache blocks, enough to exercise the hierarchy end to end.
func demoTrace() []trace.Record {
	var records []trace.Record
	for i := uint64(0); i < 64; i++ {
		records = append(records, trace.Record{
			IP:                 0x1000 + i*4,
			SourceRegisters:    []uint8{1, 2},
			DestinationRegisters: []uint8{3},
			MemorySourceVAddrs: []uint64{0x200000 + (i%4)*64},
		})
	}
	return records
}

func main() {
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	deadlocked, err := harness.Run(defaultConfig(), func(m *harness.Machine) {
		m.Feed(demoTrace())
	}, log)
	if err != nil {
		log.Error("simulation engine error", "err", err)
		atexit.Exit(1)
		return
	}
	if deadlocked {
		atexit.Exit(1)
		return
	}
	atexit.Exit(0)
}
