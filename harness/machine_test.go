package harness_test

import (
	"log/slog"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ooosim/coretrace/cache"
	"github.com/ooosim/coretrace/cpu"
	"github.com/ooosim/coretrace/dram"
	"github.com/ooosim/coretrace/harness"
	"github.com/ooosim/coretrace/ptw"
	"github.com/ooosim/coretrace/trace"
)

func TestHarness(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Harness Suite")
}

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func testMachineConfig() harness.Config {
	return harness.Config{
		CPU: cpu.Config{
			IFetchBufferSize: 8, DecodeBufferSize: 8, DispatchBufferSize: 8,
			ROBSize: 32, LQSize: 16, SQSize: 16,
			FetchWidth: 4, DecodeWidth: 4, DispatchWidth: 4, ScheduleWidth: 4, ExecuteWidth: 4,
			LQWidth: 2, SQWidth: 2, RetireWidth: 4,
			BranchMispredictPenalty: 10,
			DIBSets:                 8, DIBWays: 4, DIBWindowBits: 2,
		},
		L1I: cache.Config{NumSet: 8, NumWay: 4, HitLatency: 1, FillLatency: 1, MaxTag: 4, MaxFill: 4, MSHRSize: 4, PQSize: 4},
		L1D: cache.Config{NumSet: 8, NumWay: 4, HitLatency: 1, FillLatency: 1, MaxTag: 4, MaxFill: 4, MSHRSize: 4, PQSize: 4},
		L2:  cache.Config{NumSet: 16, NumWay: 4, HitLatency: 4, FillLatency: 1, MaxTag: 4, MaxFill: 4, MSHRSize: 8, PQSize: 4},
		LLC: cache.Config{NumSet: 32, NumWay: 8, HitLatency: 8, FillLatency: 1, MaxTag: 4, MaxFill: 4, MSHRSize: 16, PQSize: 8},

		DRAM:       dram.Geometry{Channels: 1, Ranks: 1, Banks: 2, Columns: 64, Rows: 256},
		DRAMTiming: dram.Timing{TCAS: 4, TRCD: 4, TRP: 4, DBusTurnaround: 1, DBusReturnTime: 2, WriteHighWatermark: 8, WriteLowWatermark: 4, RefreshPeriod: 4096, RefreshRows: 4},

		VMLevels:               2,
		VMPageTableWalkLatency: 4,
		VMMinorFaultPenalty:    8,

		PTWMSHRSize:   4,
		PTWHitLatency: 1,
		PTWPSCL:       []ptw.PSCLDim{{Level: 1, Sets: 4, Ways: 2}},

		WarmupInstructions:    0,
		HeartbeatInstructions: 1_000_000,
		DeadlockCycles:        10_000,
	}
}

func runToCompletion(m *harness.Machine, maxCycles int) bool {
	for i := 0; i < maxCycles; i++ {
		if !m.Tick() {
			return true
		}
	}
	return false
}

var _ = Describe("Machine", func() {
	It("retires every fed instruction through the full hierarchy, translation included", func() {
		m := harness.New(testMachineConfig(), quietLog())

		var records []trace.Record
		for i := uint64(0); i < 20; i++ {
			records = append(records, trace.Record{
				IP:                   0x400000 + i*4,
				SourceRegisters:      []uint8{1, 2},
				DestinationRegisters: []uint8{3},
				MemorySourceVAddrs:   []uint64{0x10000 + (i%3)*64},
			})
		}
		m.Feed(records)

		finished := runToCompletion(m, 5000)
		Expect(finished).To(BeFalse(), "machine should still be ticking without an explicit finish signal")
		Expect(m.NumRetired()).To(Equal(uint64(20)))
	})

	It("runs to a clean finish end to end through Run", func() {
		var records []trace.Record
		for i := uint64(0); i < 10; i++ {
			records = append(records, trace.Record{IP: 0x500000 + i*4, DestinationRegisters: []uint8{4}})
		}

		deadlocked, err := harness.Run(testMachineConfig(), func(m *harness.Machine) {
			m.Feed(records)
		}, quietLog())

		Expect(err).NotTo(HaveOccurred())
		Expect(deadlocked).To(BeFalse())
	})
})
