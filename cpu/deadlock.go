package cpu

import "log/slog"

// PrintDeadlock logs a snapshot of every pipeline buffer and the load/store
// queues, grounded on O3_CPU::print_deadlock's dump of IFETCH_BUFFER,
// DECODE_BUFFER, DISPATCH_BUFFER, ROB, LQ and SQ occupancy.
func (c *Core) PrintDeadlock(log *slog.Logger) {
	log.Error("deadlock snapshot: cpu core",
		"input_queue", len(c.inputQueue),
		"ifetch_buffer", len(c.ifetchBuffer),
		"decode_buffer", len(c.decodeBuffer),
		"dispatch_buffer", len(c.dispatchBuffer),
		"rob", len(c.rob),
		"lq_occupancy", c.lq.Occupancy(),
		"sq_occupancy", c.sq.Size(),
		"num_retired", c.numRetired)
}
