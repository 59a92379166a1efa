package dram

import "log/slog"

// PrintDeadlock logs a snapshot of this channel's pending requests and
// bank states, grounded on DRAM_CHANNEL's half of
// MEMORY_CONTROLLER::print_deadlock.
func (c *Channel) PrintDeadlock(log *slog.Logger) {
	openBanks := 0
	for _, b := range c.banks {
		if b.valid {
			openBanks++
		}
	}
	log.Error("deadlock snapshot: dram channel",
		"pending", len(c.pending), "write_mode", c.writeMode,
		"active_bank", c.activeBank, "open_banks", openBanks,
		"cycle", c.currentCycle)
}
