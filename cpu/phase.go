package cpu

// BeginPhase opens the region-of-interest window at the current retired
// count and cycle, grounded on O3_CPU's roi_stats reset at warmup end. It
// satisfies stats.PhaseAware.
func (c *Core) BeginPhase() {
	c.roiWindow.Begin(c.numRetired, c.now)
}

// EndPhase closes the region-of-interest window; ROIWindow is valid to
// read at any point afterward.
func (c *Core) EndPhase() {
	c.roiWindow.End(c.numRetired, c.now)
}

// ROIInstrs reports the number of instructions retired within the open
// or closed region-of-interest window.
func (c *Core) ROIInstrs() uint64 { return c.numRetired - c.roiWindow.BeginInstrs }

// ROICycles reports the number of cycles elapsed within the open or
// closed region-of-interest window.
func (c *Core) ROICycles() uint64 { return c.now - c.roiWindow.BeginCycles }
