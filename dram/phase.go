package dram

// BeginPhase snapshots the statistics accumulated so far as the warmup
// baseline, grounded on the same roi_stats-reset pattern as CACHE. It
// satisfies stats.PhaseAware.
func (c *Channel) BeginPhase() {
	c.warmupSnapshot = c.Stats
}

// EndPhase is a no-op hook point marking the region of interest's close;
// ROIStats is valid to read at any point after BeginPhase.
func (c *Channel) EndPhase() {}

// ROIStats reports the statistics accumulated since the last BeginPhase
// call, discarding whatever accumulated during warmup.
func (c *Channel) ROIStats() Stats {
	roi := c.Stats
	roi.RQRowBufferHit -= c.warmupSnapshot.RQRowBufferHit
	roi.RQRowBufferMiss -= c.warmupSnapshot.RQRowBufferMiss
	roi.WQRowBufferHit -= c.warmupSnapshot.WQRowBufferHit
	roi.WQRowBufferMiss -= c.warmupSnapshot.WQRowBufferMiss
	roi.DbusCycleCongested -= c.warmupSnapshot.DbusCycleCongested
	roi.DbusCountCongested -= c.warmupSnapshot.DbusCountCongested
	roi.RefreshCycles -= c.warmupSnapshot.RefreshCycles
	return roi
}
