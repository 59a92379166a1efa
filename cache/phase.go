package cache

import "github.com/ooosim/coretrace/channel"

func copyStats(s Stats) Stats {
	cp := s
	cp.Hits = make(map[channel.AccessType]uint64, len(s.Hits))
	for k, v := range s.Hits {
		cp.Hits[k] = v
	}
	cp.Misses = make(map[channel.AccessType]uint64, len(s.Misses))
	for k, v := range s.Misses {
		cp.Misses[k] = v
	}
	return cp
}

// BeginPhase snapshots the statistics accumulated so far as the warmup
// baseline, grounded on CACHE's roi_stats reset at warmup end. It
// satisfies stats.PhaseAware.
func (c *Controller) BeginPhase() {
	c.warmupSnapshot = copyStats(c.Stats)
}

// EndPhase is a no-op hook point marking the region of interest's close;
// ROIStats is valid to read at any point after BeginPhase.
func (c *Controller) EndPhase() {}

// ROIStats reports the statistics accumulated since the last BeginPhase
// call, discarding whatever accumulated during warmup.
func (c *Controller) ROIStats() Stats {
	roi := copyStats(c.Stats)
	for k, v := range c.warmupSnapshot.Hits {
		roi.Hits[k] -= v
	}
	for k, v := range c.warmupSnapshot.Misses {
		roi.Misses[k] -= v
	}
	roi.PFRequested -= c.warmupSnapshot.PFRequested
	roi.PFIssued -= c.warmupSnapshot.PFIssued
	roi.PFUseful -= c.warmupSnapshot.PFUseful
	roi.PFUseless -= c.warmupSnapshot.PFUseless
	roi.PFFill -= c.warmupSnapshot.PFFill
	roi.TotalMissLatency -= c.warmupSnapshot.TotalMissLatency
	return roi
}
