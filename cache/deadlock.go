package cache

import "log/slog"

// PrintDeadlock logs a snapshot of every queue this controller owns,
// grounded on CACHE::print_deadlock's dump of its RQ/PQ/WQ/MSHR.
func (c *Controller) PrintDeadlock(log *slog.Logger) {
	log.Error("deadlock snapshot: cache",
		"upper_rq", len(c.upper.RQ), "upper_pq", len(c.upper.PQ), "upper_wq", len(c.upper.WQ),
		"internal_pq", len(c.internalPQ),
		"mshr", len(c.mshr),
		"inflight_writes", len(c.inflightWrites),
		"inflight_tag_check", len(c.inflightTagCheck),
		"translation_stash", len(c.translationStash))
}
