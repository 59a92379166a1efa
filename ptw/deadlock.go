package ptw

import "log/slog"

// PrintDeadlock logs a snapshot of the walker's in-flight and completed
// translation entries, grounded on PageTableWalker::print_deadlock.
func (w *Walker) PrintDeadlock(log *slog.Logger) {
	log.Error("deadlock snapshot: ptw",
		"mshr", len(w.mshr), "completed", len(w.completed))
}
