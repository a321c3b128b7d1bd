// Package engine contains the research orchestration core: the manager
// that schedules tasks, the task runner, the hypothesis executor, the
// coverage assessor, and the synthesizer that emits the run artifacts.
package engine

import "time"

// Budget tracks the run's wall-clock limits. Deadlines are advisory: an
// expired scope stops launching new work but never interrupts in-flight
// external calls, which carry their own timeouts.
type Budget struct {
	start     time.Time
	runLimit  time.Duration
	taskLimit time.Duration
}

// NewBudget starts the clock at start with the given run and per-task
// limits.
func NewBudget(start time.Time, runLimit, taskLimit time.Duration) *Budget {
	return &Budget{start: start, runLimit: runLimit, taskLimit: taskLimit}
}

// Elapsed returns time since run start.
func (b *Budget) Elapsed() time.Duration {
	return time.Since(b.start)
}

// RunExpired reports whether the run's hard deadline has passed.
func (b *Budget) RunExpired() bool {
	return b.Elapsed() >= b.runLimit
}

// TaskExpired reports whether a task started at the given time has passed
// its soft deadline. A nil start means the task has not begun.
func (b *Budget) TaskExpired(startedAt *time.Time) bool {
	if startedAt == nil {
		return false
	}
	return time.Since(*startedAt) >= b.taskLimit
}

// Remaining returns time left before the run deadline, floored at zero.
func (b *Budget) Remaining() time.Duration {
	if r := b.runLimit - b.Elapsed(); r > 0 {
		return r
	}
	return 0
}
