package models

import (
	"fmt"
	"time"
)

// TaskState is the lifecycle state of a research task.
type TaskState string

// Task lifecycle states. Exactly one terminal transition per task:
// pending → in_progress → completed|failed, with in_progress → pending
// allowed only for the bounded retry path.
const (
	TaskPending    TaskState = "pending"
	TaskInProgress TaskState = "in_progress"
	TaskCompleted  TaskState = "completed"
	TaskFailed     TaskState = "failed"
)

// DefaultPriority is assigned to tasks before any prioritization pass.
// Priority 1 is highest, 10 lowest.
const DefaultPriority = 5

// Task is a single research task within a run. Results live in the run's
// result store and reference tasks by id; the task itself tracks only its
// hypotheses, entities, and execution metadata.
type Task struct {
	ID       int    `json:"id"`
	Query    string `json:"query"`
	ParentID *int   `json:"parent_id,omitempty"`

	Priority            int    `json:"priority"`
	PriorityReasoning   string `json:"priority_reasoning,omitempty"`
	EstimatedValue      int    `json:"estimated_value,omitempty"`
	EstimatedRedundancy int    `json:"estimated_redundancy,omitempty"`

	RetryCount int       `json:"retry_count"`
	State      TaskState `json:"state"`

	Hypotheses []*Hypothesis `json:"hypotheses,omitempty"`
	Entities   []string      `json:"entities,omitempty"`
	Metadata   TaskMetadata  `json:"metadata"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TaskMetadata holds fixed-shape execution metadata plus a typed extras map
// for adapter-specific debug data.
type TaskMetadata struct {
	CoverageDecisions  []*CoverageDecision `json:"coverage_decisions,omitempty"`
	HypothesesExecuted int                 `json:"hypotheses_executed"`
	ResultsAccumulated int                 `json:"results_accumulated"`
	GapType            string              `json:"gap_type,omitempty"`
	Extra              map[string]any      `json:"extra,omitempty"`
}

// Begin transitions pending → in_progress.
func (t *Task) Begin() error {
	if t.State != TaskPending {
		return fmt.Errorf("task %d: cannot begin from state %q", t.ID, t.State)
	}
	now := time.Now().UTC()
	t.State = TaskInProgress
	t.StartedAt = &now
	return nil
}

// Complete transitions in_progress → completed.
func (t *Task) Complete() error {
	if t.State != TaskInProgress {
		return fmt.Errorf("task %d: cannot complete from state %q", t.ID, t.State)
	}
	now := time.Now().UTC()
	t.State = TaskCompleted
	t.CompletedAt = &now
	return nil
}

// Fail transitions in_progress → failed.
func (t *Task) Fail() error {
	if t.State != TaskInProgress {
		return fmt.Errorf("task %d: cannot fail from state %q", t.ID, t.State)
	}
	now := time.Now().UTC()
	t.State = TaskFailed
	t.CompletedAt = &now
	return nil
}

// Requeue transitions in_progress → pending and bumps the retry count.
// Only permitted while retries remain; the caller checks the "no usable
// results" condition.
func (t *Task) Requeue(maxRetries int) error {
	if t.State != TaskInProgress {
		return fmt.Errorf("task %d: cannot requeue from state %q", t.ID, t.State)
	}
	if t.RetryCount >= maxRetries {
		return fmt.Errorf("task %d: retry limit %d reached", t.ID, maxRetries)
	}
	t.RetryCount++
	t.State = TaskPending
	t.StartedAt = nil
	return nil
}

// Terminal reports whether the task reached a terminal state.
func (t *Task) Terminal() bool {
	return t.State == TaskCompleted || t.State == TaskFailed
}

// LastCoverageDecision returns the most recent coverage decision, or nil.
func (t *Task) LastCoverageDecision() *CoverageDecision {
	if n := len(t.Metadata.CoverageDecisions); n > 0 {
		return t.Metadata.CoverageDecisions[n-1]
	}
	return nil
}

// AddEntities merges names into the task entity set, preserving order of
// first appearance. Returns the number of newly added entities.
func (t *Task) AddEntities(names []string) int {
	seen := make(map[string]struct{}, len(t.Entities))
	for _, e := range t.Entities {
		seen[e] = struct{}{}
	}
	added := 0
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		t.Entities = append(t.Entities, name)
		added++
	}
	return added
}
