// Package models defines the domain records shared across the research
// engine: the run, its tasks and hypotheses, accumulated results, and the
// coverage/saturation judgment types exchanged with the LLM gateway.
package models

import (
	"strings"
	"sync"
	"time"
	"unicode"
)

// Run is the top-level research invocation. It owns the flat task arena;
// tasks reference each other by integer id only (no pointer cycles).
type Run struct {
	ID        string    `json:"run_id"`
	Question  string    `json:"question"`
	StartedAt time.Time `json:"started_at"`
	OutputDir string    `json:"output_dir"`

	mu         sync.Mutex
	tasks      []*Task
	nextTaskID int
}

// NewRun creates a run with an id derived from the start time and a
// slugified form of the question.
func NewRun(question, outputDir string, startedAt time.Time) *Run {
	return &Run{
		ID:         RunID(startedAt, question),
		Question:   question,
		StartedAt:  startedAt,
		OutputDir:  outputDir,
		nextTaskID: 1,
	}
}

// RunID builds the run identifier: "YYYY-MM-DD_HH-MM-SS_<slug>".
func RunID(t time.Time, question string) string {
	return t.UTC().Format("2006-01-02_15-04-05") + "_" + Slugify(question, 48)
}

// NewTask allocates the next task in the arena. ParentID is nil for
// decomposition seeds and set for follow-ups.
func (r *Run) NewTask(query string, parentID *int) *Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := &Task{
		ID:        r.nextTaskID,
		Query:     query,
		ParentID:  parentID,
		Priority:  DefaultPriority,
		State:     TaskPending,
		CreatedAt: time.Now().UTC(),
	}
	r.nextTaskID++
	r.tasks = append(r.tasks, t)
	return t
}

// Task returns the task with the given id, or nil.
func (r *Run) Task(id int) *Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Tasks returns a snapshot of the task arena in id order.
func (r *Run) Tasks() []*Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Task, len(r.tasks))
	copy(out, r.tasks)
	return out
}

// TasksInState returns tasks currently in the given state, in id order.
func (r *Run) TasksInState(state TaskState) []*Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Task
	for _, t := range r.tasks {
		if t.State == state {
			out = append(out, t)
		}
	}
	return out
}

// FollowUpCount returns the number of tasks whose parent is the given id.
func (r *Run) FollowUpCount(parentID int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.tasks {
		if t.ParentID != nil && *t.ParentID == parentID {
			n++
		}
	}
	return n
}

// TaskCount returns the total number of tasks allocated so far.
func (r *Run) TaskCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Slugify lowercases s, replaces runs of non-alphanumerics with single
// hyphens, and truncates to maxLen without a trailing hyphen.
func Slugify(s string, maxLen int) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "research"
	}
	if len(slug) > maxLen {
		slug = strings.Trim(slug[:maxLen], "-")
	}
	return slug
}
