package engine

import "github.com/osinthq/sleuth/pkg/models"

// Status is the point-in-time run snapshot served by the status API.
type Status struct {
	RunID          string `json:"run_id"`
	Question       string `json:"question"`
	State          State  `json:"state"`
	ElapsedSeconds int    `json:"elapsed_seconds"`

	TasksCreated   int `json:"tasks_created"`
	TasksPending   int `json:"tasks_pending"`
	TasksCompleted int `json:"tasks_completed"`
	TasksFailed    int `json:"tasks_failed"`

	ResultsCollected int `json:"results_collected"`
	EntitiesFound    int `json:"entities_found"`

	SaturationStopped bool `json:"saturation_stopped"`
}

// Snapshot builds the current status.
func (e *Engine) Snapshot() Status {
	e.mu.Lock()
	state := e.state
	stopped := e.saturationStopped
	e.mu.Unlock()

	snap := e.store.Take()
	return Status{
		RunID:             e.run.ID,
		Question:          e.run.Question,
		State:             state,
		ElapsedSeconds:    int(e.budget.Elapsed().Seconds()),
		TasksCreated:      e.run.TaskCount(),
		TasksPending:      len(e.run.TasksInState(models.TaskPending)),
		TasksCompleted:    len(e.run.TasksInState(models.TaskCompleted)),
		TasksFailed:       len(e.run.TasksInState(models.TaskFailed)),
		ResultsCollected:  snap.Results,
		EntitiesFound:     snap.Entities,
		SaturationStopped: stopped,
	}
}
