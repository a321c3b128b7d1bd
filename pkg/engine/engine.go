package engine

import (
	"log/slog"
	"sync"

	"github.com/osinthq/sleuth/pkg/audit"
	"github.com/osinthq/sleuth/pkg/config"
	"github.com/osinthq/sleuth/pkg/integration"
	"github.com/osinthq/sleuth/pkg/llm"
	"github.com/osinthq/sleuth/pkg/models"
	"github.com/osinthq/sleuth/pkg/store"
)

// State is the manager's scheduling state. The state machine is strictly
// sequential within a run; Terminating is terminal.
type State string

const (
	StateInitializing State = "initializing"
	StatePrioritizing State = "prioritizing"
	StateDispatching  State = "dispatching"
	StateRunningTask  State = "running_task"
	StatePostTask     State = "post_task"
	StateTerminating  State = "terminating"
)

// Deps wires the engine to its collaborators. All fields are required
// except Costs, which may be nil when no cost table is wanted.
type Deps struct {
	Config   *config.Config
	Run      *models.Run
	LLM      llm.Caller
	Costs    *llm.CostTracker
	Registry *integration.Registry
	Store    *store.Store
	Audit    *audit.Logger
	Budget   *Budget
}

// Engine orchestrates one research run end to end.
type Engine struct {
	cfg      *config.Config
	run      *models.Run
	llm      llm.Caller
	costs    *llm.CostTracker
	registry *integration.Registry
	store    *store.Store
	auditLog *audit.Logger
	budget   *Budget
	logger   *slog.Logger

	mu                sync.Mutex
	state             State
	executionOrder    []int
	completedSinceChk int
	saturation        *models.SaturationVerdict
	saturationStopped bool
	terminated        string
}

// New builds an engine over the given dependencies.
func New(d Deps) *Engine {
	return &Engine{
		cfg:      d.Config,
		run:      d.Run,
		llm:      d.LLM,
		costs:    d.Costs,
		registry: d.Registry,
		store:    d.Store,
		auditLog: d.Audit,
		budget:   d.Budget,
		logger:   slog.Default().With("run_id", d.Run.ID),
		state:    StateInitializing,
	}
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// CurrentState returns the manager state, for the status API.
func (e *Engine) CurrentState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) recordExecution(taskID int) {
	e.mu.Lock()
	e.executionOrder = append(e.executionOrder, taskID)
	e.mu.Unlock()
}

// ExecutionOrder returns task ids in the order they were dispatched.
func (e *Engine) ExecutionOrder() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]int, len(e.executionOrder))
	copy(out, e.executionOrder)
	return out
}

func llmRequest(template, purpose string, taskID *int, vars map[string]any) llm.Request {
	return llm.Request{Template: template, Vars: vars, Purpose: purpose, TaskID: taskID}
}

func (e *Engine) emit(taskID *int, action audit.ActionType, payload any) {
	if e.auditLog != nil {
		e.auditLog.Emit(taskID, action, payload)
	}
}
