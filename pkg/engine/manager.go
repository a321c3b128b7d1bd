package engine

import (
	"context"
	"sort"

	"github.com/osinthq/sleuth/pkg/audit"
	"github.com/osinthq/sleuth/pkg/models"
	"github.com/osinthq/sleuth/pkg/prompt"
)

// recentSummaryWindow bounds how many completed tasks feed the saturation
// prompt.
const recentSummaryWindow = 5

// Run drives the whole research run: decomposition, the schedule loop, and
// synthesis. The returned error covers only unrecoverable artifact I/O;
// every research-level failure degrades and the run still synthesizes.
func (e *Engine) Run(ctx context.Context) error {
	e.emit(nil, audit.ActionRunStart, map[string]any{
		"question":         e.run.Question,
		"mode":             e.cfg.Run.Mode,
		"max_tasks":        e.cfg.Run.MaxTasks,
		"max_time_minutes": e.cfg.Run.MaxTimeMinutes,
		"sources":          e.registry.ListIDs(),
	})

	e.setState(StateInitializing)
	e.decompose(ctx)

	first := true
	for {
		if reason := e.terminationReason(ctx); reason != "" {
			e.finish(reason)
			break
		}

		e.setState(StatePrioritizing)
		if e.cfg.ManagerEnabled() && (first || e.cfg.ReprioritizeAfterTask()) {
			e.prioritize(ctx)
		}
		first = false

		e.setState(StateDispatching)
		task := e.nextTask()
		if task == nil {
			e.finish("queue_empty")
			break
		}

		e.setState(StateRunningTask)
		e.recordExecution(task.ID)
		outcome := e.runTask(ctx, task)

		e.setState(StatePostTask)
		if outcome == outcomeCompleted {
			e.mu.Lock()
			e.completedSinceChk++
			e.mu.Unlock()
			e.maybeFollowUps(ctx, task)
			e.maybeSaturation(ctx)
		}
	}

	e.setState(StateTerminating)
	err := e.synthesize(ctx)

	e.emit(nil, audit.ActionRunComplete, map[string]any{
		"reason":          e.terminatedBecause(),
		"tasks_created":   e.run.TaskCount(),
		"tasks_completed": len(e.run.TasksInState(models.TaskCompleted)),
		"results":         e.store.Count(),
		"entities":        len(e.store.Entities()),
		"elapsed_seconds": int(e.budget.Elapsed().Seconds()),
	})
	return err
}

// decompose seeds the queue from the research question. On LLM failure the
// question itself becomes the single seed task, so a run always has work.
func (e *Engine) decompose(ctx context.Context) {
	var resp decompositionResponse
	err := e.llm.Call(ctx, llmRequest(prompt.TaskDecomposition, "decomposition", nil, map[string]any{
		"Question": e.run.Question,
		"MaxTasks": e.cfg.Run.MaxTasks,
	}), &resp)
	if err != nil {
		e.logger.Warn("decomposition failed, falling back to a single seed task", "error", err)
		t := e.run.NewTask(e.run.Question, nil)
		e.emit(nil, audit.ActionDecomposition, map[string]any{
			"fallback": true,
			"error":    err.Error(),
			"tasks":    []map[string]any{{"task_id": t.ID, "query": t.Query}},
		})
		return
	}

	created := make([]map[string]any, 0, len(resp.Tasks))
	for _, seed := range resp.Tasks {
		if e.run.TaskCount() >= e.cfg.Run.MaxTasks {
			break
		}
		t := e.run.NewTask(seed.Query, nil)
		created = append(created, map[string]any{
			"task_id":   t.ID,
			"query":     seed.Query,
			"rationale": seed.Rationale,
		})
	}
	e.emit(nil, audit.ActionDecomposition, map[string]any{"tasks": created})
}

// prioritize reorders the pending queue via the LLM. A failed call keeps
// the prior priorities.
func (e *Engine) prioritize(ctx context.Context) {
	pending := e.run.TasksInState(models.TaskPending)
	if len(pending) < 2 {
		return
	}

	var resp prioritizationResponse
	err := e.llm.Call(ctx, llmRequest(prompt.TaskPrioritization, "prioritization", nil, map[string]any{
		"Question":        e.run.Question,
		"PendingTasks":    formatPendingTasks(pending),
		"CoverageSummary": e.coverageSummary(),
	}), &resp)
	if err != nil {
		e.logger.Warn("prioritization failed, keeping prior order", "error", err)
		return
	}

	applied := make([]map[string]any, 0, len(resp.Priorities))
	for _, p := range resp.Priorities {
		t := e.run.Task(p.TaskID)
		if t == nil || t.State != models.TaskPending {
			continue
		}
		t.Priority = p.Priority
		t.PriorityReasoning = p.Reasoning
		t.EstimatedValue = p.EstimatedValue
		t.EstimatedRedundancy = p.EstimatedRedundancy
		applied = append(applied, map[string]any{
			"task_id":              p.TaskID,
			"priority":             p.Priority,
			"estimated_value":      p.EstimatedValue,
			"estimated_redundancy": p.EstimatedRedundancy,
		})
	}
	e.emit(nil, audit.ActionPrioritization, map[string]any{"priorities": applied})
}

// nextTask returns the pending task with the lowest priority number, ties
// broken by lower id.
func (e *Engine) nextTask() *models.Task {
	pending := e.run.TasksInState(models.TaskPending)
	if len(pending) == 0 {
		return nil
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].Priority != pending[j].Priority {
			return pending[i].Priority < pending[j].Priority
		}
		return pending[i].ID < pending[j].ID
	})
	return pending[0]
}

// terminationReason returns why scheduling must stop, or "" to continue.
// The queue-empty case is detected at dispatch.
func (e *Engine) terminationReason(ctx context.Context) string {
	if ctx.Err() != nil {
		return "cancelled"
	}
	if e.budget.RunExpired() {
		return "time_budget_exhausted"
	}
	terminal := len(e.run.TasksInState(models.TaskCompleted)) + len(e.run.TasksInState(models.TaskFailed))
	if terminal >= e.cfg.Run.MaxTasks {
		return "max_tasks_reached"
	}
	e.mu.Lock()
	stopped := e.saturationStopped
	e.mu.Unlock()
	if stopped {
		return "saturation"
	}
	return ""
}

func (e *Engine) finish(reason string) {
	e.mu.Lock()
	if e.terminated == "" {
		e.terminated = reason
	}
	e.mu.Unlock()
	e.logger.Info("scheduling stopped", "reason", reason)
}

func (e *Engine) terminatedBecause() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminated
}

// maybeFollowUps generates follow-up tasks for a completed parent when its
// coverage left gaps and budget remains. A parent whose final coverage
// decision is stop-with-no-gaps never spawns follow-ups.
func (e *Engine) maybeFollowUps(ctx context.Context, parent *models.Task) {
	if last := parent.LastCoverageDecision(); last != nil && last.StopWithNoGaps() {
		return
	}
	if len(parent.Metadata.CoverageDecisions) > 0 {
		allSatisfied := true
		for _, d := range parent.Metadata.CoverageDecisions {
			if !d.StopWithNoGaps() {
				allSatisfied = false
				break
			}
		}
		if allSatisfied {
			return
		}
	}
	if e.budget.RunExpired() || e.run.TaskCount() >= e.cfg.Run.MaxTasks {
		return
	}

	remaining := e.cfg.Run.MaxTasks - e.run.TaskCount()
	if ceil := e.cfg.FollowUp.MaxFollowUpsPerTask; ceil != nil {
		slots := *ceil - e.run.FollowUpCount(parent.ID)
		if slots <= 0 {
			return
		}
		if slots < remaining {
			remaining = slots
		}
	}

	var gaps []string
	for _, d := range parent.Metadata.CoverageDecisions {
		gaps = append(gaps, d.GapsIdentified...)
	}
	gapText := "(no explicit gaps recorded)"
	if len(gaps) > 0 {
		gapText = "- " + joinLines(gaps)
	}

	var resp followUpResponse
	err := e.llm.Call(ctx, llmRequest(prompt.FollowUpGeneration, "follow_up_generation", &parent.ID, map[string]any{
		"Question":        e.run.Question,
		"TaskQuery":       parent.Query,
		"TaskSummary":     e.formatTaskSummary(parent),
		"Gaps":            gapText,
		"CoverageSummary": e.coverageSummary(),
		"MaxFollowUps":    remaining,
	}), &resp)
	if err != nil {
		e.logger.Warn("follow-up generation failed", "task_id", parent.ID, "error", err)
		return
	}

	for _, fu := range resp.FollowUps {
		if e.run.TaskCount() >= e.cfg.Run.MaxTasks {
			break
		}
		t := e.run.NewTask(fu.Query, &parent.ID)
		t.Metadata.GapType = fu.GapType
		e.emit(&parent.ID, audit.ActionFollowUpCreated, map[string]any{
			"task_id":   t.ID,
			"query":     fu.Query,
			"rationale": fu.Rationale,
			"gap_type":  fu.GapType,
		})
	}
}

// maybeSaturation runs the periodic saturation check and arms the stop when
// the verdict is confident enough and stopping is allowed.
func (e *Engine) maybeSaturation(ctx context.Context) {
	if !e.cfg.ManagerEnabled() || !e.cfg.SaturationDetection() {
		return
	}
	e.mu.Lock()
	due := e.completedSinceChk >= e.cfg.Manager.SaturationCheckInterval
	if due {
		e.completedSinceChk = 0
	}
	e.mu.Unlock()
	if !due {
		return
	}

	completed := e.run.TasksInState(models.TaskCompleted)
	if len(completed) > recentSummaryWindow {
		completed = completed[len(completed)-recentSummaryWindow:]
	}
	summaries := ""
	for _, t := range completed {
		summaries += e.formatTaskSummary(t)
	}

	var resp saturationResponse
	err := e.llm.Call(ctx, llmRequest(prompt.SaturationDetection, "saturation_assessment", nil, map[string]any{
		"Question":      e.run.Question,
		"TaskSummaries": summaries,
	}), &resp)
	if err != nil {
		e.logger.Warn("saturation check failed, no stop this interval", "error", err)
		return
	}

	verdict := &models.SaturationVerdict{
		Saturated:      *resp.Saturated,
		Confidence:     resp.Confidence,
		Reasoning:      resp.Reasoning,
		Recommendation: resp.Recommendation,
	}
	e.mu.Lock()
	e.saturation = verdict
	e.mu.Unlock()

	e.emit(nil, audit.ActionSaturationAssessment, map[string]any{
		"saturated":      verdict.Saturated,
		"confidence":     verdict.Confidence,
		"recommendation": verdict.Recommendation,
		"reasoning":      verdict.Reasoning,
	})

	if verdict.Saturated &&
		verdict.Confidence >= e.cfg.Manager.SaturationConfidenceThreshold &&
		e.cfg.AllowSaturationStop() {
		e.mu.Lock()
		e.saturationStopped = true
		e.mu.Unlock()
		e.logger.Info("saturation stop armed",
			"confidence", verdict.Confidence, "recommendation", verdict.Recommendation)
	}
}

func joinLines(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += "\n- "
		}
		out += s
	}
	return out
}
