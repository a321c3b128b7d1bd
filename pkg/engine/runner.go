package engine

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/osinthq/sleuth/pkg/audit"
	"github.com/osinthq/sleuth/pkg/config"
	"github.com/osinthq/sleuth/pkg/models"
	"github.com/osinthq/sleuth/pkg/prompt"
)

// hypothesisParallelism bounds concurrent hypothesis execution in the
// non-coverage mode. The coverage loop is strictly sequential.
const hypothesisParallelism = 3

type taskOutcome int

const (
	outcomeCompleted taskOutcome = iota
	outcomeRequeued
	outcomeFailed
)

// runTask executes one task: hypothesis generation, the execution loop (or
// direct search when hypotheses are off), entity extraction, and the retry
// decision.
func (e *Engine) runTask(ctx context.Context, task *models.Task) taskOutcome {
	if err := task.Begin(); err != nil {
		e.logger.Error("task cannot start", "task_id", task.ID, "error", err)
		return outcomeFailed
	}
	e.emit(&task.ID, audit.ActionTaskStart, map[string]any{
		"query":     task.Query,
		"parent_id": task.ParentID,
		"retry":     task.RetryCount,
		"priority":  task.Priority,
	})

	switch e.cfg.Hypothesis.Mode {
	case config.HypothesesOff:
		e.runDirectSearch(ctx, task)
	default:
		e.runHypothesisLoop(ctx, task)
	}

	results := e.store.ResultsForTask(task.ID)
	task.Metadata.ResultsAccumulated = len(results)
	if len(results) > 0 {
		e.extractEntities(ctx, task, results)
	}

	if e.shouldRetry(ctx, task) {
		if err := task.Requeue(e.cfg.Run.MaxRetriesPerTask); err == nil {
			e.logger.Info("task below result threshold, requeued",
				"task_id", task.ID, "results", len(results), "retry", task.RetryCount)
			return outcomeRequeued
		}
	}

	if err := task.Complete(); err != nil {
		e.logger.Error("task cannot complete", "task_id", task.ID, "error", err)
		_ = task.Fail()
		e.emit(&task.ID, audit.ActionTaskFailed, map[string]any{"error": err.Error()})
		return outcomeFailed
	}
	e.emit(&task.ID, audit.ActionTaskComplete, map[string]any{
		"results":              task.Metadata.ResultsAccumulated,
		"entities":             len(task.Entities),
		"hypotheses_executed":  task.Metadata.HypothesesExecuted,
		"coverage_assessments": len(task.Metadata.CoverageDecisions),
	})
	return outcomeCompleted
}

// runHypothesisLoop runs the hypothesis phase. A failed generation call or
// an empty hypothesis list short-circuits the task with whatever it has;
// the retry policy decides whether the task runs again.
func (e *Engine) runHypothesisLoop(ctx context.Context, task *models.Task) {
	hyps := e.generateHypotheses(ctx, task)
	if len(hyps) == 0 {
		e.logger.Info("no usable hypotheses, task short-circuits", "task_id", task.ID)
		return
	}
	task.Hypotheses = hyps

	if e.cfg.Hypothesis.Mode == config.HypothesesPlanning {
		return
	}

	if e.cfg.CoverageMode() {
		e.executeSequentialWithCoverage(ctx, task)
	} else {
		e.executeParallel(ctx, task)
	}
}

// generateHypotheses calls the LLM and returns hypotheses ordered by their
// stated priority, capped at the configured ceiling, with ids assigned in
// execution order starting at 1.
func (e *Engine) generateHypotheses(ctx context.Context, task *models.Task) []*models.Hypothesis {
	var resp hypothesesResponse
	err := e.llm.Call(ctx, llmRequest(prompt.HypothesisGeneration, "hypothesis_generation", &task.ID, map[string]any{
		"Question":      e.run.Question,
		"TaskQuery":     task.Query,
		"Sources":       e.sourceCatalog(),
		"MaxHypotheses": e.cfg.Hypothesis.MaxHypothesesPerTask,
	}), &resp)
	if err != nil {
		e.logger.Warn("hypothesis generation failed", "task_id", task.ID, "error", err)
		return nil
	}

	sort.SliceStable(resp.Hypotheses, func(i, j int) bool {
		return resp.Hypotheses[i].Priority < resp.Hypotheses[j].Priority
	})
	if len(resp.Hypotheses) > e.cfg.Hypothesis.MaxHypothesesPerTask {
		resp.Hypotheses = resp.Hypotheses[:e.cfg.Hypothesis.MaxHypothesesPerTask]
	}

	hyps := make([]*models.Hypothesis, 0, len(resp.Hypotheses))
	statements := make([]string, 0, len(resp.Hypotheses))
	for i, h := range resp.Hypotheses {
		hyps = append(hyps, &models.Hypothesis{
			ID:        i + 1,
			Statement: h.Statement,
			Strategy: models.SearchStrategy{
				Sources:          h.Sources,
				ExpectedEntities: h.ExpectedEntities,
				Signals:          h.Signals,
			},
			Confidence: h.Confidence,
			Priority:   h.Priority,
			Rationale:  h.Rationale,
		})
		statements = append(statements, h.Statement)
	}

	e.emit(&task.ID, audit.ActionHypothesesGenerated, map[string]any{
		"count":      len(hyps),
		"statements": statements,
	})
	return hyps
}

// executeSequentialWithCoverage runs hypotheses one at a time. Each
// hypothesis's results are fully merged before the next hypothesis begins.
// The first executed hypothesis establishes the baseline and is never
// assessed; from the second onward the assessor runs, and only a stop with
// an empty gap list ends the loop. Otherwise the loop runs to its ceilings.
func (e *Engine) executeSequentialWithCoverage(ctx context.Context, task *models.Task) {
	executed := 0
	for _, hyp := range task.Hypotheses {
		if ctx.Err() != nil {
			return
		}
		if e.budget.RunExpired() || e.budget.TaskExpired(task.StartedAt) {
			e.logger.Info("deadline reached, abandoning remaining hypotheses",
				"task_id", task.ID, "next_hypothesis", hyp.ID)
			return
		}

		snap := e.store.Take()
		if err := e.executeHypothesis(ctx, task, hyp); err != nil {
			continue
		}
		executed++
		facts := e.store.Delta(snap)

		if executed == 1 {
			continue
		}
		if d := e.assessCoverage(ctx, task, hyp, facts); d != nil && d.StopWithNoGaps() {
			return
		}
	}
}

// executeParallel runs hypotheses concurrently. Used only when the coverage
// loop is disabled; all shared state goes through the store's mutex.
func (e *Engine) executeParallel(ctx context.Context, task *models.Task) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(hypothesisParallelism)
	for _, hyp := range task.Hypotheses {
		g.Go(func() error {
			if e.budget.RunExpired() || e.budget.TaskExpired(task.StartedAt) {
				return nil
			}
			_ = e.executeHypothesis(gctx, task, hyp)
			return nil
		})
	}
	_ = g.Wait()
}

// extractEntities pulls named entities from the task's accumulated results
// into the task and run entity sets. Failures are tolerated.
func (e *Engine) extractEntities(ctx context.Context, task *models.Task, results []*models.Result) {
	var resp entityResponse
	err := e.llm.Call(ctx, llmRequest(prompt.EntityExtraction, "entity_extraction", &task.ID, map[string]any{
		"Question":  e.run.Question,
		"TaskQuery": task.Query,
		"Results":   formatResultsForExtraction(results),
	}), &resp)
	if err != nil {
		e.logger.Warn("entity extraction failed", "task_id", task.ID, "error", err)
		return
	}

	added := task.AddEntities(resp.Entities)
	newToRun := e.store.AddEntities(resp.Entities)
	e.emit(&task.ID, audit.ActionEntityExtraction, map[string]any{
		"extracted":   len(resp.Entities),
		"new_to_task": added,
		"new_to_run":  newToRun,
	})
}

// shouldRetry applies the retry policy: below the result threshold, retries
// remaining, and budget left to spend them.
func (e *Engine) shouldRetry(ctx context.Context, task *models.Task) bool {
	if ctx.Err() != nil || e.budget.RunExpired() {
		return false
	}
	return task.Metadata.ResultsAccumulated < e.cfg.Run.MinResultsPerTask &&
		task.RetryCount < e.cfg.Run.MaxRetriesPerTask
}
