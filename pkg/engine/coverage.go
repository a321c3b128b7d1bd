package engine

import (
	"context"

	"github.com/osinthq/sleuth/pkg/audit"
	"github.com/osinthq/sleuth/pkg/models"
	"github.com/osinthq/sleuth/pkg/prompt"
)

// assessCoverage asks the LLM whether the task loop should stop after the
// given hypothesis executed. The facts block is computed by the engine from
// store snapshots and attached here; the LLM supplies only the judgment and
// gap prose. A failed assessment returns nil and the loop continues to its
// hard ceilings.
func (e *Engine) assessCoverage(ctx context.Context, task *models.Task, hyp *models.Hypothesis, facts models.CoverageFacts) *models.CoverageDecision {
	var resp coverageResponse
	err := e.llm.Call(ctx, llmRequest(prompt.CoverageAssessment, "coverage_assessment", &task.ID, map[string]any{
		"Question":        e.run.Question,
		"TaskQuery":       task.Query,
		"Hypothesis":      formatHypothesis(hyp),
		"Facts":           formatFacts(facts),
		"PriorHypotheses": formatPriorHypotheses(task, hyp.ID),
	}), &resp)
	if err != nil {
		e.logger.Warn("coverage assessment failed, continuing to ceilings",
			"task_id", task.ID, "hypothesis_id", hyp.ID, "error", err)
		return nil
	}

	decision := &models.CoverageDecision{
		HypothesisID:   hyp.ID,
		Decision:       resp.Decision,
		Assessment:     resp.Assessment,
		GapsIdentified: resp.GapsIdentified,
		Facts:          &facts,
	}
	task.Metadata.CoverageDecisions = append(task.Metadata.CoverageDecisions, decision)

	e.emit(&task.ID, audit.ActionCoverageAssessment, map[string]any{
		"hypothesis_id":   hyp.ID,
		"decision":        decision.Decision,
		"gaps_identified": decision.GapsIdentified,
		"facts":           facts,
	})
	return decision
}
