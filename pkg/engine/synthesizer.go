package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/osinthq/sleuth/pkg/llm"
	"github.com/osinthq/sleuth/pkg/models"
	"github.com/osinthq/sleuth/pkg/prompt"
)

// resultSampleSize bounds how many result snippets feed the synthesis
// prompt.
const resultSampleSize = 40

// RunMetadata is the shape of metadata.json.
type RunMetadata struct {
	RunID             string    `json:"run_id"`
	Question          string    `json:"question"`
	StartedAt         time.Time `json:"started_at"`
	CompletedAt       time.Time `json:"completed_at"`
	DurationSeconds   int       `json:"duration_seconds"`
	TerminationReason string    `json:"termination_reason"`

	Config any `json:"config"`

	TasksCreated     int     `json:"tasks_created"`
	TasksCompleted   int     `json:"tasks_completed"`
	TasksFailed      int     `json:"tasks_failed"`
	ResultsCollected int     `json:"results_collected"`
	EntitiesFound    int     `json:"entities_found"`
	DedupRate        float64 `json:"dedup_rate"`

	TaskExecutionOrder      []int                                 `json:"task_execution_order"`
	CoverageDecisionsByTask map[string][]*models.CoverageDecision `json:"coverage_decisions_by_task"`
	Saturation              *models.SaturationVerdict             `json:"saturation,omitempty"`
	Costs                   map[string]llm.PurposeCost            `json:"costs,omitempty"`
}

// synthesize writes the run artifacts: report.md, results.json, and
// metadata.json. A failed synthesis call produces a report with a
// structured error block; only artifact I/O failures surface as errors.
func (e *Engine) synthesize(ctx context.Context) error {
	report := e.buildReport(ctx)

	if err := os.MkdirAll(e.run.OutputDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(e.run.OutputDir, "report.md"), []byte(report), 0o644); err != nil {
		return fmt.Errorf("writing report.md: %w", err)
	}
	if err := e.writeJSON("results.json", e.store.Results()); err != nil {
		return err
	}
	return e.writeJSON("metadata.json", e.buildMetadata())
}

// buildReport calls the synthesis prompt over the accumulated material.
func (e *Engine) buildReport(ctx context.Context) string {
	summaries := ""
	for _, t := range e.run.Tasks() {
		if t.Terminal() {
			summaries += e.formatTaskSummary(t)
		}
	}
	sample := e.store.Results()
	if len(sample) > resultSampleSize {
		sample = sample[:resultSampleSize]
	}

	var resp synthesisResponse
	// Synthesis is the one call that must produce output even after the
	// run context is cancelled; give it its own grace window.
	sctx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(context.Background(), e.cfg.LLMTimeout())
		defer cancel()
	}
	err := e.llm.Call(sctx, llmRequest(prompt.ReportSynthesis, "synthesis", nil, map[string]any{
		"Question":      e.run.Question,
		"TaskSummaries": summaries,
		"Entities":      joinLines(e.store.Entities()),
		"ResultSample":  formatResultsForExtraction(sample),
	}), &resp)
	if err != nil {
		e.logger.Error("report synthesis failed", "error", err)
		return e.errorReport(err)
	}
	return resp.Report
}

// errorReport is emitted when synthesis fails: the run still exits cleanly
// with its collected material and a structured error section.
func (e *Engine) errorReport(cause error) string {
	return fmt.Sprintf(`# Research Report: %s

## Synthesis Error

The final synthesis call failed; the collected material is intact in
results.json and execution_log.jsonl.

`+"```json\n"+`{"error": "synthesis_failed", "detail": %q, "results_collected": %d, "tasks_completed": %d}`+"\n```\n",
		e.run.Question, cause.Error(), e.store.Count(),
		len(e.run.TasksInState(models.TaskCompleted)))
}

func (e *Engine) buildMetadata() *RunMetadata {
	snap := e.store.Take()
	dedupRate := 0.0
	if snap.Adds > 0 {
		dedupRate = float64(snap.Adds-snap.Results) / float64(snap.Adds)
	}

	byTask := make(map[string][]*models.CoverageDecision)
	for _, t := range e.run.Tasks() {
		if len(t.Metadata.CoverageDecisions) > 0 {
			byTask[strconv.Itoa(t.ID)] = t.Metadata.CoverageDecisions
		}
	}

	var costs map[string]llm.PurposeCost
	if e.costs != nil {
		costs = e.costs.Snapshot()
	}

	e.mu.Lock()
	saturation := e.saturation
	e.mu.Unlock()

	return &RunMetadata{
		RunID:             e.run.ID,
		Question:          e.run.Question,
		StartedAt:         e.run.StartedAt,
		CompletedAt:       time.Now().UTC(),
		DurationSeconds:   int(e.budget.Elapsed().Seconds()),
		TerminationReason: e.terminatedBecause(),
		Config:            e.cfg,
		TasksCreated:      e.run.TaskCount(),
		TasksCompleted:    len(e.run.TasksInState(models.TaskCompleted)),
		TasksFailed:       len(e.run.TasksInState(models.TaskFailed)),
		ResultsCollected:  snap.Results,
		EntitiesFound:     snap.Entities,
		DedupRate:         dedupRate,

		TaskExecutionOrder:      e.ExecutionOrder(),
		CoverageDecisionsByTask: byTask,
		Saturation:              saturation,
		Costs:                   costs,
	}
}

func (e *Engine) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(e.run.OutputDir, name), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}
