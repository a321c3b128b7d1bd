package engine

import (
	"fmt"
	"strings"

	"github.com/osinthq/sleuth/pkg/models"
)

// Prompt variable formatting. Everything the LLM sees about run state goes
// through these renderers so the prompts stay stable as the structs evolve.

const snippetLimit = 300

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func formatHypothesis(h *models.Hypothesis) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%d] %s", h.ID, h.Statement)
	if h.Rationale != "" {
		fmt.Fprintf(&sb, "\nRationale: %s", h.Rationale)
	}
	fmt.Fprintf(&sb, "\nConfidence: %d", h.Confidence)
	return sb.String()
}

func formatFacts(f models.CoverageFacts) string {
	return fmt.Sprintf(
		"new_results: %d\nduplicate_results: %d\nincremental_gain_percent: %d\nnew_entities: %d",
		f.NewResults, f.DuplicateResults, f.IncrementalGainPercent, f.NewEntities)
}

// formatPriorHypotheses lists earlier hypotheses of the task with their
// coverage decisions, so the assessor sees the loop history.
func formatPriorHypotheses(task *models.Task, before int) string {
	var sb strings.Builder
	for _, h := range task.Hypotheses {
		if h.ID >= before {
			continue
		}
		fmt.Fprintf(&sb, "[%d] %s", h.ID, h.Statement)
		for _, d := range task.Metadata.CoverageDecisions {
			if d.HypothesisID == h.ID {
				fmt.Fprintf(&sb, " (decision: %s", d.Decision)
				if d.Facts != nil {
					fmt.Fprintf(&sb, ", new: %d, gain: %d%%", d.Facts.NewResults, d.Facts.IncrementalGainPercent)
				}
				sb.WriteString(")")
				break
			}
		}
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		return "(none)"
	}
	return sb.String()
}

// formatCandidates renders the frozen merged result list with 0-based
// indices for the relevance filter.
func formatCandidates(results []models.Result) string {
	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "[%d] %s", i, r.Title)
		if r.Source != "" {
			fmt.Fprintf(&sb, " | source: %s", r.Source)
		}
		if r.Date != "" {
			fmt.Fprintf(&sb, " | date: %s", r.Date)
		}
		if r.URL != "" {
			fmt.Fprintf(&sb, "\n    %s", r.URL)
		}
		if r.Description != "" {
			fmt.Fprintf(&sb, "\n    %s", truncate(r.Description, snippetLimit))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatResultsForExtraction(results []*models.Result) string {
	var sb strings.Builder
	for _, r := range results {
		fmt.Fprintf(&sb, "- %s", r.Title)
		if r.Source != "" {
			fmt.Fprintf(&sb, " (%s)", r.Source)
		}
		if r.Description != "" {
			fmt.Fprintf(&sb, ": %s", truncate(r.Description, snippetLimit))
		}
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		return "(no results)"
	}
	return sb.String()
}

func formatPendingTasks(tasks []*models.Task) string {
	var sb strings.Builder
	for _, t := range tasks {
		fmt.Fprintf(&sb, "- task_id %d: %s", t.ID, t.Query)
		if t.ParentID != nil {
			fmt.Fprintf(&sb, " (follow-up of task %d", *t.ParentID)
			if t.Metadata.GapType != "" {
				fmt.Fprintf(&sb, ", gap: %s", t.Metadata.GapType)
			}
			sb.WriteString(")")
		}
		if t.RetryCount > 0 {
			fmt.Fprintf(&sb, " (retry %d)", t.RetryCount)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// formatTaskSummary is the compact task digest used by prioritization,
// saturation, follow-up, and synthesis prompts.
func (e *Engine) formatTaskSummary(t *models.Task) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "task %d [%s]: %s\n", t.ID, t.State, t.Query)
	fmt.Fprintf(&sb, "  hypotheses executed: %d, results: %d, entities: %d\n",
		t.Metadata.HypothesesExecuted, t.Metadata.ResultsAccumulated, len(t.Entities))
	for _, d := range t.Metadata.CoverageDecisions {
		fmt.Fprintf(&sb, "  coverage [hyp %d]: %s", d.HypothesisID, d.Decision)
		if d.Facts != nil {
			fmt.Fprintf(&sb, " (new: %d, dup: %d, gain: %d%%)",
				d.Facts.NewResults, d.Facts.DuplicateResults, d.Facts.IncrementalGainPercent)
		}
		if len(d.GapsIdentified) > 0 {
			fmt.Fprintf(&sb, " gaps: %s", strings.Join(d.GapsIdentified, "; "))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// coverageSummary aggregates gaps and highlights across completed tasks for
// run-level prompts.
func (e *Engine) coverageSummary() string {
	var sb strings.Builder
	for _, t := range e.run.Tasks() {
		if t.State != models.TaskCompleted {
			continue
		}
		fmt.Fprintf(&sb, "task %d (%s): %d results", t.ID, truncate(t.Query, 100), t.Metadata.ResultsAccumulated)
		var gaps []string
		for _, d := range t.Metadata.CoverageDecisions {
			gaps = append(gaps, d.GapsIdentified...)
		}
		if len(gaps) > 0 {
			fmt.Fprintf(&sb, ", open gaps: %s", strings.Join(gaps, "; "))
		}
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		return "(no completed tasks yet)"
	}
	return sb.String()
}
