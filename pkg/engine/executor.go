package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/osinthq/sleuth/pkg/audit"
	"github.com/osinthq/sleuth/pkg/integration"
	"github.com/osinthq/sleuth/pkg/models"
	"github.com/osinthq/sleuth/pkg/prompt"
)

// resultsPerSearch bounds how many records one search call may return.
const resultsPerSearch = 20

// sourcePlan is one applicable per-source query, ready to execute.
type sourcePlan struct {
	sourceID string
	params   map[string]any
}

// executeHypothesis runs one hypothesis end to end: per-source query
// generation, concurrent searches under the fan-out limit, relevance
// filtering over the frozen merged list, and accumulation into the store.
//
// A filtering failure discards the hypothesis (nothing accumulated); the
// returned error lets the runner record the failure and move on.
func (e *Engine) executeHypothesis(ctx context.Context, task *models.Task, hyp *models.Hypothesis) error {
	ids, unresolved := e.resolveSources(hyp.Strategy.Sources)
	for _, name := range unresolved {
		e.logger.Warn("hypothesis names unknown source, skipping it",
			"task_id", task.ID, "hypothesis_id", hyp.ID, "source", name)
	}
	if len(ids) == 0 {
		e.emit(&task.ID, audit.ActionHypothesisFailed, map[string]any{
			"hypothesis_id": hyp.ID,
			"error":         "no resolvable sources",
			"unresolved":    unresolved,
		})
		return fmt.Errorf("%w: hypothesis %d", ErrNoResolvableSources, hyp.ID)
	}

	plans := e.generateQueries(ctx, task, hyp, ids)
	task.Metadata.HypothesesExecuted++

	merged := e.fanOutSearches(ctx, task, plans)
	if len(merged) == 0 {
		e.emit(&task.ID, audit.ActionHypothesisExecuted, map[string]any{
			"hypothesis_id":    hyp.ID,
			"sources_searched": len(plans),
			"raw_results":      0,
			"accepted":         0,
		})
		return nil
	}

	accepted, newCount, dupCount, err := e.filterAndAccumulate(ctx, task, hyp, merged)
	if err != nil {
		e.emit(&task.ID, audit.ActionHypothesisFailed, map[string]any{
			"hypothesis_id": hyp.ID,
			"error":         err.Error(),
			"raw_results":   len(merged),
		})
		return err
	}

	e.emit(&task.ID, audit.ActionHypothesisExecuted, map[string]any{
		"hypothesis_id":    hyp.ID,
		"sources_searched": len(plans),
		"raw_results":      len(merged),
		"accepted":         accepted,
		"new":              newCount,
		"duplicates":       dupCount,
	})
	return nil
}

// generateQueries asks the LLM for one source-specific query per resolved
// source, sequentially. A failed or not-applicable generation skips that
// source only.
func (e *Engine) generateQueries(ctx context.Context, task *models.Task, hyp *models.Hypothesis, ids []string) []sourcePlan {
	var plans []sourcePlan
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		var resp queryGenResponse
		err := e.llm.Call(ctx, llmRequest(prompt.HypothesisQueryGeneration, "hypothesis_query_generation", &task.ID, map[string]any{
			"Question":         e.run.Question,
			"TaskQuery":        task.Query,
			"Hypothesis":       formatHypothesis(hyp),
			"Signals":          strings.Join(hyp.Strategy.Signals, ", "),
			"ExpectedEntities": strings.Join(hyp.Strategy.ExpectedEntities, ", "),
			"Source":           id,
		}), &resp)
		if err != nil {
			e.logger.Warn("query generation failed, skipping source",
				"task_id", task.ID, "hypothesis_id", hyp.ID, "source", id, "error", err)
			continue
		}

		applicable := resp.Applicable != nil && *resp.Applicable && resp.Query != ""
		e.emit(&task.ID, audit.ActionHypothesisQueryGeneration, map[string]any{
			"hypothesis_id": hyp.ID,
			"source":        id,
			"applicable":    applicable,
			"query":         resp.Query,
			"reasoning":     resp.Reasoning,
		})
		if !applicable {
			continue
		}
		plans = append(plans, sourcePlan{sourceID: id, params: map[string]any{"query": resp.Query}})
	}
	return plans
}

// fanOutSearches executes the plans concurrently under the configured
// fan-out limit and returns the merged list. Merge order across sources is
// not guaranteed; the caller freezes the list before filtering. Failed
// searches are already recorded by the registry and do not fail the
// hypothesis.
func (e *Engine) fanOutSearches(ctx context.Context, task *models.Task, plans []sourcePlan) []models.Result {
	var (
		mu     sync.Mutex
		merged []models.Result
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Hypothesis.MaxSourcesFanout)
	for _, plan := range plans {
		g.Go(func() error {
			qr, err := e.registry.Search(gctx, plan.sourceID, plan.params, resultsPerSearch, &task.ID)
			if err != nil {
				return nil
			}
			mu.Lock()
			merged = append(merged, qr.Results...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return merged
}

// filterAndAccumulate runs the relevance filter over the frozen candidate
// list and stores the accepted records with attribution.
func (e *Engine) filterAndAccumulate(ctx context.Context, task *models.Task, hyp *models.Hypothesis, merged []models.Result) (accepted, newCount, dupCount int, err error) {
	var resp relevanceResponse
	err = e.llm.Call(ctx, llmRequest(prompt.RelevanceEvaluation, "relevance_scoring", &task.ID, map[string]any{
		"Question":   e.run.Question,
		"Hypothesis": formatHypothesis(hyp),
		"Results":    formatCandidates(merged),
	}), &resp)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("relevance filtering: %w", err)
	}

	e.emit(&task.ID, audit.ActionRelevanceScoring, map[string]any{
		"hypothesis_id":       hyp.ID,
		"decision":            resp.Decision,
		"candidates":          len(merged),
		"relevant_indices":    resp.RelevantIndices,
		"continue_searching":  resp.ContinueSearching,
		"reasoning":           resp.Reasoning,
		"reasoning_breakdown": resp.ReasoningBreakdown,
	})

	if resp.Decision == "REJECT" {
		return 0, 0, 0, nil
	}
	for _, idx := range resp.RelevantIndices {
		if idx < 0 || idx >= len(merged) {
			e.logger.Warn("relevance filter returned out-of-range index",
				"task_id", task.ID, "hypothesis_id", hyp.ID, "index", idx, "candidates", len(merged))
			continue
		}
		accepted++
		r := merged[idx]
		if e.store.Add(&r, hyp.ID, task.ID) {
			newCount++
		} else {
			dupCount++
			e.emit(&task.ID, audit.ActionDedup, map[string]any{
				"hypothesis_id": hyp.ID,
				"identity":      r.IdentityKey(),
			})
		}
	}
	return accepted, newCount, dupCount, nil
}

// runDirectSearch is the hypothesis-free path: each relevant enabled source
// plans its own query heuristically and the results accumulate unfiltered,
// attributed to the pseudo-hypothesis id 0.
func (e *Engine) runDirectSearch(ctx context.Context, task *models.Task) {
	var plans []sourcePlan
	for _, id := range e.registry.ListIDs() {
		integ, err := e.registry.Get(id)
		if err != nil {
			continue
		}
		if !integ.IsRelevant(task.Query) {
			continue
		}
		plan, err := integ.GenerateQuery(ctx, integration.QueryRequest{
			Question:  e.run.Question,
			TaskQuery: task.Query,
		})
		if err != nil || !plan.Applicable {
			continue
		}
		plans = append(plans, sourcePlan{sourceID: id, params: plan.Params})
	}

	merged := e.fanOutSearches(ctx, task, plans)
	for i := range merged {
		if !e.store.Add(&merged[i], 0, task.ID) {
			e.emit(&task.ID, audit.ActionDedup, map[string]any{
				"identity": merged[i].IdentityKey(),
			})
		}
	}
}
