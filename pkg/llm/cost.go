package llm

import (
	"sort"
	"sync"
	"time"
)

// PurposeCost aggregates usage for one purpose tag.
type PurposeCost struct {
	Calls        int   `json:"calls"`
	Failures     int   `json:"failures"`
	InputTokens  int   `json:"input_tokens"`
	OutputTokens int   `json:"output_tokens"`
	LatencyMS    int64 `json:"latency_ms"`
}

// CostTracker accumulates per-purpose token usage and latency under a
// mutex. It is shared by all gateway calls in a run.
type CostTracker struct {
	mu        sync.Mutex
	byPurpose map[string]*PurposeCost
}

// NewCostTracker creates an empty tracker.
func NewCostTracker() *CostTracker {
	return &CostTracker{byPurpose: make(map[string]*PurposeCost)}
}

func (c *CostTracker) record(purpose string, comp *Completion, latency time.Duration, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pc, ok := c.byPurpose[purpose]
	if !ok {
		pc = &PurposeCost{}
		c.byPurpose[purpose] = pc
	}
	pc.Calls++
	if failed {
		pc.Failures++
	}
	if comp != nil {
		pc.InputTokens += comp.InputTokens
		pc.OutputTokens += comp.OutputTokens
	}
	pc.LatencyMS += latency.Milliseconds()
}

// Snapshot returns a copy of the accumulated costs keyed by purpose.
func (c *CostTracker) Snapshot() map[string]PurposeCost {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]PurposeCost, len(c.byPurpose))
	for purpose, pc := range c.byPurpose {
		out[purpose] = *pc
	}
	return out
}

// Purposes returns the recorded purpose tags in sorted order.
func (c *CostTracker) Purposes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	tags := make([]string, 0, len(c.byPurpose))
	for purpose := range c.byPurpose {
		tags = append(tags, purpose)
	}
	sort.Strings(tags)
	return tags
}
