package models

// Coverage decision values.
const (
	CoverageContinue = "continue"
	CoverageStop     = "stop"
)

// CoverageDecision is the LLM's judgment after a hypothesis executes,
// plus the facts block the engine computed for that execution. The facts
// are always engine-derived; the LLM never supplies numeric scores.
type CoverageDecision struct {
	HypothesisID   int            `json:"hypothesis_id"`
	Decision       string         `json:"decision"`
	Assessment     string         `json:"assessment,omitempty"`
	GapsIdentified []string       `json:"gaps_identified,omitempty"`
	Facts          *CoverageFacts `json:"facts"`
}

// StopWithNoGaps reports whether this decision terminates the task loop:
// decision=stop with an empty gap list.
func (d *CoverageDecision) StopWithNoGaps() bool {
	return d.Decision == CoverageStop && len(d.GapsIdentified) == 0
}

// CoverageFacts are the objective numbers for one hypothesis execution,
// computed from result-store snapshots.
type CoverageFacts struct {
	NewResults             int `json:"new_results"`
	DuplicateResults       int `json:"duplicate_results"`
	IncrementalGainPercent int `json:"incremental_gain_percent"`
	NewEntities            int `json:"new_entities"`
}

// Saturation recommendation values.
const (
	SaturationContinue        = "continue"
	SaturationStop            = "stop"
	SaturationContinueLimited = "continue_limited"
)

// SaturationVerdict is the run-level judgment that additional tasks are
// unlikely to yield new information.
type SaturationVerdict struct {
	Saturated      bool   `json:"saturated"`
	Confidence     int    `json:"confidence"`
	Reasoning      string `json:"reasoning,omitempty"`
	Recommendation string `json:"recommendation"`
}
