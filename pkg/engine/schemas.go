package engine

// Response shapes for every structured LLM call the engine makes. The
// gateway decodes strictly: unknown keys fail the call, so a model that
// tries to attach its own numeric facts or extra fields is rejected at the
// schema layer.

type decompositionResponse struct {
	Tasks []struct {
		Query     string `json:"query" validate:"required"`
		Rationale string `json:"rationale"`
	} `json:"tasks" validate:"required,min=1,dive"`
}

type prioritizationResponse struct {
	Priorities []struct {
		TaskID              int    `json:"task_id" validate:"required"`
		Priority            int    `json:"priority" validate:"min=1,max=10"`
		Reasoning           string `json:"reasoning"`
		EstimatedValue      int    `json:"estimated_value" validate:"min=0,max=100"`
		EstimatedRedundancy int    `json:"estimated_redundancy" validate:"min=0,max=100"`
	} `json:"priorities" validate:"required,dive"`
}

type hypothesesResponse struct {
	// An empty list is a valid answer for an unsearchable task.
	Hypotheses []struct {
		Statement        string   `json:"statement" validate:"required"`
		Sources          []string `json:"sources" validate:"required,min=1"`
		ExpectedEntities []string `json:"expected_entities"`
		Signals          []string `json:"signals"`
		Confidence       int      `json:"confidence" validate:"min=0,max=100"`
		Priority         int      `json:"priority" validate:"min=1"`
		Rationale        string   `json:"rationale"`
	} `json:"hypotheses" validate:"dive"`
}

type queryGenResponse struct {
	Applicable *bool  `json:"applicable" validate:"required"`
	Query      string `json:"query"`
	Reasoning  string `json:"reasoning"`
}

type relevanceResponse struct {
	Decision           string `json:"decision" validate:"required,oneof=ACCEPT REJECT"`
	Reasoning          string `json:"reasoning"`
	RelevantIndices    []int  `json:"relevant_indices"`
	ContinueSearching  bool   `json:"continue_searching"`
	ContinuationReason string `json:"continuation_reason"`
	ReasoningBreakdown struct {
		Strategy             string   `json:"strategy"`
		InterestingDecisions []string `json:"interesting_decisions"`
		Patterns             []string `json:"patterns"`
	} `json:"reasoning_breakdown"`
}

type coverageResponse struct {
	Decision       string   `json:"decision" validate:"required,oneof=continue stop"`
	Assessment     string   `json:"assessment"`
	GapsIdentified []string `json:"gaps_identified"`
}

type saturationResponse struct {
	Saturated      *bool  `json:"saturated" validate:"required"`
	Confidence     int    `json:"confidence" validate:"min=0,max=100"`
	Reasoning      string `json:"reasoning"`
	Recommendation string `json:"recommendation" validate:"required,oneof=continue stop continue_limited"`
}

type followUpResponse struct {
	FollowUps []struct {
		Query     string `json:"query" validate:"required"`
		Rationale string `json:"rationale"`
		GapType   string `json:"gap_type"`
	} `json:"follow_ups" validate:"dive"`
}

type entityResponse struct {
	Entities []string `json:"entities"`
}

type synthesisResponse struct {
	Report string `json:"report" validate:"required"`
}
