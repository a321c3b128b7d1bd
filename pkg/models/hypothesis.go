package models

// Hypothesis is a single investigative sub-question within a task, with an
// associated search strategy. IDs are unique within the owning task.
type Hypothesis struct {
	ID         int            `json:"id"`
	Statement  string         `json:"statement"`
	Strategy   SearchStrategy `json:"strategy"`
	Confidence int            `json:"confidence"`
	Priority   int            `json:"priority"`
	Rationale  string         `json:"rationale,omitempty"`
}

// SearchStrategy names the sources to query (human-readable display names,
// resolved against the registry at execution time), the entity types the
// hypothesis expects to surface, and signal keywords to watch for.
type SearchStrategy struct {
	Sources          []string `json:"sources"`
	ExpectedEntities []string `json:"expected_entities,omitempty"`
	Signals          []string `json:"signals,omitempty"`
}
