// Package llm provides the gateway between the research engine and the
// underlying language models: prompt rendering, schema-validated structured
// calls, per-call deadlines, an ordered fallback chain, and cost accounting
// tagged by call purpose.
package llm

import (
	"context"
	"errors"
)

// Model is a single language model backend. Complete sends one prompt and
// returns the raw text plus token usage. Implementations own their own
// transport; the gateway owns deadlines and fallback.
type Model interface {
	Name() string
	Complete(ctx context.Context, prompt string) (*Completion, error)
}

// Completion is the raw output of one model call.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Failure kinds for gateway calls. Callers branch on these to pick the
// degradation path (skip source, drop hypothesis, continue to ceilings...).
var (
	// ErrTimeout indicates the per-call deadline fired before a response.
	ErrTimeout = errors.New("llm call timed out")

	// ErrUnavailable indicates the model could not be reached or errored.
	ErrUnavailable = errors.New("llm unavailable")

	// ErrSchemaInvalid indicates the response did not satisfy the
	// expected JSON schema.
	ErrSchemaInvalid = errors.New("llm response failed schema validation")
)

// Request addresses one structured call: the prompt template to render,
// its variables, and a purpose tag for cost accounting and audit.
type Request struct {
	Template string
	Vars     map[string]any
	Purpose  string
	TaskID   *int
}

// Caller is the gateway contract consumed by the engine. out must be a
// pointer to the expected response struct; the gateway decodes strictly
// into it and validates field constraints.
type Caller interface {
	Call(ctx context.Context, req Request, out any) error
}
