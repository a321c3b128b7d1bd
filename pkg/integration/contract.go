// Package integration defines the uniform data-source adapter contract and
// the registry that serves adapters to the engine. Adapters are plug-ins:
// the core never reaches into adapter internals, and one adapter failing to
// load never prevents the registry from serving the others.
package integration

import (
	"context"
	"errors"
	"time"

	"github.com/osinthq/sleuth/pkg/models"
)

var (
	// ErrUnavailable indicates an adapter could not be instantiated
	// (missing key, constructor failure). The source is removed from the
	// live registry for the run; never fatal.
	ErrUnavailable = errors.New("integration unavailable")

	// ErrUnknownSource indicates an id with no registered constructor.
	ErrUnknownSource = errors.New("unknown integration id")

	// ErrCallFailed indicates executeSearch errored, timed out, or
	// returned malformed results. Recorded per source; the hypothesis
	// continues with other sources.
	ErrCallFailed = errors.New("integration call failed")
)

// Metadata describes a data source.
type Metadata struct {
	ID             string `json:"id"`
	DisplayName    string `json:"display_name"`
	Category       string `json:"category"`
	RequiresAPIKey bool   `json:"requires_api_key"`
	CostHint       string `json:"cost_hint,omitempty"`
	LatencyHint    string `json:"latency_hint,omitempty"`
}

// QueryRequest carries the research context into query generation.
type QueryRequest struct {
	Question   string
	TaskQuery  string
	Hypothesis *models.Hypothesis
}

// QueryPlan is an adapter's source-specific search plan. Applicable false
// means the source declines this request; Params and Reasoning explain why.
type QueryPlan struct {
	Applicable bool
	Params     map[string]any
	Reasoning  string
}

// QueryResult is the outcome of one executeSearch call.
type QueryResult struct {
	Success      bool            `json:"success"`
	Total        int             `json:"total"`
	Results      []models.Result `json:"results"`
	Err          string          `json:"error,omitempty"`
	ResponseTime time.Duration   `json:"response_time"`
}

// Integration is the adapter contract. IsRelevant is a fast non-LLM
// heuristic and only advisory. ExecuteSearch performs the external call
// under its own timeout and returns results in source order.
type Integration interface {
	Metadata() Metadata
	IsRelevant(question string) bool
	GenerateQuery(ctx context.Context, req QueryRequest) (*QueryPlan, error)
	ExecuteSearch(ctx context.Context, params map[string]any, limit int) (*QueryResult, error)
}

// Rejection metadata keys that query generation may leave in params. The
// core strips these before executeSearch and records the reasoning in the
// audit log.
var rejectionKeys = []string{"relevant", "rejection_reason", "suggested_reformulation"}

// StripRejectionKeys removes wrapper rejection metadata from params,
// returning the cleaned map and whatever was stripped.
func StripRejectionKeys(params map[string]any) (map[string]any, map[string]any) {
	var stripped map[string]any
	clean := make(map[string]any, len(params))
	for k, v := range params {
		clean[k] = v
	}
	for _, k := range rejectionKeys {
		if v, ok := clean[k]; ok {
			if stripped == nil {
				stripped = make(map[string]any)
			}
			stripped[k] = v
			delete(clean, k)
		}
	}
	return clean, stripped
}
