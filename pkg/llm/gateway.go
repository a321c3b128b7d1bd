package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/osinthq/sleuth/pkg/audit"
	"github.com/osinthq/sleuth/pkg/prompt"
)

// Gateway implements Caller over an ordered model chain. The first model is
// primary; the rest are fallbacks tried in order on transient failure
// (timeout, unavailable, schema mismatch). A cancelled context returns
// immediately without trying further models.
type Gateway struct {
	renderer *prompt.Renderer
	models   []Model
	timeout  time.Duration
	validate *validator.Validate
	costs    *CostTracker
	audit    *audit.Logger
}

// NewGateway builds a gateway. models must be non-empty; audit may be nil
// (events skipped, used by some tests).
func NewGateway(renderer *prompt.Renderer, models []Model, timeout time.Duration, costs *CostTracker, auditLog *audit.Logger) *Gateway {
	return &Gateway{
		renderer: renderer,
		models:   models,
		timeout:  timeout,
		validate: validator.New(),
		costs:    costs,
		audit:    auditLog,
	}
}

// Call renders the template, walks the model chain, and decodes the first
// schema-valid response into out. Renderer failures are not retried; they
// fail the call with the renderer's error kind.
func (g *Gateway) Call(ctx context.Context, req Request, out any) error {
	text, err := g.renderer.Render(req.Template, req.Vars)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt, model := range g.models {
		if ctx.Err() != nil {
			return classify(ctx.Err())
		}

		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		start := time.Now()
		comp, callErr := model.Complete(callCtx, text)
		cancel()
		latency := time.Since(start)

		if callErr == nil {
			callErr = g.decode(comp.Text, out)
		}

		g.costs.record(req.Purpose, comp, latency, callErr != nil)
		g.emitCall(req, model, comp, latency, attempt, callErr)

		if callErr == nil {
			return nil
		}

		lastErr = classify(callErr)
		if errors.Is(lastErr, context.Canceled) {
			// Cooperative cancellation: do not walk the fallback chain.
			return lastErr
		}
		slog.Warn("LLM call failed, trying next model",
			"purpose", req.Purpose,
			"model", model.Name(),
			"attempt", attempt+1,
			"error", callErr)
	}
	return lastErr
}

// decode extracts the JSON object from the model text, strictly decodes it
// into out, and validates struct constraints. Any failure maps to
// ErrSchemaInvalid.
func (g *Gateway) decode(text string, out any) error {
	raw := extractJSON(text)
	if raw == "" {
		return fmt.Errorf("%w: no JSON object in response", ErrSchemaInvalid)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}
	if err := g.validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}
	return nil
}

func (g *Gateway) emitCall(req Request, model Model, comp *Completion, latency time.Duration, attempt int, callErr error) {
	if g.audit == nil {
		return
	}
	payload := map[string]any{
		"interaction_id": uuid.New().String(),
		"purpose":        req.Purpose,
		"template":       req.Template,
		"model":          model.Name(),
		"attempt":        attempt + 1,
		"latency_ms":     latency.Milliseconds(),
		"success":        callErr == nil,
	}
	if comp != nil {
		payload["input_tokens"] = comp.InputTokens
		payload["output_tokens"] = comp.OutputTokens
	}
	if callErr != nil {
		payload["error"] = callErr.Error()
	}
	g.audit.Emit(req.TaskID, audit.ActionLLMCall, payload)
}

// classify maps transport and context errors onto the gateway's failure
// kinds. Errors already carrying a kind pass through.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return context.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrSchemaInvalid), errors.Is(err, ErrUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

// extractJSON returns the outermost JSON object in text, tolerating code
// fences and prose around it. Empty string when no object is present.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx >= 0 {
			text = text[idx+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
