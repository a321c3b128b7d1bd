package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker"

	"github.com/osinthq/sleuth/pkg/audit"
)

// SourceOptions carries per-source runtime settings resolved from config.
type SourceOptions struct {
	APIKey  string
	Timeout time.Duration
	BaseURL string // override for tests
	Enabled bool
}

// Constructor builds one adapter instance from its options.
type Constructor func(opts SourceOptions) (Integration, error)

// entry is one registered source: static metadata plus the lazy constructor.
type entry struct {
	meta Metadata
	ctor Constructor
}

// Registry owns adapter lifecycle: lazy instantiation with failure
// isolation, per-source circuit breaking, and retried search execution.
type Registry struct {
	mu       sync.Mutex
	entries  map[string]entry
	opts     map[string]SourceOptions
	live     map[string]Integration
	failed   map[string]error
	breakers map[string]*gobreaker.CircuitBreaker

	auditLog *audit.Logger
	logger   *slog.Logger

	rawDir string
	rawSeq int
}

// NewRegistry builds a registry over the given per-source options and
// registers the built-in sources. Sources absent from opts, or present with
// Enabled false, are not served.
func NewRegistry(opts map[string]SourceOptions, auditLog *audit.Logger) *Registry {
	r := &Registry{
		entries:  make(map[string]entry),
		opts:     opts,
		live:     make(map[string]Integration),
		failed:   make(map[string]error),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		auditLog: auditLog,
		logger:   slog.Default().With("component", "integrations"),
	}
	r.Register(braveMetadata, newBrave)
	r.Register(usajobsMetadata, newUSAJobs)
	return r
}

// Register adds a source. Metadata is served without instantiating the
// adapter so prompts can list sources before any key is checked.
func (r *Registry) Register(meta Metadata, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[meta.ID] = entry{meta: meta, ctor: ctor}
}

// ListIDs returns the ids of all enabled sources, sorted.
func (r *Registry) ListIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for id := range r.entries {
		if r.enabledLocked(id) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Describe returns the metadata of all enabled sources, ordered by id.
func (r *Registry) Describe() []Metadata {
	ids := r.ListIDs()
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Metadata, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.entries[id].meta)
	}
	return out
}

// DisplayNames maps lowercased display names and ids to source ids, for
// resolving the source names that hypothesis strategies reference.
func (r *Registry) DisplayNames() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.entries)*2)
	for id, e := range r.entries {
		if !r.enabledLocked(id) {
			continue
		}
		out[strings.ToLower(e.meta.DisplayName)] = id
		out[id] = id
	}
	return out
}

// Get returns the live adapter for id, instantiating it on first use. A
// constructor failure is recorded once and the source stays unavailable for
// the rest of the run.
func (r *Registry) Get(id string) (Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if integ, ok := r.live[id]; ok {
		return integ, nil
	}
	if err, ok := r.failed[id]; ok {
		return nil, err
	}
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, id)
	}
	if !r.enabledLocked(id) {
		err := fmt.Errorf("%w: %q is disabled", ErrUnavailable, id)
		r.failed[id] = err
		return nil, err
	}

	integ, err := e.ctor(r.opts[id])
	if err != nil {
		wrapped := fmt.Errorf("%w: %q: %v", ErrUnavailable, id, err)
		r.failed[id] = wrapped
		r.logger.Warn("integration failed to initialize, continuing without it",
			"source", id, "error", err)
		return nil, wrapped
	}
	r.live[id] = integ
	return integ, nil
}

// Search runs one search against a source: rejection metadata is stripped
// from params, the call goes through the source's circuit breaker, and
// transient failures retry with exponential backoff inside the breaker.
func (r *Registry) Search(ctx context.Context, id string, params map[string]any, limit int, taskID *int) (*QueryResult, error) {
	integ, err := r.Get(id)
	if err != nil {
		return nil, err
	}

	clean, stripped := StripRejectionKeys(params)
	if stripped != nil {
		r.logger.Info("stripped rejection metadata from search params",
			"source", id, "stripped", stripped)
	}

	start := time.Now()
	out, err := r.breaker(id).Execute(func() (interface{}, error) {
		var qr *QueryResult
		backoff := retry.WithMaxRetries(2, retry.NewExponential(300*time.Millisecond))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			res, err := integ.ExecuteSearch(ctx, clean, limit)
			if err != nil {
				if ctx.Err() != nil {
					return err
				}
				return retry.RetryableError(err)
			}
			qr = res
			return nil
		})
		return qr, err
	})
	elapsed := time.Since(start)

	if err != nil {
		payload := map[string]any{
			"source":     id,
			"error":      err.Error(),
			"latency_ms": elapsed.Milliseconds(),
		}
		if stripped != nil {
			payload["stripped_rejection_keys"] = stripped
		}
		r.emit(taskID, audit.ActionIntegrationError, payload)
		return nil, fmt.Errorf("%w: %s: %v", ErrCallFailed, id, err)
	}

	qr := out.(*QueryResult)
	qr.ResponseTime = elapsed
	r.captureRaw(id, qr)
	payload := map[string]any{
		"source":     id,
		"params":     clean,
		"total":      qr.Total,
		"returned":   len(qr.Results),
		"latency_ms": elapsed.Milliseconds(),
	}
	if stripped != nil {
		payload["stripped_rejection_keys"] = stripped
	}
	r.emit(taskID, audit.ActionIntegrationCall, payload)
	return qr, nil
}

// SetRawCapture enables writing each search response as a JSON file under
// dir. Capture failures are logged and never fail the search.
func (r *Registry) SetRawCapture(dir string) {
	r.mu.Lock()
	r.rawDir = dir
	r.mu.Unlock()
}

func (r *Registry) captureRaw(id string, qr *QueryResult) {
	r.mu.Lock()
	dir := r.rawDir
	r.rawSeq++
	seq := r.rawSeq
	r.mu.Unlock()
	if dir == "" {
		return
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.logger.Warn("raw capture dir unavailable", "dir", dir, "error", err)
		return
	}
	data, err := json.MarshalIndent(qr, "", "  ")
	if err != nil {
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("%03d_%s.json", seq, id))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		r.logger.Warn("raw capture write failed", "path", path, "error", err)
	}
}

func (r *Registry) breaker(id string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[id]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    id,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn("integration circuit state changed",
				"source", name, "from", from.String(), "to", to.String())
		},
	})
	r.breakers[id] = cb
	return cb
}

func (r *Registry) enabledLocked(id string) bool {
	opt, ok := r.opts[id]
	return ok && opt.Enabled
}

func (r *Registry) emit(taskID *int, action audit.ActionType, payload any) {
	if r.auditLog != nil {
		r.auditLog.Emit(taskID, action, payload)
	}
}
