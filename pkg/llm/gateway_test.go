package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osinthq/sleuth/pkg/prompt"
)

// stubModel returns scripted completions in order. A negative delay entry
// blocks until the context is cancelled.
type stubModel struct {
	name    string
	replies []stubReply
	calls   int
}

type stubReply struct {
	text  string
	err   error
	delay time.Duration
	block bool
}

func (m *stubModel) Name() string { return m.name }

func (m *stubModel) Complete(ctx context.Context, _ string) (*Completion, error) {
	if m.calls >= len(m.replies) {
		return nil, errors.New("stub exhausted")
	}
	r := m.replies[m.calls]
	m.calls++
	if r.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return &Completion{Text: r.text, InputTokens: 10, OutputTokens: 5}, nil
}

type decompOut struct {
	Tasks []struct {
		Query     string `json:"query" validate:"required"`
		Rationale string `json:"rationale"`
	} `json:"tasks" validate:"required,min=1,dive"`
}

func newTestGateway(t *testing.T, timeout time.Duration, models ...Model) (*Gateway, *CostTracker) {
	t.Helper()
	r, err := prompt.NewRenderer("")
	require.NoError(t, err)
	costs := NewCostTracker()
	return NewGateway(r, models, timeout, costs, nil), costs
}

func decompReq() Request {
	return Request{
		Template: prompt.TaskDecomposition,
		Vars:     map[string]any{"Question": "q", "MaxTasks": 3},
		Purpose:  "decomposition",
	}
}

func TestGatewayCall(t *testing.T) {
	good := `{"tasks": [{"query": "sam.gov cyber awards", "rationale": "official records"}]}`

	t.Run("decodes valid response", func(t *testing.T) {
		g, costs := newTestGateway(t, time.Second, &stubModel{name: "primary", replies: []stubReply{{text: good}}})
		var out decompOut
		require.NoError(t, g.Call(context.Background(), decompReq(), &out))
		require.Len(t, out.Tasks, 1)
		assert.Equal(t, "sam.gov cyber awards", out.Tasks[0].Query)

		snap := costs.Snapshot()["decomposition"]
		assert.Equal(t, 1, snap.Calls)
		assert.Equal(t, 10, snap.InputTokens)
	})

	t.Run("tolerates code fences and prose", func(t *testing.T) {
		fenced := "Here you go:\n```json\n" + good + "\n```"
		g, _ := newTestGateway(t, time.Second, &stubModel{name: "m", replies: []stubReply{{text: fenced}}})
		var out decompOut
		require.NoError(t, g.Call(context.Background(), decompReq(), &out))
	})

	t.Run("falls back on unavailable model", func(t *testing.T) {
		primary := &stubModel{name: "primary", replies: []stubReply{{err: errors.New("connection refused")}}}
		fallback := &stubModel{name: "fallback", replies: []stubReply{{text: good}}}
		g, _ := newTestGateway(t, time.Second, primary, fallback)
		var out decompOut
		require.NoError(t, g.Call(context.Background(), decompReq(), &out))
		assert.Equal(t, 1, primary.calls)
		assert.Equal(t, 1, fallback.calls)
	})

	t.Run("falls back on schema-invalid response", func(t *testing.T) {
		primary := &stubModel{name: "primary", replies: []stubReply{{text: `{"unexpected": true}`}}}
		fallback := &stubModel{name: "fallback", replies: []stubReply{{text: good}}}
		g, _ := newTestGateway(t, time.Second, primary, fallback)
		var out decompOut
		require.NoError(t, g.Call(context.Background(), decompReq(), &out))
	})

	t.Run("exhausted chain surfaces last failure kind", func(t *testing.T) {
		g, _ := newTestGateway(t, time.Second,
			&stubModel{name: "a", replies: []stubReply{{err: errors.New("boom")}}},
			&stubModel{name: "b", replies: []stubReply{{text: "not json at all"}}},
		)
		var out decompOut
		err := g.Call(context.Background(), decompReq(), &out)
		assert.ErrorIs(t, err, ErrSchemaInvalid)
	})

	t.Run("per-call timeout maps to ErrTimeout", func(t *testing.T) {
		g, _ := newTestGateway(t, 20*time.Millisecond,
			&stubModel{name: "slow", replies: []stubReply{{text: good, delay: time.Second}}})
		var out decompOut
		err := g.Call(context.Background(), decompReq(), &out)
		assert.ErrorIs(t, err, ErrTimeout)
	})

	t.Run("cancelled context returns without fallback", func(t *testing.T) {
		primary := &stubModel{name: "primary", replies: []stubReply{{block: true}}}
		fallback := &stubModel{name: "fallback", replies: []stubReply{{text: good}}}
		g, _ := newTestGateway(t, time.Minute, primary, fallback)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		var out decompOut
		err := g.Call(ctx, decompReq(), &out)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, fallback.calls, "fallback not attempted after cancellation")
	})

	t.Run("renderer failure is not retried", func(t *testing.T) {
		primary := &stubModel{name: "primary", replies: []stubReply{{text: good}}}
		g, _ := newTestGateway(t, time.Second, primary)
		var out decompOut
		err := g.Call(context.Background(), Request{Template: "nope", Purpose: "x"}, &out)
		assert.ErrorIs(t, err, prompt.ErrTemplateNotFound)
		assert.Equal(t, 0, primary.calls)
	})
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, extractJSON(`noise {"a":1} trailing`))
	assert.Equal(t, "", extractJSON("no object here"))
}
