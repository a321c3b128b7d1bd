package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "2026-03-14_09-26-53_test-run")

	taskID := 3
	l.Emit(nil, ActionRunStart, map[string]any{"question": "who hires GS-2210s?"})
	l.Emit(&taskID, ActionTaskStart, nil)
	l.Emit(&taskID, ActionTaskComplete, map[string]any{"results": 7})
	l.Close()

	scanner := bufio.NewScanner(&buf)
	var events []Event
	for scanner.Scan() {
		var ev Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev), "each line is a standalone JSON object")
		events = append(events, ev)
	}
	require.Len(t, events, 3)

	assert.Equal(t, ActionRunStart, events[0].ActionType)
	assert.Equal(t, "2026-03-14_09-26-53_test-run", events[0].RunID)
	assert.Nil(t, events[0].TaskID)
	assert.NotEmpty(t, events[0].Timestamp)

	require.NotNil(t, events[1].TaskID)
	assert.Equal(t, 3, *events[1].TaskID)
	assert.Equal(t, ActionTaskStart, events[1].ActionType)
}

func TestLoggerFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "execution_log.jsonl")
	l := New(path, "run-1")
	l.Emit(nil, ActionRunStart, nil)
	l.Emit(nil, ActionRunComplete, nil)
	l.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := bytes.Count(data, []byte("\n"))
	assert.Equal(t, 2, lines, "newline-terminated records")
}

func TestLoggerDegradedSinkNeverPanics(t *testing.T) {
	// Directory path cannot be opened as a file: logger comes up degraded.
	l := New(t.TempDir(), "run-1")
	for i := 0; i < 10; i++ {
		l.Emit(nil, ActionLLMCall, map[string]any{"i": i})
	}
	l.Close()
	l.Close() // idempotent
}
