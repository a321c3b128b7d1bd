// Package audit provides the append-only structured event stream for a
// research run: one JSON object per line, single writer, bounded
// non-blocking emission. A failing sink degrades to dropping events with a
// single stderr warning; it never crashes or stalls the run.
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// queueDepth bounds how many events may be in flight before Emit starts
// dropping. Writes to local disk drain far faster than the engine produces.
const queueDepth = 256

// Event is one line of execution_log.jsonl.
type Event struct {
	Timestamp     string     `json:"timestamp"`
	RunID         string     `json:"run_id"`
	TaskID        *int       `json:"task_id,omitempty"`
	ActionType    ActionType `json:"action_type"`
	ActionPayload any        `json:"action_payload,omitempty"`
}

// Logger is the single-writer audit sink.
type Logger struct {
	runID string
	ch    chan Event
	done  chan struct{}

	closeOnce sync.Once
	warnOnce  sync.Once

	// degraded is set when the sink could not be opened; events are
	// accepted and discarded so callers never branch on logger health.
	degraded bool
	closer   io.Closer
}

// New opens (or creates) the JSONL file at path and starts the writer
// goroutine. If the sink cannot be opened the logger comes up degraded:
// one warning on stderr, all events dropped, error is not surfaced.
func New(path, runID string) *Logger {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		l := &Logger{runID: runID, degraded: true}
		l.warnSinkUnavailable(err)
		return l
	}
	return NewWriter(f, runID)
}

// NewWriter starts a logger over an arbitrary writer. Used by New and by
// tests; if w implements io.Closer it is closed on Close.
func NewWriter(w io.Writer, runID string) *Logger {
	l := &Logger{
		runID: runID,
		ch:    make(chan Event, queueDepth),
		done:  make(chan struct{}),
	}
	if c, ok := w.(io.Closer); ok {
		l.closer = c
	}
	go l.writeLoop(w)
	return l
}

// Emit records an event. It never blocks beyond the channel buffer: when
// the queue is full the event is dropped and a single warning is printed
// for the run.
func (l *Logger) Emit(taskID *int, action ActionType, payload any) {
	if l.degraded {
		return
	}
	ev := Event{
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		RunID:         l.runID,
		TaskID:        taskID,
		ActionType:    action,
		ActionPayload: payload,
	}
	select {
	case l.ch <- ev:
	default:
		l.warnSinkUnavailable(fmt.Errorf("audit queue full"))
	}
}

// Close drains pending events and closes the sink. Safe to call more than
// once.
func (l *Logger) Close() {
	if l.degraded {
		return
	}
	l.closeOnce.Do(func() {
		close(l.ch)
		<-l.done
		if l.closer != nil {
			_ = l.closer.Close()
		}
	})
}

func (l *Logger) writeLoop(w io.Writer) {
	defer close(l.done)
	enc := json.NewEncoder(w)
	for ev := range l.ch {
		if err := enc.Encode(ev); err != nil {
			l.warnSinkUnavailable(err)
		}
	}
}

func (l *Logger) warnSinkUnavailable(err error) {
	l.warnOnce.Do(func() {
		fmt.Fprintf(os.Stderr, "audit: sink unavailable, events will be dropped: %v\n", err)
	})
}
