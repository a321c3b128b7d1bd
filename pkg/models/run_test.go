package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// NewRunForTest builds a run with a fixed start time for tests.
func NewRunForTest(t *testing.T) *Run {
	t.Helper()
	return NewRun("What is the GS-2210 job series?", t.TempDir(), time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC))
}

func TestRunID(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	id := RunID(ts, "What is the GS-2210 job series?")
	assert.Equal(t, "2026-03-14_09-26-53_what-is-the-gs-2210-job-series", id)
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"How do I qualify for federal cybersecurity jobs?", 64, "how-do-i-qualify-for-federal-cybersecurity-jobs"},
		{"  spaces   and---symbols!! ", 64, "spaces-and-symbols"},
		{"???", 64, "research"},
		{"a very long question that keeps going and going", 12, "a-very-long"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Slugify(tc.in, tc.maxLen), tc.in)
	}
}

func TestResultIdentityAndAttribution(t *testing.T) {
	t.Run("url wins as identity key", func(t *testing.T) {
		r := &Result{Title: "Award Notice", URL: "https://sam.gov/opp/123", Source: "sam"}
		assert.Equal(t, "https://sam.gov/opp/123", r.IdentityKey())
	})

	t.Run("fallback is normalized title plus source", func(t *testing.T) {
		a := &Result{Title: "  Cyber  Analyst ", Source: "USAJobs"}
		b := &Result{Title: "cyber analyst", Source: "usajobs"}
		assert.Equal(t, a.IdentityKey(), b.IdentityKey())
	})

	t.Run("attribution sets stay sorted and unique", func(t *testing.T) {
		r := &Result{Title: "x"}
		r.Attribute(3, 2)
		r.Attribute(1, 2)
		r.Attribute(3, 1)
		assert.Equal(t, []int{1, 3}, r.HypothesisIDs)
		assert.Equal(t, []int{1, 2}, r.TaskIDs)
	})
}

func TestCoverageStopSemantics(t *testing.T) {
	stop := &CoverageDecision{Decision: CoverageStop}
	assert.True(t, stop.StopWithNoGaps())

	stopWithGaps := &CoverageDecision{Decision: CoverageStop, GapsIdentified: []string{"no award amounts found"}}
	assert.False(t, stopWithGaps.StopWithNoGaps())

	cont := &CoverageDecision{Decision: CoverageContinue}
	assert.False(t, cont.StopWithNoGaps())
}
