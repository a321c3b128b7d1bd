package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osinthq/sleuth/pkg/models"
)

func TestAddDedupByURL(t *testing.T) {
	s := New()

	first := &models.Result{Title: "Award Notice", URL: "https://sam.gov/opp/1", Description: "original"}
	assert.True(t, s.Add(first, 1, 1))

	// Same URL, different title: still the same record.
	dup := &models.Result{Title: "Award Notice (updated)", URL: "https://sam.gov/opp/1", Description: "changed"}
	assert.False(t, s.Add(dup, 2, 3))

	results := s.Results()
	require.Len(t, results, 1)
	assert.Equal(t, "original", results[0].Description, "first occurrence wins on fields")
	assert.Equal(t, []int{1, 2}, results[0].HypothesisIDs, "attribution unions")
	assert.Equal(t, []int{1, 3}, results[0].TaskIDs)
}

func TestAddDedupByTitleSourceFallback(t *testing.T) {
	s := New()
	assert.True(t, s.Add(&models.Result{Title: "Cyber  Analyst", Source: "USAJobs"}, 1, 1))
	assert.False(t, s.Add(&models.Result{Title: "cyber analyst", Source: "usajobs"}, 1, 1))
	assert.True(t, s.Add(&models.Result{Title: "cyber analyst", Source: "clearancejobs"}, 1, 1),
		"same title from a different source is a distinct record")
	assert.Equal(t, 2, s.Count())
}

func TestCallerSliceNotAliased(t *testing.T) {
	s := New()
	in := &models.Result{Title: "x", URL: "https://a"}
	s.Add(in, 1, 1)
	in.Title = "mutated after add"
	assert.Equal(t, "x", s.Results()[0].Title)
}

func TestDeltaFacts(t *testing.T) {
	s := New()
	s.Add(&models.Result{Title: "a", URL: "https://a"}, 1, 1)
	s.AddEntities([]string{"Raytheon"})

	snap := s.Take()

	// Hypothesis 2: three adds, one duplicate; two new entities, one known.
	s.Add(&models.Result{Title: "b", URL: "https://b"}, 2, 1)
	s.Add(&models.Result{Title: "a", URL: "https://a"}, 2, 1)
	s.Add(&models.Result{Title: "c", URL: "https://c"}, 2, 1)
	s.AddEntities([]string{"Raytheon", "Fort Meade", "GDIT"})

	facts := s.Delta(snap)
	assert.Equal(t, 2, facts.NewResults)
	assert.Equal(t, 1, facts.DuplicateResults)
	assert.Equal(t, 67, facts.IncrementalGainPercent, "2/3 rounded")
	assert.Equal(t, 2, facts.NewEntities)
}

func TestDeltaEmptyExecution(t *testing.T) {
	s := New()
	snap := s.Take()
	facts := s.Delta(snap)
	assert.Equal(t, 0, facts.NewResults)
	assert.Equal(t, 0, facts.DuplicateResults)
	assert.Equal(t, 0, facts.IncrementalGainPercent, "zero-denominator guard")
}

func TestResultsForTask(t *testing.T) {
	s := New()
	s.Add(&models.Result{Title: "a", URL: "https://a"}, 1, 1)
	s.Add(&models.Result{Title: "b", URL: "https://b"}, 2, 2)
	s.Add(&models.Result{Title: "a", URL: "https://a"}, 3, 2) // dup, attributes task 2

	assert.Len(t, s.ResultsForTask(1), 1)
	assert.Len(t, s.ResultsForTask(2), 2)
	assert.Empty(t, s.ResultsForTask(9))
}

func TestConcurrentAddsKeepInvariants(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				// Half the URLs collide across workers.
				url := fmt.Sprintf("https://example.com/%d", i%25)
				s.Add(&models.Result{Title: "t", URL: url}, w, w)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 25, s.Count())
	for _, r := range s.Results() {
		assert.NotEmpty(t, r.HypothesisIDs, "stored result always has attribution")
	}
}

func TestEntitiesSorted(t *testing.T) {
	s := New()
	s.AddEntities([]string{"zulu", "alpha", "mike", ""})
	assert.Equal(t, []string{"alpha", "mike", "zulu"}, s.Entities())
}
