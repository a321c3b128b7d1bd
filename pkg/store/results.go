// Package store holds the per-run result accumulation: ordered accepted
// results, the dedup index, and the run entity set. It is the only shared
// mutable state during a task; all operations run under one mutex and
// never hold it across an external call.
package store

import (
	"math"
	"sort"
	"sync"

	"github.com/osinthq/sleuth/pkg/models"
)

// Store is the run-scoped result store.
type Store struct {
	mu       sync.Mutex
	results  []*models.Result
	byKey    map[string]int // identity key → index into results
	entities map[string]struct{}
	adds     int // total Add calls, for duplicate accounting
}

// Snapshot captures the store counters before a hypothesis executes, so
// Delta can compute the facts for that execution afterwards.
type Snapshot struct {
	Results  int
	Adds     int
	Entities int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		byKey:    make(map[string]int),
		entities: make(map[string]struct{}),
	}
}

// Add accumulates one result attributed to the given hypothesis and task.
// Returns true when the result is new. On a duplicate the stored record
// keeps its first-seen fields and unions the attribution sets.
func (s *Store) Add(r *models.Result, hypothesisID, taskID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.adds++
	key := r.IdentityKey()
	if idx, ok := s.byKey[key]; ok {
		s.results[idx].Attribute(hypothesisID, taskID)
		return false
	}

	stored := *r
	stored.HypothesisIDs = nil
	stored.TaskIDs = nil
	stored.Attribute(hypothesisID, taskID)
	s.byKey[key] = len(s.results)
	s.results = append(s.results, &stored)
	return true
}

// AddEntities merges names into the run entity set, returning how many
// were new.
func (s *Store) AddEntities(names []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, ok := s.entities[name]; ok {
			continue
		}
		s.entities[name] = struct{}{}
		added++
	}
	return added
}

// Take captures the current counters.
func (s *Store) Take() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Results: len(s.results), Adds: s.adds, Entities: len(s.entities)}
}

// Delta computes the objective facts for everything accumulated since the
// snapshot: new results, duplicates, incremental gain percent
// (new / max(1, new+dup) × 100, rounded), and new entities.
func (s *Store) Delta(before Snapshot) models.CoverageFacts {
	s.mu.Lock()
	defer s.mu.Unlock()

	newResults := len(s.results) - before.Results
	duplicates := (s.adds - before.Adds) - newResults
	denom := newResults + duplicates
	if denom < 1 {
		denom = 1
	}
	gain := int(math.Round(float64(newResults) / float64(denom) * 100))

	return models.CoverageFacts{
		NewResults:             newResults,
		DuplicateResults:       duplicates,
		IncrementalGainPercent: gain,
		NewEntities:            len(s.entities) - before.Entities,
	}
}

// Count returns the number of accepted results.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

// Results returns the accepted results in accumulation order. The slice is
// a copy; the records are shared and must not be mutated by callers.
func (s *Store) Results() []*models.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Result, len(s.results))
	copy(out, s.results)
	return out
}

// ResultsForTask returns the results attributed to the given task, in
// accumulation order.
func (s *Store) ResultsForTask(taskID int) []*models.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Result
	for _, r := range s.results {
		for _, id := range r.TaskIDs {
			if id == taskID {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// Entities returns the run entity set, sorted.
func (s *Store) Entities() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entities))
	for e := range s.entities {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}
