package models

import (
	"sort"
	"strings"
)

// Result is one record surfaced by an integration search. The required core
// is Title; URL is the identity key when present, with (normalized title,
// source) as the fallback. Adapter-specific fields ride in Extra.
//
// HypothesisIDs and TaskIDs are the attribution sets: every hypothesis and
// task that surfaced this record. On dedup the sets union; all other fields
// keep their first-seen values.
type Result struct {
	Title       string         `json:"title"`
	URL         string         `json:"url,omitempty"`
	Date        string         `json:"date,omitempty"`
	Source      string         `json:"source,omitempty"`
	Description string         `json:"description,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`

	HypothesisIDs []int `json:"hypothesis_ids,omitempty"`
	TaskIDs       []int `json:"task_ids,omitempty"`
}

// IdentityKey returns the dedup key: the URL when present, otherwise the
// normalized (title, source) pair.
func (r *Result) IdentityKey() string {
	if r.URL != "" {
		return r.URL
	}
	return "title:" + NormalizeTitle(r.Title) + "|" + strings.ToLower(r.Source)
}

// Attribute adds the hypothesis and task ids to the attribution sets.
// Sets stay sorted and duplicate-free for deterministic audit output.
func (r *Result) Attribute(hypothesisID, taskID int) {
	r.HypothesisIDs = insertSorted(r.HypothesisIDs, hypothesisID)
	r.TaskIDs = insertSorted(r.TaskIDs, taskID)
}

// NormalizeTitle lowercases and collapses whitespace for identity matching.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

func insertSorted(ids []int, id int) []int {
	i := sort.SearchInts(ids, id)
	if i < len(ids) && ids[i] == id {
		return ids
	}
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}
