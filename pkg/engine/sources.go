package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoResolvableSources indicates a hypothesis whose strategy names no
// source known to the registry. The hypothesis fails; the task continues.
var ErrNoResolvableSources = errors.New("hypothesis has no resolvable sources")

// resolveSources maps the display names a hypothesis strategy references to
// registry ids. Unresolved names are returned for logging, never silently
// dropped.
func (e *Engine) resolveSources(names []string) (ids, unresolved []string) {
	known := e.registry.DisplayNames()
	seen := make(map[string]struct{})
	for _, name := range names {
		id, ok := known[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			unresolved = append(unresolved, name)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, unresolved
}

// sourceCatalog renders the enabled sources for prompt consumption, one
// line per source.
func (e *Engine) sourceCatalog() string {
	descs := e.registry.Describe()
	if len(descs) == 0 {
		return "(no sources available)"
	}
	var sb strings.Builder
	for _, d := range descs {
		fmt.Fprintf(&sb, "- %s (%s): %s\n", d.DisplayName, d.ID, d.Category)
	}
	return sb.String()
}
