// Package ordering keeps the sort positions of a collection dense (0..n-1) and unique.
package ordering

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Position pairs a collection member with its sort order.
type Position struct {
	ID        string `db:"id"         json:"id"`
	SortOrder int    `db:"sort_order" json:"sort_order"`
}

// InvalidOrderError is returned when a reorder payload is not exactly the current member set.
type InvalidOrderError struct {
	Collection string
	Missing    []string
	Unexpected []string
	Duplicated []string
}

func (e *InvalidOrderError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ","))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected "+strings.Join(e.Unexpected, ","))
	}
	if len(e.Duplicated) > 0 {
		parts = append(parts, "duplicated "+strings.Join(e.Duplicated, ","))
	}
	return fmt.Sprintf("invalid order for %s: %s", e.Collection, strings.Join(parts, "; "))
}

// Sorted returns a copy ordered by sort order, then id.
func Sorted(current []Position) []Position {
	out := slices.Clone(current)
	slices.SortStableFunc(out, func(a, b Position) int {
		if c := cmp.Compare(a.SortOrder, b.SortOrder); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Compact renumbers members to 0..n-1 keeping their relative order.
func Compact(current []Position) []Position {
	out := Sorted(current)
	for i := range out {
		out[i].SortOrder = i
	}
	return out
}

// Apply assigns each id its index in orderedIDs. The ids must be exactly the members
// of current, each listed once.
func Apply(collection string, current []Position, orderedIDs []string) ([]Position, error) {
	members := make(map[string]struct{}, len(current))
	for _, p := range current {
		members[p.ID] = struct{}{}
	}

	e := &InvalidOrderError{Collection: collection}
	seen := make(map[string]struct{}, len(orderedIDs))
	for _, id := range orderedIDs {
		if _, dup := seen[id]; dup {
			e.Duplicated = append(e.Duplicated, id)
			continue
		}
		seen[id] = struct{}{}
		if _, ok := members[id]; !ok {
			e.Unexpected = append(e.Unexpected, id)
		}
	}
	for _, p := range Sorted(current) {
		if _, ok := seen[p.ID]; !ok {
			e.Missing = append(e.Missing, p.ID)
		}
	}
	if len(e.Missing) > 0 || len(e.Unexpected) > 0 || len(e.Duplicated) > 0 {
		return nil, e
	}

	out := make([]Position, len(orderedIDs))
	for i, id := range orderedIDs {
		out[i] = Position{ID: id, SortOrder: i}
	}
	return out, nil
}

// Remove drops id and shifts every member above it down by one.
// The second result is false when id is not a member.
func Remove(current []Position, id string) ([]Position, bool) {
	removed := -1
	for _, p := range current {
		if p.ID == id {
			removed = p.SortOrder
			break
		}
	}
	if removed < 0 {
		return nil, false
	}
	out := make([]Position, 0, len(current)-1)
	for _, p := range current {
		switch {
		case p.ID == id:
			continue
		case p.SortOrder > removed:
			p.SortOrder--
		}
		out = append(out, p)
	}
	return Sorted(out), true
}

// Changed returns the members of next whose sort order differs from prev.
func Changed(prev, next []Position) []Position {
	old := make(map[string]int, len(prev))
	for _, p := range prev {
		old[p.ID] = p.SortOrder
	}
	var out []Position
	for _, p := range next {
		if was, ok := old[p.ID]; !ok || was != p.SortOrder {
			out = append(out, p)
		}
	}
	return out
}

// Dense reports whether positions are exactly a permutation of 0..n-1.
func Dense(positions []Position) bool {
	seen := make([]bool, len(positions))
	for _, p := range positions {
		if p.SortOrder < 0 || p.SortOrder >= len(positions) || seen[p.SortOrder] {
			return false
		}
		seen[p.SortOrder] = true
	}
	return true
}
