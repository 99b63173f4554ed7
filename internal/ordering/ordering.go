// Package ordering keeps the ranks of a sibling group dense.
//
// A group is every task of one user on one day, or every note of one user.
// Ranks are 1-based and, between operations, always form exactly 1..N. The
// functions here are pure: they read a snapshot of the group and return the
// rank changes the caller must persist in the same transaction.
package ordering

import (
	"fmt"
	"sort"

	"dailyplan/internal/apperr"
)

// Slot is an item's identity and current rank inside its group.
type Slot struct {
	ID    uint
	Order int
}

// Change assigns a new rank to one item.
type Change struct {
	ID    uint
	Order int
}

// InsertHead makes room at rank 1 for a new item by shifting every existing
// sibling down by one.
func InsertHead(group []Slot) []Change {
	changes := make([]Change, 0, len(group))
	for _, s := range group {
		changes = append(changes, Change{ID: s.ID, Order: s.Order + 1})
	}
	return changes
}

// Tail returns the rank a new item appended to the group receives.
func Tail(group []Slot) int {
	max := 0
	for _, s := range group {
		if s.Order > max {
			max = s.Order
		}
	}
	return max + 1
}

// Move relocates item id to the requested rank. Requests past the end are
// clamped to the last rank. The returned changes include the moved item and
// every sibling whose rank shifts; the effective rank is returned as well.
func Move(group []Slot, id uint, requested int) (int, []Change, error) {
	if requested < 1 {
		return 0, nil, fmt.Errorf("%w: order must be 1 or greater", apperr.ErrValidation)
	}
	idx := -1
	for i, s := range group {
		if s.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, nil, fmt.Errorf("%w: item %d is not part of its group", apperr.ErrInvariant, id)
	}

	effective := requested
	if max := len(group); effective > max {
		effective = max
	}
	old := group[idx].Order
	if effective == old {
		return effective, nil, nil
	}

	var changes []Change
	for _, s := range group {
		if s.ID == id {
			continue
		}
		switch {
		case old < effective && s.Order > old && s.Order <= effective:
			changes = append(changes, Change{ID: s.ID, Order: s.Order - 1})
		case old > effective && s.Order >= effective && s.Order < old:
			changes = append(changes, Change{ID: s.ID, Order: s.Order + 1})
		}
	}
	changes = append(changes, Change{ID: id, Order: effective})
	return effective, changes, nil
}

// MoveLast moves item id behind every sibling.
func MoveLast(group []Slot, id uint) (int, []Change, error) {
	return Move(group, id, len(group))
}

// MoveFirst moves item id in front of every sibling.
func MoveFirst(group []Slot, id uint) (int, []Change, error) {
	return Move(group, id, 1)
}

// Compact renumbers the survivors of a group after one or more removals so
// that ranks are 1..N again, keeping their relative order. Only items whose
// rank actually changes are returned.
func Compact(survivors []Slot) []Change {
	sorted := make([]Slot, len(survivors))
	copy(sorted, survivors)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Order != sorted[j].Order {
			return sorted[i].Order < sorted[j].Order
		}
		return sorted[i].ID < sorted[j].ID
	})
	var changes []Change
	for i, s := range sorted {
		if s.Order != i+1 {
			changes = append(changes, Change{ID: s.ID, Order: i + 1})
		}
	}
	return changes
}

// Apply returns a copy of group with changes applied.
func Apply(group []Slot, changes []Change) []Slot {
	byID := make(map[uint]int, len(changes))
	for _, c := range changes {
		byID[c.ID] = c.Order
	}
	out := make([]Slot, len(group))
	for i, s := range group {
		if o, ok := byID[s.ID]; ok {
			s.Order = o
		}
		out[i] = s
	}
	return out
}

// Verify checks the density invariant and reports a violation as
// apperr.ErrInvariant.
func Verify(group []Slot) error {
	orders := make([]int, len(group))
	for i, s := range group {
		orders[i] = s.Order
	}
	sort.Ints(orders)
	for i, o := range orders {
		if o != i+1 {
			return fmt.Errorf("%w: ranks %v are not dense", apperr.ErrInvariant, orders)
		}
	}
	return nil
}
