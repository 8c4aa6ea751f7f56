package temporal

import (
	"slices"
)

// Order is a sort direction.
type Order int

const (
	// Ascending sorts oldest first.
	Ascending Order = iota
	// Descending sorts newest first.
	Descending
)

// Compare orders two instants in the given direction. Absent instants always come last,
// whatever the direction, and compare equal to each other.
func Compare(a, b Instant, order Order) int {
	switch {
	case a.Absent() && b.Absent():
		return 0
	case a.Absent():
		return 1
	case b.Absent():
		return -1
	}

	c := a.Time.Compare(b.Time)
	if order == Descending {
		return -c
	}
	return c
}

// SortBy sorts items in place by the instant key returns, keeping the original order of
// equal items. Items whose key is absent are placed last.
func SortBy[T any](items []T, key func(T) Instant, order Order) {
	slices.SortStableFunc(items, func(a, b T) int {
		return Compare(key(a), key(b), order)
	})
}
