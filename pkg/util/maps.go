package util

import (
	"cmp"
	"slices"
)

// SortedUnique returns a sorted copy of s with duplicates removed.
func SortedUnique[T cmp.Ordered](s []T) []T {
	out := slices.Clone(s)
	slices.Sort(out)
	return slices.Compact(out)
}
