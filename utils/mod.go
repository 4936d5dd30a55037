package utils

import "iter"

// FindIndex returns the index of the first element equal to item, or -1.
// Search trees use it for their small per-branch lookups.
func FindIndex[T comparable](slice []T, item T) int {
	for i, v := range slice {
		if v == item {
			return i
		}
	}
	return -1
}

// Map yields f of every element of slice, in order.
func Map[T, R any](slice []T, f func(T) R) iter.Seq[R] {
	return func(yield func(R) bool) {
		for _, v := range slice {
			if !yield(f(v)) {
				return
			}
		}
	}
}
