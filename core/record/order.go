// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package record

import "slices"

// Key is the constraint satisfied by record identities: comparable for use
// in maps, and totally ordered so results can be reported deterministically.
type Key[K any] interface {
	comparable
	Compare(K) int
}

// SortKeys sorts keys in place.
func SortKeys[K Key[K]](keys []K) {
	slices.SortFunc(keys, func(a, b K) int {
		return a.Compare(b)
	})
}

// SortedKeys returns the keys of m matching keep, in order. A nil keep
// matches everything.
func SortedKeys[K Key[K], V any](m map[K]V, keep func(K) bool) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		if keep == nil || keep(k) {
			keys = append(keys, k)
		}
	}
	SortKeys(keys)
	return keys
}

// MergeKeys merges two sorted key slices into a new sorted slice.
func MergeKeys[K Key[K]](a, b []K) []K {
	merged := make([]K, 0, len(a)+len(b))
	for len(a) > 0 && len(b) > 0 {
		if b[0].Compare(a[0]) < 0 {
			merged = append(merged, b[0])
			b = b[1:]
		} else {
			merged = append(merged, a[0])
			a = a[1:]
		}
	}
	merged = append(merged, a...)
	return append(merged, b...)
}
