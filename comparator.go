package lsmcore

import "bytes"

// Comparator defines a total order over byte strings.
type Comparator interface {
	// Compare returns -1, 0 or +1 if a is less than, equal to or greater than b.
	Compare(a, b []byte) int

	// Name identifies the order. Data written under one comparator must
	// not be read under a comparator with a different name.
	Name() string

	// FindShortestSeparator returns a short key k with start <= k < limit.
	// It returns start unchanged when no shorter key can be found.
	FindShortestSeparator(start, limit []byte) []byte

	// FindShortSuccessor returns a short key k with k >= key.
	// It returns key unchanged when no shorter key can be found.
	FindShortSuccessor(key []byte) []byte
}

// BytewiseComparator orders keys lexicographically.
var BytewiseComparator Comparator = bytewiseComparator{}

type bytewiseComparator struct{}

func (bytewiseComparator) Compare(a, b []byte) int { return bytes.Compare(a, b) }

func (bytewiseComparator) Name() string { return "leveldb.BytewiseComparator" }

func (bytewiseComparator) FindShortestSeparator(start, limit []byte) []byte {
	n := len(start)
	if len(limit) < n {
		n = len(limit)
	}

	i := 0
	for i < n && start[i] == limit[i] {
		i++
	}

	// one key is a prefix of the other
	if i >= n {
		return start
	}

	if c := start[i]; c < 0xff && c+1 < limit[i] {
		sep := make([]byte, i+1)
		copy(sep, start[:i+1])
		sep[i]++
		return sep
	}
	return start
}

func (bytewiseComparator) FindShortSuccessor(key []byte) []byte {
	for i, c := range key {
		if c != 0xff {
			succ := make([]byte, i+1)
			copy(succ, key[:i+1])
			succ[i]++
			return succ
		}
	}
	return key
}
