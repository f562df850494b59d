// Package seq provides an append-only vector shared between one writer and
// many readers. The writer stages an element past the committed length and
// publishes it with a release store on the counter; readers acquire-load the
// counter and index only the published prefix. Growth never relocates a
// published prefix out from under a reader: a doubled backing array is
// copied, published first, and the old array stays alive until the last
// snapshot referencing it is collected.
package seq

import (
	"sort"
	"sync/atomic"
)

// Integer covers the element types stored by the data plane: byte offsets
// and line numbers.
type Integer interface {
	~int | ~int32 | ~int64 | ~uint32 | ~uint64
}

// Seq is the writer handle. Push may only be called from a single goroutine;
// Len and Snapshot are safe from any goroutine.
type Seq[T Integer] struct {
	buf       atomic.Pointer[[]T]
	committed atomic.Int64
}

// Len returns the number of published elements.
func (s *Seq[T]) Len() int {
	return int(s.committed.Load())
}

// Push appends one element and publishes it.
func (s *Seq[T]) Push(v T) {
	n := int(s.committed.Load())
	buf := s.buf.Load()
	if buf == nil || n == len(*buf) {
		buf = s.grow(n)
	}
	(*buf)[n] = v
	// The element is written before the length is released, so a reader
	// that observes the new length also observes the element.
	s.committed.Store(int64(n + 1))
}

// grow publishes a doubled backing array carrying the committed prefix.
// The new array must be visible before any length that refers to it.
func (s *Seq[T]) grow(n int) *[]T {
	cap := n * 2
	if cap < 16 {
		cap = 16
	}
	next := make([]T, cap)
	if old := s.buf.Load(); old != nil {
		copy(next, (*old)[:n])
	}
	s.buf.Store(&next)
	return &next
}

// Last returns the most recently published element. It is a writer-side
// convenience for duplicate suppression.
func (s *Seq[T]) Last() (T, bool) {
	var zero T
	n := int(s.committed.Load())
	if n == 0 {
		return zero, false
	}
	return (*s.buf.Load())[n-1], true
}

// Snapshot captures a consistent prefix. The order of the two loads matters:
// the length is read first, so whichever backing array is loaded afterwards
// is at least as new as that length and therefore covers it.
func (s *Seq[T]) Snapshot() Snapshot[T] {
	n := int(s.committed.Load())
	if n == 0 {
		return Snapshot[T]{}
	}
	buf := s.buf.Load()
	return Snapshot[T]{data: (*buf)[:n]}
}

// Snapshot is an immutable view of a Seq prefix. It remains valid (and keeps
// its backing array reachable) for as long as the caller holds it.
type Snapshot[T Integer] struct {
	data []T
}

func (s Snapshot[T]) Len() int { return len(s.data) }

func (s Snapshot[T]) At(i int) T { return s.data[i] }

// Data exposes the underlying slice. Callers must not mutate it.
func (s Snapshot[T]) Data() []T { return s.data }

// SearchLower returns the lower bound of v: the count of elements < v.
func (s Snapshot[T]) SearchLower(v T) int {
	return sort.Search(len(s.data), func(i int) bool { return s.data[i] >= v })
}

// SearchUpper returns the count of elements <= v.
func (s Snapshot[T]) SearchUpper(v T) int {
	return sort.Search(len(s.data), func(i int) bool { return s.data[i] > v })
}

// Contains reports whether v is present, assuming ascending order.
func (s Snapshot[T]) Contains(v T) bool {
	i := s.SearchLower(v)
	return i < len(s.data) && s.data[i] == v
}
