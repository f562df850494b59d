// Package index maintains the line-number to byte-offset map of a buffer.
// Entry i is the byte offset of the first byte of line i; the final entry
// terminates the last complete line. The ingest driver appends entries as
// it discovers newlines; readers take snapshots at near-zero cost and see a
// consistent prefix.
package index

import (
	"sync"
	"time"

	"github.com/Avarel/bvr/pkg/seq"
	"github.com/Avarel/bvr/pkg/utils"
	"github.com/pkg/errors"
)

// ErrNotIndexedYet is returned for a line the index has not published.
var ErrNotIndexedYet = errors.New("line not indexed yet")

// LineIndex is the shared index. One writer (the ingest driver) appends;
// any number of readers query concurrently.
//
// Matcher workers that catch up with the index park on a generation
// channel: Notify closes the current generation, waking every parked
// worker at once, and opens the next one.
type LineIndex struct {
	entries seq.Seq[uint64]

	mu    sync.Mutex
	grown chan struct{}
}

// NewLineIndex creates an index holding the implicit start of line 0.
func NewLineIndex() *LineIndex {
	ix := &LineIndex{grown: make(chan struct{})}
	ix.entries.Push(0)
	return ix
}

// Push appends the start offset of a new line. Offsets must be strictly
// increasing; a violation indicates a scanning bug upstream.
func (ix *LineIndex) Push(off uint64) {
	if last, ok := ix.entries.Last(); ok && off <= last {
		logger.Errorf("non-monotonic line offset %d after %d", off, last)
		return
	}
	ix.entries.Push(off)
}

// Finalize terminates the index at the total buffer length, accounting for
// a trailing line without a newline. Idempotent.
func (ix *LineIndex) Finalize(totalLen uint64) {
	if last, ok := ix.entries.Last(); ok && totalLen > last {
		ix.entries.Push(totalLen)
	}
	ix.Notify()
}

// Notify wakes readers blocked in Wait by retiring the current generation
// channel. The driver calls it once per ingested chunk rather than once
// per line.
func (ix *LineIndex) Notify() {
	ix.mu.Lock()
	close(ix.grown)
	ix.grown = make(chan struct{})
	ix.mu.Unlock()
}

// Wait parks the caller until the next Notify or the timeout elapses.
// It returns true on timeout.
func (ix *LineIndex) Wait(d time.Duration) bool {
	ix.mu.Lock()
	gen := ix.grown
	ix.mu.Unlock()

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-gen:
		return false
	case <-t.C:
		return true
	}
}

// Snapshot captures the published entries. All read methods on the snapshot
// are consistent with one another.
func (ix *LineIndex) Snapshot() Snapshot {
	return Snapshot{entries: ix.entries.Snapshot()}
}

// LineCount returns the number of complete lines published.
func (ix *LineIndex) LineCount() int {
	return ix.Snapshot().LineCount()
}

// LineRange returns the byte range [start, end) of line i, including its
// trailing newline when present.
func (ix *LineIndex) LineRange(i int) (start, end uint64, err error) {
	return ix.Snapshot().LineRange(i)
}

// OffsetOfLine returns entry i: the start offset of line i, or the
// terminating offset when i equals the line count.
func (ix *LineIndex) OffsetOfLine(i int) (uint64, error) {
	return ix.Snapshot().OffsetOfLine(i)
}

// LineOfOffset returns the line containing the byte offset, or the line
// count when no published line covers it yet.
func (ix *LineIndex) LineOfOffset(off uint64) int {
	return ix.Snapshot().LineOfOffset(off)
}

// Snapshot is an immutable prefix of the index.
type Snapshot struct {
	entries seq.Snapshot[uint64]
}

// LineCount returns the number of complete lines in the snapshot.
func (s Snapshot) LineCount() int {
	if s.entries.Len() == 0 {
		return 0
	}
	return s.entries.Len() - 1
}

// OffsetOfLine returns entry i, failing with ErrNotIndexedYet past the end.
func (s Snapshot) OffsetOfLine(i int) (uint64, error) {
	if i < 0 || i >= s.entries.Len() {
		return 0, errors.Wrapf(ErrNotIndexedYet, "line %d", i)
	}
	return s.entries.At(i), nil
}

// LineRange returns the byte range [start, end) of line i.
func (s Snapshot) LineRange(i int) (start, end uint64, err error) {
	if i < 0 || i+1 >= s.entries.Len() {
		return 0, 0, errors.Wrapf(ErrNotIndexedYet, "line %d", i)
	}
	return s.entries.At(i), s.entries.At(i + 1), nil
}

// LineOfOffset returns the largest i with entries[i] <= off. Offsets past
// the last published boundary report the line count (the growing tail).
func (s Snapshot) LineOfOffset(off uint64) int {
	n := s.LineCount()
	if n == 0 {
		return 0
	}
	// count of entries <= off, minus the leading zero
	i := s.entries.SearchUpper(off) - 1
	if i < 0 {
		i = 0
	}
	if i > n {
		i = n
	}
	return i
}

var logger = utils.GetLogger("bvr")
