// Package match maintains per-filter line sets over an evolving buffer.
// Each matcher runs its own background worker that trails the line index,
// classifying lines and publishing matching line numbers append-only, in
// ascending order. Matchers compose into a union or intersection that
// drives the filtered viewport.
package match

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/Avarel/bvr/pkg/index"
	"github.com/Avarel/bvr/pkg/segbuf"
	"github.com/Avarel/bvr/pkg/seq"
	"github.com/Avarel/bvr/pkg/utils"
)

// Set is a sorted set of line numbers readable while it is still being
// populated. Snapshot returns an ascending slice that callers must treat as
// immutable; Complete reports whether the set has caught up with a finished
// ingest.
type Set interface {
	Snapshot() []int
	Complete() bool
}

const (
	// catchupWait bounds how long a worker parks before rechecking the index.
	catchupWait = 50 * time.Millisecond
	// cancelBatch is how many lines are classified between cancel checks.
	cancelBatch = 4096
)

// Matcher is a predicate-driven Set populated by a background worker. The
// worker holds non-owning references to the store and index; when the
// session closes, the worker terminates quietly.
type Matcher struct {
	name    string
	pred    Predicate
	lines   seq.Seq[int]
	cursor  atomic.Int64
	done    atomic.Bool
	enabled atomic.Bool
}

// NewMatcher creates an enabled matcher. Start must be called to populate it.
func NewMatcher(name string, pred Predicate) *Matcher {
	m := &Matcher{name: name, pred: pred}
	m.enabled.Store(true)
	return m
}

// Name returns the display label of the matcher.
func (m *Matcher) Name() string { return m.name }

// Enabled reports whether the matcher participates in composition.
func (m *Matcher) Enabled() bool { return m.enabled.Load() }

// SetEnabled toggles participation without touching the published matches.
func (m *Matcher) SetEnabled(v bool) { m.enabled.Store(v) }

// Count returns the number of published matching lines.
func (m *Matcher) Count() int { return m.lines.Len() }

// Cursor returns the next line the worker will classify, for progress
// reporting. It may trail the index arbitrarily.
func (m *Matcher) Cursor() int { return int(m.cursor.Load()) }

// Nth returns the k-th matching line number, if published.
func (m *Matcher) Nth(k int) (int, bool) {
	snap := m.lines.Snapshot()
	if k < 0 || k >= snap.Len() {
		return 0, false
	}
	return snap.At(k), true
}

// Rank returns the lower-bound position of line n among the matches.
func (m *Matcher) Rank(n int) int {
	return m.lines.Snapshot().SearchLower(n)
}

// Snapshot implements Set.
func (m *Matcher) Snapshot() []int { return m.lines.Snapshot().Data() }

// Complete implements Set.
func (m *Matcher) Complete() bool { return m.done.Load() }

// Start launches the matcher worker. ingestDone must report whether the
// ingest driver has reached a terminal state.
func (m *Matcher) Start(ctx context.Context, store segbuf.Store, idx *index.LineIndex, ingestDone func() bool) {
	go m.run(ctx, store, idx, ingestDone)
}

func (m *Matcher) run(ctx context.Context, store segbuf.Store, idx *index.LineIndex, ingestDone func() bool) {
	logger.Debugf("matcher %q: worker started", m.name)
	for {
		if ctx.Err() != nil {
			logger.Debugf("matcher %q: cancelled at line %d", m.name, m.cursor.Load())
			return
		}
		snap := idx.Snapshot()
		count := snap.LineCount()
		if m.advance(ctx, store, snap, count) {
			return
		}
		if int(m.cursor.Load()) >= count && ingestDone() && idx.LineCount() == count {
			m.done.Store(true)
			logger.Debugf("matcher %q: complete with %d matches", m.name, m.lines.Len())
			return
		}
		idx.Wait(catchupWait)
	}
}

// advance classifies lines [cursor, count). It returns true when the worker
// should exit because the session is gone.
func (m *Matcher) advance(ctx context.Context, store segbuf.Store, snap index.Snapshot, count int) bool {
	for i := int(m.cursor.Load()); i < count; i++ {
		start, end, err := snap.LineRange(i)
		if err != nil {
			return true
		}
		v, err := store.Read(start, end)
		if err != nil {
			// the buffer went away under us; park quietly
			return true
		}
		if m.pred.Match(TrimEOL(v.Bytes())) {
			m.lines.Push(i)
		}
		v.Release()
		m.cursor.Store(int64(i + 1))
		if (i+1)%cancelBatch == 0 && ctx.Err() != nil {
			return true
		}
	}
	return false
}

// Bookmarks is the user-toggled Set. Membership changes at arbitrary
// positions, so it publishes through copy-on-write slices instead of the
// append-only protocol; it participates in composition identically.
type Bookmarks struct {
	lines atomic.Pointer[[]int]
}

// NewBookmarks creates an empty bookmark set.
func NewBookmarks() *Bookmarks {
	b := &Bookmarks{}
	empty := []int{}
	b.lines.Store(&empty)
	return b
}

// Toggle flips membership of a line and reports whether it is now set.
func (b *Bookmarks) Toggle(line int) bool {
	cur := *b.lines.Load()
	i := sort.SearchInts(cur, line)
	next := make([]int, 0, len(cur)+1)
	if i < len(cur) && cur[i] == line {
		next = append(append(next, cur[:i]...), cur[i+1:]...)
		b.lines.Store(&next)
		return false
	}
	next = append(append(append(next, cur[:i]...), line), cur[i:]...)
	b.lines.Store(&next)
	return true
}

// Has reports membership of a line.
func (b *Bookmarks) Has(line int) bool {
	cur := *b.lines.Load()
	i := sort.SearchInts(cur, line)
	return i < len(cur) && cur[i] == line
}

// Count returns the number of bookmarked lines.
func (b *Bookmarks) Count() int { return len(*b.lines.Load()) }

// Clear removes every bookmark.
func (b *Bookmarks) Clear() {
	empty := []int{}
	b.lines.Store(&empty)
}

// Snapshot implements Set.
func (b *Bookmarks) Snapshot() []int { return *b.lines.Load() }

// Complete implements Set. A bookmark set has no worker to wait for.
func (b *Bookmarks) Complete() bool { return true }

var logger = utils.GetLogger("bvr")
