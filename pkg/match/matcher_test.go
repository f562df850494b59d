package match

import (
	"bytes"
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/Avarel/bvr/pkg/index"
	"github.com/Avarel/bvr/pkg/segbuf"
)

// loadBuffer captures data into a stream store and a finalized index.
func loadBuffer(t *testing.T, data string) (*segbuf.StreamStore, *index.LineIndex) {
	t.Helper()
	store := segbuf.NewStreamStore(0)
	t.Cleanup(func() { store.Close() })

	r := bytes.NewReader([]byte(data))
	var off uint64
	for {
		n, at, err := store.AppendFrom(r)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.Equal(t, off, at)
		off += uint64(n)
	}

	idx := index.NewLineIndex()
	for i, b := range []byte(data) {
		if b == '\n' {
			idx.Push(uint64(i) + 1)
		}
	}
	idx.Finalize(uint64(len(data)))
	return store, idx
}

func runMatcher(t *testing.T, m *Matcher, store segbuf.Store, idx *index.LineIndex) {
	t.Helper()
	m.Start(context.Background(), store, idx, func() bool { return true })
	deadline := time.Now().Add(5 * time.Second)
	for !m.Complete() {
		if time.Now().After(deadline) {
			t.Fatal("matcher did not complete")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRegexMatcher(t *testing.T) {
	store, idx := loadBuffer(t, "a\nbb\nccc\n")

	pred, err := NewRegex("^c")
	require.NoError(t, err)
	m := NewMatcher("^c", pred)
	runMatcher(t, m, store, idx)

	require.Equal(t, 1, m.Count())
	require.Equal(t, []int{2}, m.Snapshot())
	require.Equal(t, 3, m.Cursor())
}

func TestLiteralMatcher(t *testing.T) {
	store, idx := loadBuffer(t, "error: disk\ninfo: ok\nerror: net\n")

	m := NewMatcher("error", NewLiteral("error"))
	runMatcher(t, m, store, idx)

	require.Equal(t, []int{0, 2}, m.Snapshot())
}

func TestEmptyPatternMatchesEveryLineOnce(t *testing.T) {
	store, idx := loadBuffer(t, "a\nb\nc\n")

	pred, err := NewRegex("")
	require.NoError(t, err)
	m := NewMatcher("", pred)
	runMatcher(t, m, store, idx)

	require.Equal(t, []int{0, 1, 2}, m.Snapshot())
}

func TestMatcherAscendingInvariant(t *testing.T) {
	store, idx := loadBuffer(t, "x1\ny\nx2\nx3\nz\nx4\n")

	m := NewMatcher("x", NewLiteral("x"))
	runMatcher(t, m, store, idx)

	lines := m.Snapshot()
	require.Equal(t, []int{0, 2, 3, 5}, lines)
	for i := 1; i < len(lines); i++ {
		require.Less(t, lines[i-1], lines[i])
	}
	for _, ln := range lines {
		require.Less(t, ln, idx.LineCount())
	}

	got, ok := m.Nth(1)
	require.True(t, ok)
	require.Equal(t, 2, got)
	_, ok = m.Nth(4)
	require.False(t, ok)
	require.Equal(t, 1, m.Rank(2))
	require.Equal(t, 3, m.Rank(4))
}

func TestMatcherLineWithoutNewline(t *testing.T) {
	store, idx := loadBuffer(t, "miss\nhit")

	m := NewMatcher("hit", NewLiteral("hit"))
	runMatcher(t, m, store, idx)
	require.Equal(t, []int{1}, m.Snapshot())
}

func TestBadPattern(t *testing.T) {
	_, err := NewRegex("[")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrBadPattern))
}

func TestMatcherTrailsGrowingIndex(t *testing.T) {
	store := segbuf.NewStreamStore(0)
	defer store.Close()
	idx := index.NewLineIndex()

	var done atomic.Bool
	m := NewMatcher("b", NewLiteral("b"))
	m.Start(context.Background(), store, idx, done.Load)

	feed := func(chunk string) {
		r := bytes.NewReader([]byte(chunk))
		for {
			n, off, err := store.AppendFrom(r)
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			for i := 0; i < n; i++ {
				if chunk[i] == '\n' {
					idx.Push(off + uint64(i) + 1)
				}
			}
		}
		idx.Notify()
	}

	feed("a\n")
	feed("b\n")
	waitFor(t, func() bool { return m.Count() == 1 })

	feed("b again\n")
	waitFor(t, func() bool { return m.Count() == 2 })

	done.Store(true)
	idx.Notify()
	waitFor(t, m.Complete)
	require.Equal(t, []int{1, 2}, m.Snapshot())
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestBookmarks(t *testing.T) {
	b := NewBookmarks()
	require.Equal(t, 0, b.Count())
	require.True(t, b.Complete())

	require.True(t, b.Toggle(5))
	require.True(t, b.Toggle(2))
	require.True(t, b.Toggle(9))
	require.Equal(t, []int{2, 5, 9}, b.Snapshot())
	require.True(t, b.Has(5))

	require.False(t, b.Toggle(5))
	require.False(t, b.Has(5))
	require.Equal(t, []int{2, 9}, b.Snapshot())

	b.Clear()
	require.Equal(t, 0, b.Count())
}

func TestTrimEOL(t *testing.T) {
	require.Equal(t, []byte("x"), TrimEOL([]byte("x\n")))
	require.Equal(t, []byte("x"), TrimEOL([]byte("x\r\n")))
	require.Equal(t, []byte("x"), TrimEOL([]byte("x")))
	require.Equal(t, []byte{}, TrimEOL([]byte("\n")))
	require.Equal(t, []byte{}, TrimEOL([]byte{}))
}
