package session

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/Avarel/bvr/pkg/ingest"
	"github.com/Avarel/bvr/pkg/match"
)

func openFixture(t *testing.T, data string) *Session {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.log")
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	s, err := OpenFile(path, Options{SegmentSize: 32, CacheSegments: 2})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("ingest did not finish")
	}
	return s
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

func addRegex(t *testing.T, s *Session, pat string) *match.Matcher {
	t.Helper()
	m, err := s.AddRegex(pat)
	require.NoError(t, err)
	waitFor(t, m.Complete)
	return m
}

func TestViewUnfiltered(t *testing.T) {
	s := openFixture(t, "a\nbb\nccc\n")
	require.Equal(t, ingest.CompleteEOF, s.State())
	require.Equal(t, 3, s.LineCount())

	rows := s.View(0, 10)
	require.Len(t, rows, 3)
	require.Equal(t, Row{Line: 0, Text: "a"}, rows[0])
	require.Equal(t, Row{Line: 1, Text: "bb"}, rows[1])
	require.Equal(t, Row{Line: 2, Text: "ccc"}, rows[2])

	// a viewport past the end is a soft empty result
	require.Empty(t, s.View(3, 10))
}

func TestViewNoTrailingNewline(t *testing.T) {
	s := openFixture(t, "x\ny")
	rows := s.View(0, 10)
	require.Len(t, rows, 2)
	require.Equal(t, "y", rows[1].Text)
}

func TestViewSpanningSegments(t *testing.T) {
	// segment size 32: the long line straddles a boundary
	long := "0123456789012345678901234567890123456789"
	s := openFixture(t, "head\n"+long+"\ntail\n")

	rows := s.View(0, 10)
	require.Len(t, rows, 3)
	require.Equal(t, long, rows[1].Text)
	require.Equal(t, "tail", rows[2].Text)
}

func TestFilteredView(t *testing.T) {
	s := openFixture(t, "error one\nok\nerror two\nok\n")
	addRegex(t, s, "^error")

	require.Equal(t, 2, s.FilteredLen())
	rows := s.View(0, 10)
	require.Len(t, rows, 2)
	require.Equal(t, 0, rows[0].Line)
	require.Equal(t, "error one", rows[0].Text)
	require.Equal(t, 2, rows[1].Line)
}

func TestBadPatternInstallsNothing(t *testing.T) {
	s := openFixture(t, "a\n")
	_, err := s.AddRegex("[")
	require.True(t, errors.Is(err, match.ErrBadPattern))
	require.Empty(t, s.Matchers())
}

func TestCompositeModes(t *testing.T) {
	s := openFixture(t, "ab\na\nb\nab\nnone\n")
	addRegex(t, s, "a")
	addRegex(t, s, "b")

	require.Equal(t, match.Union, s.Mode())
	require.Equal(t, 4, s.FilteredLen())

	s.SetMode(match.Intersect)
	require.Equal(t, 2, s.FilteredLen())
	rows := s.View(0, 10)
	require.Equal(t, 0, rows[0].Line)
	require.Equal(t, 3, rows[1].Line)
}

func TestDisabledMatcherIsTransparent(t *testing.T) {
	s := openFixture(t, "a\nb\n")
	m := addRegex(t, s, "a")
	require.Equal(t, 1, s.FilteredLen())

	m.SetEnabled(false)
	require.Equal(t, 2, s.FilteredLen())
}

func TestNavigation(t *testing.T) {
	s := openFixture(t, "m\nx\nm\nx\nx\nm\nx\nx\nm\nx\n")
	addRegex(t, s, "m") // lines 0, 2, 5, 8

	next, ok := s.NextMatch(2)
	require.True(t, ok)
	require.Equal(t, 5, next)

	prev, ok := s.PrevMatch(5)
	require.True(t, ok)
	require.Equal(t, 2, prev)

	// union goto lands on the nearest lower member: line 2 at position 1
	require.Equal(t, 1, s.NearestFiltered(4))
	s.SetMode(match.Intersect)
	// intersect goto takes the nearest member at or above: line 5 at position 2
	require.Equal(t, 2, s.NearestFiltered(4))
}

func TestFollowTop(t *testing.T) {
	s := openFixture(t, "1\n2\n3\n4\n5\n6\n")
	require.Equal(t, 2, s.FollowTop(4))
	require.Equal(t, 0, s.FollowTop(10))
}

func TestBookmarksInView(t *testing.T) {
	s := openFixture(t, "a\nb\nc\n")
	require.True(t, s.ToggleBookmark(1))

	rows := s.View(0, 10)
	require.Len(t, rows, 3)
	require.False(t, rows[0].Bookmarked)
	require.True(t, rows[1].Bookmarked)

	// marking alone never filters; participation is explicit
	require.Equal(t, 3, s.FilteredLen())
	s.EnableBookmarks(true)
	require.Equal(t, 1, s.FilteredLen())
	rows = s.View(0, 10)
	require.Len(t, rows, 1)
	require.Equal(t, 1, rows[0].Line)

	s.EnableBookmarks(false)
	require.False(t, s.ToggleBookmark(1))
}

func TestEnabledEmptyBookmarksNarrowIntersect(t *testing.T) {
	s := openFixture(t, "a\nab\n")
	addRegex(t, s, "a")
	s.EnableBookmarks(true)

	// union: an empty child contributes nothing
	require.Equal(t, 2, s.FilteredLen())
	// intersect: an empty enabled child empties the result
	s.SetMode(match.Intersect)
	require.Equal(t, 0, s.FilteredLen())

	s.ToggleBookmark(1)
	require.Equal(t, 1, s.FilteredLen())
	rows := s.View(0, 10)
	require.Len(t, rows, 1)
	require.Equal(t, 1, rows[0].Line)
}

func TestExport(t *testing.T) {
	s := openFixture(t, "keep 1\ndrop\nkeep 2\n")
	addRegex(t, s, "^keep")

	it := s.Export()
	require.Equal(t, 2, it.Len())

	var texts []string
	for {
		row, ok := it.Next()
		if !ok {
			break
		}
		texts = append(texts, row.Text)
	}
	require.Equal(t, []string{"keep 1", "keep 2"}, texts)

	it.Reset()
	row, ok := it.Next()
	require.True(t, ok)
	require.Equal(t, "keep 1", row.Text)
}

func TestStreamSession(t *testing.T) {
	pr, pw := io.Pipe()
	s := OpenStream("pipe", pr, Options{})
	t.Cleanup(func() { s.Close() })

	_, err := pw.Write([]byte("first\n"))
	require.NoError(t, err)
	waitFor(t, func() bool { return s.LineCount() == 1 })

	// line counts only ever grow
	_, err = pw.Write([]byte("second\n"))
	require.NoError(t, err)
	waitFor(t, func() bool { return s.LineCount() == 2 })

	require.NoError(t, pw.Close())
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("stream ingest did not finish")
	}

	rows := s.View(0, 10)
	require.Len(t, rows, 2)
	require.Equal(t, "second", rows[1].Text)
}

func TestCloseIsIdempotent(t *testing.T) {
	s := openFixture(t, "a\n")
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
