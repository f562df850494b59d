package index

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// "a\nbb\nccc\n" has newlines at 1, 4, 8
func basicIndex() *LineIndex {
	ix := NewLineIndex()
	ix.Push(2)
	ix.Push(5)
	ix.Push(9)
	ix.Finalize(9)
	return ix
}

func TestBasicIndexing(t *testing.T) {
	ix := basicIndex()
	require.Equal(t, 3, ix.LineCount())

	for i, want := range [][2]uint64{{0, 2}, {2, 5}, {5, 9}} {
		start, end, err := ix.LineRange(i)
		require.NoError(t, err)
		require.Equal(t, want[0], start)
		require.Equal(t, want[1], end)
	}

	_, _, err := ix.LineRange(3)
	require.True(t, errors.Is(err, ErrNotIndexedYet))
}

func TestNoTrailingNewline(t *testing.T) {
	// "x\ny"
	ix := NewLineIndex()
	ix.Push(2)
	ix.Finalize(3)

	require.Equal(t, 2, ix.LineCount())
	start, end, err := ix.LineRange(1)
	require.NoError(t, err)
	require.Equal(t, uint64(2), start)
	require.Equal(t, uint64(3), end)
}

func TestFinalizeIsIdempotent(t *testing.T) {
	ix := basicIndex()
	ix.Finalize(9)
	require.Equal(t, 3, ix.LineCount())
}

func TestEmptyBuffer(t *testing.T) {
	ix := NewLineIndex()
	require.Equal(t, 0, ix.LineCount())
	_, _, err := ix.LineRange(0)
	require.True(t, errors.Is(err, ErrNotIndexedYet))

	ix.Finalize(0)
	require.Equal(t, 0, ix.LineCount())
}

func TestLineOfOffset(t *testing.T) {
	ix := basicIndex()

	require.Equal(t, 0, ix.LineOfOffset(0))
	require.Equal(t, 0, ix.LineOfOffset(1))
	require.Equal(t, 1, ix.LineOfOffset(2))
	require.Equal(t, 1, ix.LineOfOffset(4))
	require.Equal(t, 2, ix.LineOfOffset(5))
	require.Equal(t, 2, ix.LineOfOffset(8))
	// nothing covers these yet: report the growing tail
	require.Equal(t, 3, ix.LineOfOffset(9))
	require.Equal(t, 3, ix.LineOfOffset(1000))
}

func TestLineOfOffsetRoundTrip(t *testing.T) {
	ix := basicIndex()
	for off := uint64(0); off < 9; off++ {
		i := ix.LineOfOffset(off)
		start, end, err := ix.LineRange(i)
		require.NoError(t, err)
		require.LessOrEqual(t, start, off)
		require.Greater(t, end, off)
	}
}

func TestOffsetOfLine(t *testing.T) {
	ix := basicIndex()
	for i, want := range []uint64{0, 2, 5, 9} {
		off, err := ix.OffsetOfLine(i)
		require.NoError(t, err)
		require.Equal(t, want, off)
	}
	_, err := ix.OffsetOfLine(4)
	require.True(t, errors.Is(err, ErrNotIndexedYet))
}

func TestMonotonicPushIgnored(t *testing.T) {
	ix := NewLineIndex()
	ix.Push(5)
	ix.Push(3) // out of order: dropped, not published
	require.Equal(t, 1, ix.LineCount())
	start, end, err := ix.LineRange(0)
	require.NoError(t, err)
	require.Equal(t, uint64(0), start)
	require.Equal(t, uint64(5), end)
}

func TestSnapshotUnaffectedByLaterPush(t *testing.T) {
	ix := NewLineIndex()
	ix.Push(2)
	snap := ix.Snapshot()

	ix.Push(5)
	ix.Finalize(9)

	require.Equal(t, 1, snap.LineCount())
	require.Equal(t, 3, ix.LineCount())
}
