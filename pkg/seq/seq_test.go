package seq

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPushAndSnapshot(t *testing.T) {
	var s Seq[uint64]
	require.Equal(t, 0, s.Len())
	require.Equal(t, 0, s.Snapshot().Len())

	for i := 0; i < 10000; i++ {
		s.Push(uint64(i))
	}
	require.Equal(t, 10000, s.Len())

	snap := s.Snapshot()
	for i := 0; i < snap.Len(); i++ {
		require.Equal(t, uint64(i), snap.At(i))
	}
}

func TestSnapshotIsStableUnderGrowth(t *testing.T) {
	var s Seq[int]
	for i := 0; i < 8; i++ {
		s.Push(i)
	}
	snap := s.Snapshot()
	// push enough to force several backing reallocations
	for i := 8; i < 4096; i++ {
		s.Push(i)
	}
	require.Equal(t, 8, snap.Len())
	for i := 0; i < 8; i++ {
		require.Equal(t, i, snap.At(i))
	}
}

func TestLast(t *testing.T) {
	var s Seq[uint64]
	_, ok := s.Last()
	require.False(t, ok)

	s.Push(7)
	s.Push(9)
	last, ok := s.Last()
	require.True(t, ok)
	require.Equal(t, uint64(9), last)
}

func TestSearch(t *testing.T) {
	var s Seq[int]
	for _, v := range []int{2, 5, 8} {
		s.Push(v)
	}
	snap := s.Snapshot()
	require.Equal(t, 0, snap.SearchLower(2))
	require.Equal(t, 1, snap.SearchLower(3))
	require.Equal(t, 1, snap.SearchUpper(2))
	require.Equal(t, 3, snap.SearchUpper(9))
	require.True(t, snap.Contains(5))
	require.False(t, snap.Contains(6))
}

func TestConcurrentReadersSeeConsistentPrefix(t *testing.T) {
	var s Seq[int]
	const total = 200000

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				snap := s.Snapshot()
				n := snap.Len()
				// every published element must carry its own index
				for i := 0; i < n; i++ {
					if snap.At(i) != i {
						t.Errorf("snapshot[%d] = %d", i, snap.At(i))
						return
					}
				}
				select {
				case <-stop:
					return
				default:
				}
			}
		}()
	}

	for i := 0; i < total; i++ {
		s.Push(i)
	}
	close(stop)
	wg.Wait()
	require.Equal(t, total, s.Len())
}
