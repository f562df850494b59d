// Package segbuf implements the segmented byte store behind a log buffer.
// A store presents a flat, growing sequence of bytes addressed in fixed-size
// segments; reads hand out pinned views that keep their segment resident.
//
// Two flavors share the interface. A file-backed store treats the file
// itself as the backing data and keeps only a small bounded cache of
// resident segments. A stream-backed store captures a non-seekable source
// as it arrives and keeps every segment resident for the program lifetime.
package segbuf

import (
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// DefaultSegmentSize is the target segment size.
const DefaultSegmentSize = 1 << 20

// DefaultCacheSegments bounds resident segments of a file-backed store.
const DefaultCacheSegments = 8

// ErrOutOfRange is returned when a read exceeds the published length.
var ErrOutOfRange = errors.New("read past end of buffer")

// Store is the byte plane shared by the ingest driver and all readers.
// A reader that captures Len() == L may read any range within [0, L).
type Store interface {
	// Len returns the published byte length, monotonically non-decreasing.
	Len() uint64
	// Read returns a view over [start, end). A range inside one segment is
	// zero-copy and pinned; a spanning range is copied. The caller must
	// Release the view.
	Read(start, end uint64) (View, error)
	// SegmentSize returns the segment size used for addressing.
	SegmentSize() uint64
	// Close drops the store's segment references. Outstanding views keep
	// their own pages alive.
	Close() error
}

func segmentOf(off, segSize uint64) int { return int(off / segSize) }

// segLoad tracks one in-flight segment read. Waiters block on done, then
// pick the page up from the cache.
type segLoad struct {
	done chan struct{}
	err  error
}

// FileStore is the file-backed flavor. Segments are produced on demand by
// positioned reads and recycled through a pin-aware LRU cache.
type FileStore struct {
	f       *os.File
	segSize uint64
	length  atomic.Uint64
	cache   *segCache

	loadMu  sync.Mutex
	loading map[int]*segLoad
}

// FileStoreOption configures a FileStore.
type FileStoreOption struct {
	SegmentSize   uint64
	CacheSegments int
}

func (o *FileStoreOption) setDefaults() {
	if o.SegmentSize == 0 {
		o.SegmentSize = DefaultSegmentSize
	}
	if o.CacheSegments <= 0 {
		o.CacheSegments = DefaultCacheSegments
	}
}

// OpenFileStore opens a file-backed store over f. The store does not take
// ownership of the file position; all reads are positioned.
func OpenFileStore(f *os.File, opt FileStoreOption) (*FileStore, error) {
	opt.setDefaults()
	fi, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "stat source")
	}
	s := &FileStore{
		f:       f,
		segSize: opt.SegmentSize,
		cache:   newSegCache(opt.CacheSegments),
		loading: make(map[int]*segLoad),
	}
	s.length.Store(uint64(fi.Size()))
	return s, nil
}

func (s *FileStore) Len() uint64 { return s.length.Load() }

func (s *FileStore) SegmentSize() uint64 { return s.segSize }

// Extend ensures the segment covering off is resident.
func (s *FileStore) Extend(off uint64) error {
	if off >= s.Len() {
		return ErrOutOfRange
	}
	p, err := s.segment(segmentOf(off, s.segSize))
	if err != nil {
		return err
	}
	p.Release()
	return nil
}

// Resident reports whether the segment covering off is currently cached.
func (s *FileStore) Resident(off uint64) bool {
	return s.cache.resident(segmentOf(off, s.segSize))
}

// segment returns the page for the segment id with a reference held for the
// caller. Cache misses read from the file; concurrent misses on the same
// segment wait for the one read already in flight instead of issuing
// their own.
func (s *FileStore) segment(id int) (*Page, error) {
	for {
		if p, ok := s.cache.lookup(id); ok {
			return p, nil
		}
		s.loadMu.Lock()
		if l, ok := s.loading[id]; ok {
			s.loadMu.Unlock()
			<-l.done
			if l.err != nil {
				return nil, l.err
			}
			// the loader put the page in the cache; under heavy pressure
			// it may already be gone again, so retry from the top
			continue
		}
		l := &segLoad{done: make(chan struct{})}
		s.loading[id] = l
		s.loadMu.Unlock()

		p, err := s.loadSegment(id)
		l.err = err
		s.loadMu.Lock()
		delete(s.loading, id)
		s.loadMu.Unlock()
		close(l.done)
		return p, err
	}
}

// loadSegment reads one segment from the file into a fresh page and caches
// it. The creation reference transfers to the caller.
func (s *FileStore) loadSegment(id int) (*Page, error) {
	start := uint64(id) * s.segSize
	end := start + s.segSize
	if l := s.Len(); end > l {
		end = l
	}
	p := NewOffPage(int(end - start))
	if err := s.readFull(p.Data(), int64(start)); err != nil {
		p.Release()
		return nil, errors.Wrapf(err, "load segment %d", id)
	}
	s.cache.insert(id, p)
	return p, nil
}

func (s *FileStore) readFull(buf []byte, off int64) error {
	n, err := s.f.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return err
}

// Read implements Store.
func (s *FileStore) Read(start, end uint64) (View, error) {
	if start > end || end > s.Len() {
		return View{}, ErrOutOfRange
	}
	if start == end {
		return newOwnedView(nil), nil
	}
	first := segmentOf(start, s.segSize)
	last := segmentOf(end-1, s.segSize)
	if first == last {
		p, err := s.segment(first)
		if err != nil {
			return View{}, err
		}
		base := uint64(first) * s.segSize
		v := newPinnedView(p, p.Data()[start-base:end-base])
		p.Release()
		return v, nil
	}
	// Spanning reads are materialized by copying; there is no zero-copy
	// guarantee across a segment boundary.
	buf := make([]byte, 0, end-start)
	for id := first; id <= last; id++ {
		p, err := s.segment(id)
		if err != nil {
			return View{}, err
		}
		base := uint64(id) * s.segSize
		lo, hi := uint64(0), uint64(len(p.Data()))
		if start > base {
			lo = start - base
		}
		if end < base+hi {
			hi = end - base
		}
		buf = append(buf, p.Data()[lo:hi]...)
		p.Release()
	}
	return newOwnedView(buf), nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	s.cache.drop()
	return s.f.Close()
}

// StreamStore is the stream-backed flavor. The ingest driver appends into
// the tail segment; every segment stays resident until Close.
type StreamStore struct {
	segSize uint64
	length  atomic.Uint64
	segs    atomic.Pointer[[]*Page]
	closed  atomic.Bool
}

// NewStreamStore creates an empty stream-backed store.
func NewStreamStore(segSize uint64) *StreamStore {
	if segSize == 0 {
		segSize = DefaultSegmentSize
	}
	s := &StreamStore{segSize: segSize}
	empty := []*Page{}
	s.segs.Store(&empty)
	return s
}

func (s *StreamStore) Len() uint64 { return s.length.Load() }

func (s *StreamStore) SegmentSize() uint64 { return s.segSize }

// AppendFrom reads once from r into the tail segment, allocating a fresh
// segment when the tail is full, and publishes the new length. It returns
// the number of bytes appended and the absolute offset they begin at.
// Only the ingest driver may call it.
func (s *StreamStore) AppendFrom(r io.Reader) (n int, off uint64, err error) {
	off = s.length.Load()
	fill := off % s.segSize

	segs := *s.segs.Load()
	if fill == 0 && off == uint64(len(segs))*s.segSize {
		// tail is exactly full (or the store is empty): open a new segment
		p := NewOffPage(int(s.segSize))
		next := make([]*Page, len(segs)+1)
		copy(next, segs)
		next[len(segs)] = p
		// the grown segment list must be visible before any length
		// that refers into the new segment
		s.segs.Store(&next)
		segs = next
	}
	tail := segs[len(segs)-1]

	n, err = r.Read(tail.Data()[fill:])
	if n > 0 {
		s.length.Store(off + uint64(n))
	}
	return n, off, err
}

// Read implements Store.
func (s *StreamStore) Read(start, end uint64) (View, error) {
	if start > end || end > s.Len() {
		return View{}, ErrOutOfRange
	}
	if start == end {
		return newOwnedView(nil), nil
	}
	segs := *s.segs.Load()
	first := segmentOf(start, s.segSize)
	last := segmentOf(end-1, s.segSize)
	if first == last {
		p := segs[first]
		base := uint64(first) * s.segSize
		return newPinnedView(p, p.Data()[start-base:end-base]), nil
	}
	buf := make([]byte, 0, end-start)
	for id := first; id <= last; id++ {
		p := segs[id]
		base := uint64(id) * s.segSize
		lo, hi := uint64(0), s.segSize
		if start > base {
			lo = start - base
		}
		if end < base+hi {
			hi = end - base
		}
		buf = append(buf, p.Data()[lo:hi]...)
	}
	return newOwnedView(buf), nil
}

// Close implements Store. Captured segments are released; views still
// holding a page keep it alive until they are released themselves.
func (s *StreamStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	for _, p := range *s.segs.Load() {
		p.Release()
	}
	empty := []*Page{}
	s.segs.Store(&empty)
	return nil
}
