// Package session owns the data plane of one open buffer: the segment
// store, the line index, the ingest driver and the installed matchers. The
// terminal layer talks only to this package.
package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Avarel/bvr/pkg/index"
	"github.com/Avarel/bvr/pkg/ingest"
	"github.com/Avarel/bvr/pkg/match"
	"github.com/Avarel/bvr/pkg/segbuf"
	"github.com/Avarel/bvr/pkg/utils"
)

// Options configures an open buffer.
type Options struct {
	// SegmentSize overrides the segment size; 0 keeps the default 1 MiB.
	SegmentSize uint64
	// CacheSegments bounds resident segments of a file-backed buffer.
	CacheSegments int
	// IngestRate caps stream ingestion in bytes per second; 0 is unlimited.
	IngestRate int64
}

// Session is one open buffer with its workers and matchers. All methods are
// safe to call from the UI thread. Close waits up to 500ms for the ingest
// driver to stop; View and Export read segments missing from the file cache
// on the calling goroutine.
type Session struct {
	ID   string
	Name string

	store  segbuf.Store
	idx    *index.LineIndex
	driver *ingest.Driver

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	matchers  []*match.Matcher
	bookmarks *match.Bookmarks
	bmEnabled bool
	mode      match.Mode

	closeOnce sync.Once
}

func newSession(name string, store segbuf.Store) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:        uuid.NewString(),
		Name:      name,
		store:     store,
		idx:       index.NewLineIndex(),
		ctx:       ctx,
		cancel:    cancel,
		bookmarks: match.NewBookmarks(),
	}
}

// OpenFile opens a file-backed session and starts indexing it.
func OpenFile(path string, opt Options) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	store, err := segbuf.OpenFileStore(f, segbuf.FileStoreOption{
		SegmentSize:   opt.SegmentSize,
		CacheSegments: opt.CacheSegments,
	})
	if err != nil {
		f.Close()
		return nil, err
	}
	s := newSession(path, store)
	s.driver, err = ingest.IndexFile(s.ctx, f, s.idx)
	if err != nil {
		s.cancel()
		store.Close()
		return nil, err
	}
	logger.Infof("session %s: indexing file %s (%d bytes)", s.ID, path, store.Len())
	return s, nil
}

// OpenStream opens a stream-backed session capturing r as it arrives.
func OpenStream(name string, r io.Reader, opt Options) *Session {
	store := segbuf.NewStreamStore(opt.SegmentSize)
	s := newSession(name, store)
	s.driver = ingest.IndexStream(s.ctx, ingest.RateLimited(r, opt.IngestRate), store, s.idx)
	logger.Infof("session %s: capturing stream %s", s.ID, name)
	return s
}

// LineCount returns the number of indexed complete lines.
func (s *Session) LineCount() int { return s.idx.LineCount() }

// State returns the ingest completion state.
func (s *Session) State() ingest.State { return s.driver.State() }

// Err returns the ingest error after a FailedIO state.
func (s *Session) Err() error { return s.driver.Err() }

// Progress returns bytes ingested and total bytes (0 total for streams).
func (s *Session) Progress() (ingested, total uint64) { return s.driver.Progress() }

// Done is closed when ingest reaches a terminal state.
func (s *Session) Done() <-chan struct{} { return s.driver.Done() }

// AddRegex installs a regex matcher and starts its worker. A pattern that
// fails to compile reports match.ErrBadPattern and installs nothing.
func (s *Session) AddRegex(pattern string) (*match.Matcher, error) {
	pred, err := match.NewRegex(pattern)
	if err != nil {
		return nil, err
	}
	return s.install(fmt.Sprintf("/%s/", pattern), pred), nil
}

// AddLiteral installs a substring matcher and starts its worker.
func (s *Session) AddLiteral(needle string) *match.Matcher {
	return s.install(needle, match.NewLiteral(needle))
}

func (s *Session) install(name string, pred match.Predicate) *match.Matcher {
	m := match.NewMatcher(name, pred)
	m.Start(s.ctx, s.store, s.idx, s.driver.Finished)
	s.mu.Lock()
	s.matchers = append(s.matchers, m)
	s.mu.Unlock()
	logger.Debugf("session %s: installed matcher %q", s.ID, name)
	return m
}

// Matchers returns the installed matchers in creation order.
func (s *Session) Matchers() []*match.Matcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*match.Matcher(nil), s.matchers...)
}

// ClearMatchers removes every matcher from composition. Their workers are
// not cancelled: they keep classifying until they complete or the session
// closes; published storage is dropped with the last reference.
func (s *Session) ClearMatchers() {
	s.mu.Lock()
	s.matchers = nil
	s.mu.Unlock()
}

// Bookmarks returns the session's bookmark set.
func (s *Session) Bookmarks() *match.Bookmarks { return s.bookmarks }

// ToggleBookmark flips a line's bookmark and reports the new membership.
// Bookmarking never changes what is visible; participation in the composite
// is a separate toggle.
func (s *Session) ToggleBookmark(line int) bool {
	return s.bookmarks.Toggle(line)
}

// EnableBookmarks includes or excludes the bookmark set from composition.
func (s *Session) EnableBookmarks(v bool) {
	s.mu.Lock()
	s.bmEnabled = v
	s.mu.Unlock()
}

// BookmarksEnabled reports whether bookmarks participate in composition.
func (s *Session) BookmarksEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bmEnabled
}

// Mode returns the composition mode.
func (s *Session) Mode() match.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode selects union or intersection composition.
func (s *Session) SetMode(m match.Mode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
}

// Composite captures the current composition over the enabled matchers and
// bookmarks. The result is a consistent snapshot: it is taken matcher-first,
// so every line number it contains is covered by the index and the buffer.
func (s *Session) Composite() match.Composite {
	s.mu.Lock()
	mode := s.mode
	sets := make([]match.Set, 0, len(s.matchers)+1)
	for _, m := range s.matchers {
		if m.Enabled() {
			sets = append(sets, m)
		}
	}
	// an enabled bookmark set participates even while empty: under
	// intersection an empty child narrows the result to nothing
	if s.bmEnabled {
		sets = append(sets, s.bookmarks)
	}
	s.mu.Unlock()
	return match.Compose(mode, s.idx, sets...)
}

// Close cancels the ingest driver, drops the matchers, then releases the
// buffer, in that order.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		// cancellation is cooperative; a stream source blocked in read
		// only notices at the next delivery, so don't wait forever
		select {
		case <-s.driver.Done():
		case <-time.After(500 * time.Millisecond):
			logger.Warnf("session %s: ingest still blocked on source read", s.ID)
		}
		s.ClearMatchers()
		err = s.store.Close()
		logger.Infof("session %s: closed", s.ID)
	})
	return err
}

var logger = utils.GetLogger("bvr")
