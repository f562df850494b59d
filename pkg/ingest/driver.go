// Package ingest runs the background worker that grows a buffer and its
// line index from a source. One driver runs per open buffer, single-threaded
// inside; everything it publishes goes through the append-only structures,
// so the UI thread never takes a lock to observe progress.
package ingest

import (
	"bytes"
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/Avarel/bvr/pkg/index"
	"github.com/Avarel/bvr/pkg/segbuf"
	"github.com/Avarel/bvr/pkg/utils"
	"github.com/pkg/errors"
)

// State is the driver's completion state.
type State int32

const (
	// Running means the driver is still scanning the source.
	Running State = iota
	// CompleteEOF means the source was fully ingested.
	CompleteEOF
	// Cancelled means the session shut the driver down at a scan boundary.
	Cancelled
	// FailedIO means a source read failed; published data stays queryable.
	FailedIO
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case CompleteEOF:
		return "complete"
	case Cancelled:
		return "cancelled"
	case FailedIO:
		return "failed"
	default:
		return "unknown"
	}
}

// DefaultChunkSize is the read granularity of the file loop.
const DefaultChunkSize = 1 << 20

// Driver ingests one source into a store and a line index.
type Driver struct {
	idx   *index.LineIndex
	state atomic.Int32

	ingested atomic.Uint64
	total    uint64 // 0 when the source length is unknown

	errMu sync.Mutex
	err   error

	done chan struct{}
}

func newDriver(idx *index.LineIndex, total uint64) *Driver {
	return &Driver{idx: idx, total: total, done: make(chan struct{})}
}

// State returns the current completion state.
func (d *Driver) State() State { return State(d.state.Load()) }

// Finished reports whether the driver reached a terminal state.
func (d *Driver) Finished() bool { return d.State() != Running }

// Err returns the I/O error after FailedIO, nil otherwise.
func (d *Driver) Err() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	return d.err
}

// Progress returns bytes ingested and the total (0 for streams).
func (d *Driver) Progress() (ingested, total uint64) {
	return d.ingested.Load(), d.total
}

// Done is closed when the driver parks in a terminal state.
func (d *Driver) Done() <-chan struct{} { return d.done }

func (d *Driver) finish(s State, err error) {
	if err != nil {
		d.errMu.Lock()
		d.err = err
		d.errMu.Unlock()
		logger.Errorf("ingest: %s", err)
	}
	d.state.Store(int32(s))
	d.idx.Notify()
	close(d.done)
}

// IndexFile starts the file loop: positioned reads in fixed-size chunks,
// scanning each chunk for newlines. The file itself is the backing store;
// no bytes are copied into segments here.
func IndexFile(ctx context.Context, f *os.File, idx *index.LineIndex) (*Driver, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "stat source")
	}
	d := newDriver(idx, uint64(fi.Size()))
	go d.fileLoop(ctx, f, uint64(fi.Size()))
	return d, nil
}

func (d *Driver) fileLoop(ctx context.Context, f *os.File, total uint64) {
	buf := make([]byte, DefaultChunkSize)
	var off uint64
	for off < total {
		if ctx.Err() != nil {
			d.finish(Cancelled, nil)
			return
		}
		n := uint64(len(buf))
		if total-off < n {
			n = total - off
		}
		if m, err := f.ReadAt(buf[:n], int64(off)); m < int(n) {
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			d.finish(FailedIO, errors.Wrapf(err, "read chunk at %d", off))
			return
		}
		d.scan(buf[:n], off)
		off += n
		d.ingested.Store(off)
		d.idx.Notify()
	}
	d.idx.Finalize(total)
	d.finish(CompleteEOF, nil)
}

// IndexStream starts the stream loop: bytes are appended into the stream
// store's tail segment, then the newly arrived window is scanned.
func IndexStream(ctx context.Context, r io.Reader, store *segbuf.StreamStore, idx *index.LineIndex) *Driver {
	d := newDriver(idx, 0)
	go d.streamLoop(ctx, r, store)
	return d
}

func (d *Driver) streamLoop(ctx context.Context, r io.Reader, store *segbuf.StreamStore) {
	for {
		if ctx.Err() != nil {
			d.finish(Cancelled, nil)
			return
		}
		n, off, err := store.AppendFrom(r)
		if n > 0 {
			// the bytes are published in the store before their line
			// boundaries become visible in the index
			v, rerr := store.Read(off, off+uint64(n))
			if rerr != nil {
				d.finish(FailedIO, rerr)
				return
			}
			d.scan(v.Bytes(), off)
			v.Release()
			d.ingested.Store(off + uint64(n))
			d.idx.Notify()
		}
		if err == io.EOF {
			d.idx.Finalize(store.Len())
			d.finish(CompleteEOF, nil)
			return
		}
		if err != nil {
			d.finish(FailedIO, errors.Wrap(err, "read stream"))
			return
		}
	}
}

// scan publishes a line start for every newline in chunk, whose first byte
// sits at absolute offset base.
func (d *Driver) scan(chunk []byte, base uint64) {
	for i := 0; i < len(chunk); {
		j := bytes.IndexByte(chunk[i:], '\n')
		if j < 0 {
			return
		}
		d.idx.Push(base + uint64(i+j) + 1)
		i += j + 1
	}
}

var logger = utils.GetLogger("bvr")
