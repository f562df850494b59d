package segbuf

import (
	"runtime"
	"sync/atomic"

	"github.com/Avarel/bvr/pkg/utils"
)

// Page is a refcounted byte buffer holding one segment of the buffer. The
// store's cache, in-flight loads and pinned views each hold a reference; the
// backing memory is reclaimed when the last reference is released.
type Page struct {
	refs    int32
	offHeap bool
	data    []byte
}

// NewPage wraps an on-heap slice, used by tests and owned copies.
func NewPage(data []byte) *Page {
	return &Page{refs: 1, data: data}
}

// NewOffPage allocates a page outside the Go heap.
func NewOffPage(size int) *Page {
	if size <= 0 {
		panic("size of page should > 0")
	}
	p := &Page{refs: 1, offHeap: true, data: utils.Alloc(size)}
	runtime.SetFinalizer(p, func(p *Page) {
		refs := atomic.LoadInt32(&p.refs)
		if refs != 0 {
			logger.Errorf("refcount of page %p is not zero: %d", p, refs)
			if refs > 0 {
				p.Release()
			}
		}
	})
	return p
}

// Data returns the page bytes. The caller must hold a reference.
func (p *Page) Data() []byte { return p.data }

// Refs returns the current reference count.
func (p *Page) Refs() int32 { return atomic.LoadInt32(&p.refs) }

// Acquire increases the refcount.
func (p *Page) Acquire() {
	atomic.AddInt32(&p.refs, 1)
}

// Release decreases the refcount and frees the backing memory at zero.
func (p *Page) Release() {
	if atomic.AddInt32(&p.refs, -1) == 0 {
		if p.offHeap {
			utils.Free(p.data)
		}
		p.data = nil
	}
}

var logger = utils.GetLogger("bvr")
