package segbuf

import (
	"sync"
	"time"
)

type segItem struct {
	atime time.Time
	page  *Page
}

// segCache keeps at most capacity resident segments, evicting the least
// recently used. A page whose refcount shows outstanding views is skipped
// by eviction, so the cache can transiently exceed its capacity while every
// resident segment is pinned; the overflow is reclaimed on a later insert.
type segCache struct {
	sync.Mutex
	capacity int
	pages    map[int]segItem
}

func newSegCache(capacity int) *segCache {
	return &segCache{
		capacity: capacity,
		pages:    make(map[int]segItem),
	}
}

// lookup returns the cached page with a reference acquired for the caller.
func (c *segCache) lookup(id int) (*Page, bool) {
	c.Lock()
	defer c.Unlock()
	item, ok := c.pages[id]
	if !ok {
		return nil, false
	}
	c.pages[id] = segItem{time.Now(), item.page}
	item.page.Acquire()
	return item.page, true
}

// insert caches the page, holding its own reference, then reclaims LRU
// entries above capacity.
func (c *segCache) insert(id int, p *Page) {
	c.Lock()
	defer c.Unlock()
	if _, ok := c.pages[id]; ok {
		return
	}
	p.Acquire()
	c.pages[id] = segItem{time.Now(), p}
	if len(c.pages) > c.capacity {
		c.cleanup()
	}
}

// locked
func (c *segCache) cleanup() {
	for len(c.pages) > c.capacity {
		oldest := -1
		var oldestAt time.Time
		for id, item := range c.pages {
			// refs > 1 means a view or an in-flight read still holds the page
			if item.page.Refs() > 1 {
				continue
			}
			if oldest < 0 || item.atime.Before(oldestAt) {
				oldest = id
				oldestAt = item.atime
			}
		}
		if oldest < 0 {
			// everything resident is pinned; stay over capacity for now
			return
		}
		logger.Debugf("evict segment %d from cache", oldest)
		c.pages[oldest].page.Release()
		delete(c.pages, oldest)
	}
}

// resident reports whether the segment is currently cached.
func (c *segCache) resident(id int) bool {
	c.Lock()
	defer c.Unlock()
	_, ok := c.pages[id]
	return ok
}

// drop releases every cached page.
func (c *segCache) drop() {
	c.Lock()
	defer c.Unlock()
	for id, item := range c.pages {
		item.page.Release()
		delete(c.pages, id)
	}
}
