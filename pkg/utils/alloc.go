package utils

import (
	"sync/atomic"

	"golang.org/x/sys/unix"
)

var usedMemory int64

// Alloc returns an off-heap byte slice backed by an anonymous mapping.
// Segment pages live outside the Go heap so a multi-gigabyte capture does
// not inflate GC scan time.
func Alloc(size int) []byte {
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		logger.Fatalf("mmap %d bytes: %s", size, err)
	}
	atomic.AddInt64(&usedMemory, int64(size))
	return b
}

// Free unmaps a slice returned by Alloc. The slice must not be used after.
func Free(b []byte) {
	atomic.AddInt64(&usedMemory, -int64(cap(b)))
	if err := unix.Munmap(b[:cap(b)]); err != nil {
		logger.Errorf("munmap: %s", err)
	}
}

// AllocatedMemory returns the current off-heap usage in bytes.
func AllocatedMemory() int64 {
	return atomic.LoadInt64(&usedMemory)
}

var logger = GetLogger("bvr")
