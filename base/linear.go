// Package base provides the coarse allocators slabs are carved from.
package base

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Jille/easymutex"

	"github.com/joshuapare/slamkit/internal/arena"
)

const (
	// Granule is the allocation unit for slab-sized requests. Blocks of at
	// least one granule start on a granule boundary.
	Granule = arena.PageSize

	// smallAlign is the alignment for requests below one granule.
	smallAlign = 16
)

var (
	// ErrExhausted indicates the backing region has no room for the request.
	ErrExhausted = errors.New("base: region exhausted")

	// ErrUnsupported indicates an operation the allocator cannot perform.
	ErrUnsupported = errors.New("base: unsupported operation")
)

// Linear is a bump allocator over a region. It is safe for concurrent use.
//
// Memory is handed out front to back and never reused, except that the most
// recent block can be given back with Free.
type Linear struct {
	mem *arena.Region

	mtx  sync.Mutex
	next uint64 // offset of the next free byte, guarded by mtx
	last uint64 // offset of the most recent block, guarded by mtx
}

// NewLinear returns a Linear allocator owning all of mem.
func NewLinear(mem *arena.Region) *Linear {
	return &Linear{mem: mem}
}

// Region returns the memory the allocator hands out.
func (l *Linear) Region() *arena.Region { return l.mem }

// Alloc returns the address of size contiguous bytes.
func (l *Linear) Alloc(size uint64) (arena.Addr, error) {
	if size == 0 {
		return arena.Nil, fmt.Errorf("%w: zero-size block", ErrUnsupported)
	}
	align := uint64(smallAlign)
	if size >= Granule {
		align = Granule
	}

	em := easymutex.LockMutex(&l.mtx)
	defer em.Unlock()

	start := (l.next + align - 1) &^ (align - 1)
	total := l.mem.Size()
	if start > total || size > total-start {
		used := l.next
		em.Unlock()
		return arena.Nil, fmt.Errorf("%w: need %d bytes, %d of %d used", ErrExhausted, size, used, total)
	}
	l.last = start
	l.next = start + size
	return l.mem.At(start), nil
}

// Free gives back the most recent block. Any other block cannot be reclaimed
// by a bump allocator and yields ErrUnsupported.
func (l *Linear) Free(addr arena.Addr, size uint64) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if !l.mem.Contains(addr, size) {
		return fmt.Errorf("base: free %v: %w", addr, arena.ErrOutOfRange)
	}
	off := l.mem.Offset(addr)
	if off != l.last || off+size != l.next {
		return fmt.Errorf("%w: free of %v is not the most recent block", ErrUnsupported, addr)
	}
	l.next = off
	return nil
}

// Used returns the number of bytes handed out, including alignment padding.
func (l *Linear) Used() uint64 {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.next
}

// Remaining returns the number of bytes left in the region.
func (l *Linear) Remaining() uint64 {
	return l.mem.Size() - l.Used()
}
