// Package arena provides the backing region the slab allocator hands out.
//
// A Region is one contiguous, fixed-size block of memory addressed through
// Addr handles rather than Go pointers. Addresses start at the region origin
// (0x10000 by default), so the zero Addr never refers to valid memory and can
// serve as a null reference in on-heap data structures.
//
// All address arithmetic and word access lives in this package. Word
// operations are atomic so that list headers written by one goroutine can be
// read by another without tearing.
package arena

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Addr is an address inside a Region.
type Addr uint64

// String formats the address in hex.
func (a Addr) String() string { return fmt.Sprintf("%#x", uint64(a)) }

// Nil is the null address. No Region ever contains it.
const Nil Addr = 0

const (
	// PageSize is the granule regions are sized in.
	PageSize = 4096

	// WordSize is the size of one header word.
	WordSize = 8

	// DefaultOrigin is the address of the first byte of a region unless
	// WithOrigin says otherwise.
	DefaultOrigin Addr = 0x10000

	// AddrBits is the number of significant bits in a valid Addr. Callers
	// may pack other data above this bit.
	AddrBits = 40

	// MaxAddr is one past the highest address a region may cover.
	MaxAddr Addr = 1 << AddrBits
)

var (
	// ErrOutOfRange indicates an address range that is not inside the region.
	ErrOutOfRange = errors.New("arena: address out of range")

	// ErrBadSize indicates a region size or origin that cannot be mapped.
	ErrBadSize = errors.New("arena: invalid region size")
)

// Region is a fixed-size block of memory.
type Region struct {
	origin Addr
	words  []uint64
	bytes  []byte
	unmap  func() error
	closed atomic.Bool
}

type config struct {
	origin     Addr
	heapMemory bool
}

// Option configures a Region.
type Option func(*config)

// WithOrigin sets the address of the first byte of the region.
// The origin must be non-zero and page aligned.
func WithOrigin(origin Addr) Option {
	return func(c *config) {
		c.origin = origin
	}
}

// WithHeapMemory backs the region with Go memory instead of an anonymous mapping.
func WithHeapMemory() Option {
	return func(c *config) {
		c.heapMemory = true
	}
}

// New creates a region of at least size bytes, rounded up to PageSize.
func New(size uint64, opts ...Option) (*Region, error) {
	cfg := config{origin: DefaultOrigin}
	for _, o := range opts {
		o(&cfg)
	}
	if size == 0 {
		return nil, fmt.Errorf("%w: zero size", ErrBadSize)
	}
	if cfg.origin == Nil || cfg.origin%PageSize != 0 || cfg.origin >= MaxAddr {
		return nil, fmt.Errorf("%w: origin %v must be non-zero, page aligned and below MaxAddr", ErrBadSize, cfg.origin)
	}
	size = (size + PageSize - 1) &^ (PageSize - 1)
	if size >= uint64(MaxAddr-cfg.origin) || size > uint64(^uint(0)>>1) {
		return nil, fmt.Errorf("%w: %d bytes at origin %v exceeds %d address bits",
			ErrBadSize, size, cfg.origin, AddrBits)
	}

	r := &Region{origin: cfg.origin}
	if !cfg.heapMemory {
		b, unmap, err := mapAnon(int(size))
		if err != nil {
			return nil, fmt.Errorf("arena: map %d bytes: %w", size, err)
		}
		if b != nil {
			r.bytes = b
			r.words = unsafe.Slice((*uint64)(unsafe.Pointer(unsafe.SliceData(b))), len(b)/WordSize)
			r.unmap = unmap
			return r, nil
		}
	}
	r.words = make([]uint64, size/WordSize)
	r.bytes = unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(r.words))), size)
	r.unmap = func() error { return nil }
	return r, nil
}

// Close releases the region's memory. Addresses from the region must not be
// used afterwards. Closing twice is a no-op.
func (r *Region) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := r.unmap()
	r.words = nil
	r.bytes = nil
	return err
}

// Origin returns the address of the first byte of the region.
func (r *Region) Origin() Addr { return r.origin }

// Size returns the region size in bytes.
func (r *Region) Size() uint64 { return uint64(len(r.bytes)) }

// End returns the address one past the last byte of the region.
func (r *Region) End() Addr { return r.origin + Addr(len(r.bytes)) }

// Contains reports whether [addr, addr+n) lies inside the region.
func (r *Region) Contains(addr Addr, n uint64) bool {
	if addr < r.origin {
		return false
	}
	off := uint64(addr - r.origin)
	return off <= uint64(len(r.bytes)) && n <= uint64(len(r.bytes))-off
}

// Offset returns the byte offset of addr from the origin.
func (r *Region) Offset(addr Addr) uint64 { return uint64(addr - r.origin) }

// At returns the address at byte offset off from the origin.
func (r *Region) At(off uint64) Addr { return r.origin + Addr(off) }

// Bytes returns a view of [addr, addr+n).
func (r *Region) Bytes(addr Addr, n uint64) ([]byte, error) {
	if !r.Contains(addr, n) {
		return nil, fmt.Errorf("%w: [%v, +%d) not in [%v, %v)", ErrOutOfRange, addr, n, r.origin, r.End())
	}
	off := r.Offset(addr)
	return r.bytes[off : off+n : off+n], nil
}

// Raw returns the whole region as a byte slice.
func (r *Region) Raw() []byte { return r.bytes }
