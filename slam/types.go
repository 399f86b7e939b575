package slam

import "github.com/joshuapare/slamkit/internal/arena"

const (
	// NumClasses is the number of power-of-two size classes.
	NumClasses = 32

	// SlabMinimumSize is the smallest slab requested from the Base.
	SlabMinimumSize = 4096

	// HeaderSize is the size of the allocation header preceding every
	// returned address.
	HeaderSize = arena.WordSize

	// MinObjectSize is the smallest object a Cache manages: the header and
	// one word-aligned word of data.
	MinObjectSize = minNodeSize
)

// Base supplies the slabs caches are carved from. Implementations must be
// safe for concurrent use.
type Base interface {
	// Alloc returns the address of size contiguous bytes. Blocks of at least
	// SlabMinimumSize must be SlabMinimumSize aligned.
	Alloc(size uint64) (arena.Addr, error)

	// Free returns a block obtained from Alloc.
	Free(addr arena.Addr, size uint64) error
}

// Interface is the capability the allocator exposes to its callers.
type Interface interface {
	Alloc(n uint64) (arena.Addr, error)
	Free(p arena.Addr) error
	SizeBounds(p arena.Addr) (minUsable, maxUsable uint64, err error)
}

var _ Interface = (*Allocator)(nil)
