// Package slam provides a size-classed, per-CPU slab allocator.
//
// # Overview
//
// The allocator hands out objects of arbitrary size from an arena.Region. It
// keeps one Cache per power-of-two size class; each Cache carves whole slabs
// obtained from a Base allocator into equal objects and threads the idle ones
// onto per-CPU lock-free free lists. There is no allocator-wide lock: the fast
// path is a single compare-and-swap on the current CPU's list head.
//
// # Allocator Interface
//
//   - Alloc(n): allocate n usable bytes, returning an arena.Addr
//   - Free(p): return an allocation to the current CPU's free list
//   - SizeBounds(p): the range of request sizes that map to p's size class
//
// # Usage Example
//
//	a, err := slam.NewStatic(4 << 20)
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//
//	p, err := a.Alloc(100)
//	if err != nil {
//	    return err
//	}
//	buf, _ := a.Bytes(p, 100)
//	copy(buf, payload)
//
//	err = a.Free(p)
//
// # Size Classes
//
// Class i holds objects of exactly 1<<i bytes, for i in [0, 32). A request of
// n bytes is padded with an 8-byte header, raised to MinObjectSize, and
// rounded up to the next power of two:
//
//	Alloc(0)    → 16 B object (class 4)
//	Alloc(100)  → 128 B object (class 7)
//	Alloc(4088) → 4 KB object (class 12, one per slab)
//	Alloc(4089) → 8 KB object (class 13, dedicated slab)
//
// Classes below MinObjectSize exist but are never selected. Requests that
// would need a class beyond 31 fail with ErrTooLarge.
//
// # Object Layout
//
// Every object starts with one header word. While the object is allocated the
// word identifies its Cache, and the caller's data begins right after it:
//
//	+--------+---------------------------+
//	| header | data (returned address)   |
//	+--------+---------------------------+
//
// While the object is idle the header word holds the next object on its
// free list, and the rest of the object is left untouched:
//
//	+--------+---------------------------+
//	| next   | unused                    |
//	+--------+---------------------------+
//
// Free recovers the size class from the header alone; there is no side table.
//
// # Slabs
//
// A slab is max(objectSize, SlabMinimumSize) bytes, so small objects share a
// 4 KB slab and large objects get a dedicated one-object slab. When a CPU's
// list is empty the Cache carves a new slab, links every object except the
// first into a chain, splices the chain onto the list and returns the first
// object directly. Slabs are never returned to the Base.
//
// # Thread Safety
//
// Alloc, Free, SizeBounds and Bytes are safe for concurrent use. Each list
// head carries a modification counter in the same word as the address, so a
// pop that raced with a pop and re-push of the same node fails its CAS instead
// of installing a stale successor. Verify and Cache.Len walk the lists and
// must only run while no other goroutine is using the allocator.
//
// Objects migrate between CPU lists: Free pushes onto the list of the CPU the
// freeing goroutine runs on, not the one that allocated the object.
package slam
