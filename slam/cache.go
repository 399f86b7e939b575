package slam

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/joshuapare/slamkit/internal/arena"
	"github.com/joshuapare/slamkit/internal/cpu"
)

// Cache allocates objects of one size class.
//
// Each CPU has its own free list ("partial list", since it may hold objects
// from several partly used slabs). class, objectSize, mem and base never
// change after construction.
type Cache struct {
	class      int
	objectSize uint64
	mem        *arena.Region
	base       Base
	log        *slog.Logger

	partial [cpu.MaxCPUs]listHead

	slabs      atomic.Uint64
	allocs     atomic.Uint64
	frees      atomic.Uint64
	casRetries atomic.Uint64
}

// listHead is padded to a cache line so CPUs do not contend on each other's heads.
type listHead struct {
	word atomic.Uint64
	_    [56]byte
}

func (c *Cache) init(class int, mem *arena.Region, base Base, log *slog.Logger) {
	c.class = class
	c.objectSize = ClassSize(class)
	c.mem = mem
	c.base = base
	c.log = log
}

// Class returns the size class index.
func (c *Cache) Class() int { return c.class }

// ObjectSize returns the object size in bytes, header included.
func (c *Cache) ObjectSize() uint64 { return c.objectSize }

// alloc pops an object from cpuID's list, carving a slab when the list is
// empty, and stamps it as used by this cache. It returns the node address.
func (c *Cache) alloc(cpuID int) (arena.Addr, error) {
	head := &c.partial[cpuID].word

	var node arena.Addr
	for {
		old := head.Load()
		node = headNode(old)
		if node == arena.Nil {
			var err error
			node, err = c.allocSlab(cpuID)
			if err != nil {
				return arena.Nil, err
			}
			break
		}
		// node may be popped and reused by someone else before the CAS; the
		// successor read here is then garbage, but the CAS fails on the tag.
		next := c.mem.LoadAddr(node + nextOffset)
		if head.CompareAndSwap(old, nextHead(old, next)) {
			break
		}
		c.casRetries.Add(1)
	}

	c.mem.Store(node, usedHeader(c.class))
	c.allocs.Add(1)
	return node, nil
}

// free pushes node onto cpuID's list.
func (c *Cache) free(cpuID int, node arena.Addr) {
	head := &c.partial[cpuID].word

	for {
		old := head.Load()
		c.mem.StoreAddr(node+nextOffset, headNode(old))
		if head.CompareAndSwap(old, nextHead(old, node)) {
			break
		}
		c.casRetries.Add(1)
	}
	c.frees.Add(1)
}

// allocSlab obtains a slab from the base, links every object but the first
// onto cpuID's list, and returns the first object.
//
// The chain is fully linked before it is published. Nothing writes to a node
// after the CAS that publishes it, since another goroutine may already have
// popped it.
func (c *Cache) allocSlab(cpuID int) (arena.Addr, error) {
	size := slabSize(c.objectSize)

	slab, err := c.base.Alloc(size)
	if err != nil {
		c.log.Warn("base exhausted",
			"class", c.class,
			"slab_size", size,
			"cpu", cpuID,
			"slabs", c.slabs.Load(),
			"err", err)
		return arena.Nil, fmt.Errorf("slam: carve %d-byte slab for class %d: %w", size, c.class, err)
	}
	if !c.mem.Contains(slab, size) {
		return arena.Nil, fmt.Errorf("slam: base returned slab %v outside the region: %w", slab, arena.ErrOutOfRange)
	}

	first, last := arena.Nil, arena.Nil
	end := slab + arena.Addr(size)
	for p := slab + arena.Addr(c.objectSize); p < end; p += arena.Addr(c.objectSize) {
		if first == arena.Nil {
			first = p
		} else {
			c.mem.StoreAddr(last+nextOffset, p)
		}
		last = p
	}

	if first != arena.Nil {
		head := &c.partial[cpuID].word
		for {
			old := head.Load()
			c.mem.StoreAddr(last+nextOffset, headNode(old))
			if head.CompareAndSwap(old, nextHead(old, first)) {
				break
			}
			c.casRetries.Add(1)
		}
	}

	n := c.slabs.Add(1)
	c.log.Debug("carved slab",
		"class", c.class,
		"object_size", c.objectSize,
		"slab", slab,
		"slab_size", size,
		"linked", size/c.objectSize-1,
		"cpu", cpuID,
		"slabs", n)
	return slab, nil
}

// freeSlab would return an empty slab to the base. Slabs are never reclaimed:
// that needs a per-slab live count and a way to pull every one of the slab's
// objects off all CPU lists at once, neither of which exists.
func (c *Cache) freeSlab(arena.Addr) {}

// Len counts the objects on cpuID's list. It walks the list and must not run
// concurrently with Alloc or Free.
func (c *Cache) Len(cpuID int) int {
	n := 0
	for node := headNode(c.partial[cpuID].word.Load()); node != arena.Nil; node = c.mem.LoadAddr(node + nextOffset) {
		n++
	}
	return n
}
