package slam

import (
	"fmt"
	"log/slog"

	"github.com/joshuapare/slamkit/base"
	"github.com/joshuapare/slamkit/internal/arena"
	"github.com/joshuapare/slamkit/internal/cpu"
	"github.com/joshuapare/slamkit/internal/logger"
)

// Allocator dispatches requests to one Cache per size class.
//
// Allocator is safe for concurrent use. It must not be copied after first use.
type Allocator struct {
	caches [NumClasses]Cache

	mem     *arena.Region
	base    Base
	cpus    cpu.Source
	log     *slog.Logger
	history *freeHistory

	// owned is closed by Close when the allocator created its own region.
	owned *arena.Region
}

// New creates an allocator handing out objects from mem, with slabs obtained
// from b. Every block b returns must lie inside mem.
func New(mem *arena.Region, b Base, opts ...Option) (*Allocator, error) {
	if mem == nil || b == nil {
		return nil, fmt.Errorf("slam: region and base are required")
	}
	a := &Allocator{
		mem:  mem,
		base: b,
		cpus: cpu.Current(),
		log:  logger.L,
	}
	for _, o := range opts {
		if err := o(a); err != nil {
			return nil, err
		}
	}
	for i := range a.caches {
		a.caches[i].init(i, mem, b, a.log)
	}
	return a, nil
}

// NewStatic creates an allocator over a freshly mapped region of size bytes
// carved by a base.Linear. Close releases the region.
func NewStatic(size uint64, opts ...Option) (*Allocator, error) {
	mem, err := arena.New(size)
	if err != nil {
		return nil, err
	}
	a, err := New(mem, base.NewLinear(mem), opts...)
	if err != nil {
		_ = mem.Close()
		return nil, err
	}
	a.owned = mem
	return a, nil
}

// Close releases the region if the allocator created it. Addresses returned
// by the allocator must not be used afterwards.
func (a *Allocator) Close() error {
	if a.owned == nil {
		return nil
	}
	return a.owned.Close()
}

// Region returns the memory the allocator hands out.
func (a *Allocator) Region() *arena.Region { return a.mem }

// Cache returns the cache for class.
func (a *Allocator) Cache(class int) *Cache { return &a.caches[class] }

func (a *Allocator) cpuID() int {
	id := a.cpus.ID()
	if id < 0 || id >= cpu.MaxCPUs {
		return 0
	}
	return id
}

// Alloc returns the address of at least n usable bytes.
//
// It fails with ErrTooLarge when n does not fit the largest size class and
// with the Base's error (for example base.ErrExhausted) when a new slab is
// needed and the Base cannot supply one.
func (a *Allocator) Alloc(n uint64) (arena.Addr, error) {
	class, err := ClassFor(n)
	if err != nil {
		return arena.Nil, err
	}
	node, err := a.caches[class].alloc(a.cpuID())
	if err != nil {
		return arena.Nil, err
	}
	p := dataFromNode(node)
	if a.history != nil {
		a.history.forget(p)
	}
	return p, nil
}

// MustAlloc is like Alloc but panics on failure.
func (a *Allocator) MustAlloc(n uint64) arena.Addr {
	p, err := a.Alloc(n)
	if err != nil {
		panic(err)
	}
	return p
}

// Free returns p to the allocator.
//
// p must come from Alloc and not have been freed since. Free rejects
// addresses outside the region or without a valid header with ErrBadPointer
// (ErrDoubleFree when the free history recognizes them), but it cannot catch
// every misuse: a pointer freed twice concurrently corrupts the free list.
func (a *Allocator) Free(p arena.Addr) error {
	c, err := a.owner(p)
	if err != nil {
		if a.history != nil {
			if rec, ok := a.history.lookup(p); ok {
				return fmt.Errorf("%w: %v (class %d, already freed on cpu %d)", ErrDoubleFree, p, rec.class, rec.cpu)
			}
		}
		return err
	}
	cpuID := a.cpuID()
	if a.history != nil {
		a.history.record(p, c.class, cpuID)
	}
	c.free(cpuID, nodeFromData(p))
	return nil
}

// SizeBounds returns the range of request sizes that would have produced an
// allocation in p's size class: every n with minUsable < n <= maxUsable (or
// n <= maxUsable at the smallest class). maxUsable is p's actual capacity.
func (a *Allocator) SizeBounds(p arena.Addr) (minUsable, maxUsable uint64, err error) {
	c, err := a.owner(p)
	if err != nil {
		return 0, 0, err
	}
	minUsable, maxUsable = ClassBounds(c.class)
	return minUsable, maxUsable, nil
}

// Bytes returns the first n bytes of the allocation at p.
func (a *Allocator) Bytes(p arena.Addr, n uint64) ([]byte, error) {
	c, err := a.owner(p)
	if err != nil {
		return nil, err
	}
	if capacity := c.objectSize - HeaderSize; n > capacity {
		return nil, fmt.Errorf("slam: %d bytes at %v exceeds capacity %d: %w", n, p, capacity, arena.ErrOutOfRange)
	}
	return a.mem.Bytes(p, n)
}

// owner validates p's header and returns the cache it belongs to.
func (a *Allocator) owner(p arena.Addr) (*Cache, error) {
	if !arena.Aligned(p) || p < HeaderSize || !a.mem.Contains(nodeFromData(p), MinObjectSize) {
		return nil, fmt.Errorf("%w: %v outside heap [%v, %v)", ErrBadPointer, p, a.mem.Origin(), a.mem.End())
	}
	node := nodeFromData(p)
	class, ok := headerClass(a.mem.Load(node))
	if !ok {
		return nil, fmt.Errorf("%w: %v has no allocation header", ErrBadPointer, p)
	}
	c := &a.caches[class]
	align := min(c.objectSize, SlabMinimumSize)
	if a.mem.Offset(node)%align != 0 || !a.mem.Contains(node, c.objectSize) {
		return nil, fmt.Errorf("%w: %v is not a class %d object", ErrBadPointer, p, class)
	}
	return c, nil
}
