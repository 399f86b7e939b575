package slam

import (
	"bytes"
	"errors"
	"log/slog"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/slamkit/base"
	"github.com/joshuapare/slamkit/internal/arena"
	"github.com/joshuapare/slamkit/internal/workload"
)

func TestAlloc_RoundTrip(t *testing.T) {
	a, _ := newTestAllocator(t, 16<<20)

	for i, n := range []uint64{0, 1, 7, 8, 9, 100, 4095, 4096, 4097, 65536, 1<<20 + 3} {
		p, err := a.Alloc(n)
		require.NoError(t, err, "n=%d", n)
		require.NotEqual(t, arena.Nil, p)

		buf, err := a.Bytes(p, n)
		require.NoError(t, err)
		require.Len(t, buf, int(n))
		workload.Fill(buf, byte(i))

		again, err := a.Bytes(p, n)
		require.NoError(t, err)
		assert.True(t, workload.Intact(again, byte(i)), "n=%d data changed", n)

		lo, hi, err := a.SizeBounds(p)
		require.NoError(t, err)
		assert.LessOrEqual(t, n, hi, "n=%d", n)
		if lo > 0 {
			assert.Greater(t, n, lo, "n=%d", n)
		}
	}
}

func TestAlloc_Disjoint(t *testing.T) {
	a, src := newTestAllocator(t, 32<<20)
	rng := rand.New(rand.NewSource(1))

	type span struct{ start, end arena.Addr }
	var spans []span
	for i := range 2000 {
		src.Set(i % 3)
		n := uint64(rng.Intn(3000))
		p, err := a.Alloc(n)
		require.NoError(t, err)
		// The header belongs to the allocation too.
		spans = append(spans, span{p - HeaderSize, p + arena.Addr(n)})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	for i := 1; i < len(spans); i++ {
		require.LessOrEqual(t, spans[i-1].end, spans[i].start,
			"allocation at %v overlaps allocation at %v", spans[i].start, spans[i-1].start)
	}
}

func TestAlloc_LIFOReuse(t *testing.T) {
	a, _ := newTestAllocator(t, 1<<20)

	p, err := a.Alloc(100)
	require.NoError(t, err)
	require.NoError(t, a.Free(p))

	q, err := a.Alloc(100)
	require.NoError(t, err)
	assert.Equal(t, p, q)

	// Any request in the same class gets the same object.
	require.NoError(t, a.Free(q))
	r, err := a.Alloc(120)
	require.NoError(t, err)
	assert.Equal(t, p, r)
}

func TestAlloc_PerCPULists(t *testing.T) {
	a, src := newTestAllocator(t, 1<<20)

	src.Set(0)
	p, err := a.Alloc(100)
	require.NoError(t, err)

	// Freed on CPU 1, the object lands on CPU 1's list.
	src.Set(1)
	require.NoError(t, a.Free(p))
	assert.Equal(t, 1, a.Cache(7).Len(1))

	src.Set(0)
	q, err := a.Alloc(100)
	require.NoError(t, err)
	assert.NotEqual(t, p, q, "CPU 0 does not see CPU 1's list")

	src.Set(1)
	r, err := a.Alloc(100)
	require.NoError(t, err)
	assert.Equal(t, p, r)
	assert.Equal(t, 0, a.Cache(7).Len(1))
}

func TestAllocSlab_Boundary(t *testing.T) {
	a, src := newTestAllocator(t, 1<<20)

	t.Run("small objects share a slab", func(t *testing.T) {
		src.Set(2)
		_, err := a.Alloc(100)
		require.NoError(t, err)
		c := a.Cache(7)
		assert.Equal(t, SlabMinimumSize/128-1, c.Len(2))
		assert.Equal(t, uint64(1), c.slabs.Load())
	})

	t.Run("object filling the slab links nothing", func(t *testing.T) {
		src.Set(3)
		p, err := a.Alloc(SlabMinimumSize - HeaderSize)
		require.NoError(t, err)
		c := a.Cache(12)
		assert.Equal(t, 0, c.Len(3))
		assert.Equal(t, uint64(0), a.Region().Offset(p-HeaderSize)%SlabMinimumSize)
	})

	t.Run("large object gets a dedicated slab", func(t *testing.T) {
		src.Set(4)
		_, err := a.Alloc(5000)
		require.NoError(t, err)
		c := a.Cache(13)
		assert.Equal(t, 0, c.Len(4))
		assert.Equal(t, uint64(1), c.slabs.Load())
	})

	t.Run("list is consumed before carving again", func(t *testing.T) {
		src.Set(5)
		c := a.Cache(5)
		for range SlabMinimumSize / 32 {
			_, err := a.Alloc(20)
			require.NoError(t, err)
		}
		assert.Equal(t, uint64(1), c.slabs.Load())
		assert.Equal(t, 0, c.Len(5))

		_, err := a.Alloc(20)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), c.slabs.Load())
		assert.Equal(t, SlabMinimumSize/32-1, c.Len(5))
	})
}

func TestAllocSlab_ChainLinks(t *testing.T) {
	a, _ := newTestAllocator(t, 1<<20)

	p, err := a.Alloc(200)
	require.NoError(t, err)
	slab := p - HeaderSize
	c := a.Cache(8)
	mem := a.Region()

	// The carved chain runs through the slab in address order, the first
	// object excluded.
	prev := arena.Nil
	node := headNode(c.partial[0].word.Load())
	for i := 1; node != arena.Nil; i++ {
		assert.Equal(t, slab+arena.Addr(i*256), node)
		prev = node
		node = mem.LoadAddr(node + nextOffset)
	}
	assert.Equal(t, slab+arena.Addr(SlabMinimumSize-256), prev)
}

func TestFreeSlab_KeepsObjects(t *testing.T) {
	a, _ := newTestAllocator(t, 1<<20)

	p, err := a.Alloc(100)
	require.NoError(t, err)
	require.NoError(t, a.Free(p))
	c := a.Cache(7)
	before := c.Len(0)

	// Slabs are never handed back, so the list and counters are unchanged.
	c.freeSlab(p - HeaderSize)
	assert.Equal(t, before, c.Len(0))
	assert.Equal(t, uint64(1), c.slabs.Load())
	_, err = a.Verify()
	require.NoError(t, err)
}

func TestFree_WritesOnlyHeader(t *testing.T) {
	a, _ := newTestAllocator(t, 1<<20)

	p, err := a.Alloc(100)
	require.NoError(t, err)
	b, err := a.Bytes(p, 120)
	require.NoError(t, err)
	workload.Fill(b, 3)

	require.NoError(t, a.Free(p))
	data, err := a.Region().Bytes(p, 120)
	require.NoError(t, err)
	assert.True(t, workload.Intact(data, 3), "free wrote past the header")
}

func TestAlloc_TooLarge(t *testing.T) {
	a, _ := newTestAllocator(t, 1<<20)

	_, err := a.Alloc(1 << 31)
	require.ErrorIs(t, err, ErrTooLarge)
	_, err = a.Alloc(^uint64(0))
	require.ErrorIs(t, err, ErrTooLarge)

	assert.Panics(t, func() { a.MustAlloc(1 << 31) })
	assert.NotPanics(t, func() { a.MustAlloc(1) })
	assert.Len(t, a.Stats().Classes, 1, "failed requests carve nothing")
}

func TestAlloc_BaseExhausted(t *testing.T) {
	a, _ := newTestAllocator(t, SlabMinimumSize)

	_, err := a.Alloc(SlabMinimumSize - HeaderSize)
	require.NoError(t, err)

	_, err = a.Alloc(10)
	require.ErrorIs(t, err, base.ErrExhausted)
	assert.Contains(t, err.Error(), "class 5")
}

func TestFree_BadPointer(t *testing.T) {
	a, _ := newTestAllocator(t, 1<<20)
	p, err := a.Alloc(64)
	require.NoError(t, err)

	tests := []struct {
		name string
		ptr  arena.Addr
	}{
		{"nil", arena.Nil},
		{"header size", HeaderSize},
		{"below region", a.Region().Origin() - 64},
		{"past region", a.Region().End() + 8},
		{"misaligned", p + 1},
		{"interior", p + 16},
		{"never allocated", a.Region().Origin() + 512<<10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, a.Free(tt.ptr), ErrBadPointer)
			_, _, err := a.SizeBounds(tt.ptr)
			require.ErrorIs(t, err, ErrBadPointer)
		})
	}

	require.NoError(t, a.Free(p))
}

func TestFree_Twice(t *testing.T) {
	a, _ := newTestAllocator(t, 1<<20)

	p, err := a.Alloc(64)
	require.NoError(t, err)
	require.NoError(t, a.Free(p))

	err = a.Free(p)
	require.ErrorIs(t, err, ErrBadPointer)
	assert.False(t, errors.Is(err, ErrDoubleFree))
}

func TestFree_History(t *testing.T) {
	a, src := newTestAllocator(t, 1<<20, WithFreeHistory(16))

	p, err := a.Alloc(64)
	require.NoError(t, err)
	src.Set(6)
	require.NoError(t, a.Free(p))

	err = a.Free(p)
	require.ErrorIs(t, err, ErrDoubleFree)
	assert.Contains(t, err.Error(), "cpu 6")

	// Once handed out again the address is live and can be freed.
	q, err := a.Alloc(64)
	require.NoError(t, err)
	require.Equal(t, p, q)
	require.NoError(t, a.Free(q))

	// Unknown garbage is still only a bad pointer.
	require.ErrorIs(t, a.Free(a.Region().Origin()+512<<10), ErrBadPointer)
}

func TestWithFreeHistory_Invalid(t *testing.T) {
	mem, err := arena.New(arena.PageSize, arena.WithHeapMemory())
	require.NoError(t, err)
	defer mem.Close()

	_, err = New(mem, base.NewLinear(mem), WithFreeHistory(0))
	require.Error(t, err)

	_, err = New(mem, base.NewLinear(mem), WithCPUSource(nil))
	require.Error(t, err)

	_, err = New(nil, nil)
	require.Error(t, err)
}

func TestBytes_Capacity(t *testing.T) {
	a, _ := newTestAllocator(t, 1<<20)

	p, err := a.Alloc(100)
	require.NoError(t, err)
	_, hi, err := a.SizeBounds(p)
	require.NoError(t, err)
	assert.Equal(t, uint64(120), hi)

	b, err := a.Bytes(p, hi)
	require.NoError(t, err)
	assert.Len(t, b, 120)

	_, err = a.Bytes(p, hi+1)
	require.ErrorIs(t, err, arena.ErrOutOfRange)
}

func TestFree_DataNotTouchedWhileLive(t *testing.T) {
	a, _ := newTestAllocator(t, 1<<20)

	var live []arena.Addr
	for i := range 64 {
		p, err := a.Alloc(48)
		require.NoError(t, err)
		b, err := a.Bytes(p, 48)
		require.NoError(t, err)
		workload.Fill(b, byte(i))
		live = append(live, p)
	}
	// Free every other object; the survivors keep their contents.
	for i := 0; i < len(live); i += 2 {
		require.NoError(t, a.Free(live[i]))
	}
	for i := 1; i < len(live); i += 2 {
		b, err := a.Bytes(live[i], 48)
		require.NoError(t, err)
		assert.True(t, workload.Intact(b, byte(i)), "object %d corrupted", i)
	}
}

func TestStats(t *testing.T) {
	a, _ := newTestAllocator(t, 1<<20)

	var ps []arena.Addr
	for range 10 {
		p, err := a.Alloc(100)
		require.NoError(t, err)
		ps = append(ps, p)
	}
	for _, p := range ps[:4] {
		require.NoError(t, a.Free(p))
	}
	_, err := a.Alloc(5000)
	require.NoError(t, err)

	st := a.Stats()
	require.Len(t, st.Classes, 2)
	assert.Equal(t, ClassStats{Class: 7, ObjectSize: 128, Slabs: 1, Allocs: 10, Frees: 4}, st.Classes[0])
	assert.Equal(t, uint64(6), st.Classes[0].Live())
	assert.Equal(t, 13, st.Classes[1].Class)
	assert.Equal(t, uint64(2), st.Slabs)
	assert.Equal(t, uint64(4096+8192), st.SlabBytes)
	assert.Equal(t, uint64(11), st.Allocs)
	assert.Equal(t, uint64(4), st.Frees)
	assert.Equal(t, uint64(6*128+8192), st.LiveBytes)
}

func TestWithLogger_SlabCarving(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	a, _ := newTestAllocator(t, 1<<20, WithLogger(l))

	_, err := a.Alloc(100)
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "carved slab")
	assert.Contains(t, out, "class=7")
	assert.Contains(t, out, "linked=31")

	buf.Reset()
	_, err = a.Alloc(100)
	require.NoError(t, err)
	assert.Empty(t, buf.String(), "the fast path does not log")
}

func TestWithLogger_BaseExhausted(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	a, _ := newTestAllocator(t, 2*SlabMinimumSize, WithLogger(l))

	_, err := a.Alloc(5000)
	require.NoError(t, err)
	buf.Reset()

	_, err = a.Alloc(5000)
	require.ErrorIs(t, err, base.ErrExhausted)
	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, `msg="base exhausted"`)
	assert.Contains(t, out, "class=13")
	assert.Contains(t, out, "slab_size=8192")
}

func TestNewStatic(t *testing.T) {
	a, err := NewStatic(1 << 20)
	require.NoError(t, err)

	p, err := a.Alloc(1000)
	require.NoError(t, err)
	b, err := a.Bytes(p, 1000)
	require.NoError(t, err)
	workload.Fill(b, 9)
	require.NoError(t, a.Free(p))
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}
