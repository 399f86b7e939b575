package slam

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/slamkit/base"
	"github.com/joshuapare/slamkit/internal/arena"
	"github.com/joshuapare/slamkit/internal/cpu"
)

// newTestAllocator builds an allocator over a Go-memory region of size bytes
// with a Fixed CPU source the test can steer.
func newTestAllocator(t testing.TB, size uint64, opts ...Option) (*Allocator, *cpu.Fixed) {
	t.Helper()
	mem, err := arena.New(size, arena.WithHeapMemory())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mem.Close() })

	src := cpu.NewFixed(0)
	a, err := New(mem, base.NewLinear(mem), append([]Option{WithCPUSource(src)}, opts...)...)
	require.NoError(t, err)
	return a, src
}
