// Package cpu identifies the processor the caller is running on.
//
// The allocator only uses the result as an index into per-CPU arrays, so a
// Source may return any value in [0, MaxCPUs). Nothing assumes the caller
// stays on the same CPU between reading the index and using it.
package cpu

import "sync/atomic"

// MaxCPUs is the size of every per-CPU array.
const MaxCPUs = 64

// Source reports the current CPU index.
type Source interface {
	ID() int
}

// SourceFunc adapts a function to a Source.
type SourceFunc func() int

// ID calls f.
func (f SourceFunc) ID() int { return f() }

// Current returns the Source backed by the operating system.
func Current() Source { return osSource{} }

type osSource struct{}

func (osSource) ID() int { return fold(currentID()) }

func fold(id int) int {
	if id < 0 {
		return 0
	}
	return id % MaxCPUs
}

// Fixed is a Source whose index is set explicitly. The zero value reports CPU 0.
type Fixed struct {
	id atomic.Int32
}

// NewFixed returns a Fixed source reporting id.
func NewFixed(id int) *Fixed {
	f := &Fixed{}
	f.Set(id)
	return f
}

// ID returns the configured index.
func (f *Fixed) ID() int { return int(f.id.Load()) }

// Set changes the reported index. Values outside [0, MaxCPUs) are folded in.
func (f *Fixed) Set(id int) { f.id.Store(int32(fold(id))) }

// RoundRobin is a Source that moves to the next of n CPUs on every call.
type RoundRobin struct {
	n    int
	next atomic.Uint64
}

// NewRoundRobin returns a RoundRobin over n CPUs, clamped to [1, MaxCPUs].
func NewRoundRobin(n int) *RoundRobin {
	if n < 1 {
		n = 1
	}
	if n > MaxCPUs {
		n = MaxCPUs
	}
	return &RoundRobin{n: n}
}

// ID returns the next CPU index.
func (r *RoundRobin) ID() int {
	return int((r.next.Add(1) - 1) % uint64(r.n))
}
