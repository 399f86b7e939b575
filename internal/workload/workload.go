// Package workload drives an allocator with a random alloc/free mix and
// checks every live object for corruption.
package workload

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joshuapare/slamkit/internal/arena"
	"github.com/joshuapare/slamkit/internal/logger"
)

// ErrCorrupted indicates a live object whose canary bytes changed.
var ErrCorrupted = errors.New("workload: canary overwritten")

// Heap is the allocator surface the workload needs.
type Heap interface {
	Alloc(n uint64) (arena.Addr, error)
	Free(p arena.Addr) error
	Bytes(p arena.Addr, n uint64) ([]byte, error)
}

// Config describes a run.
type Config struct {
	Workers int   // concurrent goroutines
	Ops     int   // operations per worker
	MaxSize int   // allocation sizes are uniform in [0, MaxSize)
	MaxLive int   // objects a worker holds before it must free
	Seed    int64 // worker w uses Seed+w
}

// DefaultConfig is a moderate mixed workload.
var DefaultConfig = Config{
	Workers: 8,
	Ops:     10000,
	MaxSize: 2048,
	MaxLive: 64,
	Seed:    1,
}

// Result summarizes a run.
type Result struct {
	Allocs   uint64        `json:"allocs"`
	Frees    uint64        `json:"frees"`
	Bytes    uint64        `json:"bytes"`
	Duration time.Duration `json:"duration"`
}

// Run executes cfg against h. Every object allocated is freed before Run
// returns, unless a worker fails; the first failure cancels the others.
func Run(ctx context.Context, h Heap, cfg Config) (Result, error) {
	if cfg.Workers < 1 || cfg.Ops < 0 || cfg.MaxSize < 1 || cfg.MaxLive < 1 {
		return Result{}, fmt.Errorf("workload: invalid config %+v", cfg)
	}
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var allocs, frees, bytes atomic.Uint64
	start := time.Now()

	var wg sync.WaitGroup
	for w := range cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wk := worker{
				id:   w,
				h:    h,
				cfg:  cfg,
				rng:  rand.New(rand.NewSource(cfg.Seed + int64(w))),
				seed: byte(w * 31),
			}
			if err := wk.run(ctx); err != nil {
				cancel(err)
			}
			allocs.Add(wk.allocs)
			frees.Add(wk.frees)
			bytes.Add(wk.bytes)
		}()
	}
	wg.Wait()

	res := Result{
		Allocs:   allocs.Load(),
		Frees:    frees.Load(),
		Bytes:    bytes.Load(),
		Duration: time.Since(start),
	}
	if err := context.Cause(ctx); err != nil {
		return res, err
	}
	logger.Debug("workload finished", "workers", cfg.Workers, "allocs", res.Allocs, "duration", res.Duration)
	return res, nil
}

type object struct {
	p    arena.Addr
	n    uint64
	seed byte
}

type worker struct {
	id   int
	h    Heap
	cfg  Config
	rng  *rand.Rand
	seed byte
	live []object

	allocs, frees, bytes uint64
}

func (w *worker) run(ctx context.Context) error {
	defer w.drain()
	for i := range w.cfg.Ops {
		if i%256 == 0 && ctx.Err() != nil {
			return nil
		}
		if len(w.live) > 0 && (len(w.live) >= w.cfg.MaxLive || w.rng.Intn(2) == 0) {
			if err := w.release(w.rng.Intn(len(w.live))); err != nil {
				return err
			}
			continue
		}
		if err := w.alloc(); err != nil {
			return err
		}
	}
	for len(w.live) > 0 {
		if err := w.release(len(w.live) - 1); err != nil {
			return err
		}
	}
	return nil
}

func (w *worker) alloc() error {
	n := uint64(w.rng.Intn(w.cfg.MaxSize))
	p, err := w.h.Alloc(n)
	if err != nil {
		return fmt.Errorf("worker %d: alloc %d: %w", w.id, n, err)
	}
	b, err := w.h.Bytes(p, n)
	if err != nil {
		return fmt.Errorf("worker %d: view %v: %w", w.id, p, err)
	}
	w.seed++
	Fill(b, w.seed)
	w.live = append(w.live, object{p: p, n: n, seed: w.seed})
	w.allocs++
	w.bytes += n
	return nil
}

func (w *worker) release(i int) error {
	obj := w.live[i]
	w.live[i] = w.live[len(w.live)-1]
	w.live = w.live[:len(w.live)-1]

	b, err := w.h.Bytes(obj.p, obj.n)
	if err != nil {
		return fmt.Errorf("worker %d: view %v: %w", w.id, obj.p, err)
	}
	if !Intact(b, obj.seed) {
		return fmt.Errorf("%w: worker %d object %v (%d bytes)", ErrCorrupted, w.id, obj.p, obj.n)
	}
	if err := w.h.Free(obj.p); err != nil {
		return fmt.Errorf("worker %d: free %v: %w", w.id, obj.p, err)
	}
	w.frees++
	return nil
}

// drain frees whatever the worker still holds, ignoring failures.
func (w *worker) drain() {
	for _, obj := range w.live {
		if w.h.Free(obj.p) == nil {
			w.frees++
		}
	}
	w.live = nil
}

// Fill writes the canary pattern for seed into b.
func Fill(b []byte, seed byte) {
	for i := range b {
		b[i] = seed ^ byte(i*13)
	}
}

// Intact reports whether b holds the canary pattern for seed.
func Intact(b []byte, seed byte) bool {
	for i := range b {
		if b[i] != seed^byte(i*13) {
			return false
		}
	}
	return true
}
