package slam

import (
	"errors"
	"log/slog"

	"github.com/joshuapare/slamkit/internal/cpu"
)

// Option configures an Allocator.
type Option func(*Allocator) error

// WithCPUSource sets where the allocator learns the current CPU index.
// Tests use cpu.Fixed or cpu.RoundRobin to simulate several CPUs.
func WithCPUSource(src cpu.Source) Option {
	return func(a *Allocator) error {
		if src == nil {
			return errors.New("slam: nil CPU source")
		}
		a.cpus = src
		return nil
	}
}

// WithLogger sets the logger for slow-path events. Defaults to logger.L.
func WithLogger(l *slog.Logger) Option {
	return func(a *Allocator) error {
		if l == nil {
			return errors.New("slam: nil logger")
		}
		a.log = l
		return nil
	}
}

// WithFreeHistory remembers the last n freed addresses so that freeing one of
// them again reports ErrDoubleFree instead of ErrBadPointer. It adds a lock
// to every Alloc and Free and is meant for debugging.
func WithFreeHistory(n int) Option {
	return func(a *Allocator) error {
		h, err := newFreeHistory(n)
		if err != nil {
			return err
		}
		a.history = h
		return nil
	}
}
