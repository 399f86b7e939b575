package slam

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/joshuapare/slamkit/internal/arena"
)

// freeRecord describes where an address was last freed.
type freeRecord struct {
	class int
	cpu   int
}

// freeHistory is a bounded set of recently freed data addresses.
type freeHistory struct {
	recent *lru.Cache[arena.Addr, freeRecord]
}

func newFreeHistory(n int) (*freeHistory, error) {
	c, err := lru.New[arena.Addr, freeRecord](n)
	if err != nil {
		return nil, fmt.Errorf("slam: free history: %w", err)
	}
	return &freeHistory{recent: c}, nil
}

func (h *freeHistory) record(p arena.Addr, class, cpuID int) {
	h.recent.Add(p, freeRecord{class: class, cpu: cpuID})
}

// forget drops p once it has been handed out again.
func (h *freeHistory) forget(p arena.Addr) {
	h.recent.Remove(p)
}

func (h *freeHistory) lookup(p arena.Addr) (freeRecord, bool) {
	return h.recent.Peek(p)
}
