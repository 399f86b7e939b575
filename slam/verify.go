package slam

import (
	"fmt"

	"github.com/joshuapare/slamkit/internal/arena"
	"github.com/joshuapare/slamkit/internal/cpu"
)

// ListReport counts the free objects found by Verify.
type ListReport struct {
	// Free[class][cpu] is the length of that CPU's list.
	Free [NumClasses][cpu.MaxCPUs]int
}

// Total returns the number of free objects in class.
func (r *ListReport) Total(class int) int {
	n := 0
	for _, l := range r.Free[class] {
		n += l
	}
	return n
}

// Verify walks every free list and checks that
//
//   - each node lies inside the region at an object boundary of its class,
//   - no node carries an allocation header,
//   - no list has a cycle, and
//   - no node is reachable from two lists.
//
// Verify must not run concurrently with Alloc or Free.
func (a *Allocator) Verify() (*ListReport, error) {
	report := &ListReport{}
	seen := make(map[arena.Addr]listID)

	for class := range a.caches {
		c := &a.caches[class]
		align := min(c.objectSize, SlabMinimumSize)
		for cpuID := range cpu.MaxCPUs {
			id := listID{class: class, cpu: cpuID}
			node := headNode(c.partial[cpuID].word.Load())
			for node != arena.Nil {
				if !a.mem.Contains(node, c.objectSize) || a.mem.Offset(node)%align != 0 {
					return report, fmt.Errorf("%w: %v: node %v outside region or misaligned", ErrCorruptList, id, node)
				}
				if prev, dup := seen[node]; dup {
					return report, fmt.Errorf("%w: %v: node %v already on %v", ErrCorruptList, id, node, prev)
				}
				seen[node] = id
				w := a.mem.Load(node + nextOffset)
				if _, used := headerClass(w); used {
					return report, fmt.Errorf("%w: %v: node %v carries an allocation header", ErrCorruptList, id, node)
				}
				report.Free[class][cpuID]++
				node = arena.Addr(w)
			}
		}
	}
	return report, nil
}

type listID struct {
	class int
	cpu   int
}

func (l listID) String() string {
	return fmt.Sprintf("class %d cpu %d", l.class, l.cpu)
}
