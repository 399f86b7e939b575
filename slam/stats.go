package slam

// ClassStats holds counters for one size class.
type ClassStats struct {
	Class      int    `json:"class"`
	ObjectSize uint64 `json:"object_size"`
	Slabs      uint64 `json:"slabs"`
	Allocs     uint64 `json:"allocs"`
	Frees      uint64 `json:"frees"`
	CASRetries uint64 `json:"cas_retries"`
}

// Live returns the number of objects allocated and not yet freed.
func (s ClassStats) Live() uint64 { return s.Allocs - s.Frees }

// SlabBytes returns the bytes obtained from the base for this class.
func (s ClassStats) SlabBytes() uint64 { return s.Slabs * slabSize(s.ObjectSize) }

// Stats is a snapshot of allocator counters. Counters are read one at a time,
// so a snapshot taken under load is not atomic across classes.
type Stats struct {
	Classes []ClassStats `json:"classes"` // only classes that carved a slab

	Slabs     uint64 `json:"slabs"`
	SlabBytes uint64 `json:"slab_bytes"`
	Allocs    uint64 `json:"allocs"`
	Frees     uint64 `json:"frees"`
	LiveBytes uint64 `json:"live_bytes"` // object bytes of live allocations, headers included
}

// Stats returns the current counters.
func (a *Allocator) Stats() Stats {
	var st Stats
	for i := range a.caches {
		c := &a.caches[i]
		cs := ClassStats{
			Class:      c.class,
			ObjectSize: c.objectSize,
			Slabs:      c.slabs.Load(),
			Allocs:     c.allocs.Load(),
			Frees:      c.frees.Load(),
			CASRetries: c.casRetries.Load(),
		}
		if cs.Slabs == 0 {
			continue
		}
		st.Classes = append(st.Classes, cs)
		st.Slabs += cs.Slabs
		st.SlabBytes += cs.SlabBytes()
		st.Allocs += cs.Allocs
		st.Frees += cs.Frees
		st.LiveBytes += cs.Live() * cs.ObjectSize
	}
	return st
}
