package arena

import "sync/atomic"

// Word access. addr must be WordSize aligned and inside the region; both are
// checked by the slice index, so a bad address panics rather than corrupting
// memory outside the region.

func (r *Region) word(addr Addr) *uint64 {
	return &r.words[uint64(addr-r.origin)/WordSize]
}

// Load atomically reads the word at addr.
func (r *Region) Load(addr Addr) uint64 {
	return atomic.LoadUint64(r.word(addr))
}

// Store atomically writes the word at addr.
func (r *Region) Store(addr Addr, v uint64) {
	atomic.StoreUint64(r.word(addr), v)
}

// LoadAddr reads the word at addr as an address.
func (r *Region) LoadAddr(addr Addr) Addr {
	return Addr(r.Load(addr))
}

// StoreAddr writes an address into the word at addr.
func (r *Region) StoreAddr(addr, v Addr) {
	r.Store(addr, uint64(v))
}

// Aligned reports whether addr is WordSize aligned.
func Aligned(addr Addr) bool {
	return addr%WordSize == 0
}
