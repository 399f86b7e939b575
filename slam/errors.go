package slam

import "errors"

var (
	// ErrTooLarge indicates a request that does not fit the largest size class.
	ErrTooLarge = errors.New("slam: allocation exceeds largest size class")

	// ErrBadPointer indicates an address that is not a live allocation.
	ErrBadPointer = errors.New("slam: pointer is not a live allocation")

	// ErrDoubleFree indicates an address that was already freed.
	ErrDoubleFree = errors.New("slam: double free")

	// ErrCorruptList indicates a free list that violates its invariants.
	ErrCorruptList = errors.New("slam: corrupt free list")
)
