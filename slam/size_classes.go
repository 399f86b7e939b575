package slam

import (
	"fmt"
	"math/bits"
)

// maxRequest is the largest byte count ClassFor accepts.
const maxRequest = 1<<(NumClasses-1) - HeaderSize

// ClassFor returns the size class serving a request of n bytes: the smallest
// lg2 with 1<<lg2 >= max(n+HeaderSize, MinObjectSize).
func ClassFor(n uint64) (int, error) {
	if n > maxRequest {
		return 0, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, n, uint64(maxRequest))
	}
	size := max(n+HeaderSize, MinObjectSize)
	return bits.Len64(size - 1), nil
}

// ClassSize returns the object size of class, header included.
func ClassSize(class int) uint64 {
	return 1 << class
}

// ClassBounds returns the request sizes that map to class: (min, max].
// max is the usable capacity of an object in class.
// The minimum saturates at zero for classes at the MinObjectSize floor.
func ClassBounds(class int) (uint64, uint64) {
	size := ClassSize(class)
	lo := size >> 1
	if lo < HeaderSize {
		lo = HeaderSize
	}
	return lo - HeaderSize, size - HeaderSize
}

// slabSize returns the slab size for objects of the given size.
func slabSize(objectSize uint64) uint64 {
	return max(objectSize, SlabMinimumSize)
}
