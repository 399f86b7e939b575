package slam

import "github.com/joshuapare/slamkit/internal/arena"

// Object headers. An object is addressed by its node address (the first byte
// of the object); callers see the data address HeaderSize bytes later.
//
// Used object: word 0 = usedMagic<<32 | class.
// Free object: word 0 = next node (or Nil).
//
// Lists are singly linked; only word 0 of an object ever belongs to the
// allocator, so a freed object's data beyond the header is left as is.
// The smallest object is a header plus one word of data.
//
// usedMagic<<32 is above arena.MaxAddr, so a used header never reads as a
// plausible next link and vice versa.

const (
	nextOffset  = 0
	minNodeSize = 2 * arena.WordSize

	usedMagic = 0x51ab
)

func usedHeader(class int) uint64 {
	return usedMagic<<32 | uint64(class)
}

// headerClass decodes a used header, reporting false for anything else.
func headerClass(w uint64) (int, bool) {
	if w>>32 != usedMagic {
		return 0, false
	}
	class := int(uint32(w))
	if class >= NumClasses {
		return 0, false
	}
	return class, true
}

// nodeFromData returns the node address owning the data address p.
func nodeFromData(p arena.Addr) arena.Addr { return p - HeaderSize }

// dataFromNode returns the data address of node.
func dataFromNode(node arena.Addr) arena.Addr { return node + HeaderSize }

// List head words pack a modification counter above the node address so one
// CAS both swaps the head and detects an intervening pop/push of the same node.

const tagShift = arena.AddrBits

func headNode(w uint64) arena.Addr {
	return arena.Addr(w & (1<<tagShift - 1))
}

// nextHead returns the word replacing old when the list head becomes node.
func nextHead(old uint64, node arena.Addr) uint64 {
	return (old>>tagShift+1)<<tagShift | uint64(node)
}
