// Package extent implements the disjoint, address-ordered extent map
// described in spec.md §3 ("Extent") and §4.3, and the re-architecture
// guidance in spec.md §9: an arena of nodes addressed by integer index
// rather than a pointer-linked list.
package extent

import "fmt"

// SpaceType classifies the contents of an extent.
type SpaceType int

const (
	Reserved SpaceType = iota
	VRS
	Anchor
	MVDS
	RVDS
	LVID
	STable
	SSpace
	PSpace
	USpace
	Bad
	MBR
)

func (t SpaceType) String() string {
	switch t {
	case Reserved:
		return "Reserved"
	case VRS:
		return "VRS"
	case Anchor:
		return "Anchor"
	case MVDS:
		return "MVDS"
	case RVDS:
		return "RVDS"
	case LVID:
		return "LVID"
	case STable:
		return "STable"
	case SSpace:
		return "SSpace"
	case PSpace:
		return "PSpace"
	case USpace:
		return "USpace"
	case Bad:
		return "Bad"
	case MBR:
		return "MBR"
	default:
		return fmt.Sprintf("SpaceType(%d)", int(t))
	}
}

// TypeMask is a bitset of SpaceType values used by NextExtent/PrevExtent to
// select which types to stop on.
type TypeMask uint32

// Mask builds a TypeMask matching exactly the given types.
func Mask(types ...SpaceType) TypeMask {
	var m TypeMask
	for _, t := range types {
		m |= 1 << uint(t)
	}
	return m
}

// Matches reports whether t is included in the mask.
func (m TypeMask) Matches(t SpaceType) bool {
	return m&(1<<uint(t)) != 0
}

// AllTypes matches every SpaceType.
const AllTypes TypeMask = 0xFFFFFFFF

// Extent is a disjoint, contiguous block range tagged with a space type.
type Extent struct {
	Start  uint32
	Blocks uint32
	Type   SpaceType
}

// End returns the first block past this extent (Start + Blocks).
func (e Extent) End() uint32 {
	return e.Start + e.Blocks
}

// Contains reports whether block lies within [Start, Start+Blocks).
func (e Extent) Contains(block uint32) bool {
	return block >= e.Start && block < e.End()
}
