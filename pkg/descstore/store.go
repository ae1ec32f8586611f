// Package descstore implements the per-extent descriptor store described in
// spec.md §4.4: an ordered list, keyed by intra-extent block offset, of the
// descriptors living inside one extent. It is the "tagged-variant wrapper"
// spec.md §9 calls for in place of polymorphic dispatch — Node carries a
// closed tag identifier plus raw buffers, and callers in pkg/descriptor
// marshal/unmarshal the concrete type on demand.
package descstore

import "sort"

// Node is one descriptor's location and raw bytes within an extent. Larger
// descriptors (File Entry + EAs + allocation descriptors, LVD + partition
// maps) own more than one chained data buffer via AppendData rather than a
// single reallocated slice, so growing the allocation-descriptor area never
// invalidates earlier blocks' buffers.
type Node struct {
	TagIdentifier uint16
	Offset        uint32 // intra-extent block offset
	Length        uint32 // total length in bytes, across all chained buffers
	Data          [][]byte
}

// AppendData links an additional buffer onto the descriptor's data chain and
// updates Length accordingly.
func (n *Node) AppendData(chunk []byte) {
	n.Data = append(n.Data, chunk)
	n.Length += uint32(len(chunk))
}

// Bytes concatenates the descriptor's chained buffers into one contiguous
// slice. Callers in the hot path (CRC, unmarshal) should prefer iterating
// Data directly when possible; Bytes is for convenience call sites.
func (n *Node) Bytes() []byte {
	if len(n.Data) == 1 {
		return n.Data[0]
	}
	out := make([]byte, 0, n.Length)
	for _, d := range n.Data {
		out = append(out, d...)
	}
	return out
}

// Store holds, per extent (keyed by the extent's starting block number), the
// address-ordered list of descriptors it contains.
type Store struct {
	byExtent map[uint32][]*Node
}

// New creates an empty Store.
func New() *Store {
	return &Store{byExtent: make(map[uint32][]*Node)}
}

// FindDesc binary-searches the descriptors of the extent starting at
// extentStart for one at the given intra-extent block offset.
func (s *Store) FindDesc(extentStart, offset uint32) (*Node, bool) {
	list := s.byExtent[extentStart]
	i := sort.Search(len(list), func(i int) bool { return list[i].Offset >= offset })
	if i < len(list) && list[i].Offset == offset {
		return list[i], true
	}
	return nil, false
}

// SetDesc inserts (or replaces, if one already exists at the same offset) a
// descriptor within the extent starting at extentStart, maintaining offset
// order.
func (s *Store) SetDesc(extentStart uint32, ident uint16, offset, length uint32, data []byte) *Node {
	n := &Node{TagIdentifier: ident, Offset: offset, Length: length, Data: [][]byte{data}}

	list := s.byExtent[extentStart]
	i := sort.Search(len(list), func(i int) bool { return list[i].Offset >= offset })
	if i < len(list) && list[i].Offset == offset {
		list[i] = n
		return n
	}
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = n
	s.byExtent[extentStart] = list
	return n
}

// Descriptors returns the address-ordered descriptor list for an extent.
func (s *Store) Descriptors(extentStart uint32) []*Node {
	return s.byExtent[extentStart]
}

// Delete removes the descriptor at the given offset within an extent, used
// when the fixer zeroes a removed unfinished-write FE's block.
func (s *Store) Delete(extentStart, offset uint32) {
	list := s.byExtent[extentStart]
	i := sort.Search(len(list), func(i int) bool { return list[i].Offset >= offset })
	if i < len(list) && list[i].Offset == offset {
		s.byExtent[extentStart] = append(list[:i], list[i+1:]...)
	}
}
