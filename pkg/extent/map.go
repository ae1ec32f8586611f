package extent

import "fmt"

// node is an arena-resident extent with index-based links, replacing the
// pointer-linked list the source used (spec.md §9).
type node struct {
	extent     Extent
	prev, next int // -1 when absent
}

const nilIdx = -1

// Map is the doubly-linked, address-ordered, disjoint extent map for a disc
// of totalBlocks blocks. Index 0 always holds the head extent covering
// block 0 once NewMap has run.
type Map struct {
	arena []node
	head  int
	tail  int
	total uint32
}

// NewMap creates a map covering [0, totalBlocks) as a single Reserved extent.
func NewMap(totalBlocks uint32) *Map {
	m := &Map{
		arena: []node{{extent: Extent{Start: 0, Blocks: totalBlocks, Type: Reserved}, prev: nilIdx, next: nilIdx}},
		head:  0,
		tail:  0,
		total: totalBlocks,
	}
	return m
}

// Extents returns the extents in address order.
func (m *Map) Extents() []Extent {
	out := make([]Extent, 0, len(m.arena))
	for i := m.head; i != nilIdx; i = m.arena[i].next {
		out = append(out, m.arena[i].extent)
	}
	return out
}

// FindExtent returns the extent containing block.
func (m *Map) FindExtent(block uint32) (Extent, error) {
	idx, err := m.findIndex(block)
	if err != nil {
		return Extent{}, err
	}
	return m.arena[idx].extent, nil
}

func (m *Map) findIndex(block uint32) (int, error) {
	for i := m.head; i != nilIdx; i = m.arena[i].next {
		if m.arena[i].extent.Contains(block) {
			return i, nil
		}
	}
	return nilIdx, fmt.Errorf("extent: block %d out of range [0,%d)", block, m.total)
}

// SetExtent labels [start, start+blocks) as belonging to typ, splitting or
// relabeling the host extent(s) as necessary (spec.md §4.3). Spanning more
// than one existing extent is fatal, since it would indicate a corrupt map.
func (m *Map) SetExtent(typ SpaceType, start, blocks uint32) error {
	if blocks == 0 {
		return fmt.Errorf("extent: zero-length extent at %d", start)
	}
	end := start + blocks
	if end > m.total {
		return fmt.Errorf("extent: range [%d,%d) exceeds disc size %d", start, end, m.total)
	}

	hostIdx, err := m.findIndex(start)
	if err != nil {
		return err
	}
	host := m.arena[hostIdx].extent
	if end > host.End() {
		return fmt.Errorf("extent: range [%d,%d) spans multiple existing extents starting at host [%d,%d) — corrupt map", start, end, host.Start, host.End())
	}

	switch {
	case start == host.Start && end == host.End():
		// Exact match: relabel in place.
		m.arena[hostIdx].extent.Type = typ

	case start > host.Start && end < host.End():
		// Strictly contained: split into head/middle/tail, all new nodes.
		headExt := Extent{Start: host.Start, Blocks: start - host.Start, Type: host.Type}
		midExt := Extent{Start: start, Blocks: blocks, Type: typ}
		tailExt := Extent{Start: end, Blocks: host.End() - end, Type: host.Type}

		m.arena[hostIdx].extent = headExt
		midIdx := m.append(midExt)
		tailIdx := m.append(tailExt)
		m.linkAfter(hostIdx, midIdx)
		m.linkAfter(midIdx, tailIdx)

	case start == host.Start:
		// Aligns to head: split into [new][tail-of-host].
		tailExt := Extent{Start: end, Blocks: host.End() - end, Type: host.Type}
		m.arena[hostIdx].extent = Extent{Start: start, Blocks: blocks, Type: typ}
		tailIdx := m.append(tailExt)
		m.linkAfter(hostIdx, tailIdx)

	case end == host.End():
		// Aligns to tail: split into [head-of-host][new].
		headExt := Extent{Start: host.Start, Blocks: start - host.Start, Type: host.Type}
		m.arena[hostIdx].extent = headExt
		newIdx := m.append(Extent{Start: start, Blocks: blocks, Type: typ})
		m.linkAfter(hostIdx, newIdx)

	default:
		return fmt.Errorf("extent: unreachable split case for [%d,%d) in host [%d,%d)", start, end, host.Start, host.End())
	}

	return nil
}

func (m *Map) append(e Extent) int {
	m.arena = append(m.arena, node{extent: e, prev: nilIdx, next: nilIdx})
	return len(m.arena) - 1
}

// linkAfter inserts node b immediately after node a in the list.
func (m *Map) linkAfter(a, b int) {
	oldNext := m.arena[a].next
	m.arena[a].next = b
	m.arena[b].prev = a
	m.arena[b].next = oldNext
	if oldNext != nilIdx {
		m.arena[oldNext].prev = b
	} else {
		m.tail = b
	}
}

// NextExtent scans forward from the extent containing `from`, returning the
// first subsequent extent whose type matches mask. Returns false if none.
func (m *Map) NextExtent(from uint32, mask TypeMask) (Extent, bool) {
	idx, err := m.findIndex(from)
	if err != nil {
		return Extent{}, false
	}
	for i := m.arena[idx].next; i != nilIdx; i = m.arena[i].next {
		if mask.Matches(m.arena[i].extent.Type) {
			return m.arena[i].extent, true
		}
	}
	return Extent{}, false
}

// PrevExtent scans backward from the extent containing `from`.
func (m *Map) PrevExtent(from uint32, mask TypeMask) (Extent, bool) {
	idx, err := m.findIndex(from)
	if err != nil {
		return Extent{}, false
	}
	for i := m.arena[idx].prev; i != nilIdx; i = m.arena[i].prev {
		if mask.Matches(m.arena[i].extent.Type) {
			return m.arena[i].extent, true
		}
	}
	return Extent{}, false
}

// NextExtentSize scans forward from `from` for an extent matching mask with
// at least `blocks` capacity, honoring an optional alignment constraint
// (align==0 disables alignment; otherwise the candidate start is rounded up
// to the next multiple of align). This supports the UDF "ECC-packet-aligned"
// allocation requirement for sparable partitions (spec.md §4.3).
func (m *Map) NextExtentSize(from uint32, mask TypeMask, blocks, align uint32) (start uint32, ok bool) {
	idx, err := m.findIndex(from)
	if err != nil {
		return 0, false
	}
	for i := idx; i != nilIdx; i = m.arena[i].next {
		e := m.arena[i].extent
		if !mask.Matches(e.Type) {
			continue
		}
		candidate := e.Start
		if candidate < from {
			candidate = from
		}
		if align > 1 {
			rem := candidate % align
			if rem != 0 {
				candidate += align - rem
			}
		}
		if candidate+blocks <= e.End() {
			return candidate, true
		}
	}
	return 0, false
}

// Verify checks the whole-cover invariant: extents are contiguous from 0,
// each extent's end equals the next one's start, and the list terminates at
// total blocks. Intended for tests and fixer post-conditions.
func (m *Map) Verify() error {
	prevEnd := uint32(0)
	count := 0
	for i := m.head; i != nilIdx; i = m.arena[i].next {
		e := m.arena[i].extent
		if e.Start != prevEnd {
			return fmt.Errorf("extent: gap/overlap at block %d (expected %d)", e.Start, prevEnd)
		}
		prevEnd = e.End()
		count++
		if count > len(m.arena)+1 {
			return fmt.Errorf("extent: cycle detected in extent list")
		}
	}
	if prevEnd != m.total {
		return fmt.Errorf("extent: map covers [0,%d) but disc has %d blocks", prevEnd, m.total)
	}
	return nil
}
