// Package lvidchain implements the LVID Chain walker (spec.md §4.7): it
// follows a Logical Volume Integrity Descriptor's NextIntegrityExtent links
// to find the most recent integrity state, detecting cycles along the way.
package lvidchain

import (
	"fmt"

	"github.com/bgrewell/udf-kit/pkg/blockio"
	"github.com/bgrewell/udf-kit/pkg/consts"
	"github.com/bgrewell/udf-kit/pkg/descriptor"
)

// Walk reads the LVID chain starting at the given extent, following
// NextIntegrityExtent links until one of zero length (chain end) or a
// repeated location (cycle) is found. It returns every LVID seen, in chain
// order, with the last one being the most current.
func Walk(io blockio.BlockIO, start descriptor.Extent) ([]descriptor.LogicalVolumeIntegrityDescriptor, error) {
	blockSize := io.PhysicalSectorSize()
	var chain []descriptor.LogicalVolumeIntegrityDescriptor
	seen := make(map[uint32]bool)

	ext := start
	for hops := 0; ext.Length > 0; hops++ {
		if hops > consts.MaxVDSContinuationHops {
			return chain, fmt.Errorf("lvidchain: exceeded %d hops, possible cycle", consts.MaxVDSContinuationHops)
		}
		if seen[ext.Location] {
			return chain, fmt.Errorf("lvidchain: cycle detected at block %d", ext.Location)
		}
		seen[ext.Location] = true

		numBlocks := ext.Length / blockSize
		if numBlocks == 0 {
			numBlocks = 1
		}
		data, err := io.ReadAt(ext.Location, numBlocks)
		if err != nil {
			return chain, fmt.Errorf("lvidchain: reading block %d: %w", ext.Location, err)
		}
		lvid, err := descriptor.UnmarshalLVID(data, ext.Location)
		if err != nil {
			return chain, fmt.Errorf("lvidchain: parsing LVID at block %d: %w", ext.Location, err)
		}
		chain = append(chain, lvid)
		ext = lvid.NextIntegrityExtent
	}
	return chain, nil
}

// Latest returns the last (most current) LVID in a chain, or false if the
// chain is empty.
func Latest(chain []descriptor.LogicalVolumeIntegrityDescriptor) (descriptor.LogicalVolumeIntegrityDescriptor, bool) {
	if len(chain) == 0 {
		return descriptor.LogicalVolumeIntegrityDescriptor{}, false
	}
	return chain[len(chain)-1], true
}

// IsDirty reports whether the logical volume was left open (not cleanly
// unmounted) at the end of the chain — the Structural Fixer's primary
// signal that an LVID-close repair is needed (spec.md §4.14).
func IsDirty(chain []descriptor.LogicalVolumeIntegrityDescriptor) bool {
	latest, ok := Latest(chain)
	return ok && latest.IsOpen()
}
