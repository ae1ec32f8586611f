// Package vds implements the Volume Descriptor Sequence Scanner (spec.md
// §4.6): it walks a Main or Reserve VDS extent, applies the
// highest-sequence-number-wins prevailing rule for duplicate descriptors,
// and follows Volume Descriptor Pointer continuation extents.
package vds

import (
	"fmt"

	"github.com/bgrewell/udf-kit/pkg/blockio"
	"github.com/bgrewell/udf-kit/pkg/consts"
	"github.com/bgrewell/udf-kit/pkg/descriptor"
	"github.com/bgrewell/udf-kit/pkg/logging"
)

// Result holds the prevailing descriptors found in one VDS scan.
type Result struct {
	PrimaryVolume        *descriptor.PrimaryVolumeDescriptor
	ImplementationUse     *descriptor.ImplementationUseVolumeDescriptor
	LogicalVolumes        []descriptor.LogicalVolumeDescriptor
	Partitions             map[uint16]descriptor.PartitionDescriptor
	UnallocatedSpace       *descriptor.UnallocatedSpaceDescriptor
	SawTerminator          bool
}

// Scanner walks a Volume Descriptor Sequence.
type Scanner struct {
	io  blockio.BlockIO
	log *logging.Logger
}

// New creates a Scanner reading from io.
func New(io blockio.BlockIO, log *logging.Logger) *Scanner {
	if log == nil {
		log = logging.DefaultLogger()
	}
	return &Scanner{io: io, log: log.WithName("vds")}
}

// Scan walks the sequence starting at extent [location, location+length)
// (in logical blocks of io.PhysicalSectorSize() bytes), following
// continuation pointers up to consts.MaxVDSContinuationHops times and
// applying the prevailing-descriptor rule as it goes.
func (s *Scanner) Scan(location, length uint32) (*Result, error) {
	res := &Result{Partitions: make(map[uint16]descriptor.PartitionDescriptor)}

	blockSize := s.io.PhysicalSectorSize()
	var pvdSeq, iuvdSeq int64 = -1, -1
	partitionSeq := make(map[uint16]uint32)
	lvSeq := make(map[int]uint32) // index into res.LogicalVolumes keyed by position encountered

	hops := 0
	for {
		numBlocks := length / blockSize
		if length%blockSize != 0 {
			numBlocks++
		}
		if numBlocks > consts.MaxVDSBlocks {
			numBlocks = consts.MaxVDSBlocks
		}

		stop, nextLoc, nextLen, err := s.scanExtent(location, numBlocks, res, &pvdSeq, &iuvdSeq, partitionSeq, lvSeq)
		if err != nil {
			return res, err
		}
		if stop || nextLen == 0 {
			break
		}
		hops++
		if hops > consts.MaxVDSContinuationHops {
			return res, fmt.Errorf("vds: exceeded %d continuation hops, possible cycle", consts.MaxVDSContinuationHops)
		}
		location, length = nextLoc, nextLen
	}

	return res, nil
}

// scanExtent processes one extent's worth of blocks, updating res in place.
// It returns stop=true once a Terminating Descriptor is seen, and otherwise
// reports a continuation extent to follow (nextLen==0 means none found).
func (s *Scanner) scanExtent(
	startBlock, numBlocks uint32,
	res *Result,
	pvdSeq, iuvdSeq *int64,
	partitionSeq map[uint16]uint32,
	lvSeq map[int]uint32,
) (stop bool, nextLoc, nextLen uint32, err error) {
	for i := uint32(0); i < numBlocks; i++ {
		block := startBlock + i
		data, readErr := s.io.ReadAt(block, 1)
		if readErr != nil {
			return false, 0, 0, fmt.Errorf("vds: reading block %d: %w", block, readErr)
		}
		tag, tagErr := descriptor.UnmarshalTag(data[:descriptor.TagSize])
		if tagErr != nil {
			return false, 0, 0, fmt.Errorf("vds: decoding tag at block %d: %w", block, tagErr)
		}

		switch tag.Identifier {
		case 0:
			// Zero-identifier blocks pad out the rest of the extent once the
			// sequence has ended without an explicit terminator.
			continue

		case consts.TagIdentPrimaryVolumeDescriptor:
			pvd, perr := descriptor.UnmarshalPVD(data, block)
			if perr != nil {
				s.log.Error(perr, "skipping malformed PVD", "block", block)
				continue
			}
			if int64(pvd.VolumeDescriptorSequenceNumber) > *pvdSeq {
				*pvdSeq = int64(pvd.VolumeDescriptorSequenceNumber)
				res.PrimaryVolume = &pvd
			}

		case consts.TagIdentImplementationUseVolumeDescriptor:
			iuvd, ierr := descriptor.UnmarshalIUVD(data, block)
			if ierr != nil {
				s.log.Error(ierr, "skipping malformed IUVD", "block", block)
				continue
			}
			if int64(iuvd.VolumeDescriptorSequenceNumber) > *iuvdSeq {
				*iuvdSeq = int64(iuvd.VolumeDescriptorSequenceNumber)
				res.ImplementationUse = &iuvd
			}

		case consts.TagIdentPartitionDescriptor:
			pd, perr := descriptor.UnmarshalPartitionDescriptor(data, block)
			if perr != nil {
				s.log.Error(perr, "skipping malformed Partition Descriptor", "block", block)
				continue
			}
			if existingSeq, ok := partitionSeq[pd.PartitionNumber]; !ok || pd.VolumeDescriptorSequenceNumber > existingSeq {
				partitionSeq[pd.PartitionNumber] = pd.VolumeDescriptorSequenceNumber
				res.Partitions[pd.PartitionNumber] = pd
			}

		case consts.TagIdentLogicalVolumeDescriptor:
			lvd, lerr := descriptor.UnmarshalLVD(data, block)
			if lerr != nil {
				s.log.Error(lerr, "skipping malformed LVD", "block", block)
				continue
			}
			idx := findLVDIndex(res.LogicalVolumes, lvd)
			if idx == -1 {
				res.LogicalVolumes = append(res.LogicalVolumes, lvd)
				lvSeq[len(res.LogicalVolumes)-1] = lvd.VolumeDescriptorSequenceNumber
			} else if lvd.VolumeDescriptorSequenceNumber > lvSeq[idx] {
				res.LogicalVolumes[idx] = lvd
				lvSeq[idx] = lvd.VolumeDescriptorSequenceNumber
			}

		case consts.TagIdentUnallocatedSpaceDescriptor:
			usd, uerr := descriptor.UnmarshalUnallocatedSpaceDescriptor(data, block)
			if uerr != nil {
				s.log.Error(uerr, "skipping malformed Unallocated Space Descriptor", "block", block)
				continue
			}
			res.UnallocatedSpace = &usd

		case consts.TagIdentVolumeDescriptorPointer:
			vdp, verr := descriptor.UnmarshalVolumeDescriptorPointer(data, block)
			if verr != nil {
				s.log.Error(verr, "skipping malformed VDP", "block", block)
				continue
			}
			return false, vdp.NextVolumeDescriptorSequenceExtent.Location, vdp.NextVolumeDescriptorSequenceExtent.Length, nil

		case consts.TagIdentTerminatingDescriptor:
			res.SawTerminator = true
			return true, 0, 0, nil

		default:
			s.log.Trace("ignoring unrecognized tag identifier in VDS", "identifier", tag.Identifier, "block", block)
		}
	}
	return false, 0, 0, nil
}

// findLVDIndex identifies which already-seen logical volume (by identity of
// its LogicalVolumeIdentifier) a newly read LVD corresponds to, returning -1
// if none match yet.
func findLVDIndex(lvs []descriptor.LogicalVolumeDescriptor, candidate descriptor.LogicalVolumeDescriptor) int {
	for i, lv := range lvs {
		if lv.LogicalVolumeIdentifier == candidate.LogicalVolumeIdentifier {
			return i
		}
	}
	return -1
}
