// Package disc assembles the per-package engine components into the root
// aggregate named in spec.md §3 ("Disc") and exposes the read-path
// orchestration and external interface functions from spec.md §2 and §6.
package disc

import (
	"fmt"

	"github.com/bgrewell/udf-kit/pkg/blockio"
	"github.com/bgrewell/udf-kit/pkg/descriptor"
	"github.com/bgrewell/udf-kit/pkg/extent"
	"github.com/bgrewell/udf-kit/pkg/filesystem"
	"github.com/bgrewell/udf-kit/pkg/freespace"
	"github.com/bgrewell/udf-kit/pkg/locator"
	"github.com/bgrewell/udf-kit/pkg/logging"
	"github.com/bgrewell/udf-kit/pkg/lvidchain"
	"github.com/bgrewell/udf-kit/pkg/metadatamap"
	"github.com/bgrewell/udf-kit/pkg/option"
	"github.com/bgrewell/udf-kit/pkg/partresolve"
	"github.com/bgrewell/udf-kit/pkg/sparingload"
	"github.com/bgrewell/udf-kit/pkg/vatload"
	"github.com/bgrewell/udf-kit/pkg/vds"
	"github.com/bgrewell/udf-kit/pkg/walker"
)

// Disc is the root aggregate: everything ReadDisc discovered about one
// volume, held together so the Structural Fixer and label mutators can
// operate without re-walking the device.
type Disc struct {
	IO        blockio.BlockIO
	BlockSize uint32

	Anchors      []locator.AnchorCandidate
	PrimaryAnchor int // index into Anchors chosen as prevailing, -1 if none

	MainVDS    *vds.Result
	ReserveVDS *vds.Result
	Merged     *vds.Result // prevailing fields across Main/Reserve

	LVIDChain []descriptor.LogicalVolumeIntegrityDescriptor

	Partitions map[uint16]*partresolve.Partition
	Resolver   *partresolve.Resolver

	FSD     descriptor.FileSetDescriptor
	Entries []filesystem.Entry

	FreeSpace map[uint16]freespace.Report

	Extents *extent.Map

	log *logging.Logger
}

// ReadDisc performs the full read path (spec.md §2): locate anchors →
// scan Main/Reserve VDS → walk the LVID chain and resolve partitions →
// load VAT/sparing/metadata auxiliary state → walk the file tree →
// reconcile free space.
func ReadDisc(io blockio.BlockIO, log *logging.Logger, opts ...option.OpenOption) (*Disc, error) {
	if log == nil {
		log = logging.DefaultLogger()
	}
	o := option.Apply(opts...)

	blockSize := o.BlockSize
	if blockSize == 0 {
		blockSize = io.PhysicalSectorSize()
	}

	sizeBytes, err := io.DeviceSizeBytes()
	if err != nil {
		return nil, fmt.Errorf("disc: device size: %w", err)
	}
	totalBlocks := uint32(uint64(sizeBytes) / uint64(blockSize))

	loc := locator.New(io, log)
	candidates := loc.LocateAnchors(totalBlocks)
	valid := locator.Valid(candidates)
	if len(valid) == 0 {
		return nil, fmt.Errorf("disc: %w: no anchor validates", ErrFatal)
	}
	primaryIdx := -1
	for i, c := range candidates {
		if c.Err == nil {
			primaryIdx = i
			break
		}
	}

	d := &Disc{
		IO:            io,
		BlockSize:     blockSize,
		Anchors:       candidates,
		PrimaryAnchor: primaryIdx,
		Extents:       extent.NewMap(totalBlocks),
		FreeSpace:     make(map[uint16]freespace.Report),
		log:           log,
	}

	avdp := candidates[primaryIdx].AVDP
	scanner := vds.New(io, log)
	d.MainVDS, err = scanner.Scan(avdp.MainVDSExtentLocation, avdp.MainVDSExtentLength)
	if err != nil {
		log.Error(err, "main VDS scan failed")
	}
	d.ReserveVDS, err = scanner.Scan(avdp.ReserveVDSExtentLocation, avdp.ReserveVDSExtentLength)
	if err != nil {
		log.Error(err, "reserve VDS scan failed")
	}
	d.Merged = mergeVDS(d.MainVDS, d.ReserveVDS)
	if d.Merged == nil || len(d.Merged.LogicalVolumes) == 0 {
		return nil, fmt.Errorf("disc: %w: no logical volume descriptor in either VDS", ErrFatal)
	}
	lvd := d.Merged.LogicalVolumes[0]
	if lvd.LogicalBlockSize != 0 && lvd.LogicalBlockSize != blockSize {
		return nil, fmt.Errorf("disc: %w: LVD block size %d disagrees with detected %d", ErrFatal, lvd.LogicalBlockSize, blockSize)
	}

	if err := d.buildPartitions(lvd); err != nil {
		return nil, err
	}

	chainStart := descriptor.Extent{Length: lvd.IntegritySequenceLength, Location: lvd.IntegritySequenceLocation}
	d.LVIDChain, err = lvidchain.Walk(io, chainStart)
	if err != nil {
		log.Error(err, "LVID chain walk failed")
	}

	fsdAbs, err := d.Resolver.Resolve(0, lvd.FileSetDescriptorLocation)
	if err != nil {
		return nil, fmt.Errorf("disc: %w: resolving FSD location: %v", ErrFatal, err)
	}
	fsdData, err := io.ReadAt(fsdAbs, 1)
	if err != nil {
		return nil, fmt.Errorf("disc: %w: reading FSD: %v", ErrFatal, err)
	}
	d.FSD, err = descriptor.UnmarshalFSD(fsdData, fsdAbs)
	if err != nil {
		return nil, fmt.Errorf("disc: %w: parsing FSD: %v", ErrFatal, err)
	}

	w := walker.New(io, d.Resolver, walker.WithLogger(log))
	d.Entries, err = w.Walk(d.FSD.RootDirectoryICB)
	if err != nil {
		return nil, fmt.Errorf("disc: %w: root directory unreadable: %v", ErrFatal, err)
	}

	d.reconcileFreeSpace()

	return d, nil
}

// buildPartitions constructs a resolvable partition for every partition map
// in lvd, loading VAT/sparing/metadata auxiliary state for the non-Type-1
// kinds. Type 1 partitions are resolved first since every other kind
// ultimately defers to one.
func (d *Disc) buildPartitions(lvd descriptor.LogicalVolumeDescriptor) error {
	d.Partitions = make(map[uint16]*partresolve.Partition)
	d.Resolver = partresolve.New(d.Partitions)

	var deferred []descriptor.PartitionMap
	for _, pm := range lvd.PartitionMaps {
		if pm.Kind() != "type1" {
			deferred = append(deferred, pm)
			continue
		}
		num := partitionNumberFromType1Map(pm)
		pd, ok := d.Merged.Partitions[num]
		if !ok {
			return fmt.Errorf("disc: type 1 partition map references unknown partition %d", num)
		}
		p, err := partresolve.NewPartitionFromMap(pm, pd)
		if err != nil {
			return err
		}
		d.Partitions[num] = p
	}

	for _, pm := range deferred {
		if err := d.buildAuxiliaryPartition(pm); err != nil {
			d.log.Error(err, "skipping partition map", "kind", pm.Kind())
		}
	}
	return nil
}

func (d *Disc) buildAuxiliaryPartition(pm descriptor.PartitionMap) error {
	switch pm.Kind() {
	case "virtual":
		return d.buildVirtualPartition(pm)
	case "sparable":
		return d.buildSparablePartition(pm)
	case "metadata":
		return d.buildMetadataPartition(pm)
	default:
		return fmt.Errorf("unrecognized partition map kind %q", pm.Kind())
	}
}

func (d *Disc) buildVirtualPartition(pm descriptor.PartitionMap) error {
	backing := onlyType1Partition(d.Partitions)
	if backing == nil {
		return fmt.Errorf("virtual partition map has no type 1 backing partition")
	}
	res, err := vatload.Load(d.IO, func(b uint32) (uint32, error) { return d.Resolver.Resolve(backing.Number, b) }, backing.Descriptor.PartitionLength)
	if err != nil {
		return fmt.Errorf("loading VAT: %w", err)
	}
	num := uint16(len(d.Partitions)) // virtual partitions are numbered after every type 1 map in practice
	p := &partresolve.Partition{Number: num, Map: pm, VAT: res.Mapping, BackingPartition: backing.Number}
	d.Partitions[num] = p
	return nil
}

func (d *Disc) buildSparablePartition(pm descriptor.PartitionMap) error {
	locations, packetLen, err := sparingload.ParseLocations(pm.Raw)
	if err != nil {
		return err
	}
	num := sparablePartitionNumber(pm)
	pd, ok := d.Merged.Partitions[num]
	if !ok {
		return fmt.Errorf("sparable partition map references unknown partition %d", num)
	}
	tableLenBlocks := (packetLen + d.BlockSize - 1) / d.BlockSize
	if tableLenBlocks == 0 {
		tableLenBlocks = 1
	}
	tables, err := sparingload.Load(d.IO, locations, tableLenBlocks)
	if err != nil {
		return fmt.Errorf("loading sparing tables: %w", err)
	}
	p, err := partresolve.NewPartitionFromMap(pm, pd)
	if err != nil {
		return err
	}
	p.SparingTables = tables
	p.PacketLength = packetLen
	d.Partitions[num] = p
	return nil
}

func (d *Disc) buildMetadataPartition(pm descriptor.PartitionMap) error {
	backing := onlyType1Partition(d.Partitions)
	if backing == nil {
		return fmt.Errorf("metadata partition map has no type 1 backing partition")
	}
	m, err := metadatamap.Load(d.IO, func(b uint32) (uint32, error) { return d.Resolver.Resolve(backing.Number, b) }, pm.Raw)
	if err != nil {
		return fmt.Errorf("loading metadata file map: %w", err)
	}
	num := uint16(len(d.Partitions))
	p := &partresolve.Partition{
		Number:            num,
		Map:               pm,
		BackingPartition:  backing.Number,
		MetadataExtents:   m.Extents,
		MetadataBlockSize: d.BlockSize,
		Descriptor:        backing.Descriptor,
	}
	d.Partitions[num] = p
	return nil
}

func (d *Disc) reconcileFreeSpace() {
	if d.Merged.UnallocatedSpace == nil {
		return
	}

	var lvidFree []uint32
	if latest, ok := lvidchain.Latest(d.LVIDChain); ok {
		lvidFree = latest.FreeSpaceTable
	}

	// The LVID's FreeSpaceTable is indexed directly by partition number,
	// matching the convention pkg/fixer's own FixLVIDClose uses.
	for num, p := range d.Partitions {
		if p.Map.Kind() != "type1" {
			continue
		}

		bitmap, table := d.readPartitionSpaceStructures(p)

		var free uint32
		if int(num) < len(lvidFree) {
			free = lvidFree[num]
		}

		d.FreeSpace[num] = freespace.Reconcile(uint32(num), p.Descriptor.PartitionLength, bitmap, table, free, d.Entries, d.BlockSize)
	}
}

// readPartitionSpaceStructures reads a type 1 partition's on-disc Space
// Bitmap and Space Table descriptors, when its Partition Header names
// either, so free-space reconciliation can compare them against the
// walked file tree instead of reconciling blind.
func (d *Disc) readPartitionSpaceStructures(p *partresolve.Partition) (*descriptor.SpaceBitmapDescriptor, *descriptor.SpaceTableDescriptor) {
	header, err := descriptor.ParsePartitionHeader(p.Descriptor.PartitionContentsUse)
	if err != nil {
		return nil, nil
	}

	var bitmap *descriptor.SpaceBitmapDescriptor
	if header.UnallocSpaceBitmap.Length() > 0 {
		block := p.Descriptor.PartitionStartingLocation + header.UnallocSpaceBitmap.ExtentLocation
		blocks := (header.UnallocSpaceBitmap.Length() + d.BlockSize - 1) / d.BlockSize
		if raw, err := d.IO.ReadAt(block, blocks); err == nil {
			if decoded, err := descriptor.UnmarshalSpaceBitmapDescriptor(raw, block); err == nil {
				bitmap = &decoded
			}
		}
	}

	var table *descriptor.SpaceTableDescriptor
	if header.UnallocSpaceTable.Length() > 0 {
		block := p.Descriptor.PartitionStartingLocation + header.UnallocSpaceTable.ExtentLocation
		blocks := (header.UnallocSpaceTable.Length() + d.BlockSize - 1) / d.BlockSize
		if raw, err := d.IO.ReadAt(block, blocks); err == nil {
			if decoded, err := descriptor.UnmarshalSpaceTableDescriptor(raw, block, 0); err == nil {
				table = &decoded
			}
		}
	}

	return bitmap, table
}

func onlyType1Partition(partitions map[uint16]*partresolve.Partition) *partresolve.Partition {
	for _, p := range partitions {
		if p.Map.Kind() == "type1" {
			return p
		}
	}
	return nil
}

// partitionNumberFromType1Map reads the partition number embedded in a
// type 1 partition map's raw bytes (ECMA-167 §3.10.6.16: Type(1) +
// Length(1) + VolumeSequenceNumber(2) + PartitionNumber(2)).
func partitionNumberFromType1Map(pm descriptor.PartitionMap) uint16 {
	if len(pm.Raw) < 6 {
		return 0
	}
	return uint16(pm.Raw[4]) | uint16(pm.Raw[5])<<8
}

// sparablePartitionNumber reads the partition number embedded in a type 2
// sparable partition map's raw bytes (Type(1)+Length(1)+EntityID(32)+
// VolumeSequenceNumber(2)+PartitionNumber(2)).
func sparablePartitionNumber(pm descriptor.PartitionMap) uint16 {
	const off = 1 + 1 + 32 + 2
	if len(pm.Raw) < off+2 {
		return 0
	}
	return uint16(pm.Raw[off]) | uint16(pm.Raw[off+1])<<8
}

// mergeVDS combines a Main and Reserve scan into one prevailing view,
// preferring Main's fields and falling back to Reserve's for whatever Main
// is missing — the read-path analogue of the Structural Fixer's
// Main/Reserve reconciliation (spec.md §4.14).
func mergeVDS(main, reserve *vds.Result) *vds.Result {
	if main == nil {
		return reserve
	}
	if reserve == nil {
		return main
	}
	merged := *main
	if merged.PrimaryVolume == nil {
		merged.PrimaryVolume = reserve.PrimaryVolume
	}
	if merged.ImplementationUse == nil {
		merged.ImplementationUse = reserve.ImplementationUse
	}
	if merged.UnallocatedSpace == nil {
		merged.UnallocatedSpace = reserve.UnallocatedSpace
	}
	if len(merged.LogicalVolumes) == 0 {
		merged.LogicalVolumes = reserve.LogicalVolumes
	}
	if merged.Partitions == nil {
		merged.Partitions = make(map[uint16]descriptor.PartitionDescriptor)
	}
	for num, pd := range reserve.Partitions {
		if _, ok := merged.Partitions[num]; !ok {
			merged.Partitions[num] = pd
		}
	}
	return &merged
}

// ErrFatal wraps the "abort repair" conditions spec.md §4.15 names: all
// anchors unreadable, no LVD in either VDS, block size disagreement, root
// FE unreadable.
var ErrFatal = fmt.Errorf("fatal condition")
