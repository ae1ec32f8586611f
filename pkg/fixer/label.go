package fixer

import (
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/udf-kit/pkg/descriptor"
	"github.com/bgrewell/udf-kit/pkg/vds"
)

// SetVolumeLabel rewrites the Primary Volume Descriptor's identifier on
// both the Main and Reserve VDS copies (spec.md §6's label mutators),
// writing Main first, syncing, then Reserve, per spec.md §5's ordering
// guarantee.
func (f *Fixer) SetVolumeLabel(label string) error {
	if f.d.MainVDS != nil && f.d.MainVDS.PrimaryVolume != nil {
		pvd := *f.d.MainVDS.PrimaryVolume
		pvd.VolumeIdentifier = label
		buf, err := descriptor.MarshalPVD(pvd)
		if err != nil {
			return fmt.Errorf("fixer: encoding main PVD: %w", err)
		}
		if err := f.writeDesc(pvd.Tag.Location, buf); err != nil {
			return err
		}
		*f.d.MainVDS.PrimaryVolume = pvd
		if err := f.sync(); err != nil {
			return err
		}
	}
	if f.d.ReserveVDS != nil && f.d.ReserveVDS.PrimaryVolume != nil {
		pvd := *f.d.ReserveVDS.PrimaryVolume
		pvd.VolumeIdentifier = label
		buf, err := descriptor.MarshalPVD(pvd)
		if err != nil {
			return fmt.Errorf("fixer: encoding reserve PVD: %w", err)
		}
		if err := f.writeDesc(pvd.Tag.Location, buf); err != nil {
			return err
		}
		*f.d.ReserveVDS.PrimaryVolume = pvd
	}
	if f.d.Merged != nil && f.d.Merged.PrimaryVolume != nil {
		f.d.Merged.PrimaryVolume.VolumeIdentifier = label
	}
	return nil
}

// SetLogicalVolumeIdentifier rewrites the logical volume name everywhere it
// is mirrored: the LVD (Main and Reserve), the IUVD's LV Information area,
// and the FSD (spec.md §6).
func (f *Fixer) SetLogicalVolumeIdentifier(name string) error {
	if err := f.setLVDIdentifier(f.d.MainVDS, name); err != nil {
		return err
	}
	if err := f.setIUVDIdentifier(f.d.MainVDS, name); err != nil {
		return err
	}
	if err := f.sync(); err != nil {
		return err
	}
	if err := f.setLVDIdentifier(f.d.ReserveVDS, name); err != nil {
		return err
	}
	if err := f.setIUVDIdentifier(f.d.ReserveVDS, name); err != nil {
		return err
	}
	if f.d.Merged != nil && len(f.d.Merged.LogicalVolumes) > 0 {
		f.d.Merged.LogicalVolumes[0].LogicalVolumeIdentifier = name
	}

	fsd := f.d.FSD
	fsd.LogicalVolumeIdentifier = name
	buf, err := descriptor.MarshalFSD(fsd)
	if err != nil {
		return fmt.Errorf("fixer: encoding FSD: %w", err)
	}
	if err := f.writeDesc(fsd.Tag.Location, buf); err != nil {
		return err
	}
	f.d.FSD = fsd
	return nil
}

func (f *Fixer) setLVDIdentifier(res *vds.Result, name string) error {
	if res == nil || len(res.LogicalVolumes) == 0 {
		return nil
	}
	lvd := res.LogicalVolumes[0]
	lvd.LogicalVolumeIdentifier = name
	buf, err := descriptor.MarshalLVD(lvd)
	if err != nil {
		return fmt.Errorf("fixer: encoding LVD: %w", err)
	}
	if err := f.writeDesc(lvd.Tag.Location, buf); err != nil {
		return err
	}
	res.LogicalVolumes[0] = lvd
	return nil
}

func (f *Fixer) setIUVDIdentifier(res *vds.Result, name string) error {
	if res == nil || res.ImplementationUse == nil {
		return nil
	}
	iuvd := *res.ImplementationUse
	iuvd.LogicalVolumeIdentifier = name
	buf, err := descriptor.MarshalIUVD(iuvd)
	if err != nil {
		return fmt.Errorf("fixer: encoding IUVD: %w", err)
	}
	if err := f.writeDesc(iuvd.Tag.Location, buf); err != nil {
		return err
	}
	*res.ImplementationUse = iuvd
	return nil
}

// ExtractLabel returns the volume's label: the Primary Volume Descriptor's
// identifier when present, falling back to the FSD's logical volume
// identifier (spec.md §6's extract_label).
func (f *Fixer) ExtractLabel() string {
	if f.d.Merged != nil && f.d.Merged.PrimaryVolume != nil && f.d.Merged.PrimaryVolume.VolumeIdentifier != "" {
		return f.d.Merged.PrimaryVolume.VolumeIdentifier
	}
	return f.d.FSD.LogicalVolumeIdentifier
}

// ComputeWindowsSerialNumber sums the FSD's encoded bytes as little-endian
// 32-bit words, wrapping on overflow, matching the Windows-style volume
// serial number convention spec.md §6 names (compute_windows_serial_number).
func (f *Fixer) ComputeWindowsSerialNumber() (uint32, error) {
	buf, err := descriptor.MarshalFSD(f.d.FSD)
	if err != nil {
		return 0, fmt.Errorf("fixer: encoding FSD: %w", err)
	}
	var sum uint32
	for i := 0; i+4 <= len(buf); i += 4 {
		sum += binary.LittleEndian.Uint32(buf[i : i+4])
	}
	return sum, nil
}
