// Package filesystem holds the flattened, walker-facing view of a UDF file
// tree: one Entry per file or directory, carrying just enough metadata for
// reporting and free-space accounting without re-exposing the raw
// descriptor types.
package filesystem

import (
	"time"

	"github.com/bgrewell/udf-kit/pkg/descriptor"
)

// Entry is one file or directory discovered by the tree walker (spec.md
// §4.12).
type Entry struct {
	Path       string // slash-separated, rooted at "/"
	Name       string
	IsDir      bool
	IsHidden   bool
	PartitionRef uint16
	ICBBlock     uint32
	Size         uint64
	ModTime      time.Time
	UniqueID     uint64
	Extents      []descriptor.Extent // absolute disc blocks backing this entry's data
}

// FromFileEntry fills in the metadata fields an Entry shares with a decoded
// FileEntry.
func FromFileEntry(fe descriptor.FileEntry) Entry {
	return Entry{
		Size:     fe.InformationLength,
		ModTime:  fe.ModificationTime.Time(),
		UniqueID: fe.UniqueID,
	}
}

// FromExtendedFileEntry fills in the metadata fields an Entry shares with a
// decoded ExtendedFileEntry.
func FromExtendedFileEntry(efe descriptor.ExtendedFileEntry) Entry {
	return Entry{
		Size:     efe.InformationLength,
		ModTime:  efe.ModificationTime.Time(),
		UniqueID: efe.UniqueID,
	}
}
