// Package walker implements the File Tree Walker (spec.md §4.12): an
// explicit work-queue traversal of a UDF file tree starting from the File
// Set Descriptor's root directory ICB, producing a flat list of entries.
package walker

import (
	"fmt"

	"github.com/bgrewell/udf-kit/pkg/blockio"
	"github.com/bgrewell/udf-kit/pkg/consts"
	"github.com/bgrewell/udf-kit/pkg/descriptor"
	"github.com/bgrewell/udf-kit/pkg/filesystem"
	"github.com/bgrewell/udf-kit/pkg/logging"
	"github.com/bgrewell/udf-kit/pkg/partresolve"
)

// Walker traverses directories breadth-first using an explicit queue rather
// than recursion, so a cyclic or adversarial tree cannot blow the Go stack.
type Walker struct {
	io       blockio.BlockIO
	resolver *partresolve.Resolver
	log      *logging.Logger
	maxDepth int
}

// Option configures a Walker.
type Option func(*Walker)

// WithMaxDepth overrides consts.DefaultWalkMaxDepth.
func WithMaxDepth(n int) Option {
	return func(w *Walker) { w.maxDepth = n }
}

// WithLogger overrides the default logger.
func WithLogger(log *logging.Logger) Option {
	return func(w *Walker) { w.log = log }
}

// New creates a Walker over the given resolver.
func New(io blockio.BlockIO, resolver *partresolve.Resolver, opts ...Option) *Walker {
	w := &Walker{io: io, resolver: resolver, log: logging.DefaultLogger().WithName("walker"), maxDepth: consts.DefaultWalkMaxDepth}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type queueItem struct {
	partitionRef uint16
	block        uint32
	path         string
	depth        int
}

type icbKey struct {
	partitionRef uint16
	block        uint32
}

// Walk traverses the tree rooted at rootICB, returning every file and
// directory found. It tracks visited ICBs to avoid revisiting hard-linked
// or maliciously looped directories, and stops descending at maxDepth.
func (w *Walker) Walk(rootICB descriptor.LongAllocationDescriptor) ([]filesystem.Entry, error) {
	var entries []filesystem.Entry
	visited := make(map[icbKey]bool)

	queue := []queueItem{{
		partitionRef: rootICB.ExtentLocationPartition,
		block:        rootICB.ExtentLocationBlock,
		path:         "/",
		depth:        0,
	}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		key := icbKey{item.partitionRef, item.block}
		if visited[key] {
			continue
		}
		visited[key] = true

		if item.depth > w.maxDepth {
			w.log.Info("max depth exceeded, pruning", "path", item.path, "depth", item.depth)
			continue
		}

		abs, err := w.resolver.Resolve(item.partitionRef, item.block)
		if err != nil {
			w.log.Error(err, "unresolvable ICB, skipping", "path", item.path)
			continue
		}

		entry, isDir, content, err := w.readEntry(abs, item.partitionRef, item.path)
		if err != nil {
			w.log.Error(err, "unreadable entry, skipping", "path", item.path)
			continue
		}
		entry.ICBBlock = item.block // partition-relative, paired with entry.PartitionRef
		entries = append(entries, entry)
		if !isDir {
			continue
		}

		children, err := w.readDirectory(content, abs)
		if err != nil {
			w.log.Error(err, "unreadable directory content, skipping children", "path", item.path)
			continue
		}
		for _, fid := range children {
			if fid.IsDeleted() || fid.IsParent() {
				continue
			}
			childPath := joinPath(item.path, fid.FileIdentifier)
			queue = append(queue, queueItem{
				partitionRef: fid.ICB.ExtentLocationPartition,
				block:        fid.ICB.ExtentLocationBlock,
				path:         childPath,
				depth:        item.depth + 1,
			})
		}
	}

	return entries, nil
}

// readEntry decodes the FE/EFE at an absolute block and returns its
// filesystem.Entry, whether it is a directory, and its in-ICB/short-extent
// content bytes (directory FID data, for directories).
func (w *Walker) readEntry(abs uint32, partitionRef uint16, path string) (filesystem.Entry, bool, []byte, error) {
	data, err := w.io.ReadAt(abs, 1)
	if err != nil {
		return filesystem.Entry{}, false, nil, err
	}
	tag, err := descriptor.UnmarshalTag(data[:descriptor.TagSize])
	if err != nil {
		return filesystem.Entry{}, false, nil, err
	}

	var entry filesystem.Entry
	var icbTag descriptor.ICBTag
	var infoLen uint64
	var ads []byte

	switch tag.Identifier {
	case consts.TagIdentFileEntry:
		fe, err := descriptor.UnmarshalFileEntry(data, abs)
		if err != nil {
			return filesystem.Entry{}, false, nil, err
		}
		entry = filesystem.FromFileEntry(fe)
		icbTag, infoLen, ads = fe.ICBTag, fe.InformationLength, fe.AllocationDescriptors
	case consts.TagIdentExtendedFileEntry:
		efe, err := descriptor.UnmarshalExtendedFileEntry(data, abs)
		if err != nil {
			return filesystem.Entry{}, false, nil, err
		}
		entry = filesystem.FromExtendedFileEntry(efe)
		icbTag, infoLen, ads = efe.ICBTag, efe.InformationLength, efe.AllocationDescriptors
	default:
		return filesystem.Entry{}, false, nil, fmt.Errorf("walker: unexpected tag identifier %d at block %d", tag.Identifier, abs)
	}

	isDir := icbTag.FileType == consts.FileTypeDirectory
	entry.Path = path
	entry.Name = pathBase(path)
	entry.IsDir = isDir
	entry.PartitionRef = partitionRef

	content, extents, err := w.readContent(icbTag, infoLen, ads)
	if err != nil {
		return entry, isDir, nil, err
	}
	entry.Extents = extents
	return entry, isDir, content, nil
}

// readContent returns the file's data bytes and the absolute disc extents
// backing them, following in-ICB or short/long allocation descriptor
// content (directories in practice always fit one of these forms; larger
// files are handled by freespace/fixer which only need the allocation
// descriptors, not the content itself). In-ICB content has no separate
// backing extent, so it reports none.
func (w *Walker) readContent(icbTag descriptor.ICBTag, infoLen uint64, ads []byte) ([]byte, []descriptor.Extent, error) {
	switch icbTag.AllocDescForm() {
	case consts.ICBAllocInICB:
		if uint64(len(ads)) < infoLen {
			return nil, nil, fmt.Errorf("walker: in-ICB content shorter than information length")
		}
		return ads[:infoLen], nil, nil

	case consts.ICBAllocShort:
		var out []byte
		var extents []descriptor.Extent
		for off := 0; off+descriptor.ShortADSize <= len(ads); off += descriptor.ShortADSize {
			ad, err := descriptor.UnmarshalShortAD(ads[off : off+descriptor.ShortADSize])
			if err != nil {
				return nil, nil, err
			}
			if ad.Type() == descriptor.ExtentTypeNotRecorded || ad.Length() == 0 {
				continue
			}
			abs, err := w.resolver.Resolve(0, ad.ExtentLocation)
			if err != nil {
				return nil, nil, err
			}
			extents = append(extents, descriptor.Extent{Location: abs, Length: ad.Length()})
			chunk, err := w.readExtent(0, ad.ExtentLocation, ad.Length())
			if err != nil {
				return nil, nil, err
			}
			out = append(out, chunk...)
		}
		if uint64(len(out)) > infoLen {
			out = out[:infoLen]
		}
		return out, extents, nil

	case consts.ICBAllocLong:
		var out []byte
		var extents []descriptor.Extent
		for off := 0; off+descriptor.LongADSize <= len(ads); off += descriptor.LongADSize {
			ad, err := descriptor.UnmarshalLongAD(ads[off : off+descriptor.LongADSize])
			if err != nil {
				return nil, nil, err
			}
			if ad.ExtentLength == 0 {
				continue
			}
			length := ad.ExtentLength & 0x3FFFFFFF
			abs, err := w.resolver.Resolve(ad.ExtentLocationPartition, ad.ExtentLocationBlock)
			if err != nil {
				return nil, nil, err
			}
			extents = append(extents, descriptor.Extent{Location: abs, Length: length})
			chunk, err := w.readExtent(ad.ExtentLocationPartition, ad.ExtentLocationBlock, length)
			if err != nil {
				return nil, nil, err
			}
			out = append(out, chunk...)
		}
		if uint64(len(out)) > infoLen {
			out = out[:infoLen]
		}
		return out, extents, nil

	default:
		return nil, nil, fmt.Errorf("walker: unsupported allocation descriptor form %d", icbTag.AllocDescForm())
	}
}

func (w *Walker) readExtent(partitionRef uint16, partitionBlock uint32, length uint32) ([]byte, error) {
	abs, err := w.resolver.Resolve(partitionRef, partitionBlock)
	if err != nil {
		return nil, err
	}
	blockSize := w.io.PhysicalSectorSize()
	numBlocks := length / blockSize
	if length%blockSize != 0 {
		numBlocks++
	}
	data, err := w.io.ReadAt(abs, numBlocks)
	if err != nil {
		return nil, err
	}
	if uint32(len(data)) > length {
		data = data[:length]
	}
	return data, nil
}

// readDirectory parses the packed FIDs in a directory's data extent. Every
// FID's tag location is checked against the directory's own starting block,
// matching how UDF records it (ECMA-167 §14.4.8: the location field names
// the logical block the directory's content extent starts at, not a byte
// offset within it).
func (w *Walker) readDirectory(content []byte, dirBaseBlock uint32) ([]descriptor.FileIdentifierDescriptor, error) {
	var fids []descriptor.FileIdentifierDescriptor
	off := 0
	for off < len(content) {
		fid, n, err := descriptor.UnmarshalFID(content[off:], dirBaseBlock)
		if err != nil {
			return fids, err
		}
		if n == 0 {
			break
		}
		fids = append(fids, fid)
		off += n
	}
	return fids, nil
}

func joinPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

func pathBase(path string) string {
	if path == "/" {
		return "/"
	}
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
