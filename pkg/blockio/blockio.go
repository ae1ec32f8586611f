// Package blockio implements the BlockIO capability described in spec.md
// §4.2/§5/§6: block-addressed reads and writes over a backing device or
// image file, independent of the logical volume structures layered on top.
package blockio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// ErrClosed is returned by any operation on a BlockIO after Close.
var ErrClosed = errors.New("blockio: closed")

// BlockIO is the minimal capability a disc image or device must provide.
// Everything above this layer (descriptors, extents, the walker) addresses
// the medium exclusively through it, so a fixture can substitute an
// in-memory implementation for tests without touching any other package.
type BlockIO interface {
	ReadAt(block, count uint32) ([]byte, error)
	WriteAt(block uint32, data []byte) error
	Sync() error
	DeviceSizeBytes() (int64, error)
	PhysicalSectorSize() uint32

	// MultisessionStartBlock and LastWrittenBlock report optical-media
	// session bounds; both return ok=false for plain image files or block
	// devices with no multisession concept.
	MultisessionStartBlock() (block uint32, ok bool)
	LastWrittenBlock() (block uint32, ok bool)
}

// FileBlockIO is a BlockIO backed by a regular file or block device, read in
// chunks no larger than ChunkBytes to bound peak memory on large images.
type FileBlockIO struct {
	mu         sync.Mutex
	f          *os.File
	sectorSize uint32
	chunkBytes int64
	closed     bool
	readOnly   bool
}

// DefaultChunkBytes is the default view size used when none is given to
// Open, matching spec.md §5's 64 MiB guidance.
const DefaultChunkBytes = 64 * 1024 * 1024

// Option configures Open.
type Option func(*FileBlockIO)

// WithSectorSize overrides the physical sector size reported by
// PhysicalSectorSize (default 2048, matching optical media).
func WithSectorSize(size uint32) Option {
	return func(b *FileBlockIO) { b.sectorSize = size }
}

// WithChunkBytes overrides the internal read-chunk size.
func WithChunkBytes(n int64) Option {
	return func(b *FileBlockIO) { b.chunkBytes = n }
}

// ReadOnly opens the backing file without write access, so WriteAt always
// fails. The fixer and label-mutation paths require a writable BlockIO.
func ReadOnly() Option {
	return func(b *FileBlockIO) { b.readOnly = true }
}

// Open opens path as a block-addressed device using the given block size in
// bytes (2048 for optical media, 512/4096 for a hard disk image).
//
// The open takes no lock on the file, exclusive or advisory. A read-write
// open that fails is retried read-only, without a warning; the returned
// FileBlockIO is then read-only and its WriteAt returns an error.
func Open(path string, blockSize uint32, opts ...Option) (*FileBlockIO, error) {
	b := &FileBlockIO{sectorSize: 2048, chunkBytes: DefaultChunkBytes}
	for _, opt := range opts {
		opt(b)
	}

	flag := os.O_RDWR
	if b.readOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		if !b.readOnly {
			// Fall back to read-only so inspection tools still work against
			// a read-only medium; WriteAt on the result then returns an
			// error.
			f, err = os.Open(path)
			if err != nil {
				return nil, fmt.Errorf("blockio: open %s: %w", path, err)
			}
			b.readOnly = true
		} else {
			return nil, fmt.Errorf("blockio: open %s: %w", path, err)
		}
	}
	b.f = f
	_ = blockSize // blockSize governs the caller's block-to-byte math, not BlockIO itself
	return b, nil
}

// ReadAt reads count logical blocks, sectorSize bytes each, starting at
// block. Large reads are served in ChunkBytes-sized pieces.
func (b *FileBlockIO) ReadAt(block, count uint32) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	total := int64(count) * int64(b.sectorSize)
	offset := int64(block) * int64(b.sectorSize)
	out := make([]byte, 0, total)
	for int64(len(out)) < total {
		remaining := total - int64(len(out))
		chunk := b.chunkBytes
		if remaining < chunk {
			chunk = remaining
		}
		buf := make([]byte, chunk)
		n, err := b.f.ReadAt(buf, offset+int64(len(out)))
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			if err == io.EOF && int64(len(out)) == total {
				break
			}
			return nil, fmt.Errorf("blockio: read block %d: %w", block, err)
		}
	}
	return out, nil
}

// WriteAt writes data starting at the given block. len(data) must be a
// multiple of the sector size.
func (b *FileBlockIO) WriteAt(block uint32, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if b.readOnly {
		return fmt.Errorf("blockio: write to read-only device at block %d", block)
	}
	if len(data)%int(b.sectorSize) != 0 {
		return fmt.Errorf("blockio: write of %d bytes is not a multiple of sector size %d", len(data), b.sectorSize)
	}
	offset := int64(block) * int64(b.sectorSize)
	if _, err := b.f.WriteAt(data, offset); err != nil {
		return fmt.Errorf("blockio: write block %d: %w", block, err)
	}
	return nil
}

// Sync flushes pending writes to the backing file.
func (b *FileBlockIO) Sync() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return b.f.Sync()
}

// DeviceSizeBytes reports the backing file's total size.
func (b *FileBlockIO) DeviceSizeBytes() (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, ErrClosed
	}
	fi, err := b.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("blockio: stat: %w", err)
	}
	return fi.Size(), nil
}

// PhysicalSectorSize returns the configured sector size.
func (b *FileBlockIO) PhysicalSectorSize() uint32 {
	return b.sectorSize
}

// MultisessionStartBlock always reports ok=false: plain files carry no
// multisession metadata. A device-backed BlockIO variant would read this
// from the OS's optical-disc ioctls; that is out of scope here (spec.md
// Non-goals exclude raw device I/O).
func (b *FileBlockIO) MultisessionStartBlock() (uint32, bool) { return 0, false }

// LastWrittenBlock always reports ok=false, for the same reason as
// MultisessionStartBlock.
func (b *FileBlockIO) LastWrittenBlock() (uint32, bool) { return 0, false }

// Close closes the backing file. Further operations return ErrClosed.
func (b *FileBlockIO) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.f.Close()
}
