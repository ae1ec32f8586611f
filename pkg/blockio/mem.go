package blockio

import (
	"fmt"
	"sync"
)

// MemBlockIO is an in-memory BlockIO backing store used by tests across the
// module in place of a real disc image.
type MemBlockIO struct {
	mu         sync.Mutex
	data       []byte
	sectorSize uint32
	readOnly   bool
}

// NewMem creates an in-memory BlockIO of totalBlocks blocks, each sectorSize
// bytes, zero-filled.
func NewMem(totalBlocks, sectorSize uint32) *MemBlockIO {
	return &MemBlockIO{
		data:       make([]byte, int64(totalBlocks)*int64(sectorSize)),
		sectorSize: sectorSize,
	}
}

func (m *MemBlockIO) ReadAt(block, count uint32) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	off := int64(block) * int64(m.sectorSize)
	n := int64(count) * int64(m.sectorSize)
	if off+n > int64(len(m.data)) {
		return nil, fmt.Errorf("blockio: read [%d,%d) out of range (size %d)", off, off+n, len(m.data))
	}
	out := make([]byte, n)
	copy(out, m.data[off:off+n])
	return out, nil
}

func (m *MemBlockIO) WriteAt(block uint32, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readOnly {
		return fmt.Errorf("blockio: write to read-only memory device at block %d", block)
	}
	off := int64(block) * int64(m.sectorSize)
	if off+int64(len(data)) > int64(len(m.data)) {
		return fmt.Errorf("blockio: write [%d,%d) out of range (size %d)", off, off+int64(len(data)), len(m.data))
	}
	copy(m.data[off:], data)
	return nil
}

func (m *MemBlockIO) Sync() error { return nil }

func (m *MemBlockIO) DeviceSizeBytes() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.data)), nil
}

func (m *MemBlockIO) PhysicalSectorSize() uint32 { return m.sectorSize }

func (m *MemBlockIO) MultisessionStartBlock() (uint32, bool) { return 0, false }
func (m *MemBlockIO) LastWrittenBlock() (uint32, bool)       { return 0, false }

// SetReadOnly toggles write rejection, for tests of read-only fixer paths.
func (m *MemBlockIO) SetReadOnly(ro bool) { m.readOnly = ro }
