package descriptor

import (
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/udf-kit/pkg/consts"
	"github.com/bgrewell/udf-kit/pkg/crc"
	"github.com/bgrewell/udf-kit/pkg/dstring"
)

// FileIdentifierDescriptor ("FID", ECMA-167 §14.4) is one directory entry:
// a name, a set of characteristic bits, and the ICB of the file it names.
// FIDs are padded to a multiple of 4 bytes and packed back-to-back within a
// directory's data extent (spec.md §4.12).
type FileIdentifierDescriptor struct {
	Tag                Tag
	FileVersionNumber  uint16
	FileCharacteristics byte
	FileIdentifier      string // dchars, length given by FileIdentifierLength
	ICB                 LongAllocationDescriptor
	ImplementationUse   []byte
}

const fidFixedLen = 38 // tag(16) + version(2) + chars(1) + identLen(1) + ICB(16) + implUseLen(2)

// IsHidden, IsDirectory, IsDeleted, IsParent report the FIDCharacteristics
// bits named in consts.
func (f FileIdentifierDescriptor) IsHidden() bool    { return f.FileCharacteristics&consts.FIDCharHidden != 0 }
func (f FileIdentifierDescriptor) IsDirectory() bool { return f.FileCharacteristics&consts.FIDCharDirectory != 0 }
func (f FileIdentifierDescriptor) IsDeleted() bool   { return f.FileCharacteristics&consts.FIDCharDeleted != 0 }
func (f FileIdentifierDescriptor) IsParent() bool    { return f.FileCharacteristics&consts.FIDCharParent != 0 }

// UniqueIDLow32 returns the low 32 bits of the target file's Unique ID that
// UDF 2.3.4.3 requires every non-parent FID to carry in the last 4 bytes of
// its implementation-use area, alongside the ok flag reporting whether that
// area was long enough to hold one.
func (f FileIdentifierDescriptor) UniqueIDLow32() (uint32, bool) {
	if len(f.ImplementationUse) < 4 {
		return 0, false
	}
	n := len(f.ImplementationUse)
	return binary.LittleEndian.Uint32(f.ImplementationUse[n-4 : n]), true
}

// SetUniqueIDLow32 writes v into the last 4 bytes of the implementation-use
// area, growing it to at least 4 bytes if necessary.
func (f *FileIdentifierDescriptor) SetUniqueIDLow32(v uint32) {
	if len(f.ImplementationUse) < 4 {
		grown := make([]byte, 4)
		copy(grown, f.ImplementationUse)
		f.ImplementationUse = grown
	}
	n := len(f.ImplementationUse)
	binary.LittleEndian.PutUint32(f.ImplementationUse[n-4:n], v)
}

// MarshalFID encodes a FileIdentifierDescriptor, padding the whole record to
// a multiple of 4 bytes per ECMA-167 §14.4.9.
func MarshalFID(f FileIdentifierDescriptor) ([]byte, error) {
	var identBytes []byte
	if !f.IsParent() {
		var err error
		identBytes, err = dstring.EncodeChars(f.FileIdentifier)
		if err != nil {
			return nil, fmt.Errorf("descriptor: FID identifier: %w", err)
		}
	}

	body := make([]byte, 0, fidFixedLen-TagSize+len(identBytes)+len(f.ImplementationUse))
	body = appendU16(body, f.FileVersionNumber)
	body = append(body, f.FileCharacteristics)
	body = append(body, byte(len(identBytes)))
	icb := MarshalLongAD(f.ICB)
	body = append(body, icb[:]...)
	body = appendU16(body, uint16(len(f.ImplementationUse)))
	body = append(body, f.ImplementationUse...)
	body = append(body, identBytes...)

	unpadded := TagSize + len(body)
	pad := (4 - unpadded%4) % 4
	body = append(body, make([]byte, pad)...)

	tagBytes := FinalizeTag(f.Tag, body)
	return append(tagBytes[:], body...), nil
}

// UnmarshalFID decodes and verifies one FileIdentifierDescriptor starting at
// data[0], returning it alongside its total on-disc length (including
// padding) so the walker can advance to the next FID in the directory
// extent.
func UnmarshalFID(data []byte, readPosition uint32) (FileIdentifierDescriptor, int, error) {
	if len(data) < fidFixedLen {
		return FileIdentifierDescriptor{}, 0, fmt.Errorf("descriptor: FID needs at least %d bytes, got %d", fidFixedLen, len(data))
	}
	tag, err := UnmarshalTag(data[:TagSize])
	if err != nil {
		return FileIdentifierDescriptor{}, 0, err
	}
	b := data[TagSize:]
	version := binary.LittleEndian.Uint16(b[0:2])
	chars := b[2]
	identLen := int(b[3])
	icb, err := UnmarshalLongAD(b[4:20])
	if err != nil {
		return FileIdentifierDescriptor{}, 0, fmt.Errorf("descriptor: FID ICB: %w", err)
	}
	implUseLen := int(binary.LittleEndian.Uint16(b[20:22]))
	off := 22
	if off+implUseLen+identLen > len(b) {
		return FileIdentifierDescriptor{}, 0, fmt.Errorf("descriptor: FID truncated: need %d more bytes, have %d", implUseLen+identLen, len(b)-off)
	}
	implUse := append([]byte(nil), b[off:off+implUseLen]...)
	off += implUseLen

	var ident string
	if chars&consts.FIDCharParent == 0 && identLen > 0 {
		ident, err = dstring.DecodeChars(b[off : off+identLen])
		if err != nil {
			return FileIdentifierDescriptor{}, 0, fmt.Errorf("descriptor: FID identifier: %w", err)
		}
	}
	off += identLen

	unpadded := TagSize + off
	pad := (4 - unpadded%4) % 4
	total := off + pad

	tagBytes := data[:TagSize]
	fullBody := data[TagSize : TagSize+total]
	var tb [TagSize]byte
	copy(tb[:], tagBytes)
	tv := taggedBody{tag: tag, tagBytes: tb, body: fullBody}
	if err := crc.Verify(tv, readPosition, consts.TagIdentFileIdentifierDescriptor); err != nil {
		return FileIdentifierDescriptor{}, 0, err
	}

	return FileIdentifierDescriptor{
		Tag:                 tag,
		FileVersionNumber:   version,
		FileCharacteristics: chars,
		FileIdentifier:      ident,
		ICB:                 icb,
		ImplementationUse:   implUse,
	}, TagSize + total, nil
}
