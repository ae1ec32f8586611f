package descriptor

import (
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/udf-kit/pkg/entity"
)

// VAT150Header and VAT200Header model the Virtual Allocation Table's two
// revisions (UDF 1.50 §2.2.10, UDF 2.00+ §2.2.11): 1.50 is a bare array of
// uint32 partition-block mappings with no header at all, while 2.00 adds a
// trailing header naming the previous VAT ICB and format metadata (spec.md
// §4.9).
type VAT150Header struct{} // 1.50 has no header; ParseVAT150 reads its whole input as the mapping array (pkg/vatload cuts off the 36-byte trailer first)

// VAT200Header is the fixed-size tail that follows a 2.00 VAT's mapping
// array.
type VAT200Header struct {
	HeaderLength              uint16
	ImplementationUseLength   uint16
	PreviousVATICBLocation    uint32
	NumFiles                  uint32
	NumDirectories            uint32
	MinUDFReadRevision        uint16
	MinUDFWriteRevision       uint16
	MaxUDFWriteRevision       uint16
	ImplementationIdentifier  entity.ID
	ImplementationUse         []byte
}

const vat200HeaderFixedLen = 2 + 2 + 4 + 4 + 4 + 2 + 2 + 2 + entity.Size

// ParseVAT150 interprets the entire file content as a 1.50 VAT: a flat
// array of uint32 partition-relative block numbers, one per virtual block,
// 0xFFFFFFFF marking an unmapped (sparse) entry.
func ParseVAT150(data []byte) []uint32 {
	n := len(data) / 4
	out := make([]uint32, n)
	for i := 0; i < n; i++ {
		out[i] = binary.LittleEndian.Uint32(data[i*4 : i*4+4])
	}
	return out
}

// ParseVAT200 splits a 2.00 VAT's content into its mapping array and
// trailing header, identified by EntityIDVAT20 in the last
// ImplementationIdentifier read backwards from the header fields — callers
// locate the header by its known fixed length from the end of the file
// (OSTA UDF 2.00 §2.2.11: headerLength as the second field is not
// self-describing from the front, so the header is always read from the
// tail).
func ParseVAT200(data []byte) ([]uint32, VAT200Header, error) {
	if len(data) < vat200HeaderFixedLen {
		return nil, VAT200Header{}, fmt.Errorf("descriptor: VAT 2.00 file too short for header: %d bytes", len(data))
	}
	headerStart := len(data) - vat200HeaderFixedLen
	h := data[headerStart:]
	hdr := VAT200Header{
		HeaderLength:            binary.LittleEndian.Uint16(h[0:2]),
		ImplementationUseLength: binary.LittleEndian.Uint16(h[2:4]),
		PreviousVATICBLocation:  binary.LittleEndian.Uint32(h[4:8]),
		NumFiles:                binary.LittleEndian.Uint32(h[8:12]),
		NumDirectories:          binary.LittleEndian.Uint32(h[12:16]),
		MinUDFReadRevision:      binary.LittleEndian.Uint16(h[16:18]),
		MinUDFWriteRevision:     binary.LittleEndian.Uint16(h[18:20]),
		MaxUDFWriteRevision:     binary.LittleEndian.Uint16(h[20:22]),
	}
	if err := hdr.ImplementationIdentifier.Unmarshal(h[22 : 22+entity.Size]); err != nil {
		return nil, VAT200Header{}, fmt.Errorf("descriptor: VAT 2.00 implementation identifier: %w", err)
	}

	mappingEnd := headerStart
	if int(hdr.ImplementationUseLength) <= mappingEnd {
		implUseStart := mappingEnd - int(hdr.ImplementationUseLength)
		hdr.ImplementationUse = append([]byte(nil), data[implUseStart:mappingEnd]...)
		mappingEnd = implUseStart
	}

	mapping := ParseVAT150(data[:mappingEnd])
	return mapping, hdr, nil
}
