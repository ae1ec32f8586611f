// Package udfrev models UDF revision numbers (1.02 .. 2.60) as comparable
// values, built on top of blang/semver's comparison semantics so revision
// folding ("write-revision hint = max(current, suffix.UDFRevision)") and
// "is this revision supported" checks reuse a real version-comparison
// library instead of ad-hoc integer math.
package udfrev

import (
	"fmt"

	"github.com/blang/semver"
)

// Revision is a UDF revision such as 2.01 or 1.50.
type Revision struct {
	Major uint64
	Minor uint64
}

// Min and Max are the revision bounds this engine supports (spec.md §1, §7).
var (
	Min = Revision{1, 2}
	Max = Revision{2, 60}
)

// FromUint16 decodes the packed BCD-like 16-bit revision stored in entity
// identifier suffixes (e.g. 0x0201 -> {2, 1}, rendered "2.01").
func FromUint16(v uint16) Revision {
	return Revision{Major: fromBCD(uint8(v >> 8)), Minor: fromBCD(uint8(v))}
}

// ToUint16 packs the revision back into the on-disk 16-bit form.
func (r Revision) ToUint16() uint16 {
	return toBCD(r.Major)<<8 | toBCD(r.Minor)
}

func fromBCD(b uint8) uint64 { return uint64(b>>4)*10 + uint64(b&0x0F) }

func toBCD(n uint64) uint16 { return uint16(n/10%10)<<4 | uint16(n%10) }

func (r Revision) semver() semver.Version {
	return semver.Version{Major: r.Major, Minor: r.Minor, Patch: 0}
}

// Compare returns -1, 0, or 1 the way semver.Version.Compare does.
func (r Revision) Compare(other Revision) int {
	return r.semver().Compare(other.semver())
}

// Max2 returns the greater of two revisions, used to fold the VDS scanner's
// running "write revision hint" (spec.md §4.6).
func Max2(a, b Revision) Revision {
	if a.Compare(b) >= 0 {
		return a
	}
	return b
}

// Supported reports whether r falls within [Min, Max].
func (r Revision) Supported() bool {
	return r.Compare(Min) >= 0 && r.Compare(Max) <= 0
}

func (r Revision) String() string {
	return fmt.Sprintf("%d.%02d", r.Major, r.Minor)
}
