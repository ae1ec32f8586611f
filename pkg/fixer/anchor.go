package fixer

import (
	"fmt"

	"github.com/bgrewell/udf-kit/pkg/descriptor"
)

// WriteAnchor copies the successfully-read AVDP at d.Anchors[source] to
// d.Anchors[target]'s block, retagging it with the target's own location
// before re-CRC'ing (spec.md §6's write_anchor, §4.14's "anchor copy").
func (f *Fixer) WriteAnchor(source, target int) error {
	anchors := f.d.Anchors
	if source < 0 || source >= len(anchors) || target < 0 || target >= len(anchors) {
		return fmt.Errorf("fixer: anchor index out of range (have %d)", len(anchors))
	}
	if anchors[source].Err != nil {
		return fmt.Errorf("fixer: source anchor %d is not valid: %w", source, anchors[source].Err)
	}

	avdp := anchors[source].AVDP
	avdp.Tag.Location = anchors[target].Block
	buf := descriptor.MarshalAVDP(avdp)
	if err := f.writeDesc(anchors[target].Block, buf); err != nil {
		return err
	}
	targetBlock := anchors[target].Block
	anchors[target] = anchors[source]
	anchors[target].Block = targetBlock
	anchors[target].AVDP = avdp
	return nil
}

// FixAVDPExtentLengths reconciles Main/Reserve VDS extent-length fields
// across every valid anchor: when one side's recorded length exceeds the
// other's, the larger value is copied to both sides and the anchor is
// re-CRC'd and rewritten (spec.md §4.14). Anchors that already agree are
// left untouched.
func (f *Fixer) FixAVDPExtentLengths() (Report, error) {
	var report Report
	for i := range f.d.Anchors {
		c := &f.d.Anchors[i]
		if c.Err != nil {
			continue
		}
		avdp := c.AVDP
		changed := false
		if avdp.MainVDSExtentLength != avdp.ReserveVDSExtentLength {
			desc := fmt.Sprintf("anchor at block %d: main/reserve VDS extent length disagree (%d vs %d)",
				c.Block, avdp.MainVDSExtentLength, avdp.ReserveVDSExtentLength)
			larger := avdp.MainVDSExtentLength
			if avdp.ReserveVDSExtentLength > larger {
				larger = avdp.ReserveVDSExtentLength
			}
			if f.decide(desc) {
				avdp.MainVDSExtentLength = larger
				avdp.ReserveVDSExtentLength = larger
				changed = true
				report.add(desc, ErrExtLen, true)
			} else {
				report.add(desc, ErrExtLen, false)
			}
		}
		if !changed {
			continue
		}
		buf := descriptor.MarshalAVDP(avdp)
		if err := f.writeDesc(c.Block, buf); err != nil {
			return report, err
		}
		c.AVDP = avdp
	}
	return report, nil
}
