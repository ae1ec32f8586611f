package fixer

import (
	"fmt"

	"github.com/bgrewell/udf-kit/pkg/blockio"
	"github.com/bgrewell/udf-kit/pkg/disc"
	"github.com/bgrewell/udf-kit/pkg/logging"
	"github.com/bgrewell/udf-kit/pkg/option"
)

// Finding is one reported discrepancy: what was wrong, whether it was
// repaired (always false under ReportOnly), and the error flags it carries.
type Finding struct {
	Description string
	Flags       ErrorFlags
	Repaired    bool
}

// Report accumulates the findings from one fixer operation.
type Report struct {
	Findings []Finding
	Kind     Kind // set only on a fatal/aborting condition
}

// HasUnrepaired reports whether the report recorded anything worth the fsck-style
// "errors uncorrected" exit code.
func (r Report) HasUnrepaired() bool {
	for _, f := range r.Findings {
		if !f.Repaired {
			return true
		}
	}
	return false
}

func (r *Report) add(description string, flags ErrorFlags, repaired bool) {
	r.Findings = append(r.Findings, Finding{Description: description, Flags: flags, Repaired: repaired})
}

// Option configures a Fixer.
type Option func(*Fixer)

// WithConfirm supplies the callback consulted under option.Interactive.
func WithConfirm(c option.Confirm) Option {
	return func(f *Fixer) { f.confirm = c }
}

// WithNoWrite runs every operation as a dry run: in-memory state (the Disc
// aggregate's own fields, where an operation updates them) still mutates,
// but no bytes reach the device (spec.md §4.14's `--no-write` mode).
func WithNoWrite() Option {
	return func(f *Fixer) { f.noWrite = true }
}

// WithLogger overrides the fixer's logger.
func WithLogger(log *logging.Logger) Option {
	return func(f *Fixer) { f.log = log }
}

// Fixer is the Structural Fixer: the only writer in this module (spec.md
// §5's "only the Structural Fixer writes" mutation discipline).
type Fixer struct {
	d       *disc.Disc
	io      blockio.BlockIO
	policy  option.FixPolicy
	confirm option.Confirm
	noWrite bool
	log     *logging.Logger
}

// New creates a Fixer operating on d through io, under policy.
func New(d *disc.Disc, io blockio.BlockIO, policy option.FixPolicy, opts ...Option) *Fixer {
	f := &Fixer{d: d, io: io, policy: policy, log: logging.DefaultLogger().WithName("fixer")}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// decide reports whether a proposed repair should be applied, consulting
// the confirm callback under Interactive and always refusing under
// ReportOnly.
func (f *Fixer) decide(description string) bool {
	switch f.policy {
	case option.AutoFix:
		return true
	case option.Interactive:
		if f.confirm == nil {
			return false
		}
		return f.confirm(description)
	default:
		return false
	}
}

// writeDesc writes buffer at (block * block_size), honoring --no-write (spec.md §4.14's
// `write_desc(extent, ident, buffer)`). block is expressed in logical
// blocks, matching BlockIO.WriteAt's unit.
func (f *Fixer) writeDesc(block uint32, buffer []byte) error {
	if f.noWrite {
		f.log.Debug("no-write: suppressing device write", "block", block, "bytes", len(buffer))
		return nil
	}
	if err := f.io.WriteAt(block, buffer); err != nil {
		return fmt.Errorf("fixer: writing block %d: %w", block, err)
	}
	return nil
}

// sync issues the durable-to-media fence required between a Main write and
// its mirrored Reserve write (spec.md §5's ordering guarantee), honoring
// --no-write.
func (f *Fixer) sync() error {
	if f.noWrite {
		return nil
	}
	if err := f.io.Sync(); err != nil {
		return fmt.Errorf("fixer: sync: %w", err)
	}
	return nil
}
