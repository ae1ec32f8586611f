// Package option holds the functional-options types consumed by
// disc.ReadDisc and pkg/fixer, kept separate from pkg/disc so CLI packages
// can import just the option vocabulary without pulling in the whole engine.
package option

// OpenOptions configures disc.ReadDisc. Every field is optional; the zero
// value means "detect".
type OpenOptions struct {
	BlockSize  uint32 // forces the logical block size instead of detecting it
	StartBlock uint32 // first block of the session to read (multisession media)
	LastBlock  uint32 // last block of the session to read, 0 = device end
	VATBlock   uint32 // forces the VAT ICB location instead of searching for it
}

// OpenOption mutates an OpenOptions.
type OpenOption func(*OpenOptions)

// WithBlockSize forces the logical block size.
func WithBlockSize(n uint32) OpenOption { return func(o *OpenOptions) { o.BlockSize = n } }

// WithStartBlock sets the first block of the session to read.
func WithStartBlock(n uint32) OpenOption { return func(o *OpenOptions) { o.StartBlock = n } }

// WithLastBlock sets the last block of the session to read.
func WithLastBlock(n uint32) OpenOption { return func(o *OpenOptions) { o.LastBlock = n } }

// WithVATBlock forces the VAT ICB location, bypassing the backward search.
func WithVATBlock(n uint32) OpenOption { return func(o *OpenOptions) { o.VATBlock = n } }

// Apply builds an OpenOptions from a list of OpenOption.
func Apply(opts ...OpenOption) OpenOptions {
	var o OpenOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
