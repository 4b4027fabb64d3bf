package texttable

// Variant selects one of the four decode/encode behaviours from spec
// §4.2's table. The tables themselves are not duplicated per variant;
// a Codec is just a Table plus these three booleans.
type Variant struct {
	StopOnEOS        bool
	IncludeEOS       bool
	ForceEOSOnEncode bool
}

var (
	VariantStd   = Variant{StopOnEOS: true, IncludeEOS: true, ForceEOSOnEncode: false}
	VariantClean = Variant{StopOnEOS: true, IncludeEOS: false, ForceEOSOnEncode: true}
	VariantRaw   = Variant{StopOnEOS: false, IncludeEOS: true, ForceEOSOnEncode: false}
)

// Codec adapts a Table plus a Variant to the bitview.StringCodec
// interface, so str/strz fields can read and write through it directly.
type Codec struct {
	Table   *Table
	Variant Variant
}

// NewCodec returns a Codec over table using the given variant.
func NewCodec(table *Table, variant Variant) *Codec {
	return &Codec{Table: table, Variant: variant}
}

// Encode implements bitview.StringCodec.
func (c *Codec) Encode(s string) ([]byte, error) {
	out, err := c.Table.Encode(s)
	if err != nil {
		return nil, err
	}
	if c.Variant.ForceEOSOnEncode && !c.HasTerminator(out) {
		out = c.AppendTerminator(out)
	}
	return out, nil
}

// Decode implements bitview.StringCodec.
func (c *Codec) Decode(b []byte) (string, int, error) {
	s, n := c.Table.Decode(b, c.Variant.StopOnEOS, c.Variant.IncludeEOS)
	return s, n, nil
}

// PadByte implements bitview.StringCodec: it is the single byte this
// codec encodes a literal space as, or 0x00 if the table has no
// mapping for a space.
func (c *Codec) PadByte() byte {
	enc, err := c.Table.Encode(" ")
	if err != nil || len(enc) != 1 {
		return 0x00
	}
	return enc[0]
}

// HasTerminator reports whether b ends with one of the table's EOS
// byte sequences.
func (c *Codec) HasTerminator(b []byte) bool {
	for seq := range c.Table.eos {
		if len(seq) <= len(b) && string(b[len(b)-len(seq):]) == seq {
			return true
		}
	}
	return false
}

// AppendTerminator appends the table's canonical (first-declared) EOS
// byte sequence to b.
func (c *Codec) AppendTerminator(b []byte) []byte {
	eos := c.Table.firstEOS()
	if eos == nil {
		return b
	}
	return append(append([]byte{}, b...), eos...)
}
