package structure

import (
	"strings"
	"unicode"

	"github.com/seehuhn-romtool/romtool/romerr"
)

// BitField is a Structure whose fields are all single bits and whose
// string form is a letter-case bitmap: each field's `display` names
// the letter that is uppercased when the bit is set, lowercased when
// clear (spec §4.4). Declaration order governs both Str and Parse —
// not sorted display order.
type BitField struct {
	s *Structure
}

// NewBitField wraps s as a BitField, validating that every field is
// exactly one bit wide and carries a single-letter display.
func NewBitField(s *Structure) (*BitField, error) {
	if err := ValidateBitFieldType(s.typ); err != nil {
		return nil, err
	}
	return &BitField{s: s}, nil
}

// ValidateBitFieldType checks st's shape against the BitField
// invariants (every member 1 bit wide, single-letter display) without
// requiring a live instance — used at map-load time, before any ROM
// buffer exists to build a Structure over.
func ValidateBitFieldType(st *StructType) error {
	for _, f := range st.fields {
		if f.Size != nil && f.Size.IsStatic() {
			n, _ := f.Size.Eval(nil)
			if n != 1 {
				return &romerr.MapError{Msg: "bitfield member " + f.ID + " is not 1 bit wide"}
			}
		}
		if len([]rune(f.Display)) != 1 {
			return &romerr.MapError{Msg: "bitfield member " + f.ID + " needs a single-letter display"}
		}
	}
	return nil
}

// Structure returns the underlying Structure.
func (bf *BitField) Structure() *Structure { return bf.s }

// Str renders the bitfield in declaration order, one letter per field,
// uppercase when set.
func (bf *BitField) Str() (string, error) {
	var sb strings.Builder
	for _, f := range bf.s.typ.fields {
		v, err := bf.s.Get(f.ID)
		if err != nil {
			return "", err
		}
		n, err := asInt(v)
		if err != nil {
			return "", err
		}
		letter := []rune(f.Display)[0]
		if n != 0 {
			sb.WriteRune(unicode.ToUpper(letter))
		} else {
			sb.WriteRune(unicode.ToLower(letter))
		}
	}
	return sb.String(), nil
}

// Parse sets every field from a letter-case bitmap, in declaration
// order: uppercase sets the bit, lowercase clears it. s must have
// exactly as many runes as the bitfield has fields.
func (bf *BitField) Parse(s string) error {
	runes := []rune(s)
	if len(runes) != len(bf.s.typ.fields) {
		return &romerr.DecodeError{Msg: "bitfield letter-mask length does not match field count"}
	}
	for i, f := range bf.s.typ.fields {
		set := unicode.IsUpper(runes[i])
		var v int64
		if set {
			v = 1
		}
		if err := bf.s.Set(f.ID, v); err != nil {
			return err
		}
	}
	return nil
}
