package structure

import (
	"strconv"
	"strings"

	"github.com/seehuhn-romtool/romtool/bitview"
	"github.com/seehuhn-romtool/romtool/expr"
	"github.com/seehuhn-romtool/romtool/romerr"
	"github.com/seehuhn-romtool/romtool/texttable"
)

// Origin selects which view a Field's offset/size are measured from
// (spec §4.3).
type Origin int

const (
	// OriginSelf measures from the enclosing structure's own view (the
	// default).
	OriginSelf Origin = iota
	// OriginRoot measures from the entire ROM buffer.
	OriginRoot
	// OriginSibling measures from the view of another field in the
	// same structure, selected by name.
	OriginSibling
)

// FieldDef is the definition of one member of a Structure: spec §3's
// "Field (definition)".
type FieldDef struct {
	ID      string
	Name    string
	Type    string // primitive type name, or a registered struct type name
	Origin  Origin
	Sibling string // field name to measure from, when Origin == OriginSibling
	Unit    bitview.Unit
	Offset  *expr.Expr
	Size    *expr.Expr
	Arg     int64  // additive modifier: logical = stored + Arg
	Ref     string // name of the entity set this integer indexes
	Display string // "hex", "pointer", a texttable codec name, or a bit-letter map
	Order   int
	Comment string

	declIndex int // position in the struct's field list, for stable sort
}

// Identifiers returns the id and, if set and different, the name —
// used to detect id/label collisions across fields in the same
// structure (spec §4.4: "Definition fails if ... any two fields share
// an id or label").
func (f *FieldDef) Identifiers() []string {
	ids := []string{f.ID}
	if f.Name != "" && f.Name != f.ID {
		ids = append(ids, f.Name)
	}
	return ids
}

// displayRank orders fields for iteration per spec §4.4: name-field
// first, then by (not-slop, not-pointer, not-unknown, not-flag,
// declared Order, declaration index).
func (f *FieldDef) displayRank() (isName bool, notSlop, notPointer, notUnknown, notFlag bool) {
	isName = f.ID == "name" || strings.EqualFold(f.Display, "name")
	notSlop = f.Display != "slop"
	notPointer = f.Display != "pointer"
	notUnknown = f.Display != "unknown"
	notFlag = f.Display != "flag"
	return
}

// siblingContext is the expr.Context used to evaluate a field's
// offset/size expressions: the enclosing structure's sibling field
// values, plus "root" bound to the size (in Unit) of the whole buffer.
type siblingContext struct {
	s    *Structure
	fid  string
	unit bitview.Unit
}

func (c siblingContext) Lookup(name string) (int64, bool) {
	if name == "root" {
		return c.s.view.Root().Len() / c.unit.Bits(), true
	}
	fd, ok := c.s.typ.byID[name]
	if !ok {
		return 0, false
	}
	if fd.ID == c.fid {
		return 0, false // a field cannot reference itself
	}
	v, err := c.s.rawInt(fd)
	if err != nil {
		return 0, false
	}
	return v, true
}

// resolveOriginView returns the parent view that Offset/Size are
// measured against, per f.Origin.
func resolveOriginView(s *Structure, f *FieldDef) (bitview.BitView, error) {
	switch f.Origin {
	case OriginRoot:
		return s.view.Root(), nil
	case OriginSibling:
		for _, other := range s.typ.fields {
			if other.Name == f.Sibling {
				return s.subview(other)
			}
		}
		return bitview.BitView{}, &romerr.MapError{
			Msg: "origin sibling " + f.Sibling + " not found",
		}
	default:
		return s.view, nil
	}
}

// ParseOrigin interprets the spec's origin strings: "self" (default),
// "root", or any other value, which is a sibling field name.
func ParseOrigin(s string) (Origin, string) {
	switch s {
	case "", "self":
		return OriginSelf, ""
	case "root":
		return OriginRoot, ""
	default:
		return OriginSibling, s
	}
}

// ParseUnit interprets the spec's unit strings.
func ParseUnit(s string) bitview.Unit {
	switch strings.ToLower(s) {
	case "", "bits", "bit":
		return bitview.Bits
	case "bytes", "byte":
		return bitview.Bytes
	case "kb":
		return bitview.KB
	case "mb":
		return bitview.MB
	case "gb":
		return bitview.GB
	default:
		return bitview.Bits
	}
}

// parseInt is a small helper for Handler implementations parsing a
// tabular cell back into an integer.
func parseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &romerr.MapError{Msg: "empty integer value"}
	}
	return strconv.ParseInt(s, 0, 64)
}

// codecLookup resolves a field's `display` attribute to a
// texttable.Codec, via the table registered under that name in the
// owning RomMap's codec registry (spec §5: "texttable codec
// registry... registration happens during map load").
type codecLookup interface {
	Codec(name string) (*texttable.Codec, bool)
}
