package structure

import (
	"strconv"
	"strings"

	"github.com/seehuhn-romtool/romtool/bitview"
	"github.com/seehuhn-romtool/romtool/romerr"
	"github.com/seehuhn-romtool/romtool/texttable"
)

// Handler implements one primitive field type: how to read a view into
// a Go value, write a Go value back into a view, and parse/format the
// tabular cell representation used by dump/load (spec §4.3 "primitive
// type table", §6 "dump format").
type Handler interface {
	// Read decodes the field's view into a Go value (int64, string, or
	// []byte depending on the type).
	Read(view bitview.BitView, f *FieldDef, codecs codecLookup) (any, error)
	// Write encodes a Go value (as produced by Parse) into the field's
	// view.
	Write(view bitview.BitView, f *FieldDef, codecs codecLookup, value any) error
	// Parse converts a tabular cell's string form into the value Write
	// expects.
	Parse(f *FieldDef, cell string) (any, error)
	// Format converts a value from Read into its tabular cell string
	// form. bits is the width, in bits, of the view the field occupies,
	// used for width-aware hex/pointer rendering.
	Format(f *FieldDef, value any, bits int64) (string, error)
}

type uintHandler struct{}

func (uintHandler) Read(v bitview.BitView, f *FieldDef, _ codecLookup) (any, error) {
	u, err := v.ReadUint()
	if err != nil {
		return nil, err
	}
	return int64(u) + f.Arg, nil
}

func (uintHandler) Write(v bitview.BitView, f *FieldDef, _ codecLookup, value any) error {
	n, err := asInt(value)
	if err != nil {
		return err
	}
	return v.WriteUint(uint64(n - f.Arg))
}

func (uintHandler) Parse(f *FieldDef, cell string) (any, error) {
	return parseDisplayInt(f, cell)
}

func (uintHandler) Format(f *FieldDef, value any, bits int64) (string, error) {
	return formatDisplayInt(f, value, bits)
}

type uintleHandler struct{}

func (uintleHandler) Read(v bitview.BitView, f *FieldDef, _ codecLookup) (any, error) {
	u, err := v.ReadUintLE()
	if err != nil {
		return nil, err
	}
	return int64(u) + f.Arg, nil
}

func (uintleHandler) Write(v bitview.BitView, f *FieldDef, _ codecLookup, value any) error {
	n, err := asInt(value)
	if err != nil {
		return err
	}
	return v.WriteUintLE(uint64(n - f.Arg))
}

func (uintleHandler) Parse(f *FieldDef, cell string) (any, error) {
	return parseDisplayInt(f, cell)
}

func (uintleHandler) Format(f *FieldDef, value any, bits int64) (string, error) {
	return formatDisplayInt(f, value, bits)
}

type uintbeHandler struct{}

func (uintbeHandler) Read(v bitview.BitView, f *FieldDef, _ codecLookup) (any, error) {
	u, err := v.ReadUintBE()
	if err != nil {
		return nil, err
	}
	return int64(u) + f.Arg, nil
}

func (uintbeHandler) Write(v bitview.BitView, f *FieldDef, _ codecLookup, value any) error {
	n, err := asInt(value)
	if err != nil {
		return err
	}
	return v.WriteUintBE(uint64(n - f.Arg))
}

func (uintbeHandler) Parse(f *FieldDef, cell string) (any, error) {
	return parseDisplayInt(f, cell)
}

func (uintbeHandler) Format(f *FieldDef, value any, bits int64) (string, error) {
	return formatDisplayInt(f, value, bits)
}

type intHandler struct{}

func (intHandler) Read(v bitview.BitView, f *FieldDef, _ codecLookup) (any, error) {
	n, err := v.ReadInt()
	if err != nil {
		return nil, err
	}
	return n + f.Arg, nil
}

func (intHandler) Write(v bitview.BitView, f *FieldDef, _ codecLookup, value any) error {
	n, err := asInt(value)
	if err != nil {
		return err
	}
	return v.WriteInt(n - f.Arg)
}

func (intHandler) Parse(f *FieldDef, cell string) (any, error) {
	return parseDisplayInt(f, cell)
}

func (intHandler) Format(f *FieldDef, value any, bits int64) (string, error) {
	return formatDisplayInt(f, value, bits)
}

type binHandler struct{}

func (binHandler) Read(v bitview.BitView, _ *FieldDef, _ codecLookup) (any, error) {
	return v.ReadBin()
}

func (binHandler) Write(v bitview.BitView, _ *FieldDef, _ codecLookup, value any) error {
	s, ok := value.(string)
	if !ok {
		return &romerr.EncodeError{Msg: "bin field requires a string value"}
	}
	return v.WriteBin(s)
}

func (binHandler) Parse(_ *FieldDef, cell string) (any, error) { return cell, nil }
func (binHandler) Format(_ *FieldDef, value any, _ int64) (string, error) {
	return value.(string), nil
}

type hexHandler struct{}

func (hexHandler) Read(v bitview.BitView, _ *FieldDef, _ codecLookup) (any, error) {
	return v.ReadHex()
}

func (hexHandler) Write(v bitview.BitView, _ *FieldDef, _ codecLookup, value any) error {
	s, ok := value.(string)
	if !ok {
		return &romerr.EncodeError{Msg: "hex field requires a string value"}
	}
	return v.WriteHex(s)
}

func (hexHandler) Parse(_ *FieldDef, cell string) (any, error) {
	return strings.TrimSpace(cell), nil
}
func (hexHandler) Format(_ *FieldDef, value any, _ int64) (string, error) {
	return value.(string), nil
}

type bytesHandler struct{}

func (bytesHandler) Read(v bitview.BitView, _ *FieldDef, _ codecLookup) (any, error) {
	return v.ReadBytes()
}

func (bytesHandler) Write(v bitview.BitView, _ *FieldDef, _ codecLookup, value any) error {
	b, ok := value.([]byte)
	if !ok {
		return &romerr.EncodeError{Msg: "bytes field requires a []byte value"}
	}
	return v.WriteBytes(b)
}

func (bytesHandler) Parse(_ *FieldDef, cell string) (any, error) {
	return []byte(cell), nil
}
func (bytesHandler) Format(_ *FieldDef, value any, _ int64) (string, error) {
	return string(value.([]byte)), nil
}

type nbcdleHandler struct{}

func (nbcdleHandler) Read(v bitview.BitView, f *FieldDef, _ codecLookup) (any, error) {
	u, err := v.ReadNBCDLE()
	if err != nil {
		return nil, err
	}
	return int64(u) + f.Arg, nil
}

func (nbcdleHandler) Write(v bitview.BitView, f *FieldDef, _ codecLookup, value any) error {
	n, err := asInt(value)
	if err != nil {
		return err
	}
	return v.WriteNBCDLE(uint64(n - f.Arg))
}

func (nbcdleHandler) Parse(f *FieldDef, cell string) (any, error) {
	return parseInt(cell)
}
func (nbcdleHandler) Format(_ *FieldDef, value any, _ int64) (string, error) {
	n, err := asInt(value)
	if err != nil {
		return "", err
	}
	return formatInt(n, "", 0), nil
}

// strHandler and strzHandler both need the field's texttable codec,
// resolved by name from the owning map's codec registry (spec §5.2).
type strHandler struct{}

func (strHandler) codec(f *FieldDef, codecs codecLookup) (*texttable.Codec, error) {
	name := f.Display
	if name == "" {
		name = "default"
	}
	c, ok := codecs.Codec(name)
	if !ok {
		return nil, &romerr.MapError{Msg: "unknown text table codec " + name}
	}
	return c, nil
}

func (h strHandler) Read(v bitview.BitView, f *FieldDef, codecs codecLookup) (any, error) {
	c, err := h.codec(f, codecs)
	if err != nil {
		return nil, err
	}
	return v.ReadStr(c)
}

func (h strHandler) Write(v bitview.BitView, f *FieldDef, codecs codecLookup, value any) error {
	c, err := h.codec(f, codecs)
	if err != nil {
		return err
	}
	s, ok := value.(string)
	if !ok {
		return &romerr.EncodeError{Msg: "str field requires a string value"}
	}
	return v.WriteStr(c, s)
}

func (strHandler) Parse(_ *FieldDef, cell string) (any, error) { return cell, nil }

func (strHandler) Format(_ *FieldDef, value any, _ int64) (string, error) {
	return value.(string), nil
}

type strzHandler struct{ strHandler }

func (h strzHandler) Read(v bitview.BitView, f *FieldDef, codecs codecLookup) (any, error) {
	c, err := h.codec(f, codecs)
	if err != nil {
		return nil, err
	}
	s, _, err := v.ReadStrZ(c)
	return s, err
}

func (h strzHandler) Write(v bitview.BitView, f *FieldDef, codecs codecLookup, value any) error {
	c, err := h.codec(f, codecs)
	if err != nil {
		return err
	}
	s, ok := value.(string)
	if !ok {
		return &romerr.EncodeError{Msg: "strz field requires a string value"}
	}
	return v.WriteStrZ(c, s)
}

// builtinHandlers is the primitive type table (spec §4.3).
var builtinHandlers = map[string]Handler{
	"uint":   uintHandler{},
	"uintle": uintleHandler{},
	"uintbe": uintbeHandler{},
	"int":    intHandler{},
	"bin":    binHandler{},
	"hex":    hexHandler{},
	"bytes":  bytesHandler{},
	"nbcdle": nbcdleHandler{},
	"str":    strHandler{},
	"strz":   strzHandler{},
}

func asInt(value any) (int64, error) {
	switch n := value.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case IndexInt:
		return n.Value, nil
	default:
		return 0, &romerr.EncodeError{Msg: "expected an integer value"}
	}
}

// parseDisplayInt parses a non-empty cell as a decimal or 0x-prefixed
// integer literal, which covers the hex form formatDisplayInt writes.
// It does not consult f.Display, so hex digits without a 0x prefix are
// rejected; ref-typed fields are resolved by Structure, which does not
// call this for them.
func parseDisplayInt(f *FieldDef, cell string) (any, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil, &romerr.DecodeError{Msg: "empty integer cell for field " + f.ID}
	}
	return parseInt(cell)
}

func formatDisplayInt(f *FieldDef, value any, bits int64) (string, error) {
	n, err := asInt(value)
	if err != nil {
		return "", err
	}
	return formatInt(n, f.Display, bits), nil
}

// formatInt renders n in decimal, or as hex when display is "hex" or
// "pointer" (field.py:303 treats both identically). Hex output is
// zero-padded to the number of hex digits the field's bit width
// requires, matching field.py:303's width-aware HexInt(i, len(view)).
func formatInt(n int64, display string, bits int64) string {
	if display == "hex" || display == "pointer" {
		width := 0
		if bits > 0 {
			width = int((bits + 3) / 4)
		}
		if n < 0 {
			return "-0x" + pad(strconv.FormatUint(uint64(-n), 16), width)
		}
		return "0x" + pad(strconv.FormatUint(uint64(n), 16), width)
	}
	return strconv.FormatInt(n, 10)
}

func pad(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}
