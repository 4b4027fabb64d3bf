package rom

import (
	"errors"
	"io/fs"
	"path"
	"strings"

	"github.com/seehuhn-romtool/romtool/expr"
	"github.com/seehuhn-romtool/romtool/internal/tabular"
	"github.com/seehuhn-romtool/romtool/romerr"
	"github.com/seehuhn-romtool/romtool/structure"
)

// oneLiteral is the implicit size of every bitfield member that leaves
// its size column blank (spec §4.4: "BitField... fields are all
// single-bit").
var oneLiteral = expr.MustParse("1")

// loadFieldRows reads one *.tsv file's rows via internal/tabular,
// ordering by _idx if present (spec §4.9, §9).
func loadFieldRows(mapDir fs.FS, rel string) ([]tabular.Row, error) {
	f, err := mapDir.Open(rel)
	if err != nil {
		return nil, &romerr.MapError{Where: rel, Msg: "cannot open: " + err.Error()}
	}
	defer f.Close()
	_, rows, err := tabular.ReadAll(f)
	if err != nil {
		return nil, &romerr.MapError{Where: rel, Msg: "cannot parse: " + err.Error()}
	}
	return tabular.OrderByIdx(rows)
}

// LoadStructTypes parses every structs/*.tsv file into a registered
// StructType, one struct per file named after the file's base name
// (spec §6: each row is one field; the spec's column list carries no
// struct-name column, so the file itself is the grouping unit).
func LoadStructTypes(mapDir fs.FS, types *structure.TypeRegistry) error {
	entries, err := fs.ReadDir(mapDir, "structs")
	if err != nil {
		if isMissingDir(err) {
			return nil
		}
		return &romerr.MapError{Where: "structs", Msg: "cannot read directory: " + err.Error()}
	}
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".tsv") {
			continue
		}
		rel := path.Join("structs", ent.Name())
		name := strings.TrimSuffix(ent.Name(), ".tsv")
		rows, err := loadFieldRows(mapDir, rel)
		if err != nil {
			return err
		}
		fields := make([]*structure.FieldDef, 0, len(rows))
		for _, row := range rows {
			f, err := parseFieldRow(row, rel)
			if err != nil {
				return err
			}
			fields = append(fields, f)
		}
		st, err := structure.NewStructType(name, fields)
		if err != nil {
			return err
		}
		if err := types.Define(st); err != nil {
			return err
		}
	}
	return nil
}

// BitFieldTypes maps a bitfield type name to its parsed definition, so
// table/struct field types can be resolved as either a StructType or a
// BitField type (spec §3, §4.4: "a BitField is a Structure whose
// fields are all single-bit").
type BitFieldTypes struct {
	byName map[string]*structure.StructType
}

// Lookup returns the bitfield's underlying StructType, if name names
// one.
func (b *BitFieldTypes) Lookup(name string) (*structure.StructType, bool) {
	st, ok := b.byName[name]
	return st, ok
}

// LoadBitFields parses every bitfields/*.tsv file into a BitField type
// definition, one per file, and also registers its StructType in types
// so ordinary field/table type-name resolution finds it.
func LoadBitFields(mapDir fs.FS, types *structure.TypeRegistry) (*BitFieldTypes, error) {
	bf := &BitFieldTypes{byName: make(map[string]*structure.StructType)}
	entries, err := fs.ReadDir(mapDir, "bitfields")
	if err != nil {
		if isMissingDir(err) {
			return bf, nil
		}
		return nil, &romerr.MapError{Where: "bitfields", Msg: "cannot read directory: " + err.Error()}
	}
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".tsv") {
			continue
		}
		rel := path.Join("bitfields", ent.Name())
		name := strings.TrimSuffix(ent.Name(), ".tsv")
		rows, err := loadFieldRows(mapDir, rel)
		if err != nil {
			return nil, err
		}
		fields := make([]*structure.FieldDef, 0, len(rows))
		for _, row := range rows {
			f, err := parseFieldRow(row, rel)
			if err != nil {
				return nil, err
			}
			if f.Size == nil {
				f.Size = oneLiteral
			}
			fields = append(fields, f)
		}
		st, err := structure.NewStructType(name, fields)
		if err != nil {
			return nil, err
		}
		if err := structure.ValidateBitFieldType(st); err != nil {
			return nil, err
		}
		if err := types.Define(st); err != nil {
			return nil, err
		}
		bf.byName[name] = st
	}
	return bf, nil
}

func isMissingDir(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
