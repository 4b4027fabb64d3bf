package rom

import (
	"io/fs"
	"path"
	"strconv"
	"strings"

	"github.com/seehuhn-romtool/romtool/bitview"
	"github.com/seehuhn-romtool/romtool/entity"
	"github.com/seehuhn-romtool/romtool/internal/tabular"
	"github.com/seehuhn-romtool/romtool/romerr"
	"github.com/seehuhn-romtool/romtool/rtable"
	"github.com/seehuhn-romtool/romtool/structure"
)

// Assertion is one tests.tsv row: an expected value at a table/item/
// attribute path, checked against a loaded ROM as a lightweight
// regression test for the map itself (spec §6: "table, item(int),
// attribute?, value").
type Assertion struct {
	Table     string
	Item      int64
	Attribute string
	Value     string
}

// Map is everything loaded from one ROM map directory (spec §4.7 "map
// loading", §6 "map directory layout"): type/handler registries, the
// text-table codec registry, enum tables, table specs (not yet bound
// to a buffer), and the self-test assertions shipped with the map.
type Map struct {
	Meta       *Meta
	Types      *structure.TypeRegistry
	Handlers   *structure.HandlerRegistry
	Codecs     *CodecRegistry
	Enums      *Enums
	BitFields  *BitFieldTypes
	tableRows  []*tableRow
	Assertions []Assertion

	// Sanitize is the map-specific hook spec §4.7's state machine runs
	// for the "sanitize" transition (e.g. recompute checksums). Nil
	// for any map that registers none; set by the caller's own
	// map-specific code on the *Map LoadMap returns, the same way
	// AddHook/Override register field-level hooks, since Go has no
	// analog to dynamically importing a map's "hooks.py".
	Sanitize func(*Rom) error

	// Synthetic, if set, runs once after BuildTables constructs a Rom's
	// tables and entity lists (spec §9's synthetic-table extension
	// point), letting map-specific code add or alter entries before the
	// Rom is considered ready.
	Synthetic SyntheticTableFunc
}

// LoadMap reads a map directory in the order spec §4.7 prescribes:
// meta.yaml, texttables, enums, bitfields, structs, rom.tsv, tests.tsv.
// (Hooks, the one remaining stage named by the spec, are a Go-specific
// concern addressed by AddHook/Override on the returned Handlers,
// called by the caller's own map-specific registration code rather
// than by dynamically loading a scripted module — there is no Go
// analog to importing a "hooks.py" at runtime.)
func LoadMap(mapDir fs.FS) (*Map, error) {
	meta, err := loadMeta(mapDir)
	if err != nil {
		return nil, err
	}
	codecs, err := LoadCodecs(mapDir)
	if err != nil {
		return nil, err
	}
	enums, err := LoadEnums(mapDir)
	if err != nil {
		return nil, err
	}

	types := structure.NewTypeRegistry()
	handlers := structure.NewHandlerRegistry()

	bitFields, err := LoadBitFields(mapDir, types)
	if err != nil {
		return nil, err
	}
	if err := LoadStructTypes(mapDir, types); err != nil {
		return nil, err
	}

	rows, err := loadTableRows(mapDir)
	if err != nil {
		return nil, err
	}

	assertions, err := loadAssertions(mapDir)
	if err != nil {
		return nil, err
	}

	return &Map{
		Meta:       meta,
		Types:      types,
		Handlers:   handlers,
		Codecs:     codecs,
		Enums:      enums,
		BitFields:  bitFields,
		tableRows:  rows,
		Assertions: assertions,
	}, nil
}

func loadTableRows(mapDir fs.FS) ([]*tableRow, error) {
	f, err := mapDir.Open("rom.tsv")
	if err != nil {
		if isMissingDir(err) {
			return nil, nil
		}
		return nil, &romerr.MapError{Where: "rom.tsv", Msg: "cannot open: " + err.Error()}
	}
	defer f.Close()
	_, rows, err := tabular.ReadAll(f)
	if err != nil {
		return nil, &romerr.MapError{Where: "rom.tsv", Msg: "cannot parse: " + err.Error()}
	}
	out := make([]*tableRow, 0, len(rows))
	for _, row := range rows {
		tr, err := parseTableRow(row, "rom.tsv")
		if err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, nil
}

func loadAssertions(mapDir fs.FS) ([]Assertion, error) {
	f, err := mapDir.Open("tests.tsv")
	if err != nil {
		if isMissingDir(err) {
			return nil, nil
		}
		return nil, &romerr.MapError{Where: "tests.tsv", Msg: "cannot open: " + err.Error()}
	}
	defer f.Close()
	_, rows, err := tabular.ReadAll(f)
	if err != nil {
		return nil, &romerr.MapError{Where: "tests.tsv", Msg: "cannot parse: " + err.Error()}
	}
	out := make([]Assertion, 0, len(rows))
	for _, row := range rows {
		item, err := strconv.ParseInt(strings.TrimSpace(row["item"]), 0, 64)
		if err != nil {
			return nil, &romerr.MapError{Where: "tests.tsv", Msg: "bad item index: " + err.Error()}
		}
		out = append(out, Assertion{
			Table:     strings.TrimSpace(row["table"]),
			Item:      item,
			Attribute: strings.TrimSpace(row["attribute"]),
			Value:     row["value"],
		})
	}
	return out, nil
}

// BuildTables constructs m's rom.tsv tables and entity sets over root,
// the Rom's working buffer view (spec §4.7: "construct tables in
// dependency order (indexes first) -> construct entity lists (grouped
// by set)").
func (m *Map) BuildTables(root bitview.BitView, refs structure.RefResolver) (map[string]*rtable.Table, map[string]*entity.EntityList, error) {
	return BuildTables(m.tableRows, root, m.Handlers, m.Types, m.Codecs, refs)
}

// SyntheticTableFunc is the extension point spec §9 names for
// hook-provided Rom subclasses that alter table composition after
// construction: a Map's Synthetic func may add to or rewrite the
// tables/entities BuildTables constructed, before Open wraps them in a
// Rom. No default map sets one.
type SyntheticTableFunc func(tables map[string]*rtable.Table, entities map[string]*entity.EntityList) error

// ExtFiles lists the optional built-in changesets shipped under a map
// directory's ext/ (spec §6: "ext/*.{asm,ips,ipst,yaml,json}"), for a
// caller to offer by name (e.g. the CLI's "ext" command) and apply
// with changeset.Apply, changeset.ApplyAssembly, or patch.FromIPS/
// FromIPST depending on each entry's extension.
func (m *Map) ExtFiles(mapDir fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(mapDir, "ext")
	if err != nil {
		if isMissingDir(err) {
			return nil, nil
		}
		return nil, &romerr.MapError{Where: "ext", Msg: "cannot read directory: " + err.Error()}
	}
	out := make([]string, 0, len(entries))
	for _, ent := range entries {
		if !ent.IsDir() {
			out = append(out, path.Join("ext", ent.Name()))
		}
	}
	return out, nil
}
