package rom

import (
	"strconv"
	"strings"

	"github.com/seehuhn-romtool/romtool/bitview"
	"github.com/seehuhn-romtool/romtool/entity"
	"github.com/seehuhn-romtool/romtool/internal/tabular"
	"github.com/seehuhn-romtool/romtool/romerr"
	"github.com/seehuhn-romtool/romtool/rtable"
	"github.com/seehuhn-romtool/romtool/structure"
)

// tableRow is one parsed rom.tsv row (spec §6: "id, type, set?, index?,
// offset?, size?, count?, stride?, unit?, display?, fid?, name?,
// iname?").
type tableRow struct {
	id, typeName, set, index string
	offset, size, count, stride int64
	unit                         bitview.Unit
	display, fid, fname, iname   string
}

func parseTableRow(row tabular.Row, where string) (*tableRow, error) {
	id := strings.TrimSpace(row["id"])
	if id == "" {
		return nil, &romerr.MapError{Where: where, Msg: "table row is missing id"}
	}
	tr := &tableRow{
		id:       id,
		typeName: strings.TrimSpace(row["type"]),
		set:      strings.TrimSpace(row["set"]),
		index:    strings.TrimSpace(row["index"]),
		unit:     structure.ParseUnit(row["unit"]),
		display:  strings.TrimSpace(row["display"]),
		fid:      strings.TrimSpace(row["fid"]),
		fname:    strings.TrimSpace(row["name"]),
		iname:    strings.TrimSpace(row["iname"]),
	}
	var err error
	if tr.offset, err = parseOptionalInt(row["offset"]); err != nil {
		return nil, &romerr.MapError{Where: where, Msg: "table " + id + ": bad offset: " + err.Error()}
	}
	if tr.size, err = parseOptionalInt(row["size"]); err != nil {
		return nil, &romerr.MapError{Where: where, Msg: "table " + id + ": bad size: " + err.Error()}
	}
	if tr.count, err = parseOptionalInt(row["count"]); err != nil {
		return nil, &romerr.MapError{Where: where, Msg: "table " + id + ": bad count: " + err.Error()}
	}
	if tr.stride, err = parseOptionalInt(row["stride"]); err != nil {
		return nil, &romerr.MapError{Where: where, Msg: "table " + id + ": bad stride: " + err.Error()}
	}
	return tr, nil
}

func parseOptionalInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 0, 64)
}

// BuildTables constructs every rom.tsv table over root, resolving
// IndexedBy dependencies in whatever order satisfies them (spec §4.7:
// "construct tables in dependency order (indexes first)"), and groups
// them into EntityLists by their `set` column.
func BuildTables(rows []*tableRow, root bitview.BitView, handlers *structure.HandlerRegistry, types *structure.TypeRegistry, codecs rtable.CodecLookup, refs structure.RefResolver) (map[string]*rtable.Table, map[string]*entity.EntityList, error) {
	byID := make(map[string]*tableRow, len(rows))
	for _, r := range rows {
		if _, dup := byID[r.id]; dup {
			return nil, nil, &romerr.DuplicateError{Kind: "table id", Key: r.id}
		}
		byID[r.id] = r
	}

	built := make(map[string]*rtable.Table, len(rows))
	pending := make(map[string]*tableRow, len(rows))
	for _, r := range rows {
		pending[r.id] = r
	}

	for len(pending) > 0 {
		progressed := false
		for id, r := range pending {
			if r.index != "" {
				if _, ok := built[r.index]; !ok {
					continue // dependency not yet built
				}
			}
			t, err := buildOneTable(r, built[r.index], root, handlers, types, codecs, refs)
			if err != nil {
				return nil, nil, err
			}
			built[id] = t
			delete(pending, id)
			progressed = true
		}
		if !progressed {
			names := make([]string, 0, len(pending))
			for id := range pending {
				names = append(names, id)
			}
			return nil, nil, &romerr.MapError{Where: "rom.tsv", Msg: "unresolvable table index dependency among: " + strings.Join(names, ", ")}
		}
	}

	sets := make(map[string][]*rtable.Table)
	setOrder := make([]string, 0)
	for _, r := range rows {
		if r.set == "" {
			continue
		}
		if _, ok := sets[r.set]; !ok {
			setOrder = append(setOrder, r.set)
		}
		sets[r.set] = append(sets[r.set], built[r.id])
	}
	entities := make(map[string]*entity.EntityList, len(sets))
	for _, name := range setOrder {
		el, err := entity.New(name, sets[name])
		if err != nil {
			return nil, nil, err
		}
		entities[name] = el
	}

	return built, entities, nil
}

func buildOneTable(r *tableRow, indexTable *rtable.Table, root bitview.BitView, handlers *structure.HandlerRegistry, types *structure.TypeRegistry, codecs rtable.CodecLookup, refs structure.RefResolver) (*rtable.Table, error) {
	mode := rtable.Fixed
	if r.index != "" {
		mode = rtable.IndexedBy
	}
	t := rtable.New(r.id, r.typeName, mode, root, handlers, types, refs)
	t.WithCodecs(codecs)
	t.Unit = r.unit
	t.Offset = r.offset
	t.Count = r.count
	t.Stride = r.stride
	t.ItemSize = r.size
	t.Display = r.display
	t.FieldID = r.fid
	t.FieldName = r.fname
	t.IndexName = r.iname
	if mode == rtable.IndexedBy {
		t.Index = indexTable
	}
	return t, nil
}
