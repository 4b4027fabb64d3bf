// Package rom implements Rom/RomMap (spec §3, §4.7): loading a map
// directory, detecting a ROM image's type, constructing the tables and
// entity lists the map describes, and the read/write/patch/write-out
// state machine that sits on top of them.
package rom

import (
	"errors"
	"io"
	"io/fs"
	"strconv"

	"github.com/seehuhn-romtool/romtool/bitview"
	"github.com/seehuhn-romtool/romtool/entity"
	"github.com/seehuhn-romtool/romtool/internal/tabular"
	"github.com/seehuhn-romtool/romtool/patch"
	"github.com/seehuhn-romtool/romtool/romerr"
	"github.com/seehuhn-romtool/romtool/rtable"
	"github.com/seehuhn-romtool/romtool/structure"
)

// Rom is a loaded ROM image bound to a Map (spec §3's tuple: romtype,
// working view, original view, map, tables, entities, header).
type Rom struct {
	RomType     Format
	Map         *Map
	orig        *bitview.Buffer
	file        *bitview.Buffer
	Tables      map[string]*rtable.Table
	EntityLists map[string]*entity.EntityList
}

// Open constructs a Rom from raw bytes and an already-loaded Map: it
// builds the working/original buffers, detects the image's header
// format, and constructs every table and entity list the map describes
// (spec §4.7's state machine, "[Created] -> construct tables ...
// -> construct entity lists ... -> ready").
func Open(data []byte, m *Map) (*Rom, error) {
	format, body, err := DetectFormat(data)
	if err != nil {
		format, body = "", data // header detection is optional; proceed untyped
	}

	working := append([]byte(nil), body...)
	origBuf := bitview.NewBuffer(append([]byte(nil), body...))
	fileBuf := bitview.NewBuffer(working)

	r := &Rom{RomType: format, Map: m, orig: origBuf, file: fileBuf}

	tables, entities, err := m.BuildTables(fileBuf.View(), r)
	if err != nil {
		return nil, err
	}
	if m.Synthetic != nil {
		if err := m.Synthetic(tables, entities); err != nil {
			return nil, err
		}
	}
	r.Tables = tables
	r.EntityLists = entities
	return r, nil
}

// Entities implements structure.RefResolver, so `ref`-typed integer
// fields anywhere under this Rom resolve against its own entity lists.
func (r *Rom) Entities(name string) (structure.EntitySet, bool) {
	el, ok := r.EntityLists[name]
	return el, ok
}

// View returns the current working buffer as a whole-ROM BitView.
func (r *Rom) View() bitview.BitView { return r.file.View() }

// Lookup implements changeset.Locator: a changeset's top-level keys
// name entity sets first, then raw tables (spec §4.7: "Rom resolves
// set names then table names").
func (r *Rom) Lookup(key string) (any, error) {
	if el, ok := r.EntityLists[key]; ok {
		return el, nil
	}
	if t, ok := r.Tables[key]; ok {
		return t, nil
	}
	return nil, &romerr.NotFoundError{Kind: "set or table", Key: key}
}

// Patch computes the diff between the working and original buffers
// (spec §4.7: "patch -> Patch (diff of working vs. original bytes)").
func (r *Rom) Patch() *patch.Patch {
	return patch.FromDiff(r.orig.Bytes, r.file.Bytes)
}

// Dirty reports whether any write has touched the working buffer since
// load; derived from Patch rather than tracked by a separate flag,
// since the diff against orig is already the state machine's source of
// truth for "what changed" (spec §5: "orig never changes after
// construction; patch is computed by diffing working against orig at
// the moment of the call").
func (r *Rom) Dirty() bool {
	return len(r.Patch().Changes) > 0
}

// Bytes returns the current working buffer's bytes.
func (r *Rom) Bytes() []byte {
	return r.file.Bytes
}

// DumpDir writes one TSV file per entity set into dir (spec §4.9
// "Dump"). Whether an existing destination may be overwritten
// (--force) is the caller's decision, expressed through what open
// does when a file already exists.
func (r *Rom) DumpDir(dir func(name string) (io.WriteCloser, error)) error {
	for name, el := range r.EntityLists {
		w, err := dir(name + ".tsv")
		if err != nil {
			return err
		}
		header := el.Columns()
		n := el.Len()
		rows := make([]tabular.Row, n)
		for i := int64(0); i < n; i++ {
			row, err := el.Dump(i)
			if err != nil {
				w.Close()
				return err
			}
			rows[i] = row
		}
		err = tabular.WriteAll(w, header, rows)
		w.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// LoadDir reads one TSV file per named entity set from open (a
// caller-supplied opener, keeping filesystem access out of this
// package per spec §2) and applies each row to the matching entity by
// position, honoring _idx ordering where present (spec §4.9 "Load":
// "sort by _idx if present (warn if missing)" — the warning itself is
// the CLI layer's job, since this package reports errors, not
// warnings). A missing set file is treated as "nothing to load" for
// that set, not an error.
func (r *Rom) LoadDir(open func(name string) (fs.File, error), names []string) error {
	for _, name := range names {
		el, ok := r.EntityLists[name]
		if !ok {
			return &romerr.NotFoundError{Kind: "entity set", Key: name}
		}
		f, err := open(name + ".tsv")
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return &romerr.MapError{Where: name + ".tsv", Msg: "cannot open: " + err.Error()}
		}
		_, rows, err := tabular.ReadAll(f)
		closeErr := f.Close()
		if err != nil {
			return &romerr.MapError{Where: name + ".tsv", Msg: "cannot parse: " + err.Error()}
		}
		if closeErr != nil {
			return closeErr
		}
		ordered, err := tabular.OrderByIdx(rows)
		if err != nil {
			return err
		}
		el.EnableSearchCache()
		for i, row := range ordered {
			if err := el.Load(int64(i), row); err != nil {
				el.DisableSearchCache()
				return err
			}
		}
		el.DisableSearchCache()
	}
	return nil
}

// RunAssertions checks every tests.tsv row against the current ROM
// state, returning the first mismatch (spec §6: "tests.tsv — one
// assertion per row"). Used as a lightweight self-test for a map: the
// map author's expectations about a known ROM, not a user-facing
// feature.
func (r *Rom) RunAssertions() error {
	for _, a := range r.Map.Assertions {
		t, ok := r.Tables[a.Table]
		if !ok {
			return &romerr.MapError{Where: "tests.tsv", Msg: "unknown table " + a.Table}
		}
		item, err := t.Get(a.Item)
		if err != nil {
			return &romerr.MapError{Where: "tests.tsv", Msg: "table " + a.Table + " item " + strconv.FormatInt(a.Item, 10) + ": " + err.Error()}
		}
		var got string
		if a.Attribute == "" {
			got, err = t.FormatItem(item)
		} else {
			s := item
			type fieldFormatter interface {
				FormatField(string) (string, error)
			}
			ff, ok := s.(fieldFormatter)
			if !ok {
				return &romerr.MapError{Where: "tests.tsv", Msg: "table " + a.Table + " item has no attribute " + a.Attribute}
			}
			got, err = ff.FormatField(a.Attribute)
		}
		if err != nil {
			return err
		}
		if got != a.Value {
			return &romerr.MapError{
				Where: "tests.tsv",
				Msg:   a.Table + "[" + strconv.FormatInt(a.Item, 10) + "]." + a.Attribute + ": expected " + a.Value + ", got " + got,
			}
		}
	}
	return nil
}
