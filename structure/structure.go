package structure

import (
	"strings"

	"github.com/seehuhn-romtool/romtool/bitview"
	"github.com/seehuhn-romtool/romtool/romerr"
)

// Structure is a live instance of a StructType over a BitView: spec §3's
// "Structure (instance)". It is the thing code actually calls Get/Set
// on; StructType only describes shape.
type Structure struct {
	view     bitview.BitView
	typ      *StructType
	handlers *HandlerRegistry
	codecs   codecLookup
	types    *TypeRegistry
	refs     RefResolver
}

// New builds a Structure over view using typ's field layout.
func New(view bitview.BitView, typ *StructType, handlers *HandlerRegistry, codecs codecLookup, types *TypeRegistry, refs RefResolver) *Structure {
	return &Structure{view: view, typ: typ, handlers: handlers, codecs: codecs, types: types, refs: refs}
}

// Type returns the instance's StructType.
func (s *Structure) Type() *StructType { return s.typ }

// View returns the instance's underlying BitView.
func (s *Structure) View() bitview.BitView { return s.view }

// subview computes the BitView a field occupies, evaluating its
// Offset/Size expressions against the structure's other fields (spec
// §4.3: "origin + offset + size, each independently expressed").
func (s *Structure) subview(f *FieldDef) (bitview.BitView, error) {
	origin, err := resolveOriginView(s, f)
	if err != nil {
		return bitview.BitView{}, err
	}
	ctx := siblingContext{s: s, fid: f.ID, unit: f.Unit}

	offset := int64(0)
	if f.Offset != nil {
		offset, err = f.Offset.Eval(ctx)
		if err != nil {
			return bitview.BitView{}, romerr.WithFieldPrefix(f.ID, err)
		}
	}

	var size *int64
	if f.Size != nil {
		n, err := f.Size.Eval(ctx)
		if err != nil {
			return bitview.BitView{}, romerr.WithFieldPrefix(f.ID, err)
		}
		size = &n
	}

	start := offset
	var stop *int64
	if size != nil {
		end := start + *size
		stop = &end
	}
	return origin.Slice(&start, stop, f.Unit)
}

// handlerFor resolves the Handler for a field, failing clearly if the
// field's type is neither a builtin primitive nor a registered struct
// type (in which case the caller should descend into a sub-Structure
// instead of calling a Handler at all).
func (s *Structure) handlerFor(f *FieldDef) (Handler, error) {
	h, ok := s.handlers.Resolve(f.Type)
	if !ok {
		return nil, &romerr.MapError{Msg: "unknown field type " + f.Type + " for field " + f.ID}
	}
	return h, nil
}

// resolveRefName resolves a ref-typed field's cell text to its integer
// index: the referenced entity set's name-to-index lookup first, then
// a plain integer literal (spec §4.3: "writing a string tries the
// referenced entity's name-to-index lookup first, then falls back to
// integer parsing").
func (s *Structure) resolveRefName(f *FieldDef, cell string) (int64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, &romerr.DecodeError{Msg: "empty integer cell for field " + f.ID}
	}
	if s.refs != nil {
		if set, ok := s.refs.Entities(f.Ref); ok {
			if i, ok := set.IndexOf(cell); ok {
				return int64(i), nil
			}
		}
	}
	return parseInt(cell)
}

// rawInt reads a field's stored integer value without applying `ref`
// name resolution; used internally to evaluate sibling expressions.
func (s *Structure) rawInt(f *FieldDef) (int64, error) {
	if st, ok := s.types.Lookup(f.Type); ok {
		_ = st
		return 0, &romerr.MapError{Msg: "field " + f.ID + " is a structure, not an integer"}
	}
	v, err := s.subview(f)
	if err != nil {
		return 0, err
	}
	h, err := s.handlerFor(f)
	if err != nil {
		return 0, err
	}
	raw, err := h.Read(v, f, s.codecs)
	if err != nil {
		return 0, err
	}
	return asInt(raw)
}

// Get reads a field by id or label. Integer fields with a `ref`
// attribute come back as an IndexInt; nested-structure fields come
// back as a *Structure.
func (s *Structure) Get(idOrName string) (any, error) {
	f, ok := s.typ.Field(idOrName)
	if !ok {
		return nil, &romerr.NotFoundError{Kind: "field", Key: idOrName + " in struct " + s.typ.Name}
	}

	if st, ok := s.types.Lookup(f.Type); ok {
		v, err := s.subview(f)
		if err != nil {
			return nil, romerr.WithFieldPrefix(f.ID, err)
		}
		return New(v, st, s.handlers, s.codecs, s.types, s.refs), nil
	}

	v, err := s.subview(f)
	if err != nil {
		return nil, romerr.WithFieldPrefix(f.ID, err)
	}
	h, err := s.handlerFor(f)
	if err != nil {
		return nil, err
	}
	raw, err := h.Read(v, f, s.codecs)
	if err != nil {
		return nil, romerr.WithFieldPrefix(f.ID, err)
	}
	if f.Ref != "" {
		n, err := asInt(raw)
		if err != nil {
			return nil, romerr.WithFieldPrefix(f.ID, err)
		}
		return NewIndexInt(n, f.Ref, s.refs), nil
	}
	return raw, nil
}

// Lookup implements changeset.Locator: a changeset path segment under a
// Structure names a field by id or label, same as Get (spec §4.7:
// "Structures resolve by field id/name").
func (s *Structure) Lookup(key string) (any, error) {
	return s.Get(key)
}

// Set writes a field by id or label.
func (s *Structure) Set(idOrName string, value any) error {
	f, ok := s.typ.Field(idOrName)
	if !ok {
		return &romerr.NotFoundError{Kind: "field", Key: idOrName + " in struct " + s.typ.Name}
	}
	if _, ok := s.types.Lookup(f.Type); ok {
		return &romerr.MapError{Msg: "cannot Set a nested structure field " + f.ID + " directly"}
	}
	v, err := s.subview(f)
	if err != nil {
		return romerr.WithFieldPrefix(f.ID, err)
	}
	h, err := s.handlerFor(f)
	if err != nil {
		return err
	}
	if ix, ok := value.(IndexInt); ok {
		value = ix.Value
	} else if f.Ref != "" {
		if name, ok := value.(string); ok {
			n, err := s.resolveRefName(f, name)
			if err != nil {
				return romerr.WithFieldPrefix(f.ID, err)
			}
			value = n
		}
	}
	if err := h.Write(v, f, s.codecs, value); err != nil {
		return romerr.WithFieldPrefix(f.ID, err)
	}
	return nil
}

// Copy writes every field of src into s, field by id, in declaration
// order. Fields present in src but absent from s (or vice versa) are
// silently skipped, matching the permissive "structural union" copy
// semantics original_source's Structure.copy uses for partially
// overlapping struct types.
func (s *Structure) Copy(src *Structure) error {
	for _, f := range src.typ.fields {
		if _, ok := s.typ.Field(f.ID); !ok {
			continue
		}
		v, err := src.Get(f.ID)
		if err != nil {
			return err
		}
		if err := s.Set(f.ID, v); err != nil {
			return err
		}
	}
	return nil
}

// Load populates every non-structure field of s from row, a
// string-keyed map of display-column names to tabular cell text (spec
// §6 "dump/load"). Missing columns are left untouched; unknown columns
// are not an error, matching the teacher's permissive changeset
// terminal-node application.
func (s *Structure) Load(row map[string]string) error {
	for _, f := range s.typ.DisplayOrder() {
		if _, ok := s.types.Lookup(f.Type); ok {
			continue // nested structures are not loaded from a flat row
		}
		cell, ok := row[f.Name]
		if !ok {
			cell, ok = row[f.ID]
		}
		if !ok {
			continue
		}
		var val any
		if f.Ref != "" {
			n, err := s.resolveRefName(f, cell)
			if err != nil {
				return romerr.WithFieldPrefix(f.ID, err)
			}
			val = n
		} else {
			h, err := s.handlerFor(f)
			if err != nil {
				return err
			}
			val, err = h.Parse(f, cell)
			if err != nil {
				return romerr.WithFieldPrefix(f.ID, err)
			}
		}
		if err := s.Set(f.ID, val); err != nil {
			return err
		}
	}
	return nil
}

// FormatField renders a single field's current value as tabular cell
// text, the same way Dump renders one column — used by callers (the
// entity package's per-column dump) that need one field at a time
// rather than the whole row.
func (s *Structure) FormatField(idOrName string) (string, error) {
	f, ok := s.typ.Field(idOrName)
	if !ok {
		return "", &romerr.NotFoundError{Kind: "field", Key: idOrName + " in struct " + s.typ.Name}
	}
	if _, ok := s.types.Lookup(f.Type); ok {
		return "", &romerr.MapError{Msg: "cannot format nested structure field " + f.ID + " as a cell"}
	}
	h, err := s.handlerFor(f)
	if err != nil {
		return "", err
	}
	v, err := s.subview(f)
	if err != nil {
		return "", romerr.WithFieldPrefix(f.ID, err)
	}
	raw, err := h.Read(v, f, s.codecs)
	if err != nil {
		return "", romerr.WithFieldPrefix(f.ID, err)
	}
	if f.Ref != "" {
		n, err := asInt(raw)
		if err != nil {
			return "", romerr.WithFieldPrefix(f.ID, err)
		}
		return NewIndexInt(n, f.Ref, s.refs).String(), nil
	}
	return h.Format(f, raw, v.Len())
}

// ParseField parses cell and writes it to a single field, the Load
// equivalent of FormatField.
func (s *Structure) ParseField(idOrName, cell string) error {
	f, ok := s.typ.Field(idOrName)
	if !ok {
		return &romerr.NotFoundError{Kind: "field", Key: idOrName + " in struct " + s.typ.Name}
	}
	if f.Ref != "" {
		n, err := s.resolveRefName(f, cell)
		if err != nil {
			return romerr.WithFieldPrefix(f.ID, err)
		}
		return s.Set(f.ID, n)
	}
	h, err := s.handlerFor(f)
	if err != nil {
		return err
	}
	val, err := h.Parse(f, cell)
	if err != nil {
		return romerr.WithFieldPrefix(f.ID, err)
	}
	return s.Set(f.ID, val)
}

// Dump renders every non-structure field of s into a row of tabular
// cell text, keyed by display name (falling back to id when no label
// is set), in display order.
func (s *Structure) Dump() (map[string]string, error) {
	row := make(map[string]string)
	for _, f := range s.typ.DisplayOrder() {
		if _, ok := s.types.Lookup(f.Type); ok {
			continue
		}
		h, err := s.handlerFor(f)
		if err != nil {
			return nil, err
		}
		v, err := s.subview(f)
		if err != nil {
			return nil, romerr.WithFieldPrefix(f.ID, err)
		}
		raw, err := h.Read(v, f, s.codecs)
		if err != nil {
			return nil, romerr.WithFieldPrefix(f.ID, err)
		}
		var cell string
		if f.Ref != "" {
			n, err := asInt(raw)
			if err != nil {
				return nil, romerr.WithFieldPrefix(f.ID, err)
			}
			cell = NewIndexInt(n, f.Ref, s.refs).String()
		} else {
			cell, err = h.Format(f, raw, v.Len())
			if err != nil {
				return nil, romerr.WithFieldPrefix(f.ID, err)
			}
		}
		key := f.Name
		if key == "" {
			key = f.ID
		}
		row[key] = cell
	}
	return row, nil
}
