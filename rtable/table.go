// Package rtable implements Table and Index, the located-sequence
// abstraction of spec §4.5: a run of items — primitives or
// structures — addressed either by a fixed stride/count or by a
// sibling index table of byte offsets.
package rtable

import (
	"strconv"

	"github.com/seehuhn-romtool/romtool/bitview"
	"github.com/seehuhn-romtool/romtool/romerr"
	"github.com/seehuhn-romtool/romtool/structure"
	"github.com/seehuhn-romtool/romtool/texttable"
)

// CodecLookup resolves a text-table codec by name; satisfied by the
// codec registry a RomMap builds at load time. Defined here (rather
// than only in structure) so callers assembling a Table don't need to
// import structure's unexported equivalent.
type CodecLookup interface {
	Codec(name string) (*texttable.Codec, bool)
}

// Mode selects how a Table locates its items.
type Mode int

const (
	// Fixed tables locate item i at Offset + Stride*i.
	Fixed Mode = iota
	// IndexedBy tables locate item i at Offset + Index.IntAt(i), where
	// Index is another Table of integer offsets.
	IndexedBy
)

// Table is a located, counted sequence of items sharing one buffer
// (spec §3 "Table", §4.5).
type Table struct {
	ID       string
	TypeName string // primitive type name, or a name registered in Types
	Mode     Mode
	Offset   int64 // in Unit, from the start of root
	Count    int64 // Fixed mode only
	Stride   int64 // Fixed mode only; also doubles as the fallback item size
	Index    *Table // IndexedBy mode only: a Table of integer item offsets
	Unit     bitview.Unit
	ItemSize int64 // explicit declared size, in Unit; 0 = not declared
	Display  string
	FieldID  string
	FieldName string
	IndexName string

	root     bitview.BitView
	handlers *structure.HandlerRegistry
	types    *structure.TypeRegistry
	refs     structure.RefResolver
	codecs   CodecLookup
}

// New builds a Table over root (the whole ROM buffer, or any ancestor
// view Offset is measured from).
func New(id, typeName string, mode Mode, root bitview.BitView, handlers *structure.HandlerRegistry, types *structure.TypeRegistry, refs structure.RefResolver) *Table {
	return &Table{ID: id, TypeName: typeName, Mode: mode, root: root, handlers: handlers, types: types, refs: refs}
}

// WithCodecs attaches the text-table codec registry used to resolve
// str/strz item and field types, returning t for chaining.
func (t *Table) WithCodecs(codecs CodecLookup) *Table {
	t.codecs = codecs
	return t
}

// Len returns the number of items in the table.
func (t *Table) Len() int64 {
	switch t.Mode {
	case IndexedBy:
		return t.Index.Len()
	default:
		return t.Count
	}
}

// itemSize resolves the per-item width, in Unit, using the priority
// order from spec §4.5: declared size, then the item struct type's
// declared size, then (Fixed) the stride or (IndexedBy) the index's
// stride.
func (t *Table) itemSize() (int64, error) {
	if t.ItemSize != 0 {
		return t.ItemSize, nil
	}
	if st, ok := t.types.Lookup(t.TypeName); ok && st.DeclaredSize != 0 {
		return st.DeclaredSize / t.Unit.Bits(), nil
	}
	switch t.Mode {
	case Fixed:
		if t.Stride != 0 {
			return t.Stride, nil
		}
	case IndexedBy:
		if t.Index.Stride != 0 {
			return t.Index.Stride, nil
		}
	}
	return 0, &romerr.MapError{Where: t.ID, Msg: "cannot determine item size: no declared size, struct size, or stride"}
}

// itemStart resolves the start offset of item i, in Unit, from root.
func (t *Table) itemStart(i int64) (int64, error) {
	switch t.Mode {
	case Fixed:
		return t.Offset + t.Stride*i, nil
	case IndexedBy:
		raw, err := t.Index.GetPrimitive(i)
		if err != nil {
			return 0, err
		}
		n, ok := raw.(int64)
		if !ok {
			return 0, &romerr.MapError{Where: t.ID, Msg: "index table item is not an integer"}
		}
		return t.Offset + n, nil
	default:
		panic("unreachable")
	}
}

// itemView computes the BitView item i occupies.
func (t *Table) itemView(i int64) (bitview.BitView, error) {
	if i < 0 || i >= t.Len() {
		return bitview.BitView{}, &romerr.OutOfRangeError{Msg: "table index out of range"}
	}
	start, err := t.itemStart(i)
	if err != nil {
		return bitview.BitView{}, err
	}
	size, err := t.itemSize()
	if err != nil {
		return bitview.BitView{}, err
	}
	stop := start + size
	return t.root.Slice(&start, &stop, t.Unit)
}

// isStruct reports whether the table's item type is a registered
// structure rather than a primitive.
func (t *Table) isStruct() (*structure.StructType, bool) {
	return t.types.Lookup(t.TypeName)
}

// Type reports the table's item StructType, if its TypeName names a
// registered structure rather than a primitive.
func (t *Table) Type() (*structure.StructType, bool) {
	return t.isStruct()
}

// Get returns item i: a *structure.Structure for structural item
// types, or the primitive's decoded Go value otherwise.
func (t *Table) Get(i int64) (any, error) {
	if st, ok := t.isStruct(); ok {
		v, err := t.itemView(i)
		if err != nil {
			return nil, err
		}
		return structure.New(v, st, t.handlers, t.codecs, t.types, t.refs), nil
	}
	return t.GetPrimitive(i)
}

// GetPrimitive reads item i through the field-handler chain, even when
// the table's type name happens to also be a struct; used internally
// by IndexedBy tables reading their own integer offsets.
func (t *Table) GetPrimitive(i int64) (any, error) {
	v, err := t.itemView(i)
	if err != nil {
		return nil, err
	}
	h, ok := t.handlers.Resolve(t.TypeName)
	if !ok {
		return nil, &romerr.MapError{Where: t.ID, Msg: "unknown item type " + t.TypeName}
	}
	f := &structure.FieldDef{ID: t.ID, Type: t.TypeName, Display: t.Display}
	return h.Read(v, f, t.codecs)
}

// Set writes item i. For structural items, value must be a
// *structure.Structure of a compatible type and is copied field-by-
// field into the existing sub-view (spec §4.5: "Table setitem of
// structural items copies field-by-field"). For primitive items, value
// is written directly through the item's handler.
func (t *Table) Set(i int64, value any) error {
	if st, ok := t.isStruct(); ok {
		v, err := t.itemView(i)
		if err != nil {
			return err
		}
		dst := structure.New(v, st, t.handlers, t.codecs, t.types, t.refs)
		src, ok := value.(*structure.Structure)
		if !ok {
			return &romerr.MapError{Where: t.ID, Msg: "structural table item requires a *structure.Structure value"}
		}
		return dst.Copy(src)
	}
	v, err := t.itemView(i)
	if err != nil {
		return err
	}
	h, ok := t.handlers.Resolve(t.TypeName)
	if !ok {
		return &romerr.MapError{Where: t.ID, Msg: "unknown item type " + t.TypeName}
	}
	f := &structure.FieldDef{ID: t.ID, Type: t.TypeName, Display: t.Display}
	return h.Write(v, f, t.codecs, value)
}

// FormatItem renders a primitive item's value as tabular cell text,
// used by a table's dump column when it has no member struct fields of
// its own (spec §4.9).
func (t *Table) FormatItem(value any) (string, error) {
	h, ok := t.handlers.Resolve(t.TypeName)
	if !ok {
		return "", &romerr.MapError{Where: t.ID, Msg: "unknown item type " + t.TypeName}
	}
	f := &structure.FieldDef{ID: t.ID, Type: t.TypeName, Display: t.Display}
	size, err := t.itemSize()
	if err != nil {
		return "", err
	}
	return h.Format(f, value, size*t.Unit.Bits())
}

// ParseItem parses a tabular cell into the value Set expects for a
// primitive item, the load counterpart of FormatItem.
func (t *Table) ParseItem(cell string) (any, error) {
	h, ok := t.handlers.Resolve(t.TypeName)
	if !ok {
		return nil, &romerr.MapError{Where: t.ID, Msg: "unknown item type " + t.TypeName}
	}
	f := &structure.FieldDef{ID: t.ID, Type: t.TypeName, Display: t.Display}
	return h.Parse(f, cell)
}

// Lookup implements changeset.Locator: a changeset path segment under a
// Table is either an integer index or a name resolved via Locate (spec
// §4.7: "Tables resolve by integer index or locate(name)").
func (t *Table) Lookup(key string) (any, error) {
	if i, err := strconv.ParseInt(key, 0, 64); err == nil {
		return t.Get(i)
	}
	i, err := t.Locate(key)
	if err != nil {
		return nil, err
	}
	return t.Get(i)
}

// Slice returns a virtual sub-table over items [lo, hi), sharing the
// same underlying buffer.
func (t *Table) Slice(lo, hi int64) (*Table, error) {
	n := t.Len()
	if lo < 0 || hi > n || hi < lo {
		return nil, &romerr.OutOfRangeError{Msg: "table slice bounds out of range"}
	}
	switch t.Mode {
	case Fixed:
		start, err := t.itemStart(lo)
		if err != nil {
			return nil, err
		}
		sub := *t
		sub.Offset = start
		sub.Count = hi - lo
		return &sub, nil
	case IndexedBy:
		idxSub, err := t.Index.Slice(lo, hi)
		if err != nil {
			return nil, err
		}
		sub := *t
		sub.Index = idxSub
		return &sub, nil
	default:
		panic("unreachable")
	}
}

// Locate returns the index of the first item whose `name` field equals
// name. Fails with NotFoundError if no item matches, or if the table's
// items are not named structures.
func (t *Table) Locate(name string) (int64, error) {
	st, ok := t.isStruct()
	if !ok {
		return 0, &romerr.NotFoundError{Kind: "item", Key: name}
	}
	nameField, hasName := st.Field("name")
	if !hasName {
		return 0, &romerr.NotFoundError{Kind: "item", Key: name}
	}
	for i := int64(0); i < t.Len(); i++ {
		item, err := t.Get(i)
		if err != nil {
			return 0, err
		}
		s := item.(*structure.Structure)
		v, err := s.Get(nameField.ID)
		if err != nil {
			return 0, err
		}
		if sv, ok := v.(string); ok && sv == name {
			return i, nil
		}
	}
	return 0, &romerr.NotFoundError{Kind: "item named", Key: name}
}
