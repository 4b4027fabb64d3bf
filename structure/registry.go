package structure

import (
	"github.com/seehuhn-romtool/romtool/bitview"
	"github.com/seehuhn-romtool/romtool/romerr"
)

// StructType is a named, ordered collection of field definitions: spec
// §3's "Structure (type)". Definition is validated once, at
// registration time, rather than per-instance.
type StructType struct {
	Name   string
	fields []*FieldDef
	byID   map[string]*FieldDef
	byName map[string]*FieldDef

	// DeclaredSize is the structure's explicit width in bits, if the map
	// spec stated one; 0 means "not declared" (spec §4.5's table
	// item-size priority: declared size, then the structure's declared
	// size, then the index stride).
	DeclaredSize int64
}

// NewStructType builds a StructType from fields in declaration order,
// failing if any two fields share an id or a (non-empty) name — spec
// §4.4's "Definition fails if ... any two fields share an id or
// label".
func NewStructType(name string, fields []*FieldDef) (*StructType, error) {
	st := &StructType{
		Name:   name,
		fields: make([]*FieldDef, len(fields)),
		byID:   make(map[string]*FieldDef, len(fields)),
		byName: make(map[string]*FieldDef, len(fields)),
	}
	for i, f := range fields {
		f.declIndex = i
		st.fields[i] = f
		if _, dup := st.byID[f.ID]; dup {
			return nil, &romerr.MapError{Msg: "duplicate field id " + f.ID + " in struct " + name}
		}
		st.byID[f.ID] = f
		if f.Name != "" {
			if _, dup := st.byName[f.Name]; dup {
				return nil, &romerr.MapError{Msg: "duplicate field label " + f.Name + " in struct " + name}
			}
			st.byName[f.Name] = f
		}
	}
	return st, nil
}

// Fields returns the struct's fields in declaration order.
func (st *StructType) Fields() []*FieldDef { return st.fields }

// DisplayOrder returns the struct's fields in the order spec §4.4
// prescribes for dump/listing: name field (if any) first, then the
// other fields, with slop/pointer/unknown/flag fields sorted to the
// back rather than excluded, so that a full round trip through the
// tabular format still has a column for every field.
func (st *StructType) DisplayOrder() []*FieldDef {
	out := make([]*FieldDef, len(st.fields))
	copy(out, st.fields)
	less := func(i, j int) bool {
		a, b := out[i], out[j]
		aName, aNotSlop, aNotPtr, aNotUnk, aNotFlag := a.displayRank()
		bName, bNotSlop, bNotPtr, bNotUnk, bNotFlag := b.displayRank()
		if aName != bName {
			return aName
		}
		if aNotSlop != bNotSlop {
			return aNotSlop
		}
		if aNotPtr != bNotPtr {
			return aNotPtr
		}
		if aNotUnk != bNotUnk {
			return aNotUnk
		}
		if aNotFlag != bNotFlag {
			return aNotFlag
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.declIndex < b.declIndex
	}
	// simple insertion sort: field lists are small (tens of entries)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Field looks a field up by id or label.
func (st *StructType) Field(idOrName string) (*FieldDef, bool) {
	if f, ok := st.byID[idOrName]; ok {
		return f, true
	}
	f, ok := st.byName[idOrName]
	return f, ok
}

// TypeRegistry holds every StructType known to a RomMap, keyed by name
// (spec §5: "struct type registry is owned by the map, not global").
type TypeRegistry struct {
	types map[string]*StructType
}

// NewTypeRegistry returns an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{types: make(map[string]*StructType)}
}

// Define registers st, failing if the name is already taken.
func (r *TypeRegistry) Define(st *StructType) error {
	if _, dup := r.types[st.Name]; dup {
		return &romerr.MapError{Msg: "struct type " + st.Name + " already defined"}
	}
	r.types[st.Name] = st
	return nil
}

// Lookup returns the named struct type.
func (r *TypeRegistry) Lookup(name string) (*StructType, bool) {
	st, ok := r.types[name]
	return st, ok
}

// Hook lets map-specific Go code observe or override field I/O before
// the builtin handler runs (spec §4.7: "user hooks -> per-struct
// handlers -> built-ins"). A Hook that returns handled=false defers to
// the next hook, then to the per-struct override, then to the builtin
// table; an error aborts the read/write immediately. Both methods
// receive the field's view, so a Hook can perform real bit-level I/O
// rather than merely observing a decoded value.
type Hook interface {
	Read(view bitview.BitView, f *FieldDef, codecs codecLookup) (value any, handled bool, err error)
	Write(view bitview.BitView, f *FieldDef, codecs codecLookup, value any) (handled bool, err error)
}

// HandlerRegistry resolves a FieldDef's Handler by chaining: per-field
// hooks, then per-struct-type overrides, then the builtin primitive
// table (spec §4.3's type table plus §4.7's override order).
type HandlerRegistry struct {
	hooks     []Hook
	overrides map[string]Handler // field type name -> Handler
	builtins  map[string]Handler
}

// NewHandlerRegistry returns a registry seeded with the builtin
// primitive handlers.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		overrides: make(map[string]Handler),
		builtins:  builtinHandlers,
	}
}

// AddHook registers h to run before any handler lookup.
func (r *HandlerRegistry) AddHook(h Hook) {
	r.hooks = append(r.hooks, h)
}

// Override replaces the builtin handler for typeName.
func (r *HandlerRegistry) Override(typeName string, h Handler) {
	r.overrides[typeName] = h
}

// resolveBase returns the override or builtin handler for typeName,
// without consulting any hook.
func (r *HandlerRegistry) resolveBase(typeName string) (Handler, bool) {
	if h, ok := r.overrides[typeName]; ok {
		return h, true
	}
	h, ok := r.builtins[typeName]
	return h, ok
}

// Resolve returns the handler to use for a field of the given
// primitive type name: when any hooks are registered, the returned
// Handler tries them in registration order before falling back to the
// per-struct override or builtin table.
func (r *HandlerRegistry) Resolve(typeName string) (Handler, bool) {
	h, ok := r.resolveBase(typeName)
	if !ok {
		return nil, false
	}
	if len(r.hooks) == 0 {
		return h, true
	}
	return hookHandler{hooks: r.hooks, fallback: h}, true
}

// hookHandler adapts a chain of Hooks plus a fallback Handler into a
// single Handler, so Resolve can hand callers one value regardless of
// how many hooks are registered.
type hookHandler struct {
	hooks    []Hook
	fallback Handler
}

func (h hookHandler) Read(view bitview.BitView, f *FieldDef, codecs codecLookup) (any, error) {
	for _, hook := range h.hooks {
		value, handled, err := hook.Read(view, f, codecs)
		if err != nil {
			return nil, err
		}
		if handled {
			return value, nil
		}
	}
	return h.fallback.Read(view, f, codecs)
}

func (h hookHandler) Write(view bitview.BitView, f *FieldDef, codecs codecLookup, value any) error {
	for _, hook := range h.hooks {
		handled, err := hook.Write(view, f, codecs, value)
		if err != nil {
			return err
		}
		if handled {
			return nil
		}
	}
	return h.fallback.Write(view, f, codecs, value)
}

func (h hookHandler) Parse(f *FieldDef, cell string) (any, error) {
	return h.fallback.Parse(f, cell)
}

func (h hookHandler) Format(f *FieldDef, value any, bits int64) (string, error) {
	return h.fallback.Format(f, value, bits)
}
