package structure

import "strconv"

// EntitySet is the minimal contract a Field with a `ref` attribute
// needs from the named entity list it indexes into (spec §4.3, §4.6):
// enough to go from a stored integer to a display name and back. An
// *entity.EntityList satisfies this interface structurally — the
// structure package never imports entity, which is what keeps
// field/structure and entity from forming an import cycle.
type EntitySet interface {
	Len() int64
	NameAt(i int) (string, bool)
	IndexOf(name string) (int, bool)
}

// RefResolver looks up a named entity set, used to resolve `ref`
// attributes on integer fields. Rom implements this by delegating to
// its entity lists.
type RefResolver interface {
	Entities(name string) (EntitySet, bool)
}

// IndexInt is an integer that also carries a reference to a named
// entity list, so it round-trips between its numeric form and the
// display name of the entity it points to (spec GLOSSARY "IndexInt";
// supplemented from original_source field.py's integer-with-reference
// idea).
type IndexInt struct {
	Value    int64
	SetName  string
	resolver RefResolver
}

// NewIndexInt builds an IndexInt bound to resolver, so Name/String can
// look up the referenced entity's display name.
func NewIndexInt(value int64, setName string, resolver RefResolver) IndexInt {
	return IndexInt{Value: value, SetName: setName, resolver: resolver}
}

// Name returns the display name of the referenced entity, if the
// resolver and entity set are available.
func (ix IndexInt) Name() (string, bool) {
	if ix.resolver == nil {
		return "", false
	}
	set, ok := ix.resolver.Entities(ix.SetName)
	if !ok {
		return "", false
	}
	return set.NameAt(int(ix.Value))
}

// String renders the entity name if one is known, otherwise the plain
// integer.
func (ix IndexInt) String() string {
	if name, ok := ix.Name(); ok {
		return name
	}
	return strconv.FormatInt(ix.Value, 10)
}
