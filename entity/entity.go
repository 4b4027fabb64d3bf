// Package entity implements EntityList and Entity (spec §3, §4.6): a
// row-wise view over N parallel Tables of equal length, exposing the
// union of their columns. EntityList satisfies structure.EntitySet
// structurally, so `ref`-typed integer fields can resolve entity names
// without entity importing structure's resolver machinery, and without
// structure importing entity.
package entity

import (
	"strconv"

	"github.com/seehuhn-romtool/romtool/romerr"
	"github.com/seehuhn-romtool/romtool/rtable"
	"github.com/seehuhn-romtool/romtool/structure"
)

// column records which table (and, for structural tables, which field
// within it) a column name resolves to.
type column struct {
	table   *rtable.Table
	fieldID string // empty for a primitive table, where the whole item is the column
}

// EntityList is a named bundle of parallel tables (spec §4.6). All
// member tables must have equal length; no two tables may contribute
// the same column id or label.
type EntityList struct {
	Name    string
	tables  []*rtable.Table
	columns map[string]column

	// search is the optional scoped memoizer installed by EnableSearchCache
	// (spec §4.6 "cached_searches"): a name→index cache filled with every
	// entity's name when the scope opens and dropped by
	// DisableSearchCache, so bulk loads don't re-scan linearly for every
	// cross-reference.
	search map[string]int64
}

// New builds an EntityList from tables, validating equal length and
// column-id uniqueness.
func New(name string, tables []*rtable.Table) (*EntityList, error) {
	if len(tables) == 0 {
		return nil, &romerr.MapError{Msg: "entity set " + name + " has no member tables"}
	}
	n := tables[0].Len()
	for _, t := range tables[1:] {
		if t.Len() != n {
			return nil, &romerr.MapError{
				Msg: "entity set " + name + ": member tables have unequal length",
			}
		}
	}

	columns := make(map[string]column)
	add := func(key string, c column) error {
		if key == "" {
			return nil
		}
		if _, dup := columns[key]; dup {
			return &romerr.DuplicateError{Kind: "entity column", Key: key}
		}
		columns[key] = c
		return nil
	}

	for _, t := range tables {
		st, isStruct := structTypeOf(t)
		if isStruct {
			for _, f := range st.Fields() {
				if err := add(f.ID, column{table: t, fieldID: f.ID}); err != nil {
					return nil, err
				}
				if f.Name != "" && f.Name != f.ID {
					if err := add(f.Name, column{table: t, fieldID: f.ID}); err != nil {
						return nil, err
					}
				}
			}
			continue
		}
		if err := add(t.FieldID, column{table: t}); err != nil {
			return nil, err
		}
		if err := add(t.FieldName, column{table: t}); err != nil {
			return nil, err
		}
	}

	return &EntityList{Name: name, tables: tables, columns: columns}, nil
}

// structTypeOf reports the struct type of t's items, if t.TypeName
// names a registered structure rather than a primitive.
func structTypeOf(t *rtable.Table) (*structure.StructType, bool) {
	return t.Type()
}

// Len returns the number of entities (rows) in the list.
func (el *EntityList) Len() int64 {
	if len(el.tables) == 0 {
		return 0
	}
	return el.tables[0].Len()
}

// At returns the Entity bound to index i.
func (el *EntityList) At(i int64) (*Entity, error) {
	if i < 0 || i >= el.Len() {
		return nil, &romerr.OutOfRangeError{Msg: "entity index out of range"}
	}
	return &Entity{list: el, index: i}, nil
}

// nameColumn finds the column registered as "name", if any.
func (el *EntityList) nameColumn() (column, bool) {
	c, ok := el.columns["name"]
	return c, ok
}

// NameAt implements structure.EntitySet: the display name of entity i,
// read from whichever member table owns the "name" column.
func (el *EntityList) NameAt(i int) (string, bool) {
	c, ok := el.nameColumn()
	if !ok {
		return "", false
	}
	e := &Entity{list: el, index: int64(i)}
	v, err := e.getColumn(c)
	if err != nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// IndexOf implements structure.EntitySet: the row index of the entity
// named name, consulting the scoped search cache if one is active.
func (el *EntityList) IndexOf(name string) (int, bool) {
	if el.search != nil {
		if i, ok := el.search[name]; ok {
			return int(i), true
		}
	}
	if t, ok := el.nameColumn(); ok {
		if i, err := t.table.Locate(name); err == nil {
			return int(i), true
		}
	}
	for i := int64(0); i < el.Len(); i++ {
		if n, ok := el.NameAt(int(i)); ok && n == name {
			return int(i), true
		}
	}
	return 0, false
}

// EnableSearchCache turns on the scoped name→index memoizer for bulk
// loads (spec §4.6). Call DisableSearchCache when the scope ends.
func (el *EntityList) EnableSearchCache() {
	el.search = make(map[string]int64)
	for i := int64(0); i < el.Len(); i++ {
		if n, ok := el.NameAt(int(i)); ok {
			el.search[n] = i
		}
	}
}

// DisableSearchCache drops the memoizer. Stale entries accumulated by
// name-mutating writes during the scope are discarded along with it.
func (el *EntityList) DisableSearchCache() {
	el.search = nil
}

// Lookup implements changeset.Locator: a changeset path segment under
// an EntityList is either an integer index or an entity name (spec
// §4.7: "Rom resolves set names then table names", extended the same
// way to entity sets so a changeset can address `{monsters: {Dragon:
// ...}}` directly).
func (el *EntityList) Lookup(key string) (any, error) {
	if i, err := strconv.ParseInt(key, 0, 64); err == nil {
		return el.At(i)
	}
	i, ok := el.IndexOf(key)
	if !ok {
		return nil, &romerr.NotFoundError{Kind: "entity", Key: key}
	}
	return el.At(int64(i))
}

// Entity is a single logical row across an EntityList's member tables
// (spec §4.6).
type Entity struct {
	list  *EntityList
	index int64
}

// structureAt returns the *structure.Structure for c's owning item,
// failing clearly if c names a primitive table's whole-item column
// (which has no Structure to descend into).
func (e *Entity) structureAt(c column) (*structure.Structure, error) {
	v, err := c.table.Get(e.index)
	if err != nil {
		return nil, err
	}
	s, ok := v.(*structure.Structure)
	if !ok {
		return nil, &romerr.MapError{Msg: "column has no field-level structure to address"}
	}
	return s, nil
}

func (e *Entity) getColumn(c column) (any, error) {
	if c.fieldID == "" {
		return c.table.Get(e.index)
	}
	v, err := c.table.Get(e.index)
	if err != nil {
		return nil, err
	}
	s := v.(*structure.Structure)
	return s.Get(c.fieldID)
}

func (e *Entity) setColumn(c column, value any) error {
	if c.fieldID == "" {
		return c.table.Set(e.index, value)
	}
	v, err := c.table.Get(e.index)
	if err != nil {
		return err
	}
	s := v.(*structure.Structure)
	return s.Set(c.fieldID, value)
}

// Lookup implements changeset.Locator: a changeset path segment under
// an Entity names a column by field id or label, same as Get.
func (e *Entity) Lookup(key string) (any, error) {
	return e.Get(key)
}

// Get reads a column by field id or label.
func (e *Entity) Get(key string) (any, error) {
	c, ok := e.list.columns[key]
	if !ok {
		return nil, &romerr.NotFoundError{Kind: "entity column", Key: key}
	}
	return e.getColumn(c)
}

// Set writes a column by field id or label.
func (e *Entity) Set(key string, value any) error {
	c, ok := e.list.columns[key]
	if !ok {
		return &romerr.NotFoundError{Kind: "entity column", Key: key}
	}
	return e.setColumn(c, value)
}

// Update batches writes from mapping into the entity, one table lookup
// per underlying table rather than one per field (spec §4.6).
func (e *Entity) Update(mapping map[string]any) error {
	byTable := make(map[*rtable.Table][]struct {
		c column
		v any
	})
	for key, value := range mapping {
		c, ok := e.list.columns[key]
		if !ok {
			return &romerr.NotFoundError{Kind: "entity column", Key: key}
		}
		byTable[c.table] = append(byTable[c.table], struct {
			c column
			v any
		}{c, value})
	}
	for t, writes := range byTable {
		var s *structure.Structure
		for _, w := range writes {
			if w.c.fieldID == "" {
				if err := t.Set(e.index, w.v); err != nil {
					return err
				}
				continue
			}
			if s == nil {
				item, err := t.Get(e.index)
				if err != nil {
					return err
				}
				s = item.(*structure.Structure)
			}
			if err := s.Set(w.c.fieldID, w.v); err != nil {
				return err
			}
		}
	}
	return nil
}
