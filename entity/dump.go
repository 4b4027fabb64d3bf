package entity

// Columns returns the entity list's column keys in dump order (spec
// §4.9: "name column first, then structural fields in display order,
// then pointer/slop/unknown/flag columns last"): the "name" column
// first if present, then each member table's own field order (struct
// tables contribute their DisplayOrder, primitive tables contribute
// their single column).
func (el *EntityList) Columns() []string {
	var out []string
	seen := make(map[string]bool)
	emit := func(key string) {
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, key)
	}

	if _, ok := el.nameColumn(); ok {
		emit("name")
	}
	for _, t := range el.tables {
		if st, ok := structTypeOf(t); ok {
			for _, f := range st.DisplayOrder() {
				key := f.Name
				if key == "" {
					key = f.ID
				}
				emit(key)
			}
			continue
		}
		key := t.FieldName
		if key == "" {
			key = t.FieldID
		}
		emit(key)
	}
	return out
}

// Dump renders every column of entity i into a tabular row.
func (el *EntityList) Dump(i int64) (map[string]string, error) {
	e, err := el.At(i)
	if err != nil {
		return nil, err
	}
	row := make(map[string]string, len(el.columns))
	for key, c := range el.columns {
		var cell string
		if c.fieldID == "" {
			v, err := c.table.Get(e.index)
			if err != nil {
				return nil, err
			}
			cell, err = c.table.FormatItem(v)
			if err != nil {
				return nil, err
			}
		} else {
			s, err := e.structureAt(c)
			if err != nil {
				return nil, err
			}
			cell, err = s.FormatField(c.fieldID)
			if err != nil {
				return nil, err
			}
		}
		row[key] = cell
	}
	return row, nil
}

// Load parses row's cells and writes them into entity i, one column at
// a time.
func (el *EntityList) Load(i int64, row map[string]string) error {
	e, err := el.At(i)
	if err != nil {
		return err
	}
	for key, cell := range row {
		c, ok := el.columns[key]
		if !ok {
			continue
		}
		if c.fieldID == "" {
			v, err := c.table.ParseItem(cell)
			if err != nil {
				return err
			}
			if err := c.table.Set(e.index, v); err != nil {
				return err
			}
			continue
		}
		s, err := e.structureAt(c)
		if err != nil {
			return err
		}
		if err := s.ParseField(c.fieldID, cell); err != nil {
			return err
		}
	}
	return nil
}
