package rom

import (
	"errors"
	"io/fs"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/seehuhn-romtool/romtool/romerr"
)

// Enums holds every enums/*.yaml mapping loaded from a map directory
// (spec §6: "`{name: value}` mappings"), keyed by the file's base name.
// Hooks and test assertions can consult these by name; no field type
// is itself "enum" (spec §4.3 reserves `display` for hex/pointer/codec
// names), so enums never enter the Handler dispatch chain.
type Enums struct {
	byName map[string]map[string]int64
}

// Lookup returns the named value within enum set setName.
func (e *Enums) Lookup(setName, key string) (int64, bool) {
	set, ok := e.byName[setName]
	if !ok {
		return 0, false
	}
	v, ok := set[key]
	return v, ok
}

// Set returns the full enum mapping registered under name.
func (e *Enums) Set(name string) (map[string]int64, bool) {
	set, ok := e.byName[name]
	return set, ok
}

// LoadEnums parses every enums/*.yaml file in mapDir.
func LoadEnums(mapDir fs.FS) (*Enums, error) {
	e := &Enums{byName: make(map[string]map[string]int64)}
	entries, err := fs.ReadDir(mapDir, "enums")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return e, nil
		}
		return nil, &romerr.MapError{Where: "enums", Msg: "cannot read directory: " + err.Error()}
	}
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".yaml") {
			continue
		}
		rel := path.Join("enums", ent.Name())
		f, err := mapDir.Open(rel)
		if err != nil {
			return nil, &romerr.MapError{Where: rel, Msg: "cannot open: " + err.Error()}
		}
		var raw map[string]int64
		err = yaml.NewDecoder(f).Decode(&raw)
		f.Close()
		if err != nil {
			return nil, &romerr.MapError{Where: rel, Msg: "cannot parse: " + err.Error()}
		}
		name := strings.TrimSuffix(ent.Name(), ".yaml")
		e.byName[name] = raw
	}
	return e, nil
}
