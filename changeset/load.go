package changeset

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/seehuhn-romtool/romtool/romerr"
	"gopkg.in/yaml.v3"
)

// LoadFile parses a changeset file (spec §6 "Changeset files: YAML or
// JSON representing the nested mapping"), deciding the format from
// name's extension: .json is parsed as JSON, anything else as YAML.
func LoadFile(name string, data []byte) (map[string]any, error) {
	var raw map[string]any
	var err error
	if strings.EqualFold(filepath.Ext(name), ".json") {
		err = json.Unmarshal(data, &raw)
	} else {
		err = yaml.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, &romerr.ChangesetError{Msg: "parsing changeset " + name + ": " + err.Error()}
	}
	return normalize(raw), nil
}

// normalize walks a freshly-unmarshalled changeset tree, converting
// yaml.v3's map[string]interface{} (already produced for YAML) and any
// nested map[interface{}]interface{} into the map[string]any shape
// Apply expects throughout, regardless of source format.
func normalize(v any) map[string]any {
	m, ok := asMap(v)
	if !ok {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, val := range m {
		if sub, ok := asMap(val); ok {
			out[k] = normalize(sub)
		} else {
			out[k] = val
		}
	}
	return out
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			if ks, ok := k.(string); ok {
				out[ks] = val
			}
		}
		return out, true
	default:
		return nil, false
	}
}
