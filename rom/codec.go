package rom

import (
	"errors"
	"io/fs"
	"path"
	"strings"

	"github.com/seehuhn-romtool/romtool/romerr"
	"github.com/seehuhn-romtool/romtool/texttable"
)

// CodecRegistry resolves a text-table codec by name, loaded from every
// ".tbl" file in a map directory's texttables/ subdirectory (spec §6).
// It implements both rtable.CodecLookup and structure's internal
// equivalent by having the same method set.
type CodecRegistry struct {
	codecs map[string]*texttable.Codec
}

// NewCodecRegistry returns an empty registry.
func NewCodecRegistry() *CodecRegistry {
	return &CodecRegistry{codecs: make(map[string]*texttable.Codec)}
}

// Codec implements rtable.CodecLookup.
func (r *CodecRegistry) Codec(name string) (*texttable.Codec, bool) {
	c, ok := r.codecs[name]
	return c, ok
}

// variantFromSuffix maps a codec name's suffix to the decode/encode
// Variant it selects (spec §4.2): "name" -> std, "name.clean" -> clean,
// "name.raw" -> raw.
func variantFromSuffix(name string) (base string, variant texttable.Variant) {
	switch {
	case strings.HasSuffix(name, ".clean"):
		return strings.TrimSuffix(name, ".clean"), texttable.VariantClean
	case strings.HasSuffix(name, ".raw"):
		return strings.TrimSuffix(name, ".raw"), texttable.VariantRaw
	default:
		return name, texttable.VariantStd
	}
}

// LoadCodecs parses every "*.tbl" file under mapDir's texttables/
// directory and registers std/clean/raw variant codecs for each under
// "<id>", "<id>.clean", and "<id>.raw".
func LoadCodecs(mapDir fs.FS) (*CodecRegistry, error) {
	reg := NewCodecRegistry()
	entries, err := fs.ReadDir(mapDir, "texttables")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return reg, nil
		}
		return nil, &romerr.MapError{Where: "texttables", Msg: "cannot read directory: " + err.Error()}
	}
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".tbl") {
			continue
		}
		rel := path.Join("texttables", ent.Name())
		f, err := mapDir.Open(rel)
		if err != nil {
			return nil, &romerr.MapError{Where: rel, Msg: "cannot open: " + err.Error()}
		}
		tbl, err := texttable.Parse(f, rel)
		f.Close()
		if err != nil {
			return nil, err
		}
		id := tbl.ID
		if id == "" {
			id = strings.TrimSuffix(ent.Name(), ".tbl")
		}
		reg.codecs[id] = texttable.NewCodec(tbl, texttable.VariantStd)
		reg.codecs[id+".clean"] = texttable.NewCodec(tbl, texttable.VariantClean)
		reg.codecs[id+".raw"] = texttable.NewCodec(tbl, texttable.VariantRaw)
	}
	return reg, nil
}
