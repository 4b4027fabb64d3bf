package rom

import (
	"bufio"
	"io"
	"io/fs"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/seehuhn-romtool/romtool/romerr"
)

// Meta is the parsed form of a map directory's meta.yaml (spec §6).
type Meta struct {
	Name string `yaml:"name"`
	File string `yaml:"file"`
	SHA1 string `yaml:"sha1"`
}

func loadMeta(mapDir fs.FS) (*Meta, error) {
	f, err := mapDir.Open("meta.yaml")
	if err != nil {
		return nil, &romerr.MapError{Where: "meta.yaml", Msg: "cannot open: " + err.Error()}
	}
	defer f.Close()
	var m Meta
	if err := yaml.NewDecoder(f).Decode(&m); err != nil {
		return nil, &romerr.MapError{Where: "meta.yaml", Msg: "cannot parse: " + err.Error()}
	}
	if m.Name == "" {
		return nil, &romerr.MapError{Where: "meta.yaml", Msg: "missing required field: name"}
	}
	return &m, nil
}

// HashEntry is one line of a hash database (spec §4.7, §6).
type HashEntry struct {
	SHA1   string
	MapDir string
}

// loadHashDB parses a hashdb.txt stream: lines of "<sha1> <map-dir>",
// blank lines and "#" comments ignored.
func loadHashDB(r io.Reader) ([]HashEntry, error) {
	sc := bufio.NewScanner(r)
	var entries []HashEntry
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, &romerr.MapError{Where: "hashdb.txt", Msg: "malformed line: " + line}
		}
		entries = append(entries, HashEntry{SHA1: strings.ToLower(fields[0]), MapDir: fields[1]})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// HashDB is a set of hash databases searched in order: explicitly
// supplied, user data dir, built-in (spec §4.7 "ROM detection").
type HashDB struct {
	sources []io.Reader
}

// NewHashDB builds a HashDB from readers in search priority order.
func NewHashDB(sources ...io.Reader) *HashDB {
	return &HashDB{sources: sources}
}

// Lookup returns the map directory registered for sha1, searching
// sources in order and returning the first match.
func (h *HashDB) Lookup(sha1 string) (string, error) {
	sha1 = strings.ToLower(sha1)
	for _, src := range h.sources {
		entries, err := loadHashDB(src)
		if err != nil {
			return "", err
		}
		for _, e := range entries {
			if e.SHA1 == sha1 {
				return e.MapDir, nil
			}
		}
	}
	return "", &romerr.RomDetectionError{SHA1: sha1}
}
