package rom

import (
	"io"
	"io/fs"
	"strings"
	"testing"

	"github.com/seehuhn-romtool/romtool/bitview"
	"github.com/seehuhn-romtool/romtool/entity"
	"github.com/seehuhn-romtool/romtool/expr"
	"github.com/seehuhn-romtool/romtool/rtable"
	"github.com/seehuhn-romtool/romtool/structure"
	"github.com/seehuhn-romtool/romtool/texttable"
)

// asciiCodecs is a minimal rtable.CodecLookup backing an identity
// ASCII texttable, enough to exercise str fields without a .tbl file.
type asciiCodecs struct{ c *texttable.Codec }

func newASCIICodecs() asciiCodecs {
	tbl := texttable.New("ascii")
	for b := byte(0x20); b < 0x7F; b++ {
		tbl.AddMapping([]byte{b}, string(rune(b)), false)
	}
	return asciiCodecs{c: texttable.NewCodec(tbl, texttable.VariantStd)}
}

func (a asciiCodecs) Codec(string) (*texttable.Codec, bool) { return a.c, true }

// buildTestRom assembles a two-monster Rom by hand, the way
// entity_test.go builds its fixtures, rather than through a map
// directory: each monster is 9 bytes, an 8-byte padded ASCII name
// followed by a 1-byte hp.
func buildTestRom(t *testing.T) *Rom {
	t.Helper()
	handlers := structure.NewHandlerRegistry()
	types := structure.NewTypeRegistry()

	nameField := &structure.FieldDef{
		ID: "name", Name: "name", Type: "str", Unit: bitview.Bytes,
		Offset: expr.MustParse("0"), Size: expr.MustParse("8"), Display: "ascii",
	}
	hpField := &structure.FieldDef{
		ID: "hp", Name: "hp", Type: "uintbe", Unit: bitview.Bits,
		Offset: expr.MustParse("64"), Size: expr.MustParse("8"),
	}
	st, err := structure.NewStructType("monster", []*structure.FieldDef{nameField, hpField})
	if err != nil {
		t.Fatal(err)
	}
	if err := types.Define(st); err != nil {
		t.Fatal(err)
	}

	data := []byte("Dragon  \x64Goblin  \x05") // hp 0x64=100, 0x05=5
	origBuf := bitview.NewBuffer(append([]byte(nil), data...))
	fileBuf := bitview.NewBuffer(append([]byte(nil), data...))

	codecs := newASCIICodecs()
	monsterTable := rtable.New("monsters", "monster", rtable.Fixed, fileBuf.View(), handlers, types, nil)
	monsterTable.Unit = bitview.Bytes
	monsterTable.Stride = 9
	monsterTable.Count = 2
	monsterTable.WithCodecs(codecs)

	el, err := entity.New("monsters", []*rtable.Table{monsterTable})
	if err != nil {
		t.Fatal(err)
	}

	m := &Map{
		Assertions: []Assertion{
			{Table: "monsters", Item: 0, Attribute: "name", Value: "Dragon  "},
			{Table: "monsters", Item: 1, Attribute: "hp", Value: "5"},
		},
	}

	return &Rom{
		Map:         m,
		orig:        origBuf,
		file:        fileBuf,
		Tables:      map[string]*rtable.Table{"monsters": monsterTable},
		EntityLists: map[string]*entity.EntityList{"monsters": el},
	}
}

func TestRomDirtyAndPatch(t *testing.T) {
	r := buildTestRom(t)
	if r.Dirty() {
		t.Fatal("freshly built Rom should not be dirty")
	}

	el := r.EntityLists["monsters"]
	e, err := el.At(0)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Set("hp", int64(1)); err != nil {
		t.Fatal(err)
	}

	if !r.Dirty() {
		t.Fatal("Rom should be dirty after a field write")
	}
	p := r.Patch()
	if len(p.Changes) != 1 {
		t.Fatalf("expected exactly one changed byte, got %d", len(p.Changes))
	}
	if got := p.Changes[8]; got != 1 {
		t.Fatalf("changed byte at offset 8 = %d, want 1", got)
	}
}

func TestRomRunAssertions(t *testing.T) {
	r := buildTestRom(t)
	if err := r.RunAssertions(); err != nil {
		t.Fatalf("RunAssertions: %v", err)
	}
}

func TestRomRunAssertionsDetectsMismatch(t *testing.T) {
	r := buildTestRom(t)
	r.Map.Assertions = append(r.Map.Assertions, Assertion{Table: "monsters", Item: 0, Attribute: "hp", Value: "999"})
	if err := r.RunAssertions(); err == nil {
		t.Fatal("expected a mismatch error")
	}
}

// memWriteCloser is a trivial writeCloser over a strings.Builder, used
// to capture DumpDir's output without touching the filesystem.
type memWriteCloser struct{ *strings.Builder }

func (memWriteCloser) Close() error { return nil }

func TestRomDumpLoadRoundTrip(t *testing.T) {
	r := buildTestRom(t)

	files := map[string]*strings.Builder{}
	err := r.DumpDir(func(name string) (io.WriteCloser, error) {
		b := &strings.Builder{}
		files[name] = b
		return memWriteCloser{b}, nil
	})
	if err != nil {
		t.Fatalf("DumpDir: %v", err)
	}
	dumped, ok := files["monsters.tsv"]
	if !ok {
		t.Fatal("expected monsters.tsv to be written")
	}
	if !strings.Contains(dumped.String(), "Dragon") {
		t.Fatalf("dump missing monster name: %q", dumped.String())
	}

	// Edit the dumped TSV in place: change Dragon's hp from 100 to 50.
	edited := strings.Replace(dumped.String(), "\t100\n", "\t50\n", 1)

	fresh := buildTestRom(t)
	err = fresh.LoadDir(func(name string) (fs.File, error) {
		if name != "monsters.tsv" {
			return nil, fs.ErrNotExist
		}
		return &memFile{Reader: strings.NewReader(edited)}, nil
	}, []string{"monsters"})
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	el := fresh.EntityLists["monsters"]
	e, err := el.At(0)
	if err != nil {
		t.Fatal(err)
	}
	hp, err := e.Get("hp")
	if err != nil {
		t.Fatal(err)
	}
	if hp.(int64) != 50 {
		t.Fatalf("hp after load = %v, want 50", hp)
	}
}

// memFile adapts an io.Reader to fs.File for LoadDir's opener callback.
type memFile struct{ *strings.Reader }

func (memFile) Close() error                 { return nil }
func (memFile) Stat() (fs.FileInfo, error)   { return nil, fs.ErrInvalid }

var _ io.Reader = memFile{}
