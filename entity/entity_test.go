package entity

import (
	"testing"

	"github.com/seehuhn-romtool/romtool/bitview"
	"github.com/seehuhn-romtool/romtool/expr"
	"github.com/seehuhn-romtool/romtool/rtable"
	"github.com/seehuhn-romtool/romtool/structure"
	"github.com/seehuhn-romtool/romtool/texttable"
)

// asciiCodecs is a minimal CodecLookup backing an identity ASCII
// texttable, just enough to exercise str fields in tests without
// parsing a .tbl file.
type asciiCodecs struct{ c *texttable.Codec }

func newASCIICodecs() asciiCodecs {
	tbl := texttable.New("ascii")
	for b := byte(0x20); b < 0x7F; b++ {
		tbl.AddMapping([]byte{b}, string(rune(b)), false)
	}
	return asciiCodecs{c: texttable.NewCodec(tbl, texttable.VariantStd)}
}

func (a asciiCodecs) Codec(string) (*texttable.Codec, bool) { return a.c, true }

func buildMonsterEntities(t *testing.T) (*EntityList, []byte, []byte) {
	t.Helper()
	handlers := structure.NewHandlerRegistry()
	types := structure.NewTypeRegistry()

	hpField := &structure.FieldDef{ID: "hp", Name: "hp", Type: "uintbe", Unit: bitview.Bits,
		Offset: expr.MustParse("0"), Size: expr.MustParse("8")}
	st, err := structure.NewStructType("monster", []*structure.FieldDef{hpField})
	if err != nil {
		t.Fatal(err)
	}
	if err := types.Define(st); err != nil {
		t.Fatal(err)
	}

	structData := []byte{10, 20, 30}
	structBuf := bitview.NewBuffer(structData)
	structTable := rtable.New("monsters", "monster", rtable.Fixed, structBuf.View(), handlers, types, nil)
	structTable.Unit = bitview.Bytes
	structTable.Stride = 1
	structTable.Count = 3

	goldData := []byte{1, 2, 3}
	goldBuf := bitview.NewBuffer(goldData)
	goldTable := rtable.New("gold", "uint", rtable.Fixed, goldBuf.View(), handlers, types, nil)
	goldTable.Unit = bitview.Bytes
	goldTable.Stride = 1
	goldTable.Count = 3
	goldTable.FieldID = "gold"

	el, err := New("monsters", []*rtable.Table{structTable, goldTable})
	if err != nil {
		t.Fatal(err)
	}
	return el, structData, goldData
}

func TestEntityGetAcrossTables(t *testing.T) {
	el, _, _ := buildMonsterEntities(t)
	e, err := el.At(1)
	if err != nil {
		t.Fatal(err)
	}
	hp, err := e.Get("hp")
	if err != nil {
		t.Fatal(err)
	}
	if hp.(int64) != 20 {
		t.Fatalf("got %v, want 20", hp)
	}
	gold, err := e.Get("gold")
	if err != nil {
		t.Fatal(err)
	}
	if gold.(int64) != 2 {
		t.Fatalf("got %v, want 2", gold)
	}
}

func TestEntitySetAcrossTables(t *testing.T) {
	el, structData, goldData := buildMonsterEntities(t)
	e, err := el.At(0)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Set("hp", int64(99)); err != nil {
		t.Fatal(err)
	}
	if err := e.Set("gold", int64(77)); err != nil {
		t.Fatal(err)
	}
	if structData[0] != 99 {
		t.Fatalf("hp write did not reach struct table: %v", structData)
	}
	if goldData[0] != 77 {
		t.Fatalf("gold write did not reach primitive table: %v", goldData)
	}
}

func TestEntityUpdateBatches(t *testing.T) {
	el, _, _ := buildMonsterEntities(t)
	e, err := el.At(2)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Update(map[string]any{"hp": int64(50), "gold": int64(5)}); err != nil {
		t.Fatal(err)
	}
	hp, _ := e.Get("hp")
	gold, _ := e.Get("gold")
	if hp.(int64) != 50 || gold.(int64) != 5 {
		t.Fatalf("got hp=%v gold=%v", hp, gold)
	}
}

func TestEntityListNameAtAndIndexOf(t *testing.T) {
	handlers := structure.NewHandlerRegistry()
	types := structure.NewTypeRegistry()

	nameField := &structure.FieldDef{ID: "name", Name: "name", Type: "str", Unit: bitview.Bytes,
		Offset: expr.MustParse("0"), Size: expr.MustParse("6")}
	hpField := &structure.FieldDef{ID: "hp", Name: "hp", Type: "uintbe", Unit: bitview.Bytes,
		Offset: expr.MustParse("6"), Size: expr.MustParse("1")}
	st, err := structure.NewStructType("monster", []*structure.FieldDef{nameField, hpField})
	if err != nil {
		t.Fatal(err)
	}
	if err := types.Define(st); err != nil {
		t.Fatal(err)
	}

	data := make([]byte, 16)
	buf := bitview.NewBuffer(data)
	tbl := rtable.New("monsters", "monster", rtable.Fixed, buf.View(), handlers, types, nil)
	tbl.Unit = bitview.Bytes
	tbl.Stride = 8
	tbl.Count = 2
	tbl.WithCodecs(newASCIICodecs())

	el, err := New("monsters", []*rtable.Table{tbl})
	if err != nil {
		t.Fatal(err)
	}
	e0, err := el.At(0)
	if err != nil {
		t.Fatal(err)
	}
	if err := e0.Set("name", "Dragon"); err != nil {
		t.Fatal(err)
	}
	if err := e0.Set("hp", int64(100)); err != nil {
		t.Fatal(err)
	}

	if name, ok := el.NameAt(0); !ok || name != "Dragon" {
		t.Fatalf("got NameAt(0)=%q,%v", name, ok)
	}
	i, ok := el.IndexOf("Dragon")
	if !ok || i != 0 {
		t.Fatalf("got IndexOf(Dragon)=%d,%v", i, ok)
	}
}

func TestEntityListUnequalLengthFails(t *testing.T) {
	handlers := structure.NewHandlerRegistry()
	types := structure.NewTypeRegistry()
	buf := bitview.NewBuffer([]byte{1, 2, 3})
	a := rtable.New("a", "uint", rtable.Fixed, buf.View(), handlers, types, nil)
	a.Unit = bitview.Bytes
	a.Stride = 1
	a.Count = 3
	a.FieldID = "a"

	b := rtable.New("b", "uint", rtable.Fixed, buf.View(), handlers, types, nil)
	b.Unit = bitview.Bytes
	b.Stride = 1
	b.Count = 2
	b.FieldID = "b"

	if _, err := New("mixed", []*rtable.Table{a, b}); err == nil {
		t.Fatal("expected unequal-length error")
	}
}
