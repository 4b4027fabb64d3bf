package structure

import (
	"testing"

	"github.com/seehuhn-romtool/romtool/bitview"
	"github.com/seehuhn-romtool/romtool/expr"
)

func fd(id, typ string, offsetBits, sizeBits int64) *FieldDef {
	return &FieldDef{
		ID:     id,
		Name:   id,
		Type:   typ,
		Unit:   bitview.Bits,
		Offset: expr.MustParse(itoa(offsetBits)),
		Size:   expr.MustParse(itoa(sizeBits)),
	}
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{byte('0' + n%10)}, buf...)
		n /= 10
	}
	if neg {
		buf = append([]byte{'-'}, buf...)
	}
	return string(buf)
}

func newTestStructure(t *testing.T, data []byte, fields []*FieldDef) *Structure {
	t.Helper()
	buf := bitview.NewBuffer(data)
	st, err := NewStructType("test", fields)
	if err != nil {
		t.Fatal(err)
	}
	handlers := NewHandlerRegistry()
	types := NewTypeRegistry()
	return New(buf.View(), st, handlers, nil, types, nil)
}

func TestUintRoundTrip(t *testing.T) {
	data := []byte{0x12, 0x34}
	fields := []*FieldDef{fd("hp", "uintbe", 0, 16)}
	s := newTestStructure(t, data, fields)
	v, err := s.Get("hp")
	if err != nil {
		t.Fatal(err)
	}
	if v.(int64) != 0x1234 {
		t.Fatalf("got %x, want 1234", v)
	}
	if err := s.Set("hp", int64(0x1234)); err != nil {
		t.Fatal(err)
	}
	if data[0] != 0x12 || data[1] != 0x34 {
		t.Fatalf("write of unchanged value mutated buffer: % x", data)
	}
}

func TestArgModifier(t *testing.T) {
	data := []byte{10}
	f := fd("level", "uint", 0, 8)
	f.Arg = 1
	s := newTestStructure(t, data, []*FieldDef{f})
	v, err := s.Get("level")
	if err != nil {
		t.Fatal(err)
	}
	if v.(int64) != 11 {
		t.Fatalf("got %d, want 11 (stored 10 + arg 1)", v)
	}
	if err := s.Set("level", int64(11)); err != nil {
		t.Fatal(err)
	}
	if data[0] != 10 {
		t.Fatalf("expected stored byte 10, got %d", data[0])
	}
}

func TestDisplayOrderNameFirst(t *testing.T) {
	nameField := fd("name", "uint", 0, 8)
	slopField := fd("slop", "uint", 8, 8)
	slopField.Display = "slop"
	otherField := fd("hp", "uint", 16, 8)
	st, err := NewStructType("monster", []*FieldDef{slopField, otherField, nameField})
	if err != nil {
		t.Fatal(err)
	}
	order := st.DisplayOrder()
	if order[0].ID != "name" {
		t.Fatalf("expected name field first, got %s", order[0].ID)
	}
	if order[len(order)-1].ID != "slop" {
		t.Fatalf("expected slop field last, got %s", order[len(order)-1].ID)
	}
}

func TestDuplicateFieldIDFails(t *testing.T) {
	a := fd("hp", "uint", 0, 8)
	b := fd("hp", "uint", 8, 8)
	if _, err := NewStructType("dup", []*FieldDef{a, b}); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestGetSetByLabel(t *testing.T) {
	f := &FieldDef{ID: "f1", Name: "Friendly", Type: "uint", Unit: bitview.Bits,
		Offset: expr.MustParse("0"), Size: expr.MustParse("8")}
	s := newTestStructure(t, []byte{5}, []*FieldDef{f})
	v, err := s.Get("Friendly")
	if err != nil {
		t.Fatal(err)
	}
	if v.(int64) != 5 {
		t.Fatalf("got %v", v)
	}
}

func TestBitFieldStrAndParse(t *testing.T) {
	flags := []*FieldDef{
		{ID: "poison", Name: "poison", Type: "uint", Unit: bitview.Bits, Display: "p",
			Offset: expr.MustParse("0"), Size: expr.MustParse("1")},
		{ID: "burn", Name: "burn", Type: "uint", Unit: bitview.Bits, Display: "b",
			Offset: expr.MustParse("1"), Size: expr.MustParse("1")},
	}
	st, err := NewStructType("status", flags)
	if err != nil {
		t.Fatal(err)
	}
	buf := bitview.NewBuffer([]byte{0})
	s := New(buf.View(), st, NewHandlerRegistry(), nil, NewTypeRegistry(), nil)
	bf, err := NewBitField(s)
	if err != nil {
		t.Fatal(err)
	}
	if err := bf.Parse("Pb"); err != nil {
		t.Fatal(err)
	}
	got, err := bf.Str()
	if err != nil {
		t.Fatal(err)
	}
	if got != "Pb" {
		t.Fatalf("got %q, want Pb", got)
	}
}

func TestRootOrigin(t *testing.T) {
	nameF := &FieldDef{ID: "tag", Name: "tag", Type: "uint", Unit: bitview.Bytes,
		Origin: OriginRoot, Offset: expr.MustParse("0"), Size: expr.MustParse("1")}
	st, err := NewStructType("wrapper", []*FieldDef{nameF})
	if err != nil {
		t.Fatal(err)
	}
	buf := bitview.NewBuffer([]byte{0xAB, 0xCD, 0xEF})
	full := buf.View()
	start, stop := int64(1), int64(3)
	sub, err := full.Slice(&start, &stop, bitview.Bytes)
	if err != nil {
		t.Fatal(err)
	}
	s := New(sub, st, NewHandlerRegistry(), nil, NewTypeRegistry(), nil)
	v, err := s.Get("tag")
	if err != nil {
		t.Fatal(err)
	}
	if v.(int64) != 0xAB {
		t.Fatalf("root-origin read got %x, want AB (first byte of whole buffer)", v)
	}
}

func TestDumpLoadRoundTrip(t *testing.T) {
	fields := []*FieldDef{
		fd("hp", "uintbe", 0, 8),
		fd("atk", "uintbe", 8, 8),
	}
	s := newTestStructure(t, []byte{10, 20}, fields)
	row, err := s.Dump()
	if err != nil {
		t.Fatal(err)
	}
	if row["hp"] != "10" || row["atk"] != "20" {
		t.Fatalf("got %v", row)
	}
	row["hp"] = "99"
	if err := s.Load(row); err != nil {
		t.Fatal(err)
	}
	v, _ := s.Get("hp")
	if v.(int64) != 99 {
		t.Fatalf("got %v, want 99", v)
	}
}

// fakeEntitySet is a minimal EntitySet for tests, indexed by its
// position in names.
type fakeEntitySet struct{ names []string }

func (e fakeEntitySet) Len() int64 { return int64(len(e.names)) }

func (e fakeEntitySet) NameAt(i int) (string, bool) {
	if i < 0 || i >= len(e.names) {
		return "", false
	}
	return e.names[i], true
}

func (e fakeEntitySet) IndexOf(name string) (int, bool) {
	for i, n := range e.names {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

type fakeRefResolver map[string]fakeEntitySet

func (r fakeRefResolver) Entities(name string) (EntitySet, bool) {
	set, ok := r[name]
	return set, ok
}

func TestRefFieldDumpsAndLoadsByName(t *testing.T) {
	refs := fakeRefResolver{"items": fakeEntitySet{names: []string{"Potion", "Ether", "Elixir"}}}
	f := fd("drops", "uint", 0, 8)
	f.Ref = "items"
	st, err := NewStructType("monster", []*FieldDef{f})
	if err != nil {
		t.Fatal(err)
	}
	buf := bitview.NewBuffer([]byte{1})
	s := New(buf.View(), st, NewHandlerRegistry(), nil, NewTypeRegistry(), refs)

	row, err := s.Dump()
	if err != nil {
		t.Fatal(err)
	}
	if row["drops"] != "Ether" {
		t.Fatalf("Dump: got %q, want entity name %q", row["drops"], "Ether")
	}

	got, err := s.Get("drops")
	if err != nil {
		t.Fatal(err)
	}
	ix, ok := got.(IndexInt)
	if !ok {
		t.Fatalf("Get: got %T, want IndexInt", got)
	}
	if ix.String() != "Ether" {
		t.Fatalf("Get: got %q, want %q", ix.String(), "Ether")
	}

	if err := s.Load(map[string]string{"drops": "Elixir"}); err != nil {
		t.Fatal(err)
	}
	if buf.Bytes[0] != 2 {
		t.Fatalf("Load by name: stored byte = %d, want index 2 (Elixir)", buf.Bytes[0])
	}

	if err := s.ParseField("drops", "Potion"); err != nil {
		t.Fatal(err)
	}
	if buf.Bytes[0] != 0 {
		t.Fatalf("ParseField by name: stored byte = %d, want index 0 (Potion)", buf.Bytes[0])
	}

	// a plain integer still works when it isn't an entity name.
	if err := s.Load(map[string]string{"drops": "1"}); err != nil {
		t.Fatal(err)
	}
	if buf.Bytes[0] != 1 {
		t.Fatalf("Load by integer fallback: stored byte = %d, want 1", buf.Bytes[0])
	}
}

func TestHexDisplayIsWidthAwareAndCoversPointer(t *testing.T) {
	fields := []*FieldDef{
		fd("ptr", "uintbe", 0, 16),
	}
	fields[0].Display = "pointer"
	s := newTestStructure(t, []byte{0x00, 0x2A}, fields)
	row, err := s.Dump()
	if err != nil {
		t.Fatal(err)
	}
	if row["ptr"] != "0x002a" {
		t.Fatalf("got %q, want zero-padded 16-bit hex 0x002a", row["ptr"])
	}
}

func TestHookParticipatesInResolve(t *testing.T) {
	handlers := NewHandlerRegistry()
	handlers.AddHook(doublingHook{})
	fields := []*FieldDef{fd("hp", "uint", 0, 8)}
	st, err := NewStructType("monster", fields)
	if err != nil {
		t.Fatal(err)
	}
	buf := bitview.NewBuffer([]byte{5})
	s := New(buf.View(), st, handlers, nil, NewTypeRegistry(), nil)
	v, err := s.Get("hp")
	if err != nil {
		t.Fatal(err)
	}
	if v.(int64) != 10 {
		t.Fatalf("got %v, want 10 (hook doubles the stored value)", v)
	}
}

// doublingHook handles every Read by doubling the builtin uint
// decode, and defers every Write to the builtin handler.
type doublingHook struct{}

func (doublingHook) Read(view bitview.BitView, f *FieldDef, codecs codecLookup) (any, bool, error) {
	h := builtinHandlers["uint"]
	raw, err := h.Read(view, f, codecs)
	if err != nil {
		return nil, false, err
	}
	n, err := asInt(raw)
	if err != nil {
		return nil, false, err
	}
	return n * 2, true, nil
}

func (doublingHook) Write(view bitview.BitView, f *FieldDef, codecs codecLookup, value any) (bool, error) {
	return false, nil
}

// constHandler is a Handler stub used to confirm Override replaces the
// builtin resolution for a type name.
type constHandler struct{ n int64 }

func (h constHandler) Read(bitview.BitView, *FieldDef, codecLookup) (any, error) {
	return h.n, nil
}

func (constHandler) Write(bitview.BitView, *FieldDef, codecLookup, any) error {
	return nil
}

func (constHandler) Parse(*FieldDef, string) (any, error) {
	return nil, nil
}

func (h constHandler) Format(*FieldDef, any, int64) (string, error) {
	return itoa(h.n), nil
}

func TestOverrideReplacesBuiltinHandler(t *testing.T) {
	handlers := NewHandlerRegistry()
	handlers.Override("uint", constHandler{n: 42})
	fields := []*FieldDef{fd("hp", "uint", 0, 8)}
	st, err := NewStructType("monster", fields)
	if err != nil {
		t.Fatal(err)
	}
	buf := bitview.NewBuffer([]byte{5})
	s := New(buf.View(), st, handlers, nil, NewTypeRegistry(), nil)
	v, err := s.Get("hp")
	if err != nil {
		t.Fatal(err)
	}
	if v.(int64) != 42 {
		t.Fatalf("got %v, want 42 (from the overridden handler)", v)
	}
}
