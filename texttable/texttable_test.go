package texttable

import (
	"strings"
	"testing"
)

const esunaTbl = `24=E
4C=s
4E=u
47=n
3A=a
/F7=[EOS]
`

func mustParse(t *testing.T, src string) *Table {
	t.Helper()
	tbl, err := Parse(strings.NewReader(src), "test.tbl")
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

func TestDecodeVariants(t *testing.T) {
	tbl := mustParse(t, esunaTbl)
	data := []byte{0x24, 0x4C, 0x4E, 0x47, 0x3A, 0xF7, 0x00, 0x00}

	if s, _ := tbl.DecodeStd(data); s != "Esuna[EOS]" {
		t.Fatalf("std: got %q", s)
	}
	if s, _ := tbl.DecodeClean(data); s != "Esuna" {
		t.Fatalf("clean: got %q", s)
	}
}

func TestEncodeClean(t *testing.T) {
	tbl := mustParse(t, esunaTbl)
	codec := NewCodec(tbl, VariantClean)
	got, err := codec.Encode("Esuna")
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x24, 0x4C, 0x4E, 0x47, 0x3A, 0xF7}
	if string(got) != string(want) {
		t.Fatalf("got % x, want % x", got, want)
	}
}

func TestEncodeRawByteEscape(t *testing.T) {
	tbl := mustParse(t, esunaTbl)
	got, err := tbl.Encode("E[$99]u")
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x24, 0x99, 0x4E}
	if string(got) != string(want) {
		t.Fatalf("got % x, want % x", got, want)
	}
}

func TestDecodeUnmatchedByte(t *testing.T) {
	tbl := mustParse(t, esunaTbl)
	s, n := tbl.DecodeRaw([]byte{0x24, 0x01})
	if s != "E[$01]" || n != 2 {
		t.Fatalf("got %q, %d", s, n)
	}
}

func TestEncodeUnmappedFails(t *testing.T) {
	tbl := mustParse(t, esunaTbl)
	if _, err := tbl.Encode("z"); err == nil {
		t.Fatal("expected EncodeError")
	}
}

func TestRoundTripAllAcceptedStrings(t *testing.T) {
	tbl := mustParse(t, esunaTbl)
	for _, s := range []string{"Esuna", "Esuna[EOS]", "EsunaEsuna"} {
		enc, err := tbl.Encode(s)
		if err != nil {
			t.Fatal(err)
		}
		dec, _ := tbl.DecodeRaw(enc)
		if dec != s {
			t.Fatalf("round trip mismatch: got %q want %q", dec, s)
		}
	}
}

func TestTableSwitchingUnsupported(t *testing.T) {
	_, err := Parse(strings.NewReader("!foo\n"), "x.tbl")
	if err == nil {
		t.Fatal("expected error for '!' prefix")
	}
}

func TestFirstEOSPreservesDeclarationOrder(t *testing.T) {
	// "/F7" sorts before "/FF" lexicographically, but FF is declared
	// first and must win.
	const tbl = `24=E
4C=s
/FF=[EOS1]
/F7=[EOS2]
`
	codec := NewCodec(mustParse(t, tbl), VariantClean)
	got, err := codec.Encode("Es")
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x24, 0x4C, 0xFF}
	if string(got) != string(want) {
		t.Fatalf("got % x, want % x (first-declared EOS FF, not lexicographically-smallest F7)", got, want)
	}
}
