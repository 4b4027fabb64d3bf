package rom

import (
	"testing"
	"testing/fstest"
)

func TestLoadCodecsVariants(t *testing.T) {
	mapDir := fstest.MapFS{
		"texttables/main.tbl": &fstest.MapFile{Data: []byte(
			"@main\n" +
				"00=A\n" +
				"01=B\n" +
				"/FF=\n",
		)},
	}
	reg, err := LoadCodecs(mapDir)
	if err != nil {
		t.Fatal(err)
	}
	std, ok := reg.Codec("main")
	if !ok {
		t.Fatal("expected std codec registered")
	}
	s, _, err := std.Decode([]byte{0x00, 0x01, 0xFF, 0x00})
	if err != nil {
		t.Fatal(err)
	}
	if s != "AB" {
		t.Fatalf("got %q", s)
	}

	clean, ok := reg.Codec("main.clean")
	if !ok {
		t.Fatal("expected clean codec registered")
	}
	s2, _, _ := clean.Decode([]byte{0x00, 0x01, 0xFF})
	if s2 != "AB" {
		t.Fatalf("got %q", s2)
	}

	if _, ok := reg.Codec("main.raw"); !ok {
		t.Fatal("expected raw codec registered")
	}
}

func TestLoadCodecsMissingDirIsEmpty(t *testing.T) {
	mapDir := fstest.MapFS{"meta.yaml": &fstest.MapFile{Data: []byte("name: x\n")}}
	reg, err := LoadCodecs(mapDir)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reg.Codec("anything"); ok {
		t.Fatal("expected no codecs registered")
	}
}
