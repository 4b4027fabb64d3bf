package rom

import "testing"

func makeINES(prgKB int) []byte {
	data := make([]byte, 16+prgKB*1024)
	copy(data, []byte("NES\x1a"))
	data[4] = byte(prgKB / 16)
	return data
}

func TestDetectINES(t *testing.T) {
	data := makeINES(32)
	f, err := DetectINES(data)
	if err != nil {
		t.Fatal(err)
	}
	if f != FormatINES {
		t.Fatalf("got %v", f)
	}
}

func TestDetectINESRejectsBadMagic(t *testing.T) {
	data := make([]byte, 16)
	if _, err := DetectINES(data); err == nil {
		t.Fatal("expected error for missing magic")
	}
}

func makeSNES(kb int, mapMode byte) []byte {
	data := make([]byte, kb*1024)
	off := 0x7FC0
	name := "TEST GAME            "
	copy(data[off:], name)
	data[off+0x15] = mapMode
	n := byte(0)
	for (1 << n) < kb {
		n++
	}
	data[off+0x17] = n
	return data
}

func TestDetectSNESLoROM(t *testing.T) {
	data := makeSNES(32, 0x20)
	f, err := DetectSNES(data)
	if err != nil {
		t.Fatal(err)
	}
	if f != FormatSNES {
		t.Fatalf("got %v", f)
	}
}

func TestDetectSNESRejectsMismatchedMode(t *testing.T) {
	data := makeSNES(32, 0x21) // HiROM mode byte at a LoROM-only offset
	if _, err := DetectSNES(data); err == nil {
		t.Fatal("expected error for mismatched map mode")
	}
}

func TestDetectFormatStripsSMCHeader(t *testing.T) {
	snes := makeSNES(32, 0x20)
	headered := append(make([]byte, smcHeaderSize), snes...)

	f1, body1, err := DetectFormat(snes)
	if err != nil {
		t.Fatal(err)
	}
	f2, body2, err := DetectFormat(headered)
	if err != nil {
		t.Fatal(err)
	}
	if f1 != f2 || f1 != FormatSNES {
		t.Fatalf("got %v, %v", f1, f2)
	}
	if len(body1) != len(body2) {
		t.Fatalf("headered/unheadered bodies differ in length: %d vs %d", len(body1), len(body2))
	}
}

func TestDetectGBA(t *testing.T) {
	data := make([]byte, 0x100)
	data[0xBD] = 0x96
	f, err := DetectGBA(data)
	if err != nil {
		t.Fatal(err)
	}
	if f != FormatGBA {
		t.Fatalf("got %v", f)
	}
}

func TestDetectFormatNoMatch(t *testing.T) {
	data := make([]byte, 64)
	if _, _, err := DetectFormat(data); err == nil {
		t.Fatal("expected error for unrecognized format")
	}
}
