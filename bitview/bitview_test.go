package bitview

import "testing"

func TestSliceAndUint(t *testing.T) {
	buf := NewBuffer([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	v := buf.View()

	sub, err := v.Slice(ptrI(8), ptrI(16), Bits)
	if err != nil {
		t.Fatal(err)
	}
	got, err := sub.ReadUintBE()
	if err != nil {
		t.Fatal(err)
	}
	if got != 0xAD {
		t.Fatalf("got %#x, want 0xad", got)
	}
}

func TestNegativeSlice(t *testing.T) {
	buf := NewBuffer([]byte{1, 2, 3, 4})
	v := buf.View()
	last, err := v.Slice(ptrI(-1), nil, Bytes)
	if err != nil {
		t.Fatal(err)
	}
	got, err := last.ReadUintBE()
	if err != nil {
		t.Fatal(err)
	}
	if got != 4 {
		t.Fatalf("got %d, want 4", got)
	}
}

func TestOutOfRange(t *testing.T) {
	buf := NewBuffer([]byte{1, 2})
	v := buf.View()
	_, err := v.Slice(nil, ptrI(3), Bytes)
	if err == nil {
		t.Fatal("expected OutOfRange error")
	}
}

func TestBitAlignedUint(t *testing.T) {
	// 0b1011_0000 0b1100_0000 -- take the 8 bits 4..12 across the byte boundary: 0000 1100
	buf := NewBuffer([]byte{0b10110000, 0b11000000})
	v := buf.View()
	sub, err := v.Slice(ptrI(4), ptrI(12), Bits)
	if err != nil {
		t.Fatal(err)
	}
	got, err := sub.ReadUint()
	if err != nil {
		t.Fatal(err)
	}
	if got != 0b00001100 {
		t.Fatalf("got %b, want 1100", got)
	}
}

func TestWriteNoopLeavesBufferIdentical(t *testing.T) {
	buf := NewBuffer([]byte{0x42})
	v := buf.View()
	before := append([]byte{}, buf.Bytes...)
	if err := v.WriteUint(0x42); err != nil {
		t.Fatal(err)
	}
	if buf.Bytes[0] != before[0] {
		t.Fatalf("buffer changed on identical write")
	}
}

func TestLittleEndianRoundTrip(t *testing.T) {
	buf := NewBuffer(make([]byte, 4))
	v := buf.View()
	if err := v.WriteUintLE(0x01020304); err != nil {
		t.Fatal(err)
	}
	if buf.Bytes[0] != 0x04 || buf.Bytes[3] != 0x01 {
		t.Fatalf("unexpected bytes: %x", buf.Bytes)
	}
	got, err := v.ReadUintLE()
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x01020304 {
		t.Fatalf("got %#x", got)
	}
}

func TestNBCDLE(t *testing.T) {
	buf := NewBuffer(make([]byte, 2))
	v := buf.View()
	if err := v.WriteNBCDLE(1234); err != nil {
		t.Fatal(err)
	}
	got, err := v.ReadNBCDLE()
	if err != nil {
		t.Fatal(err)
	}
	if got != 1234 {
		t.Fatalf("got %d, want 1234", got)
	}
}

func TestIntSignExtension(t *testing.T) {
	buf := NewBuffer([]byte{0xFF})
	v := buf.View()
	got, err := v.ReadInt()
	if err != nil {
		t.Fatal(err)
	}
	if got != -1 {
		t.Fatalf("got %d, want -1", got)
	}
}

func TestUnalignedBytepos(t *testing.T) {
	buf := NewBuffer([]byte{1})
	v := buf.View()
	sub, err := v.Slice(ptrI(1), ptrI(5), Bits)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sub.Bytepos(); err == nil {
		t.Fatal("expected Unaligned error")
	}
}

func ptrI(v int64) *int64 { return &v }
