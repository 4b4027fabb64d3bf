package rtable

import (
	"testing"

	"github.com/seehuhn-romtool/romtool/bitview"
	"github.com/seehuhn-romtool/romtool/structure"
)

func TestFixedTablePrimitiveRoundTrip(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5}
	buf := bitview.NewBuffer(data)
	tbl := New("bytes", "uint", Fixed, buf.View(), structure.NewHandlerRegistry(), structure.NewTypeRegistry(), nil)
	tbl.Unit = bitview.Bytes
	tbl.Stride = 1
	tbl.Count = 5

	v, err := tbl.Get(2)
	if err != nil {
		t.Fatal(err)
	}
	if v.(int64) != 3 {
		t.Fatalf("got %v, want 3", v)
	}
	if err := tbl.Set(2, int64(9)); err != nil {
		t.Fatal(err)
	}
	if data[2] != 9 {
		t.Fatalf("expected byte 2 to become 9, got %d", data[2])
	}
}

func TestTableNonOverlapWhenSizeLEStride(t *testing.T) {
	data := make([]byte, 12)
	buf := bitview.NewBuffer(data)
	tbl := New("items", "uint", Fixed, buf.View(), structure.NewHandlerRegistry(), structure.NewTypeRegistry(), nil)
	tbl.Unit = bitview.Bytes
	tbl.Stride = 4
	tbl.Count = 3
	tbl.ItemSize = 4

	v0, err := tbl.itemView(0)
	if err != nil {
		t.Fatal(err)
	}
	v1, err := tbl.itemView(1)
	if err != nil {
		t.Fatal(err)
	}
	start0, _ := v0.Bytepos()
	start1, _ := v1.Bytepos()
	len0, _ := v0.LenBytes()
	if start0+len0 > start1 {
		t.Fatalf("items overlap: item0 ends at %d, item1 starts at %d", start0+len0, start1)
	}
}

func TestTableOverlapWhenSizeGTStride(t *testing.T) {
	data := make([]byte, 12)
	buf := bitview.NewBuffer(data)
	tbl := New("items", "uint", Fixed, buf.View(), structure.NewHandlerRegistry(), structure.NewTypeRegistry(), nil)
	tbl.Unit = bitview.Bytes
	tbl.Stride = 2
	tbl.Count = 3
	tbl.ItemSize = 4 // wider than stride: overlap is legal per spec §4.5

	v0, err := tbl.itemView(0)
	if err != nil {
		t.Fatal(err)
	}
	v1, err := tbl.itemView(1)
	if err != nil {
		t.Fatal(err)
	}
	start0, _ := v0.Bytepos()
	start1, _ := v1.Bytepos()
	len0, _ := v0.LenBytes()
	if start0+len0 <= start1 {
		t.Fatalf("expected overlap: item0 ends at %d, item1 starts at %d", start0+len0, start1)
	}
}

func TestIndexedByTable(t *testing.T) {
	data := make([]byte, 20)
	buf := bitview.NewBuffer(data)
	root := buf.View()
	handlers := structure.NewHandlerRegistry()
	types := structure.NewTypeRegistry()

	idx := New("idx", "uintbe", Fixed, root, handlers, types, nil)
	idx.Unit = bitview.Bytes
	idx.Offset = 0
	idx.Stride = 2
	idx.Count = 2
	if err := idx.Set(0, int64(10)); err != nil {
		t.Fatal(err)
	}
	if err := idx.Set(1, int64(15)); err != nil {
		t.Fatal(err)
	}

	tbl := New("strs", "uintbe", IndexedBy, root, handlers, types, nil)
	tbl.Unit = bitview.Bytes
	tbl.Offset = 0
	tbl.Index = idx
	tbl.ItemSize = 1

	if tbl.Len() != 2 {
		t.Fatalf("got len %d, want 2", tbl.Len())
	}
	view, err := tbl.itemView(1)
	if err != nil {
		t.Fatal(err)
	}
	pos, _ := view.Bytepos()
	if pos != 15 {
		t.Fatalf("item 1 should start at offset 15, got %d", pos)
	}
}

func TestTableSliceFixed(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5}
	buf := bitview.NewBuffer(data)
	tbl := New("bytes", "uint", Fixed, buf.View(), structure.NewHandlerRegistry(), structure.NewTypeRegistry(), nil)
	tbl.Unit = bitview.Bytes
	tbl.Stride = 1
	tbl.Count = 5

	sub, err := tbl.Slice(2, 4)
	if err != nil {
		t.Fatal(err)
	}
	if sub.Len() != 2 {
		t.Fatalf("got len %d, want 2", sub.Len())
	}
	v, err := sub.Get(0)
	if err != nil {
		t.Fatal(err)
	}
	if v.(int64) != 3 {
		t.Fatalf("got %v, want 3 (original item 2)", v)
	}
}
