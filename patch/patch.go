// Package patch implements the in-memory change-set representation and
// the IPS/IPST binary/text patch codecs (spec §4.8), grounded directly
// on original_source's src/romlib/patch.py — including the
// byte-offset-that-spells-"EOF" bogo-address edge case.
package patch

import (
	"sort"

	"github.com/seehuhn-romtool/romtool/romerr"
)

const (
	ipsHeader   = "PATCH"
	ipsFooter   = "EOF"
	bogoAddress = 0x454F46 // "EOF" read as a 24-bit big-endian integer
	rleMinLen   = 4        // blocks longer than 3 bytes of the same value use RLE
)

// Patch is a canonical set of single-byte changes: an absolute offset
// mapped to the byte value it should become. This map is the source of
// truth; the blocked form used for IPS encoding is always derived from
// it.
type Patch struct {
	Changes map[int64]byte
}

// New returns an empty Patch.
func New() *Patch {
	return &Patch{Changes: make(map[int64]byte)}
}

// FromChanges wraps an existing offset->byte map as a Patch. The map is
// not copied.
func FromChanges(changes map[int64]byte) *Patch {
	if changes == nil {
		changes = make(map[int64]byte)
	}
	return &Patch{Changes: changes}
}

// FromDiff builds a Patch from the byte-for-byte differences between
// original and modified. The shorter of the two is treated as
// zero-padded, matching Python's itertools.zip_longest(fillvalue=0)
// behaviour in patch.py's from_diff.
func FromDiff(original, modified []byte) *Patch {
	p := New()
	n := len(original)
	if len(modified) > n {
		n = len(modified)
	}
	for i := 0; i < n; i++ {
		var a, b byte
		if i < len(original) {
			a = original[i]
		}
		if i < len(modified) {
			b = modified[i]
		}
		if a != b {
			p.Changes[int64(i)] = b
		}
	}
	return p
}

// Block is a contiguous run of changed bytes starting at Offset.
type Block struct {
	Offset int64
	Data   []byte
}

// Blockify merges the canonical change map into sorted, maximal
// contiguous runs.
func (p *Patch) Blockify() []Block {
	if len(p.Changes) == 0 {
		return nil
	}
	offsets := make([]int64, 0, len(p.Changes))
	for off := range p.Changes {
		offsets = append(offsets, off)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	var blocks []Block
	var cur Block
	var last int64
	started := false
	for _, off := range offsets {
		v := p.Changes[off]
		if !started {
			cur = Block{Offset: off, Data: []byte{v}}
			started = true
		} else if off == last+1 {
			cur.Data = append(cur.Data, v)
		} else {
			blocks = append(blocks, cur)
			cur = Block{Offset: off, Data: []byte{v}}
		}
		last = off
	}
	if started {
		blocks = append(blocks, cur)
	}
	return blocks
}

// FromBlocks builds a Patch from a blocked (offset, contiguous bytes)
// form.
func FromBlocks(blocks []Block) *Patch {
	p := New()
	for _, b := range blocks {
		for i, v := range b.Data {
			p.Changes[b.Offset+int64(i)] = v
		}
	}
	return p
}

// Filter removes entries that would write the value already present in
// rom at the corresponding offset.
func (p *Patch) Filter(rom []byte) {
	for off, v := range p.Changes {
		if off >= 0 && int(off) < len(rom) && rom[off] == v {
			delete(p.Changes, off)
		}
	}
}

// sanitizeForIPS blockifies the patch and resolves the bogo-address
// edge case: if any block starts at exactly 0x454F46 ("EOF" read as a
// big-endian 24-bit int), that block is rewritten to start one byte
// earlier with bogobyte prepended, since an IPS record literally
// cannot start at an offset that reads as the footer marker. bogobyte
// must be non-nil in that case.
func sanitizeForIPS(p *Patch, bogobyte *byte) ([]Block, error) {
	blocks := p.Blockify()
	for i, b := range blocks {
		if b.Offset != bogoAddress {
			continue
		}
		if bogobyte == nil {
			return nil, &romerr.PatchValueError{
				Msg: "a change started at 0x454F46 (EOF) but no bogobyte was provided",
			}
		}
		data := make([]byte, 0, len(b.Data)+1)
		data = append(data, *bogobyte)
		data = append(data, b.Data...)
		blocks[i] = Block{Offset: bogoAddress - 1, Data: data}
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Offset < blocks[j].Offset })
	return blocks, nil
}

func isRLECandidate(data []byte) bool {
	if len(data) < rleMinLen {
		return false
	}
	for _, b := range data[1:] {
		if b != data[0] {
			return false
		}
	}
	return true
}
