package patch

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/seehuhn-romtool/romtool/romerr"
)

func put24(buf []byte, v int64) {
	buf[0] = byte(v >> 16)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v)
}

func get24(buf []byte) int64 {
	return int64(buf[0])<<16 | int64(buf[1])<<8 | int64(buf[2])
}

// ToIPS encodes the patch in binary IPS form. bogobyte is required if
// and only if the patch has a change starting at offset 0x454F46.
func (p *Patch) ToIPS(w io.Writer, bogobyte *byte) error {
	blocks, err := sanitizeForIPS(p, bogobyte)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, ipsHeader); err != nil {
		return err
	}
	for _, b := range blocks {
		var off [3]byte
		put24(off[:], b.Offset)
		if _, err := w.Write(off[:]); err != nil {
			return err
		}
		if isRLECandidate(b.Data) {
			if _, err := w.Write([]byte{0, 0}); err != nil {
				return err
			}
			var rleSize [2]byte
			binary.BigEndian.PutUint16(rleSize[:], uint16(len(b.Data)))
			if _, err := w.Write(rleSize[:]); err != nil {
				return err
			}
			if _, err := w.Write(b.Data[0:1]); err != nil {
				return err
			}
		} else {
			var size [2]byte
			binary.BigEndian.PutUint16(size[:], uint16(len(b.Data)))
			if _, err := w.Write(size[:]); err != nil {
				return err
			}
			if _, err := w.Write(b.Data); err != nil {
				return err
			}
		}
	}
	_, err = io.WriteString(w, ipsFooter)
	return err
}

// FromIPS decodes a binary IPS stream into a Patch.
func FromIPS(r io.Reader) (*Patch, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, &romerr.PatchFormatError{Msg: "short read of IPS header"}
	}
	if string(header) != ipsHeader {
		return nil, &romerr.PatchFormatError{Msg: "header mismatch reading IPS file"}
	}

	p := New()
	for {
		var off3 [3]byte
		if _, err := io.ReadFull(r, off3[:]); err != nil {
			return nil, &romerr.PatchFormatError{Msg: "short read of record offset"}
		}
		if bytes.Equal(off3[:], []byte(ipsFooter)) {
			break
		}
		offset := get24(off3[:])

		var sizeBuf [2]byte
		if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
			return nil, &romerr.PatchFormatError{Msg: "short read of record size"}
		}
		size := binary.BigEndian.Uint16(sizeBuf[:])

		if size > 0 {
			data := make([]byte, size)
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, &romerr.PatchFormatError{Msg: "short read of record data"}
			}
			for i, b := range data {
				p.Changes[offset+int64(i)] = b
			}
		} else {
			var rleBuf [2]byte
			if _, err := io.ReadFull(r, rleBuf[:]); err != nil {
				return nil, &romerr.PatchFormatError{Msg: "short read of RLE size"}
			}
			rleSize := binary.BigEndian.Uint16(rleBuf[:])
			var valBuf [1]byte
			if _, err := io.ReadFull(r, valBuf[:]); err != nil {
				return nil, &romerr.PatchFormatError{Msg: "short read of RLE value"}
			}
			for i := 0; i < int(rleSize); i++ {
				p.Changes[offset+int64(i)] = valBuf[0]
			}
		}
	}
	return p, nil
}

// Apply writes the patch's blocked changes into target at their
// offsets.
func (p *Patch) Apply(target io.WriterAt) error {
	for _, b := range p.Blockify() {
		if _, err := target.WriteAt(b.Data, b.Offset); err != nil {
			return err
		}
	}
	return nil
}
