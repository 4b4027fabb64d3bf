package patch

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/seehuhn-romtool/romtool/romerr"
)

// ToIPST encodes the patch in textual IPS ("IPST") form.
func (p *Patch) ToIPST(w io.Writer, bogobyte *byte) error {
	blocks, err := sanitizeForIPS(p, bogobyte)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, ipsHeader)
	for _, b := range blocks {
		if isRLECandidate(b.Data) {
			fmt.Fprintf(bw, "%06X:%04X:%04X:%02X\n", b.Offset, 0, len(b.Data), b.Data[0])
		} else {
			fmt.Fprintf(bw, "%06X:%04X:%s\n", b.Offset, len(b.Data), strings.ToUpper(hex.EncodeToString(b.Data)))
		}
	}
	fmt.Fprintln(bw, ipsFooter)
	return bw.Flush()
}

// FromIPST decodes a textual IPS stream into a Patch. Blank lines and
// lines starting with '#' are ignored.
func FromIPST(r io.Reader) (*Patch, error) {
	scanner := bufio.NewScanner(r)
	lines := make([]string, 0)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(lines) == 0 || lines[0] != ipsHeader {
		return nil, &romerr.PatchFormatError{Msg: "header mismatch reading IPST file"}
	}

	p := New()
	sawFooter := false
	for _, line := range lines[1:] {
		if line == ipsFooter {
			sawFooter = true
			break
		}
		parts := strings.Split(line, ":")
		switch len(parts) {
		case 3:
			offset, err := strconv.ParseInt(parts[0], 16, 64)
			if err != nil {
				return nil, &romerr.PatchFormatError{Msg: "invalid offset: " + parts[0]}
			}
			data, err := hex.DecodeString(parts[2])
			if err != nil {
				return nil, &romerr.PatchFormatError{Msg: "invalid hex data: " + err.Error()}
			}
			// the size field is optional on decode (patch.py:143's
			// "size = size or hex(len(data)//2)"); when present it must
			// still agree with the decoded data.
			if sizeField := strings.TrimSpace(parts[1]); sizeField != "" {
				size, err := strconv.ParseInt(sizeField, 16, 64)
				if err != nil {
					return nil, &romerr.PatchFormatError{Msg: "invalid size: " + parts[1]}
				}
				if int64(len(data)) != size {
					return nil, &romerr.PatchFormatError{
						Msg: fmt.Sprintf("data length does not match declared size on line %q", line),
					}
				}
			}
			for i, b := range data {
				p.Changes[offset+int64(i)] = b
			}
		case 4:
			offset, err1 := strconv.ParseInt(parts[0], 16, 64)
			_, err2 := strconv.ParseInt(parts[1], 16, 64) // size field, ignored on decode
			rleSize, err3 := strconv.ParseInt(parts[2], 16, 64)
			value, err4 := strconv.ParseInt(parts[3], 16, 64)
			if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
				return nil, &romerr.PatchFormatError{Msg: "malformed RLE record: " + line}
			}
			if value > 0xFF {
				return nil, &romerr.PatchValueError{
					Msg: fmt.Sprintf("RLE value %02X won't fit in one byte", value),
				}
			}
			for i := int64(0); i < rleSize; i++ {
				p.Changes[offset+i] = byte(value)
			}
		default:
			return nil, &romerr.PatchFormatError{Msg: "IPST format error on line: " + line}
		}
	}
	if !sawFooter {
		return nil, &romerr.PatchFormatError{Msg: "missing EOF footer in IPST file"}
	}
	return p, nil
}
