package rom

import (
	"unicode"

	"github.com/seehuhn-romtool/romtool/romerr"
)

// Format names a ROM image's container/header type (spec §4.7).
type Format string

const (
	FormatINES Format = "iNES"
	FormatSNES Format = "SNES"
	FormatGBA  Format = "GBA"
)

// smcHeaderSize is the size of the copier header sometimes prepended
// to SNES images, detected by file-size modulo 1024.
const smcHeaderSize = 512

// hasSMCHeader reports whether data's length indicates a prepended
// 512-byte SMC copier header (spec §4.7, §8 "SNES detection").
func hasSMCHeader(data []byte) bool {
	return len(data)%1024 == smcHeaderSize
}

// stripSMCHeader returns data with any leading SMC header removed.
func stripSMCHeader(data []byte) []byte {
	if hasSMCHeader(data) {
		return data[smcHeaderSize:]
	}
	return data
}

// DetectINES validates the 16-byte iNES header: magic "NES\x1a".
func DetectINES(data []byte) (Format, error) {
	if len(data) < 16 || string(data[0:3]) != "NES" || data[3] != 0x1a {
		return "", &romerr.HeaderError{Format: string(FormatINES), Msg: "missing NES\\x1a magic"}
	}
	return FormatINES, nil
}

// snesHeaderOffsets are the seven candidate absolute offsets for a
// SNES internal header, tried in order (spec §4.7, §8 scenario 5).
var snesHeaderOffsets = []int{0x7FC0, 0xFFC0, 0x40FFC0, 0x7FB0, 0xFFB0, 0x40FFB0, 0x81C0}

// DetectSNES scans the seven known header offsets and accepts the
// first whose map-mode byte, size byte, and name bytes all validate.
// data should already have any SMC header stripped.
func DetectSNES(data []byte) (Format, error) {
	for _, off := range snesHeaderOffsets {
		if validateSNESHeaderAt(data, off) {
			return FormatSNES, nil
		}
	}
	return "", &romerr.HeaderError{Format: string(FormatSNES), Msg: "no header offset validated"}
}

func validateSNESHeaderAt(data []byte, off int) bool {
	if off+0x40 > len(data) {
		return false
	}
	nameBytes := data[off : off+21]
	mapMode := data[off+0x15]
	sizeByte := data[off+0x17]

	// The map-mode byte's low nybble encodes which offset family this
	// header belongs to: 0x20/0x30 => LoROM family (offsets ending
	// …FC0/…FB0), 0x21/0x31 => HiROM family (…FFC0 is shared, the
	// 0x40xxxx mirror distinguishes ExHiROM). We accept any mode whose
	// family matches the offset being probed.
	loROM := off == 0x7FC0 || off == 0x7FB0
	hiROM := off == 0xFFC0 || off == 0xFFB0 || off == 0x40FFC0 || off == 0x40FFB0 || off == 0x81C0
	modeLo := mapMode&0x01 == 0
	if loROM && !modeLo {
		return false
	}
	if hiROM && modeLo {
		return false
	}

	n := sizeByte
	if n == 0 || n > 23 {
		return false
	}
	loK := int64(1) << (n - 1)
	hiK := int64(1) << n
	sizeK := int64(len(data)) / 1024
	if sizeK < loK || sizeK > hiK {
		return false
	}

	for _, b := range nameBytes {
		if b < 0x20 || b > 0x7E {
			if !unicode.IsSpace(rune(b)) {
				return false
			}
		}
	}
	return true
}

// DetectGBA validates the single magic byte 0x96 at offset 0xBD.
func DetectGBA(data []byte) (Format, error) {
	if len(data) <= 0xBD || data[0xBD] != 0x96 {
		return "", &romerr.HeaderError{Format: string(FormatGBA), Msg: "missing 0x96 magic at offset 0xBD"}
	}
	return FormatGBA, nil
}

// DetectFormat tries each known format's header validator in order,
// stripping an SMC header first if one is present (so headered and
// unheadered SNES images resolve identically — spec §8 "SNES
// detection" boundary behavior).
func DetectFormat(data []byte) (Format, []byte, error) {
	body := stripSMCHeader(data)
	if f, err := DetectINES(body); err == nil {
		return f, body, nil
	}
	if f, err := DetectSNES(body); err == nil {
		return f, body, nil
	}
	if f, err := DetectGBA(body); err == nil {
		return f, body, nil
	}
	return "", nil, &romerr.HeaderError{Msg: "no known ROM format matched"}
}
