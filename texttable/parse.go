package texttable

import (
	"bufio"
	"encoding/hex"
	"io"
	"strconv"
	"strings"

	"github.com/seehuhn-romtool/romtool/romerr"
)

// Parse reads a Nightcrawler-format .tbl file (spec §4.2) and returns
// the resulting Table. Blank lines are ignored. Line prefixes:
//
//	@  sets the table id
//	/  marks the following mapping as an EOS terminator
//	$  reserved, accepted but otherwise untouched
//	!  triggers an unsupported-feature error (table switching)
func Parse(r io.Reader, where string) (*Table, error) {
	t := New("")
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}

		prefix := line[0]
		eos := false
		switch prefix {
		case '@':
			t.ID = line[1:]
			continue
		case '!':
			return nil, &romerr.MapError{
				Where: locate(where, lineNo),
				Msg:   "table switching ('!') is not supported",
			}
		case '/':
			eos = true
			line = line[1:]
		case '$':
			line = line[1:]
		}

		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			return nil, &romerr.MapError{
				Where: locate(where, lineNo),
				Msg:   "expected HEXBYTES=text",
			}
		}
		codeHex, text := line[:idx], line[idx+1:]
		codeseq, err := hex.DecodeString(codeHex)
		if err != nil {
			return nil, &romerr.MapError{
				Where: locate(where, lineNo),
				Msg:   "invalid hex byte sequence: " + err.Error(),
			}
		}
		t.AddMapping(codeseq, text, eos)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

func locate(where string, line int) string {
	if where == "" {
		return ""
	}
	return where + ":" + strconv.Itoa(line)
}
