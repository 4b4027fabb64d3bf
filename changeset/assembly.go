package changeset

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/seehuhn-romtool/romtool/bitview"
	"github.com/seehuhn-romtool/romtool/romerr"
)

// markerPattern matches an assembly source's `romtool: patch@HEX:ASSEMBLER`
// directive (spec §4.7 "Assembly patching"): HEX is the destination
// offset, ASSEMBLER names the external tool to invoke.
var markerPattern = regexp.MustCompile(`romtool:\s*patch@([0-9A-Fa-f]+):(\S+)`)

// knownAssemblers maps a marker's ASSEMBLER name to the argv template
// used to invoke it: %s is replaced with the source path, %o with the
// output binary path. cl65 (cc65) and xa65 are the two tools
// original_source actually shells out to.
var knownAssemblers = map[string][]string{
	"cl65": {"cl65", "-o", "%o", "%s"},
	"xa65": {"xa", "-o", "%o", "%s"},
}

// ApplyAssembly reads src, finds its patch@ marker, invokes the named
// external assembler, and writes the resulting binary into dst at the
// marker's offset (spec §4.7: "The core invokes the tool, reads the
// resulting binary, and overwrites HEX..HEX+len in the working view").
func ApplyAssembly(dst bitview.BitView, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return &romerr.ChangesetError{Msg: "cannot read assembly source " + src + ": " + err.Error()}
	}
	defer f.Close()

	offset, tool, err := findMarker(f)
	if err != nil {
		return err
	}

	argvTemplate, ok := knownAssemblers[tool]
	if !ok {
		return &romerr.ChangesetError{Msg: "unknown assembler " + tool}
	}

	tmp, err := os.MkdirTemp("", "romtool-asm-")
	if err != nil {
		return &romerr.ChangesetError{Msg: "cannot create temp dir: " + err.Error()}
	}
	defer os.RemoveAll(tmp)

	out := filepath.Join(tmp, "patch.bin")
	argv := make([]string, len(argvTemplate))
	for i, a := range argvTemplate {
		switch a {
		case "%o":
			argv[i] = out
		case "%s":
			argv[i] = src
		default:
			argv[i] = a
		}
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &romerr.ChangesetError{Msg: fmt.Sprintf("assembler %s failed: %v: %s", tool, err, stderr.String())}
	}

	binary, err := os.ReadFile(out)
	if err != nil {
		return &romerr.ChangesetError{Msg: "assembler produced no output: " + err.Error()}
	}

	start := offset
	stop := offset + int64(len(binary))
	view, err := dst.Slice(&start, &stop, bitview.Bytes)
	if err != nil {
		return &romerr.ChangesetError{Msg: "patch target out of range: " + err.Error()}
	}
	if err := view.WriteBytes(binary); err != nil {
		return &romerr.ChangesetError{Msg: "writing assembled patch: " + err.Error()}
	}
	return nil
}

// findMarker scans src's lines for the patch@ directive.
func findMarker(f *os.File) (offset int64, assembler string, err error) {
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		m := markerPattern.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		n, err := strconv.ParseInt(m[1], 16, 64)
		if err != nil {
			return 0, "", &romerr.ChangesetError{Msg: "malformed patch@ offset: " + m[1]}
		}
		return n, m[2], nil
	}
	if err := sc.Err(); err != nil {
		return 0, "", &romerr.ChangesetError{Msg: "reading assembly source: " + err.Error()}
	}
	return 0, "", &romerr.ChangesetError{Msg: "no romtool: patch@HEX:ASSEMBLER marker found"}
}
