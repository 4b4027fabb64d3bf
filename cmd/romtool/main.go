// Command romtool is the CLI collaborator around the core (spec §2,
// §9 "CLI surface"): argument parsing, file discovery, and hash-based
// ROM identification live here, not in the core packages, which only
// ever see bytes, an fs.FS map directory, and Go values.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/seehuhn-romtool/romtool/bitview"
	"github.com/seehuhn-romtool/romtool/changeset"
	"github.com/seehuhn-romtool/romtool/patch"
	"github.com/seehuhn-romtool/romtool/rom"
)

// Exit codes per spec §9: 0 success, 2 detection/I/O failure, 1 usage
// errors.
const (
	exitOK      = 0
	exitUsage   = 1
	exitFailure = 2
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(exitUsage)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "dump":
		err = cmdDump(args)
	case "build":
		err = cmdBuild(args)
	case "diff":
		err = cmdDiff(args)
	case "apply":
		err = cmdApply(args)
	case "convert":
		err = cmdConvert(args)
	case "meta":
		err = cmdMeta(args)
	case "ident":
		err = cmdIdent(args)
	case "dirs":
		err = cmdDirs(args)
	case "initchg":
		err = cmdInitChg(args)
	case "sanitize", "fix":
		err = cmdSanitize(args)
	case "ext":
		err = cmdExt(args)
	case "-h", "--help", "help":
		usage()
		os.Exit(exitOK)
	default:
		fmt.Fprintf(os.Stderr, "romtool: unknown command %q\n", cmd)
		usage()
		os.Exit(exitUsage)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "romtool %s: %v\n", cmd, err)
		os.Exit(exitCodeFor(err))
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: romtool <command> [arguments]

commands:
  dump     -map DIR ROM OUTDIR      dump every entity set to OUTDIR/*.tsv
  build    -map DIR ROM INDIR OUT   load edits from INDIR/*.tsv, write OUT
  diff     ORIG MODIFIED OUT.ips    write the byte-level IPS patch between two images
  apply    ROM PATCH OUT            apply an IPS/IPST patch to ROM, write OUT
  apply    -map DIR ROM CHG OUT     apply a changeset file to ROM, write OUT
  convert  IN OUT                   convert a patch between .ips and .ipst
  meta     -map DIR                 print a map directory's meta.yaml
  ident    -hashdb FILE ROM         identify ROM by sha1 against a hash database
  dirs     -hashdb FILE             list the hash database search order
  initchg  OUT                      scaffold an empty changeset file
  sanitize -map DIR ROM OUT         run a map's sanitize hook, write OUT
  fix      -map DIR ROM OUT         alias for sanitize
  ext      -map DIR ROM NAME OUT    apply a built-in ext/ changeset, patch, or assembly by name
  ext      -map DIR -list          list the map's built-in ext/ entries`)
}

// usageError marks a failure that belongs to exit code 1 (bad
// arguments) rather than 2 (detection/I-O failure) in exitCodeFor.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usageErrorf(format string, a ...any) error {
	return &usageError{msg: fmt.Sprintf(format, a...)}
}

func exitCodeFor(err error) int {
	var u *usageError
	if errors.As(err, &u) {
		return exitUsage
	}
	return exitFailure
}

func loadRom(mapDir, romPath string) (*rom.Rom, error) {
	m, err := rom.LoadMap(os.DirFS(mapDir))
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(romPath)
	if err != nil {
		return nil, err
	}
	return rom.Open(data, m)
}

func cmdDump(args []string) error {
	mapDir, rest, err := takeFlag(args, "-map")
	if err != nil {
		return err
	}
	if len(rest) != 2 {
		return usageErrorf("usage: dump -map DIR ROM OUTDIR")
	}
	r, err := loadRom(mapDir, rest[0])
	if err != nil {
		return err
	}
	outDir := rest[1]
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	return r.DumpDir(func(name string) (io.WriteCloser, error) {
		return os.Create(filepath.Join(outDir, name))
	})
}

func cmdBuild(args []string) error {
	mapDir, rest, err := takeFlag(args, "-map")
	if err != nil {
		return err
	}
	if len(rest) != 3 {
		return usageErrorf("usage: build -map DIR ROM INDIR OUT")
	}
	r, err := loadRom(mapDir, rest[0])
	if err != nil {
		return err
	}
	inDir := rest[1]
	names := make([]string, 0, len(r.EntityLists))
	for name := range r.EntityLists {
		names = append(names, name)
	}
	sort.Strings(names)
	if err := r.LoadDir(func(name string) (fs.File, error) {
		return os.Open(filepath.Join(inDir, name))
	}, names); err != nil {
		return err
	}
	return os.WriteFile(rest[2], r.Bytes(), 0o644)
}

func cmdDiff(args []string) error {
	if len(args) != 3 {
		return usageErrorf("usage: diff ORIG MODIFIED OUT.ips")
	}
	orig, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	modified, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	p := patch.FromDiff(orig, modified)
	out, err := os.Create(args[2])
	if err != nil {
		return err
	}
	defer out.Close()
	if strings.HasSuffix(strings.ToLower(args[2]), ".ipst") {
		return p.ToIPST(out, nil)
	}
	return p.ToIPS(out, nil)
}

// cmdApply covers both of the core's write operations that take an
// edit description rather than a folder of TSVs (spec §4.7's
// "apply(changeset) / ... / apply_patch(p)"): with -map, ARG is a
// changeset file (YAML/JSON) resolved against the map's tables and
// entities; without -map, ARG is an IPS/IPST patch applied directly
// to the ROM's bytes.
func cmdApply(args []string) error {
	mapDir, rest, mapErr := takeFlag(args, "-map")
	if mapErr == nil {
		if len(rest) != 3 {
			return usageErrorf("usage: apply -map DIR ROM CHANGESET OUT")
		}
		return applyChangeset(mapDir, rest[0], rest[1], rest[2])
	}
	if len(args) != 3 {
		return usageErrorf("usage: apply ROM PATCH OUT")
	}
	return applyPatchFile(args[0], args[1], args[2])
}

func applyChangeset(mapDir, romPath, changesetPath, outPath string) error {
	r, err := loadRom(mapDir, romPath)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(changesetPath)
	if err != nil {
		return err
	}
	cs, err := changeset.LoadFile(changesetPath, data)
	if err != nil {
		return err
	}
	if err := changeset.Apply(r, cs, ""); err != nil {
		return err
	}
	return os.WriteFile(outPath, r.Bytes(), 0o644)
}

func applyPatchFile(romPath, patchPath, outPath string) error {
	data, err := os.ReadFile(romPath)
	if err != nil {
		return err
	}
	p, err := readPatch(patchPath)
	if err != nil {
		return err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := out.Write(data); err != nil {
		return err
	}
	return p.Apply(out)
}

func cmdConvert(args []string) error {
	if len(args) != 2 {
		return usageErrorf("usage: convert IN OUT")
	}
	p, err := readPatch(args[0])
	if err != nil {
		return err
	}
	out, err := os.Create(args[1])
	if err != nil {
		return err
	}
	defer out.Close()
	if strings.HasSuffix(strings.ToLower(args[1]), ".ipst") {
		return p.ToIPST(out, nil)
	}
	return p.ToIPS(out, nil)
}

func readPatch(path string) (*patch.Patch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if strings.HasSuffix(strings.ToLower(path), ".ipst") {
		return patch.FromIPST(f)
	}
	return patch.FromIPS(f)
}

func cmdMeta(args []string) error {
	mapDir, rest, err := takeFlag(args, "-map")
	if err != nil {
		return err
	}
	if len(rest) != 0 {
		return usageErrorf("usage: meta -map DIR")
	}
	m, err := rom.LoadMap(os.DirFS(mapDir))
	if err != nil {
		return err
	}
	fmt.Printf("name: %s\nfile: %s\nsha1: %s\n", m.Meta.Name, m.Meta.File, m.Meta.SHA1)
	return nil
}

func cmdIdent(args []string) error {
	hashdbPath, rest, err := takeFlag(args, "-hashdb")
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return usageErrorf("usage: ident -hashdb FILE ROM")
	}
	data, err := os.ReadFile(rest[0])
	if err != nil {
		return err
	}
	sha1, err := bitview.NewBuffer(data).View().SHA1()
	if err != nil {
		return err
	}
	f, err := os.Open(hashdbPath)
	if err != nil {
		return err
	}
	defer f.Close()
	dir, err := rom.NewHashDB(f).Lookup(sha1)
	if err != nil {
		return err
	}
	fmt.Println(dir)
	return nil
}

func cmdDirs(args []string) error {
	hashdbPath, rest, err := takeFlag(args, "-hashdb")
	if err != nil {
		return err
	}
	if len(rest) != 0 {
		return usageErrorf("usage: dirs -hashdb FILE")
	}
	// Search order per spec §4.7: explicitly supplied, user data dir,
	// built-in. This prints the explicitly supplied path, then the
	// romtool folder under os.UserConfigDir when that resolves; no
	// built-in location is printed.
	fmt.Println(hashdbPath)
	if dir, err := os.UserConfigDir(); err == nil {
		fmt.Println(filepath.Join(dir, "romtool"))
	}
	return nil
}

func cmdInitChg(args []string) error {
	if len(args) != 1 {
		return usageErrorf("usage: initchg OUT")
	}
	return os.WriteFile(args[0], []byte("{}\n"), 0o644)
}

// cmdSanitize runs a loaded map's sanitize hook, if the map registered
// one. Hooks are Go-specific (see rom.LoadMap's doc comment): there is
// no dynamic-module mechanism to invoke generically, so a map without
// a compiled-in hook has nothing for this command to do.
func cmdSanitize(args []string) error {
	mapDir, rest, err := takeFlag(args, "-map")
	if err != nil {
		return err
	}
	if len(rest) != 2 {
		return usageErrorf("usage: sanitize -map DIR ROM OUT")
	}
	r, err := loadRom(mapDir, rest[0])
	if err != nil {
		return err
	}
	if r.Map.Sanitize == nil {
		return fmt.Errorf("map %s registers no sanitize hook", r.Map.Meta.Name)
	}
	if err := r.Map.Sanitize(r); err != nil {
		return err
	}
	return os.WriteFile(rest[1], r.Bytes(), 0o644)
}

// cmdExt lists or applies a map's built-in ext/ entries (spec §6:
// "ext/*.{asm,ips,ipst,yaml,json}"): a changeset and patch file go
// through the same apply paths as the standalone apply/convert
// commands, and an assembly source goes through ApplyAssembly, all
// dispatched by the entry's extension.
func cmdExt(args []string) error {
	mapDir, rest, err := takeFlag(args, "-map")
	if err != nil {
		return err
	}
	if len(rest) == 1 && rest[0] == "-list" {
		m, err := rom.LoadMap(os.DirFS(mapDir))
		if err != nil {
			return err
		}
		files, err := m.ExtFiles(os.DirFS(mapDir))
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Println(f)
		}
		return nil
	}
	if len(rest) != 3 {
		return usageErrorf("usage: ext -map DIR ROM NAME OUT")
	}
	romPath, name, outPath := rest[0], rest[1], rest[2]

	r, err := loadRom(mapDir, romPath)
	if err != nil {
		return err
	}
	files, err := r.Map.ExtFiles(os.DirFS(mapDir))
	if err != nil {
		return err
	}
	var entry string
	for _, f := range files {
		if filepath.Base(f) == name {
			entry = f
			break
		}
	}
	if entry == "" {
		return usageErrorf("no such ext entry %q", name)
	}
	entryPath := filepath.Join(mapDir, entry)

	switch strings.ToLower(filepath.Ext(entry)) {
	case ".yaml", ".yml", ".json":
		data, err := os.ReadFile(entryPath)
		if err != nil {
			return err
		}
		cs, err := changeset.LoadFile(entry, data)
		if err != nil {
			return err
		}
		if err := changeset.Apply(r, cs, ""); err != nil {
			return err
		}
	case ".asm":
		if err := changeset.ApplyAssembly(r.View(), entryPath); err != nil {
			return err
		}
	case ".ips", ".ipst":
		p, err := readPatch(entryPath)
		if err != nil {
			return err
		}
		out, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer out.Close()
		if _, err := out.Write(r.Bytes()); err != nil {
			return err
		}
		return p.Apply(out)
	default:
		return usageErrorf("ext entry %s has an unrecognized extension", entry)
	}
	return os.WriteFile(outPath, r.Bytes(), 0o644)
}

// takeFlag extracts a single "-name value" pair from anywhere in args,
// returning the value and the remaining positional arguments in order.
func takeFlag(args []string, name string) (string, []string, error) {
	for i, a := range args {
		if a == name {
			if i+1 >= len(args) {
				return "", nil, usageErrorf("%s requires a value", name)
			}
			rest := append(append([]string{}, args[:i]...), args[i+2:]...)
			return args[i+1], rest, nil
		}
	}
	return "", nil, usageErrorf("missing required flag %s", name)
}
