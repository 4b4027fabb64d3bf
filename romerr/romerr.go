// Package romerr defines the error taxonomy shared by every romtool
// package. Each failure family is a distinct struct type carrying a
// message and, where one is meaningful, a locator; all of them implement
// error so callers can use errors.As. MapError and ChangesetError also
// implement Unwrap, exposing a wrapped cause to errors.Is/errors.As.
package romerr

import "fmt"

// MapError indicates that a ROM map specification is malformed or
// internally inconsistent: an unknown field type, a duplicate id, a
// dangling index reference.
type MapError struct {
	Where string // e.g. "structs/monster.tsv:12" or a type name
	Msg   string
	Err   error
}

func (e *MapError) Error() string {
	if e.Where != "" {
		return fmt.Sprintf("map error in %s: %s", e.Where, e.Msg)
	}
	return "map error: " + e.Msg
}

func (e *MapError) Unwrap() error { return e.Err }

// NewMapError builds a MapError without a wrapped cause.
func NewMapError(where, msg string) *MapError {
	return &MapError{Where: where, Msg: msg}
}

// HeaderError indicates that a ROM image failed format-specific header
// validation. It is a RomFormatError.
type HeaderError struct {
	Format string // "iNES", "SNES", "GBA", ...
	Msg    string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("%s header: %s", e.Format, e.Msg)
}

// RomFormatError is satisfied by HeaderError and future format errors.
type RomFormatError interface {
	error
	romFormatError()
}

func (e *HeaderError) romFormatError() {}

// RomDetectionError indicates that no hash database entry matched a
// ROM's SHA-1 digest.
type RomDetectionError struct {
	SHA1 string
}

func (e *RomDetectionError) Error() string {
	return fmt.Sprintf("no map found for ROM with sha1 %s", e.SHA1)
}

// ChangesetError indicates a changeset path failed to resolve, a field
// refused a value, or assembly patching failed. Path carries the dotted
// path accumulated as the error propagates up the traversal.
type ChangesetError struct {
	Path string
	Msg  string
	Err  error
}

func (e *ChangesetError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("changeset error at %s: %s", e.Path, e.Msg)
	}
	return "changeset error: " + e.Msg
}

func (e *ChangesetError) Unwrap() error { return e.Err }

// WithPathPrefix returns a copy of e with prefix prepended to its path,
// building the dotted locator as the error propagates up a traversal.
func (e *ChangesetError) WithPathPrefix(prefix string) *ChangesetError {
	path := prefix
	if e.Path != "" {
		path = prefix + "." + e.Path
	}
	return &ChangesetError{Path: path, Msg: e.Msg, Err: e.Err}
}

// PatchFormatError indicates an IPS/IPST stream is missing its
// header/footer or has a malformed record.
type PatchFormatError struct {
	Msg string
}

func (e *PatchFormatError) Error() string { return "patch format error: " + e.Msg }

// PatchValueError indicates a patch is structurally valid but
// semantically contradictory: a bogo-address block with no bogobyte, or
// an RLE value outside 0..255.
type PatchValueError struct {
	Msg string
}

func (e *PatchValueError) Error() string { return "patch value error: " + e.Msg }

// EncodeError indicates a text table could not encode a string.
type EncodeError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode error at position %d of %q: %s", e.Pos, e.Input, e.Msg)
}

// DecodeError indicates a text table could not decode a byte sequence.
type DecodeError struct {
	Pos int
	Msg string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error at byte %d: %s", e.Pos, e.Msg)
}

// OutOfRangeError indicates a BitView slice or index fell outside its
// parent's bounds.
type OutOfRangeError struct {
	Msg string
}

func (e *OutOfRangeError) Error() string { return "out of range: " + e.Msg }

// UnalignedError indicates a byte-position operation was attempted on a
// BitView that is not byte-aligned.
type UnalignedError struct {
	Msg string
}

func (e *UnalignedError) Error() string { return "unaligned: " + e.Msg }

// NotFoundError indicates an entity/table/field lookup found nothing
// matching the given key.
type NotFoundError struct {
	Kind string // "table", "entity", "field", ...
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

// DuplicateError indicates a definition or lookup key collided with an
// existing one.
type DuplicateError struct {
	Kind string
	Key  string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s: %s", e.Kind, e.Key)
}

// WithFieldPrefix wraps err with the id of the field whose Read/Write/
// expression evaluation produced it, so a failure three layers down a
// nested structure still names the field that actually failed.
func WithFieldPrefix(fieldID string, err error) error {
	if err == nil {
		return nil
	}
	return &MapError{Where: fieldID, Msg: err.Error(), Err: err}
}
