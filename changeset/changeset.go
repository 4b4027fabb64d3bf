// Package changeset implements the nested-mapping edit traversal of
// spec §4.7 "Changeset application": a changeset is a tree whose
// intermediate keys name sets, tables, and indices, and whose leaves
// are field assignments. Traversal starts at a Rom and, at each step,
// asks the current node to resolve the next key; the last key on a
// branch is written with Set instead of resolved further.
package changeset

import (
	"github.com/seehuhn-romtool/romtool/romerr"
)

// Locator is satisfied by every node a changeset path can pass through:
// Rom (set/table names), Table (integer index or locate(name)),
// EntityList (integer index or entity name), Entity (column id/name),
// and Structure (field id/name).
type Locator interface {
	Lookup(key string) (any, error)
}

// Setter is satisfied by every node a changeset path can terminate on:
// a leaf assignment calls Set(key, value) on the node one level above
// the value, rather than looking the key up first.
type Setter interface {
	Set(key string, value any) error
}

// Apply walks changes over root, writing every leaf value to the node
// that owns it (spec §4.7: "Traversal starts at the Rom and at each
// step calls the parent's lookup(key); ... A leaf setattr writes the
// value"). path is the dotted locator accumulated so far, used to
// annotate errors; callers applying a whole changeset file pass "".
func Apply(root any, changes map[string]any, path string) error {
	for key, value := range changes {
		sub, isNested := value.(map[string]any)
		if !isNested {
			s, ok := root.(Setter)
			if !ok {
				return &romerr.ChangesetError{Path: childPath(path, key), Msg: "cannot set a value here"}
			}
			if err := s.Set(key, value); err != nil {
				return annotate(err, childPath(path, key))
			}
			continue
		}

		l, ok := root.(Locator)
		if !ok {
			return &romerr.ChangesetError{Path: childPath(path, key), Msg: "cannot descend further here"}
		}
		next, err := l.Lookup(key)
		if err != nil {
			return annotate(err, childPath(path, key))
		}
		if err := Apply(next, sub, childPath(path, key)); err != nil {
			return err
		}
	}
	return nil
}

func childPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// annotate wraps err as a ChangesetError carrying path, preserving an
// existing ChangesetError's own (deeper) path by prefixing it instead
// of discarding it.
func annotate(err error, path string) error {
	if ce, ok := err.(*romerr.ChangesetError); ok {
		return ce.WithPathPrefix(path)
	}
	return &romerr.ChangesetError{Path: path, Msg: err.Error(), Err: err}
}
