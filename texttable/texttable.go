// Package texttable implements a trie-based byte↔string codec for ROM
// text data, following the Nightcrawler ".tbl" format (spec §4.2,
// grounded on original_source's src/romlib/text.py). Two prefix tries
// — one keyed by input string, one keyed by input byte sequence — are
// walked with a longest-match-first strategy; std/clean/raw variants
// all share the same pair of tries, parameterized by three booleans,
// rather than being three independent tables.
package texttable

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/seehuhn-romtool/romtool/romerr"
)

// Table is a parsed .tbl file: a pair of prefix tries plus the set of
// byte sequences marked as end-of-string terminators.
type Table struct {
	ID       string
	enc      *trieNode // string -> bytes
	dec      *trieNode // bytes -> string
	eos      map[string]bool
	eosOrder []string // codeseqs in AddMapping declaration order
	rank     int      // not set or read anywhere
}

// New returns an empty Table with the given id.
func New(id string) *Table {
	return &Table{
		ID:  id,
		enc: newTrieNode(),
		dec: newTrieNode(),
		eos: make(map[string]bool),
	}
}

// trieNode is a plain pointer-based trie node, one child per possible
// next symbol (byte or rune). Kept deliberately simple: ROM text tables
// have at most a few hundred entries.
type trieNode struct {
	children map[byte]*trieNode
	value    []byte
	hasValue bool
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[byte]*trieNode)}
}

func (n *trieNode) insert(key []byte, value []byte) {
	cur := n
	for _, b := range key {
		child, ok := cur.children[b]
		if !ok {
			child = newTrieNode()
			cur.children[b] = child
		}
		cur = child
	}
	cur.value = value
	cur.hasValue = true
}

// longestMatch walks data from the root and returns the value and
// length of the longest key that is a prefix of data, or ok=false if no
// key in the trie prefixes data at all.
func (n *trieNode) longestMatch(data []byte) (value []byte, length int, ok bool) {
	cur := n
	var bestValue []byte
	bestLen := 0
	found := false
	for i := 0; i <= len(data); i++ {
		if cur.hasValue {
			bestValue = cur.value
			bestLen = i
			found = true
		}
		if i == len(data) {
			break
		}
		child, has := cur.children[data[i]]
		if !has {
			break
		}
		cur = child
	}
	return bestValue, bestLen, found
}

var rawByteRE = regexp.MustCompile(`^\[\$([0-9a-fA-F]{2})\]`)

// Encode converts s into a byte sequence using a left-to-right
// longest-prefix match on the encode trie. A literal escape "[$XX]" in
// the input produces the byte 0xXX directly. An unmatched position
// fails with *romerr.EncodeError.
func (t *Table) Encode(s string) ([]byte, error) {
	var out []byte
	i := 0
	for i < len(s) {
		if m := rawByteRE.FindStringSubmatch(s[i:]); m != nil {
			var b int
			fmt.Sscanf(m[1], "%x", &b)
			out = append(out, byte(b))
			i += len(m[0])
			continue
		}
		value, length, ok := t.enc.longestMatchString(s[i:])
		if !ok {
			return nil, &romerr.EncodeError{Input: s, Pos: i, Msg: "no mapping for input"}
		}
		out = append(out, value...)
		i += length
	}
	return out, nil
}

// Decode converts data into a string using a left-to-right
// longest-prefix match on the decode trie. An unmatched byte b is
// rendered as "[$XX]". stopOnEOS and includeEOS select the variant
// semantics from spec §4.2's table. Decode returns the decoded string
// and the number of input bytes consumed, which may be less than
// len(data) when stopOnEOS truncates at a terminator.
func (t *Table) Decode(data []byte, stopOnEOS, includeEOS bool) (string, int) {
	var sb strings.Builder
	i := 0
	for i < len(data) {
		value, length, ok := t.dec.longestMatch(data[i:])
		var matched []byte
		var text string
		if ok {
			matched = data[i : i+length]
			text = string(value)
		} else {
			matched = data[i : i+1]
			text = fmt.Sprintf("[$%02X]", data[i])
		}
		isEOS := t.eos[string(matched)]
		if includeEOS || !isEOS {
			sb.WriteString(text)
		}
		i += len(matched)
		if stopOnEOS && isEOS {
			break
		}
	}
	return sb.String(), i
}

func (n *trieNode) longestMatchString(s string) ([]byte, int, bool) {
	return n.longestMatch([]byte(s))
}

// DecodeStd decodes with stop_on_eos=true, include_eos=true (the
// "std"/default variant).
func (t *Table) DecodeStd(data []byte) (string, int) { return t.Decode(data, true, true) }

// DecodeClean decodes with stop_on_eos=true, include_eos=false.
func (t *Table) DecodeClean(data []byte) (string, int) { return t.Decode(data, true, false) }

// DecodeRaw decodes with stop_on_eos=false, include_eos=true.
func (t *Table) DecodeRaw(data []byte) (string, int) { return t.Decode(data, false, true) }

// firstEOS returns the first-declared EOS byte sequence (text.py:82's
// self.eos[0]), used by the "clean" encode variant to append a
// terminator when the caller's string didn't already end in one.
func (t *Table) firstEOS() []byte {
	if len(t.eosOrder) == 0 {
		return nil
	}
	return []byte(t.eosOrder[0])
}

// AddMapping registers a byte sequence <-> text mapping. If eos is
// true, codeseq is additionally recorded as an end-of-string marker.
func (t *Table) AddMapping(codeseq []byte, text string, eos bool) {
	t.enc.insert([]byte(text), codeseq)
	t.dec.insert(codeseq, []byte(text))
	if eos && !t.eos[string(codeseq)] {
		t.eos[string(codeseq)] = true
		t.eosOrder = append(t.eosOrder, string(codeseq))
	}
}
