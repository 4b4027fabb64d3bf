// Package expr implements the tiny restricted arithmetic expression
// language used for field offset/size specifications (spec §4.3, §9
// "restricted arithmetic"). The grammar is deliberately small: integer
// literals, identifiers, parentheses, and + - * / // %. Anything wider
// (function calls, comparisons, assignment) is a syntax error.
//
// The tokenizer follows the classic hand-rolled enum-of-TokenType shape
// used throughout the example pack's compiler front ends (e.g.
// xyproto-flapc's lexer.go), scaled down to this grammar's six
// operators and two atom kinds.
package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/seehuhn-romtool/romtool/romerr"
)

// Context resolves identifiers appearing in an expression: sibling
// field ids within the enclosing structure, "root", and any names a
// caller's Field evaluation wants to expose.
type Context interface {
	Lookup(name string) (int64, bool)
}

// MapContext is the common case: a plain map of identifier to value.
type MapContext map[string]int64

func (c MapContext) Lookup(name string) (int64, bool) {
	v, ok := c[name]
	return v, ok
}

// Expr is a precompiled expression. If it was a bare integer literal,
// Eval returns the cached value without touching ctx at all — the
// common case spec §4.3 calls out as "cheap via pre-parse".
type Expr struct {
	static   bool
	value    int64
	root     node
	original string
}

// Parse compiles s into an Expr. s may be a bare integer (decimal or
// 0x-prefixed hex), or a restricted arithmetic expression over
// identifiers.
func Parse(s string) (*Expr, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 0, 64); err == nil {
		return &Expr{static: true, value: n, original: s}, nil
	}
	toks, err := tokenize(s)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("expr: unexpected trailing input in %q", s)
	}
	return &Expr{root: root, original: s}, nil
}

// MustParse is like Parse but panics on error; useful for literals
// known at compile time.
func MustParse(s string) *Expr {
	e, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return e
}

// String returns the original source text.
func (e *Expr) String() string { return e.original }

// IsStatic reports whether the expression is a bare integer literal.
func (e *Expr) IsStatic() bool { return e.static }

// Eval evaluates the expression against ctx. For static expressions
// ctx is never consulted.
func (e *Expr) Eval(ctx Context) (int64, error) {
	if e.static {
		return e.value, nil
	}
	return e.root.eval(ctx)
}

// ---- AST ----

type node interface {
	eval(ctx Context) (int64, error)
}

type litNode int64

func (n litNode) eval(Context) (int64, error) { return int64(n), nil }

type identNode string

func (n identNode) eval(ctx Context) (int64, error) {
	v, ok := ctx.Lookup(string(n))
	if !ok {
		return 0, &romerr.MapError{Msg: fmt.Sprintf("unknown identifier %q in expression", string(n))}
	}
	return v, nil
}

type binNode struct {
	op   byte // '+','-','*','/','%', or 'F' for floor-div "//"
	l, r node
}

func (n binNode) eval(ctx Context) (int64, error) {
	l, err := n.l.eval(ctx)
	if err != nil {
		return 0, err
	}
	r, err := n.r.eval(ctx)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	case '/', 'F':
		if r == 0 {
			return 0, &romerr.MapError{Msg: "division by zero in expression"}
		}
		q := l / r
		if n.op == 'F' && (l%r != 0) && ((l < 0) != (r < 0)) {
			q--
		}
		return q, nil
	case '%':
		if r == 0 {
			return 0, &romerr.MapError{Msg: "modulo by zero in expression"}
		}
		m := l % r
		if m != 0 && ((m < 0) != (r < 0)) {
			m += r
		}
		return m, nil
	}
	panic("unreachable")
}

type unaryNode struct {
	neg bool
	n   node
}

func (n unaryNode) eval(ctx Context) (int64, error) {
	v, err := n.n.eval(ctx)
	if err != nil {
		return 0, err
	}
	if n.neg {
		return -v, nil
	}
	return v, nil
}
