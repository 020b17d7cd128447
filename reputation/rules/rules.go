// Package rules evaluates boolean expression trees over flat lookup records
// such as GeoIP results.
//
// A tree is built from four node kinds: All (conjunction), Any (disjunction),
// Not (negation) and Compare (a leaf comparing one field against a value).
// Trees are usually decoded from TOML with Parse or Load.
package rules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gobwas/glob"
)

// Supported comparison operators.
const (
	OpEq       = "eq"
	OpNe       = "ne"
	OpLt       = "lt"
	OpLe       = "le"
	OpGt       = "gt"
	OpGe       = "ge"
	OpContains = "contains"
	OpGlob     = "glob"
	OpIn       = "in"
)

var (
	// ErrInvalidRule is returned for nodes that are neither a comparison nor a
	// single group.
	ErrInvalidRule = errors.New("invalid rule")
	// ErrUnknownOp is returned for operators outside the supported set.
	ErrUnknownOp = errors.New("unknown rule operator")
)

// Node is one vertex of an expression tree.
type Node interface {
	Match(fields map[string]any) bool
}

// All matches when every child matches. An empty All matches.
type All []Node

// Match implements Node.
func (a All) Match(fields map[string]any) bool {
	for _, n := range a {
		if !n.Match(fields) {
			return false
		}
	}
	return true
}

// Any matches when at least one child matches. An empty Any does not match.
type Any []Node

// Match implements Node.
func (a Any) Match(fields map[string]any) bool {
	for _, n := range a {
		if n.Match(fields) {
			return true
		}
	}
	return false
}

// Not inverts its child.
type Not struct {
	Node Node
}

// Match implements Node.
func (n Not) Match(fields map[string]any) bool {
	if n.Node == nil {
		return false
	}
	return !n.Node.Match(fields)
}

// Compare tests a single field. A missing field never matches, for any
// operator including ne.
type Compare struct {
	Field string
	Op    string
	Value any

	pattern glob.Glob
}

// NewCompare validates op and precompiles glob patterns.
func NewCompare(field, op string, value any) (Compare, error) {
	c := Compare{Field: field, Op: strings.ToLower(op), Value: value}
	if field == "" {
		return Compare{}, fmt.Errorf("%w: empty field", ErrInvalidRule)
	}
	switch c.Op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpContains:
	case OpGlob:
		g, err := glob.Compile(strings.ToLower(fmt.Sprint(value)))
		if err != nil {
			return Compare{}, fmt.Errorf("%w: glob %q: %v", ErrInvalidRule, value, err)
		}
		c.pattern = g
	case OpIn:
		if _, ok := listOf(value); !ok {
			return Compare{}, fmt.Errorf("%w: in needs a list value", ErrInvalidRule)
		}
	default:
		return Compare{}, fmt.Errorf("%w: %q", ErrUnknownOp, op)
	}
	return c, nil
}

// Match implements Node.
func (c Compare) Match(fields map[string]any) bool {
	got, ok := fields[c.Field]
	if !ok || got == nil {
		return false
	}

	switch c.Op {
	case OpEq:
		return equal(got, c.Value)
	case OpNe:
		return !equal(got, c.Value)
	case OpLt, OpLe, OpGt, OpGe:
		return ordered(c.Op, got, c.Value)
	case OpContains:
		return strings.Contains(lower(got), lower(c.Value))
	case OpGlob:
		g := c.pattern
		if g == nil {
			var err error
			if g, err = glob.Compile(lower(c.Value)); err != nil {
				return false
			}
		}
		return g.Match(lower(got))
	case OpIn:
		list, _ := listOf(c.Value)
		for _, v := range list {
			if equal(got, v) {
				return true
			}
		}
	}
	return false
}

func equal(a, b any) bool {
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			return x == y
		}
	}
	return lower(a) == lower(b)
}

func ordered(op string, a, b any) bool {
	cmp := 0
	x, xok := number(a)
	y, yok := number(b)
	if xok && yok {
		switch {
		case x < y:
			cmp = -1
		case x > y:
			cmp = 1
		}
	} else {
		cmp = strings.Compare(lower(a), lower(b))
	}

	switch op {
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	default:
		return cmp >= 0
	}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func lower(v any) string {
	if s, ok := v.(string); ok {
		return strings.ToLower(s)
	}
	return strings.ToLower(fmt.Sprint(v))
}

func listOf(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}
