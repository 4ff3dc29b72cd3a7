// Package expression parses and evaluates the bounded arithmetic language used
// inside numeric template tags and numeric answer keys.
//
// Syntax is parsed by expr-lang/expr; only a whitelist of node kinds is
// accepted: number literals, identifiers, unary +/-, the binary operators
// + - * / % ^ ** and calls to a fixed set of math functions. Evaluation is
// done here over float64 so the result never depends on integer semantics.
package expression

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/conf"
	"github.com/expr-lang/expr/parser"
)

const (
	// DefaultMaxLength bounds the source length of an expression.
	DefaultMaxLength = 256

	maxNodes = 256
	maxDepth = 32
)

var (
	ErrEmpty           = errors.New("expression is empty")
	ErrTooLong         = errors.New("expression is too long")
	ErrTooDeep         = errors.New("expression is nested too deeply")
	ErrDivisionByZero  = errors.New("division by zero")
	ErrNotFinite       = errors.New("result is not a finite number")
	ErrUnboundVariable = errors.New("unbound variable")
)

// SyntaxError reports source that the parser rejected.
type SyntaxError struct {
	Source string
	Err    error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid expression %q: %v", e.Source, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// UnsupportedError reports a construct outside the arithmetic whitelist.
type UnsupportedError struct {
	Construct string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported construct in expression: %s", e.Construct)
}

// Expression is a parsed, whitelisted arithmetic expression. It is immutable
// and safe for concurrent use.
type Expression struct {
	src  string
	root ast.Node
	vars []string
}

// Parse parses src and checks it against the arithmetic whitelist. A
// maxLength of zero or less selects DefaultMaxLength.
func Parse(src string, maxLength int) (*Expression, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, ErrEmpty
	}
	if len(src) > maxLength {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrTooLong, len(src), maxLength)
	}

	cfg := conf.CreateNew()
	cfg.MaxNodes = maxNodes
	tree, err := parser.ParseWithConfig(src, cfg)
	if err != nil {
		return nil, &SyntaxError{Source: src, Err: err}
	}

	seen := make(map[string]struct{})
	if err := check(tree.Node, 0, seen); err != nil {
		return nil, err
	}

	vars := make([]string, 0, len(seen))
	for name := range seen {
		vars = append(vars, name)
	}
	slices.Sort(vars)

	return &Expression{src: src, root: tree.Node, vars: vars}, nil
}

// String returns the trimmed source text.
func (e *Expression) String() string { return e.src }

// Variables returns the sorted, de-duplicated free variables.
func (e *Expression) Variables() []string {
	return slices.Clone(e.vars)
}

// Eval evaluates the expression with the given bindings.
func (e *Expression) Eval(vars map[string]float64) (float64, error) {
	v, err := eval(e.root, vars)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNotFinite
	}
	return v, nil
}

func check(n ast.Node, depth int, vars map[string]struct{}) error {
	if depth > maxDepth {
		return ErrTooDeep
	}
	switch n := n.(type) {
	case *ast.IntegerNode, *ast.FloatNode:
		return nil
	case *ast.IdentifierNode:
		vars[n.Value] = struct{}{}
		return nil
	case *ast.UnaryNode:
		if n.Operator != "-" && n.Operator != "+" {
			return &UnsupportedError{Construct: "operator " + n.Operator}
		}
		return check(n.Node, depth+1, vars)
	case *ast.BinaryNode:
		switch n.Operator {
		case "+", "-", "*", "/", "%", "^", "**":
		default:
			return &UnsupportedError{Construct: "operator " + n.Operator}
		}
		if err := check(n.Left, depth+1, vars); err != nil {
			return err
		}
		return check(n.Right, depth+1, vars)
	case *ast.CallNode:
		id, ok := n.Callee.(*ast.IdentifierNode)
		if !ok {
			return &UnsupportedError{Construct: "member call"}
		}
		return checkCall(id.Value, n.Arguments, depth, vars)
	case *ast.BuiltinNode:
		return checkCall(n.Name, n.Arguments, depth, vars)
	}
	return &UnsupportedError{Construct: nodeKind(n)}
}

func checkCall(name string, args []ast.Node, depth int, vars map[string]struct{}) error {
	fn, ok := functions[name]
	if !ok {
		return &UnsupportedError{Construct: "function " + name}
	}
	if !fn.accepts(len(args)) {
		return fmt.Errorf("function %s: unexpected number of arguments (%d)", name, len(args))
	}
	for _, a := range args {
		if err := check(a, depth+1, vars); err != nil {
			return err
		}
	}
	return nil
}

func eval(n ast.Node, vars map[string]float64) (float64, error) {
	switch n := n.(type) {
	case *ast.IntegerNode:
		return float64(n.Value), nil
	case *ast.FloatNode:
		return n.Value, nil
	case *ast.IdentifierNode:
		v, ok := vars[n.Value]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnboundVariable, n.Value)
		}
		return v, nil
	case *ast.UnaryNode:
		v, err := eval(n.Node, vars)
		if err != nil {
			return 0, err
		}
		if n.Operator == "-" {
			return -v, nil
		}
		return v, nil
	case *ast.BinaryNode:
		l, err := eval(n.Left, vars)
		if err != nil {
			return 0, err
		}
		r, err := eval(n.Right, vars)
		if err != nil {
			return 0, err
		}
		return binary(n.Operator, l, r)
	case *ast.CallNode:
		return call(n.Callee.(*ast.IdentifierNode).Value, n.Arguments, vars)
	case *ast.BuiltinNode:
		return call(n.Name, n.Arguments, vars)
	}
	return 0, &UnsupportedError{Construct: nodeKind(n)}
}

func binary(op string, l, r float64) (float64, error) {
	switch op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return 0, ErrDivisionByZero
		}
		return l / r, nil
	case "%":
		if r == 0 {
			return 0, ErrDivisionByZero
		}
		return math.Mod(l, r), nil
	case "^", "**":
		return math.Pow(l, r), nil
	}
	return 0, &UnsupportedError{Construct: "operator " + op}
}

func call(name string, args []ast.Node, vars map[string]float64) (float64, error) {
	fn := functions[name]
	values := make([]float64, len(args))
	for i, a := range args {
		v, err := eval(a, vars)
		if err != nil {
			return 0, err
		}
		values[i] = v
	}
	return fn.eval(values), nil
}

func nodeKind(n ast.Node) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", n), "*ast.")
}
