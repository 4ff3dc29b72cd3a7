package expression

import (
	"fmt"
	"math"
	"strconv"

	"github.com/expr-lang/expr/ast"
)

// Binding strength of a rendered fragment, used to decide where parentheses
// are needed.
const (
	precAdd = iota + 1
	precMul
	precUnary
	precPow
	precAtom
)

// Tex renders the expression as LaTeX with every variable replaced by its
// bound value. The result is not wrapped in math delimiters.
func (e *Expression) Tex(vars map[string]float64) (string, error) {
	s, _, err := tex(e.root, vars)
	return s, err
}

func tex(n ast.Node, vars map[string]float64) (string, int, error) {
	switch n := n.(type) {
	case *ast.IntegerNode:
		s, p := number(float64(n.Value))
		return s, p, nil
	case *ast.FloatNode:
		s, p := number(n.Value)
		return s, p, nil
	case *ast.IdentifierNode:
		v, ok := vars[n.Value]
		if !ok {
			return "", 0, fmt.Errorf("%w: %s", ErrUnboundVariable, n.Value)
		}
		s, p := number(v)
		return s, p, nil
	case *ast.UnaryNode:
		s, p, err := tex(n.Node, vars)
		if err != nil {
			return "", 0, err
		}
		if n.Operator == "+" {
			return s, p, nil
		}
		return "-" + wrapIf(p < precMul || p == precUnary, s), precUnary, nil
	case *ast.BinaryNode:
		return texBinary(n, vars)
	case *ast.CallNode:
		return texCall(n.Callee.(*ast.IdentifierNode).Value, n.Arguments, vars)
	case *ast.BuiltinNode:
		return texCall(n.Name, n.Arguments, vars)
	}
	return "", 0, &UnsupportedError{Construct: nodeKind(n)}
}

func texBinary(n *ast.BinaryNode, vars map[string]float64) (string, int, error) {
	l, lp, err := tex(n.Left, vars)
	if err != nil {
		return "", 0, err
	}
	r, rp, err := tex(n.Right, vars)
	if err != nil {
		return "", 0, err
	}

	switch n.Operator {
	case "+":
		return l + "+" + wrapIf(rp == precUnary, r), precAdd, nil
	case "-":
		return l + "-" + wrapIf(rp <= precAdd || rp == precUnary, r), precAdd, nil
	case "*":
		return wrapIf(lp < precMul, l) + `\cdot ` + wrapIf(rp < precMul || rp == precUnary, r), precMul, nil
	case "/":
		return `\frac{` + l + `}{` + r + `}`, precMul, nil
	case "%":
		return wrapIf(lp < precMul, l) + `\bmod ` + wrapIf(rp <= precMul || rp == precUnary, r), precMul, nil
	case "^", "**":
		return `{` + wrapIf(lp < precAtom, l) + `}^{` + r + `}`, precPow, nil
	}
	return "", 0, &UnsupportedError{Construct: "operator " + n.Operator}
}

func texCall(name string, args []ast.Node, vars map[string]float64) (string, int, error) {
	fn := functions[name]
	parts := make([]string, len(args))
	for i, a := range args {
		s, p, err := tex(a, vars)
		if err != nil {
			return "", 0, err
		}
		if name == "pow" && i == 0 {
			s = wrapIf(p < precAtom, s)
		}
		parts[i] = s
	}
	if name == "pow" {
		return fn.tex(parts), precPow, nil
	}
	return fn.tex(parts), precAtom, nil
}

// Format renders a number the way it is substituted into question text:
// the shortest decimal that round-trips, without exponent for everyday
// magnitudes and never as "-0".
func Format(v float64) string {
	if v == 0 {
		return "0"
	}
	if abs := math.Abs(v); abs >= 1e21 || abs < 1e-6 {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func number(v float64) (string, int) {
	if v < 0 {
		return Format(v), precUnary
	}
	return Format(v), precAtom
}

func wrap(s string) string {
	return `\left(` + s + `\right)`
}

func wrapIf(cond bool, s string) string {
	if cond {
		return wrap(s)
	}
	return s
}
