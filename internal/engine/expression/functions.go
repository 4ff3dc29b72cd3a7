package expression

import (
	"math"
	"strings"
)

type function struct {
	// arity is the exact argument count; variadic functions use -1 and
	// require at least one argument.
	arity int
	eval  func(args []float64) float64
	tex   func(args []string) string
}

func (f function) accepts(n int) bool {
	if f.arity < 0 {
		return n >= 1
	}
	return n == f.arity
}

func unary(fn func(float64) float64, tex func(string) string) function {
	return function{
		arity: 1,
		eval:  func(a []float64) float64 { return fn(a[0]) },
		tex:   func(a []string) string { return tex(a[0]) },
	}
}

func operatorName(name string) func(string) string {
	return func(arg string) string {
		return `\` + name + wrap(arg)
	}
}

var functions = map[string]function{
	"abs":   unary(math.Abs, func(a string) string { return `\left|` + a + `\right|` }),
	"sqrt":  unary(math.Sqrt, func(a string) string { return `\sqrt{` + a + `}` }),
	"cbrt":  unary(math.Cbrt, func(a string) string { return `\sqrt[3]{` + a + `}` }),
	"floor": unary(math.Floor, func(a string) string { return `\left\lfloor ` + a + `\right\rfloor` }),
	"ceil":  unary(math.Ceil, func(a string) string { return `\left\lceil ` + a + `\right\rceil` }),
	"round": unary(math.Round, func(a string) string { return `\mathrm{round}` + wrap(a) }),
	"exp":   unary(math.Exp, func(a string) string { return `e^{` + a + `}` }),
	"log":   unary(math.Log, operatorName("ln")),
	"log10": unary(math.Log10, func(a string) string { return `\log_{10}` + wrap(a) }),
	"sin":   unary(math.Sin, operatorName("sin")),
	"cos":   unary(math.Cos, operatorName("cos")),
	"tan":   unary(math.Tan, operatorName("tan")),
	"min": {
		arity: -1,
		eval:  func(a []float64) float64 { return reduce(a, math.Min) },
		tex:   func(a []string) string { return `\min` + wrap(strings.Join(a, ",")) },
	},
	"max": {
		arity: -1,
		eval:  func(a []float64) float64 { return reduce(a, math.Max) },
		tex:   func(a []string) string { return `\max` + wrap(strings.Join(a, ",")) },
	},
	"pow": {
		arity: 2,
		eval:  func(a []float64) float64 { return math.Pow(a[0], a[1]) },
		tex:   func(a []string) string { return `{` + a[0] + `}^{` + a[1] + `}` },
	},
}

func reduce(values []float64, fn func(a, b float64) float64) float64 {
	acc := values[0]
	for _, v := range values[1:] {
		acc = fn(acc, v)
	}
	return acc
}
