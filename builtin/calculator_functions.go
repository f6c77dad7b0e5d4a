package builtin

import (
	"errors"
	"fmt"
	"math"
)

var (
	errUnsafeExpression = errors.New("unsafe_expression")
	errDivisionByZero   = errors.New("division_by_zero")
)

// safeConstants mirrors calculator.py's SAFE_CONSTANTS.
var safeConstants = map[string]float64{
	"pi":  math.Pi,
	"e":   math.E,
	"tau": math.Pi * 2,
	"inf": math.Inf(1),
}

type mathFunc func(args []float64) (float64, error)

func unary(f func(float64) float64) mathFunc {
	return func(args []float64) (float64, error) {
		if len(args) != 1 {
			return 0, fmt.Errorf("expects exactly 1 argument, got %d", len(args))
		}
		return f(args[0]), nil
	}
}

// safeFunctions mirrors calculator.py's SAFE_FUNCTIONS.
var safeFunctions = map[string]mathFunc{
	"abs":   unary(math.Abs),
	"round": unary(math.Round),
	"min": func(args []float64) (float64, error) {
		if len(args) == 0 {
			return 0, fmt.Errorf("min expects at least 1 argument")
		}
		m := args[0]
		for _, a := range args[1:] {
			if a < m {
				m = a
			}
		}
		return m, nil
	},
	"max": func(args []float64) (float64, error) {
		if len(args) == 0 {
			return 0, fmt.Errorf("max expects at least 1 argument")
		}
		m := args[0]
		for _, a := range args[1:] {
			if a > m {
				m = a
			}
		}
		return m, nil
	},
	"sum": func(args []float64) (float64, error) {
		var s float64
		for _, a := range args {
			s += a
		}
		return s, nil
	},
	"sqrt":    unary(math.Sqrt),
	"sin":     unary(math.Sin),
	"cos":     unary(math.Cos),
	"tan":     unary(math.Tan),
	"asin":    unary(math.Asin),
	"acos":    unary(math.Acos),
	"atan":    unary(math.Atan),
	"sinh":    unary(math.Sinh),
	"cosh":    unary(math.Cosh),
	"tanh":    unary(math.Tanh),
	"log": func(args []float64) (float64, error) {
		switch len(args) {
		case 1:
			return math.Log(args[0]), nil
		case 2:
			return math.Log(args[0]) / math.Log(args[1]), nil
		default:
			return 0, fmt.Errorf("log expects 1 or 2 arguments, got %d", len(args))
		}
	},
	"log10": unary(math.Log10),
	"log2":  unary(math.Log2),
	"exp":   unary(math.Exp),
	"pow": func(args []float64) (float64, error) {
		if len(args) != 2 {
			return 0, fmt.Errorf("pow expects exactly 2 arguments, got %d", len(args))
		}
		return power(args[0], args[1]), nil
	},
	"ceil":  unary(math.Ceil),
	"floor": unary(math.Floor),
	"factorial": func(args []float64) (float64, error) {
		if len(args) != 1 {
			return 0, fmt.Errorf("factorial expects exactly 1 argument, got %d", len(args))
		}
		n := args[0]
		if n < 0 || n != math.Trunc(n) {
			return 0, fmt.Errorf("factorial requires a non-negative integer")
		}
		result := 1.0
		for i := 2.0; i <= n; i++ {
			result *= i
		}
		return result, nil
	},
	"gcd": func(args []float64) (float64, error) {
		if len(args) != 2 {
			return 0, fmt.Errorf("gcd expects exactly 2 arguments, got %d", len(args))
		}
		a, b := int64(args[0]), int64(args[1])
		for b != 0 {
			a, b = b, a%b
		}
		if a < 0 {
			a = -a
		}
		return float64(a), nil
	},
	"degrees": unary(func(r float64) float64 { return r * 180 / math.Pi }),
	"radians": unary(func(d float64) float64 { return d * math.Pi / 180 }),
}

func floorDiv(l, r float64) float64 { return math.Floor(l / r) }

// pyMod replicates Python's `%` sign convention (result takes the sign
// of the divisor), which differs from Go's math.Mod.
func pyMod(l, r float64) float64 {
	m := math.Mod(l, r)
	if m != 0 && (m < 0) != (r < 0) {
		m += r
	}
	return m
}

func power(base, exp float64) float64 { return math.Pow(base, exp) }
