package symbolic

import (
	"math"

	"github.com/pkg/errors"
)

// Vector selects one of the positional argument vectors of a compiled function.
type Vector uint8

const (
	States Vector = iota
	Inputs
	Params
	Time
)

// Slot is the position of a symbol in the calling convention.
type Slot struct {
	Vec   Vector
	Index int
}

// Frame holds the arguments a compiled expression reads from.
type Frame struct {
	X, U, P []float64
	T       float64
}

// Fn is a compiled expression.
type Fn func(f *Frame) float64

type function struct {
	arity int
	eval  func(args []float64) float64
}

var functions = map[string]function{
	"sin":   unary(math.Sin),
	"cos":   unary(math.Cos),
	"tan":   unary(math.Tan),
	"exp":   unary(math.Exp),
	"log":   unary(math.Log),
	"sqrt":  unary(math.Sqrt),
	"abs":   unary(math.Abs),
	"sinh":  unary(math.Sinh),
	"cosh":  unary(math.Cosh),
	"tanh":  unary(math.Tanh),
	"asin":  unary(math.Asin),
	"acos":  unary(math.Acos),
	"atan":  unary(math.Atan),
	"atan2": binary(math.Atan2),
	"pow":   binary(math.Pow),
	"min":   binary(math.Min),
	"max":   binary(math.Max),
	"mod":   binary(math.Mod),
}

func unary(fn func(float64) float64) function {
	return function{arity: 1, eval: func(a []float64) float64 { return fn(a[0]) }}
}

func binary(fn func(float64, float64) float64) function {
	return function{arity: 2, eval: func(a []float64) float64 { return fn(a[0], a[1]) }}
}

// IsFunction reports whether name is a known elementary function.
func IsFunction(name string) bool {
	_, ok := functions[name]
	return ok
}

// Compile turns e into a closure. lookup maps every symbol of e to its slot;
// the independent variable always reads Frame.T. Derivative markers cannot be
// compiled.
func Compile(e Expr, lookup func(Sym) (Slot, bool)) (Fn, error) {
	switch v := e.(type) {
	case Num:
		c := v.Value
		return func(*Frame) float64 { return c }, nil
	case Sym:
		if v.Kind == Independent {
			return func(f *Frame) float64 { return f.T }, nil
		}
		slot, ok := lookup(v)
		if !ok {
			return nil, errors.Errorf("symbolic: no slot for %s %q", v.Kind, v.Name)
		}
		i := slot.Index
		switch slot.Vec {
		case States:
			return func(f *Frame) float64 { return f.X[i] }, nil
		case Inputs:
			return func(f *Frame) float64 { return f.U[i] }, nil
		case Params:
			return func(f *Frame) float64 { return f.P[i] }, nil
		case Time:
			return func(f *Frame) float64 { return f.T }, nil
		}
		return nil, errors.Errorf("symbolic: invalid slot vector %d for %q", slot.Vec, v.Name)
	case Add:
		fns, err := compileAll(v.Terms, lookup)
		if err != nil {
			return nil, err
		}
		return func(f *Frame) float64 {
			sum := 0.0
			for _, fn := range fns {
				sum += fn(f)
			}
			return sum
		}, nil
	case Mul:
		fns, err := compileAll(v.Factors, lookup)
		if err != nil {
			return nil, err
		}
		return func(f *Frame) float64 {
			prod := 1.0
			for _, fn := range fns {
				prod *= fn(f)
			}
			return prod
		}, nil
	case Pow:
		base, err := Compile(v.Base, lookup)
		if err != nil {
			return nil, err
		}
		if n, ok := v.Exp.(Num); ok && n.Value == -1 {
			return func(f *Frame) float64 { return 1 / base(f) }, nil
		}
		exp, err := Compile(v.Exp, lookup)
		if err != nil {
			return nil, err
		}
		return func(f *Frame) float64 { return math.Pow(base(f), exp(f)) }, nil
	case Call:
		def, ok := functions[v.Func]
		if !ok {
			return nil, errors.Errorf("symbolic: unknown function %q", v.Func)
		}
		if def.arity != len(v.Args) {
			return nil, errors.Errorf("symbolic: %s takes %d arguments, got %d", v.Func, def.arity, len(v.Args))
		}
		fns, err := compileAll(v.Args, lookup)
		if err != nil {
			return nil, err
		}
		return func(f *Frame) float64 {
			args := make([]float64, len(fns))
			for i, fn := range fns {
				args[i] = fn(f)
			}
			return def.eval(args)
		}, nil
	case Deriv:
		return nil, errors.Errorf("symbolic: cannot compile derivative marker %s", v)
	}
	return nil, errors.Errorf("symbolic: cannot compile %T", e)
}

func compileAll(exprs []Expr, lookup func(Sym) (Slot, bool)) ([]Fn, error) {
	fns := make([]Fn, len(exprs))
	for i, e := range exprs {
		fn, err := Compile(e, lookup)
		if err != nil {
			return nil, err
		}
		fns[i] = fn
	}
	return fns, nil
}

// Eval evaluates e with symbol values taken from env.
func Eval(e Expr, env map[Sym]float64, t float64) (float64, error) {
	var vals []float64
	index := make(map[Sym]int)
	fn, err := Compile(e, func(s Sym) (Slot, bool) {
		v, ok := env[s]
		if !ok {
			return Slot{}, false
		}
		if i, seen := index[s]; seen {
			return Slot{Vec: Params, Index: i}, true
		}
		index[s] = len(vals)
		vals = append(vals, v)
		return Slot{Vec: Params, Index: len(vals) - 1}, true
	})
	if err != nil {
		return 0, err
	}
	return fn(&Frame{P: vals, T: t}), nil
}
