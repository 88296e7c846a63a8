package symbolic

import (
	"strconv"
	"strings"
)

// Kind classifies a symbol.
type Kind uint8

const (
	// Variable is a time-varying quantity (a state).
	Variable Kind = iota
	// Parameter is a quantity that does not evolve through the equations:
	// either a constant or an externally driven input.
	Parameter
	// Independent is the independent variable t.
	Independent
)

func (k Kind) String() string {
	switch k {
	case Variable:
		return "variable"
	case Parameter:
		return "parameter"
	case Independent:
		return "independent"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// T is the independent variable.
var T = Sym{Name: "t", Kind: Independent}

// Expr is an immutable expression tree node.
type Expr interface {
	String() string
	precedence() int
}

const (
	precSum = iota + 1
	precProduct
	precPower
	precAtom
)

// Num is a numeric constant.
type Num struct {
	Value float64
}

// Sym is a named symbol. Two symbols are the same when both name and kind match.
type Sym struct {
	Name string
	Kind Kind
}

// Add is a sum of terms.
type Add struct {
	Terms []Expr
}

// Mul is a product of factors.
type Mul struct {
	Factors []Expr
}

// Pow is Base raised to Exp.
type Pow struct {
	Base, Exp Expr
}

// Call applies a named elementary function to its arguments.
type Call struct {
	Func string
	Args []Expr
}

// Deriv marks the time derivative of its argument.
type Deriv struct {
	Of Expr
}

// Var returns a time-varying symbol.
func Var(name string) Sym { return Sym{Name: name, Kind: Variable} }

// Param returns a parameter symbol.
func Param(name string) Sym { return Sym{Name: name, Kind: Parameter} }

// Const returns a numeric constant.
func Const(v float64) Num { return Num{Value: v} }

var (
	zero = Num{Value: 0}
	one  = Num{Value: 1}
)

func (n Num) String() string {
	return strconv.FormatFloat(n.Value, 'g', -1, 64)
}

func (n Num) precedence() int {
	if n.Value < 0 {
		return precSum
	}
	return precAtom
}

func (s Sym) String() string    { return s.Name }
func (s Sym) precedence() int   { return precAtom }
func (d Deriv) precedence() int { return precAtom }
func (c Call) precedence() int  { return precAtom }
func (a Add) precedence() int   { return precSum }
func (m Mul) precedence() int   { return precProduct }
func (p Pow) precedence() int   { return precAtom }

func (d Deriv) String() string { return "D(" + d.Of.String() + ")" }

func (c Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return c.Func + "(" + strings.Join(args, ", ") + ")"
}

func (a Add) String() string {
	var sb strings.Builder
	for i, t := range a.Terms {
		neg, rest := splitNegative(t)
		switch {
		case i == 0 && neg:
			sb.WriteString("-")
		case i > 0 && neg:
			sb.WriteString(" - ")
		case i > 0:
			sb.WriteString(" + ")
		}
		if neg {
			sb.WriteString(wrap(rest, precProduct))
		} else {
			sb.WriteString(wrap(rest, precSum+1))
		}
	}
	return sb.String()
}

func (m Mul) String() string {
	if neg, rest := splitNegative(m); neg {
		return "-" + wrap(rest, precProduct)
	}
	var num, den []string
	for _, f := range m.Factors {
		if p, ok := f.(Pow); ok {
			if e, ok := p.Exp.(Num); ok && e.Value == -1 {
				den = append(den, wrap(p.Base, precPower))
				continue
			}
		}
		num = append(num, wrap(f, precProduct))
	}
	s := "1"
	if len(num) > 0 {
		s = strings.Join(num, "*")
	}
	for _, d := range den {
		s += "/" + d
	}
	return s
}

// String uses the pow call form so printed equations parse back.
func (p Pow) String() string {
	return "pow(" + p.Base.String() + ", " + p.Exp.String() + ")"
}

// splitNegative reports whether t prints with a leading minus and returns the
// remaining magnitude.
func splitNegative(t Expr) (bool, Expr) {
	switch v := t.(type) {
	case Num:
		if v.Value < 0 {
			return true, Num{Value: -v.Value}
		}
	case Mul:
		if len(v.Factors) > 0 {
			if c, ok := v.Factors[0].(Num); ok && c.Value < 0 {
				rest := append([]Expr{}, v.Factors[1:]...)
				if c.Value != -1 {
					rest = append([]Expr{Num{Value: -c.Value}}, rest...)
				}
				if len(rest) == 1 {
					return true, rest[0]
				}
				return true, Mul{Factors: rest}
			}
		}
	}
	return false, t
}

func wrap(e Expr, min int) string {
	if e.precedence() < min {
		return "(" + e.String() + ")"
	}
	return e.String()
}
