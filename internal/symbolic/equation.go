package symbolic

// Equation is lhs ~ rhs.
type Equation struct {
	LHS, RHS Expr
}

// Eq returns lhs ~ rhs.
func Eq(lhs, rhs Expr) Equation { return Equation{LHS: lhs, RHS: rhs} }

func (e Equation) String() string { return e.LHS.String() + " ~ " + e.RHS.String() }

// Differential returns the state of a D(x) ~ rhs equation.
func (e Equation) Differential() (Sym, bool) {
	d, ok := e.LHS.(Deriv)
	if !ok {
		return Sym{}, false
	}
	s, ok := d.Of.(Sym)
	if !ok || s.Kind != Variable {
		return Sym{}, false
	}
	return s, true
}

// IsResidual reports whether the equation has the form 0 ~ rhs.
func (e Equation) IsResidual() bool {
	n, ok := e.LHS.(Num)
	return ok && n.Value == 0
}

// ExplicitFor returns the variable of an explicit algebraic equation
// x ~ rhs where x does not occur in rhs.
func (e Equation) ExplicitFor() (Sym, bool) {
	s, ok := e.LHS.(Sym)
	if !ok || s.Kind != Variable || Contains(e.RHS, s) {
		return Sym{}, false
	}
	return s, true
}

// Residual rewrites an algebraic equation lhs ~ rhs as 0 ~ rhs - lhs.
// Differential and residual equations are returned unchanged.
func (e Equation) Residual() Equation {
	if e.IsResidual() {
		return e
	}
	if _, ok := e.LHS.(Deriv); ok {
		return e
	}
	return Equation{LHS: zero, RHS: Minus(e.RHS, e.LHS)}
}

// Map applies fn to both sides.
func (e Equation) Map(fn func(Expr) Expr) Equation {
	return Equation{LHS: fn(e.LHS), RHS: fn(e.RHS)}
}

// Symbols returns the symbols of both sides, lhs first.
func (e Equation) Symbols() []Sym { return Symbols(e.LHS, e.RHS) }

// Variables returns the time-varying symbols of eqs in first-appearance order.
func Variables(eqs []Equation) []Sym { return ofKind(eqs, Variable) }

// Parameters returns the parameter symbols of eqs in first-appearance order.
func Parameters(eqs []Equation) []Sym { return ofKind(eqs, Parameter) }

func ofKind(eqs []Equation, k Kind) []Sym {
	exprs := make([]Expr, 0, 2*len(eqs))
	for _, e := range eqs {
		exprs = append(exprs, e.LHS, e.RHS)
	}
	var out []Sym
	for _, s := range Symbols(exprs...) {
		if s.Kind == k {
			out = append(out, s)
		}
	}
	return out
}
