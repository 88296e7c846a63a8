package symbolic

// Plus returns the sum of terms. Nested sums are flattened.
func Plus(terms ...Expr) Expr {
	flat := make([]Expr, 0, len(terms))
	for _, t := range terms {
		if a, ok := t.(Add); ok {
			flat = append(flat, a.Terms...)
			continue
		}
		flat = append(flat, t)
	}
	switch len(flat) {
	case 0:
		return zero
	case 1:
		return flat[0]
	}
	return Add{Terms: flat}
}

// Minus returns a - b.
func Minus(a, b Expr) Expr { return Plus(a, Neg(b)) }

// Neg returns -e.
func Neg(e Expr) Expr {
	switch v := e.(type) {
	case Num:
		return Num{Value: -v.Value}
	case Mul:
		if len(v.Factors) > 0 {
			if c, ok := v.Factors[0].(Num); ok {
				fs := append([]Expr{Num{Value: -c.Value}}, v.Factors[1:]...)
				if fs[0].(Num).Value == 1 {
					return Times(fs[1:]...)
				}
				return Mul{Factors: fs}
			}
		}
	}
	return Times(Num{Value: -1}, e)
}

// Times returns the product of factors. Nested products are flattened.
func Times(factors ...Expr) Expr {
	flat := make([]Expr, 0, len(factors))
	for _, f := range factors {
		if m, ok := f.(Mul); ok {
			flat = append(flat, m.Factors...)
			continue
		}
		flat = append(flat, f)
	}
	switch len(flat) {
	case 0:
		return one
	case 1:
		return flat[0]
	}
	return Mul{Factors: flat}
}

// Div returns a / b.
func Div(a, b Expr) Expr { return Times(a, PowOf(b, Num{Value: -1})) }

// PowOf returns base^exp.
func PowOf(base, exp Expr) Expr { return Pow{Base: base, Exp: exp} }

// Func applies the named elementary function.
func Func(name string, args ...Expr) Expr { return Call{Func: name, Args: args} }

// D returns the time derivative marker of e.
func D(e Expr) Expr { return Deriv{Of: e} }
