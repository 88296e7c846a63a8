package symbolic

import "math"

// Simplify returns an equivalent, usually smaller expression. It flattens
// nested sums and products, folds numeric constants, merges powers of equal
// bases and collects like terms. The result is deterministic: terms keep the
// order of their first appearance.
func Simplify(e Expr) Expr {
	switch v := e.(type) {
	case Add:
		return simplifyAdd(v)
	case Mul:
		return simplifyMul(v)
	case Pow:
		return simplifyPow(v)
	case Call:
		args := make([]Expr, len(v.Args))
		numeric := make([]float64, len(v.Args))
		allNum := true
		for i, a := range v.Args {
			args[i] = Simplify(a)
			if n, ok := args[i].(Num); ok {
				numeric[i] = n.Value
			} else {
				allNum = false
			}
		}
		if f, ok := functions[v.Func]; ok && allNum && f.arity == len(args) {
			if r := f.eval(numeric); !math.IsNaN(r) && !math.IsInf(r, 0) {
				return Num{Value: r}
			}
		}
		return Call{Func: v.Func, Args: args}
	case Deriv:
		return Deriv{Of: Simplify(v.Of)}
	}
	return e
}

// SimplifyEquation simplifies both sides of eq.
func SimplifyEquation(eq Equation) Equation { return eq.Map(Simplify) }

func simplifyAdd(a Add) Expr {
	type group struct {
		coef float64
		rest Expr
	}
	var (
		constant float64
		order    []string
		groups   = make(map[string]*group)
	)
	var collect func(Expr)
	collect = func(t Expr) {
		t = Simplify(t)
		switch v := t.(type) {
		case Add:
			for _, inner := range v.Terms {
				collect(inner)
			}
			return
		case Num:
			constant += v.Value
			return
		}
		coef, rest := splitCoefficient(t)
		key := rest.String()
		g, ok := groups[key]
		if !ok {
			g = &group{rest: rest}
			groups[key] = g
			order = append(order, key)
		}
		g.coef += coef
	}
	for _, t := range a.Terms {
		collect(t)
	}

	terms := make([]Expr, 0, len(order)+1)
	for _, key := range order {
		g := groups[key]
		switch g.coef {
		case 0:
		case 1:
			terms = append(terms, g.rest)
		default:
			terms = append(terms, Times(Num{Value: g.coef}, g.rest))
		}
	}
	if constant != 0 {
		terms = append(terms, Num{Value: constant})
	}
	return Plus(terms...)
}

// splitCoefficient separates a leading numeric factor from a simplified term.
func splitCoefficient(t Expr) (float64, Expr) {
	m, ok := t.(Mul)
	if !ok || len(m.Factors) == 0 {
		return 1, t
	}
	c, ok := m.Factors[0].(Num)
	if !ok {
		return 1, t
	}
	return c.Value, Times(m.Factors[1:]...)
}

func simplifyMul(m Mul) Expr {
	type power struct {
		base Expr
		exp  float64
	}
	var (
		coef   = 1.0
		order  []string
		powers = make(map[string]*power)
		others []Expr
	)
	add := func(base Expr, exp float64) {
		key := base.String()
		p, ok := powers[key]
		if !ok {
			p = &power{base: base}
			powers[key] = p
			order = append(order, key)
		}
		p.exp += exp
	}
	var collect func(Expr)
	collect = func(f Expr) {
		f = Simplify(f)
		switch v := f.(type) {
		case Mul:
			for _, inner := range v.Factors {
				collect(inner)
			}
		case Num:
			coef *= v.Value
		case Pow:
			if n, ok := v.Exp.(Num); ok {
				add(v.Base, n.Value)
				return
			}
			others = append(others, v)
		default:
			add(f, 1)
		}
	}
	for _, f := range m.Factors {
		collect(f)
	}
	if coef == 0 {
		return zero
	}

	factors := make([]Expr, 0, len(order)+len(others)+1)
	if coef != 1 {
		factors = append(factors, Num{Value: coef})
	}
	for _, key := range order {
		p := powers[key]
		switch p.exp {
		case 0:
		case 1:
			factors = append(factors, p.base)
		default:
			factors = append(factors, Pow{Base: p.base, Exp: Num{Value: p.exp}})
		}
	}
	factors = append(factors, others...)
	return Times(factors...)
}

func simplifyPow(p Pow) Expr {
	base, exp := Simplify(p.Base), Simplify(p.Exp)
	if e, ok := exp.(Num); ok {
		switch e.Value {
		case 0:
			return one
		case 1:
			return base
		}
		if b, ok := base.(Num); ok {
			if r := math.Pow(b.Value, e.Value); !math.IsNaN(r) && !math.IsInf(r, 0) {
				return Num{Value: r}
			}
		}
	}
	if b, ok := base.(Num); ok && b.Value == 1 {
		return one
	}
	return Pow{Base: base, Exp: exp}
}
