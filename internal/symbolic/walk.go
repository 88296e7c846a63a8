package symbolic

// Map rebuilds e with every symbol leaf replaced by fn(sym). Numeric leaves are
// kept. The result shares no slices with e.
func Map(e Expr, fn func(Sym) Expr) Expr {
	switch v := e.(type) {
	case Sym:
		return fn(v)
	case Num:
		return v
	case Add:
		terms := make([]Expr, len(v.Terms))
		for i, t := range v.Terms {
			terms[i] = Map(t, fn)
		}
		return Plus(terms...)
	case Mul:
		factors := make([]Expr, len(v.Factors))
		for i, f := range v.Factors {
			factors[i] = Map(f, fn)
		}
		return Times(factors...)
	case Pow:
		return Pow{Base: Map(v.Base, fn), Exp: Map(v.Exp, fn)}
	case Call:
		args := make([]Expr, len(v.Args))
		for i, a := range v.Args {
			args[i] = Map(a, fn)
		}
		return Call{Func: v.Func, Args: args}
	case Deriv:
		return Deriv{Of: Map(v.Of, fn)}
	}
	return e
}

// Substitute replaces every occurrence of a key symbol by its expression.
// Replacement is a single pass; values are not rewritten again.
func Substitute(e Expr, m map[Sym]Expr) Expr {
	if len(m) == 0 {
		return e
	}
	return Map(e, func(s Sym) Expr {
		if r, ok := m[s]; ok {
			return r
		}
		return s
	})
}

// Rename maps every symbol through fn.
func Rename(e Expr, fn func(Sym) Sym) Expr {
	return Map(e, func(s Sym) Expr { return fn(s) })
}

// Walk calls fn for every node of e in depth-first, left-to-right order.
// Returning false from fn skips the node's children.
func Walk(e Expr, fn func(Expr) bool) {
	if !fn(e) {
		return
	}
	switch v := e.(type) {
	case Add:
		for _, t := range v.Terms {
			Walk(t, fn)
		}
	case Mul:
		for _, f := range v.Factors {
			Walk(f, fn)
		}
	case Pow:
		Walk(v.Base, fn)
		Walk(v.Exp, fn)
	case Call:
		for _, a := range v.Args {
			Walk(a, fn)
		}
	case Deriv:
		Walk(v.Of, fn)
	}
}

// Symbols returns the distinct symbols of exprs in first-appearance order.
func Symbols(exprs ...Expr) []Sym {
	seen := make(map[Sym]bool)
	var out []Sym
	for _, e := range exprs {
		Walk(e, func(n Expr) bool {
			if s, ok := n.(Sym); ok && !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
			return true
		})
	}
	return out
}

// Contains reports whether s occurs in e.
func Contains(e Expr, s Sym) bool {
	found := false
	Walk(e, func(n Expr) bool {
		if found {
			return false
		}
		if v, ok := n.(Sym); ok && v == s {
			found = true
		}
		return true
	})
	return found
}

// Differentiated returns the symbols that occur under a D(.) marker in e.
func Differentiated(e Expr) []Sym {
	var out []Sym
	Walk(e, func(n Expr) bool {
		if d, ok := n.(Deriv); ok {
			out = append(out, Symbols(d.Of)...)
			return false
		}
		return true
	})
	return out
}
