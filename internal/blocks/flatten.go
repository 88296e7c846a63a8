package blocks

import (
	"github.com/san-kum/dynblocks/internal/symbolic"
)

// Flatten reduces any component to a block. A *Block is returned as is; a
// *System is flattened recursively.
func Flatten(c Component) (*Block, error) {
	switch v := c.(type) {
	case *Block:
		return v, nil
	case *System:
		return v.Flatten()
	}
	return nil, newError("flatten", c.Name(), ErrSchema, "unsupported component type")
}

// Flatten reduces s to a single block:
//
//  1. every connected input is replaced by the output feeding it
//  2. connected outputs that are not exposed as system outputs and are
//     defined explicitly (o ~ expr) are substituted away; their equations move
//     to [Block.Removed]
//  3. every remaining symbol is renamed through the promotion maps
//
// Steps 1 and 2 already ran in [NewSystem]; Flatten only relabels.
func (s *System) Flatten() (*Block, error) {
	const op = "flatten"

	eqs := append([]symbolic.Equation(nil), s.reduced.eqs...)
	removed := append([]symbolic.Equation(nil), s.reduced.removed...)

	rename := make(map[string]string)
	for cat := Category(0); cat < numCategories; cat++ {
		for _, p := range s.promotions[cat] {
			rename[p.From] = p.To
		}
	}
	var missing []string
	relabel := func(sym symbolic.Sym) symbolic.Sym {
		to, ok := rename[sym.Name]
		if !ok {
			if sym.Kind != symbolic.Independent {
				missing = append(missing, sym.Name)
			}
			return sym
		}
		sym.Name = to
		return sym
	}
	for i, eq := range eqs {
		eqs[i] = eq.Map(func(e symbolic.Expr) symbolic.Expr { return symbolic.Rename(e, relabel) })
	}
	if len(missing) > 0 {
		return nil, newError(op, s.name, ErrInvariant, "symbols without promotion", dedupe(missing)...)
	}
	for i, eq := range removed {
		// Signals eliminated in nested systems have no promotion and keep
		// their qualified names.
		removed[i] = eq.Map(func(e symbolic.Expr) symbolic.Expr { return symbolic.Rename(e, relabel) })
	}

	inputs := make([]string, len(s.promotions[CategoryInputs]))
	for i, p := range s.promotions[CategoryInputs] {
		inputs[i] = p.To
	}
	outputs := make([]string, len(s.promotions[CategoryOutputs]))
	for i, p := range s.promotions[CategoryOutputs] {
		outputs[i] = p.To
	}
	return newBlock(s.name, eqs, inputs, outputs, removed)
}

type reduction struct {
	eqs        []symbolic.Equation
	removed    []symbolic.Equation
	eliminated map[string]bool
}

// reduce performs the first two steps of Flatten on qualified names. It runs
// once in NewSystem so the symbol lists of s already omit eliminated signals.
func (s *System) reduce() (reduction, error) {
	const op = "flatten"

	var eqs, removed []symbolic.Equation
	for _, sub := range s.subsystems {
		b, err := Flatten(sub)
		if err != nil {
			return reduction{}, err
		}
		ns := namespace(b.Name())
		for _, eq := range b.eqs {
			eqs = append(eqs, eq.Map(ns))
		}
		for _, eq := range b.removed {
			removed = append(removed, eq.Map(ns))
		}
	}

	// Connected inputs are parameters and outputs are variables, so a
	// single pass resolves chained connections.
	wiring := make(map[symbolic.Sym]symbolic.Expr, len(s.connections))
	for _, c := range s.connections {
		wiring[symbolic.Param(c.In)] = symbolic.Var(c.Out)
	}
	eqs = substituteAll(eqs, wiring)
	removed = substituteAll(removed, wiring)

	for _, c := range s.connections {
		in, out := symbolic.Param(c.In), symbolic.Var(c.Out)
		referenced := false
		for _, eq := range eqs {
			if containsEq(eq, in) {
				return reduction{}, newError(op, s.name, ErrUnresolvedConnection, "input survives substitution", c.In)
			}
			referenced = referenced || containsEq(eq, out)
		}
		if !referenced {
			return reduction{}, newError(op, s.name, ErrUnresolvedConnection, "connected output not found in any equation", c.Out)
		}
	}

	eqs, eliminated := s.eliminate(eqs)
	removed = append(substituteAll(removed, exprMap(eliminated)), eliminatedEquations(eliminated)...)

	gone := make(map[string]bool, len(eliminated))
	for _, e := range eliminated {
		gone[e.sym.Name] = true
	}
	return reduction{eqs: eqs, removed: removed, eliminated: gone}, nil
}

type elimination struct {
	sym  symbolic.Sym
	expr symbolic.Expr
}

// eliminate substitutes hidden connected outputs by their explicit
// definitions. Outputs that occur under a derivative or take part in an
// algebraic cycle with other candidates are kept as states.
func (s *System) eliminate(eqs []symbolic.Equation) ([]symbolic.Equation, []elimination) {
	exposed := make(map[string]bool)
	for _, p := range s.promotions[CategoryOutputs] {
		exposed[p.From] = true
	}
	differentiated := make(map[symbolic.Sym]bool)
	for _, eq := range eqs {
		for _, d := range symbolic.Differentiated(eq.LHS) {
			differentiated[d] = true
		}
	}

	def := make(map[symbolic.Sym]int)
	var order []symbolic.Sym
	for _, c := range s.connections {
		o := symbolic.Var(c.Out)
		if exposed[c.Out] || differentiated[o] {
			continue
		}
		if _, seen := def[o]; seen {
			continue
		}
		for i, eq := range eqs {
			if lhs, ok := eq.ExplicitFor(); ok && lhs == o {
				def[o] = i
				order = append(order, o)
				break
			}
		}
	}
	if len(order) == 0 {
		return eqs, nil
	}

	cyclic := make(map[symbolic.Sym]bool)
	state := make(map[symbolic.Sym]int)
	var stack []symbolic.Sym
	var visit func(o symbolic.Sym)
	visit = func(o symbolic.Sym) {
		state[o] = 1
		stack = append(stack, o)
		for _, dep := range symbolic.Symbols(eqs[def[o]].RHS) {
			if _, candidate := def[dep]; !candidate {
				continue
			}
			switch state[dep] {
			case 0:
				visit(dep)
			case 1:
				for i := len(stack) - 1; i >= 0; i-- {
					cyclic[stack[i]] = true
					if stack[i] == dep {
						break
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[o] = 2
	}
	for _, o := range order {
		if state[o] == 0 {
			visit(o)
		}
	}

	resolved := make(map[symbolic.Sym]symbolic.Expr)
	var resolve func(o symbolic.Sym) symbolic.Expr
	resolve = func(o symbolic.Sym) symbolic.Expr {
		if e, ok := resolved[o]; ok {
			return e
		}
		e := symbolic.Map(eqs[def[o]].RHS, func(dep symbolic.Sym) symbolic.Expr {
			if _, candidate := def[dep]; candidate && !cyclic[dep] {
				return resolve(dep)
			}
			return dep
		})
		resolved[o] = e
		return e
	}

	var eliminated []elimination
	drop := make(map[int]bool)
	for _, o := range order {
		if cyclic[o] {
			s.logger.Debug("connected output kept: algebraic loop", "system", s.name, "output", o.Name)
			continue
		}
		eliminated = append(eliminated, elimination{sym: o, expr: resolve(o)})
		drop[def[o]] = true
		s.logger.Debug("connected output eliminated", "system", s.name, "output", o.Name)
	}

	subst := exprMap(eliminated)
	kept := make([]symbolic.Equation, 0, len(eqs)-len(drop))
	for i, eq := range eqs {
		if drop[i] {
			continue
		}
		kept = append(kept, eq.Map(func(e symbolic.Expr) symbolic.Expr { return symbolic.Substitute(e, subst) }))
	}
	return kept, eliminated
}

func exprMap(els []elimination) map[symbolic.Sym]symbolic.Expr {
	m := make(map[symbolic.Sym]symbolic.Expr, len(els))
	for _, e := range els {
		m[e.sym] = e.expr
	}
	return m
}

func eliminatedEquations(els []elimination) []symbolic.Equation {
	out := make([]symbolic.Equation, len(els))
	for i, e := range els {
		out[i] = symbolic.Eq(e.sym, e.expr)
	}
	return out
}

func namespace(component string) func(symbolic.Expr) symbolic.Expr {
	return func(e symbolic.Expr) symbolic.Expr {
		return symbolic.Rename(e, func(s symbolic.Sym) symbolic.Sym {
			if s.Kind != symbolic.Independent {
				s.Name = Qualify(component, s.Name)
			}
			return s
		})
	}
}

func substituteAll(eqs []symbolic.Equation, m map[symbolic.Sym]symbolic.Expr) []symbolic.Equation {
	out := make([]symbolic.Equation, len(eqs))
	for i, eq := range eqs {
		out[i] = eq.Map(func(e symbolic.Expr) symbolic.Expr { return symbolic.Substitute(e, m) })
	}
	return out
}

func containsEq(eq symbolic.Equation, s symbolic.Sym) bool {
	return symbolic.Contains(eq.LHS, s) || symbolic.Contains(eq.RHS, s)
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := names[:0]
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
