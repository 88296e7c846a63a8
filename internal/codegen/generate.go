package codegen

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/san-kum/dynblocks/internal/blocks"
	"github.com/san-kum/dynblocks/internal/symbolic"
)

// Config controls ordering and simplification.
type Config struct {
	// FirstStates are placed at the front of the state vector. Each must be an
	// output or internal state of the block.
	FirstStates []string `yaml:"first_states,omitempty"`
	// FirstInputs are placed at the front of the input vector.
	FirstInputs []string `yaml:"first_inputs,omitempty"`
	Simplify    bool     `yaml:"simplify"`
}

// OutOfPlaceFunc evaluates the right-hand sides into a new vector.
type OutOfPlaceFunc func(x, u, p []float64, t float64) []float64

// InPlaceFunc evaluates the right-hand sides into du.
type InPlaceFunc func(du, x, u, p []float64, t float64)

// Model is a generated simulation function with its calling convention.
type Model struct {
	Name   string
	States []symbolic.Sym
	Inputs []symbolic.Sym
	Params []symbolic.Sym

	// Equations are aligned with States: row k is the differential equation
	// of States[k] or an algebraic residual 0 ~ expr.
	Equations []symbolic.Equation
	Mass      MassMatrix

	// Observed are the equations eliminated during flattening. Their values
	// are available through Observe.
	Observed []symbolic.Equation

	InPlace    InPlaceFunc
	OutOfPlace OutOfPlaceFunc

	observed []symbolic.Fn
}

// Generate builds the model of b.
func Generate(b *blocks.Block, cfg Config) (*Model, error) {
	const op = "generate"

	states, err := order(b.Name(), cfg.FirstStates, b.States(), "first_states")
	if err != nil {
		return nil, err
	}
	inputs, err := order(b.Name(), cfg.FirstInputs, b.Inputs(), "first_inputs")
	if err != nil {
		return nil, err
	}
	params := b.IParams()

	eqs := b.Equations()
	for i, eq := range eqs {
		eq = eq.Residual()
		if cfg.Simplify {
			eq = symbolic.SimplifyEquation(eq)
		}
		eqs[i] = eq
	}

	aligned, err := align(b.Name(), eqs, states)
	if err != nil {
		return nil, err
	}

	diag := make([]float64, len(aligned))
	for i, eq := range aligned {
		if _, ok := eq.Differential(); ok {
			diag[i] = 1
		}
	}

	lookup := slots(states, inputs, params)
	rhs := make([]symbolic.Fn, len(aligned))
	for i, eq := range aligned {
		fn, err := symbolic.Compile(eq.RHS, lookup)
		if err != nil {
			return nil, modelError(op, b.Name(), blocks.ErrInvariant, err.Error(), eq.String())
		}
		rhs[i] = fn
	}

	observed := b.Removed()
	obs := make([]symbolic.Fn, len(observed))
	for i, eq := range observed {
		if cfg.Simplify {
			eq = symbolic.SimplifyEquation(eq)
			observed[i] = eq
		}
		fn, err := symbolic.Compile(eq.RHS, lookup)
		if err != nil {
			return nil, modelError(op, b.Name(), blocks.ErrInvariant, "observed: "+err.Error(), eq.String())
		}
		obs[i] = fn
	}

	m := &Model{
		Name:      b.Name(),
		States:    states,
		Inputs:    inputs,
		Params:    params,
		Equations: aligned,
		Mass:      newMassMatrix(diag),
		Observed:  observed,
		observed:  obs,
	}
	m.InPlace = func(du, x, u, p []float64, t float64) {
		f := symbolic.Frame{X: x, U: u, P: p, T: t}
		for i, fn := range rhs {
			du[i] = fn(&f)
		}
	}
	m.OutOfPlace = func(x, u, p []float64, t float64) []float64 {
		du := make([]float64, len(rhs))
		m.InPlace(du, x, u, p, t)
		return du
	}
	return m, nil
}

// order returns dedupe(first ++ declared). Every name in first must be
// declared.
func order(block string, first []string, declared []symbolic.Sym, what string) ([]symbolic.Sym, error) {
	byName := make(map[string]symbolic.Sym, len(declared))
	for _, s := range declared {
		byName[s.Name] = s
	}
	var unknown []string
	ordered := make([]symbolic.Sym, 0, len(declared))
	for _, name := range first {
		s, ok := byName[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		ordered = append(ordered, s)
	}
	if len(unknown) > 0 {
		return nil, modelError("generate", block, blocks.ErrArgument, what+" not declared by the block", unknown...)
	}
	ordered = append(ordered, declared...)

	seen := make(map[symbolic.Sym]bool, len(ordered))
	out := ordered[:0]
	for _, s := range ordered {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out, nil
}

// align reorders eqs so that row k holds the differential equation of
// states[k]. Algebraic equations fill the remaining rows backwards: the last
// algebraic equation takes the last open row.
func align(block string, eqs []symbolic.Equation, states []symbolic.Sym) ([]symbolic.Equation, error) {
	const op = "align"
	if len(eqs) != len(states) {
		return nil, modelError(op, block, blocks.ErrStructural,
			fmt.Sprintf("%d equations for %d states", len(eqs), len(states)))
	}

	differential := make(map[symbolic.Sym]int)
	var algebraic []int
	for i, eq := range eqs {
		s, ok := eq.Differential()
		if !ok {
			algebraic = append(algebraic, i)
			continue
		}
		if _, dup := differential[s]; dup {
			return nil, modelError(op, block, blocks.ErrStructural, "several differential equations for one state", s.Name)
		}
		differential[s] = i
	}

	rows := make([]int, len(states))
	var open []int
	for k, s := range states {
		i, ok := differential[s]
		if !ok {
			open = append(open, k)
			continue
		}
		rows[k] = i
		delete(differential, s)
	}
	if len(differential) > 0 {
		var stray []string
		for _, eq := range eqs {
			if s, ok := eq.Differential(); ok {
				if _, left := differential[s]; left {
					stray = append(stray, s.Name)
				}
			}
		}
		return nil, modelError(op, block, blocks.ErrStructural, "differential equations for unknown states", stray...)
	}
	if len(open) != len(algebraic) {
		return nil, modelError(op, block, blocks.ErrStructural,
			fmt.Sprintf("%d algebraic equations for %d open states", len(algebraic), len(open)))
	}
	for j, a := len(open)-1, len(algebraic)-1; j >= 0; j, a = j-1, a-1 {
		rows[open[j]] = algebraic[a]
	}

	out := make([]symbolic.Equation, len(rows))
	for k, i := range rows {
		out[k] = eqs[i]
	}
	return out, nil
}

func slots(states, inputs, params []symbolic.Sym) func(symbolic.Sym) (symbolic.Slot, bool) {
	m := make(map[symbolic.Sym]symbolic.Slot, len(states)+len(inputs)+len(params))
	for i, s := range params {
		m[s] = symbolic.Slot{Vec: symbolic.Params, Index: i}
	}
	for i, s := range inputs {
		m[s] = symbolic.Slot{Vec: symbolic.Inputs, Index: i}
	}
	for i, s := range states {
		m[s] = symbolic.Slot{Vec: symbolic.States, Index: i}
	}
	return func(s symbolic.Sym) (symbolic.Slot, bool) {
		slot, ok := m[s]
		return slot, ok
	}
}

func modelError(op, component string, kind error, detail string, symbols ...string) error {
	return &blocks.ModelError{Op: op, Component: component, Symbols: symbols, Wrapped: errors.Wrap(kind, detail)}
}

// Observe evaluates the observed equations.
func (m *Model) Observe(x, u, p []float64, t float64) []float64 {
	f := symbolic.Frame{X: x, U: u, P: p, T: t}
	out := make([]float64, len(m.observed))
	for i, fn := range m.observed {
		out[i] = fn(&f)
	}
	return out
}

// CheckArgs verifies the lengths of x, u and p against the calling
// convention of m.
func (m *Model) CheckArgs(x, u, p []float64) error {
	for _, c := range []struct {
		what      string
		got, want int
	}{
		{"states", len(x), len(m.States)},
		{"inputs", len(u), len(m.Inputs)},
		{"params", len(p), len(m.Params)},
	} {
		if c.got != c.want {
			return modelError("call", m.Name, blocks.ErrArgument,
				fmt.Sprintf("%s: got %d values, want %d", c.what, c.got, c.want))
		}
	}
	return nil
}

// Names returns the names of syms.
func Names(syms []symbolic.Sym) []string {
	out := make([]string, len(syms))
	for i, s := range syms {
		out[i] = s.Name
	}
	return out
}

// ObservedNames returns the left-hand sides of the observed equations.
func (m *Model) ObservedNames() []string {
	out := make([]string, len(m.Observed))
	for i, eq := range m.Observed {
		out[i] = eq.LHS.String()
	}
	return out
}
