package blocks

import (
	"strings"

	"github.com/san-kum/dynblocks/internal/symbolic"
)

// Separator joins a component name and a symbol name into a qualified name.
const Separator = "."

// Component is the capability set shared by [Block] and [System].
type Component interface {
	Name() string
	Inputs() []symbolic.Sym
	IParams() []symbolic.Sym
	IStates() []symbolic.Sym
	Outputs() []symbolic.Sym
}

// Block is a named, square set of equations with classified symbols.
//
// Inputs and internal parameters partition the parameters of the equations;
// outputs and internal states partition the variables. A Block is immutable.
type Block struct {
	name    string
	inputs  []symbolic.Sym
	iparams []symbolic.Sym
	istates []symbolic.Sym
	outputs []symbolic.Sym
	eqs     []symbolic.Equation
	removed []symbolic.Equation
}

// NewBlock builds a block from eqs. inputs must name parameters of eqs and
// outputs must name variables of eqs; the remaining parameters and variables
// become internal parameters and internal states.
func NewBlock(name string, eqs []symbolic.Equation, inputs, outputs []string) (*Block, error) {
	return newBlock(name, eqs, inputs, outputs, nil)
}

// MustBlock is like NewBlock but panics on error.
func MustBlock(name string, eqs []symbolic.Equation, inputs, outputs []string) *Block {
	b, err := NewBlock(name, eqs, inputs, outputs)
	if err != nil {
		panic(err)
	}
	return b
}

func newBlock(name string, eqs []symbolic.Equation, inputs, outputs []string, removed []symbolic.Equation) (*Block, error) {
	const op = "new block"
	if err := checkName(op, name); err != nil {
		return nil, err
	}
	for _, eq := range eqs {
		if d, ok := eq.LHS.(symbolic.Deriv); ok {
			if _, ok := eq.Differential(); !ok {
				return nil, newError(op, name, ErrSchema, "derivative of a non-state", d.String())
			}
		} else if len(symbolic.Differentiated(eq.LHS)) > 0 {
			return nil, newError(op, name, ErrSchema, "derivative nested in left-hand side", eq.String())
		}
		if len(symbolic.Differentiated(eq.RHS)) > 0 {
			return nil, newError(op, name, ErrSchema, "derivative in right-hand side", eq.String())
		}
	}

	params := symbolic.Parameters(eqs)
	states := symbolic.Variables(eqs)
	for _, p := range params {
		if _, clash := findName(states, p.Name); clash {
			return nil, newError(op, name, ErrSchema, "symbol used as both variable and parameter", p.Name)
		}
	}

	in, err := pick(op, name, "input", inputs, params, states)
	if err != nil {
		return nil, err
	}
	out, err := pick(op, name, "output", outputs, states, params)
	if err != nil {
		return nil, err
	}

	b := &Block{
		name:    name,
		inputs:  in,
		iparams: without(params, in),
		istates: without(states, out),
		outputs: out,
		eqs:     append([]symbolic.Equation(nil), eqs...),
		removed: append([]symbolic.Equation(nil), removed...),
	}
	if err := b.checkPartition(params, states); err != nil {
		return nil, err
	}
	if len(b.eqs) != len(states) {
		return nil, newError(op, name, ErrStructural, "equation count does not match state count")
	}
	return b, nil
}

// pick resolves names against want, reporting names found in other as
// having the wrong kind.
func pick(op, block, what string, names []string, want, other []symbolic.Sym) ([]symbolic.Sym, error) {
	seen := make(map[string]bool, len(names))
	out := make([]symbolic.Sym, 0, len(names))
	for _, n := range names {
		if seen[n] {
			return nil, newError(op, block, ErrSchema, "duplicate "+what, n)
		}
		seen[n] = true
		s, ok := findName(want, n)
		if !ok {
			if _, wrong := findName(other, n); wrong {
				return nil, newError(op, block, ErrSchema, what+" has the wrong kind", n)
			}
			return nil, newError(op, block, ErrSchema, what+" does not occur in the equations", n)
		}
		out = append(out, s)
	}
	return out, nil
}

func (b *Block) checkPartition(params, states []symbolic.Sym) error {
	const op = "new block"
	if overlap := intersect(b.inputs, b.iparams); len(overlap) > 0 {
		return newError(op, b.name, ErrInvariant, "inputs and internal parameters overlap", names(overlap)...)
	}
	if overlap := intersect(b.istates, b.outputs); len(overlap) > 0 {
		return newError(op, b.name, ErrInvariant, "internal states and outputs overlap", names(overlap)...)
	}
	if len(b.inputs)+len(b.iparams) != len(params) || len(b.istates)+len(b.outputs) != len(states) {
		return newError(op, b.name, ErrInvariant, "categories do not partition the symbols")
	}
	return nil
}

func (b *Block) Name() string            { return b.name }
func (b *Block) Inputs() []symbolic.Sym  { return clone(b.inputs) }
func (b *Block) IParams() []symbolic.Sym { return clone(b.iparams) }
func (b *Block) IStates() []symbolic.Sym { return clone(b.istates) }
func (b *Block) Outputs() []symbolic.Sym { return clone(b.outputs) }
func (b *Block) Equations() []symbolic.Equation {
	return append([]symbolic.Equation(nil), b.eqs...)
}

// Removed returns the explicit algebraic equations eliminated while the block
// was flattened from a system. They define signals that are no longer states.
func (b *Block) Removed() []symbolic.Equation {
	return append([]symbolic.Equation(nil), b.removed...)
}

// States returns outputs followed by internal states.
func (b *Block) States() []symbolic.Sym {
	return append(clone(b.outputs), b.istates...)
}

// Params returns inputs followed by internal parameters.
func (b *Block) Params() []symbolic.Sym {
	return append(clone(b.inputs), b.iparams...)
}

func (b *Block) String() string {
	var sb strings.Builder
	sb.WriteString(b.name)
	sb.WriteString(" {\n")
	for _, eq := range b.eqs {
		sb.WriteString("  ")
		sb.WriteString(eq.String())
		sb.WriteString("\n")
	}
	sb.WriteString("}")
	return sb.String()
}

func checkName(op, name string) error {
	if name == "" {
		return newError(op, name, ErrSchema, "empty name")
	}
	if strings.Contains(name, Separator) {
		return newError(op, name, ErrSchema, "name contains the namespace separator")
	}
	return nil
}

// Qualify joins a component name and a symbol name.
func Qualify(component, name string) string {
	return component + Separator + name
}

func findName(syms []symbolic.Sym, name string) (symbolic.Sym, bool) {
	for _, s := range syms {
		if s.Name == name {
			return s, true
		}
	}
	return symbolic.Sym{}, false
}

func without(all, remove []symbolic.Sym) []symbolic.Sym {
	out := make([]symbolic.Sym, 0, len(all))
	for _, s := range all {
		if !containsSym(remove, s) {
			out = append(out, s)
		}
	}
	return out
}

func intersect(a, b []symbolic.Sym) []symbolic.Sym {
	var out []symbolic.Sym
	for _, s := range a {
		if containsSym(b, s) {
			out = append(out, s)
		}
	}
	return out
}

func containsSym(syms []symbolic.Sym, s symbolic.Sym) bool {
	for _, v := range syms {
		if v == s {
			return true
		}
	}
	return false
}

func names(syms []symbolic.Sym) []string {
	out := make([]string, len(syms))
	for i, s := range syms {
		out[i] = s.Name
	}
	return out
}

func clone(syms []symbolic.Sym) []symbolic.Sym {
	return append([]symbolic.Sym(nil), syms...)
}
