package sim

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/san-kum/dynblocks/internal/codegen"
	"github.com/san-kum/dynblocks/internal/symbolic"
)

// ModelSystem adapts a generated model with bound parameters to [Dynamics].
type ModelSystem struct {
	model  *codegen.Model
	params []float64
}

// FromModel binds every model parameter to its value in params. Names not
// declared by the model are rejected. Models with algebraic rows are rejected
// since the explicit integrators advance every row as a derivative.
func FromModel(m *codegen.Model, params map[string]float64) (*ModelSystem, error) {
	if m.Mass.Singular() {
		return nil, errors.Wrapf(ErrAlgebraic, "model %q mass matrix %s", m.Name, m.Mass)
	}
	p, err := bind(m.Params, params, false)
	if err != nil {
		return nil, errors.Wrapf(err, "model %q params", m.Name)
	}
	return &ModelSystem{model: m, params: p}, nil
}

func (s *ModelSystem) Derivative(x State, u Control, t float64) State {
	dx := make(State, len(x))
	s.model.InPlace(dx, x, u, s.params, t)
	return dx
}

func (s *ModelSystem) StateDim() int   { return len(s.model.States) }
func (s *ModelSystem) ControlDim() int { return len(s.model.Inputs) }

// Model returns the underlying generated model.
func (s *ModelSystem) Model() *codegen.Model { return s.model }

// Params returns the bound parameter vector.
func (s *ModelSystem) Params() []float64 { return append([]float64(nil), s.params...) }

// InitialState orders values by the model's states. Missing states start at 0.
func (s *ModelSystem) InitialState(values map[string]float64) (State, error) {
	x, err := bind(s.model.States, values, true)
	if err != nil {
		return nil, errors.Wrapf(err, "model %q initial state", s.model.Name)
	}
	return State(x), nil
}

// Inputs orders values by the model's inputs. Missing inputs are 0.
func (s *ModelSystem) Inputs(values map[string]float64) (Control, error) {
	u, err := bind(s.model.Inputs, values, true)
	if err != nil {
		return nil, errors.Wrapf(err, "model %q inputs", s.model.Name)
	}
	return Control(u), nil
}

// Observe evaluates the model's observed signals at x.
func (s *ModelSystem) Observe(x State, u Control, t float64) []float64 {
	return s.model.Observe(x, u, s.params, t)
}

func bind(syms []symbolic.Sym, values map[string]float64, optional bool) ([]float64, error) {
	out := make([]float64, len(syms))
	declared := make(map[string]bool, len(syms))
	var missing []string
	for i, sym := range syms {
		declared[sym.Name] = true
		v, ok := values[sym.Name]
		if !ok && !optional {
			missing = append(missing, sym.Name)
		}
		out[i] = v
	}
	if len(missing) > 0 {
		return nil, errors.Wrapf(ErrUnknownSymbol, "no value for %s", strings.Join(missing, ", "))
	}
	var unknown []string
	for name := range values {
		if !declared[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, errors.Wrapf(ErrUnknownSymbol, "not declared: %s", strings.Join(unknown, ", "))
	}
	return out, nil
}
