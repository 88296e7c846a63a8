package codegen

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/san-kum/dynblocks/internal/blocks"
	"github.com/san-kum/dynblocks/internal/symbolic"
)

func mustBlock(t *testing.T, name string, vars, params []string, inputs, outputs []string, srcs ...string) *blocks.Block {
	t.Helper()
	scope := symbolic.NewScope(vars, params)
	eqs := make([]symbolic.Equation, len(srcs))
	for i, src := range srcs {
		eq, err := symbolic.ParseEquation(src, scope)
		if err != nil {
			t.Fatalf("parse %q: %v", src, err)
		}
		eqs[i] = eq
	}
	b, err := blocks.NewBlock(name, eqs, inputs, outputs)
	if err != nil {
		t.Fatalf("NewBlock: %v", err)
	}
	return b
}

func eqStrings(eqs []symbolic.Equation) []string {
	out := make([]string, len(eqs))
	for i, eq := range eqs {
		out[i] = eq.String()
	}
	return out
}

func TestGenerateDecay(t *testing.T) {
	b := mustBlock(t, "P", []string{"x"}, []string{"u", "tau"}, []string{"u"}, []string{"x"},
		"D(x) ~ -x/tau + u")

	m, err := Generate(b, Config{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if got := Names(m.States); !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("states = %v", got)
	}
	if got := Names(m.Inputs); !reflect.DeepEqual(got, []string{"u"}) {
		t.Errorf("inputs = %v", got)
	}
	if got := Names(m.Params); !reflect.DeepEqual(got, []string{"tau"}) {
		t.Errorf("params = %v", got)
	}

	du := m.OutOfPlace([]float64{2}, []float64{0}, []float64{1}, 0)
	if len(du) != 1 || du[0] != -2 {
		t.Errorf("OutOfPlace = %v, want [-2]", du)
	}

	buf := []float64{99}
	m.InPlace(buf, []float64{2}, []float64{0}, []float64{1}, 0)
	if buf[0] != -2 {
		t.Errorf("InPlace wrote %v, want [-2]", buf)
	}

	if !m.Mass.IsIdentity() {
		t.Errorf("mass = %v, want identity", m.Mass)
	}
}

func TestGenerateFixedPoint(t *testing.T) {
	b := mustBlock(t, "decay", []string{"x", "y"}, nil, nil, nil,
		"D(x) ~ -x",
		"D(y) ~ -2*y + x")

	m, err := Generate(b, Config{Simplify: true})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	du := m.OutOfPlace([]float64{0, 0}, nil, nil, 0)
	for i, v := range du {
		if v != 0 {
			t.Errorf("du[%d] = %v, want 0", i, v)
		}
	}
}

func TestGenerateMassMatrix(t *testing.T) {
	b := mustBlock(t, "dae", []string{"x", "y"}, nil, nil, []string{"x"},
		"D(x) ~ -x + y",
		"y ~ 2*x")

	tests := []struct {
		name   string
		first  []string
		states []string
		diag   []float64
		eqs    []string
		du     []float64
	}{
		{
			name:   "declared order",
			states: []string{"x", "y"},
			diag:   []float64{1, 0},
			eqs:    []string{"D(x) ~ -x + y", "0 ~ 2*x - y"},
			du:     []float64{1, 0},
		},
		{
			name:   "algebraic first",
			first:  []string{"y"},
			states: []string{"y", "x"},
			diag:   []float64{0, 1},
			eqs:    []string{"0 ~ 2*x - y", "D(x) ~ -x + y"},
			du:     []float64{0, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Generate(b, Config{FirstStates: tt.first})
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if got := Names(m.States); !reflect.DeepEqual(got, tt.states) {
				t.Errorf("states = %v, want %v", got, tt.states)
			}
			if got := m.Mass.Diag(); !reflect.DeepEqual(got, tt.diag) {
				t.Errorf("mass = %v, want %v", got, tt.diag)
			}
			if m.Mass.IsIdentity() {
				t.Error("mass reported as identity")
			}
			if !m.Mass.Singular() {
				t.Error("mass not reported singular")
			}
			if got := eqStrings(m.Equations); !reflect.DeepEqual(got, tt.eqs) {
				t.Errorf("equations = %q, want %q", got, tt.eqs)
			}

			x := map[string]float64{"x": 1, "y": 2}
			args := make([]float64, len(m.States))
			for i, s := range m.States {
				args[i] = x[s.Name]
			}
			if got := m.OutOfPlace(args, nil, nil, 0); !reflect.DeepEqual(got, tt.du) {
				t.Errorf("du = %v, want %v", got, tt.du)
			}
		})
	}
}

func TestAlgebraicRowsFilledBackwards(t *testing.T) {
	b := mustBlock(t, "tie", []string{"a", "x", "b"}, nil, nil, nil,
		"a ~ x",
		"D(x) ~ -a",
		"b ~ 2*a")

	m, err := Generate(b, Config{FirstStates: []string{"x", "a", "b"}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := []string{"D(x) ~ -a", "0 ~ x - a", "0 ~ 2*a - b"}
	if got := eqStrings(m.Equations); !reflect.DeepEqual(got, want) {
		t.Errorf("equations = %q, want %q", got, want)
	}
	if got := m.Mass.Diag(); !reflect.DeepEqual(got, []float64{1, 0, 0}) {
		t.Errorf("mass = %v", got)
	}
}

func TestGenerateErrors(t *testing.T) {
	dae := mustBlock(t, "dae", []string{"x", "y"}, []string{"u"}, []string{"u"}, []string{"x"},
		"D(x) ~ -x + y + u",
		"y ~ 2*x")
	twice := mustBlock(t, "twice", []string{"x", "y"}, nil, nil, nil,
		"D(x) ~ -x",
		"D(x) ~ y")

	tests := []struct {
		name  string
		block *blocks.Block
		cfg   Config
		want  error
	}{
		{"unknown first state", dae, Config{FirstStates: []string{"nope"}}, blocks.ErrArgument},
		{"input as first state", dae, Config{FirstStates: []string{"u"}}, blocks.ErrArgument},
		{"state as first input", dae, Config{FirstInputs: []string{"x"}}, blocks.ErrArgument},
		{"duplicate differential", twice, Config{}, blocks.ErrStructural},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Generate(tt.block, tt.cfg)
			if !errors.Is(err, tt.want) {
				t.Errorf("Generate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGenerateDedupesHints(t *testing.T) {
	b := mustBlock(t, "two", []string{"x", "y"}, []string{"u", "v"}, []string{"u", "v"}, []string{"y"},
		"D(x) ~ u - x",
		"D(y) ~ v - y")

	m, err := Generate(b, Config{FirstStates: []string{"x", "x"}, FirstInputs: []string{"v"}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := Names(m.States); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Errorf("states = %v", got)
	}
	if got := Names(m.Inputs); !reflect.DeepEqual(got, []string{"v", "u"}) {
		t.Errorf("inputs = %v", got)
	}
	du := m.OutOfPlace([]float64{1, 1}, []float64{3, 2}, nil, 0)
	if !reflect.DeepEqual(du, []float64{1, 2}) {
		t.Errorf("du = %v, want [1 2]", du)
	}
}

func TestObserve(t *testing.T) {
	src := mustBlock(t, "A", []string{"x", "out"}, []string{"in"}, []string{"in"}, []string{"out"},
		"D(x) ~ -x + in",
		"out ~ x")
	dst := mustBlock(t, "B", []string{"y"}, []string{"in"}, []string{"in"}, nil,
		"D(y) ~ -y + in")
	sys, err := blocks.NewSystem("chain", []blocks.Component{src, dst},
		[]blocks.Connection{{In: "B.in", Out: "A.out"}})
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}
	flat, err := sys.Flatten()
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}

	m, err := Generate(flat, Config{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := m.ObservedNames(); !reflect.DeepEqual(got, []string{"out"}) {
		t.Errorf("observed = %v", got)
	}
	if got := m.Observe([]float64{3, 1}, []float64{0}, nil, 0); !reflect.DeepEqual(got, []float64{3}) {
		t.Errorf("Observe = %v, want [3]", got)
	}
	du := m.OutOfPlace([]float64{3, 1}, []float64{0}, nil, 0)
	if !reflect.DeepEqual(du, []float64{-3, 2}) {
		t.Errorf("du = %v, want [-3 2]", du)
	}
}

func TestTimeDependence(t *testing.T) {
	b := mustBlock(t, "forced", []string{"x"}, nil, nil, nil, "D(x) ~ sin(t)")
	m, err := Generate(b, Config{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	got := m.OutOfPlace([]float64{0}, nil, nil, math.Pi/2)[0]
	if math.Abs(got-1) > 1e-12 {
		t.Errorf("du = %v, want 1", got)
	}
}

func TestCheckArgs(t *testing.T) {
	b := mustBlock(t, "P", []string{"x"}, []string{"u", "tau"}, []string{"u"}, []string{"x"},
		"D(x) ~ -x/tau + u")
	m, err := Generate(b, Config{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := m.CheckArgs([]float64{1}, []float64{0}, []float64{1}); err != nil {
		t.Errorf("CheckArgs: %v", err)
	}
	if err := m.CheckArgs([]float64{1, 2}, []float64{0}, []float64{1}); !errors.Is(err, blocks.ErrArgument) {
		t.Errorf("CheckArgs error = %v, want ErrArgument", err)
	}
}

func TestMassMatrix(t *testing.T) {
	tests := []struct {
		diag     []float64
		identity bool
		str      string
	}{
		{[]float64{1, 1}, true, "I(2)"},
		{[]float64{1, 0}, false, "diag[1, 0]"},
		{nil, true, "I(0)"},
	}
	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			m := newMassMatrix(tt.diag)
			if m.IsIdentity() != tt.identity {
				t.Errorf("IsIdentity() = %v, want %v", m.IsIdentity(), tt.identity)
			}
			if got := m.String(); got != tt.str {
				t.Errorf("String() = %q, want %q", got, tt.str)
			}
			for i, row := range m.Dense() {
				for j, v := range row {
					if v != m.At(i, j) {
						t.Errorf("Dense[%d][%d] = %v, At = %v", i, j, v, m.At(i, j))
					}
				}
			}
		})
	}
}
