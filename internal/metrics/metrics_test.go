package metrics

import (
	"context"
	"math"
	"reflect"
	"testing"

	"github.com/san-kum/dynblocks/internal/blocks"
	"github.com/san-kum/dynblocks/internal/codegen"
	"github.com/san-kum/dynblocks/internal/sim"
	"github.com/san-kum/dynblocks/internal/symbolic"
)

func mustBlock(t *testing.T, name string, vars, params, inputs, outputs []string, srcs ...string) *blocks.Block {
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

// chainModel has states [x y] and observes out = x.
func chainModel(t *testing.T) *codegen.Model {
	return chainModelOf(t, "out ~ x")
}

// chainModelOf feeds out, defined by outEq, from block A into block B.
func chainModelOf(t *testing.T, outEq string) *codegen.Model {
	t.Helper()
	src := mustBlock(t, "A", []string{"x", "out"}, []string{"in"}, []string{"in"}, []string{"out"},
		"D(x) ~ -x + in",
		outEq)
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
	m, err := codegen.Generate(flat, codegen.Config{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return m
}

func TestInputEffort(t *testing.T) {
	m := NewInputEffort()
	if m.Value() != 0 {
		t.Errorf("empty value = %v", m.Value())
	}
	m.OnStep(sim.State{0}, sim.Control{1, -1}, 0)
	m.OnStep(sim.State{0}, sim.Control{0, 0}, 0.1)
	if m.Value() != 1 {
		t.Errorf("value = %v, want 1", m.Value())
	}
	m.Reset()
	if m.Value() != 0 {
		t.Errorf("after reset = %v", m.Value())
	}
}

func TestBounded(t *testing.T) {
	tests := []struct {
		name   string
		states []sim.State
		want   float64
	}{
		{name: "empty", want: 1},
		{name: "inside", states: []sim.State{{1, -1}, {2, 0}}, want: 1},
		{name: "two out", states: []sim.State{{1, 0}, {0, -20}, {3, 3}, {11, 11}}, want: 0.5},
		{name: "nan", states: []sim.State{{math.NaN()}}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewBounded(10)
			for _, x := range tt.states {
				m.OnStep(x, nil, 0)
			}
			if got := m.Value(); got != tt.want {
				t.Errorf("value = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestObservedPeak(t *testing.T) {
	m := NewObservedPeak(chainModel(t), nil)
	m.OnStep(sim.State{3, 1}, sim.Control{0}, 0)
	m.OnStep(sim.State{-4, 1}, sim.Control{0}, 0.1)
	m.OnStep(sim.State{2, 1}, sim.Control{0}, 0.2)
	if m.Value() != 4 {
		t.Errorf("peak = %v, want 4", m.Value())
	}
	m.Reset()
	if m.Value() != 0 {
		t.Errorf("after reset = %v", m.Value())
	}
}

func TestObservedPeakSkipsNonFinite(t *testing.T) {
	m := NewObservedPeak(chainModelOf(t, "out ~ sqrt(x)"), nil)
	m.OnStep(sim.State{4, 0}, sim.Control{0}, 0)
	m.OnStep(sim.State{-1, 0}, sim.Control{0}, 0.1)
	m.OnStep(sim.State{1, 0}, sim.Control{0}, 0.2)

	if m.Value() != 2 {
		t.Errorf("peak = %v, want 2", m.Value())
	}
	if m.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", m.Skipped)
	}
	m.Reset()
	if m.Skipped != 0 {
		t.Errorf("skipped after reset = %d", m.Skipped)
	}
}

func TestSetWithSimulator(t *testing.T) {
	sys, err := sim.FromModel(chainModel(t), nil)
	if err != nil {
		t.Fatalf("FromModel: %v", err)
	}

	set := Default(sys)
	if got := set.Names(); !reflect.DeepEqual(got, []string{"bounded", "input_effort", "observed_peak"}) {
		t.Errorf("names = %v", got)
	}

	s := sim.New(sys, eulerStep{}, sim.NewConstant(sim.Control{2}))
	s.AddObserver(set)
	cfg := sim.DefaultConfig()
	cfg.Dt = 0.1
	cfg.Duration = 1
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	res, err := s.Run(ctx, sim.State{1, 0}, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	vals := set.Values()
	if vals["input_effort"] != 2 {
		t.Errorf("input_effort = %v, want 2", vals["input_effort"])
	}
	if vals["bounded"] != 1 {
		t.Errorf("bounded = %v, want 1", vals["bounded"])
	}
	// x rises from 1 toward the input 2 and never exceeds it.
	if p := vals["observed_peak"]; p < 1 || p > 2 {
		t.Errorf("observed_peak = %v, want within [1, 2]", p)
	}

	set.Reset()
	if set.Values()["observed_peak"] != 0 {
		t.Error("Reset did not clear metrics")
	}

	Replay(set, res)
	if !reflect.DeepEqual(set.Values(), vals) {
		t.Errorf("replayed %v, observed %v", set.Values(), vals)
	}
}

type eulerStep struct{}

func (eulerStep) Step(d sim.Dynamics, x sim.State, u sim.Control, t, dt float64) sim.State {
	dx := d.Derivative(x, u, t)
	out := make(sim.State, len(x))
	for i := range x {
		out[i] = x[i] + dt*dx[i]
	}
	return out
}
