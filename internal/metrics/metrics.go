// Package metrics accumulates per-run statistics while a simulation steps.
// Every metric is a sim.Observer.
package metrics

import (
	"math"
	"sort"

	"github.com/san-kum/dynblocks/internal/codegen"
	"github.com/san-kum/dynblocks/internal/sim"
)

type Metric interface {
	sim.Observer
	Name() string
	Value() float64
	Reset()
}

// InputEffort is the mean over steps of the summed absolute inputs.
type InputEffort struct {
	sum     float64
	samples int
}

func NewInputEffort() *InputEffort { return &InputEffort{} }

func (c *InputEffort) Name() string { return "input_effort" }

func (c *InputEffort) OnStep(x sim.State, u sim.Control, t float64) {
	for _, val := range u {
		c.sum += math.Abs(val)
	}
	c.samples++
}

func (c *InputEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *InputEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

// Bounded is the fraction of steps whose state stays within threshold in
// every component.
type Bounded struct {
	threshold  float64
	violations int
	samples    int
}

func NewBounded(threshold float64) *Bounded {
	return &Bounded{threshold: threshold}
}

func (s *Bounded) Name() string { return "bounded" }

func (s *Bounded) OnStep(x sim.State, u sim.Control, t float64) {
	s.samples++
	for _, val := range x {
		if math.Abs(val) > s.threshold || math.IsNaN(val) {
			s.violations++
			break
		}
	}
}

func (s *Bounded) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Bounded) Reset() {
	s.violations = 0
	s.samples = 0
}

// ObservedPeak is the largest absolute value any observed signal of a model
// reaches over the run. It stays zero when nothing was eliminated. Samples
// that are NaN or infinite are skipped and counted in Skipped.
type ObservedPeak struct {
	model *codegen.Model
	p     []float64
	max   float64

	Skipped int
}

func NewObservedPeak(m *codegen.Model, params []float64) *ObservedPeak {
	return &ObservedPeak{model: m, p: params}
}

func (o *ObservedPeak) Name() string { return "observed_peak" }

func (o *ObservedPeak) OnStep(x sim.State, u sim.Control, t float64) {
	for _, v := range o.model.Observe(x, u, o.p, t) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			o.Skipped++
			continue
		}
		o.max = math.Max(o.max, math.Abs(v))
	}
}

func (o *ObservedPeak) Value() float64 { return o.max }

func (o *ObservedPeak) Reset() {
	o.max = 0
	o.Skipped = 0
}

// Set observes with several metrics at once.
type Set []Metric

// Default returns the metrics recorded for every run of sys.
func Default(sys *sim.ModelSystem) Set {
	return Set{
		NewInputEffort(),
		NewBounded(1e6),
		NewObservedPeak(sys.Model(), sys.Params()),
	}
}

func (s Set) OnStep(x sim.State, u sim.Control, t float64) {
	for _, m := range s {
		m.OnStep(x, u, t)
	}
}

func (s Set) Values() map[string]float64 {
	out := make(map[string]float64, len(s))
	for _, m := range s {
		out[m.Name()] = m.Value()
	}
	return out
}

// Names returns the metric names in sorted order.
func (s Set) Names() []string {
	names := make([]string, len(s))
	for i, m := range s {
		names[i] = m.Name()
	}
	sort.Strings(names)
	return names
}

func (s Set) Reset() {
	for _, m := range s {
		m.Reset()
	}
}

// Replay feeds a finished run to s, step by step as the simulator would.
func Replay(s Set, res *sim.Result) {
	for i, u := range res.Controls {
		if i >= len(res.States) || i >= len(res.Times) {
			return
		}
		s.OnStep(res.States[i], u, res.Times[i])
	}
}
