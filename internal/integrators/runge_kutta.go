package integrators

import (
	"math"

	"github.com/san-kum/dynblocks/internal/sim"
)

// RungeKutta steps any explicit tableau with a fixed step. It keeps stage
// vectors between steps and must not be shared between goroutines.
type RungeKutta struct {
	tab   *Tableau
	k     []sim.State
	stage sim.State
}

func NewRungeKutta(tab *Tableau) *RungeKutta {
	return &RungeKutta{tab: tab}
}

func NewEuler() *RungeKutta { return NewRungeKutta(euler) }
func NewHeun() *RungeKutta  { return NewRungeKutta(heun) }
func NewRK4() *RungeKutta   { return NewRungeKutta(rk4) }

// Tableau returns the coefficients the integrator steps with.
func (r *RungeKutta) Tableau() *Tableau { return r.tab }

func (r *RungeKutta) Step(dyn sim.Dynamics, x sim.State, u sim.Control, t, dt float64) sim.State {
	r.stages(dyn, x, u, t, dt)
	return r.combine(x, dt, r.tab.B)
}

func (r *RungeKutta) ensure(n int) {
	if len(r.stage) == n && len(r.k) == r.tab.Stages() {
		return
	}
	r.k = make([]sim.State, r.tab.Stages())
	for i := range r.k {
		r.k[i] = make(sim.State, n)
	}
	r.stage = make(sim.State, n)
}

// stages fills k with the derivative at every stage of one step.
func (r *RungeKutta) stages(dyn sim.Dynamics, x sim.State, u sim.Control, t, dt float64) {
	r.ensure(len(x))
	for i, row := range r.tab.A {
		copy(r.stage, x)
		for j, a := range row {
			if a == 0 {
				continue
			}
			for n := range r.stage {
				r.stage[n] += dt * a * r.k[j][n]
			}
		}
		copy(r.k[i], dyn.Derivative(r.stage, u, t+r.tab.C[i]*dt))
	}
}

// combine returns x + dt * sum_i w_i k_i.
func (r *RungeKutta) combine(x sim.State, dt float64, w []float64) sim.State {
	out := x.Clone()
	for i, wi := range w {
		if wi == 0 {
			continue
		}
		for n := range out {
			out[n] += dt * wi * r.k[i][n]
		}
	}
	return out
}

// Embedded is an adaptive Runge-Kutta method. Step advances with a fixed step;
// StepAdaptive also estimates the local error and proposes the next step.
type Embedded struct {
	RungeKutta
	safety   float64
	minScale float64
	maxScale float64
}

func NewEmbedded(tab *Tableau) *Embedded {
	return &Embedded{
		RungeKutta: RungeKutta{tab: tab},
		safety:     0.9,
		minScale:   0.2,
		maxScale:   10.0,
	}
}

func NewRK23() *Embedded { return NewEmbedded(bs23) }
func NewRK45() *Embedded { return NewEmbedded(dopri5) }

// StepAdaptive returns sim.ErrStepRejected along with a smaller proposed step
// when the scaled local error exceeds tol.
func (r *Embedded) StepAdaptive(dyn sim.Dynamics, x sim.State, u sim.Control, t, dt, tol float64) (sim.State, float64, error) {
	r.stages(dyn, x, u, t, dt)
	xNew := r.combine(x, dt, r.tab.B)

	errMax := 0.0
	for n := range x {
		est := 0.0
		for i, e := range r.tab.E {
			est += e * r.k[i][n]
		}
		scale := math.Abs(x[n]) + math.Abs(dt*r.k[0][n]) + 1e-10
		errMax = math.Max(errMax, math.Abs(dt*est)/scale)
	}

	ratio := errMax / tol
	order := float64(r.tab.Order)
	switch {
	case ratio > 1:
		scale := math.Max(r.minScale, r.safety*math.Pow(ratio, -1/(order-1)))
		return xNew, dt * scale, sim.ErrStepRejected
	case ratio > 0:
		return xNew, dt * math.Min(r.maxScale, r.safety*math.Pow(ratio, -1/order)), nil
	default:
		return xNew, dt * r.maxScale, nil
	}
}
