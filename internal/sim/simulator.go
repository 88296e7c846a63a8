package sim

import (
	"context"
	"log/slog"
	"math"

	"github.com/pkg/errors"
)

type Simulator struct {
	dyn        Dynamics
	integrator Integrator
	controller Controller
	observers  []Observer
	logger     *slog.Logger
}

// New returns a simulator. A nil controller applies zero inputs.
func New(dyn Dynamics, integrator Integrator, controller Controller) *Simulator {
	if controller == nil {
		controller = NewConstant(make(Control, dyn.ControlDim()))
	}
	return &Simulator{
		dyn:        dyn,
		integrator: integrator,
		controller: controller,
		observers:  make([]Observer, 0),
		logger:     slog.Default(),
	}
}

func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// SetLogger replaces the default logger.
func (s *Simulator) SetLogger(l *slog.Logger) { s.logger = l }

func (s *Simulator) Run(ctx context.Context, x0 State, cfg Config) (*Result, error) {
	if err := s.validate(x0, cfg); err != nil {
		return nil, err
	}

	steps := int(math.Round(cfg.Duration / cfg.Dt))
	result := &Result{
		States:   make([]State, 0, steps+1),
		Controls: make([]Control, 0, steps),
		Times:    make([]float64, 0, steps+1),
	}

	x := x0.Clone()
	t := 0.0
	dt := cfg.Dt

	result.States = append(result.States, x.Clone())
	result.Times = append(result.Times, t)

	for i := 0; t < cfg.Duration-1e-12*cfg.Duration; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		u := s.controller.Compute(x, t)
		if len(u) != s.dyn.ControlDim() {
			return result, &SimulationError{Step: i, Time: t, State: x.Clone(),
				Wrapped: errors.Wrapf(ErrDimensionMismatch, "controller returned %d inputs, want %d", len(u), s.dyn.ControlDim())}
		}

		for _, obs := range s.observers {
			obs.OnStep(x, u, t)
		}

		h := math.Min(dt, cfg.Duration-t)
		var newX State
		if cfg.Adaptive {
			var next float64
			var err error
			newX, h, next, err = s.adaptiveStep(x, u, t, h, cfg)
			if err != nil {
				return result, &SimulationError{Step: i, Time: t, State: x.Clone(), Wrapped: err}
			}
			dt = next
		} else {
			newX = s.integrator.Step(s.dyn, x, u, t, h)
		}

		if cfg.ValidateState && !newX.IsValid() {
			s.logger.Warn("simulation diverged", "step", i, "t", t)
			return result, &SimulationError{Step: i, Time: t, State: x.Clone(), Wrapped: ErrInvalidState}
		}

		x = newX
		t += h
		result.StepsTaken++

		result.States = append(result.States, x.Clone())
		result.Controls = append(result.Controls, u)
		result.Times = append(result.Times, t)
	}

	s.logger.Debug("simulation finished", "steps", result.StepsTaken, "t", t)
	return result, nil
}

func (s *Simulator) validate(x0 State, cfg Config) error {
	if cfg.Dt <= 0 {
		return errors.Wrapf(ErrConfig, "dt must be positive, got %f", cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return errors.Wrapf(ErrConfig, "duration must be positive, got %f", cfg.Duration)
	}
	if cfg.Adaptive && cfg.Tolerance <= 0 {
		return errors.Wrap(ErrConfig, "tolerance must be positive for adaptive stepping")
	}
	if len(x0) != s.dyn.StateDim() {
		return errors.Wrapf(ErrDimensionMismatch, "initial state has %d values, want %d", len(x0), s.dyn.StateDim())
	}
	return nil
}

// adaptiveStep returns the new state, the step size taken and the proposed
// next step size.
func (s *Simulator) adaptiveStep(x State, u Control, t, dt float64, cfg Config) (State, float64, float64, error) {
	if adaptive, ok := s.integrator.(AdaptiveIntegrator); ok {
		for {
			newX, next, err := adaptive.StepAdaptive(s.dyn, x, u, t, dt, cfg.Tolerance)
			if err == nil {
				return newX, dt, clamp(next, cfg), nil
			}
			if !errors.Is(err, ErrStepRejected) {
				return nil, 0, 0, err
			}
			if dt <= cfg.MinDt {
				return nil, 0, 0, errors.Wrapf(ErrStepTooSmall, "dt=%g", dt)
			}
			dt = math.Max(next, cfg.MinDt)
		}
	}

	x1 := s.integrator.Step(s.dyn, x, u, t, dt)
	xHalf := s.integrator.Step(s.dyn, x, u, t, dt/2)
	x2 := s.integrator.Step(s.dyn, xHalf, u, t+dt/2, dt/2)

	err := x1.Sub(x2).Norm()

	if err > cfg.Tolerance && dt > cfg.MinDt {
		return s.adaptiveStep(x, u, t, dt/2, cfg)
	}

	next := dt
	if err < cfg.Tolerance/10 {
		next = dt * 2
	}
	return x2, dt, clamp(next, cfg), nil
}

func clamp(dt float64, cfg Config) float64 {
	if cfg.MaxDt > 0 && dt > cfg.MaxDt {
		return cfg.MaxDt
	}
	if dt < cfg.MinDt {
		return cfg.MinDt
	}
	return dt
}
