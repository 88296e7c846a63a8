package sim

import "github.com/pkg/errors"

// Domain errors for simulation operations.
var (
	// ErrInvalidState indicates a state vector with NaN or Inf components.
	ErrInvalidState = errors.New("sim: invalid state (NaN or Inf detected)")

	// ErrDimensionMismatch indicates mismatched state/control dimensions.
	ErrDimensionMismatch = errors.New("sim: dimension mismatch between state and system")

	// ErrAlgebraic indicates a model with algebraic equations, which the
	// explicit integrators cannot advance.
	ErrAlgebraic = errors.New("sim: model has algebraic equations (singular mass matrix)")

	// ErrUnknownSymbol indicates a value given for a name the model does
	// not declare, or a parameter left without a value.
	ErrUnknownSymbol = errors.New("sim: unknown or unbound symbol")

	// ErrStepRejected is returned by adaptive integrators when the local
	// error exceeds the tolerance. The proposed step size is still returned.
	ErrStepRejected = errors.New("sim: step rejected")

	// ErrStepTooSmall indicates adaptive timestep became too small.
	ErrStepTooSmall = errors.New("sim: adaptive timestep below minimum")

	// ErrConfig indicates an invalid run configuration.
	ErrConfig = errors.New("sim: invalid configuration")
)

// SimulationError wraps an error with the step it occurred at.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return errors.Wrapf(e.Wrapped, "step %d (t=%.4f)", e.Step, e.Time).Error()
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
