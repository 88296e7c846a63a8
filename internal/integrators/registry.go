package integrators

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/san-kum/dynblocks/internal/sim"
)

// ErrUnknown indicates an integrator name missing from the registry.
var ErrUnknown = errors.New("integrators: unknown integrator")

var registry = map[string]func() sim.Integrator{
	"euler": func() sim.Integrator { return NewEuler() },
	"heun":  func() sim.Integrator { return NewHeun() },
	"rk4":   func() sim.Integrator { return NewRK4() },
	"rk23":  func() sim.Integrator { return NewRK23() },
	"rk45":  func() sim.Integrator { return NewRK45() },
}

// Factory returns a constructor for the named integrator, for callers that
// need one instance per goroutine.
func Factory(name string) (func() sim.Integrator, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknown, "%q (have %v)", name, Names())
	}
	return fn, nil
}

// Names lists the registered integrators in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
