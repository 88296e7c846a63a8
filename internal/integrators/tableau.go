package integrators

import (
	"math"

	"github.com/pkg/errors"
)

// ErrTableau indicates inconsistent Butcher coefficients.
var ErrTableau = errors.New("integrators: inconsistent tableau")

// Tableau holds the Butcher coefficients of an explicit Runge-Kutta method.
// Row i of A has exactly i entries. E holds the difference between B and the
// embedded lower-order weights, or is nil when the method has no error
// estimate.
type Tableau struct {
	Name  string
	Order int
	C     []float64
	A     [][]float64
	B     []float64
	E     []float64
}

// Stages returns the number of derivative evaluations per step.
func (tb *Tableau) Stages() int { return len(tb.C) }

// Embedded reports whether the tableau carries an error estimate.
func (tb *Tableau) Embedded() bool { return tb.E != nil }

// Validate checks the shape of the tableau and the row-sum and consistency
// conditions.
func (tb *Tableau) Validate() error {
	s := len(tb.C)
	if s == 0 || len(tb.A) != s || len(tb.B) != s {
		return errors.Wrapf(ErrTableau, "%s: %d nodes, %d rows, %d weights", tb.Name, s, len(tb.A), len(tb.B))
	}
	if tb.E != nil && len(tb.E) != s {
		return errors.Wrapf(ErrTableau, "%s: %d error weights for %d stages", tb.Name, len(tb.E), s)
	}
	const eps = 1e-12
	for i, row := range tb.A {
		if len(row) != i {
			return errors.Wrapf(ErrTableau, "%s: row %d has %d entries", tb.Name, i, len(row))
		}
		if math.Abs(sum(row)-tb.C[i]) > eps {
			return errors.Wrapf(ErrTableau, "%s: row %d sums to %g, node is %g", tb.Name, i, sum(row), tb.C[i])
		}
	}
	if math.Abs(sum(tb.B)-1) > eps {
		return errors.Wrapf(ErrTableau, "%s: weights sum to %g", tb.Name, sum(tb.B))
	}
	if tb.E != nil && math.Abs(sum(tb.E)) > eps {
		return errors.Wrapf(ErrTableau, "%s: error weights sum to %g", tb.Name, sum(tb.E))
	}
	return nil
}

func sum(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s
}

var (
	euler = &Tableau{
		Name:  "euler",
		Order: 1,
		C:     []float64{0},
		A:     [][]float64{{}},
		B:     []float64{1},
	}

	heun = &Tableau{
		Name:  "heun",
		Order: 2,
		C:     []float64{0, 1},
		A:     [][]float64{{}, {1}},
		B:     []float64{0.5, 0.5},
	}

	rk4 = &Tableau{
		Name:  "rk4",
		Order: 4,
		C:     []float64{0, 0.5, 0.5, 1},
		A:     [][]float64{{}, {0.5}, {0, 0.5}, {0, 0, 1}},
		B:     []float64{1.0 / 6, 1.0 / 3, 1.0 / 3, 1.0 / 6},
	}

	// Bogacki-Shampine 3(2). The last stage evaluates at the new state.
	bs23 = &Tableau{
		Name:  "rk23",
		Order: 3,
		C:     []float64{0, 0.5, 0.75, 1},
		A: [][]float64{
			{},
			{0.5},
			{0, 0.75},
			{2.0 / 9, 1.0 / 3, 4.0 / 9},
		},
		B: []float64{2.0 / 9, 1.0 / 3, 4.0 / 9, 0},
		E: []float64{
			2.0/9 - 7.0/24,
			1.0/3 - 1.0/4,
			4.0/9 - 1.0/3,
			-1.0 / 8,
		},
	}

	// Dormand-Prince 5(4). The seventh stage evaluates at the new state.
	dopri5 = &Tableau{
		Name:  "rk45",
		Order: 5,
		C:     []float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1},
		A: [][]float64{
			{},
			{1.0 / 5},
			{3.0 / 40, 9.0 / 40},
			{44.0 / 45, -56.0 / 15, 32.0 / 9},
			{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
			{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
			{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
		},
		B: []float64{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84, 0},
		E: []float64{
			35.0/384 - 5179.0/57600,
			0,
			500.0/1113 - 7571.0/16695,
			125.0/192 - 393.0/640,
			-2187.0/6784 + 92097.0/339200,
			11.0/84 - 187.0/2100,
			-1.0 / 40,
		},
	}
)
