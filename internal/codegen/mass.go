package codegen

import (
	"strconv"
	"strings"
)

// MassMatrix is the diagonal mass matrix of a model. An all-ones diagonal is
// stored as an identity marker.
type MassMatrix struct {
	n        int
	identity bool
	diag     []float64
}

func newMassMatrix(diag []float64) MassMatrix {
	for _, v := range diag {
		if v != 1 {
			return MassMatrix{n: len(diag), diag: diag}
		}
	}
	return Identity(len(diag))
}

// Identity returns the n×n identity mass matrix.
func Identity(n int) MassMatrix { return MassMatrix{n: n, identity: true} }

// Len returns the dimension of m.
func (m MassMatrix) Len() int { return m.n }

// IsIdentity reports whether every diagonal entry is 1.
func (m MassMatrix) IsIdentity() bool { return m.identity }

// Diag returns a copy of the diagonal.
func (m MassMatrix) Diag() []float64 {
	d := make([]float64, m.n)
	for i := range d {
		d[i] = m.At(i, i)
	}
	return d
}

// At returns entry (i, j).
func (m MassMatrix) At(i, j int) float64 {
	if i != j {
		return 0
	}
	if m.identity {
		return 1
	}
	return m.diag[i]
}

// Dense expands m into rows.
func (m MassMatrix) Dense() [][]float64 {
	rows := make([][]float64, m.n)
	for i := range rows {
		rows[i] = make([]float64, m.n)
		rows[i][i] = m.At(i, i)
	}
	return rows
}

// Singular reports whether m has an algebraic row.
func (m MassMatrix) Singular() bool {
	if m.identity {
		return false
	}
	for _, v := range m.diag {
		if v == 0 {
			return true
		}
	}
	return false
}

func (m MassMatrix) String() string {
	if m.identity {
		return "I(" + strconv.Itoa(m.n) + ")"
	}
	parts := make([]string, m.n)
	for i, v := range m.diag {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return "diag[" + strings.Join(parts, ", ") + "]"
}
