// Package tensor provides shape checks and reductions shared by layers,
// losses and optimizers. Every tensor is a *mat.Dense with one sample per row.
package tensor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// SameShape reports whether a and b have identical dimensions.
func SameShape(a, b mat.Matrix) bool {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	return ar == br && ac == bc
}

// CheckSameShape returns ErrShapeMismatch wrapped with op context when a and b differ.
func CheckSameShape(op string, a, b mat.Matrix) error {
	if SameShape(a, b) {
		return nil
	}
	ar, ac := a.Dims()
	br, bc := b.Dims()
	return fmt.Errorf("%s: %dx%d vs %dx%d: %w", op, ar, ac, br, bc, ErrShapeMismatch)
}

// CheckCols returns ErrShapeMismatch when m does not have cols columns.
func CheckCols(op string, m mat.Matrix, cols int) error {
	if _, c := m.Dims(); c != cols {
		return fmt.Errorf("%s: got %d columns, want %d: %w", op, c, cols, ErrShapeMismatch)
	}
	return nil
}

// Sign returns -1, 0 or 1.
func Sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// Map returns a new matrix with f applied to every element of m.
func Map(m mat.Matrix, f func(float64) float64) *mat.Dense {
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 { return f(v) }, m)
	return &out
}

// Mean returns the mean of all elements of m.
func Mean(m mat.Matrix) float64 {
	r, c := m.Dims()
	return mat.Sum(m) / float64(r*c)
}

// ColMeans returns the [1,c] row vector of column means of m.
func ColMeans(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(1, c, nil)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, m)
		out.Set(0, j, stat.Mean(col, nil))
	}
	return out
}

// ArgMaxRows returns the column index of the largest value of every row.
// Ties resolve to the first index.
func ArgMaxRows(m *mat.Dense) []int {
	r, _ := m.Dims()
	idx := make([]int, r)
	for i := 0; i < r; i++ {
		idx[i] = floats.MaxIdx(m.RawRowView(i))
	}
	return idx
}

// SelectRows copies the rows of m listed in idx, in order.
func SelectRows(m *mat.Dense, idx []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for i, k := range idx {
		out.SetRow(i, m.RawRowView(k))
	}
	return out
}

// RowRange copies rows [start,end) of m.
func RowRange(m *mat.Dense, start, end int) *mat.Dense {
	_, c := m.Dims()
	return mat.DenseCopyOf(m.Slice(start, end, 0, c))
}

// HasNonFinite reports whether m contains NaN or Inf.
func HasNonFinite(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return true
			}
		}
	}
	return false
}
