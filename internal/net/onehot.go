package net

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/minidnn/internal/tensor"
)

// OneHot expands a [n,1] column of integer class labels into an [n,classes]
// one-hot matrix.
func OneHot(labels *mat.Dense, classes int) (*mat.Dense, error) {
	r, c := labels.Dims()
	if c != 1 {
		return nil, fmt.Errorf("one-hot: labels have %d columns, want 1: %w", c, tensor.ErrShapeMismatch)
	}
	out := mat.NewDense(r, classes, nil)
	for i := 0; i < r; i++ {
		v := labels.At(i, 0)
		k := int(v)
		if v != math.Trunc(v) || k < 0 || k >= classes {
			return nil, fmt.Errorf("one-hot: row %d: label %v outside [0, %d): %w", i, v, classes, tensor.ErrInvalidConfiguration)
		}
		out.Set(i, k, 1)
	}
	return out, nil
}

// Labels reduces truth to one class label per row: the arg-max of every row
// when truth has several columns, the column itself otherwise.
func Labels(truth *mat.Dense) []float64 {
	r, c := truth.Dims()
	labels := make([]float64, r)
	if c == 1 {
		mat.Col(labels, 0, truth)
		return labels
	}
	for i, k := range tensor.ArgMaxRows(truth) {
		labels[i] = float64(k)
	}
	return labels
}
