package net

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/minidnn/internal/tensor"
)

// ClassificationResult is a confusion matrix with its overall accuracy.
type ClassificationResult struct {
	// Confusion[i][j] counts samples of reference class i predicted as j.
	Confusion *mat.Dense
	// Accuracy is trace/total in percent.
	Accuracy float64
}

// ComputeConfusion builds the confusion matrix of predicted labels against
// reference labels, both [n,1]. Predictions are rounded half to even and
// clamped to the class range. classes <= 0 infers max(ref)+1.
func ComputeConfusion(ref, pred *mat.Dense, classes int) (ClassificationResult, error) {
	if err := tensor.CheckSameShape("confusion", ref, pred); err != nil {
		return ClassificationResult{}, err
	}
	if err := tensor.CheckCols("confusion", ref, 1); err != nil {
		return ClassificationResult{}, err
	}
	refLabels := Labels(ref)
	if classes <= 0 {
		classes = int(floats.Max(refLabels)) + 1
	}
	if classes <= 0 {
		return ClassificationResult{}, fmt.Errorf("confusion: no classes: %w", tensor.ErrInvalidConfiguration)
	}

	conf := mat.NewDense(classes, classes, nil)
	for i, want := range refLabels {
		k := int(want)
		if k < 0 || k >= classes {
			return ClassificationResult{}, fmt.Errorf("confusion: row %d: reference label %v outside [0, %d): %w", i, want, classes, tensor.ErrInvalidConfiguration)
		}
		got := int(math.RoundToEven(pred.At(i, 0)))
		got = min(max(got, 0), classes-1)
		conf.Set(k, got, conf.At(k, got)+1)
	}
	return ClassificationResult{
		Confusion: conf,
		Accuracy:  100 * mat.Trace(conf) / mat.Sum(conf),
	}, nil
}

// ToPercent normalizes every row of a confusion matrix to percentages.
// Rows with no samples stay zero.
func ToPercent(conf *mat.Dense) *mat.Dense {
	out := mat.DenseCopyOf(conf)
	r, _ := out.Dims()
	for i := 0; i < r; i++ {
		row := out.RawRowView(i)
		if s := floats.Sum(row); s != 0 {
			floats.Scale(100/s, row)
		}
	}
	return out
}
