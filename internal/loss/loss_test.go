package loss

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/minidnn/internal/tensor"
)

func TestElementwiseLosses(t *testing.T) {
	pred := mat.NewDense(2, 2, []float64{1, 2, 3, -1})
	truth := mat.NewDense(2, 2, []float64{1, 0, 3.5, 1})

	tests := []struct {
		loss     Loss
		wantLoss []float64
		wantGrad []float64
	}{
		{MSE{}, []float64{0, 2, 0.125, 2}, []float64{0, 2, -0.5, -2}},
		{MAE{}, []float64{0, 2, 0.5, 2}, []float64{0, 1, -1, -1}},
		{LogCosh{},
			[]float64{0, math.Log(math.Cosh(2)), math.Log(math.Cosh(-0.5)), math.Log(math.Cosh(-2))},
			[]float64{0, math.Tanh(2), math.Tanh(-0.5), math.Tanh(-2)}},
	}
	for _, tt := range tests {
		t.Run(tt.loss.Name(), func(t *testing.T) {
			l, g, err := tt.loss.Forward(pred, truth, true)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.wantLoss, l.RawMatrix().Data, 1e-12)
			assert.InDeltaSlice(t, tt.wantGrad, g.RawMatrix().Data, 1e-12)

			_, g, err = tt.loss.Forward(pred, truth, false)
			require.NoError(t, err)
			assert.Nil(t, g)
		})
	}
}

func TestShapeMismatch(t *testing.T) {
	pred := mat.NewDense(2, 2, nil)
	truth := mat.NewDense(2, 1, nil)
	for _, l := range []Loss{MSE{}, MAE{}, LogCosh{}, BinaryCrossEntropy{}, CrossEntropy{}} {
		_, _, err := l.Forward(pred, truth, true)
		assert.ErrorIs(t, err, tensor.ErrShapeMismatch, l.Name())
	}
}

func TestBinaryCrossEntropy(t *testing.T) {
	pred := mat.NewDense(1, 2, []float64{0.8, 0.3})
	truth := mat.NewDense(1, 2, []float64{1, 0})
	l, g, err := BinaryCrossEntropy{}.Forward(pred, truth, true)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-math.Log(0.8), -math.Log(0.7)}, l.RawMatrix().Data, 1e-12)
	assert.InDeltaSlice(t, []float64{-1 / 0.8, 1 / 0.7}, g.RawMatrix().Data, 1e-12)
}

func TestCrossEntropyRowMean(t *testing.T) {
	pred := mat.NewDense(2, 3, []float64{
		0.7, 0.2, 0.1,
		0.1, 0.1, 0.8,
	})
	truth := mat.NewDense(2, 3, []float64{
		1, 0, 0,
		0, 0, 1,
	})
	l, g, err := CrossEntropy{}.Forward(pred, truth, true)
	require.NoError(t, err)

	r, c := l.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 1, c)
	assert.InDelta(t, -math.Log(0.7)/3, l.At(0, 0), 1e-12)
	assert.InDelta(t, -math.Log(0.8)/3, l.At(1, 0), 1e-12)

	assert.InDelta(t, -1/0.7, g.At(0, 0), 1e-12)
	assert.InDelta(t, 1/0.8, g.At(0, 1), 1e-12)
	assert.InDelta(t, 1/0.9, g.At(0, 2), 1e-12)
}

// TestProbabilityClipping feeds p=0 and p=1, which must stay finite and
// equal the formula at the clipped probability.
func TestProbabilityClipping(t *testing.T) {
	pred := mat.NewDense(2, 2, []float64{0, 1, 1, 0})
	truth := mat.NewDense(2, 2, []float64{1, 0, 1, 0})

	var warnings []tensor.NumericDomainWarning
	hook := func(w tensor.NumericDomainWarning) { warnings = append(warnings, w) }

	for _, l := range []Loss{BinaryCrossEntropy{OnClip: hook}, CrossEntropy{OnClip: hook}} {
		loss, grad, err := l.Forward(pred, truth, true)
		require.NoError(t, err, l.Name())
		assert.False(t, tensor.HasNonFinite(loss), l.Name())
		assert.False(t, tensor.HasNonFinite(grad), l.Name())
	}

	bce, _, err := BinaryCrossEntropy{}.Forward(pred, truth, false)
	require.NoError(t, err)
	worst := -math.Log(1e-8)
	assert.InDelta(t, worst, bce.At(0, 0), 1e-9)
	assert.InDelta(t, worst, bce.At(0, 1), 1e-9)
	assert.InDelta(t, 0, bce.At(1, 0), 1e-12)

	ce, _, err := CrossEntropy{}.Forward(pred, truth, false)
	require.NoError(t, err)
	assert.InDelta(t, worst/2, ce.At(0, 0), 1e-9)
	assert.InDelta(t, 0, ce.At(1, 0), 1e-12)

	require.Len(t, warnings, 2)
	assert.Equal(t, tensor.NumericDomainWarning{Loss: "BinaryCrossEntropy", Clipped: 4, Total: 4}, warnings[0])
	assert.Equal(t, "CrossEntropy", warnings[1].Loss)
	assert.Contains(t, warnings[1].String(), "clipped 4/4")
}

func TestNoWarningWithoutClipping(t *testing.T) {
	called := false
	l := CrossEntropy{OnClip: func(tensor.NumericDomainWarning) { called = true }}
	_, _, err := l.Forward(mat.NewDense(1, 2, []float64{0.4, 0.6}), mat.NewDense(1, 2, []float64{0, 1}), true)
	require.NoError(t, err)
	assert.False(t, called)
}

func TestRegistry(t *testing.T) {
	for _, name := range Names() {
		l, err := New(name)
		require.NoError(t, err)
		assert.Equal(t, name, l.Name())
	}
	l, err := New("mse")
	require.NoError(t, err)
	assert.Equal(t, MSE{}, l)

	_, err = New("hinge")
	assert.Error(t, err)
	assert.Len(t, Names(), 5)
}
