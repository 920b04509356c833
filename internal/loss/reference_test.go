package loss

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// Reference values from torch.nn with reduction='none' on
// p = [0.1, 0.6, 0.9, 0.25], t = [0, 1, 1, 0.5] (float64).
var (
	refPred  = mat.NewDense(1, 4, []float64{0.1, 0.6, 0.9, 0.25})
	refTruth = mat.NewDense(1, 4, []float64{0, 1, 1, 0.5})
)

func TestBCEAgainstPyTorchReference(t *testing.T) {
	l, g, err := BinaryCrossEntropy{}.Forward(refPred, refTruth, true)
	require.NoError(t, err)
	// torch.nn.BCELoss(reduction='none')
	assert.InDeltaSlice(t, []float64{0.10536051565782628, 0.5108256237659907, 0.10536051565782628, 0.8369882167858358},
		l.RawMatrix().Data, 1e-12)
	// p.grad after loss.backward(torch.ones_like(p))
	assert.InDeltaSlice(t, []float64{1.1111111111111112, -1.6666666666666667, -1.1111111111111112, -1.3333333333333335},
		g.RawMatrix().Data, 1e-12)
}

func TestL1AgainstPyTorchReference(t *testing.T) {
	l, g, err := MAE{}.Forward(refPred, refTruth, true)
	require.NoError(t, err)
	// torch.nn.L1Loss(reduction='none') and its gradient
	assert.InDeltaSlice(t, []float64{0.1, 0.4, 0.1, 0.25}, l.RawMatrix().Data, 1e-12)
	assert.Equal(t, []float64{1, -1, -1, -1}, g.RawMatrix().Data)
}

func TestMSEAgainstPyTorchReference(t *testing.T) {
	l, g, err := MSE{}.Forward(refPred, refTruth, true)
	require.NoError(t, err)
	// Half of torch.nn.MSELoss(reduction='none'); the gradient is halved too.
	assert.InDeltaSlice(t, []float64{0.005, 0.08, 0.005, 0.03125}, l.RawMatrix().Data, 1e-12)
	assert.InDeltaSlice(t, []float64{0.1, -0.4, -0.1, -0.25}, g.RawMatrix().Data, 1e-12)
}
