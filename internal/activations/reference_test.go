package activations

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Reference values from torch.nn.functional on
// x = torch.tensor([-2.0, -0.75, 0.0, 0.3, 1.5], dtype=torch.float64).
func TestAgainstPyTorchReference(t *testing.T) {
	xs := []float64{-2.0, -0.75, 0.0, 0.3, 1.5}
	tests := []struct {
		kind Kind
		want []float64
	}{
		{ReLU, []float64{0, 0, 0, 0.3, 1.5}},
		{LeakyReLU, []float64{-0.02, -0.0075, 0, 0.3, 1.5}},
		{Sigmoid, []float64{0.11920292202211755, 0.320821300824607, 0.5, 0.574442516811659, 0.8175744761936437}},
		{Tanh, []float64{-0.9640275800758169, -0.6351489523872873, 0, 0.2913126124515909, 0.9051482536448664}},
		{Softplus, []float64{0.1269280110429725, 0.38687100611489994, 0.6931471805599453, 0.8543552444685272, 1.7014132779827524}},
		{SiLU, []float64{-0.2384058440442351, -0.24061597561845527, 0, 0.1723327550434977, 1.2263617142904655}},
		{LogSigmoid, []float64{-2.1269280110429727, -1.1368710061148999, -0.6931471805599453, -0.554355244468527, -0.2014132779827524}},
		{HardTanh, []float64{-1, -0.75, 0, 0.3, 1}},
		{ReLU6, []float64{0, 0, 0, 0.3, 1.5}},
		{Softsign, []float64{-0.6666666666666666, -0.42857142857142855, 0, 0.23076923076923075, 0.6}},
		{TanhShrink, []float64{-1.035972419924183, -0.1148510476127127, 0, 0.008687387548409087, 0.5948517463551336}},
		{HardShrink, []float64{-2, -0.75, 0, 0, 1.5}},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			for i, x := range xs {
				assert.InDelta(t, tt.want[i], tt.kind.Activate(x), 1e-12, "x=%v", x)
			}
		})
	}
}
