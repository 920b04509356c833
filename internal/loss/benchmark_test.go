package loss

import (
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// randomProbs returns an r×c matrix of values in (0, 1).
func randomProbs(r, c int, seed uint64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, r*c)
	for i := range data {
		data[i] = 0.01 + 0.98*rng.Float64()
	}
	return mat.NewDense(r, c, data)
}

// BenchmarkForward benchmarks every registered loss on a 32×10 batch in
// training mode.
func BenchmarkForward(b *testing.B) {
	pred := randomProbs(32, 10, 1)
	truth := randomProbs(32, 10, 2)
	for _, name := range Names() {
		l, err := New(name)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_, _, _ = l.Forward(pred, truth, true)
			}
		})
	}
}

// BenchmarkMSEInference benchmarks MSE without the gradient.
func BenchmarkMSEInference(b *testing.B) {
	pred := randomProbs(32, 10, 1)
	truth := randomProbs(32, 10, 2)
	for i := 0; i < b.N; i++ {
		_, _, _ = MSE{}.Forward(pred, truth, false)
	}
}
