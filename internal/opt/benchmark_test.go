package opt

import (
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// randomDense returns an r×c matrix uniform in [-1, 1).
func randomDense(r, c int, seed uint64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, r*c)
	for i := range data {
		data[i] = 2*rng.Float64() - 1
	}
	return mat.NewDense(r, c, data)
}

// BenchmarkOptimize benchmarks one update of a 100×100 weight matrix for
// every registered optimizer.
func BenchmarkOptimize(b *testing.B) {
	dw := randomDense(100, 100, 2)
	for _, name := range Names() {
		o, err := New(name)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(name, func(b *testing.B) {
			w := randomDense(100, 100, 1)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := o.Optimize(w, dw); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkClone benchmarks building a fresh Adam from a prototype.
func BenchmarkClone(b *testing.B) {
	proto := NewAdam(AdamConfig{})
	for i := 0; i < b.N; i++ {
		_ = proto.Clone()
	}
}
