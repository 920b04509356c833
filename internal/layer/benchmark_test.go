package layer

import (
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/minidnn/internal/activations"
)

// randomDense returns an r×c matrix uniform in [0, 1).
func randomDense(r, c int, seed uint64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.Float64()
	}
	return mat.NewDense(r, c, data)
}

// BenchmarkDenseForward benchmarks the inference pass of a dense layer.
func BenchmarkDenseForward(b *testing.B) {
	l := NewDense(784, 256, WithSeed(1))
	x := randomDense(32, 784, 2)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = l.Forward(x, false)
	}
}

// BenchmarkDenseFull benchmarks a training forward and backward pass.
func BenchmarkDenseFull(b *testing.B) {
	l := NewDense(784, 256, WithSeed(1))
	x := randomDense(32, 784, 2)
	grad := randomDense(32, 256, 3)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, c, _ := l.Forward(x, true)
		_, _, _ = l.Backward(c, grad)
	}
}

// BenchmarkActivationFull benchmarks a Tanh layer forward and backward.
func BenchmarkActivationFull(b *testing.B) {
	l := NewActivation(activations.Tanh)
	x := randomDense(32, 256, 2)
	grad := randomDense(32, 256, 3)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, c, _ := l.Forward(x, true)
		_, _, _ = l.Backward(c, grad)
	}
}

// BenchmarkSoftmaxForward benchmarks the softmax of a 32×10 batch.
func BenchmarkSoftmaxForward(b *testing.B) {
	l := NewSoftmax()
	x := randomDense(32, 10, 2)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = l.Forward(x, true)
	}
}

// BenchmarkDropoutForward benchmarks mask drawing in training mode.
func BenchmarkDropoutForward(b *testing.B) {
	l := NewDropout(0.5, WithSeed(1))
	x := randomDense(32, 256, 2)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = l.Forward(x, true)
	}
}
