// Package layer provides neural network layer implementations.
//
// Every layer follows the same two-call protocol:
//
//	y, cache, err := l.Forward(x, true)     // training mode
//	dx, grads, err := l.Backward(cache, dy)
//
// A training-mode Forward returns the state Backward needs (local derivative,
// input, dropout mask) as an explicit *Cache instead of stashing it on the
// layer. An inference-mode Forward returns a nil cache, and Backward rejects
// it with tensor.ErrStatePrecedence. Layers never modify their input.
package layer

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/FlavioCFOliveira/minidnn/internal/tensor"
)

// Layer is a neural network layer.
type Layer interface {
	// Forward transforms a batch. In training mode it also returns the cache
	// consumed by Backward.
	Forward(x *mat.Dense, training bool) (*mat.Dense, *Cache, error)

	// Backward maps dL/dy to dL/dx and returns the parameter gradients,
	// averaged over the batch.
	Backward(c *Cache, grad *mat.Dense) (*mat.Dense, Gradients, error)

	// Learnable reports whether the layer owns a trainable weight.
	Learnable() bool

	// HasBias reports whether the layer owns a trainable bias.
	HasBias() bool

	// Params returns the layer's own weight and bias matrices. Optimizers
	// update them in place.
	Params() Params

	// Clone returns a deep copy of the layer.
	Clone() Layer
}

// Params holds a layer's trainable tensors. Absent tensors are nil.
type Params struct {
	Weight *mat.Dense
	Bias   *mat.Dense
}

// Gradients holds dL/dweight and dL/dbias. Absent gradients are nil.
type Gradients struct {
	Weight *mat.Dense
	Bias   *mat.Dense
}

// Cache carries what a training-mode Forward computed for the matching
// Backward call.
type Cache struct {
	owner Layer

	// Input is the forward input, needed for weight gradients.
	Input *mat.Dense
	// Derivative is the elementwise local derivative dy/dx.
	Derivative *mat.Dense
	// Mask is the per-column dropout mask, shape [1,cols].
	Mask *mat.Dense
	// Rows is the batch size of the forward call.
	Rows int
}

func newCache(owner Layer, x *mat.Dense) *Cache {
	r, _ := x.Dims()
	return &Cache{owner: owner, Rows: r}
}

// check validates that c came from a training-mode Forward of owner and that
// grad matches the forward batch.
func (c *Cache) check(op string, owner Layer, grad *mat.Dense) error {
	if c == nil || c.owner != owner {
		return fmt.Errorf("%s: %w", op, tensor.ErrStatePrecedence)
	}
	if r, _ := grad.Dims(); r != c.Rows {
		return fmt.Errorf("%s: gradient has %d rows, forward batch had %d: %w", op, r, c.Rows, tensor.ErrShapeMismatch)
	}
	return nil
}

// Reseeder is implemented by layers that draw random numbers during training.
type Reseeder interface {
	Reseed(seed uint64)
}

var (
	_ Reseeder = (*Dropout)(nil)
	_ Reseeder = (*AddGaussianNoise)(nil)
	_ Reseeder = (*AddUniformNoise)(nil)
)

// Option configures layer construction.
type Option func(*options)

type options struct {
	seed   uint64
	seeded bool
}

// WithSeed makes the layer's random stream (initialization, dropout mask,
// noise) deterministic.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
		o.seeded = true
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if !o.seeded {
		o.seed = uint64(time.Now().UnixNano())
	}
	return o
}

// XavierUniform returns an [in,out] matrix drawn uniformly from
// [-sqrt(6/(in+out)), sqrt(6/(in+out))].
func XavierUniform(in, out int, src rand.Source) *mat.Dense {
	scale := math.Sqrt(6.0 / float64(in+out))
	dist := distuv.Uniform{Min: -scale, Max: scale, Src: src}
	data := make([]float64, in*out)
	for i := range data {
		data[i] = dist.Rand()
	}
	return mat.NewDense(in, out, data)
}

func cloneDense(m *mat.Dense) *mat.Dense {
	if m == nil {
		return nil
	}
	return mat.DenseCopyOf(m)
}

// stateless provides the capability methods of layers without parameters.
type stateless struct{}

func (stateless) Learnable() bool { return false }
func (stateless) HasBias() bool   { return false }
func (stateless) Params() Params  { return Params{} }
