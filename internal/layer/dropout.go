package layer

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/FlavioCFOliveira/minidnn/internal/tensor"
)

// Dropout implements dropout regularization.
// During training, every input column is zeroed with probability rate and the
// survivors are scaled by 1/(1-rate). One mask is drawn per Forward call and
// shared by all rows of the batch. During inference, inputs pass unchanged.
type Dropout struct {
	stateless

	rate float64
	seed uint64
	bern distuv.Bernoulli
}

// NewDropout creates a new dropout layer. rate must be in [0, 1).
func NewDropout(rate float64, opts ...Option) *Dropout {
	if rate < 0 || rate >= 1 {
		panic(fmt.Sprintf("layer: dropout rate %v outside [0, 1)", rate))
	}
	o := buildOptions(opts)
	return newDropout(rate, o.seed)
}

func newDropout(rate float64, seed uint64) *Dropout {
	return &Dropout{
		rate: rate,
		seed: seed,
		bern: distuv.Bernoulli{P: 1 - rate, Src: rand.NewSource(seed)},
	}
}

// Rate returns the drop probability.
func (d *Dropout) Rate() float64 {
	return d.rate
}

func (d *Dropout) Forward(x *mat.Dense, training bool) (*mat.Dense, *Cache, error) {
	if !training {
		return mat.DenseCopyOf(x), nil, nil
	}

	r, c := x.Dims()
	keep := 1 / (1 - d.rate)
	mask := make([]float64, c)
	for j := range mask {
		mask[j] = d.bern.Rand() * keep
	}

	y := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		floats.MulTo(y.RawRowView(i), x.RawRowView(i), mask)
	}

	cache := newCache(d, x)
	cache.Mask = mat.NewDense(1, c, mask)
	return y, cache, nil
}

// Backward returns grad scaled by the mask used in the forward pass.
func (d *Dropout) Backward(c *Cache, grad *mat.Dense) (*mat.Dense, Gradients, error) {
	if err := c.check("Dropout.Backward", d, grad); err != nil {
		return nil, Gradients{}, err
	}
	_, cols := c.Mask.Dims()
	if err := tensor.CheckCols("Dropout.Backward", grad, cols); err != nil {
		return nil, Gradients{}, err
	}

	mask := c.Mask.RawRowView(0)
	dx := mat.NewDense(c.Rows, cols, nil)
	for i := 0; i < c.Rows; i++ {
		floats.MulTo(dx.RawRowView(i), grad.RawRowView(i), mask)
	}
	return dx, Gradients{}, nil
}

// Reseed restarts the mask stream from seed.
func (d *Dropout) Reseed(seed uint64) {
	d.seed = seed
	d.bern.Src = rand.NewSource(seed)
}

// Clone returns a dropout layer whose mask stream restarts from the same seed.
func (d *Dropout) Clone() Layer {
	return newDropout(d.rate, d.seed)
}
