package layer

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// noise is shared by the noise layers: it adds a random draw to every element
// during training, is the identity at inference and has an identity backward.
type noise struct {
	stateless

	seed  uint64
	level float64
	draw  func() float64
}

func (n *noise) forward(owner Layer, x *mat.Dense, training bool) (*mat.Dense, *Cache, error) {
	y := mat.DenseCopyOf(x)
	if !training {
		return y, nil, nil
	}
	r, c := y.Dims()
	for i := 0; i < r; i++ {
		row := y.RawRowView(i)
		for j := range row[:c] {
			row[j] += n.draw()
		}
	}
	return y, newCache(owner, x), nil
}

func (n *noise) backward(op string, owner Layer, c *Cache, grad *mat.Dense) (*mat.Dense, Gradients, error) {
	if err := c.check(op, owner, grad); err != nil {
		return nil, Gradients{}, err
	}
	return mat.DenseCopyOf(grad), Gradients{}, nil
}

// AddGaussianNoise adds N(0, stdev²) noise to every element during training.
type AddGaussianNoise struct {
	noise
}

// NewAddGaussianNoise creates a gaussian noise layer. stdev must be >= 0.
func NewAddGaussianNoise(stdev float64, opts ...Option) *AddGaussianNoise {
	if stdev < 0 {
		panic(fmt.Sprintf("layer: negative noise stdev %v", stdev))
	}
	return newGaussianNoise(stdev, buildOptions(opts).seed)
}

func newGaussianNoise(stdev float64, seed uint64) *AddGaussianNoise {
	dist := distuv.Normal{Mu: 0, Sigma: stdev, Src: rand.NewSource(seed)}
	return &AddGaussianNoise{noise{seed: seed, level: stdev, draw: dist.Rand}}
}

// Stdev returns the noise standard deviation.
func (l *AddGaussianNoise) Stdev() float64 { return l.level }

func (l *AddGaussianNoise) Forward(x *mat.Dense, training bool) (*mat.Dense, *Cache, error) {
	return l.forward(l, x, training)
}

func (l *AddGaussianNoise) Backward(c *Cache, grad *mat.Dense) (*mat.Dense, Gradients, error) {
	return l.backward("AddGaussianNoise.Backward", l, c, grad)
}

// Reseed restarts the noise stream from seed.
func (l *AddGaussianNoise) Reseed(seed uint64) {
	*l = *newGaussianNoise(l.level, seed)
}

func (l *AddGaussianNoise) Clone() Layer {
	return newGaussianNoise(l.level, l.seed)
}

// AddUniformNoise adds noise drawn uniformly from [0, level) during training.
type AddUniformNoise struct {
	noise
}

// NewAddUniformNoise creates a uniform noise layer. level must be >= 0.
func NewAddUniformNoise(level float64, opts ...Option) *AddUniformNoise {
	if level < 0 {
		panic(fmt.Sprintf("layer: negative noise level %v", level))
	}
	return newUniformNoise(level, buildOptions(opts).seed)
}

func newUniformNoise(level float64, seed uint64) *AddUniformNoise {
	dist := distuv.Uniform{Min: 0, Max: level, Src: rand.NewSource(seed)}
	return &AddUniformNoise{noise{seed: seed, level: level, draw: dist.Rand}}
}

// Level returns the upper bound of the noise range.
func (l *AddUniformNoise) Level() float64 { return l.level }

func (l *AddUniformNoise) Forward(x *mat.Dense, training bool) (*mat.Dense, *Cache, error) {
	return l.forward(l, x, training)
}

func (l *AddUniformNoise) Backward(c *Cache, grad *mat.Dense) (*mat.Dense, Gradients, error) {
	return l.backward("AddUniformNoise.Backward", l, c, grad)
}

// Reseed restarts the noise stream from seed.
func (l *AddUniformNoise) Reseed(seed uint64) {
	*l = *newUniformNoise(l.level, seed)
}

func (l *AddUniformNoise) Clone() Layer {
	return newUniformNoise(l.level, l.seed)
}
