package layer

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/minidnn/internal/tensor"
)

// Bias adds a learned per-column offset: y = x + b, with b of shape [1,size].
type Bias struct {
	bias *mat.Dense
	size int
}

// NewBias creates a zero-initialized bias layer for inputs of width size.
func NewBias(size int) *Bias {
	if size <= 0 {
		panic(fmt.Sprintf("layer: invalid bias size %d", size))
	}
	return &Bias{bias: mat.NewDense(1, size, nil), size: size}
}

func (b *Bias) Forward(x *mat.Dense, training bool) (*mat.Dense, *Cache, error) {
	if err := tensor.CheckCols("Bias.Forward", x, b.size); err != nil {
		return nil, nil, err
	}
	y := mat.DenseCopyOf(x)
	r, _ := y.Dims()
	row := b.bias.RawRowView(0)
	for i := 0; i < r; i++ {
		floats.Add(y.RawRowView(i), row)
	}
	if !training {
		return y, nil, nil
	}
	return y, newCache(b, x), nil
}

// Backward passes grad through and returns its column means as the bias gradient.
func (b *Bias) Backward(c *Cache, grad *mat.Dense) (*mat.Dense, Gradients, error) {
	if err := c.check("Bias.Backward", b, grad); err != nil {
		return nil, Gradients{}, err
	}
	if err := tensor.CheckCols("Bias.Backward", grad, b.size); err != nil {
		return nil, Gradients{}, err
	}
	return mat.DenseCopyOf(grad), Gradients{Bias: tensor.ColMeans(grad)}, nil
}

func (b *Bias) Learnable() bool { return false }
func (b *Bias) HasBias() bool   { return true }
func (b *Bias) Params() Params  { return Params{Bias: b.bias} }

func (b *Bias) Clone() Layer {
	return &Bias{bias: cloneDense(b.bias), size: b.size}
}

// GlobalBias adds one learned scalar to every element.
type GlobalBias struct {
	bias *mat.Dense // [1,1]
}

func NewGlobalBias() *GlobalBias {
	return &GlobalBias{bias: mat.NewDense(1, 1, nil)}
}

func (g *GlobalBias) Forward(x *mat.Dense, training bool) (*mat.Dense, *Cache, error) {
	b := g.bias.At(0, 0)
	y := tensor.Map(x, func(v float64) float64 { return v + b })
	if !training {
		return y, nil, nil
	}
	return y, newCache(g, x), nil
}

// Backward passes grad through; the bias gradient is the mean of all of grad.
func (g *GlobalBias) Backward(c *Cache, grad *mat.Dense) (*mat.Dense, Gradients, error) {
	if err := c.check("GlobalBias.Backward", g, grad); err != nil {
		return nil, Gradients{}, err
	}
	db := mat.NewDense(1, 1, []float64{tensor.Mean(grad)})
	return mat.DenseCopyOf(grad), Gradients{Bias: db}, nil
}

func (g *GlobalBias) Learnable() bool { return false }
func (g *GlobalBias) HasBias() bool   { return true }
func (g *GlobalBias) Params() Params  { return Params{Bias: g.bias} }

func (g *GlobalBias) Clone() Layer {
	return &GlobalBias{bias: cloneDense(g.bias)}
}

// GlobalGain multiplies every element by one learned scalar, initialized to 1.
type GlobalGain struct {
	weight *mat.Dense // [1,1]
}

func NewGlobalGain() *GlobalGain {
	return &GlobalGain{weight: mat.NewDense(1, 1, []float64{1})}
}

func (g *GlobalGain) Forward(x *mat.Dense, training bool) (*mat.Dense, *Cache, error) {
	var y mat.Dense
	y.Scale(g.weight.At(0, 0), x)
	if !training {
		return &y, nil, nil
	}
	cache := newCache(g, x)
	cache.Input = x
	return &y, cache, nil
}

// Backward returns dx = grad·g and dg = mean(x ⊙ grad).
func (g *GlobalGain) Backward(c *Cache, grad *mat.Dense) (*mat.Dense, Gradients, error) {
	if err := c.check("GlobalGain.Backward", g, grad); err != nil {
		return nil, Gradients{}, err
	}
	if err := tensor.CheckSameShape("GlobalGain.Backward", c.Input, grad); err != nil {
		return nil, Gradients{}, err
	}
	var prod mat.Dense
	prod.MulElem(c.Input, grad)
	dg := mat.NewDense(1, 1, []float64{tensor.Mean(&prod)})

	var dx mat.Dense
	dx.Scale(g.weight.At(0, 0), grad)
	return &dx, Gradients{Weight: dg}, nil
}

func (g *GlobalGain) Learnable() bool { return true }
func (g *GlobalGain) HasBias() bool   { return false }
func (g *GlobalGain) Params() Params  { return Params{Weight: g.weight} }

func (g *GlobalGain) Clone() Layer {
	return &GlobalGain{weight: cloneDense(g.weight)}
}
