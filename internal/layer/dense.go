package layer

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/minidnn/internal/tensor"
)

// Dense is a fully connected layer: y = x·W (+ b).
// W has shape [inSize, outSize]; b has shape [1, outSize].
type Dense struct {
	weight  *mat.Dense
	bias    *mat.Dense // nil for DenseNoBias
	inSize  int
	outSize int
}

// NewDense creates a dense layer with Xavier-uniform weights and a zero bias.
func NewDense(in, out int, opts ...Option) *Dense {
	d := NewDenseNoBias(in, out, opts...)
	d.bias = mat.NewDense(1, out, nil)
	return d
}

// NewDenseNoBias creates a dense layer without bias.
func NewDenseNoBias(in, out int, opts ...Option) *Dense {
	if in <= 0 || out <= 0 {
		panic(fmt.Sprintf("layer: invalid dense size %dx%d", in, out))
	}
	o := buildOptions(opts)
	return &Dense{
		weight:  XavierUniform(in, out, rand.NewSource(o.seed)),
		inSize:  in,
		outSize: out,
	}
}

// Forward computes x·W + b. In training mode the input is cached for the
// weight gradient.
func (d *Dense) Forward(x *mat.Dense, training bool) (*mat.Dense, *Cache, error) {
	if err := tensor.CheckCols("Dense.Forward", x, d.inSize); err != nil {
		return nil, nil, err
	}
	r, _ := x.Dims()
	y := mat.NewDense(r, d.outSize, nil)
	y.Mul(x, d.weight)
	if d.bias != nil {
		b := d.bias.RawRowView(0)
		for i := 0; i < r; i++ {
			floats.Add(y.RawRowView(i), b)
		}
	}

	if !training {
		return y, nil, nil
	}
	cache := newCache(d, x)
	cache.Input = x
	return y, cache, nil
}

// Backward computes dW = xᵀ·grad/n, db = mean(grad) and dx = grad·Wᵀ.
func (d *Dense) Backward(c *Cache, grad *mat.Dense) (*mat.Dense, Gradients, error) {
	if err := c.check("Dense.Backward", d, grad); err != nil {
		return nil, Gradients{}, err
	}
	if err := tensor.CheckCols("Dense.Backward", grad, d.outSize); err != nil {
		return nil, Gradients{}, err
	}

	n := float64(c.Rows)
	dw := mat.NewDense(d.inSize, d.outSize, nil)
	dw.Mul(c.Input.T(), grad)
	dw.Scale(1/n, dw)

	grads := Gradients{Weight: dw}
	if d.bias != nil {
		grads.Bias = tensor.ColMeans(grad)
	}

	dx := mat.NewDense(c.Rows, d.inSize, nil)
	dx.Mul(grad, d.weight.T())
	return dx, grads, nil
}

func (d *Dense) Learnable() bool { return true }
func (d *Dense) HasBias() bool   { return d.bias != nil }

func (d *Dense) Params() Params {
	return Params{Weight: d.weight, Bias: d.bias}
}

// SetWeights replaces the weight matrix. It must be [inSize, outSize].
func (d *Dense) SetWeights(w *mat.Dense) error {
	if r, c := w.Dims(); r != d.inSize || c != d.outSize {
		return fmt.Errorf("Dense.SetWeights: got %dx%d, want %dx%d: %w", r, c, d.inSize, d.outSize, tensor.ErrShapeMismatch)
	}
	d.weight.Copy(w)
	return nil
}

// SetBias replaces the bias row. It must be [1, outSize].
func (d *Dense) SetBias(b *mat.Dense) error {
	if d.bias == nil {
		return fmt.Errorf("Dense.SetBias: layer has no bias: %w", tensor.ErrShapeMismatch)
	}
	if err := tensor.CheckSameShape("Dense.SetBias", d.bias, b); err != nil {
		return err
	}
	d.bias.Copy(b)
	return nil
}

// InSize returns the input size of the layer.
func (d *Dense) InSize() int {
	return d.inSize
}

// OutSize returns the output size of the layer.
func (d *Dense) OutSize() int {
	return d.outSize
}

func (d *Dense) Clone() Layer {
	return &Dense{
		weight:  cloneDense(d.weight),
		bias:    cloneDense(d.bias),
		inSize:  d.inSize,
		outSize: d.outSize,
	}
}
