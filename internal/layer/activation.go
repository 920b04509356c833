package layer

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/minidnn/internal/activations"
	"github.com/FlavioCFOliveira/minidnn/internal/tensor"
)

// Activation applies an elementwise activation function.
type Activation struct {
	stateless
	kind activations.Kind
}

// NewActivation creates an activation layer. It panics on an unknown kind.
func NewActivation(kind activations.Kind) *Activation {
	if !kind.Valid() {
		panic(fmt.Sprintf("layer: unknown activation %v", kind))
	}
	return &Activation{kind: kind}
}

// Kind returns the activation function of the layer.
func (a *Activation) Kind() activations.Kind {
	return a.kind
}

// Forward computes f(x). In training mode f'(x) is cached as the local derivative.
func (a *Activation) Forward(x *mat.Dense, training bool) (*mat.Dense, *Cache, error) {
	r, c := x.Dims()
	y := mat.NewDense(r, c, nil)
	if !training {
		y.Apply(func(_, _ int, v float64) float64 { return a.kind.Activate(v) }, x)
		return y, nil, nil
	}

	d := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			yv, dv := a.kind.Eval(x.At(i, j))
			y.Set(i, j, yv)
			d.Set(i, j, dv)
		}
	}
	cache := newCache(a, x)
	cache.Derivative = d
	return y, cache, nil
}

// Backward returns grad ⊙ f'(x).
func (a *Activation) Backward(c *Cache, grad *mat.Dense) (*mat.Dense, Gradients, error) {
	return elementwiseBackward(a.kind.String(), a, c, grad)
}

func (a *Activation) Clone() Layer {
	return &Activation{kind: a.kind}
}

func elementwiseBackward(op string, owner Layer, c *Cache, grad *mat.Dense) (*mat.Dense, Gradients, error) {
	if err := c.check(op, owner, grad); err != nil {
		return nil, Gradients{}, err
	}
	if err := tensor.CheckSameShape(op, grad, c.Derivative); err != nil {
		return nil, Gradients{}, err
	}
	var dx mat.Dense
	dx.MulElem(grad, c.Derivative)
	return &dx, Gradients{}, nil
}

// Softmax normalizes every row into a probability distribution.
//
// The cached derivative is the elementwise term -e(e-Σ)/Σ², i.e. the diagonal
// of the softmax Jacobian, not the full Jacobian-vector product.
type Softmax struct {
	stateless
}

func NewSoftmax() *Softmax {
	return &Softmax{}
}

func (s *Softmax) Forward(x *mat.Dense, training bool) (*mat.Dense, *Cache, error) {
	r, c := x.Dims()
	y := mat.NewDense(r, c, nil)
	var d *mat.Dense
	if training {
		d = mat.NewDense(r, c, nil)
	}

	e := make([]float64, c)
	for i := 0; i < r; i++ {
		row := x.RawRowView(i)
		maxVal := floats.Max(row)
		for j, v := range row {
			e[j] = math.Exp(v - maxVal)
		}
		sum := floats.Sum(e)
		for j, ev := range e {
			y.Set(i, j, ev/sum)
			if training {
				d.Set(i, j, -ev*(ev-sum)/(sum*sum))
			}
		}
	}

	if !training {
		return y, nil, nil
	}
	cache := newCache(s, x)
	cache.Derivative = d
	return y, cache, nil
}

func (s *Softmax) Backward(c *Cache, grad *mat.Dense) (*mat.Dense, Gradients, error) {
	return elementwiseBackward("Softmax", s, c, grad)
}

func (s *Softmax) Clone() Layer {
	return &Softmax{}
}
