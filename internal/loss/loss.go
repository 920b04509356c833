// Package loss provides the terminal loss functions that seed backpropagation.
package loss

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/minidnn/internal/tensor"
)

// Loss is a loss function with derivative.
type Loss interface {
	// Forward compares pred against truth (same shape, one sample per row)
	// and returns the loss elements. In training mode it also returns
	// dL/dpred; otherwise grad is nil.
	Forward(pred, truth *mat.Dense, training bool) (loss, grad *mat.Dense, err error)

	// Name returns the loss name.
	Name() string
}

// eps keeps log and division finite for probability losses.
const eps = 1e-8

// elementwise applies f(x-t) and f'(x-t) to every element.
func elementwise(op string, pred, truth *mat.Dense, training bool, f func(d float64) (float64, float64)) (*mat.Dense, *mat.Dense, error) {
	if err := tensor.CheckSameShape(op, pred, truth); err != nil {
		return nil, nil, err
	}
	r, c := pred.Dims()
	l := mat.NewDense(r, c, nil)
	var g *mat.Dense
	if training {
		g = mat.NewDense(r, c, nil)
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v, d := f(pred.At(i, j) - truth.At(i, j))
			l.Set(i, j, v)
			if training {
				g.Set(i, j, d)
			}
		}
	}
	return l, g, nil
}

// MSE is the halved squared error: 0.5(x-t)², derivative x-t.
type MSE struct{}

func (MSE) Forward(pred, truth *mat.Dense, training bool) (*mat.Dense, *mat.Dense, error) {
	return elementwise("MSE", pred, truth, training, func(d float64) (float64, float64) {
		return 0.5 * d * d, d
	})
}

func (MSE) Name() string { return "MSE" }

// MAE is the absolute error: |x-t|, derivative sign(x-t).
type MAE struct{}

func (MAE) Forward(pred, truth *mat.Dense, training bool) (*mat.Dense, *mat.Dense, error) {
	return elementwise("MAE", pred, truth, training, func(d float64) (float64, float64) {
		return math.Abs(d), tensor.Sign(d)
	})
}

func (MAE) Name() string { return "MAE" }

// LogCosh is log(cosh(x-t)), derivative tanh(x-t).
type LogCosh struct{}

func (LogCosh) Forward(pred, truth *mat.Dense, training bool) (*mat.Dense, *mat.Dense, error) {
	return elementwise("LogCosh", pred, truth, training, func(d float64) (float64, float64) {
		return math.Log(math.Cosh(d)), math.Tanh(d)
	})
}

func (LogCosh) Name() string { return "LogCosh" }

// probGrad is the derivative shared by both cross-entropy losses. The two
// terms are clipped independently.
func probGrad(p, t float64) float64 {
	return -t/math.Max(p, eps) + (1-t)/math.Max(1-p, eps)
}

func clipped(p float64) bool {
	return p < eps || 1-p < eps
}

func notify(hook func(tensor.NumericDomainWarning), name string, n, total int) {
	if hook != nil && n > 0 {
		hook(tensor.NumericDomainWarning{Loss: name, Clipped: n, Total: total})
	}
}

// BinaryCrossEntropy is the elementwise binary cross entropy with
// probabilities clipped at 1e-8 on both sides.
type BinaryCrossEntropy struct {
	// OnClip, if set, is called once per Forward that clipped anything.
	OnClip func(tensor.NumericDomainWarning)
}

func (b BinaryCrossEntropy) Forward(pred, truth *mat.Dense, training bool) (*mat.Dense, *mat.Dense, error) {
	if err := tensor.CheckSameShape("BinaryCrossEntropy", pred, truth); err != nil {
		return nil, nil, err
	}
	r, c := pred.Dims()
	l := mat.NewDense(r, c, nil)
	var g *mat.Dense
	if training {
		g = mat.NewDense(r, c, nil)
	}
	n := 0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			p, t := pred.At(i, j), truth.At(i, j)
			if clipped(p) {
				n++
			}
			l.Set(i, j, -t*math.Log(math.Max(p, eps))-(1-t)*math.Log(math.Max(1-p, eps)))
			if training {
				g.Set(i, j, probGrad(p, t))
			}
		}
	}
	notify(b.OnClip, b.Name(), n, r*c)
	return l, g, nil
}

func (BinaryCrossEntropy) Name() string { return "BinaryCrossEntropy" }

// CrossEntropy is the categorical cross entropy. The loss is one value per
// row: the mean of -t·log(max(p, 1e-8)) over the row's columns.
type CrossEntropy struct {
	// OnClip, if set, is called once per Forward that clipped anything.
	OnClip func(tensor.NumericDomainWarning)
}

func (ce CrossEntropy) Forward(pred, truth *mat.Dense, training bool) (*mat.Dense, *mat.Dense, error) {
	if err := tensor.CheckSameShape("CrossEntropy", pred, truth); err != nil {
		return nil, nil, err
	}
	r, c := pred.Dims()
	l := mat.NewDense(r, 1, nil)
	var g *mat.Dense
	if training {
		g = mat.NewDense(r, c, nil)
	}
	terms := make([]float64, c)
	n := 0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			p, t := pred.At(i, j), truth.At(i, j)
			if clipped(p) {
				n++
			}
			terms[j] = -t * math.Log(math.Max(p, eps))
			if training {
				g.Set(i, j, probGrad(p, t))
			}
		}
		l.Set(i, 0, floats.Sum(terms)/float64(c))
	}
	notify(ce.OnClip, ce.Name(), n, r*c)
	return l, g, nil
}

func (CrossEntropy) Name() string { return "CrossEntropy" }

var registry = map[string]func() Loss{
	"mse":                func() Loss { return MSE{} },
	"mae":                func() Loss { return MAE{} },
	"logcosh":            func() Loss { return LogCosh{} },
	"binarycrossentropy": func() Loss { return BinaryCrossEntropy{} },
	"crossentropy":       func() Loss { return CrossEntropy{} },
}

// New returns the loss with the given name, ignoring case.
func New(name string) (Loss, error) {
	f, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown loss %q", name)
	}
	return f(), nil
}

// Names lists the registered loss names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for _, f := range registry {
		names = append(names, f().Name())
	}
	sort.Strings(names)
	return names
}
