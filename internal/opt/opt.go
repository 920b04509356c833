// Package opt provides optimization algorithms.
//
// An Optimizer updates one parameter tensor in place from its gradient.
// Stateful optimizers bind their state to the shape of the first gradient
// they see; the trainer therefore clones one optimizer per weight and one
// per bias from a prototype.
package opt

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/minidnn/internal/tensor"
)

// Optimizer updates network parameters based on gradients.
type Optimizer interface {
	// Optimize updates w in place from dw. w and dw must have the same shape.
	Optimize(w, dw *mat.Dense) error

	// Clone returns an optimizer with the same hyperparameters and fresh state.
	Clone() Optimizer

	// Reset discards accumulated state. The next call rebinds it.
	Reset()

	// Name returns the optimizer name.
	Name() string
}

// LearningRater is implemented by optimizers with a tunable learning rate.
// Schedulers drive it.
type LearningRater interface {
	LearningRate() float64
	SetLearningRate(lr float64)
}

// lr is embedded by optimizers that have a learning rate.
type lr struct {
	rate float64
}

func (l *lr) LearningRate() float64     { return l.rate }
func (l *lr) SetLearningRate(v float64) { l.rate = v }

// shape tracks the tensor shape an optimizer's state is bound to.
type shape struct {
	rows, cols int
	bound      bool
}

// bind validates w against dw and dw against the bound state shape. It
// reports whether the state was bound by this call.
func (s *shape) bind(op string, w, dw *mat.Dense) (bool, error) {
	if err := tensor.CheckSameShape(op, w, dw); err != nil {
		return false, err
	}
	r, c := dw.Dims()
	if !s.bound {
		s.rows, s.cols, s.bound = r, c, true
		return true, nil
	}
	if r != s.rows || c != s.cols {
		return false, fmt.Errorf("%s: state is %dx%d, gradient is %dx%d: %w", op, s.rows, s.cols, r, c, tensor.ErrOptimizerShapeMismatch)
	}
	return false, nil
}

func (s *shape) size() int { return s.rows * s.cols }

// update sets every element of w to f(k, w, g), where k is the element's
// row-major index and g the matching gradient element.
func update(w, dw *mat.Dense, f func(k int, w, g float64) float64) {
	r, c := w.Dims()
	k := 0
	for i := 0; i < r; i++ {
		wr := w.RawRowView(i)
		gr := dw.RawRowView(i)
		for j := 0; j < c; j++ {
			wr[j] = f(k, wr[j], gr[j])
			k++
		}
	}
}

// Step moves every weight by a fixed amount against the gradient sign.
type Step struct {
	lr
}

// NewStep creates a Step optimizer. lr <= 0 selects the default 0.01.
func NewStep(rate float64) *Step {
	return &Step{lr{orDefault(rate, 0.01)}}
}

// Optimize applies w -= lr·sign(dw).
func (s *Step) Optimize(w, dw *mat.Dense) error {
	if err := tensor.CheckSameShape("Step", w, dw); err != nil {
		return err
	}
	update(w, dw, func(_ int, w, g float64) float64 {
		return w - s.rate*tensor.Sign(g)
	})
	return nil
}

func (s *Step) Clone() Optimizer { return NewStep(s.rate) }
func (s *Step) Reset()           {}
func (s *Step) Name() string     { return "Step" }

// SGD (Stochastic Gradient Descent) optimizer.
type SGD struct {
	lr
}

// NewSGD creates an SGD optimizer. lr <= 0 selects the default 0.01.
func NewSGD(rate float64) *SGD {
	return &SGD{lr{orDefault(rate, 0.01)}}
}

// Optimize applies w -= lr·dw.
func (s *SGD) Optimize(w, dw *mat.Dense) error {
	if err := tensor.CheckSameShape("SGD", w, dw); err != nil {
		return err
	}
	update(w, dw, func(_ int, w, g float64) float64 {
		return w - s.rate*g
	})
	return nil
}

func (s *SGD) Clone() Optimizer { return NewSGD(s.rate) }
func (s *SGD) Reset()           {}
func (s *SGD) Name() string     { return "SGD" }

// RPROPm is RPROP- (Igel and Hüsken): a per-weight step size that grows
// while the gradient sign is stable and shrinks when it flips.
type RPROPm struct {
	shape
	mu     []float64
	prevDW []float64
}

const (
	rpropInit   = 0.0125
	rpropShrink = 0.5
	rpropGrow   = 1.2
	rpropMin    = 1e-6
	rpropMax    = 50
)

func NewRPROPm() *RPROPm {
	return &RPROPm{}
}

func (r *RPROPm) Optimize(w, dw *mat.Dense) error {
	fresh, err := r.bind("RPROPm", w, dw)
	if err != nil {
		return err
	}
	if fresh {
		r.mu = make([]float64, r.size())
		r.prevDW = make([]float64, r.size())
		for k := range r.mu {
			r.mu[k] = rpropInit
		}
		// The first step compares the gradient with itself.
		copy(r.prevDW, mat.DenseCopyOf(dw).RawMatrix().Data)
	}
	update(w, dw, func(k int, w, g float64) float64 {
		switch s := tensor.Sign(g * r.prevDW[k]); {
		case s < 0:
			r.mu[k] *= rpropShrink
		case s > 0:
			r.mu[k] *= rpropGrow
		}
		r.mu[k] = math.Min(math.Max(r.mu[k], rpropMin), rpropMax)
		r.prevDW[k] = g
		return w - r.mu[k]*tensor.Sign(g)
	})
	return nil
}

func (r *RPROPm) Clone() Optimizer { return NewRPROPm() }

func (r *RPROPm) Reset() {
	*r = RPROPm{}
}

func (r *RPROPm) Name() string { return "RPROPm" }

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

// orDefaultPtr returns a fresh copy of *v, or def when v is nil.
func orDefaultPtr(v *float64, def float64) *float64 {
	if v == nil {
		return Float(def)
	}
	return Float(*v)
}

// Float returns a pointer to v, for config fields where zero is a valid
// setting.
func Float(v float64) *float64 {
	return &v
}
