package opt

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// AdamConfig holds the hyperparameters of the Adam family.
// Zero fields select the per-variant defaults: LR 0.001 for Adam and 0.01
// for the others, Beta1 0.9, Beta2 0.999, Epsilon 1e-8. A nil Lambda selects
// 1e-6 (AdamW only); Float(0) turns weight decay off.
type AdamConfig struct {
	LR      float64
	Beta1   float64
	Beta2   float64
	Epsilon float64
	Lambda  *float64
}

func (c AdamConfig) withDefaults(lr float64) AdamConfig {
	c.LR = orDefault(c.LR, lr)
	c.Beta1 = orDefault(c.Beta1, 0.9)
	c.Beta2 = orDefault(c.Beta2, 0.999)
	c.Epsilon = orDefault(c.Epsilon, 1e-8)
	c.Lambda = orDefaultPtr(c.Lambda, 1e-6)
	return c
}

// moments is the state shared by the Adam family: first and second moment
// estimates and the running products β1ᵗ and β2ᵗ.
type moments struct {
	lr
	shape
	cfg AdamConfig

	m, v   []float64
	b1, b2 float64 // β1ᵗ, β2ᵗ
}

func newMoments(cfg AdamConfig) moments {
	return moments{lr: lr{cfg.LR}, cfg: cfg}
}

func (s *moments) begin(op string, w, dw *mat.Dense) error {
	fresh, err := s.bind(op, w, dw)
	if err != nil {
		return err
	}
	if fresh {
		s.m = make([]float64, s.size())
		s.v = make([]float64, s.size())
		s.b1, s.b2 = s.cfg.Beta1, s.cfg.Beta2
	}
	return nil
}

// end advances the bias-correction products after a step.
func (s *moments) end() {
	s.b1 *= s.cfg.Beta1
	s.b2 *= s.cfg.Beta2
}

func (s *moments) firstMoment(k int, g float64) float64 {
	s.m[k] = s.m[k]*s.cfg.Beta1 + (1-s.cfg.Beta1)*g
	return s.m[k]
}

func (s *moments) secondMoment(k int, g float64) float64 {
	s.v[k] = s.v[k]*s.cfg.Beta2 + (1-s.cfg.Beta2)*g*g
	return s.v[k]
}

func (s *moments) config() AdamConfig {
	c := s.cfg
	c.LR = s.rate
	return c
}

func (s *moments) Reset() {
	s.shape = shape{}
	s.m, s.v = nil, nil
}

// Adam with bias correction from the first step:
// w -= lr/(1-β1ᵗ)·m/(sqrt(v/(1-β2ᵗ))+ε).
type Adam struct {
	moments
}

func NewAdam(cfg AdamConfig) *Adam {
	return &Adam{newMoments(cfg.withDefaults(0.001))}
}

func (a *Adam) Optimize(w, dw *mat.Dense) error {
	if err := a.begin("Adam", w, dw); err != nil {
		return err
	}
	eps := a.cfg.Epsilon
	scale := a.rate / (1 - a.b1)
	update(w, dw, func(k int, w, g float64) float64 {
		m := a.firstMoment(k, g)
		v := a.secondMoment(k, g)
		return w - scale*m/(math.Sqrt(v/(1-a.b2))+eps)
	})
	a.end()
	return nil
}

func (a *Adam) Clone() Optimizer { return NewAdam(a.config()) }
func (a *Adam) Name() string     { return "Adam" }

// AdamW is Adam with decoupled weight decay λ·w, applied to the weight
// before the step.
type AdamW struct {
	moments
}

func NewAdamW(cfg AdamConfig) *AdamW {
	return &AdamW{newMoments(cfg.withDefaults(0.01))}
}

func (a *AdamW) Optimize(w, dw *mat.Dense) error {
	if err := a.begin("AdamW", w, dw); err != nil {
		return err
	}
	eps, lambda := a.cfg.Epsilon, *a.cfg.Lambda
	scale := a.rate / (1 - a.b1)
	update(w, dw, func(k int, w, g float64) float64 {
		m := a.firstMoment(k, g)
		v := a.secondMoment(k, g)
		return w - (scale*m/(math.Sqrt(v/(1-a.b2))+eps) + lambda*w)
	})
	a.end()
	return nil
}

func (a *AdamW) Clone() Optimizer { return NewAdamW(a.config()) }
func (a *AdamW) Name() string     { return "AdamW" }

// Adamax replaces the second moment with an ε-padded infinity norm:
// v = max(β2v, |dw|)+ε; w -= lr/(1-β1ᵗ)·m/v.
type Adamax struct {
	moments
}

func NewAdamax(cfg AdamConfig) *Adamax {
	return &Adamax{newMoments(cfg.withDefaults(0.01))}
}

func (a *Adamax) Optimize(w, dw *mat.Dense) error {
	if err := a.begin("Adamax", w, dw); err != nil {
		return err
	}
	scale := a.rate / (1 - a.b1)
	update(w, dw, func(k int, w, g float64) float64 {
		m := a.firstMoment(k, g)
		a.v[k] = math.Max(a.cfg.Beta2*a.v[k], math.Abs(g)) + a.cfg.Epsilon
		return w - scale*m/a.v[k]
	})
	a.end()
	return nil
}

func (a *Adamax) Clone() Optimizer { return NewAdamax(a.config()) }
func (a *Adamax) Name() string     { return "Adamax" }

// Nadam is Adam with a Nesterov look-ahead on the first moment:
// m̂ = m/(1-β1ᵗ) + (1-β1)dw/(1-β1ᵗ).
type Nadam struct {
	moments
}

func NewNadam(cfg AdamConfig) *Nadam {
	return &Nadam{newMoments(cfg.withDefaults(0.01))}
}

func (a *Nadam) Optimize(w, dw *mat.Dense) error {
	if err := a.begin("Nadam", w, dw); err != nil {
		return err
	}
	b1, eps := a.cfg.Beta1, a.cfg.Epsilon
	update(w, dw, func(k int, w, g float64) float64 {
		m := a.firstMoment(k, g)
		v := a.secondMoment(k, g)
		mHat := m/(1-a.b1) + (1-b1)*g/(1-a.b1)
		return w - a.rate*mHat/(math.Sqrt(v/(1-a.b2))+eps)
	})
	a.end()
	return nil
}

func (a *Nadam) Clone() Optimizer { return NewNadam(a.config()) }
func (a *Nadam) Name() string     { return "Nadam" }

// Amsgrad keeps the running maximum of the second moment and applies no
// bias correction: w -= lr·m/(sqrt(v̂)+ε).
type Amsgrad struct {
	moments
	vHat []float64
}

func NewAmsgrad(cfg AdamConfig) *Amsgrad {
	return &Amsgrad{moments: newMoments(cfg.withDefaults(0.01))}
}

func (a *Amsgrad) Optimize(w, dw *mat.Dense) error {
	if err := a.begin("Amsgrad", w, dw); err != nil {
		return err
	}
	if a.vHat == nil {
		a.vHat = make([]float64, a.size())
	}
	eps := a.cfg.Epsilon
	update(w, dw, func(k int, w, g float64) float64 {
		m := a.firstMoment(k, g)
		v := a.secondMoment(k, g)
		a.vHat[k] = math.Max(a.vHat[k], v)
		return w - a.rate*m/(math.Sqrt(a.vHat[k])+eps)
	})
	return nil
}

func (a *Amsgrad) Reset() {
	a.moments.Reset()
	a.vHat = nil
}

func (a *Amsgrad) Clone() Optimizer { return NewAmsgrad(a.config()) }
func (a *Amsgrad) Name() string     { return "Amsgrad" }
