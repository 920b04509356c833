package opt

import "gonum.org/v1/gonum/mat"

// MomentumConfig holds the hyperparameters of Momentum and Nesterov.
// A zero LR selects 0.01; a nil Momentum selects 0.9. Momentum may be set to
// 0 with Float(0).
type MomentumConfig struct {
	LR       float64
	Momentum *float64
}

func (c MomentumConfig) withDefaults() MomentumConfig {
	c.LR = orDefault(c.LR, 0.01)
	c.Momentum = orDefaultPtr(c.Momentum, 0.9)
	return c
}

// Momentum is SGD with a velocity term: v = μv + lr·dw; w -= v.
type Momentum struct {
	lr
	shape
	momentum float64
	v        []float64
}

func NewMomentum(cfg MomentumConfig) *Momentum {
	cfg = cfg.withDefaults()
	return &Momentum{lr: lr{cfg.LR}, momentum: *cfg.Momentum}
}

func (m *Momentum) Optimize(w, dw *mat.Dense) error {
	fresh, err := m.bind("Momentum", w, dw)
	if err != nil {
		return err
	}
	if fresh {
		m.v = make([]float64, m.size())
	}
	update(w, dw, func(k int, w, g float64) float64 {
		m.v[k] = m.v[k]*m.momentum + g*m.rate
		return w - m.v[k]
	})
	return nil
}

func (m *Momentum) Clone() Optimizer {
	return NewMomentum(MomentumConfig{LR: m.rate, Momentum: Float(m.momentum)})
}

func (m *Momentum) Reset() {
	m.shape = shape{}
	m.v = nil
}

func (m *Momentum) Name() string { return "Momentum" }

// Nesterov is the Nesterov accelerated gradient in its look-ahead form:
// v' = μv - lr·dw; w += -μv + (1+μ)v'.
type Nesterov struct {
	lr
	shape
	momentum float64
	v        []float64
}

func NewNesterov(cfg MomentumConfig) *Nesterov {
	cfg = cfg.withDefaults()
	return &Nesterov{lr: lr{cfg.LR}, momentum: *cfg.Momentum}
}

func (n *Nesterov) Optimize(w, dw *mat.Dense) error {
	fresh, err := n.bind("Nesterov", w, dw)
	if err != nil {
		return err
	}
	if fresh {
		n.v = make([]float64, n.size())
	}
	update(w, dw, func(k int, w, g float64) float64 {
		prev := n.v[k]
		n.v[k] = n.momentum*prev - n.rate*g
		return w - n.momentum*prev + (1+n.momentum)*n.v[k]
	})
	return nil
}

func (n *Nesterov) Clone() Optimizer {
	return NewNesterov(MomentumConfig{LR: n.rate, Momentum: Float(n.momentum)})
}

func (n *Nesterov) Reset() {
	n.shape = shape{}
	n.v = nil
}

func (n *Nesterov) Name() string { return "Nesterov" }
