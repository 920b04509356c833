// Package activations provides the elementwise activation functions used by
// activation layers. Each Kind maps to one function returning both f(x) and
// f'(x), so a training-mode forward pass gets the local derivative in the
// same evaluation.
package activations

import (
	"fmt"
	"math"
	"strings"
)

// Kind identifies an elementwise activation.
type Kind int

const (
	Absolute Kind = iota
	ArcSinh
	ArcTan
	Bent
	BinaryStep
	Bipolar
	BipolarSigmoid
	ComplementaryLogLog
	DivideBy256
	DSiLU
	Exponential
	Gauss
	HardELU
	HardShrink
	HardTanh
	Identity
	LeakyReLU
	LeakyReLU256
	LogSigmoid
	Logit
	ReLU
	ReLU6
	Sigmoid
	SiLU
	Sin
	Softplus
	Softsign
	Swish
	Tanh
	TanhShrink

	numKinds
)

const inv256 = 0.00390625

// evalFunc returns f(x) and f'(x).
type evalFunc func(x float64) (y, dydx float64)

type entry struct {
	name string
	eval evalFunc
}

var table = [numKinds]entry{
	Absolute: {"Absolute", func(x float64) (float64, float64) {
		return math.Abs(x), sign(x)
	}},
	ArcSinh: {"ArcSinh", func(x float64) (float64, float64) {
		return math.Asinh(x), 1 / math.Sqrt(1+x*x)
	}},
	ArcTan: {"ArcTan", func(x float64) (float64, float64) {
		return math.Atan(x), 1 / (1 + x*x)
	}},
	Bent: {"Bent", func(x float64) (float64, float64) {
		r := math.Sqrt(x*x + 1)
		return (r-1)*0.5 + x, x/(2*r) + 1
	}},
	BinaryStep: {"BinaryStep", func(x float64) (float64, float64) {
		if x > 0 {
			return 1, 0
		}
		return 0, 0
	}},
	Bipolar: {"Bipolar", func(x float64) (float64, float64) {
		return sign(x), 0
	}},
	BipolarSigmoid: {"BipolarSigmoid", func(x float64) (float64, float64) {
		s := math.Exp(x)
		return (s - 1) / (s + 1), 2 * s / ((s + 1) * (s + 1))
	}},
	ComplementaryLogLog: {"ComplementaryLogLog", func(x float64) (float64, float64) {
		e := math.Exp(x)
		return 1 - math.Exp(-e), math.Exp(x - e)
	}},
	DivideBy256: {"DivideBy256", func(x float64) (float64, float64) {
		return x * inv256, inv256
	}},
	DSiLU: {"dSiLU", func(x float64) (float64, float64) {
		ex := math.Exp(-x)
		exinv := 1 / (1 + ex)
		return exinv * (1 + x*ex*exinv), ex * exinv * exinv * (2 + x*(2*ex*exinv-1))
	}},
	Exponential: {"Exponential", func(x float64) (float64, float64) {
		e := math.Exp(x)
		return e, e
	}},
	Gauss: {"Gauss", func(x float64) (float64, float64) {
		u := math.Exp(-x * x)
		return u, -2 * x * u
	}},
	// The x < -2 branch is a hard -1, not an ELU curve. Kept as is.
	HardELU: {"HardELU", func(x float64) (float64, float64) {
		switch {
		case x < -2:
			return -1, 0
		case x < 0 && x > -2:
			return 0.5 * x, 0.5
		}
		return x, 1
	}},
	HardShrink: {"HardShrink", func(x float64) (float64, float64) {
		if x < 0.5 && x > -0.5 {
			return 0, 0
		}
		return x, 1
	}},
	HardTanh: {"HardTanh", func(x float64) (float64, float64) {
		switch {
		case x < -1:
			return -1, 0
		case x > 1:
			return 1, 0
		}
		return x, 1
	}},
	Identity: {"Identity", func(x float64) (float64, float64) {
		return x, 1
	}},
	LeakyReLU: {"LeakyRELU", func(x float64) (float64, float64) {
		if x < 0 {
			return 0.01 * x, 0.01
		}
		return x, 1
	}},
	LeakyReLU256: {"LeakyRELU256", func(x float64) (float64, float64) {
		if x < 0 {
			return x * inv256, inv256
		}
		return x, 1
	}},
	LogSigmoid: {"LogSigmoid", func(x float64) (float64, float64) {
		return math.Log(1 / (1 + math.Exp(-x))), 1 / (1 + math.Exp(x))
	}},
	Logit: {"Logit", func(x float64) (float64, float64) {
		return math.Log(x / (1 - x)), 1 / (x * (1 - x))
	}},
	ReLU: {"RELU", func(x float64) (float64, float64) {
		if x > 0 {
			return x, 1
		}
		return 0, 0
	}},
	ReLU6: {"RELU6", func(x float64) (float64, float64) {
		switch {
		case x < 0:
			return 0, 0
		case x > 6:
			return 6, 0
		}
		return x, 1
	}},
	Sigmoid: {"Sigmoid", func(x float64) (float64, float64) {
		y := 1 / (1 + math.Exp(-x))
		return y, y * (1 - y)
	}},
	SiLU: {"SiLU", func(x float64) (float64, float64) {
		ex := math.Exp(-x)
		exinv := 1 / (1 + ex)
		return x * exinv, exinv * (1 + x*ex*exinv)
	}},
	Sin: {"Sin", func(x float64) (float64, float64) {
		return math.Sin(x), math.Cos(x)
	}},
	Softplus: {"Softplus", func(x float64) (float64, float64) {
		return math.Log1p(math.Exp(x)), 1 / (1 + math.Exp(-x))
	}},
	Softsign: {"Softsign", func(x float64) (float64, float64) {
		d := 1 + math.Abs(x)
		return x / d, 1 / (d * d)
	}},
	Swish: {"Swish", func(x float64) (float64, float64) {
		y := 1 / (1 + math.Exp(-x))
		return x * y, y * (x + 1 - x*y)
	}},
	Tanh: {"Tanh", func(x float64) (float64, float64) {
		y := math.Tanh(x)
		return y, 1 - y*y
	}},
	TanhShrink: {"TanhShrink", func(x float64) (float64, float64) {
		y := math.Tanh(x)
		return x - y, y * y
	}},
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// Valid reports whether k is a known activation.
func (k Kind) Valid() bool {
	return k >= 0 && k < numKinds
}

// String returns the activation's canonical name.
func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return table[k].name
}

// Eval returns f(x) and f'(x).
func (k Kind) Eval(x float64) (y, dydx float64) {
	return table[k].eval(x)
}

// Activate computes f(x).
func (k Kind) Activate(x float64) float64 {
	y, _ := table[k].eval(x)
	return y
}

// Derivative computes f'(x).
func (k Kind) Derivative(x float64) float64 {
	_, d := table[k].eval(x)
	return d
}

// Kinds lists every activation in declaration order.
func Kinds() []Kind {
	ks := make([]Kind, numKinds)
	for i := range ks {
		ks[i] = Kind(i)
	}
	return ks
}

// Parse returns the Kind with the given name, ignoring case.
func Parse(name string) (Kind, error) {
	for i := range table {
		if strings.EqualFold(table[i].name, name) {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown activation %q", name)
}
