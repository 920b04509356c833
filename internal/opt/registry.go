package opt

import (
	"fmt"
	"sort"
	"strings"
)

var registry = map[string]func() Optimizer{
	"step":     func() Optimizer { return NewStep(0) },
	"sgd":      func() Optimizer { return NewSGD(0) },
	"momentum": func() Optimizer { return NewMomentum(MomentumConfig{}) },
	"nesterov": func() Optimizer { return NewNesterov(MomentumConfig{}) },
	"rpropm":   func() Optimizer { return NewRPROPm() },
	"adam":     func() Optimizer { return NewAdam(AdamConfig{}) },
	"adamw":    func() Optimizer { return NewAdamW(AdamConfig{}) },
	"adamax":   func() Optimizer { return NewAdamax(AdamConfig{}) },
	"nadam":    func() Optimizer { return NewNadam(AdamConfig{}) },
	"amsgrad":  func() Optimizer { return NewAmsgrad(AdamConfig{}) },
}

// New returns the named optimizer with default hyperparameters. The name is
// matched case-insensitively; "RPROP-" is accepted for RPROPm.
func New(name string) (Optimizer, error) {
	key := strings.ToLower(name)
	if key == "rprop-" {
		key = "rpropm"
	}
	f, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("unknown optimizer %q", name)
	}
	return f(), nil
}

// Names lists the registered optimizer names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for _, f := range registry {
		names = append(names, f().Name())
	}
	sort.Strings(names)
	return names
}
