// Package net provides the sequential network container and its trainer.
package net

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/minidnn/internal/layer"
	"github.com/FlavioCFOliveira/minidnn/internal/tensor"
)

// Net is an ordered chain of layers applied left to right.
//
// In classification mode (the default) Forward post-processes the output into
// class indices. A Net must not be trained from two goroutines at once.
type Net struct {
	layers         []layer.Layer
	classification bool
}

// New creates a network in classification mode.
func New(layers ...layer.Layer) *Net {
	return &Net{
		layers:         append([]layer.Layer(nil), layers...),
		classification: true,
	}
}

// Append adds a layer at the end of the chain.
func (n *Net) Append(l layer.Layer) {
	n.layers = append(n.layers, l)
}

// Layers returns the layer chain. The slice is a copy; the layers are not.
func (n *Net) Layers() []layer.Layer {
	return append([]layer.Layer(nil), n.layers...)
}

// Len returns the number of layers.
func (n *Net) Len() int {
	return len(n.layers)
}

// SetClassificationMode toggles class-index post-processing in Forward.
func (n *Net) SetClassificationMode(on bool) {
	n.classification = on
}

// ClassificationMode reports whether Forward returns class indices.
func (n *Net) ClassificationMode() bool {
	return n.classification
}

// Output runs an inference pass and returns the raw output of the last layer.
func (n *Net) Output(x *mat.Dense) (*mat.Dense, error) {
	out := x
	for i, l := range n.layers {
		y, _, err := l.Forward(out, false)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		out = y
	}
	if out == x {
		return mat.DenseCopyOf(x), nil
	}
	return out, nil
}

// Forward runs an inference pass. In classification mode the result is the
// [n,1] matrix of class indices (see Classify); otherwise it is the raw output.
func (n *Net) Forward(x *mat.Dense) (*mat.Dense, error) {
	out, err := n.Output(x)
	if err != nil {
		return nil, err
	}
	if !n.classification {
		return out, nil
	}
	return Classify(out), nil
}

// Classify maps a raw output to class indices: the arg-max of every row when
// there are several columns, or the value rounded half to even when there is
// one.
func Classify(out *mat.Dense) *mat.Dense {
	r, c := out.Dims()
	cls := mat.NewDense(r, 1, nil)
	if c == 1 {
		for i := 0; i < r; i++ {
			cls.Set(i, 0, math.RoundToEven(out.At(i, 0)))
		}
		return cls
	}
	for i, k := range tensor.ArgMaxRows(out) {
		cls.Set(i, 0, float64(k))
	}
	return cls
}

// ForwardTrain runs a training-mode pass and returns the output together with
// one cache per layer.
func (n *Net) ForwardTrain(x *mat.Dense) (*mat.Dense, []*layer.Cache, error) {
	caches := make([]*layer.Cache, len(n.layers))
	out := x
	for i, l := range n.layers {
		y, c, err := l.Forward(out, true)
		if err != nil {
			return nil, nil, fmt.Errorf("layer %d: %w", i, err)
		}
		caches[i] = c
		out = y
	}
	return out, caches, nil
}

// Backward propagates grad from the last layer to the first, consuming the
// caches returned by ForwardTrain. It returns the per-layer gradients and
// dL/dinput.
func (n *Net) Backward(caches []*layer.Cache, grad *mat.Dense) ([]layer.Gradients, *mat.Dense, error) {
	if len(caches) != len(n.layers) {
		return nil, nil, fmt.Errorf("backward: %d caches for %d layers: %w", len(caches), len(n.layers), tensor.ErrStatePrecedence)
	}
	grads := make([]layer.Gradients, len(n.layers))
	for i := len(n.layers) - 1; i >= 0; i-- {
		dx, g, err := n.layers[i].Backward(caches[i], grad)
		if err != nil {
			return nil, nil, fmt.Errorf("layer %d: %w", i, err)
		}
		grads[i] = g
		grad = dx
	}
	return grads, grad, nil
}

// Clone returns a deep copy of the network.
func (n *Net) Clone() *Net {
	layers := make([]layer.Layer, len(n.layers))
	for i, l := range n.layers {
		layers[i] = l.Clone()
	}
	return &Net{layers: layers, classification: n.classification}
}
