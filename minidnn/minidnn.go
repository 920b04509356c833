// Package minidnn is the public entry point of the training engine. It
// re-exports the network, trainer, layer, loss and optimizer types together
// with their constructors.
package minidnn

import (
	"github.com/FlavioCFOliveira/minidnn/internal/activations"
	"github.com/FlavioCFOliveira/minidnn/internal/layer"
	"github.com/FlavioCFOliveira/minidnn/internal/loss"
	"github.com/FlavioCFOliveira/minidnn/internal/net"
	"github.com/FlavioCFOliveira/minidnn/internal/opt"
	"github.com/FlavioCFOliveira/minidnn/internal/tensor"
)

// Re-export common types and functions for easier access
type (
	Net            = net.Net
	Trainer        = net.Trainer
	Config         = net.Config
	Result         = net.Result
	Layer          = layer.Layer
	Optimizer      = opt.Optimizer
	Loss           = loss.Loss
	Activation     = activations.Kind
	Callback       = net.Callback
	EpochStats     = net.EpochStats
	MetaTrainer    = net.MetaTrainer
	Warning        = tensor.NumericDomainWarning
	AdamConfig     = opt.AdamConfig
	MomentumConfig = opt.MomentumConfig
)

// Errors
var (
	ErrShapeMismatch          = tensor.ErrShapeMismatch
	ErrStatePrecedence        = tensor.ErrStatePrecedence
	ErrOptimizerShapeMismatch = tensor.ErrOptimizerShapeMismatch
	ErrInvalidConfiguration   = tensor.ErrInvalidConfiguration
)

// Model creation
func New(layers ...Layer) *Net {
	return net.New(layers...)
}

func NewTrainer(cfg Config) *Trainer {
	return net.NewTrainer(cfg)
}

func DefaultConfig() Config {
	return net.DefaultConfig()
}

// Activations
const (
	Identity  = activations.Identity
	ReLU      = activations.ReLU
	LeakyReLU = activations.LeakyReLU
	Sigmoid   = activations.Sigmoid
	Tanh      = activations.Tanh
	SiLU      = activations.SiLU
	Swish     = activations.Swish
	Softplus  = activations.Softplus
)

// ParseActivation looks an activation up by name.
func ParseActivation(name string) (Activation, error) {
	return activations.Parse(name)
}

// Layers
func Act(kind Activation) Layer {
	return layer.NewActivation(kind)
}

func Softmax() Layer {
	return layer.NewSoftmax()
}

func Dense(in, out int, opts ...layer.Option) Layer {
	return layer.NewDense(in, out, opts...)
}

func DenseNoBias(in, out int, opts ...layer.Option) Layer {
	return layer.NewDenseNoBias(in, out, opts...)
}

func Bias(size int) Layer {
	return layer.NewBias(size)
}

func GlobalBias() Layer {
	return layer.NewGlobalBias()
}

func GlobalGain() Layer {
	return layer.NewGlobalGain()
}

func Dropout(rate float64, opts ...layer.Option) Layer {
	return layer.NewDropout(rate, opts...)
}

func GaussianNoise(stdev float64, opts ...layer.Option) Layer {
	return layer.NewAddGaussianNoise(stdev, opts...)
}

func UniformNoise(level float64, opts ...layer.Option) Layer {
	return layer.NewAddUniformNoise(level, opts...)
}

// WithSeed makes a layer's random initialisation reproducible.
func WithSeed(seed uint64) layer.Option {
	return layer.WithSeed(seed)
}

// Optimizers
func SGD(lr float64) Optimizer {
	return opt.NewSGD(lr)
}

// Float returns a pointer to v for optimizer settings where zero is valid,
// such as MomentumConfig.Momentum.
func Float(v float64) *float64 {
	return opt.Float(v)
}

func Momentum(cfg MomentumConfig) Optimizer {
	return opt.NewMomentum(cfg)
}

func Nesterov(cfg MomentumConfig) Optimizer {
	return opt.NewNesterov(cfg)
}

func Adam(cfg AdamConfig) Optimizer {
	return opt.NewAdam(cfg)
}

func AdamW(cfg AdamConfig) Optimizer {
	return opt.NewAdamW(cfg)
}

func RPROPm() Optimizer {
	return opt.NewRPROPm()
}

// NewOptimizer builds an optimizer with default hyperparameters by name.
func NewOptimizer(name string) (Optimizer, error) {
	return opt.New(name)
}

// Losses
var (
	MSE     = loss.MSE{}
	MAE     = loss.MAE{}
	LogCosh = loss.LogCosh{}
)

// BinaryCrossEntropy and CrossEntropy take an optional clipping observer.
func BinaryCrossEntropy(onClip func(Warning)) Loss {
	return loss.BinaryCrossEntropy{OnClip: onClip}
}

func CrossEntropy(onClip func(Warning)) Loss {
	return loss.CrossEntropy{OnClip: onClip}
}

// NewLoss looks a loss up by name.
func NewLoss(name string) (Loss, error) {
	return loss.New(name)
}

// Callbacks
func Logger(interval int) *net.Logger {
	return &net.Logger{Interval: interval}
}

func CSVLogger(filename string, append bool) *net.CSVLogger {
	return net.NewCSVLogger(filename, append)
}

func EarlyStopping(patience int, threshold float64) *net.EarlyStopping {
	return net.NewEarlyStopping(patience, threshold)
}
