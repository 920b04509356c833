package net

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/minidnn/internal/loss"
	"github.com/FlavioCFOliveira/minidnn/internal/opt"
	"github.com/FlavioCFOliveira/minidnn/internal/tensor"
)

// Config holds the training parameters.
type Config struct {
	// Epochs is the number of passes over the training set.
	Epochs int
	// BatchSize is the mini-batch size. 0 uses the whole dataset as one batch.
	BatchSize int
	// Optimizer is the prototype cloned once per weight and once per bias.
	Optimizer opt.Optimizer
	// Loss seeds backpropagation.
	Loss loss.Loss
	// KeepBest keeps a deep copy of the best network in Result.BestNet.
	KeepBest bool
	// Seed drives the per-epoch shuffle.
	Seed uint64
	// ReboostEvery resets the state of every optimizer after that many
	// epochs. 0 disables it.
	ReboostEvery int
	// Scheduler, if set, builds a learning-rate scheduler over the
	// optimizers of each run. It is stepped once per epoch.
	Scheduler opt.SchedulerFactory
}

// DefaultConfig returns the default training configuration: 100 epochs,
// batches of 32, Momentum, MSE, keep-best on and a time-based seed.
func DefaultConfig() Config {
	return Config{
		Epochs:    100,
		BatchSize: 32,
		Optimizer: opt.NewMomentum(opt.MomentumConfig{}),
		Loss:      loss.MSE{},
		KeepBest:  true,
		Seed:      uint64(time.Now().UnixNano()),
	}
}

// Result holds the history and best-model bookkeeping of a training run.
type Result struct {
	// Loss is the mean loss of every epoch: Σ loss elements / nSamples.
	Loss []float64
	// TrainAccuracy and TestAccuracy are percentages per epoch, recorded in
	// classification mode only. TestAccuracy stays empty without test data.
	TrainAccuracy []float64
	TestAccuracy  []float64

	// BestAccuracy is the best monitored accuracy (test when available,
	// otherwise train). It starts at 0 and only strictly better epochs count.
	BestAccuracy float64
	// BestLoss is the lowest epoch loss.
	BestLoss float64
	// BestEpoch is the zero-based epoch of the best snapshot, or -1 when no
	// epoch improved on the starting point.
	BestEpoch int
	// BestNet is the best network when KeepBest is set: by accuracy in
	// classification mode, by loss otherwise. Until an epoch improves it is a
	// copy of the network before training.
	BestNet *Net
	// KeepBest echoes the configuration. The trained network is never
	// replaced; substituting BestNet is up to the caller.
	KeepBest bool
	// Stopped is set when a Stopper callback ended training early.
	Stopped bool
}

// Epochs returns the number of epochs completed.
func (r *Result) Epochs() int {
	return len(r.Loss)
}

// Trainer drives mini-batch gradient descent over a Net.
type Trainer struct {
	cfg       Config
	testX     *mat.Dense
	testT     *mat.Dense
	callbacks []Callback
	last      *Result
}

// NewTrainer creates a trainer with the given configuration.
func NewTrainer(cfg Config) *Trainer {
	return &Trainer{cfg: cfg}
}

// Config returns the current configuration.
func (t *Trainer) Config() Config { return t.cfg }

func (t *Trainer) SetLoss(l loss.Loss)          { t.cfg.Loss = l }
func (t *Trainer) SetOptimizer(o opt.Optimizer) { t.cfg.Optimizer = o }
func (t *Trainer) SetKeepBest(keep bool)        { t.cfg.KeepBest = keep }
func (t *Trainer) SetEpochs(epochs int)         { t.cfg.Epochs = epochs }
func (t *Trainer) SetBatchSize(size int)        { t.cfg.BatchSize = size }
func (t *Trainer) SetSeed(seed uint64)          { t.cfg.Seed = seed }
func (t *Trainer) SetReboostEvery(epochs int)   { t.cfg.ReboostEvery = epochs }
func (t *Trainer) AddCallback(c Callback)       { t.callbacks = append(t.callbacks, c) }

// SetTestData sets a held-out set evaluated after every epoch. Passing nil
// clears it.
func (t *Trainer) SetTestData(samples, truth *mat.Dense) {
	t.testX, t.testT = samples, truth
}

// EpochLoss returns the loss history of the last run.
func (t *Trainer) EpochLoss() []float64 {
	if t.last == nil {
		return nil
	}
	return t.last.Loss
}

// BestAccuracy returns the best monitored accuracy of the last run.
func (t *Trainer) BestAccuracy() float64 {
	if t.last == nil {
		return 0
	}
	return t.last.BestAccuracy
}

// BestNet returns the best network of the last run, or nil.
func (t *Trainer) BestNet() *Net {
	if t.last == nil {
		return nil
	}
	return t.last.BestNet
}

func (t *Trainer) validate(n *Net, samples, truth *mat.Dense) error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("train: "+format+": %w", append(args, tensor.ErrInvalidConfiguration)...)
	}
	switch {
	case t.cfg.Epochs <= 0:
		return invalid("epochs must be positive, got %d", t.cfg.Epochs)
	case t.cfg.BatchSize < 0:
		return invalid("negative batch size %d", t.cfg.BatchSize)
	case t.cfg.Loss == nil:
		return invalid("no loss")
	case t.cfg.Optimizer == nil:
		return invalid("no optimizer")
	case t.cfg.ReboostEvery < 0:
		return invalid("negative reboost interval %d", t.cfg.ReboostEvery)
	case n == nil || n.Len() == 0:
		return invalid("empty network")
	case samples == nil || truth == nil || samples.IsEmpty() || truth.IsEmpty():
		return invalid("no training data")
	}
	if sr, _ := samples.Dims(); sr != rows(truth) {
		return invalid("%d samples but %d truth rows", sr, rows(truth))
	}
	if (t.testX == nil) != (t.testT == nil) {
		return invalid("test samples and test truth must be set together")
	}
	if t.testX != nil && rows(t.testX) != rows(t.testT) {
		return invalid("%d test samples but %d test truth rows", rows(t.testX), rows(t.testT))
	}
	if !n.ClassificationMode() {
		for _, cb := range t.callbacks {
			if es, ok := cb.(*EarlyStopping); ok && es.Monitor == MonitorAccuracy {
				return invalid("early stopping monitors accuracy but the network is in regression mode")
			}
		}
	}
	return checkWidths(n, samples, truth, t.testX, t.testT)
}

// checkWidths runs one sample through n and checks every data set against the
// network's input and output widths. Truth is either a label column or one
// column per output.
func checkWidths(n *Net, samples, truth, testX, testT *mat.Dense) error {
	probe, err := n.Output(tensor.RowRange(samples, 0, 1))
	if err != nil {
		return fmt.Errorf("train: samples: %w", err)
	}
	_, in := samples.Dims()
	_, out := probe.Dims()
	truthOK := func(m *mat.Dense) bool { return cols(m) == 1 || cols(m) == out }
	if !truthOK(truth) {
		return fmt.Errorf("train: truth has %d columns, want 1 or %d: %w", cols(truth), out, tensor.ErrShapeMismatch)
	}
	if testX == nil {
		return nil
	}
	if cols(testX) != in {
		return fmt.Errorf("train: test samples have %d columns, want %d: %w", cols(testX), in, tensor.ErrShapeMismatch)
	}
	if !truthOK(testT) {
		return fmt.Errorf("train: test truth has %d columns, want 1 or %d: %w", cols(testT), out, tensor.ErrShapeMismatch)
	}
	return nil
}

func rows(m *mat.Dense) int {
	r, _ := m.Dims()
	return r
}

func cols(m *mat.Dense) int {
	_, c := m.Dims()
	return c
}

// run is the state of one call to Train.
type run struct {
	cfg   Config
	net   *Net
	wOpts []opt.Optimizer // per layer, nil when the layer has no weight
	bOpts []opt.Optimizer // per layer, nil when the layer has no bias
	all   []opt.Optimizer
}

func newRun(cfg Config, n *Net) *run {
	r := &run{
		cfg:   cfg,
		net:   n,
		wOpts: make([]opt.Optimizer, n.Len()),
		bOpts: make([]opt.Optimizer, n.Len()),
	}
	for i, l := range n.layers {
		if l.Learnable() {
			r.wOpts[i] = cfg.Optimizer.Clone()
			r.all = append(r.all, r.wOpts[i])
		}
		if l.HasBias() {
			r.bOpts[i] = cfg.Optimizer.Clone()
			r.all = append(r.all, r.bOpts[i])
		}
	}
	return r
}

// batch runs forward, loss, backward and the optimizer step on one batch and
// returns the summed loss.
func (r *run) batch(x, target *mat.Dense) (float64, error) {
	out, caches, err := r.net.ForwardTrain(x)
	if err != nil {
		return 0, err
	}
	l, grad, err := r.cfg.Loss.Forward(out, target, true)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", r.cfg.Loss.Name(), err)
	}
	grads, _, err := r.net.Backward(caches, grad)
	if err != nil {
		return 0, err
	}
	for i, ly := range r.net.layers {
		p := ly.Params()
		if o := r.wOpts[i]; o != nil {
			if err := o.Optimize(p.Weight, grads[i].Weight); err != nil {
				return 0, fmt.Errorf("layer %d weight: %w", i, err)
			}
		}
		if o := r.bOpts[i]; o != nil {
			if err := o.Optimize(p.Bias, grads[i].Bias); err != nil {
				return 0, fmt.Errorf("layer %d bias: %w", i, err)
			}
		}
	}
	return mat.Sum(l), nil
}

func (r *run) reboost() {
	for _, o := range r.all {
		o.Reset()
	}
}

// Train fits n to samples/truth in place and returns the training history.
//
// Truth with one column and a network with several outputs is treated as
// class labels and expanded to one-hot targets. ctx is checked between
// batches; on cancellation the partial result is returned with ctx's error.
func (t *Trainer) Train(ctx context.Context, n *Net, samples, truth *mat.Dense) (*Result, error) {
	if err := t.validate(n, samples, truth); err != nil {
		return nil, err
	}
	cfg := t.cfg
	nSamples := rows(samples)
	batchSize := cfg.BatchSize
	if batchSize == 0 || batchSize > nSamples {
		batchSize = nSamples
	}

	target, err := targetsFor(n, samples, truth)
	if err != nil {
		return nil, err
	}
	classification := n.ClassificationMode()
	trainLabels := Labels(truth)
	var testLabels []float64
	if t.testX != nil {
		testLabels = Labels(t.testT)
	}

	r := newRun(cfg, n)
	var sched opt.Scheduler
	if cfg.Scheduler != nil {
		sched = cfg.Scheduler(r.all)
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	res := &Result{
		BestLoss:  math.Inf(1),
		BestEpoch: -1,
		KeepBest:  cfg.KeepBest,
	}
	if cfg.KeepBest {
		res.BestNet = n.Clone()
	}
	t.last = res

	for _, cb := range t.callbacks {
		cb.OnTrainBegin(n)
	}
	defer func() {
		for _, cb := range t.callbacks {
			cb.OnTrainEnd(n)
		}
	}()

	start := time.Now()
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		for _, cb := range t.callbacks {
			cb.OnEpochBegin(epoch, n)
		}

		perm := rng.Perm(nSamples)
		xs := tensor.SelectRows(samples, perm)
		ts := tensor.SelectRows(target, perm)

		var sum float64
		for b, lo := 0, 0; lo < nSamples; b, lo = b+1, lo+batchSize {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			hi := min(lo+batchSize, nSamples)
			for _, cb := range t.callbacks {
				cb.OnBatchBegin(b, n)
			}
			l, err := r.batch(tensor.RowRange(xs, lo, hi), tensor.RowRange(ts, lo, hi))
			if err != nil {
				return res, fmt.Errorf("epoch %d batch %d: %w", epoch, b, err)
			}
			sum += l
			for _, cb := range t.callbacks {
				cb.OnBatchEnd(b, l/float64(hi-lo), n)
			}
		}

		stats := EpochStats{
			Epoch:          epoch,
			Epochs:         cfg.Epochs,
			Loss:           sum / float64(nSamples),
			Classification: classification,
			HasTest:        t.testX != nil,
		}
		res.Loss = append(res.Loss, stats.Loss)

		improved := false
		if classification {
			if stats.TrainAccuracy, err = accuracy(n, samples, trainLabels); err != nil {
				return res, err
			}
			res.TrainAccuracy = append(res.TrainAccuracy, stats.TrainAccuracy)
			if stats.HasTest {
				if stats.TestAccuracy, err = accuracy(n, t.testX, testLabels); err != nil {
					return res, fmt.Errorf("test data: %w", err)
				}
				res.TestAccuracy = append(res.TestAccuracy, stats.TestAccuracy)
			}
			if acc := stats.Monitored(); acc > res.BestAccuracy {
				res.BestAccuracy = acc
				improved = true
			}
		} else {
			improved = stats.Loss < res.BestLoss
		}
		res.BestLoss = math.Min(res.BestLoss, stats.Loss)
		if improved {
			res.BestEpoch = epoch
			if cfg.KeepBest {
				res.BestNet = n.Clone()
			}
		}
		stats.NewBest = improved

		if sched != nil {
			sched.Step(stats.Loss)
		}
		if cfg.ReboostEvery > 0 && (epoch+1)%cfg.ReboostEvery == 0 {
			r.reboost()
		}

		stats.Elapsed = time.Since(start)
		for _, cb := range t.callbacks {
			cb.OnEpochEnd(stats, n)
		}
		if stopRequested(t.callbacks) {
			res.Stopped = true
			break
		}
	}
	return res, nil
}

func stopRequested(cbs []Callback) bool {
	for _, cb := range cbs {
		if s, ok := cb.(Stopper); ok && s.ShouldStop() {
			return true
		}
	}
	return false
}

// targetsFor returns the training targets: truth itself, or its one-hot
// expansion when truth is a label column and the network has several outputs.
func targetsFor(n *Net, samples, truth *mat.Dense) (*mat.Dense, error) {
	if _, c := truth.Dims(); c != 1 {
		return truth, nil
	}
	probe, err := n.Output(tensor.RowRange(samples, 0, 1))
	if err != nil {
		return nil, err
	}
	if _, outCols := probe.Dims(); outCols > 1 {
		return OneHot(truth, outCols)
	}
	return truth, nil
}

// accuracy returns the percentage of rows of x whose predicted class equals
// the label.
func accuracy(n *Net, x *mat.Dense, labels []float64) (float64, error) {
	pred, err := n.Forward(x)
	if err != nil {
		return 0, err
	}
	good := 0
	for i, want := range labels {
		if pred.At(i, 0) == want {
			good++
		}
	}
	return 100 * float64(good) / float64(len(labels)), nil
}
