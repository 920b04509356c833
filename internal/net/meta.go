package net

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/minidnn/internal/layer"
	"github.com/FlavioCFOliveira/minidnn/internal/tensor"
)

// MetaTrainer trains several independent copies of a network concurrently and
// keeps the best one. Every run trains a deep clone with its own optimizer
// instances and shuffle seed Config.Seed+run. The dropout and noise layers of
// each clone are reseeded from the run seed. Weights are cloned unchanged, so
// runs only start from different weights when Init draws them. Config.Loss is
// shared, so a loss OnClip hook must be safe for concurrent use.
type MetaTrainer struct {
	Config Config
	// Runs is the number of independent training runs.
	Runs int
	// Workers bounds the number of concurrent runs. 0 uses GOMAXPROCS.
	Workers int
	// Init, if set, prepares the clone of each run before training, e.g. to
	// draw fresh weights. It runs after reseeding.
	Init func(run int, n *Net) *Net
	// Callbacks, if set, returns the callbacks of each run. Callbacks must
	// not be shared between runs.
	Callbacks func(run int) []Callback

	testX, testT *mat.Dense
}

// SetTestData sets the held-out set used by every run.
func (m *MetaTrainer) SetTestData(samples, truth *mat.Dense) {
	m.testX, m.testT = samples, truth
}

// MetaResult holds the outcome of every run and the index of the best one.
type MetaResult struct {
	Runs []*Result
	// Nets holds the network kept by each run: Result.BestNet when KeepBest
	// is set, the final network otherwise.
	Nets []*Net
	// Scores is the evaluation of each kept network: accuracy in percent in
	// classification mode (on the test set when set), mean training loss
	// otherwise.
	Scores []float64
	Best   int
}

// BestNet returns the kept network of the best run.
func (r *MetaResult) BestNet() *Net {
	return r.Nets[r.Best]
}

// BestResult returns the training history of the best run.
func (r *MetaResult) BestResult() *Result {
	return r.Runs[r.Best]
}

// Run trains m.Runs clones of proto and evaluates the network each run keeps.
// The best run has the highest score in classification mode and the lowest
// otherwise. The first run error cancels the remaining runs and is returned.
func (m *MetaTrainer) Run(ctx context.Context, proto *Net, samples, truth *mat.Dense) (*MetaResult, error) {
	if m.Runs <= 0 {
		return nil, fmt.Errorf("meta: runs must be positive, got %d: %w", m.Runs, tensor.ErrInvalidConfiguration)
	}
	if m.Config.Optimizer == nil {
		return nil, fmt.Errorf("meta: no optimizer: %w", tensor.ErrInvalidConfiguration)
	}
	workers := m.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, m.Runs)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	res := &MetaResult{
		Runs:   make([]*Result, m.Runs),
		Nets:   make([]*Net, m.Runs),
		Scores: make([]float64, m.Runs),
	}
	errs := make([]error, m.Runs)
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i := 0; i < m.Runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			if ctx.Err() != nil {
				errs[i] = ctx.Err()
				return
			}

			cfg := m.Config
			cfg.Seed += uint64(i)
			cfg.Optimizer = cfg.Optimizer.Clone()
			n := proto.Clone()
			reseed(n, cfg.Seed)
			if m.Init != nil {
				n = m.Init(i, n)
			}
			t := NewTrainer(cfg)
			if m.testX != nil {
				t.SetTestData(m.testX, m.testT)
			}
			if m.Callbacks != nil {
				for _, cb := range m.Callbacks(i) {
					t.AddCallback(cb)
				}
			}

			r, err := t.Train(ctx, n, samples, truth)
			if err != nil {
				errs[i] = fmt.Errorf("run %d: %w", i, err)
				cancel()
				return
			}
			kept := n
			if r.KeepBest && r.BestNet != nil {
				kept = r.BestNet
			}
			score, err := m.evaluate(kept, cfg, samples, truth)
			if err != nil {
				errs[i] = fmt.Errorf("run %d: %w", i, err)
				cancel()
				return
			}
			res.Runs[i], res.Nets[i], res.Scores[i] = r, kept, score
		}(i)
	}
	wg.Wait()

	if err := firstError(errs); err != nil {
		return nil, err
	}
	res.Best = bestRun(res.Scores, proto.ClassificationMode())
	return res, nil
}

// reseed restarts the random stream of every stochastic layer of n from a
// generator seeded with seed.
func reseed(n *Net, seed uint64) {
	rng := rand.New(rand.NewSource(seed))
	for _, l := range n.layers {
		if r, ok := l.(layer.Reseeder); ok {
			r.Reseed(rng.Uint64())
		}
	}
}

// evaluate scores a kept network: accuracy in classification mode, mean loss
// of cfg.Loss on the training data otherwise.
func (m *MetaTrainer) evaluate(n *Net, cfg Config, samples, truth *mat.Dense) (float64, error) {
	if n.ClassificationMode() {
		if m.testX != nil {
			return accuracy(n, m.testX, Labels(m.testT))
		}
		return accuracy(n, samples, Labels(truth))
	}
	target, err := targetsFor(n, samples, truth)
	if err != nil {
		return 0, err
	}
	out, err := n.Output(samples)
	if err != nil {
		return 0, err
	}
	l, _, err := cfg.Loss.Forward(out, target, false)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", cfg.Loss.Name(), err)
	}
	return mat.Sum(l) / float64(rows(samples)), nil
}

// firstError prefers a run failure over the cancellations it caused.
func firstError(errs []error) error {
	var canceled error
	for _, err := range errs {
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled) && canceled == nil:
			canceled = err
		case !errors.Is(err, context.Canceled):
			return err
		}
	}
	return canceled
}

// bestRun returns the index of the highest score in classification mode and
// of the lowest otherwise. Ties keep the earlier run.
func bestRun(scores []float64, classification bool) int {
	best := 0
	for i, s := range scores[1:] {
		if classification && s > scores[best] || !classification && s < scores[best] {
			best = i + 1
		}
	}
	return best
}
