package net

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/minidnn/internal/layer"
	"github.com/FlavioCFOliveira/minidnn/internal/loss"
	"github.com/FlavioCFOliveira/minidnn/internal/opt"
	"github.com/FlavioCFOliveira/minidnn/internal/tensor"
)

func TestMetaTrainerPicksBestRun(t *testing.T) {
	x, y := linearData(10)
	proto := regressionNet()
	before := mat.DenseCopyOf(proto.Layers()[0].Params().Weight)

	cfg := regressionConfig()
	cfg.Epochs = 2
	cfg.Optimizer = opt.NewSGD(0.01)

	var callbacks atomic.Int32
	m := &MetaTrainer{
		Config:  cfg,
		Runs:    3,
		Workers: 2,
		Init: func(run int, n *Net) *Net {
			d := layer.NewDense(1, 1, layer.WithSeed(uint64(run)))
			if run == 1 {
				// Run 1 starts at the exact solution.
				_ = d.SetWeights(mat.NewDense(1, 1, []float64{2}))
				_ = d.SetBias(mat.NewDense(1, 1, []float64{1}))
			}
			fresh := New(d)
			fresh.SetClassificationMode(n.ClassificationMode())
			return fresh
		},
		Callbacks: func(int) []Callback {
			callbacks.Add(1)
			return []Callback{&recorder{}}
		},
	}

	res, err := m.Run(context.Background(), proto, x, y)
	require.NoError(t, err)
	require.Len(t, res.Runs, 3)
	require.Len(t, res.Nets, 3)
	assert.Equal(t, int32(3), callbacks.Load())

	assert.Equal(t, 1, res.Best)
	assert.Equal(t, 0.0, res.BestResult().BestLoss)
	assert.Same(t, res.Nets[1], res.BestNet())
	assert.Same(t, res.Runs[1].BestNet, res.BestNet())
	assert.Equal(t, 0.0, res.Scores[1])
	for _, r := range res.Runs {
		assert.Equal(t, 2, r.Epochs())
	}

	assert.True(t, mat.Equal(before, proto.Layers()[0].Params().Weight), "the prototype is not trained")
}

func TestMetaTrainerErrors(t *testing.T) {
	x, y := linearData(10)

	m := &MetaTrainer{Config: regressionConfig()}
	_, err := m.Run(context.Background(), regressionNet(), x, y)
	assert.ErrorIs(t, err, tensor.ErrInvalidConfiguration)

	cfg := regressionConfig()
	cfg.Optimizer = nil
	m = &MetaTrainer{Config: cfg, Runs: 2}
	_, err = m.Run(context.Background(), regressionNet(), x, y)
	assert.ErrorIs(t, err, tensor.ErrInvalidConfiguration)

	// Every run fails validation; the failure wins over cancellation.
	m = &MetaTrainer{Config: regressionConfig(), Runs: 4, Workers: 2}
	_, err = m.Run(context.Background(), regressionNet(), x, mat.NewDense(3, 1, nil))
	assert.ErrorIs(t, err, tensor.ErrInvalidConfiguration)
	assert.NotErrorIs(t, err, context.Canceled)
}

func TestMetaTrainerCanceled(t *testing.T) {
	x, y := linearData(10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := &MetaTrainer{Config: regressionConfig(), Runs: 2}
	_, err := m.Run(ctx, regressionNet(), x, y)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFirstError(t *testing.T) {
	boom := errors.New("boom")
	assert.NoError(t, firstError([]error{nil, nil}))
	assert.ErrorIs(t, firstError([]error{context.Canceled, nil}), context.Canceled)
	assert.ErrorIs(t, firstError([]error{context.Canceled, boom}), boom)
}

func TestBestRun(t *testing.T) {
	assert.Equal(t, 1, bestRun([]float64{80, 90, 90}, true), "ties keep the earlier run")
	assert.Equal(t, 2, bestRun([]float64{0.1, 0.3, 0.05}, false))
	assert.Equal(t, 0, bestRun([]float64{0.1, 0.1}, false))
}

func meanSquaredError(t *testing.T, n *Net, x, y *mat.Dense) float64 {
	t.Helper()
	out, err := n.Output(x)
	require.NoError(t, err)
	l, _, err := loss.MSE{}.Forward(out, y, false)
	require.NoError(t, err)
	return mat.Sum(l) / float64(rows(x))
}

func TestMetaTrainerScoresKeptNetwork(t *testing.T) {
	x, y := linearData(10)
	cfg := regressionConfig()
	cfg.Epochs = 6
	cfg.BatchSize = 0
	// Diverges from the first epoch on, so the final network is the worst.
	cfg.Optimizer = opt.NewSGD(6)

	m := &MetaTrainer{
		Config: cfg,
		Runs:   2,
		Init: func(run int, n *Net) *Net {
			fresh := New(layer.NewDense(1, 1, layer.WithSeed(uint64(10+run))))
			fresh.SetClassificationMode(false)
			return fresh
		},
	}
	res, err := m.Run(context.Background(), regressionNet(), x, y)
	require.NoError(t, err)

	for i, r := range res.Runs {
		require.NotNil(t, r.BestNet)
		assert.Same(t, r.BestNet, res.Nets[i])
		got := meanSquaredError(t, res.Nets[i], x, y)
		assert.InDelta(t, got, res.Scores[i], 1e-12)
		// The snapshot is taken after the best epoch's update.
		assert.InDelta(t, r.Loss[r.BestEpoch+1], res.Scores[i], 1e-9)
		assert.Less(t, res.Scores[i], r.Loss[len(r.Loss)-1])
	}
	want := 0
	if res.Scores[1] < res.Scores[0] {
		want = 1
	}
	assert.Equal(t, want, res.Best)
	assert.InDelta(t, meanSquaredError(t, res.BestNet(), x, y), res.Scores[res.Best], 1e-12)

	m.Config.KeepBest = false
	res, err = m.Run(context.Background(), regressionNet(), x, y)
	require.NoError(t, err)
	for i, r := range res.Runs {
		assert.Nil(t, r.BestNet)
		assert.InDelta(t, meanSquaredError(t, res.Nets[i], x, y), res.Scores[i], 1e-12)
		assert.Greater(t, res.Scores[i], r.Loss[len(r.Loss)-1], "the final network kept diverging")
	}
}

func TestMetaTrainerReseedsStochasticLayers(t *testing.T) {
	x, y := linearData(10)
	cfg := regressionConfig()
	cfg.Epochs = 2
	cfg.KeepBest = false

	proto := New(layer.NewDense(1, 1, layer.WithSeed(5)), layer.NewDropout(0.5, layer.WithSeed(1)))
	proto.SetClassificationMode(false)

	mask := func(l layer.Layer) *mat.Dense {
		x := mat.NewDense(1, 64, nil)
		for j := 0; j < 64; j++ {
			x.Set(0, j, 1)
		}
		out, _, err := l.Clone().Forward(x, true)
		require.NoError(t, err)
		return out
	}
	m := &MetaTrainer{Config: cfg, Runs: 2}

	first, err := m.Run(context.Background(), proto, x, y)
	require.NoError(t, err)
	a, b := mask(first.Nets[0].Layers()[1]), mask(first.Nets[1].Layers()[1])
	assert.False(t, mat.Equal(a, b), "runs draw different dropout masks")

	second, err := m.Run(context.Background(), proto, x, y)
	require.NoError(t, err)
	assert.True(t, mat.Equal(a, mask(second.Nets[0].Layers()[1])), "reseeding follows the run seed")

	assert.True(t, mat.Equal(mask(layer.NewDropout(0.5, layer.WithSeed(1))), mask(proto.Layers()[1])),
		"the prototype keeps its seed")
}
