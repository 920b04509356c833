package net

import (
	"log"
	"math"
	"time"

	"github.com/FlavioCFOliveira/minidnn/internal/tensor"
)

// EpochStats summarizes one finished epoch.
type EpochStats struct {
	Epoch  int // zero-based
	Epochs int
	Loss   float64

	// Accuracies are percentages, only meaningful in classification mode.
	Classification bool
	TrainAccuracy  float64
	TestAccuracy   float64
	HasTest        bool

	// NewBest is set when this epoch produced a new best snapshot.
	NewBest bool
	Elapsed time.Duration
}

// Monitored returns the accuracy used for best-model selection: test
// accuracy when a test set is configured, otherwise train accuracy.
func (s EpochStats) Monitored() float64 {
	if s.HasTest {
		return s.TestAccuracy
	}
	return s.TrainAccuracy
}

// Callback defines the interface for training callbacks.
type Callback interface {
	OnTrainBegin(n *Net)
	OnTrainEnd(n *Net)
	OnEpochBegin(epoch int, n *Net)
	OnEpochEnd(stats EpochStats, n *Net)
	OnBatchBegin(batch int, n *Net)
	OnBatchEnd(batch int, loss float64, n *Net)
}

// Stopper is implemented by callbacks that can end training early. It is
// consulted after every epoch.
type Stopper interface {
	ShouldStop() bool
}

// BaseCallback provides default empty implementations for Callback.
type BaseCallback struct{}

func (BaseCallback) OnTrainBegin(*Net)             {}
func (BaseCallback) OnTrainEnd(*Net)               {}
func (BaseCallback) OnEpochBegin(int, *Net)        {}
func (BaseCallback) OnEpochEnd(EpochStats, *Net)   {}
func (BaseCallback) OnBatchBegin(int, *Net)        {}
func (BaseCallback) OnBatchEnd(int, float64, *Net) {}

// Monitor selects the metric watched by EarlyStopping.
type Monitor int

const (
	MonitorLoss     Monitor = iota // lower is better
	MonitorAccuracy                // higher is better, see EpochStats.Monitored
)

// EarlyStopping stops training when a monitored metric has stopped improving
// by more than Threshold for Patience epochs.
type EarlyStopping struct {
	BaseCallback
	Patience  int
	Threshold float64
	Monitor   Monitor

	best         float64
	numBadEpochs int
	stopped      bool
	stoppedAt    int
}

func NewEarlyStopping(patience int, threshold float64) *EarlyStopping {
	return &EarlyStopping{Patience: patience, Threshold: threshold}
}

func (c *EarlyStopping) OnTrainBegin(*Net) {
	c.best = math.Inf(1)
	c.numBadEpochs = 0
	c.stopped = false
	c.stoppedAt = -1
}

func (c *EarlyStopping) OnEpochEnd(stats EpochStats, _ *Net) {
	v := stats.Loss
	if c.Monitor == MonitorAccuracy {
		v = -stats.Monitored()
	}
	if v < c.best-c.Threshold {
		c.best = v
		c.numBadEpochs = 0
	} else {
		c.numBadEpochs++
	}
	if c.numBadEpochs >= c.Patience {
		c.stopped = true
		c.stoppedAt = stats.Epoch
	}
}

func (c *EarlyStopping) ShouldStop() bool { return c.stopped }

// StoppedEpoch returns the zero-based epoch training stopped at, or -1.
func (c *EarlyStopping) StoppedEpoch() int { return c.stoppedAt }

// Logger logs training progress through a standard logger.
type Logger struct {
	BaseCallback
	// Interval logs every Interval-th epoch; 0 or 1 logs every epoch.
	Interval int
	// Out defaults to log.Default().
	Out *log.Logger
}

// NewLogger creates a Logger writing to out every interval epochs.
func NewLogger(out *log.Logger, interval int) *Logger {
	return &Logger{Interval: interval, Out: out}
}

func (c *Logger) out() *log.Logger {
	if c.Out == nil {
		return log.Default()
	}
	return c.Out
}

func (c *Logger) OnEpochEnd(stats EpochStats, _ *Net) {
	if c.Interval > 1 && (stats.Epoch+1)%c.Interval != 0 && !stats.NewBest {
		return
	}
	best := ""
	if stats.NewBest {
		best = " (new best)"
	}
	switch {
	case !stats.Classification:
		c.out().Printf("Epoch %d/%d: loss=%.6f%s", stats.Epoch+1, stats.Epochs, stats.Loss, best)
	case stats.HasTest:
		c.out().Printf("Epoch %d/%d: loss=%.6f train=%.2f%% test=%.2f%%%s",
			stats.Epoch+1, stats.Epochs, stats.Loss, stats.TrainAccuracy, stats.TestAccuracy, best)
	default:
		c.out().Printf("Epoch %d/%d: loss=%.6f train=%.2f%%%s",
			stats.Epoch+1, stats.Epochs, stats.Loss, stats.TrainAccuracy, best)
	}
}

// Warn logs a probability clipping event. It matches the OnClip hook of the
// cross-entropy losses.
func (c *Logger) Warn(w tensor.NumericDomainWarning) {
	c.out().Printf("warning: %s", w)
}
