package opt

import "math"

// Scheduler adjusts the learning rate of a set of optimizers once per epoch.
type Scheduler interface {
	// Step is called at the end of every epoch with the epoch's mean loss.
	// It returns the learning rate now in effect.
	Step(loss float64) float64
}

// scheduled applies lr to every optimizer that has a learning rate.
type scheduled struct {
	opts []Optimizer
	base float64
}

func newScheduled(opts []Optimizer) scheduled {
	s := scheduled{opts: opts}
	for _, o := range opts {
		if l, ok := o.(LearningRater); ok {
			s.base = l.LearningRate()
			break
		}
	}
	return s
}

func (s *scheduled) set(rate float64) {
	for _, o := range s.opts {
		if l, ok := o.(LearningRater); ok {
			l.SetLearningRate(rate)
		}
	}
}

// StepLR multiplies the learning rate by Gamma every StepSize epochs.
type StepLR struct {
	scheduled
	stepSize int
	gamma    float64
	epoch    int
	rate     float64
}

// NewStepLR creates a StepLR over opts, starting from their current rate.
func NewStepLR(opts []Optimizer, stepSize int, gamma float64) *StepLR {
	s := &StepLR{scheduled: newScheduled(opts), stepSize: stepSize, gamma: gamma}
	s.rate = s.base
	return s
}

func (s *StepLR) Step(float64) float64 {
	s.epoch++
	if s.stepSize > 0 && s.epoch%s.stepSize == 0 {
		s.rate *= s.gamma
		s.set(s.rate)
	}
	return s.rate
}

// ExponentialLR multiplies the learning rate by Gamma every epoch.
type ExponentialLR struct {
	scheduled
	gamma float64
	rate  float64
}

func NewExponentialLR(opts []Optimizer, gamma float64) *ExponentialLR {
	s := &ExponentialLR{scheduled: newScheduled(opts), gamma: gamma}
	s.rate = s.base
	return s
}

func (s *ExponentialLR) Step(float64) float64 {
	s.rate *= s.gamma
	s.set(s.rate)
	return s.rate
}

// ReduceLROnPlateau multiplies the learning rate by factor when the loss has
// not improved by more than threshold for patience epochs. The rate never
// drops below minLR.
type ReduceLROnPlateau struct {
	scheduled
	factor    float64
	patience  int
	threshold float64
	minLR     float64

	rate     float64
	best     float64
	badCount int
}

func NewReduceLROnPlateau(opts []Optimizer, factor float64, patience int, threshold, minLR float64) *ReduceLROnPlateau {
	s := &ReduceLROnPlateau{
		scheduled: newScheduled(opts),
		factor:    factor,
		patience:  patience,
		threshold: threshold,
		minLR:     minLR,
		best:      math.Inf(1),
	}
	s.rate = s.base
	return s
}

func (s *ReduceLROnPlateau) Step(loss float64) float64 {
	if loss < s.best-s.threshold {
		s.best = loss
		s.badCount = 0
		return s.rate
	}
	s.badCount++
	if s.badCount >= s.patience {
		s.rate = math.Max(s.rate*s.factor, s.minLR)
		s.set(s.rate)
		s.badCount = 0
	}
	return s.rate
}

// SchedulerFactory builds a scheduler over the optimizers of one training run.
type SchedulerFactory func(opts []Optimizer) Scheduler
