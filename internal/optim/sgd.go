package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/lazylinear/internal/sparse"
)

// ElasticNet implements plain SGD with lazily replayed L1 + L2
// regularization.
//
// Update rule:
//
//	w = w - rate(epoch) * gradient
//
// Regularization, replayed for every iteration i a coordinate was not
// touched:
//
//	w = w - rate(i) * l2 * w               // Gaussian shrink
//	w = sign(w) * max(0, |w| - rate(i)*l1) // Laplace soft threshold
//
// Runs of iterations where the schedule is flat are collapsed into one
// closed-form step, so a coordinate idle for a million iterations during the
// first epoch costs the same as one idle for a single iteration.
//
// Example:
//
//	opt, err := optim.NewElasticNet(optim.ElasticNetConfig{
//	    L1: 0.1,
//	    L2: 0.01,
//	})
type ElasticNet struct {
	schedule LearningRate
	l1       float64
	l2       float64
}

// ElasticNetConfig holds configuration for ElasticNet.
type ElasticNetConfig struct {
	L1 float64 // Laplace regularization weight (default: 0)
	L2 float64 // Gaussian regularization weight (default: 0)

	// Rate is the learning-rate schedule (default: DecreasingRate with its
	// own defaults).
	Rate LearningRate
}

// NewElasticNet creates an ElasticNet optimizer.
func NewElasticNet(config ElasticNetConfig) (*ElasticNet, error) {
	if config.L1 < 0 {
		return nil, fmt.Errorf("%w: l1 must be non-negative, given %v", ErrInvalidArgument, config.L1)
	}
	if config.L2 < 0 {
		return nil, fmt.Errorf("%w: l2 must be non-negative, given %v", ErrInvalidArgument, config.L2)
	}
	if config.Rate == nil {
		rate, err := NewDecreasingRate(DecreasingRateConfig{})
		if err != nil {
			return nil, err
		}
		config.Rate = rate
	}

	return &ElasticNet{schedule: config.Rate, l1: config.L1, l2: config.L2}, nil
}

// Name returns "elastic_net".
func (e *ElasticNet) Name() string {
	return "elastic_net"
}

// LearningRate returns the global rate at iteration; it is the same for
// every feature.
func (e *ElasticNet) LearningRate(_ string, iteration int64, _ float64) float64 {
	return e.schedule.Rate(iteration)
}

// GlobalRate returns the schedule's rate at iteration.
func (e *ElasticNet) GlobalRate(iteration int64) float64 {
	return e.schedule.Rate(iteration)
}

// Update returns -rate(epoch) * gradient.
func (e *ElasticNet) Update(step Step) *sparse.Vector {
	return scaled(step.Gradients(), -e.schedule.Rate(step.Epoch))
}

// Decay replays the elastic-net shrinkage for iterations (from, to].
func (e *ElasticNet) Decay(_ string, w float64, from, to int64) float64 {
	if sparse.IsZero(e.l1) && sparse.IsZero(e.l2) {
		return w
	}

	for i := from + 1; i <= to; {
		if sparse.IsZero(w) {
			return 0
		}
		end := min(to, e.schedule.FlatThrough(i))
		w = e.shrink(w, e.schedule.Rate(i), end-i+1)
		i = end + 1
	}
	return w
}

// shrink applies n identical regularization steps with learning rate eta.
//
// With a = 1 - eta*l2 and b = eta*l1, each step maps |w| to a|w| - b until
// it reaches zero, which sums to
//
//	|w_n| = a^n |w_0| - b (1 - a^n) / (1 - a)
func (e *ElasticNet) shrink(w, eta float64, n int64) float64 {
	a := 1 - eta*e.l2
	b := eta * e.l1

	if a <= 0 {
		// The Gaussian step alone reaches or crosses zero; clamp there.
		return 0
	}

	m := math.Abs(w)
	if a == 1 {
		m -= float64(n) * b
	} else {
		an := math.Pow(a, float64(n))
		m = an*m - b*(1-an)/(1-a)
	}
	if m <= 0 {
		return 0
	}
	return math.Copysign(m, w)
}

// Config returns the hyperparameters.
func (e *ElasticNet) Config() map[string]any {
	out := map[string]any{"l1": e.l1, "l2": e.l2}
	addScheduleConfig(out, e.schedule)
	return out
}

// Reset is a no-op; ElasticNet keeps no per-feature state.
func (e *ElasticNet) Reset() {}

func addScheduleConfig(out map[string]any, s LearningRate) {
	switch r := s.(type) {
	case *DecreasingRate:
		for k, v := range r.config() {
			out[k] = v
		}
	case ConstantRate:
		out["constant_rate"] = float64(r)
	}
}
