package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/lazylinear/internal/sparse"
)

// State keys of FTRL.
const (
	FTRLZKey = "ftrl.z"
	FTRLNKey = "ftrl.n"
)

// FTRL implements FTRL-Proximal.
//
// Per feature it keeps z (the learning-rate adjusted gradient sum) and n
// (the summed squared gradients). Weights are not decayed lazily; before
// each step the weights of the instance's features are recomputed from the
// sufficient statistics:
//
//	w = 0                                             if |z| <= l1
//	w = -(z - sign(z)*l1) / ((beta + sqrt(n))/alpha + l2)  otherwise
//
// Update writes those weights straight into the parameter vector and
// returns an empty update.
//
// Reference: McMahan et al., "Ad Click Prediction: a View from the
// Trenches" (2013).
type FTRL struct {
	alpha    float64
	beta     float64
	l1       float64
	l2       float64
	schedule LearningRate

	z *sparse.Vector
	n *sparse.Vector
}

// FTRLConfig holds configuration for FTRL.
type FTRLConfig struct {
	Alpha float64 // Per-coordinate learning rate scale (default: 0.1)
	Beta  float64 // Smoothing term (default: 1)
	L1    float64 // Laplace regularization weight (default: 0)
	L2    float64 // Gaussian regularization weight (default: 0)

	// Rate is the global schedule used for truncation (default:
	// DecreasingRate with its own defaults).
	Rate LearningRate
}

// NewFTRL creates an FTRL-Proximal optimizer.
func NewFTRL(config FTRLConfig) (*FTRL, error) {
	if config.Alpha == 0 {
		config.Alpha = 0.1
	}
	if config.Beta == 0 {
		config.Beta = 1
	}
	if config.Alpha < 0 {
		return nil, fmt.Errorf("%w: alpha must be greater than 0, given %v", ErrInvalidArgument, config.Alpha)
	}
	if config.Beta < 0 {
		return nil, fmt.Errorf("%w: beta must be greater than 0, given %v", ErrInvalidArgument, config.Beta)
	}
	if config.L1 < 0 || config.L2 < 0 {
		return nil, fmt.Errorf("%w: regularization weights must be non-negative, given l1=%v l2=%v",
			ErrInvalidArgument, config.L1, config.L2)
	}
	if config.Rate == nil {
		rate, err := NewDecreasingRate(DecreasingRateConfig{})
		if err != nil {
			return nil, err
		}
		config.Rate = rate
	}

	return &FTRL{
		alpha:    config.Alpha,
		beta:     config.Beta,
		l1:       config.L1,
		l2:       config.L2,
		schedule: config.Rate,
		z:        sparse.NewVector(),
		n:        sparse.NewVector(),
	}, nil
}

// Name returns "ftrl".
func (f *FTRL) Name() string {
	return "ftrl"
}

// LearningRate returns sigma, the change in inverse per-coordinate learning
// rate that gradient would cause: (sqrt(n + g²) - sqrt(n)) / alpha.
func (f *FTRL) LearningRate(feature string, _ int64, gradient float64) float64 {
	n := f.n.Get(feature)
	return (math.Sqrt(n+gradient*gradient) - math.Sqrt(n)) / f.alpha
}

// GlobalRate returns the schedule's rate at iteration.
func (f *FTRL) GlobalRate(iteration int64) float64 {
	return f.schedule.Rate(iteration)
}

// Weight returns the weight of feature implied by its statistics.
func (f *FTRL) Weight(feature string) float64 {
	z, ok := f.z.Get(feature), f.z.Contains(feature)
	if !ok || math.Abs(z) <= f.l1 {
		return 0
	}
	n := f.n.Get(feature)
	return -(z - sign(z)*f.l1) / ((f.beta+math.Sqrt(n))/f.alpha + f.l2)
}

// Update refreshes the instance's weights from z and n, then folds the
// step's gradients into the statistics.
func (f *FTRL) Update(step Step) *sparse.Vector {
	step.Instance.Features.Range(func(feature string, _ float64) bool {
		step.Params.Set(feature, f.Weight(feature))
		return true
	})

	grads := step.Gradients()
	grads.Range(func(feature string, g float64) bool {
		sigma := f.LearningRate(feature, step.Epoch, g)
		f.z.Add(feature, g-sigma*step.Params.Get(feature))
		f.n.Add(feature, g*g)
		return true
	})
	return sparse.NewVector()
}

// Decay returns w unchanged; FTRL regularizes through its statistics.
func (f *FTRL) Decay(_ string, w float64, _, _ int64) float64 {
	return w
}

// Config returns the hyperparameters.
func (f *FTRL) Config() map[string]any {
	out := map[string]any{"alpha": f.alpha, "beta": f.beta, "l1": f.l1, "l2": f.l2}
	addScheduleConfig(out, f.schedule)
	return out
}

// Reset drops the accumulated statistics.
func (f *FTRL) Reset() {
	f.z = sparse.NewVector()
	f.n = sparse.NewVector()
}

// State returns copies of z and n.
func (f *FTRL) State() map[string]*sparse.Vector {
	return map[string]*sparse.Vector{
		FTRLZKey: f.z.Copy(),
		FTRLNKey: f.n.Copy(),
	}
}

// MergeState adds scale times other's z and all of its n.
func (f *FTRL) MergeState(other Stateful, scale float64) error {
	o, ok := other.(*FTRL)
	if !ok {
		return fmt.Errorf("%w: cannot merge %T state into ftrl", ErrInvalidArgument, other)
	}
	state := o.State()
	f.z.AddScaled(state[FTRLZKey], scale)
	f.n.AddVector(state[FTRLNKey])
	return nil
}

// SetState replaces z and n.
func (f *FTRL) SetState(state map[string]*sparse.Vector) error {
	z, ok := state[FTRLZKey]
	if !ok {
		return fmt.Errorf("%w: missing %q state", ErrInvalidArgument, FTRLZKey)
	}
	n, ok := state[FTRLNKey]
	if !ok {
		return fmt.Errorf("%w: missing %q state", ErrInvalidArgument, FTRLNKey)
	}
	f.z = z.Copy()
	f.n = n.Copy()
	return nil
}
