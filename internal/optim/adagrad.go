package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/lazylinear/internal/sparse"
)

// State keys of Adagrad.
const (
	AdagradSquaredKey = "adagrad.squared"
	AdagradSumKey     = "adagrad.sum"
)

// Adagrad implements per-feature adaptive learning rates with optional lazy
// L1 regularization.
//
// Update rule:
//
//	G_f = G_f + g²           // G_f starts at 1, not 0, on first touch
//	w_f = w_f - rate0 / sqrt(G_f) * g
//
// With L1 the weight of a feature at iteration t is the proximal solution
//
//	w_f = -sign(u_f) * (rate0*t / sqrt(G_f)) * (|u_f|/t - l1)   if |u_f|/t > l1
//	w_f = 0                                                      otherwise
//
// where u_f is the running sum of the feature's gradients.
//
// Reference: Duchi, Hazan, Singer, "Adaptive Subgradient Methods for Online
// Learning and Stochastic Optimization" (2011).
type Adagrad struct {
	initial  float64
	l1       float64
	schedule LearningRate

	squared *sparse.Vector // G: summed squared gradients
	sum     *sparse.Vector // u: running gradient sums
}

// AdagradConfig holds configuration for Adagrad.
type AdagradConfig struct {
	LR float64 // Initial learning rate (default: 0.1)
	L1 float64 // Laplace regularization weight (default: 0)

	// Rate is the global schedule used for truncation (default:
	// DecreasingRate starting at LR).
	Rate LearningRate
}

// NewAdagrad creates an Adagrad optimizer.
func NewAdagrad(config AdagradConfig) (*Adagrad, error) {
	if config.LR == 0 {
		config.LR = DefaultInitialRate
	}
	if config.LR < 0 {
		return nil, fmt.Errorf("%w: learning rate must be greater than 0, given %v", ErrInvalidArgument, config.LR)
	}
	if config.L1 < 0 {
		return nil, fmt.Errorf("%w: l1 must be non-negative, given %v", ErrInvalidArgument, config.L1)
	}
	if config.Rate == nil {
		rate, err := NewDecreasingRate(DecreasingRateConfig{Initial: config.LR})
		if err != nil {
			return nil, err
		}
		config.Rate = rate
	}

	return &Adagrad{
		initial:  config.LR,
		l1:       config.L1,
		schedule: config.Rate,
		squared:  sparse.NewVector(),
		sum:      sparse.NewVector(),
	}, nil
}

// Name returns "adagrad".
func (a *Adagrad) Name() string {
	return "adagrad"
}

func (a *Adagrad) accumulated(feature string, gradient float64) float64 {
	g2 := gradient * gradient
	if !a.squared.Contains(feature) {
		// Starting at 1 keeps the first steps from oscillating when early
		// gradients are tiny.
		g2++
	}
	return a.squared.Get(feature) + g2
}

// LearningRate returns the rate feature would get if gradient were applied
// now: rate0 / sqrt(G_f + g²), with G_f starting at 1.
func (a *Adagrad) LearningRate(feature string, _ int64, gradient float64) float64 {
	return a.initial / math.Sqrt(a.accumulated(feature, gradient))
}

// GlobalRate returns the schedule's rate at iteration.
func (a *Adagrad) GlobalRate(iteration int64) float64 {
	return a.schedule.Rate(iteration)
}

// Update accumulates the step's gradients and returns the per-feature
// scaled descent direction.
func (a *Adagrad) Update(step Step) *sparse.Vector {
	grads := step.Gradients()
	out := sparse.NewVectorWithCapacity(grads.Len())

	grads.Range(func(feature string, g float64) bool {
		rate := a.LearningRate(feature, step.Epoch, g)
		a.squared.Set(feature, a.accumulated(feature, g))
		a.sum.Add(feature, g)
		out.Set(feature, -rate*g)
		return true
	})
	return out
}

// Decay replays the L1 proximal step for iterations (from, to].
//
// Each step only depends on the feature's statistics and the iteration, so
// the loop settles on the value at to; it is kept step by step and exits as
// soon as the weight reaches zero.
func (a *Adagrad) Decay(feature string, w float64, from, to int64) float64 {
	if sparse.IsZero(a.l1) {
		return w
	}
	for iter := from + 1; iter <= to; iter++ {
		if sparse.IsZero(w) {
			return 0
		}
		w = a.proximal(feature, iter)
	}
	return w
}

func (a *Adagrad) proximal(feature string, iter int64) float64 {
	t := float64(iter)
	u := a.sum.Get(feature)
	if math.Abs(u)/t <= a.l1 {
		return 0
	}
	eta := a.initial * t / math.Sqrt(a.squared.Get(feature))
	return -sign(u) * eta * (math.Abs(u)/t - a.l1)
}

// Config returns the hyperparameters.
func (a *Adagrad) Config() map[string]any {
	out := map[string]any{"lr": a.initial, "l1": a.l1}
	addScheduleConfig(out, a.schedule)
	return out
}

// Reset drops the accumulated statistics.
func (a *Adagrad) Reset() {
	a.squared = sparse.NewVector()
	a.sum = sparse.NewVector()
}

// State returns copies of the accumulated statistics.
func (a *Adagrad) State() map[string]*sparse.Vector {
	return map[string]*sparse.Vector{
		AdagradSquaredKey: a.squared.Copy(),
		AdagradSumKey:     a.sum.Copy(),
	}
}

// MergeState adds other's squared gradient sums and scale times its
// gradient sums.
func (a *Adagrad) MergeState(other Stateful, scale float64) error {
	o, ok := other.(*Adagrad)
	if !ok {
		return fmt.Errorf("%w: cannot merge %T state into adagrad", ErrInvalidArgument, other)
	}
	state := o.State()
	a.squared.AddVector(state[AdagradSquaredKey])
	a.sum.AddScaled(state[AdagradSumKey], scale)
	return nil
}

// SetState replaces the accumulated statistics.
func (a *Adagrad) SetState(state map[string]*sparse.Vector) error {
	squared, ok := state[AdagradSquaredKey]
	if !ok {
		return fmt.Errorf("%w: missing %q state", ErrInvalidArgument, AdagradSquaredKey)
	}
	sum, ok := state[AdagradSumKey]
	if !ok {
		return fmt.Errorf("%w: missing %q state", ErrInvalidArgument, AdagradSumKey)
	}
	a.squared = squared.Copy()
	a.sum = sum.Copy()
	return nil
}
