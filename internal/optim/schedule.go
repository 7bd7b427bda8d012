package optim

import (
	"fmt"
	"math"
)

// Schedule defaults.
const (
	DefaultInitialRate      = 0.1
	DefaultExamplesPerEpoch = 10000
	DefaultExponentialBase  = 0.99
)

// LearningRate is a global learning-rate schedule over iterations.
type LearningRate interface {
	// Rate returns the learning rate at iteration t.
	Rate(t int64) float64

	// FlatThrough returns the last iteration t' >= t such that the rate is
	// the same for every iteration in [t, t']. Decay functions use it to
	// collapse runs of identical steps into one closed-form step.
	FlatThrough(t int64) int64
}

// ConstantRate is a schedule that never changes.
type ConstantRate float64

// Rate returns the constant rate.
func (r ConstantRate) Rate(int64) float64 { return float64(r) }

// FlatThrough returns math.MaxInt64.
func (r ConstantRate) FlatThrough(int64) int64 { return math.MaxInt64 }

// DecreasingRateConfig holds configuration for DecreasingRate.
type DecreasingRateConfig struct {
	Initial          float64 // Initial learning rate (default: 0.1)
	ExamplesPerEpoch float64 // Examples before the rate starts to decrease (default: 10000)
	Exponential      bool    // Decay exponentially instead of inversely
	Base             float64 // Base of the exponential decay (default: 0.99, range: (0, 1])
}

// DecreasingRate is a rate that stays at its initial value for the first
// epoch and then decreases, either inversely with the epoch:
//
//	rate(t) = initial / max(1, (t+1)/examplesPerEpoch)
//
// or exponentially:
//
//	rate(t) = initial * base^max(1, (t+1)/examplesPerEpoch)
type DecreasingRate struct {
	initial     float64
	examples    float64
	exponential bool
	base        float64
}

// NewDecreasingRate creates a decreasing schedule, filling defaults for zero
// fields.
func NewDecreasingRate(config DecreasingRateConfig) (*DecreasingRate, error) {
	if config.Initial == 0 {
		config.Initial = DefaultInitialRate
	}
	if config.ExamplesPerEpoch == 0 {
		config.ExamplesPerEpoch = DefaultExamplesPerEpoch
	}
	if config.Base == 0 {
		config.Base = DefaultExponentialBase
	}

	if config.Initial < 0 {
		return nil, fmt.Errorf("%w: initial learning rate must be greater than 0, given %v", ErrInvalidArgument, config.Initial)
	}
	if config.ExamplesPerEpoch < 0 {
		return nil, fmt.Errorf("%w: examples per epoch must be positive, given %v", ErrInvalidArgument, config.ExamplesPerEpoch)
	}
	if config.Base < 0 || config.Base > 1 {
		return nil, fmt.Errorf("%w: exponential base must be in (0, 1], given %v", ErrInvalidArgument, config.Base)
	}

	return &DecreasingRate{
		initial:     config.Initial,
		examples:    config.ExamplesPerEpoch,
		exponential: config.Exponential,
		base:        config.Base,
	}, nil
}

// Initial returns the initial rate.
func (r *DecreasingRate) Initial() float64 {
	return r.initial
}

func (r *DecreasingRate) fudgedEpoch(t int64) float64 {
	return math.Max(1, float64(t+1)/r.examples)
}

// Rate returns the learning rate at iteration t.
func (r *DecreasingRate) Rate(t int64) float64 {
	e := r.fudgedEpoch(t)
	if r.exponential {
		return math.Max(0, r.initial*math.Pow(r.base, e))
	}
	return math.Max(0, r.initial/e)
}

// FlatThrough returns the end of the first epoch while still in it, t
// itself afterwards.
func (r *DecreasingRate) FlatThrough(t int64) int64 {
	last := int64(math.Floor(r.examples)) - 1
	if t >= last {
		return t
	}
	return last
}

func (r *DecreasingRate) config() map[string]any {
	return map[string]any{
		"initial_rate":       r.initial,
		"examples_per_epoch": r.examples,
		"exponential":        r.exponential,
		"exponential_base":   r.base,
	}
}
