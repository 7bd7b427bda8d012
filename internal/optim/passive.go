package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/lazylinear/internal/sparse"
)

// PassiveAggressive implements the PA-II update.
//
// The step size comes from the instance's own norm:
//
//	tau = loss / (||x||² + 1/(2C))
//	w   = w + tau * direction * x
//
// where direction is the ±1 label for classification and the sign of the
// residual (label - score) for regression. No per-feature state is kept.
//
// Reference: Crammer et al., "Online Passive-Aggressive Algorithms" (2006).
type PassiveAggressive struct {
	c        float64
	hinge    bool
	schedule LearningRate
}

// PassiveAggressiveConfig holds configuration for PassiveAggressive.
type PassiveAggressiveConfig struct {
	C     float64 // Aggressiveness (default: 1)
	Hinge bool    // Classification with labels in {0, 1}; regression otherwise

	// Rate is the global schedule used for truncation (default:
	// DecreasingRate with its own defaults).
	Rate LearningRate
}

// NewPassiveAggressive creates a PassiveAggressive optimizer.
func NewPassiveAggressive(config PassiveAggressiveConfig) (*PassiveAggressive, error) {
	if config.C == 0 {
		config.C = 1
	}
	if config.C < 0 {
		return nil, fmt.Errorf("%w: C must be greater than 0, given %v", ErrInvalidArgument, config.C)
	}
	if config.Rate == nil {
		rate, err := NewDecreasingRate(DecreasingRateConfig{})
		if err != nil {
			return nil, err
		}
		config.Rate = rate
	}
	return &PassiveAggressive{c: config.C, hinge: config.Hinge, schedule: config.Rate}, nil
}

// Name returns "passive_aggressive".
func (p *PassiveAggressive) Name() string {
	return "passive_aggressive"
}

// LearningRate returns the C-dependent regularizer of tau's denominator;
// PA has no feature learning rate of its own.
func (p *PassiveAggressive) LearningRate(string, int64, float64) float64 {
	return 1 / (2 * p.c)
}

// GlobalRate returns the schedule's rate at iteration.
func (p *PassiveAggressive) GlobalRate(iteration int64) float64 {
	return p.schedule.Rate(iteration)
}

// Update returns tau * direction * x.
func (p *PassiveAggressive) Update(step Step) *sparse.Vector {
	x := step.Instance.Features
	score := step.Score()
	loss := step.Loss.Value(score, step.Instance)
	if loss <= 0 {
		return sparse.NewVector()
	}

	norm := x.LPNorm(2)
	tau := loss / (norm*norm + 1/(2*p.c))

	if p.hinge {
		tau *= step.Instance.PlusMinus()
	} else if step.Instance.Label-step.Loss.Predict(score) < 0 {
		tau = -tau
	}
	return scaled(x, tau*step.Instance.Weight)
}

// Decay returns w unchanged.
func (p *PassiveAggressive) Decay(_ string, w float64, _, _ int64) float64 {
	return w
}

// Config returns the hyperparameters.
func (p *PassiveAggressive) Config() map[string]any {
	out := map[string]any{"c": p.c, "hinge": p.hinge}
	addScheduleConfig(out, p.schedule)
	return out
}

// Reset is a no-op.
func (p *PassiveAggressive) Reset() {}

// MIRA implements the binary Margin Infused Relaxed Algorithm:
//
//	tau = max(0, 1 - y*score) / ||x||²
//	w   = w + tau * y * x
//
// It ignores the configured loss apart from the label convention.
type MIRA struct {
	schedule LearningRate
}

// NewMIRA creates a MIRA optimizer. A nil rate uses DecreasingRate
// defaults for truncation.
func NewMIRA(rate LearningRate) (*MIRA, error) {
	if rate == nil {
		r, err := NewDecreasingRate(DecreasingRateConfig{})
		if err != nil {
			return nil, err
		}
		rate = r
	}
	return &MIRA{schedule: rate}, nil
}

// Name returns "mira".
func (m *MIRA) Name() string {
	return "mira"
}

// LearningRate returns 1; MIRA's step size is tau.
func (m *MIRA) LearningRate(string, int64, float64) float64 {
	return 1
}

// GlobalRate returns the schedule's rate at iteration.
func (m *MIRA) GlobalRate(iteration int64) float64 {
	return m.schedule.Rate(iteration)
}

// Update returns tau * y * x, or an empty vector when the margin is met or
// the instance is empty.
func (m *MIRA) Update(step Step) *sparse.Vector {
	x := step.Instance.Features
	y := step.Instance.PlusMinus()
	loss := math.Max(0, 1-y*step.Score())
	norm := x.LPNorm(2)
	if loss <= 0 || sparse.IsZero(norm) {
		return sparse.NewVector()
	}

	tau := loss / (norm * norm)
	return scaled(x, tau*y*step.Instance.Weight)
}

// Decay returns w unchanged.
func (m *MIRA) Decay(_ string, w float64, _, _ int64) float64 {
	return w
}

// Config returns the hyperparameters.
func (m *MIRA) Config() map[string]any {
	out := map[string]any{}
	addScheduleConfig(out, m.schedule)
	return out
}

// Reset is a no-op.
func (m *MIRA) Reset() {}
