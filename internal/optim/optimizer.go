// Package optim implements online optimizers for sparse linear models.
//
// This package provides:
//   - LearningRate schedules: ConstantRate and DecreasingRate
//   - Loss: the gradient and prediction contract of a loss function
//   - Optimizer: turns a training step into an additive parameter update and
//     supplies the decay that a sparse.LazyVector replays lazily
//   - ElasticNet, Adagrad, FTRL, PassiveAggressive and MIRA
//
// The decay function is what keeps regularization cheap. A model installs
// Optimizer.Decay as the UpdateFunc of its parameter vector; the vector then
// replays the L1/L2 shrinkage a coordinate missed only when that coordinate
// is next read or written.
//
// Example usage:
//
//	opt, _ := optim.NewElasticNet(optim.ElasticNetConfig{L1: 0.1})
//	params := sparse.NewLazyVector(opt.Decay)
//
//	step := optim.Step{Instance: inst, Epoch: epoch, Params: params, Loss: loss.Logistic{}}
//	params.AddScaled(opt.Update(step), 1)
package optim

import (
	"errors"

	"github.com/born-ml/lazylinear/internal/instance"
	"github.com/born-ml/lazylinear/internal/sparse"
)

// ErrInvalidArgument is returned for malformed optimizer configuration.
var ErrInvalidArgument = errors.New("invalid argument")

// Loss is the gradient contract of a loss function.
//
// Implementations are stateless. Gradients must return a freshly allocated
// vector and never modify the instance.
type Loss interface {
	// Name identifies the loss in checkpoints and logs.
	Name() string

	// Gradients returns the gradient of the loss at score with respect to
	// the parameters, scaled by the instance weight.
	Gradients(score float64, inst *instance.Instance) *sparse.Vector

	// Value returns the loss at score.
	Value(score float64, inst *instance.Instance) float64

	// Predict maps a raw score to a prediction (a probability for
	// classifiers, the score itself for regression).
	Predict(score float64) float64
}

// Step is one training step as seen by an optimizer.
type Step struct {
	Instance *instance.Instance
	Epoch    int64
	Bias     float64
	Params   *sparse.LazyVector
	Loss     Loss
}

// Score returns the raw linear score of the instance under the current
// parameters, offset by the bias.
func (s Step) Score() float64 {
	return s.Params.Dot(s.Instance.Features) + s.Bias
}

// Gradients returns the loss gradient at the current score.
func (s Step) Gradients() *sparse.Vector {
	return s.Loss.Gradients(s.Score(), s.Instance)
}

// Optimizer turns training steps into parameter updates.
//
// All optimizers must implement:
//   - LearningRate: the rate a feature would be updated with at an iteration
//   - GlobalRate: the feature independent decreasing rate used by truncation
//   - Decay: the lazy regularization replay installed in the parameter vector
//   - Update: the additive update for one step
type Optimizer interface {
	// Name identifies the optimizer in checkpoints and logs.
	Name() string

	// LearningRate returns the rate applied to feature at iteration for the
	// given gradient. It does not modify optimizer state.
	LearningRate(feature string, iteration int64, gradient float64) float64

	// GlobalRate returns the decreasing learning rate at iteration.
	GlobalRate(iteration int64) float64

	// Decay replays the regularization value missed between iterations
	// from and to. It must satisfy Decay(Decay(v, a, b), b, c) == Decay(v, a, c).
	Decay(feature string, value float64, from, to int64) float64

	// Update returns the additive update for step. The returned vector is
	// owned by the caller.
	Update(step Step) *sparse.Vector

	// Config returns the hyperparameters, for checkpoints.
	Config() map[string]any

	// Reset drops all per-feature state.
	Reset()
}

// Stateful is implemented by optimizers that keep per-feature statistics
// which must survive a checkpoint.
type Stateful interface {
	// State returns the per-feature statistics keyed by name. The vectors
	// are copies.
	State() map[string]*sparse.Vector

	// SetState replaces the per-feature statistics.
	SetState(state map[string]*sparse.Vector) error

	// MergeState folds the statistics of other, an optimizer of the same
	// kind, into the receiver. Sums of gradients are scaled by scale;
	// sums of squared gradients are added as they are.
	MergeState(other Stateful, scale float64) error
}

// scaled returns a copy of v multiplied by a.
func scaled(v *sparse.Vector, a float64) *sparse.Vector {
	out := v.Copy()
	out.Scale(a)
	return out
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
