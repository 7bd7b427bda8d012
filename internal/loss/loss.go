// Package loss implements loss functions for sparse linear models.
//
// Every loss computes its gradient on a fresh copy of the instance's
// features; the instance itself is never modified.
package loss

import (
	"math"
	"strconv"

	"github.com/born-ml/lazylinear/internal/instance"
	"github.com/born-ml/lazylinear/internal/optim"
	"github.com/born-ml/lazylinear/internal/sparse"
)

var (
	_ optim.Loss = Logistic{}
	_ optim.Loss = Hinge{}
	_ optim.Loss = LeastSquares{}
	_ optim.Loss = EpsilonInsensitive{}
)

// Sigmoid returns 1 / (1 + e^-x).
func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// gradient returns scale * weight * x as a new vector.
func gradient(inst *instance.Instance, scale float64) *sparse.Vector {
	g := inst.Features.Copy()
	g.Scale(scale * inst.Weight)
	return g
}

// Logistic is the log loss for binary labels in {0, 1}.
type Logistic struct{}

// Name returns "logistic".
func (Logistic) Name() string { return "logistic" }

// Gradients returns -y * sigmoid(-y*score) * x.
func (Logistic) Gradients(score float64, inst *instance.Instance) *sparse.Vector {
	y := inst.PlusMinus()
	return gradient(inst, -y*Sigmoid(-y*score))
}

// Value returns log(1 + exp(-y*score)).
func (Logistic) Value(score float64, inst *instance.Instance) float64 {
	z := -inst.PlusMinus() * score
	if z > 30 {
		return z
	}
	return math.Log1p(math.Exp(z))
}

// Predict returns the probability of the positive class.
func (Logistic) Predict(score float64) float64 { return Sigmoid(score) }

// Hinge is the hinge loss for binary labels in {0, 1}.
//
// Threshold 0 gives the perceptron loss, threshold 1 the SVM loss.
type Hinge struct {
	Threshold float64
}

// Perceptron returns the hinge loss with threshold 0.
func Perceptron() Hinge { return Hinge{} }

// SVM returns the hinge loss with threshold 1.
func SVM() Hinge { return Hinge{Threshold: 1} }

// Name distinguishes the variants so checkpoints only restore under the
// same margin: "perceptron" for threshold 0, "svm" for 1 and
// "hinge:<threshold>" otherwise.
func (h Hinge) Name() string {
	switch h.Threshold {
	case 0:
		return "perceptron"
	case 1:
		return "svm"
	}
	return "hinge:" + strconv.FormatFloat(h.Threshold, 'g', -1, 64)
}

// Gradients returns -y * x while the margin y*score is at most the
// threshold, and an empty vector otherwise.
func (h Hinge) Gradients(score float64, inst *instance.Instance) *sparse.Vector {
	y := inst.PlusMinus()
	if y*score > h.Threshold {
		return sparse.NewVector()
	}
	return gradient(inst, -y)
}

// Value returns max(0, threshold - y*score).
func (h Hinge) Value(score float64, inst *instance.Instance) float64 {
	return math.Max(0, h.Threshold-inst.PlusMinus()*score)
}

// Predict squashes the score through the logistic function.
func (Hinge) Predict(score float64) float64 { return Sigmoid(score) }

// LeastSquares is the squared loss for real valued labels.
type LeastSquares struct{}

// Name returns "least_squares".
func (LeastSquares) Name() string { return "least_squares" }

// Gradients returns 2 * (score - label) * x.
func (LeastSquares) Gradients(score float64, inst *instance.Instance) *sparse.Vector {
	return gradient(inst, 2*(score-inst.Label))
}

// Value returns (score - label)².
func (LeastSquares) Value(score float64, inst *instance.Instance) float64 {
	d := score - inst.Label
	return d * d
}

// Predict returns the score.
func (LeastSquares) Predict(score float64) float64 { return score }

// EpsilonInsensitive ignores residuals smaller than Epsilon; it is the loss
// of passive-aggressive regression.
type EpsilonInsensitive struct {
	Epsilon float64
}

// Name returns "epsilon_insensitive".
func (EpsilonInsensitive) Name() string { return "epsilon_insensitive" }

// Gradients returns sign(score - label) * x outside the epsilon tube.
func (e EpsilonInsensitive) Gradients(score float64, inst *instance.Instance) *sparse.Vector {
	d := score - inst.Label
	if math.Abs(d) <= e.Epsilon {
		return sparse.NewVector()
	}
	return gradient(inst, math.Copysign(1, d))
}

// Value returns max(0, |score - label| - epsilon).
func (e EpsilonInsensitive) Value(score float64, inst *instance.Instance) float64 {
	return math.Max(0, math.Abs(score-inst.Label)-e.Epsilon)
}

// Predict returns the score.
func (EpsilonInsensitive) Predict(score float64) float64 { return score }
