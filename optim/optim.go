// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/lazylinear/internal/loss"
	"github.com/born-ml/lazylinear/internal/optim"
)

// ErrInvalidArgument is returned for invalid optimizer configurations.
var ErrInvalidArgument = optim.ErrInvalidArgument

// Loss is a differentiable loss over the score of an instance.
type Loss = optim.Loss

// Optimizer computes parameter updates and the lazy regularization of
// untouched parameters.
type Optimizer = optim.Optimizer

// Stateful optimizers keep per-feature statistics that checkpoints save.
type Stateful = optim.Stateful

// Step is the result of one optimizer update.
type Step = optim.Step

// Learning-rate schedules.

// LearningRate maps the epoch to a global learning rate.
type LearningRate = optim.LearningRate

// ConstantRate is a fixed learning rate.
type ConstantRate = optim.ConstantRate

// DecreasingRate decays with the number of examples seen.
type DecreasingRate = optim.DecreasingRate

// DecreasingRateConfig configures a DecreasingRate.
type DecreasingRateConfig = optim.DecreasingRateConfig

// NewDecreasingRate creates a decreasing schedule.
func NewDecreasingRate(config DecreasingRateConfig) (*DecreasingRate, error) {
	return optim.NewDecreasingRate(config)
}

// Optimizers.

type (
	ElasticNet              = optim.ElasticNet
	ElasticNetConfig        = optim.ElasticNetConfig
	Adagrad                 = optim.Adagrad
	AdagradConfig           = optim.AdagradConfig
	FTRL                    = optim.FTRL
	FTRLConfig              = optim.FTRLConfig
	PassiveAggressive       = optim.PassiveAggressive
	PassiveAggressiveConfig = optim.PassiveAggressiveConfig
	MIRA                    = optim.MIRA
)

// NewElasticNet creates an elastic-net SGD optimizer.
func NewElasticNet(config ElasticNetConfig) (*ElasticNet, error) {
	return optim.NewElasticNet(config)
}

// NewAdagrad creates an Adagrad optimizer.
func NewAdagrad(config AdagradConfig) (*Adagrad, error) {
	return optim.NewAdagrad(config)
}

// NewFTRL creates an FTRL-proximal optimizer.
func NewFTRL(config FTRLConfig) (*FTRL, error) {
	return optim.NewFTRL(config)
}

// NewPassiveAggressive creates a passive-aggressive optimizer.
func NewPassiveAggressive(config PassiveAggressiveConfig) (*PassiveAggressive, error) {
	return optim.NewPassiveAggressive(config)
}

// NewMIRA creates a MIRA optimizer.
func NewMIRA(rate LearningRate) (*MIRA, error) {
	return optim.NewMIRA(rate)
}

// Losses.

type (
	Logistic           = loss.Logistic
	Hinge              = loss.Hinge
	LeastSquares       = loss.LeastSquares
	EpsilonInsensitive = loss.EpsilonInsensitive
)

// Perceptron returns the hinge loss with threshold 0.
func Perceptron() Hinge { return loss.Perceptron() }

// SVM returns the hinge loss with threshold 1.
func SVM() Hinge { return loss.SVM() }

// Sigmoid is the logistic function.
func Sigmoid(x float64) float64 { return loss.Sigmoid(x) }
