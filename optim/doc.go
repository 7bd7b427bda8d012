// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the losses and online optimizers of lazylinear.
//
// # Overview
//
// Optimizers implement lazy regularization: a parameter that an instance
// does not touch is only brought up to date when it is next read, through
// the optimizer's closed-form UpdateFunc. This package contains:
//   - ElasticNet: SGD with L1 and L2 penalties
//   - Adagrad: per-feature rates with an L1 proximal step
//   - FTRL: follow-the-regularized-leader proximal
//   - PassiveAggressive and MIRA: margin-based updates
//
// # Basic Usage
//
//	opt, err := optim.NewElasticNet(optim.ElasticNetConfig{
//	    L1:   0.001,
//	    Rate: optim.ConstantRate(0.1),
//	})
//	if err != nil {
//	    return err
//	}
//	m, err := model.NewLinearModel(optim.Logistic{}, opt, model.Config{})
package optim
