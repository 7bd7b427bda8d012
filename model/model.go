// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package model provides online linear models and their .born checkpoints.
//
// Example:
//
//	opt, _ := optim.NewAdagrad(optim.AdagradConfig{LR: 0.5})
//	m, _ := model.NewLinearModel(optim.Logistic{}, opt, model.Config{})
//	for _, inst := range insts {
//	    m.Update(inst)
//	}
//	p := m.Predict(features)
//	err := m.Save("model.born", nil)
package model

import (
	"context"
	"io"

	"github.com/born-ml/lazylinear/internal/instance"
	"github.com/born-ml/lazylinear/internal/model"
	"github.com/born-ml/lazylinear/internal/optim"
	"github.com/born-ml/lazylinear/internal/sparse"
)

var (
	// ErrUnsupported is returned by operations a model does not support.
	ErrUnsupported = model.ErrUnsupported
	// ErrIncompatible is returned when models or checkpoints do not match.
	ErrIncompatible = model.ErrIncompatible
)

type (
	LinearModel    = model.LinearModel
	Config         = model.Config
	OneVsAll       = model.OneVsAll
	OneVsAllConfig = model.OneVsAllConfig
	ShardConfig    = model.ShardConfig
	Instance       = instance.Instance
	Kind           = instance.Kind
)

// Instance kinds.
const (
	KindBinary     = instance.KindBinary
	KindReal       = instance.KindReal
	KindMulticlass = instance.KindMulticlass
)

// NewLinearModel creates a model with zero parameters.
func NewLinearModel(loss optim.Loss, opt optim.Optimizer, cfg Config) (*LinearModel, error) {
	return model.NewLinearModel(loss, opt, cfg)
}

// NewOneVsAll creates one binary model per class.
func NewOneVsAll(classes []string, newModel func(class string) (*LinearModel, error), cfg OneVsAllConfig) (*OneVsAll, error) {
	return model.NewOneVsAll(classes, newModel, cfg)
}

// TrainSharded trains one model per shard and merges them.
func TrainSharded(ctx context.Context, shards [][]*Instance, newModel func() (*LinearModel, error), cfg ShardConfig) (*LinearModel, error) {
	return model.TrainSharded(ctx, shards, newModel, cfg)
}

// Load reads a linear model saved with LinearModel.Save.
func Load(path string, loss optim.Loss, opt optim.Optimizer, cfg Config) (*LinearModel, error) {
	return model.Load(path, loss, opt, cfg)
}

// Read decodes a linear model written with LinearModel.Write.
func Read(r io.Reader, loss optim.Loss, opt optim.Optimizer, cfg Config) (*LinearModel, error) {
	return model.Read(r, loss, opt, cfg)
}

// LoadOneVsAll reads a model saved with OneVsAll.Save.
func LoadOneVsAll(path string, newModel func(class string) (*LinearModel, error), cfg OneVsAllConfig) (*OneVsAll, error) {
	return model.LoadOneVsAll(path, newModel, cfg)
}

// NewBinary creates a binary instance with label 0 or 1.
func NewBinary(features *sparse.Vector, label float64) (*Instance, error) {
	return instance.NewBinary(features, label)
}

// NewReal creates a regression instance.
func NewReal(features *sparse.Vector, label float64) (*Instance, error) {
	return instance.NewReal(features, label)
}

// NewMulticlass creates an instance of class.
func NewMulticlass(features *sparse.Vector, class string) (*Instance, error) {
	return instance.NewMulticlass(features, class)
}

// ReadInstances parses every "label[:weight] name[:value] ..." line of r.
func ReadInstances(r io.Reader, kind Kind) ([]*Instance, error) {
	return instance.ReadAll(r, kind)
}
