// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package sparse provides string-keyed sparse vectors, including the lazy
// parameter vector that applies deferred regularization on read.
package sparse

import "github.com/born-ml/lazylinear/internal/sparse"

// Epsilon is the magnitude below which coordinates count as zero.
const Epsilon = sparse.Epsilon

// Vec is implemented by Vector and LazyVector.
type Vec = sparse.Vec

// Vector is a sparse vector that drops coordinates that become zero.
type Vector = sparse.Vector

// LazyVector defers per-coordinate updates until a coordinate is read.
type LazyVector = sparse.LazyVector

// UpdateFunc brings a coordinate from iteration from to iteration to.
type UpdateFunc = sparse.UpdateFunc

// NewVector creates an empty vector.
func NewVector() *Vector { return sparse.NewVector() }

// NewVectorFromMap creates a vector holding values.
func NewVectorFromMap(values map[string]float64) *Vector {
	return sparse.NewVectorFromMap(values)
}

// NewLazyVector creates an empty lazy vector updated by fn.
func NewLazyVector(fn UpdateFunc) *LazyVector { return sparse.NewLazyVector(fn) }

// IsZero reports whether |v| < Epsilon.
func IsZero(v float64) bool { return sparse.IsZero(v) }
