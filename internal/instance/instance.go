// Package instance defines labeled training examples for sparse linear
// models and a plain-text line format to read them from.
package instance

import (
	"errors"
	"fmt"
	"math"

	"github.com/born-ml/lazylinear/internal/sparse"
)

// Label kinds.
const (
	KindBinary     Kind = "binary"
	KindReal       Kind = "real"
	KindMulticlass Kind = "multiclass"
)

// Kind identifies how an instance's label is interpreted.
type Kind string

// Errors returned when building instances.
var (
	ErrInvalidLabel   = errors.New("invalid label")
	ErrInvalidWeight  = errors.New("invalid instance weight")
	ErrInvalidFeature = errors.New("invalid feature value")
)

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Instance is a labeled sparse example.
//
// Label is in [0, 1] for binary instances and unrestricted for real valued
// ones. Class names the category of a multiclass instance. Weight scales
// the instance's gradient; it defaults to 1.
type Instance struct {
	Features *sparse.Vector
	Label    float64
	Class    string
	Weight   float64
	Kind     Kind
}

// NewBinary creates a binary instance with label in [0, 1].
func NewBinary(features *sparse.Vector, label float64) (*Instance, error) {
	if !finite(label) || label < 0 || label > 1 {
		return nil, fmt.Errorf("%w: binary label must be in [0, 1], given %v", ErrInvalidLabel, label)
	}
	return &Instance{Features: orEmpty(features), Label: label, Weight: 1, Kind: KindBinary}, nil
}

// NewReal creates a real valued instance. The label must be finite.
func NewReal(features *sparse.Vector, label float64) (*Instance, error) {
	if !finite(label) {
		return nil, fmt.Errorf("%w: real label must be finite, given %v", ErrInvalidLabel, label)
	}
	return &Instance{Features: orEmpty(features), Label: label, Weight: 1, Kind: KindReal}, nil
}

// NewMulticlass creates an instance labeled with a category.
func NewMulticlass(features *sparse.Vector, class string) (*Instance, error) {
	if class == "" {
		return nil, fmt.Errorf("%w: empty class", ErrInvalidLabel)
	}
	return &Instance{Features: orEmpty(features), Class: class, Weight: 1, Kind: KindMulticlass}, nil
}

func orEmpty(v *sparse.Vector) *sparse.Vector {
	if v == nil {
		return sparse.NewVector()
	}
	return v
}

// WithWeight sets the instance weight. Weights must be positive and finite.
func (i *Instance) WithWeight(w float64) (*Instance, error) {
	if !finite(w) || w <= 0 {
		return nil, fmt.Errorf("%w: must be positive and finite, given %v", ErrInvalidWeight, w)
	}
	i.Weight = w
	return i, nil
}

// PlusMinus maps a binary label from {0, 1} to {-1, +1}.
func (i *Instance) PlusMinus() float64 {
	return 2 * (i.Label - 0.5)
}

// AsBinary returns a binary view of a multiclass instance: label 1 when the
// instance belongs to class, 0 otherwise. Features are shared, not copied.
func (i *Instance) AsBinary(class string) *Instance {
	label := 0.0
	if i.Class == class {
		label = 1
	}
	return &Instance{Features: i.Features, Label: label, Weight: i.Weight, Kind: KindBinary}
}
