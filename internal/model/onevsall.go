package model

import (
	"fmt"
	"iter"
	"slices"

	"go.uber.org/zap"

	"github.com/born-ml/lazylinear/internal/instance"
	"github.com/born-ml/lazylinear/internal/parallel"
	"github.com/born-ml/lazylinear/internal/sparse"
)

// OneVsAllConfig configures a OneVsAll model.
type OneVsAllConfig struct {
	Parallel parallel.Config // class fan-out (default: sequential)
	Logger   *zap.Logger     // default: no-op
}

// OneVsAll is a multiclass model made of one binary LinearModel per class.
//
// Every instance trains every class model: positively for its own class and
// negatively for the others.
type OneVsAll struct {
	classes  []string
	models   []*LinearModel
	parallel parallel.Config
	logger   *zap.Logger
}

// NewOneVsAll creates a model for the given classes; newModel builds the
// binary model of each class.
func NewOneVsAll(classes []string, newModel func(class string) (*LinearModel, error), cfg OneVsAllConfig) (*OneVsAll, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("%w: at least one class is required", ErrIncompatible)
	}
	sorted := slices.Clone(classes)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	m := &OneVsAll{
		classes:  sorted,
		models:   make([]*LinearModel, len(sorted)),
		parallel: cfg.Parallel,
		logger:   cfg.Logger,
	}
	for i, class := range sorted {
		lm, err := newModel(class)
		if err != nil {
			return nil, fmt.Errorf("class %q: %w", class, err)
		}
		m.models[i] = lm
	}
	return m, nil
}

// Classes returns the class names in sorted order.
func (m *OneVsAll) Classes() []string {
	return slices.Clone(m.classes)
}

// Model returns the binary model of class.
func (m *OneVsAll) Model(class string) (*LinearModel, bool) {
	i, ok := slices.BinarySearch(m.classes, class)
	if !ok {
		return nil, false
	}
	return m.models[i], true
}

// Models yields every class with its binary model.
func (m *OneVsAll) Models() iter.Seq2[string, *LinearModel] {
	return func(yield func(string, *LinearModel) bool) {
		for i, class := range m.classes {
			if !yield(class, m.models[i]) {
				return
			}
		}
	}
}

// Epoch returns the number of instances the model has consumed.
func (m *OneVsAll) Epoch() int64 {
	return m.models[0].Epoch()
}

// Update trains every class model on inst. An instance of an unknown class
// is a negative example for all of them.
func (m *OneVsAll) Update(inst *instance.Instance) {
	if _, ok := slices.BinarySearch(m.classes, inst.Class); !ok {
		m.logger.Debug("instance of unknown class", zap.String("class", inst.Class))
	}
	parallel.For(len(m.models), func(i int) {
		m.models[i].Update(inst.AsBinary(m.classes[i]))
	}, m.parallel)
}

// UpdateBatch trains the model on every instance in order.
func (m *OneVsAll) UpdateBatch(insts []*instance.Instance) {
	for _, inst := range insts {
		m.Update(inst)
	}
}

// Predict returns the per-class scores of features normalized to sum to 1.
func (m *OneVsAll) Predict(features *sparse.Vector) map[string]float64 {
	scores := make([]float64, len(m.models))
	var total float64
	for i, lm := range m.models {
		scores[i] = lm.Predict(features)
		total += scores[i]
	}

	out := make(map[string]float64, len(m.classes))
	for i, class := range m.classes {
		if total > 0 {
			out[class] = scores[i] / total
		} else {
			out[class] = 1 / float64(len(m.classes))
		}
	}
	return out
}

// Classify returns the most likely class of features and its normalized
// score. Ties go to the first class in sorted order.
func (m *OneVsAll) Classify(features *sparse.Vector) (string, float64) {
	scores := m.Predict(features)
	best := m.classes[0]
	for _, class := range m.classes[1:] {
		if scores[class] > scores[best] {
			best = class
		}
	}
	return best, scores[best]
}

// Loss returns the summed binary loss of inst over all class models.
func (m *OneVsAll) Loss(inst *instance.Instance) float64 {
	var total float64
	for i, lm := range m.models {
		total += lm.Loss(inst.AsBinary(m.classes[i]))
	}
	return total
}

// Merge adds scale times every class model of other to the matching class
// model of m. Both models must have the same classes.
func (m *OneVsAll) Merge(other *OneVsAll, scale float64) error {
	if !slices.Equal(m.classes, other.classes) {
		return fmt.Errorf("%w: class sets differ: %v and %v", ErrIncompatible, m.classes, other.classes)
	}
	for i, lm := range m.models {
		if err := lm.Merge(other.models[i], scale); err != nil {
			return fmt.Errorf("class %q: %w", m.classes[i], err)
		}
	}
	return nil
}

// Rescale multiplies every class model's parameters by scale.
func (m *OneVsAll) Rescale(scale float64) {
	for _, lm := range m.models {
		lm.Rescale(scale)
	}
}

// SetFreezeFeatureSet freezes (or unfreezes) every class model.
func (m *OneVsAll) SetFreezeFeatureSet(freeze bool) {
	for _, lm := range m.models {
		lm.SetFreezeFeatureSet(freeze)
	}
}

// ThresholdParameters thresholds every class model.
func (m *OneVsAll) ThresholdParameters(t float64) {
	for _, lm := range m.models {
		lm.ThresholdParameters(t)
	}
}

// Decompose is not supported: there is no single parameter vector.
func (m *OneVsAll) Decompose() (iter.Seq2[string, float64], error) {
	return nil, fmt.Errorf("%w: decompose a one-vs-all model per class", ErrUnsupported)
}

// SetParameter is not supported: there is no single parameter vector.
func (m *OneVsAll) SetParameter(string, float64) error {
	return fmt.Errorf("%w: set parameters on a class model", ErrUnsupported)
}

// ExplainPrediction is not supported for one-vs-all models.
func (m *OneVsAll) ExplainPrediction(*sparse.Vector, int) (string, error) {
	return "", fmt.Errorf("%w: explain a class model instead", ErrUnsupported)
}
