package model

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/born-ml/lazylinear/internal/optim"
	"github.com/born-ml/lazylinear/internal/serialization"
	"github.com/born-ml/lazylinear/internal/sparse"
)

const paramsVector = "params"

func classPrefix(i int) string {
	return fmt.Sprintf("class.%d.", i)
}

// collect adds the model's vectors under prefix: the up to date parameters
// and, for stateful optimizers, their per-feature statistics.
func (m *LinearModel) collect(prefix string, out map[string]*sparse.Vector) {
	out[prefix+paramsVector] = m.Snapshot()
	if s, ok := m.opt.(optim.Stateful); ok {
		for name, v := range s.State() {
			out[prefix+serialization.OptimizerPrefix+name] = v
		}
	}
}

func (m *LinearModel) checkpoint() *serialization.CheckpointMeta {
	return &serialization.CheckpointMeta{
		Epoch:           m.epoch,
		Iteration:       m.params.Iteration(),
		Loss:            m.loss.Name(),
		OptimizerType:   m.opt.Name(),
		OptimizerConfig: m.opt.Config(),
		TrainingMeta: map[string]any{
			"truncation_period":    m.period,
			"truncation_threshold": m.threshold,
			"truncation_update":    m.shrink,
		},
	}
}

// restore loads the vectors under prefix into m.
func (m *LinearModel) restore(f *serialization.File, prefix string) error {
	cp := f.Header.Checkpoint
	if cp == nil {
		return fmt.Errorf("%w: file has no checkpoint", ErrIncompatible)
	}
	if cp.Loss != m.loss.Name() || cp.OptimizerType != m.opt.Name() {
		return fmt.Errorf("%w: saved with %s/%s, loading into %s/%s",
			ErrIncompatible, cp.Loss, cp.OptimizerType, m.loss.Name(), m.opt.Name())
	}

	params, err := f.Vector(prefix + paramsVector)
	if err != nil {
		return err
	}

	if s, ok := m.opt.(optim.Stateful); ok {
		state := make(map[string]*sparse.Vector)
		statePrefix := prefix + serialization.OptimizerPrefix
		for name, v := range f.Vectors {
			if key, found := strings.CutPrefix(name, statePrefix); found {
				state[key] = v
			}
		}
		if err := s.SetState(state); err != nil {
			return fmt.Errorf("optimizer state: %w", err)
		}
	}

	m.Restore(params, cp.Epoch, cp.Iteration)
	return nil
}

func (m *LinearModel) encode(metadata map[string]string) (map[string]*sparse.Vector, serialization.Header) {
	vectors := make(map[string]*sparse.Vector)
	m.collect("", vectors)
	return vectors, serialization.Header{
		ModelType:  serialization.ModelTypeLinear,
		ModelID:    m.id.String(),
		Metadata:   metadata,
		Checkpoint: m.checkpoint(),
	}
}

// Write encodes the model as a .born file.
func (m *LinearModel) Write(w io.Writer, metadata map[string]string) error {
	vectors, header := m.encode(metadata)
	return serialization.Write(w, vectors, header)
}

// Save writes the model to path.
func (m *LinearModel) Save(path string, metadata map[string]string) error {
	vectors, header := m.encode(metadata)
	return serialization.WriteFile(path, vectors, header)
}

// Read decodes a linear model from r into a fresh model built from loss,
// opt and cfg. They must match the loss and optimizer the model was saved
// with.
func Read(r io.Reader, loss optim.Loss, opt optim.Optimizer, cfg Config) (*LinearModel, error) {
	f, err := serialization.Read(r, serialization.ReaderOptions{})
	if err != nil {
		return nil, err
	}
	return fromFile(f, loss, opt, cfg)
}

// Load reads a linear model from path; see Read.
func Load(path string, loss optim.Loss, opt optim.Optimizer, cfg Config) (*LinearModel, error) {
	f, err := serialization.ReadFile(path, serialization.ReaderOptions{})
	if err != nil {
		return nil, err
	}
	return fromFile(f, loss, opt, cfg)
}

func fromFile(f *serialization.File, loss optim.Loss, opt optim.Optimizer, cfg Config) (*LinearModel, error) {
	if f.Header.ModelType != serialization.ModelTypeLinear {
		return nil, fmt.Errorf("%w: model type %q", ErrIncompatible, f.Header.ModelType)
	}
	m, err := NewLinearModel(loss, opt, cfg)
	if err != nil {
		return nil, err
	}
	if err := m.restore(f, ""); err != nil {
		return nil, err
	}
	if id, err := uuid.Parse(f.Header.ModelID); err == nil {
		m.id = id
	}
	return m, nil
}

// Save writes every class model to path.
func (m *OneVsAll) Save(path string, metadata map[string]string) error {
	vectors := make(map[string]*sparse.Vector)
	for i, lm := range m.models {
		lm.collect(classPrefix(i), vectors)
	}
	return serialization.WriteFile(path, vectors, serialization.Header{
		ModelType:  serialization.ModelTypeOneVsAll,
		Classes:    m.Classes(),
		Metadata:   metadata,
		Checkpoint: m.models[0].checkpoint(),
	})
}

// LoadOneVsAll reads a one-vs-all model from path. newModel builds the
// fresh binary model of each saved class.
func LoadOneVsAll(path string, newModel func(class string) (*LinearModel, error), cfg OneVsAllConfig) (*OneVsAll, error) {
	f, err := serialization.ReadFile(path, serialization.ReaderOptions{})
	if err != nil {
		return nil, err
	}
	if f.Header.ModelType != serialization.ModelTypeOneVsAll {
		return nil, fmt.Errorf("%w: model type %q", ErrIncompatible, f.Header.ModelType)
	}

	m, err := NewOneVsAll(f.Header.Classes, newModel, cfg)
	if err != nil {
		return nil, err
	}
	for i, class := range f.Header.Classes {
		lm, _ := m.Model(class)
		if err := lm.restore(f, classPrefix(i)); err != nil {
			return nil, fmt.Errorf("class %q: %w", class, err)
		}
	}
	return m, nil
}
