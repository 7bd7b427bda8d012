package model_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/lazylinear/internal/instance"
	"github.com/born-ml/lazylinear/internal/loss"
	"github.com/born-ml/lazylinear/internal/model"
	"github.com/born-ml/lazylinear/internal/optim"
	"github.com/born-ml/lazylinear/internal/serialization"
)

func adagrad(t *testing.T) *optim.Adagrad {
	t.Helper()
	opt, err := optim.NewAdagrad(optim.AdagradConfig{LR: 0.5, L1: 0.01})
	require.NoError(t, err)
	return opt
}

func TestSaveLoadResumesTraining(t *testing.T) {
	m := newModel(t, loss.Logistic{}, adagrad(t), model.Config{})
	m.UpdateBatch([]*instance.Instance{positive(t), negative(t), positive(t)})

	path := filepath.Join(t.TempDir(), "model.born")
	require.NoError(t, m.Save(path, map[string]string{"data": "unit"}))

	loaded, err := model.Load(path, loss.Logistic{}, adagrad(t), model.Config{})
	require.NoError(t, err)
	assert.Equal(t, m.ID(), loaded.ID())
	assert.Equal(t, m.Epoch(), loaded.Epoch())
	assert.Equal(t, m.Params().Iteration(), loaded.Params().Iteration())
	assert.Equal(t, m.Snapshot().ToMap(), loaded.Snapshot().ToMap())

	// Identical continuations require the restored Adagrad accumulators.
	for _, inst := range []*instance.Instance{negative(t), positive(t)} {
		m.Update(inst)
		loaded.Update(inst)
	}
	for _, name := range []string{"foo", "bar", "baz"} {
		assert.InDelta(t, m.Params().Get(name), loaded.Params().Get(name), 1e-12, name)
	}

	hdr, err := serialization.ReadHeaderFile(path)
	require.NoError(t, err)
	assert.Equal(t, "unit", hdr.Metadata["data"])
	assert.Equal(t, "adagrad", hdr.Checkpoint.OptimizerType)
}

func TestWriteRead(t *testing.T) {
	m := newModel(t, loss.Logistic{}, elasticNet(t, 0.01, 0), model.Config{})
	m.UpdateBatch([]*instance.Instance{positive(t), negative(t)})

	var buf bytes.Buffer
	require.NoError(t, m.Write(&buf, nil))

	loaded, err := model.Read(bytes.NewReader(buf.Bytes()), loss.Logistic{}, elasticNet(t, 0.01, 0), model.Config{})
	require.NoError(t, err)
	assert.Equal(t, m.Snapshot().ToMap(), loaded.Snapshot().ToMap())

	_, err = model.Read(bytes.NewReader(buf.Bytes()), loss.SVM(), elasticNet(t, 0.01, 0), model.Config{})
	assert.ErrorIs(t, err, model.ErrIncompatible, "loss mismatch")

	_, err = model.Read(bytes.NewReader(buf.Bytes()), loss.Logistic{}, adagrad(t), model.Config{})
	assert.ErrorIs(t, err, model.ErrIncompatible, "optimizer mismatch")
}

func TestReadRejectsOtherHingeMargin(t *testing.T) {
	m := newModel(t, loss.Perceptron(), elasticNet(t, 0.01, 0), model.Config{})
	m.UpdateBatch([]*instance.Instance{positive(t), negative(t)})

	var buf bytes.Buffer
	require.NoError(t, m.Write(&buf, nil))

	tests := []struct {
		name string
		l    loss.Hinge
		err  error
	}{
		{"same margin", loss.Perceptron(), nil},
		{"svm margin", loss.SVM(), model.ErrIncompatible},
		{"custom margin", loss.Hinge{Threshold: 0.5}, model.ErrIncompatible},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := model.Read(bytes.NewReader(buf.Bytes()), tt.l, elasticNet(t, 0.01, 0), model.Config{})
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestSaveLoadOneVsAll(t *testing.T) {
	m := newOneVsAll(t, model.OneVsAllConfig{})
	for range 5 {
		m.UpdateBatch(colors(t))
	}

	path := filepath.Join(t.TempDir(), "colors.born")
	require.NoError(t, m.Save(path, nil))

	loaded, err := model.LoadOneVsAll(path, classModel(t), model.OneVsAllConfig{})
	require.NoError(t, err)
	assert.Equal(t, m.Classes(), loaded.Classes())
	assert.Equal(t, m.Epoch(), loaded.Epoch())

	for class, lm := range m.Models() {
		other, ok := loaded.Model(class)
		require.True(t, ok)
		assert.Equal(t, lm.Snapshot().ToMap(), other.Snapshot().ToMap(), class)
	}

	_, err = model.Load(path, loss.Logistic{}, elasticNet(t, 0, 0), model.Config{})
	assert.ErrorIs(t, err, model.ErrIncompatible, "one-vs-all file is not a linear model")
}
