package model_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/lazylinear/model"
	"github.com/born-ml/lazylinear/optim"
	"github.com/born-ml/lazylinear/sparse"
)

func TestPublicAPI(t *testing.T) {
	insts, err := model.ReadInstances(strings.NewReader(strings.Repeat("1 spam\n0 ham\n", 10)), model.KindBinary)
	require.NoError(t, err)

	newOpt := func() optim.Optimizer {
		opt, err := optim.NewFTRL(optim.FTRLConfig{Alpha: 0.5, Beta: 1, L1: 0.01})
		require.NoError(t, err)
		return opt
	}

	m, err := model.NewLinearModel(optim.Logistic{}, newOpt(), model.Config{})
	require.NoError(t, err)
	m.UpdateBatch(insts)

	spam := sparse.NewVectorFromMap(map[string]float64{"spam": 1})
	assert.Greater(t, m.Predict(spam), 0.5)

	path := filepath.Join(t.TempDir(), "spam.born")
	require.NoError(t, m.Save(path, map[string]string{"dataset": "toy"}))

	loaded, err := model.Load(path, optim.Logistic{}, newOpt(), model.Config{})
	require.NoError(t, err)
	assert.InDelta(t, m.Predict(spam), loaded.Predict(spam), 1e-12)
	assert.Equal(t, m.ID(), loaded.ID())

	_, err = model.Load(path, optim.SVM(), newOpt(), model.Config{})
	assert.ErrorIs(t, err, model.ErrIncompatible)
}
