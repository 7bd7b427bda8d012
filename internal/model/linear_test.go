package model_test

import (
	"maps"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/born-ml/lazylinear/internal/instance"
	"github.com/born-ml/lazylinear/internal/loss"
	"github.com/born-ml/lazylinear/internal/metrics"
	"github.com/born-ml/lazylinear/internal/model"
	"github.com/born-ml/lazylinear/internal/optim"
	"github.com/born-ml/lazylinear/internal/sparse"
)

const eps = 1e-6

func positive(t *testing.T) *instance.Instance {
	t.Helper()
	inst, err := instance.NewBinary(sparse.NewVectorFromMap(map[string]float64{"foo": 1, "bar": 2}), 1)
	require.NoError(t, err)
	return inst
}

func negative(t *testing.T) *instance.Instance {
	t.Helper()
	inst, err := instance.NewBinary(sparse.NewVectorFromMap(map[string]float64{"foo": 1, "baz": -1}), 0)
	require.NoError(t, err)
	return inst
}

func elasticNet(t *testing.T, l1, l2 float64) *optim.ElasticNet {
	t.Helper()
	opt, err := optim.NewElasticNet(optim.ElasticNetConfig{L1: l1, L2: l2})
	require.NoError(t, err)
	return opt
}

func newModel(t *testing.T, l optim.Loss, opt optim.Optimizer, cfg model.Config) *model.LinearModel {
	t.Helper()
	m, err := model.NewLinearModel(l, opt, cfg)
	require.NoError(t, err)
	return m
}

func TestLogisticRegression(t *testing.T) {
	m := newModel(t, loss.Logistic{}, elasticNet(t, 0, 0), model.Config{})

	eta := m.LearningRate()
	m.Update(positive(t))
	assert.InDelta(t, eta*0.5, m.Params().Get("foo"), eps)
	assert.InDelta(t, eta*1.0, m.Params().Get("bar"), eps)
	assert.Greater(t, m.Predict(positive(t).Features), 0.5)

	m.Update(negative(t))
	assert.Greater(t, m.Predict(positive(t).Features), 0.5)
	assert.Less(t, m.Predict(negative(t).Features), 0.5)
	assert.Equal(t, int64(2), m.Epoch())
}

func TestLogisticRegressionLaplace(t *testing.T) {
	m := newModel(t, loss.Logistic{}, elasticNet(t, 0.1, 0), model.Config{})

	eta := m.LearningRate()
	m.Update(positive(t))
	assert.InDelta(t, eta*0.5, m.Params().Get("foo"), eps)
	assert.InDelta(t, eta*1.0, m.Params().Get("bar"), eps)

	eta2 := m.LearningRate()
	m.Update(negative(t))
	assert.InDelta(t, eta*1.0-eta2*0.1, m.Params().Get("bar"), eps)

	for range 10 {
		m.Update(negative(t))
	}
	assert.InDelta(t, 0.0, m.Params().Get("bar"), eps)
	assert.False(t, m.Params().Contains("bar"), "decayed coordinate is removed")
}

func TestLogisticRegressionGaussian(t *testing.T) {
	m := newModel(t, loss.Logistic{}, elasticNet(t, 0, 0.2), model.Config{})

	eta := m.LearningRate()
	m.Update(positive(t))
	assert.InDelta(t, eta*0.5, m.Params().Get("foo"), eps)
	assert.InDelta(t, eta*1.0, m.Params().Get("bar"), eps)

	eta2 := m.LearningRate()
	m.Update(negative(t))
	assert.InDelta(t, eta*1.0*(1.0-eta2*0.2), m.Params().Get("bar"), eps)
}

func TestPerceptron(t *testing.T) {
	m := newModel(t, loss.Perceptron(), elasticNet(t, 0, 0), model.Config{})

	eta := m.LearningRate()
	m.Update(positive(t))
	assert.InDelta(t, eta*1.0, m.Params().Get("foo"), eps)
	assert.InDelta(t, eta*2.0, m.Params().Get("bar"), eps)
	assert.Greater(t, m.Predict(positive(t).Features), 0.5)

	m.Update(negative(t))
	assert.Greater(t, m.Predict(positive(t).Features), 0.5)
	assert.Less(t, m.Predict(negative(t).Features), 0.5)
}

func TestUpdateDoesNotMutateInstance(t *testing.T) {
	m := newModel(t, loss.Logistic{}, elasticNet(t, 0.1, 0.1), model.Config{})
	inst := positive(t)
	before := inst.Features.ToMap()

	for range 5 {
		m.Update(inst)
	}
	_ = m.Gradients(inst)

	assert.Equal(t, before, inst.Features.ToMap())
	assert.InDelta(t, 1.0, inst.Label, 0)
}

func TestUpdateWithGlobal(t *testing.T) {
	global := newModel(t, loss.Logistic{}, elasticNet(t, 0, 0), model.Config{})
	global.SetParameter("foo", 100)

	local := newModel(t, loss.Logistic{}, elasticNet(t, 0, 0), model.Config{})
	local.UpdateWithGlobal(positive(t), global)

	// The global model already scores the instance as certainly positive.
	assert.InDelta(t, 0.0, local.Params().Get("foo"), 1e-9)
	assert.Equal(t, int64(1), local.Epoch())
}

func TestMergeIsLinear(t *testing.T) {
	a := newModel(t, loss.Logistic{}, elasticNet(t, 0.01, 0.01), model.Config{})
	b := newModel(t, loss.Logistic{}, elasticNet(t, 0.01, 0.01), model.Config{})
	a.UpdateBatch([]*instance.Instance{positive(t), negative(t), positive(t)})
	b.UpdateBatch([]*instance.Instance{negative(t), negative(t)})

	wantA := a.Snapshot().ToMap()
	wantB := b.Snapshot().ToMap()

	require.NoError(t, a.Merge(b, 0.5))

	for _, name := range []string{"foo", "bar", "baz"} {
		assert.InDelta(t, wantA[name]+0.5*wantB[name], a.Params().Get(name), eps, name)
	}
	assert.Equal(t, int64(5), a.Epoch())
}

func TestMergeSelf(t *testing.T) {
	m := newModel(t, loss.Logistic{}, elasticNet(t, 0, 0), model.Config{})
	m.Update(positive(t))
	want := m.Params().Get("bar")

	require.NoError(t, m.Merge(m, 1))

	assert.InDelta(t, 2*want, m.Params().Get("bar"), eps)
}

func TestFreezeFeatureSet(t *testing.T) {
	m := newModel(t, loss.Logistic{}, elasticNet(t, 0, 0), model.Config{})
	m.Update(positive(t))
	m.SetFreezeFeatureSet(true)

	before := m.Params().Get("foo")
	m.Update(negative(t))

	assert.False(t, m.Params().Contains("baz"), "frozen model gains no features")
	assert.NotEqual(t, before, m.Params().Get("foo"), "existing features still train")

	m.SetFreezeFeatureSet(false)
	m.Update(negative(t))
	assert.True(t, m.Params().Contains("baz"))
}

func TestTruncation(t *testing.T) {
	cfg := model.Config{TruncationPeriod: 1, TruncationThreshold: 1, TruncationUpdate: 1}
	m := newModel(t, loss.Logistic{}, elasticNet(t, 0, 0), cfg)

	m.SetParameter("foo", 0.05)
	m.SetParameter("other", 0.05)
	m.SetEpoch(1)

	inst, err := instance.NewBinary(sparse.NewVectorFromMap(map[string]float64{"foo": 1}), 1)
	require.NoError(t, err)
	m.Update(inst)

	// foo gains just under 0.05 from the update, then shrinks by the global rate 0.1.
	assert.InDelta(t, 0.0, m.Params().Get("foo"), eps)
	assert.InDelta(t, 0.05, m.Params().Get("other"), eps, "only the instance's coordinates are truncated")
}

func TestTruncationDisabled(t *testing.T) {
	cfg := model.Config{TruncationThreshold: 1, TruncationUpdate: 1}
	m := newModel(t, loss.Logistic{}, elasticNet(t, 0, 0), cfg)

	m.Update(positive(t))
	m.Update(positive(t))

	assert.True(t, m.Params().Contains("foo"))
}

func TestThresholdParameters(t *testing.T) {
	m := newModel(t, loss.Logistic{}, elasticNet(t, 0, 0), model.Config{})
	m.SetParameter("small", 0.01)
	m.SetParameter("neg", -0.01)
	m.SetParameter("big", 3)

	m.ThresholdParameters(0.1)

	got := maps.Collect(m.Decompose())
	assert.Equal(t, map[string]float64{"big": 3}, got)
}

func TestRescale(t *testing.T) {
	m := newModel(t, loss.LeastSquares{}, elasticNet(t, 0, 0), model.Config{})
	m.SetParameter("a", 2)
	m.SetParameter("b", -4)

	m.Rescale(0.5)

	assert.InDelta(t, 1.0, m.Params().Get("a"), eps)
	assert.InDelta(t, -2.0, m.Params().Get("b"), eps)
	assert.InDelta(t, 1.0+0.5, m.PredictWithBias(sparse.NewVectorFromMap(map[string]float64{"a": 1}), 0.5), eps)
}

func TestExplainPrediction(t *testing.T) {
	m := newModel(t, loss.Logistic{}, elasticNet(t, 0, 0), model.Config{})
	m.SetParameter("a", 0.5)
	m.SetParameter("b", -3)
	m.SetParameter("c", 1)

	x := sparse.NewVectorFromMap(map[string]float64{"a": 4, "b": 1, "c": 1, "unknown": 9})

	assert.Equal(t, "b:1.00->-3.00 a:4.00->0.50 c:1.00->1.00 ", m.ExplainPrediction(x, 0))
	assert.Equal(t, "b:1.00->-3.00 ", m.ExplainPrediction(x, 1))
}

func TestLoss(t *testing.T) {
	m := newModel(t, loss.LeastSquares{}, elasticNet(t, 0, 0), model.Config{})
	m.SetParameter("x", 1)

	inst, err := instance.NewReal(sparse.NewVectorFromMap(map[string]float64{"x": 2}), 5)
	require.NoError(t, err)
	assert.InDelta(t, 9.0, m.Loss(inst), eps)
	assert.InDelta(t, 2*(2-5)*2.0, m.Gradients(inst).Get("x"), eps)
}

func TestSnapshotRestore(t *testing.T) {
	m := newModel(t, loss.Logistic{}, elasticNet(t, 0.05, 0.05), model.Config{})
	m.UpdateBatch([]*instance.Instance{positive(t), negative(t), positive(t)})

	snap := m.Snapshot()
	iteration := m.Params().Iteration()

	restored := newModel(t, loss.Logistic{}, elasticNet(t, 0.05, 0.05), model.Config{})
	restored.Restore(snap, m.Epoch(), iteration)

	m.Update(negative(t))
	restored.Update(negative(t))

	assert.Equal(t, m.Epoch(), restored.Epoch())
	for _, name := range []string{"foo", "bar", "baz"} {
		assert.InDelta(t, m.Params().Get(name), restored.Params().Get(name), eps, name)
	}
}

func TestNewLinearModelValidation(t *testing.T) {
	opt := elasticNet(t, 0, 0)

	tests := []struct {
		name string
		loss optim.Loss
		opt  optim.Optimizer
		cfg  model.Config
	}{
		{"nil loss", nil, opt, model.Config{}},
		{"nil optimizer", loss.Logistic{}, nil, model.Config{}},
		{"negative period", loss.Logistic{}, opt, model.Config{TruncationPeriod: -1}},
		{"negative threshold", loss.Logistic{}, opt, model.Config{TruncationThreshold: -1}},
		{"negative update", loss.Logistic{}, opt, model.Config{TruncationUpdate: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := model.NewLinearModel(tt.loss, tt.opt, tt.cfg)
			assert.ErrorIs(t, err, optim.ErrInvalidArgument)
		})
	}
}

func TestLoggingAndMetrics(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	reg := prometheus.NewRegistry()
	cfg := model.Config{
		TruncationPeriod:    2,
		TruncationThreshold: 0.01,
		Logger:              zap.New(core),
		Metrics:             metrics.NewTraining(reg, "test"),
	}
	m := newModel(t, loss.Logistic{}, elasticNet(t, 0, 0), cfg)
	other := newModel(t, loss.Logistic{}, elasticNet(t, 0, 0), model.Config{})

	m.UpdateBatch([]*instance.Instance{positive(t), negative(t), positive(t)})
	require.NoError(t, m.Merge(other, 1))

	assert.Equal(t, 1, logs.FilterMessage("truncation").Len())
	assert.Equal(t, 1, logs.FilterMessage("merge").Len())

	expected := `
# HELP lazylinear_training_instances_total Total number of training instances applied
# TYPE lazylinear_training_instances_total counter
lazylinear_training_instances_total{model="test"} 3
# HELP lazylinear_training_truncations_total Total number of truncation passes
# TYPE lazylinear_training_truncations_total counter
lazylinear_training_truncations_total{model="test"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"lazylinear_training_instances_total", "lazylinear_training_truncations_total"))
}
