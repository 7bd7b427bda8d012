// Package model implements online sparse linear models.
//
// A LinearModel composes a loss (what is minimized) with an optimizer (how
// each step is taken) over one lazily regularized parameter vector. The
// optimizer's Decay is installed as the vector's replay function, so L1/L2
// shrinkage for a feature is paid only when that feature is next touched.
//
// Example usage:
//
//	opt, _ := optim.NewElasticNet(optim.ElasticNetConfig{L1: 0.01})
//	m, _ := model.NewLinearModel(loss.Logistic{}, opt, model.Config{})
//	for _, inst := range instances {
//	    m.Update(inst)
//	}
//	p := m.Predict(features)
package model

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/born-ml/lazylinear/internal/instance"
	"github.com/born-ml/lazylinear/internal/metrics"
	"github.com/born-ml/lazylinear/internal/optim"
	"github.com/born-ml/lazylinear/internal/sparse"
)

// DefaultTruncationUpdate is the truncation shrink factor used when
// Config.TruncationUpdate is zero.
const DefaultTruncationUpdate = 0.1

// Errors returned by models.
var (
	ErrUnsupported  = errors.New("operation not supported")
	ErrIncompatible = errors.New("incompatible model")
)

// Config holds the model options that are independent of loss and
// optimizer.
type Config struct {
	// TruncationPeriod enables truncated gradient every that many
	// instances (default: 0, disabled).
	TruncationPeriod int64

	// TruncationThreshold is the magnitude below which a touched weight is
	// shrunk by truncation (default: 0).
	TruncationThreshold float64

	// TruncationUpdate scales the global learning rate into the truncation
	// shrink amount (default: DefaultTruncationUpdate).
	TruncationUpdate float64

	Logger  *zap.Logger       // default: no-op
	Metrics *metrics.Training // default: none
}

func (c Config) validate() error {
	if c.TruncationPeriod < 0 {
		return fmt.Errorf("%w: truncation period must be non-negative, given %d", optim.ErrInvalidArgument, c.TruncationPeriod)
	}
	if c.TruncationThreshold < 0 {
		return fmt.Errorf("%w: truncation threshold must be non-negative, given %v", optim.ErrInvalidArgument, c.TruncationThreshold)
	}
	if c.TruncationUpdate < 0 {
		return fmt.Errorf("%w: truncation update must be non-negative, given %v", optim.ErrInvalidArgument, c.TruncationUpdate)
	}
	return nil
}

// LinearModel is an online linear model over sparse features.
//
// A LinearModel is not safe for concurrent use. Train independent models
// and Merge them to parallelize.
type LinearModel struct {
	id     uuid.UUID
	loss   optim.Loss
	opt    optim.Optimizer
	params *sparse.LazyVector
	epoch  int64

	period    int64
	threshold float64
	shrink    float64

	logger   *zap.Logger
	metrics  *metrics.Training
	rehashes int
}

// NewLinearModel creates an empty model.
func NewLinearModel(loss optim.Loss, opt optim.Optimizer, cfg Config) (*LinearModel, error) {
	if loss == nil || opt == nil {
		return nil, fmt.Errorf("%w: loss and optimizer are required", optim.ErrInvalidArgument)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.TruncationUpdate == 0 {
		cfg.TruncationUpdate = DefaultTruncationUpdate
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	id := uuid.New()
	return &LinearModel{
		id:        id,
		loss:      loss,
		opt:       opt,
		params:    sparse.NewLazyVector(opt.Decay),
		period:    cfg.TruncationPeriod,
		threshold: cfg.TruncationThreshold,
		shrink:    cfg.TruncationUpdate,
		logger: cfg.Logger.With(
			zap.String("model", id.String()),
			zap.String("loss", loss.Name()),
			zap.String("optimizer", opt.Name()),
		),
		metrics: cfg.Metrics,
	}, nil
}

// ID identifies the model across checkpoints.
func (m *LinearModel) ID() uuid.UUID { return m.id }

// LossFunc returns the loss the model minimizes.
func (m *LinearModel) LossFunc() optim.Loss { return m.loss }

// Optimizer returns the model's optimizer.
func (m *LinearModel) Optimizer() optim.Optimizer { return m.opt }

// Params returns the parameter vector. Callers must not retain it across
// updates.
func (m *LinearModel) Params() *sparse.LazyVector { return m.params }

// Epoch returns the number of instances the model has consumed.
func (m *LinearModel) Epoch() int64 { return m.epoch }

// SetEpoch overrides the instance count.
func (m *LinearModel) SetEpoch(epoch int64) { m.epoch = epoch }

// LearningRate returns the global learning rate at the current epoch.
func (m *LinearModel) LearningRate() float64 {
	return m.opt.GlobalRate(m.epoch)
}

// Update trains the model on one instance.
func (m *LinearModel) Update(inst *instance.Instance) {
	m.UpdateWithBias(inst, 0)
}

// UpdateWithGlobal trains on inst with its score offset by the score of a
// global model, so this model learns a correction to global.
func (m *LinearModel) UpdateWithGlobal(inst *instance.Instance, global *LinearModel) {
	m.UpdateWithBias(inst, global.DotWithParam(inst.Features))
}

// UpdateWithBias trains the model on one instance whose score is offset by
// bias.
func (m *LinearModel) UpdateWithBias(inst *instance.Instance, bias float64) {
	start := time.Now()
	if m.epoch > 0 {
		m.params.IncrementIteration()
	}

	step := optim.Step{
		Instance: inst,
		Epoch:    m.epoch,
		Bias:     bias,
		Params:   m.params,
		Loss:     m.loss,
	}
	var lossValue float64
	if m.metrics != nil {
		lossValue = m.loss.Value(step.Score(), inst)
	}

	m.params.AddScaled(m.opt.Update(step), 1)

	if m.period > 0 && m.epoch > 0 && m.epoch%m.period == 0 {
		m.truncate(inst.Features)
	}
	m.epoch++

	if r := m.params.Rehashes(); r > m.rehashes {
		m.rehashes = r
		m.logger.Info("parameter table grew",
			zap.Int("coordinates", m.params.StoredLen()),
			zap.Int64("epoch", m.epoch))
	}
	m.metrics.ObserveUpdate(lossValue, time.Since(start), m.epoch, m.params.StoredLen())
}

// UpdateBatch trains the model on every instance in order.
func (m *LinearModel) UpdateBatch(insts []*instance.Instance) {
	for _, inst := range insts {
		m.Update(inst)
	}
}

// truncate shrinks the small weights of the given coordinates toward zero
// by the global rate times the truncation update.
func (m *LinearModel) truncate(features *sparse.Vector) {
	amount := m.opt.GlobalRate(m.epoch) * m.shrink
	var truncated int
	features.Range(func(name string, _ float64) bool {
		w := m.params.Get(name)
		switch {
		case w > 0 && w < m.threshold:
			m.params.Set(name, math.Max(0, w-amount))
			truncated++
		case w < 0 && w > -m.threshold:
			m.params.Set(name, math.Min(0, w+amount))
			truncated++
		}
		return true
	})

	m.logger.Debug("truncation",
		zap.Int64("epoch", m.epoch),
		zap.Float64("amount", amount),
		zap.Int("coordinates", truncated))
	m.metrics.ObserveTruncation()
}

// Merge adds scale times other's parameters to m and accumulates its
// epoch count. Per-feature optimizer statistics are merged too, so both
// models must use the same stateful optimizer if either uses one. Merging
// a model into itself is allowed.
func (m *LinearModel) Merge(other *LinearModel, scale float64) error {
	mine, stateful := m.opt.(optim.Stateful)
	theirs, otherStateful := other.opt.(optim.Stateful)
	if (stateful || otherStateful) && m.opt.Name() != other.opt.Name() {
		return fmt.Errorf("%w: cannot merge %s state into %s", ErrIncompatible, other.opt.Name(), m.opt.Name())
	}

	m.params.AddScaled(other.params, scale)
	m.epoch += other.epoch
	if stateful {
		if err := mine.MergeState(theirs, scale); err != nil {
			return fmt.Errorf("%w: %w", ErrIncompatible, err)
		}
	}

	m.logger.Debug("merge",
		zap.String("other", other.id.String()),
		zap.Float64("scale", scale),
		zap.Int64("epoch", m.epoch))
	m.metrics.ObserveMerge(m.epoch, m.params.StoredLen())
	return nil
}

// DotWithParam returns the raw score of features.
func (m *LinearModel) DotWithParam(features *sparse.Vector) float64 {
	return m.params.Dot(features)
}

// Predict returns the loss's prediction for features.
func (m *LinearModel) Predict(features *sparse.Vector) float64 {
	return m.PredictWithBias(features, 0)
}

// PredictWithBias returns the prediction for features with the score
// offset by bias.
func (m *LinearModel) PredictWithBias(features *sparse.Vector, bias float64) float64 {
	return m.loss.Predict(m.DotWithParam(features) + bias)
}

// Loss returns the loss of inst under the current parameters.
func (m *LinearModel) Loss(inst *instance.Instance) float64 {
	return m.loss.Value(m.DotWithParam(inst.Features), inst)
}

// Gradients returns the loss gradient for inst under the current
// parameters.
func (m *LinearModel) Gradients(inst *instance.Instance) *sparse.Vector {
	return m.loss.Gradients(m.DotWithParam(inst.Features), inst)
}

// Rescale multiplies every parameter by scale.
func (m *LinearModel) Rescale(scale float64) {
	m.params.Scale(scale)
}

// SetFreezeFeatureSet stops (or resumes) the introduction of new features.
// Existing weights keep training while frozen.
func (m *LinearModel) SetFreezeFeatureSet(freeze bool) {
	m.params.SetFrozen(freeze)
}

// Decompose yields every up to date parameter.
func (m *LinearModel) Decompose() iter.Seq2[string, float64] {
	return func(yield func(string, float64) bool) {
		m.params.Range(yield)
	}
}

// SetParameter overwrites one parameter.
func (m *LinearModel) SetParameter(name string, value float64) {
	m.params.Set(name, value)
}

// ThresholdParameters removes every parameter with magnitude below t.
func (m *LinearModel) ThresholdParameters(t float64) {
	m.params.Transform(func(w float64) float64 {
		if math.Abs(w) < t {
			return 0
		}
		return w
	})
	m.params.RemoveZeroCoordinates()
}

// ExplainPrediction lists the features of x with a non-zero weight,
// largest contribution |x_i * w_i| first, as "name:x->w " entries. A
// non-positive n lists all of them.
func (m *LinearModel) ExplainPrediction(x *sparse.Vector, n int) string {
	type term struct {
		name      string
		x, w, abs float64
	}
	var terms []term
	x.Range(func(name string, value float64) bool {
		if w := m.params.Get(name); w != 0 {
			terms = append(terms, term{name, value, w, math.Abs(value * w)})
		}
		return true
	})
	slices.SortFunc(terms, func(a, b term) int {
		if c := cmp.Compare(b.abs, a.abs); c != 0 {
			return c
		}
		return strings.Compare(a.name, b.name)
	})
	if n > 0 && n < len(terms) {
		terms = terms[:n]
	}

	var sb strings.Builder
	for _, t := range terms {
		fmt.Fprintf(&sb, "%s:%.2f->%.2f ", t.name, t.x, t.w)
	}
	return sb.String()
}

// Snapshot returns the up to date parameters as a plain vector.
func (m *LinearModel) Snapshot() *sparse.Vector {
	return m.params.Snapshot()
}

// Restore replaces the parameters with values that are up to date at
// iteration, and sets the epoch.
func (m *LinearModel) Restore(values *sparse.Vector, epoch, iteration int64) {
	frozen := m.params.Frozen()
	m.params = sparse.NewLazyVectorAt(values.ToMap(), iteration, m.opt.Decay)
	m.params.SetFrozen(frozen)
	m.epoch = epoch
	m.rehashes = 0
	m.metrics.SetCoordinates(m.params.StoredLen())
}
