// Package config loads YAML training configurations and builds the loss,
// optimizer and model they describe.
//
// Example file:
//
//	task: binary
//	loss: logistic
//	optimizer:
//	  type: elastic_net
//	  l1: 0.001
//	  schedule:
//	    initial: 0.1
//	    examples_per_epoch: 10000
//	truncation:
//	  period: 100
//	  threshold: 0.01
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/lazylinear/internal/instance"
	"github.com/born-ml/lazylinear/internal/loss"
	"github.com/born-ml/lazylinear/internal/metrics"
	"github.com/born-ml/lazylinear/internal/model"
	"github.com/born-ml/lazylinear/internal/optim"
	"github.com/born-ml/lazylinear/internal/parallel"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Loss names.
const (
	LossLogistic           = "logistic"
	LossHinge              = "hinge"
	LossPerceptron         = "perceptron"
	LossSVM                = "svm"
	LossLeastSquares       = "least_squares"
	LossEpsilonInsensitive = "epsilon_insensitive"
)

// Optimizer names.
const (
	OptimizerElasticNet        = "elastic_net"
	OptimizerAdagrad           = "adagrad"
	OptimizerFTRL              = "ftrl"
	OptimizerPassiveAggressive = "passive_aggressive"
	OptimizerMIRA              = "mira"
)

// Training is a complete training configuration.
type Training struct {
	Task           instance.Kind `yaml:"task"`            // binary, real or multiclass
	Loss           string        `yaml:"loss"`            // see the Loss constants
	HingeThreshold float64       `yaml:"hinge_threshold"` // for loss "hinge"
	Epsilon        float64       `yaml:"epsilon"`         // for loss "epsilon_insensitive"
	Classes        []string      `yaml:"classes"`         // multiclass; inferred from data when empty

	Optimizer  Optimizer  `yaml:"optimizer"`
	Truncation Truncation `yaml:"truncation"`
	Parallel   Parallel   `yaml:"parallel"`

	// Prune removes parameters with magnitude below it after training.
	Prune float64 `yaml:"prune"`
}

// Optimizer configures the optimizer.
type Optimizer struct {
	Type     string   `yaml:"type"`
	L1       float64  `yaml:"l1"`
	L2       float64  `yaml:"l2"`
	LR       float64  `yaml:"lr"`    // adagrad initial rate
	Alpha    float64  `yaml:"alpha"` // ftrl
	Beta     float64  `yaml:"beta"`  // ftrl
	C        float64  `yaml:"c"`     // passive_aggressive
	Schedule Schedule `yaml:"schedule"`
}

// Schedule configures the learning-rate schedule. A positive Constant
// selects a constant rate; otherwise the rate decreases.
type Schedule struct {
	Constant         float64 `yaml:"constant"`
	Initial          float64 `yaml:"initial"`
	ExamplesPerEpoch float64 `yaml:"examples_per_epoch"`
	Exponential      bool    `yaml:"exponential"`
	Base             float64 `yaml:"base"`
}

// Truncation configures truncated gradient.
type Truncation struct {
	Period    int64   `yaml:"period"`
	Threshold float64 `yaml:"threshold"`
	Update    float64 `yaml:"update"`
}

// Parallel configures sharded training and the one-vs-all fan-out.
type Parallel struct {
	Shards  int  `yaml:"shards"`
	Workers int  `yaml:"workers"`
	Average bool `yaml:"average"`
}

// Default returns the configuration of plain logistic regression.
func Default() Training {
	return Training{
		Task: instance.KindBinary,
		Loss: LossLogistic,
		Optimizer: Optimizer{
			Type: OptimizerElasticNet,
		},
		Truncation: Truncation{Update: model.DefaultTruncationUpdate},
		Parallel:   Parallel{Shards: 1},
	}
}

// Parse decodes YAML from r over the defaults and validates the result.
// Unknown fields are rejected.
func Parse(r io.Reader) (Training, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Training{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Training{}, err
	}
	return cfg, nil
}

// Load reads and parses the YAML file at path.
func Load(path string) (Training, error) {
	//nolint:gosec // G304: config path comes from the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return Training{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Validate reports every invalid field at once.
func (t Training) Validate() error {
	var err error
	invalid := func(format string, args ...any) {
		err = multierr.Append(err, fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...)))
	}

	switch t.Task {
	case instance.KindBinary, instance.KindMulticlass:
		if t.Loss == LossLeastSquares || t.Loss == LossEpsilonInsensitive {
			invalid("loss %q needs task %q", t.Loss, instance.KindReal)
		}
	case instance.KindReal:
		if t.Loss != LossLeastSquares && t.Loss != LossEpsilonInsensitive {
			invalid("loss %q does not support task %q", t.Loss, t.Task)
		}
	default:
		invalid("unknown task %q", t.Task)
	}

	switch t.Loss {
	case LossLogistic, LossHinge, LossPerceptron, LossSVM, LossLeastSquares, LossEpsilonInsensitive:
	default:
		invalid("unknown loss %q", t.Loss)
	}
	if t.Epsilon < 0 {
		invalid("epsilon must be non-negative, given %v", t.Epsilon)
	}

	switch t.Optimizer.Type {
	case OptimizerElasticNet, OptimizerAdagrad, OptimizerFTRL, OptimizerPassiveAggressive, OptimizerMIRA:
	default:
		invalid("unknown optimizer %q", t.Optimizer.Type)
	}
	if t.Optimizer.Type == OptimizerMIRA && t.Task == instance.KindReal {
		invalid("optimizer %q is for classification", OptimizerMIRA)
	}
	for name, v := range map[string]float64{
		"l1": t.Optimizer.L1, "l2": t.Optimizer.L2, "lr": t.Optimizer.LR,
		"alpha": t.Optimizer.Alpha, "beta": t.Optimizer.Beta, "c": t.Optimizer.C,
		"schedule.constant": t.Optimizer.Schedule.Constant,
		"truncation.threshold": t.Truncation.Threshold, "truncation.update": t.Truncation.Update,
		"prune": t.Prune,
	} {
		if v < 0 {
			invalid("%s must be non-negative, given %v", name, v)
		}
	}
	if t.Truncation.Period < 0 {
		invalid("truncation.period must be non-negative, given %d", t.Truncation.Period)
	}
	if t.Parallel.Shards < 1 {
		invalid("parallel.shards must be at least 1, given %d", t.Parallel.Shards)
	}
	if t.Parallel.Workers < 0 {
		invalid("parallel.workers must be non-negative, given %d", t.Parallel.Workers)
	}
	if t.Task != instance.KindMulticlass && len(t.Classes) > 0 {
		invalid("classes are only valid for task %q", instance.KindMulticlass)
	}
	return err
}

// NewLoss builds the configured loss.
func (t Training) NewLoss() (optim.Loss, error) {
	switch t.Loss {
	case LossLogistic:
		return loss.Logistic{}, nil
	case LossHinge:
		return loss.Hinge{Threshold: t.HingeThreshold}, nil
	case LossPerceptron:
		return loss.Perceptron(), nil
	case LossSVM:
		return loss.SVM(), nil
	case LossLeastSquares:
		return loss.LeastSquares{}, nil
	case LossEpsilonInsensitive:
		return loss.EpsilonInsensitive{Epsilon: t.Epsilon}, nil
	}
	return nil, fmt.Errorf("%w: unknown loss %q", ErrInvalidConfig, t.Loss)
}

func (s Schedule) build() (optim.LearningRate, error) {
	if s.Constant > 0 {
		return optim.ConstantRate(s.Constant), nil
	}
	return optim.NewDecreasingRate(optim.DecreasingRateConfig{
		Initial:          s.Initial,
		ExamplesPerEpoch: s.ExamplesPerEpoch,
		Exponential:      s.Exponential,
		Base:             s.Base,
	})
}

// NewOptimizer builds a fresh optimizer. Optimizers keep per-feature state,
// so every model needs its own.
func (t Training) NewOptimizer() (optim.Optimizer, error) {
	o := t.Optimizer
	rate, err := o.Schedule.build()
	if err != nil {
		return nil, err
	}

	switch o.Type {
	case OptimizerElasticNet:
		return optim.NewElasticNet(optim.ElasticNetConfig{L1: o.L1, L2: o.L2, Rate: rate})
	case OptimizerAdagrad:
		if o.Schedule == (Schedule{}) {
			rate = nil
		}
		return optim.NewAdagrad(optim.AdagradConfig{LR: o.LR, L1: o.L1, Rate: rate})
	case OptimizerFTRL:
		return optim.NewFTRL(optim.FTRLConfig{Alpha: o.Alpha, Beta: o.Beta, L1: o.L1, L2: o.L2, Rate: rate})
	case OptimizerPassiveAggressive:
		return optim.NewPassiveAggressive(optim.PassiveAggressiveConfig{
			C:     o.C,
			Hinge: t.Task != instance.KindReal,
			Rate:  rate,
		})
	case OptimizerMIRA:
		return optim.NewMIRA(rate)
	}
	return nil, fmt.Errorf("%w: unknown optimizer %q", ErrInvalidConfig, o.Type)
}

// ModelConfig returns the model options.
func (t Training) ModelConfig(logger *zap.Logger, m *metrics.Training) model.Config {
	return model.Config{
		TruncationPeriod:    t.Truncation.Period,
		TruncationThreshold: t.Truncation.Threshold,
		TruncationUpdate:    t.Truncation.Update,
		Logger:              logger,
		Metrics:             m,
	}
}

// ParallelConfig returns the fan-out configuration.
func (t Training) ParallelConfig() parallel.Config {
	cfg := parallel.DefaultConfig()
	if t.Parallel.Workers > 0 {
		cfg.NumWorkers = t.Parallel.Workers
		cfg.Enabled = t.Parallel.Workers > 1
	}
	return cfg
}

// NewModel builds a fresh binary or regression model.
func (t Training) NewModel(logger *zap.Logger, m *metrics.Training) (*model.LinearModel, error) {
	l, err := t.NewLoss()
	if err != nil {
		return nil, err
	}
	opt, err := t.NewOptimizer()
	if err != nil {
		return nil, err
	}
	return model.NewLinearModel(l, opt, t.ModelConfig(logger, m))
}

// NewOneVsAll builds a fresh one-vs-all model over classes.
func (t Training) NewOneVsAll(classes []string, logger *zap.Logger, m *metrics.Training) (*model.OneVsAll, error) {
	return model.NewOneVsAll(classes, t.ClassFactory(logger, m), model.OneVsAllConfig{
		Parallel: t.ParallelConfig(),
		Logger:   logger,
	})
}

// ClassFactory returns a builder of per-class models; each class model
// logs with its class name.
func (t Training) ClassFactory(logger *zap.Logger, m *metrics.Training) func(class string) (*model.LinearModel, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(class string) (*model.LinearModel, error) {
		return t.NewModel(logger.With(zap.String("class", class)), m)
	}
}
