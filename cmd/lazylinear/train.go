package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/born-ml/lazylinear/internal/config"
	"github.com/born-ml/lazylinear/internal/featurize"
	"github.com/born-ml/lazylinear/internal/instance"
	"github.com/born-ml/lazylinear/internal/metrics"
	"github.com/born-ml/lazylinear/internal/model"
)

type trainFlags struct {
	Data      string
	Out       string
	Passes    int
	Shards    int
	Text      bool
	Tokenizer string
	Bigrams   bool
	Metrics   string
}

func newTrainCmd(global *globalFlags) *cobra.Command {
	var flags trainFlags

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model",
		Long: `Train a model on --data and save it to --out.

Binary and regression tasks with parallel.shards > 1 train one model per
shard concurrently and merge them. Multiclass tasks train one binary model
per class; classes missing from the config are taken from the data.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := global.logger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			cfg, err := global.training()
			if err != nil {
				return err
			}
			if flags.Shards > 0 {
				cfg.Parallel.Shards = flags.Shards
			}
			return runTrain(cmd.Context(), cfg, flags, logger)
		},
	}

	cmd.Flags().StringVarP(&flags.Data, "data", "d", "", "training instances")
	cmd.Flags().StringVarP(&flags.Out, "out", "o", "model.born", "output model file")
	cmd.Flags().IntVar(&flags.Passes, "passes", 1, "passes over the data")
	cmd.Flags().IntVar(&flags.Shards, "shards", 0, "override parallel.shards")
	cmd.Flags().BoolVar(&flags.Text, "text", false, "featurize free text after the label")
	cmd.Flags().StringVar(&flags.Tokenizer, "tokenizer", "words", "text tokenizer: words, tiktoken or tiktoken:<encoding>")
	cmd.Flags().BoolVar(&flags.Bigrams, "bigrams", false, "also count adjacent token pairs")
	cmd.Flags().StringVar(&flags.Metrics, "metrics", "", "write training metrics in Prometheus text format to this file")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func runTrain(ctx context.Context, cfg config.Training, flags trainFlags, logger *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if flags.Passes < 1 {
		return fmt.Errorf("passes must be at least 1, given %d", flags.Passes)
	}

	metadata := map[string]string{
		"task": string(cfg.Task),
		"loss": cfg.Loss,
	}
	parse := instance.ParseFunc(instance.ParseLine)
	if flags.Text {
		tok, err := newTokenizer(flags.Tokenizer)
		if err != nil {
			return err
		}
		f, err := featurize.New(featurize.Config{Tokenizer: tok, Bigrams: flags.Bigrams})
		if err != nil {
			return err
		}
		parse = f.ParseLine
		metadata[metaTokenizer] = tok.Name()
		metadata[metaBigrams] = strconv.FormatBool(flags.Bigrams)
	}

	start := time.Now()
	insts, err := readInstances(flags.Data, cfg.Task, parse)
	if err != nil {
		return err
	}
	logger.Info("instances loaded",
		zap.String("path", flags.Data),
		zap.Int("count", len(insts)),
		zap.Duration("took", time.Since(start)))

	reg := prometheus.NewRegistry()
	m := metrics.NewTraining(reg, flags.Out)

	start = time.Now()
	if cfg.Task == instance.KindMulticlass {
		err = trainOneVsAll(cfg, flags, insts, metadata, logger, m)
	} else {
		err = trainLinear(ctx, cfg, flags, insts, metadata, logger, m)
	}
	if err != nil {
		return err
	}
	logger.Info("model saved", zap.String("path", flags.Out), zap.Duration("took", time.Since(start)))

	if flags.Metrics != "" {
		return writeMetrics(flags.Metrics, reg)
	}
	return nil
}

func trainLinear(ctx context.Context, cfg config.Training, flags trainFlags, insts []*instance.Instance,
	metadata map[string]string, logger *zap.Logger, m *metrics.Training) error {
	var (
		lm  *model.LinearModel
		err error
	)
	if cfg.Parallel.Shards > 1 {
		shards := model.SplitShards(repeat(insts, flags.Passes), cfg.Parallel.Shards)
		lm, err = model.TrainSharded(ctx, shards, func() (*model.LinearModel, error) {
			return cfg.NewModel(logger, m)
		}, model.ShardConfig{
			Parallel: cfg.ParallelConfig(),
			Average:  cfg.Parallel.Average,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
	} else {
		lm, err = cfg.NewModel(logger, m)
		if err != nil {
			return err
		}
		for range flags.Passes {
			lm.UpdateBatch(insts)
		}
	}

	if cfg.Prune > 0 {
		lm.ThresholdParameters(cfg.Prune)
	}
	logger.Info("training finished",
		zap.Int64("epoch", lm.Epoch()),
		zap.Int("coordinates", lm.Params().StoredLen()),
		zap.Float64("mean_loss", meanLoss(insts, lm.Loss)))
	return lm.Save(flags.Out, metadata)
}

func trainOneVsAll(cfg config.Training, flags trainFlags, insts []*instance.Instance,
	metadata map[string]string, logger *zap.Logger, m *metrics.Training) error {
	classes := cfg.Classes
	if len(classes) == 0 {
		classes = classesOf(insts)
	}
	ova, err := cfg.NewOneVsAll(classes, logger, m)
	if err != nil {
		return err
	}
	for range flags.Passes {
		ova.UpdateBatch(insts)
	}

	if cfg.Prune > 0 {
		ova.ThresholdParameters(cfg.Prune)
	}
	logger.Info("training finished",
		zap.Strings("classes", ova.Classes()),
		zap.Int64("epoch", ova.Epoch()),
		zap.Float64("mean_loss", meanLoss(insts, ova.Loss)))
	return ova.Save(flags.Out, metadata)
}

func classesOf(insts []*instance.Instance) []string {
	seen := make(map[string]bool)
	var classes []string
	for _, inst := range insts {
		if !seen[inst.Class] {
			seen[inst.Class] = true
			classes = append(classes, inst.Class)
		}
	}
	return classes
}

func repeat(insts []*instance.Instance, n int) []*instance.Instance {
	if n <= 1 {
		return insts
	}
	out := make([]*instance.Instance, 0, n*len(insts))
	for range n {
		out = append(out, insts...)
	}
	return out
}

func meanLoss(insts []*instance.Instance, loss func(*instance.Instance) float64) float64 {
	if len(insts) == 0 {
		return 0
	}
	var total float64
	for _, inst := range insts {
		total += loss(inst)
	}
	return total / float64(len(insts))
}

func writeMetrics(path string, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	//nolint:gosec // G304: metrics path comes from the command line
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}
	enc := expfmt.NewEncoder(f, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
	}
	return f.Close()
}
