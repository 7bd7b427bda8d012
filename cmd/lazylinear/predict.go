package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/born-ml/lazylinear/internal/config"
	"github.com/born-ml/lazylinear/internal/featurize"
	"github.com/born-ml/lazylinear/internal/instance"
	"github.com/born-ml/lazylinear/internal/model"
	"github.com/born-ml/lazylinear/internal/serialization"
)

type predictFlags struct {
	Model   string
	Data    string
	Explain int
}

func newPredictCmd(global *globalFlags) *cobra.Command {
	var flags predictFlags

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score instances with a saved model",
		Long: `Score every instance of --data with --model, one output line per
instance. Binary and regression models print the prediction; one-vs-all
models print the best class and its normalized score.

--config must name the loss and optimizer the model was trained with.`,
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
			return runPredict(cmd.OutOrStdout(), cfg, flags, logger)
		},
	}

	cmd.Flags().StringVarP(&flags.Model, "model", "m", "model.born", "model file")
	cmd.Flags().StringVarP(&flags.Data, "data", "d", "", "instances to score")
	cmd.Flags().IntVar(&flags.Explain, "explain", 0, "append the n largest contributions to each prediction")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

// parserFor rebuilds the line parser recorded in the model metadata.
func parserFor(header serialization.Header) (instance.ParseFunc, error) {
	name, ok := header.Metadata[metaTokenizer]
	if !ok {
		return instance.ParseLine, nil
	}
	tok, err := newTokenizer(name)
	if err != nil {
		return nil, err
	}
	bigrams, _ := strconv.ParseBool(header.Metadata[metaBigrams])
	f, err := featurize.New(featurize.Config{Tokenizer: tok, Bigrams: bigrams})
	if err != nil {
		return nil, err
	}
	return f.ParseLine, nil
}

func runPredict(w io.Writer, cfg config.Training, flags predictFlags, logger *zap.Logger) error {
	header, err := serialization.ReadHeaderFile(flags.Model)
	if err != nil {
		return err
	}
	parse, err := parserFor(header)
	if err != nil {
		return err
	}

	switch header.ModelType {
	case serialization.ModelTypeOneVsAll:
		ova, err := model.LoadOneVsAll(flags.Model, cfg.ClassFactory(logger, nil), model.OneVsAllConfig{
			Parallel: cfg.ParallelConfig(),
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		insts, err := readInstances(flags.Data, instance.KindMulticlass, parse)
		if err != nil {
			return err
		}
		correct := 0
		for _, inst := range insts {
			class, score := ova.Classify(inst.Features)
			if class == inst.Class {
				correct++
			}
			if _, err := fmt.Fprintf(w, "%s\t%.6f\n", class, score); err != nil {
				return err
			}
		}
		logger.Info("prediction finished",
			zap.Int("instances", len(insts)),
			zap.Float64("mean_loss", meanLoss(insts, ova.Loss)),
			zap.Float64("accuracy", ratio(correct, len(insts))))
		return nil

	case serialization.ModelTypeLinear:
		l, err := cfg.NewLoss()
		if err != nil {
			return err
		}
		opt, err := cfg.NewOptimizer()
		if err != nil {
			return err
		}
		lm, err := model.Load(flags.Model, l, opt, cfg.ModelConfig(logger, nil))
		if err != nil {
			return err
		}
		insts, err := readInstances(flags.Data, cfg.Task, parse)
		if err != nil {
			return err
		}
		for _, inst := range insts {
			line := strconv.FormatFloat(lm.Predict(inst.Features), 'f', 6, 64)
			if flags.Explain > 0 {
				line += "\t" + lm.ExplainPrediction(inst.Features, flags.Explain)
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		logger.Info("prediction finished",
			zap.Int("instances", len(insts)),
			zap.Float64("mean_loss", meanLoss(insts, lm.Loss)))
		return nil
	}
	return fmt.Errorf("%w: model type %q", model.ErrUnsupported, header.ModelType)
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
