package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/born-ml/lazylinear/internal/config"
	"github.com/born-ml/lazylinear/internal/featurize"
	"github.com/born-ml/lazylinear/internal/instance"
	"github.com/born-ml/lazylinear/internal/serialization"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	Config  string
	Verbose bool
}

// Metadata keys recording how text was featurized at training time.
const (
	metaTokenizer = "tokenizer"
	metaBigrams   = "bigrams"
)

func newRootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:   "lazylinear",
		Short: "Online sparse linear models with lazy regularization",
		Long: `lazylinear trains and applies sparse linear models online.

Instances are read one per line as "label[:weight] name[:value] ...", or as
"label[:weight] free text" with --text. Models are saved as .born files.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&flags.Config, "config", "c", "", "training config YAML (default: logistic regression)")
	root.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "development logging")

	root.AddCommand(newTrainCmd(&flags))
	root.AddCommand(newPredictCmd(&flags))
	root.AddCommand(newInspectCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lazylinear %s (format v%d)\n", serialization.Version, serialization.FormatVersion)
		},
	}
}

func (f *globalFlags) logger() (*zap.Logger, error) {
	if f.Verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func (f *globalFlags) training() (config.Training, error) {
	if f.Config == "" {
		return config.Default(), nil
	}
	return config.Load(f.Config)
}

// newTokenizer resolves "words", "tiktoken" or "tiktoken:<encoding>".
func newTokenizer(name string) (featurize.Tokenizer, error) {
	switch {
	case name == "" || name == "words":
		return featurize.Words{}, nil
	case name == "tiktoken":
		return featurize.NewTikToken("")
	default:
		if enc, ok := strings.CutPrefix(name, "tiktoken:"); ok {
			return featurize.NewTikToken(enc)
		}
	}
	return nil, fmt.Errorf("unknown tokenizer %q", name)
}

// readInstances parses every instance of path with parse.
func readInstances(path string, kind instance.Kind, parse instance.ParseFunc) ([]*instance.Instance, error) {
	//nolint:gosec // G304: data path comes from the command line
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data: %w", err)
	}
	defer func() { _ = f.Close() }()

	var out []*instance.Instance
	err = instance.ReadWith(f, kind, parse, func(inst *instance.Instance) error {
		out = append(out, inst)
		return nil
	})
	return out, err
}
