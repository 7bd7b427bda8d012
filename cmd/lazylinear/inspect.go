package main

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/born-ml/lazylinear/internal/serialization"
)

type inspectFlags struct {
	Model  string
	Top    int
	Verify bool
}

func newInspectCmd() *cobra.Command {
	var flags inspectFlags

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the header and largest weights of a saved model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd.OutOrStdout(), flags)
		},
	}
	cmd.Flags().StringVarP(&flags.Model, "model", "m", "model.born", "model file")
	cmd.Flags().IntVar(&flags.Top, "top", 10, "weights to print per parameter vector")
	cmd.Flags().BoolVar(&flags.Verify, "verify", false, "only check the data checksum")
	return cmd
}

type weight struct {
	name  string
	value float64
}

func runInspect(w io.Writer, flags inspectFlags) error {
	if flags.Verify {
		h, err := serialization.VerifyFile(flags.Model)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s: checksum ok (%d vectors)\n", flags.Model, len(h.Vectors))
		return err
	}

	f, err := serialization.ReadFile(flags.Model, serialization.ReaderOptions{})
	if err != nil {
		return err
	}

	header, err := json.MarshalIndent(f.Header, "", "  ")
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s\n", header); err != nil {
		return err
	}

	for _, name := range f.Header.VectorNames() {
		if strings.Contains(name, serialization.OptimizerPrefix) || !strings.HasSuffix(name, "params") {
			continue
		}
		v := f.Vectors[name]
		weights := make([]weight, 0, v.Len())
		v.Range(func(k string, x float64) bool {
			weights = append(weights, weight{k, x})
			return true
		})
		slices.SortFunc(weights, func(a, b weight) int {
			return cmp.Or(cmp.Compare(math.Abs(b.value), math.Abs(a.value)), strings.Compare(a.name, b.name))
		})

		fmt.Fprintf(w, "\n%s (%d entries)\n", name, v.Len())
		for _, wt := range weights[:min(flags.Top, len(weights))] {
			fmt.Fprintf(w, "  %-32s %+.6f\n", wt.name, wt.value)
		}
	}
	return nil
}
