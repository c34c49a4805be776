// Package cli implements evalctl, an offline front end to the evaluation engine that
// reads submissions from JSON files.
package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/godilite/evaluation-engine/internal/config"
	"github.com/godilite/evaluation-engine/internal/service"
	"github.com/godilite/evaluation-engine/internal/taxonomy"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	verbose   bool
	compact   bool
	epsilon   float64
	minPoints int
	positive  float64
	neutral   float64
}

// NewRootCommand builds the evalctl command tree. Engine options start from the
// environment and are overridden by any flag the caller sets.
func NewRootCommand(stdin io.Reader, stdout io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "evalctl",
		Short: "Score course evaluations and compute dashboard metrics offline",
		Long: `evalctl scores evaluation submissions against the built-in taxonomy and
summarizes populations of them, including anomaly detection.

Input files hold JSON. Use "-" to read from standard input.`,
		SilenceUsage: true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)

	flags := root.PersistentFlags()
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging to stderr")
	flags.BoolVar(&opts.compact, "compact", false, "Print compact JSON")
	flags.Float64Var(&opts.epsilon, "epsilon", 0, "Neighborhood radius for anomaly clustering")
	flags.IntVar(&opts.minPoints, "min-points", 0, "Neighbors required for a core point")
	flags.Float64Var(&opts.positive, "positive-threshold", 0, "Lowest average classified positive")
	flags.Float64Var(&opts.neutral, "neutral-threshold", 0, "Lowest average classified neutral")

	root.AddCommand(
		newScoreCommand(opts),
		newDraftCommand(opts),
		newDashboardCommand(opts),
		newTaxonomyCommand(opts),
	)
	return root
}

// Execute runs evalctl with the process arguments.
func Execute() {
	if err := NewRootCommand(os.Stdin, os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func (o *rootOptions) newService(cmd *cobra.Command) (*service.EvaluationService, error) {
	cfg := config.LoadFromEnv()
	flags := cmd.Flags()
	if flags.Changed("epsilon") {
		cfg.AnomalyEpsilon = o.epsilon
	}
	if flags.Changed("min-points") {
		cfg.AnomalyMinPoints = o.minPoints
	}
	if flags.Changed("positive-threshold") {
		cfg.SentimentPositiveThreshold = o.positive
	}
	if flags.Changed("neutral-threshold") {
		cfg.SentimentNeutralThreshold = o.neutral
	}

	engine, err := cfg.EngineOptions()
	if err != nil {
		return nil, errors.Wrap(err, "invalid engine options")
	}

	logger := zap.NewNop()
	if o.verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return nil, errors.Wrap(err, "failed to create logger")
		}
	}

	svc, err := service.NewEvaluationService(taxonomy.Default(), engine, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create evaluation service")
	}
	return svc, nil
}

func (o *rootOptions) print(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if !o.compact {
		enc.SetIndent("", "  ")
	}
	return errors.Wrap(enc.Encode(v), "failed to write output")
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return data, errors.Wrap(err, "failed to read stdin")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return data, nil
}
