package cli

import (
	"bytes"
	"encoding/json"

	"github.com/godilite/evaluation-engine/internal/service"
	"github.com/godilite/evaluation-engine/internal/taxonomy"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// dashboardInput is the dashboard file format: a bare array of submissions, or an
// object carrying submissions and already scored evaluations.
type dashboardInput struct {
	Submissions []service.Submission           `json:"submissions"`
	Evaluations []service.NormalizedEvaluation `json:"evaluations"`
}

func newScoreCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "score <file>",
		Short: "Score one submission or an array of submissions",
		Example: `  evalctl score submission.json
  cat batch.json | evalctl score -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subs, single, err := loadSubmissions(cmd, args[0])
			if err != nil {
				return err
			}
			svc, err := opts.newService(cmd)
			if err != nil {
				return err
			}

			out := make([]service.NormalizedEvaluation, 0, len(subs))
			for i, sub := range subs {
				ev, err := svc.ScoreSubmission(sub)
				if err != nil {
					return errors.Wrapf(err, "submission %d", i)
				}
				out = append(out, ev)
			}

			if single {
				return opts.print(cmd, out[0])
			}
			return opts.print(cmd, out)
		},
	}
}

func newDraftCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "draft <file>",
		Short: "Preview a partially completed submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			var sub service.Submission
			if err := json.Unmarshal(data, &sub); err != nil {
				return errors.Wrap(err, "failed to parse submission")
			}

			svc, err := opts.newService(cmd)
			if err != nil {
				return err
			}
			preview, err := svc.PreviewDraft(sub)
			if err != nil {
				return errors.Wrap(err, "draft preview failed")
			}
			return opts.print(cmd, preview)
		},
	}
}

func newDashboardCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard <file>",
		Short: "Compute dashboard metrics and anomalies for a population",
		Long: `Scores every submission in the file and prints category averages, the
sentiment and performance distributions and any anomalous evaluations.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			var in dashboardInput
			trimmed := bytes.TrimSpace(data)
			if len(trimmed) > 0 && trimmed[0] == '[' {
				err = json.Unmarshal(trimmed, &in.Submissions)
			} else {
				err = json.Unmarshal(trimmed, &in)
			}
			if err != nil {
				return errors.Wrap(err, "failed to parse dashboard input")
			}

			svc, err := opts.newService(cmd)
			if err != nil {
				return err
			}

			evals := make([]service.NormalizedEvaluation, 0, len(in.Evaluations)+len(in.Submissions))
			for i, ev := range in.Evaluations {
				if err := svc.ValidateEvaluation(ev); err != nil {
					return errors.Wrapf(err, "evaluation %d", i)
				}
				evals = append(evals, ev)
			}
			for i, sub := range in.Submissions {
				ev, err := svc.ScoreSubmission(sub)
				if err != nil {
					return errors.Wrapf(err, "submission %d", i)
				}
				evals = append(evals, ev)
			}
			return opts.print(cmd, svc.ComputeDashboardMetrics(evals))
		},
	}
}

func newTaxonomyCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "taxonomy",
		Short: "Print the built-in question taxonomy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tax := taxonomy.Default()
			return opts.print(cmd, map[string]any{
				"version":    tax.Version(),
				"categories": tax.Categories(),
				"legacyKeys": tax.LegacyKeys(),
			})
		},
	}
}

// loadSubmissions accepts a single submission object or an array of them.
func loadSubmissions(cmd *cobra.Command, path string) ([]service.Submission, bool, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, false, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var subs []service.Submission
		if err := json.Unmarshal(trimmed, &subs); err != nil {
			return nil, false, errors.Wrap(err, "failed to parse submissions")
		}
		if len(subs) == 0 {
			return nil, false, errors.New("no submissions in input")
		}
		return subs, false, nil
	}

	var sub service.Submission
	if err := json.Unmarshal(trimmed, &sub); err != nil {
		return nil, false, errors.Wrap(err, "failed to parse submission")
	}
	return []service.Submission{sub}, true, nil
}
