package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ng-nicholas/tabbench/internal/dataset"
	"github.com/ng-nicholas/tabbench/internal/plan"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Load bool
}

// ValidationResult summarises a valid plan.
type ValidationResult struct {
	Valid           bool             `json:"valid"`
	Plan            string           `json:"plan"`
	Implementations []string         `json:"implementations"`
	Datasets        []DatasetSummary `json:"datasets"`
	Steps           []StepSummary    `json:"steps"`
}

// DatasetSummary describes one dataset of a validated plan. Rows is set
// only with --load.
type DatasetSummary struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Rows *int   `json:"rows,omitempty"`
}

// StepSummary describes one step of a validated plan.
type StepSummary struct {
	Name   string   `json:"name"`
	Kind   string   `json:"kind"`
	Inputs []string `json:"inputs"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <plan.yaml>",
		Short: "Validate a benchmark plan without running it",
		Long: `Validate a benchmark plan against the plan schema and check that
every step's parameters fit its kind and its inputs exist.

With --load the datasets are also read, which checks the files and
their type hints.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Load, "load", false, "also load every dataset")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	p, err := plan.Load(path)
	if err != nil {
		return formatter.Fail("plan is invalid", err)
	}

	result := ValidationResult{Valid: true, Plan: p.Name, Implementations: p.Implementations}
	for _, d := range p.Datasets {
		summary := DatasetSummary{Name: d.Name, Path: d.ResolvePath(p.Dir)}
		if opts.Load {
			f, err := d.Format()
			if err != nil {
				return formatter.Fail("plan is invalid", err)
			}
			formatter.VerboseLog("Loading dataset %s from %s", d.Name, summary.Path)
			t, err := dataset.Load(summary.Path, f)
			if err != nil {
				return formatter.Fail("dataset is invalid", err)
			}
			rows := t.NumRows()
			summary.Rows = &rows
		}
		result.Datasets = append(result.Datasets, summary)
	}
	for _, s := range p.Steps {
		result.Steps = append(result.Steps, StepSummary{Name: s.Name, Kind: s.Kind, Inputs: s.Inputs})
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Plan %s valid\n", result.Plan)
	fmt.Fprintf(w, "back ends: %s\n", strings.Join(result.Implementations, ", "))
	for _, d := range result.Datasets {
		if d.Rows != nil {
			fmt.Fprintf(w, "dataset %s: %s (%s rows)\n", d.Name, d.Path, humanize.Comma(int64(*d.Rows)))
		} else {
			fmt.Fprintf(w, "dataset %s: %s\n", d.Name, d.Path)
		}
	}
	for _, s := range result.Steps {
		fmt.Fprintf(w, "step %s: %s(%s)\n", s.Name, s.Kind, strings.Join(s.Inputs, ", "))
	}
	return nil
}
