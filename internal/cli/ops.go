package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ng-nicholas/tabbench/internal/frame"
	"github.com/ng-nicholas/tabbench/internal/queryir"
	"github.com/ng-nicholas/tabbench/internal/sqlengine"
)

// KindInfo describes one operation kind.
type KindInfo struct {
	Kind    string   `json:"kind"`
	Inputs  int      `json:"inputs"`
	Params  []string `json:"params"`
	Summary string   `json:"summary"`
}

// Listing is the output of the ops command.
type Listing struct {
	Kinds    []KindInfo `json:"kinds"`
	Backends []string   `json:"backends"`
}

var kindDocs = map[string]struct {
	params  []string
	summary string
}{
	queryir.KindDedupe:         {[]string{"keys", "order_by"}, "one row per key, the one with the smallest order_by"},
	queryir.KindMutate:         {[]string{"target", "op", "left", "right|literal"}, "add or replace a column computed with add, sub, mul or div"},
	queryir.KindGroupAggregate: {[]string{"keys", "aggregates"}, "sum, mean, min, max and count per key"},
	queryir.KindMelt:           {[]string{"id_columns", "measure_columns", "variable_name", "value_name"}, "wide to long"},
	queryir.KindCast:           {[]string{"id_columns", "variable_column", "value_column"}, "long to wide, keeping the max of duplicate cells"},
	queryir.KindJoin:           {[]string{"on", "how"}, "inner or left equi-join"},
	queryir.KindAppend:         {nil, "row-bind two tables with the same columns"},
}

// Listings returns every operation kind and back end.
func Listings() Listing {
	l := Listing{Backends: append([]string{frame.Name}, sqlengine.Drivers...)}
	for _, kind := range queryir.Kinds {
		q, _ := queryir.FromParams(kind, queryir.Params{})
		doc := kindDocs[kind]
		l.Kinds = append(l.Kinds, KindInfo{Kind: kind, Inputs: q.Arity(), Params: doc.params, Summary: doc.summary})
	}
	return l
}

// NewOpsCommand creates the ops command.
func NewOpsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "ops",
		Short:         "List operation kinds and back ends",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOps(rootOpts, cmd)
		},
	}
}

func runOps(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	l := Listings()
	if formatter.Format == "json" {
		return formatter.Success(l)
	}

	tw := tabwriter.NewWriter(formatter.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tINPUTS\tPARAMS\tSUMMARY")
	for _, k := range l.Kinds {
		params := strings.Join(k.Params, ", ")
		if params == "" {
			params = "-"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", k.Kind, k.Inputs, params, k.Summary)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(formatter.Writer, "\nback ends: %s\n", strings.Join(l.Backends, ", "))
	return nil
}
