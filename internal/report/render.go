package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ng-nicholas/tabbench/internal/bencherr"
)

// Format selects a rendering.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// Formats lists the supported formats.
var Formats = []Format{FormatText, FormatMarkdown, FormatJSON}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", bencherr.NewInvalidConfig("format", "unknown format %q (want text, markdown or json)", s)
}

// Render writes rep to w in the given format.
func Render(w io.Writer, rep *Report, format Format) error {
	switch format {
	case FormatText:
		return renderText(w, rep)
	case FormatMarkdown:
		return renderMarkdown(w, rep)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	default:
		return bencherr.NewInvalidConfig("format", "unknown format %q (want text, markdown or json)", format)
	}
}

func duration(d time.Duration) string {
	return d.Round(time.Microsecond).String()
}

func speedupCell(s *float64) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%.2fx", *s)
}

func verdict(ok bool) string {
	if ok {
		return "equivalent"
	}
	return "NOT EQUIVALENT"
}

func implRow(impl ImplementationReport) []string {
	if impl.Failed {
		return []string{impl.Name, "0", "-", "-", "-", "-", "-", "-", equivCell(impl), failures(impl)}
	}
	s := impl.Stats
	return []string{
		impl.Name,
		fmt.Sprint(s.N),
		duration(s.Mean),
		duration(s.Median),
		duration(s.Min),
		duration(s.Max),
		duration(s.StdDev),
		speedupCell(impl.Speedup),
		equivCell(impl),
		failures(impl),
	}
}

// equivCell marks the reference "ref" and every other implementation by
// the result of its equivalence check.
func equivCell(impl ImplementationReport) string {
	switch {
	case impl.Equivalent == nil:
		return "ref"
	case *impl.Equivalent:
		return "pass"
	default:
		return "FAIL"
	}
}

func failures(impl ImplementationReport) string {
	out := fmt.Sprint(impl.Failures)
	if impl.WarmupFailures > 0 {
		out += fmt.Sprintf(" (+%d warm-up)", impl.WarmupFailures)
	}
	if impl.Failed {
		out += " FAILED"
	}
	return out
}

var implHeader = []string{"IMPLEMENTATION", "N", "MEAN", "MEDIAN", "MIN", "MAX", "STDDEV", "SPEEDUP", "EQUIV", "FAILURES"}

func renderText(w io.Writer, rep *Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "plan %s  run %s  iterations %d  warm-up %d\n", rep.Plan, rep.RunID, rep.Iterations, rep.Warmup)

	if len(rep.Datasets) > 0 {
		b.WriteString("\n")
		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "DATASET\tROWS\tCOLUMNS\tSIZE\tPATH")
		for _, d := range rep.Datasets {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", d.Name, humanize.Comma(int64(d.Rows)), d.Columns, humanize.Bytes(uint64(d.Bytes)), d.Path)
		}
		tw.Flush()
	}

	for _, op := range rep.Operations {
		fmt.Fprintf(&b, "\n%s (%s): %s\n", op.Name, op.Kind, verdict(op.Equivalent))
		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(implHeader, "\t"))
		for _, impl := range op.Implementations {
			fmt.Fprintln(tw, strings.Join(implRow(impl), "\t"))
		}
		tw.Flush()
		if op.Fastest != "" {
			fmt.Fprintf(&b, "fastest: %s\n", op.Fastest)
		}
		if op.Output != nil {
			fmt.Fprintf(&b, "output: %s rows, %d columns, sha256 %s\n", humanize.Comma(int64(op.Output.Rows)), op.Output.Columns, shortHash(op.Output.Fingerprint))
		}
		if op.Diff != "" {
			for _, line := range strings.Split(op.Diff, "\n") {
				fmt.Fprintf(&b, "  %s\n", line)
			}
		}
		for _, impl := range op.Implementations {
			for _, e := range impl.Errors {
				fmt.Fprintf(&b, "  error: %s\n", e)
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// shortHash abbreviates a hex digest for display.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func mdRow(cells []string) string {
	return "| " + strings.Join(cells, " | ") + " |\n"
}

func renderMarkdown(w io.Writer, rep *Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Benchmark: %s\n\n", rep.Plan)
	fmt.Fprintf(&b, "Run `%s`, %d iterations, %d warm-up.\n", rep.RunID, rep.Iterations, rep.Warmup)

	if len(rep.Datasets) > 0 {
		b.WriteString("\n## Datasets\n\n")
		b.WriteString(mdRow([]string{"Dataset", "Rows", "Columns", "Size", "Path"}))
		b.WriteString(mdRow([]string{"---", "---:", "---:", "---:", "---"}))
		for _, d := range rep.Datasets {
			b.WriteString(mdRow([]string{d.Name, humanize.Comma(int64(d.Rows)), fmt.Sprint(d.Columns), humanize.Bytes(uint64(d.Bytes)), "`" + d.Path + "`"}))
		}
	}

	for _, op := range rep.Operations {
		fmt.Fprintf(&b, "\n## %s (%s)\n\n", op.Name, op.Kind)
		mark := "pass"
		if !op.Equivalent {
			mark = "FAIL"
		}
		fmt.Fprintf(&b, "Equivalence: **%s**", mark)
		if op.Fastest != "" {
			fmt.Fprintf(&b, ", fastest: **%s**", op.Fastest)
		}
		if op.Output != nil {
			fmt.Fprintf(&b, ", output: %s rows x %d columns (`%s`)", humanize.Comma(int64(op.Output.Rows)), op.Output.Columns, shortHash(op.Output.Fingerprint))
		}
		b.WriteString("\n\n")

		header := make([]string, len(implHeader))
		for i, h := range implHeader {
			header[i] = strings.ToUpper(h[:1]) + strings.ToLower(h[1:])
		}
		b.WriteString(mdRow(header))
		b.WriteString(mdRow([]string{"---", "---:", "---:", "---:", "---:", "---:", "---:", "---:", "---", "---:"}))
		for _, impl := range op.Implementations {
			b.WriteString(mdRow(implRow(impl)))
		}

		if op.Diff != "" {
			b.WriteString("\n```\n" + op.Diff + "\n```\n")
		}
		var errs []string
		for _, impl := range op.Implementations {
			errs = append(errs, impl.Errors...)
		}
		if len(errs) > 0 {
			b.WriteString("\n")
			for _, e := range errs {
				fmt.Fprintf(&b, "- error: %s\n", e)
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
