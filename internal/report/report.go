// Package report turns timing and equivalence results into a comparison
// report and renders it as text, Markdown or JSON.
//
// Rendering is a pure function of the Report value: the same report always
// renders to the same bytes.
package report

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/ng-nicholas/tabbench/internal/equiv"
	"github.com/ng-nicholas/tabbench/internal/timing"
)

// maxErrors caps the failure messages kept per implementation.
const maxErrors = 3

// Report is the outcome of one benchmark run.
type Report struct {
	RunID      string            `json:"run_id"`
	Plan       string            `json:"plan"`
	Iterations int               `json:"iterations"`
	Warmup     int               `json:"warmup"`
	Datasets   []DatasetInfo     `json:"datasets"`
	Operations []OperationReport `json:"operations"`
}

// DatasetInfo describes a loaded input.
type DatasetInfo struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
	Bytes   int64  `json:"bytes"`
}

// OperationReport compares the implementations of one operation.
type OperationReport struct {
	Name            string                 `json:"name"`
	Kind            string                 `json:"kind"`
	Equivalent      bool                   `json:"equivalent"`
	Diff            string                 `json:"diff,omitempty"`
	Fastest         string                 `json:"fastest,omitempty"`
	Output          *OutputInfo            `json:"output,omitempty"`
	Implementations []ImplementationReport `json:"implementations"`
}

// OutputInfo describes the reference output of an operation.
type OutputInfo struct {
	Rows        int    `json:"rows"`
	Columns     int    `json:"columns"`
	Fingerprint string `json:"fingerprint"`
}

// ImplementationReport holds one implementation's statistics.
type ImplementationReport struct {
	Name  string       `json:"name"`
	Stats timing.Stats `json:"stats"`

	// Speedup is the slowest mean divided by this mean; nil when failed.
	Speedup *float64 `json:"speedup"`

	// Equivalent is nil for the reference implementation.
	Equivalent *bool `json:"equivalent,omitempty"`

	Failures       int      `json:"failures"`
	WarmupFailures int      `json:"warmup_failures"`
	Failed         bool     `json:"failed"`
	Errors         []string `json:"errors,omitempty"`
}

// Check is the equivalence of one implementation against the reference,
// or the failure that prevented the comparison.
type Check struct {
	Implementation string
	Result         equiv.Result
	Err            error
}

// Build assembles the report of one operation. results are in
// implementation order with the reference first; checks cover every other
// implementation.
func Build(name, kind string, results []*timing.Result, checks []Check) OperationReport {
	op := OperationReport{Name: name, Kind: kind, Equivalent: true}

	byImpl := make(map[string]Check, len(checks))
	var diffs []string
	for _, c := range checks {
		byImpl[c.Implementation] = c
		switch {
		case c.Err != nil:
			op.Equivalent = false
			diffs = append(diffs, fmt.Sprintf("%s: %v", c.Implementation, c.Err))
		case !c.Result.Equal:
			op.Equivalent = false
			diffs = append(diffs, fmt.Sprintf("%s: %s", c.Implementation, c.Result.Diff))
		}
	}
	op.Diff = strings.Join(diffs, "\n")

	var slowest time.Duration
	for _, r := range results {
		if !r.Failed && r.Stats.Mean > slowest {
			slowest = r.Stats.Mean
		}
	}

	var fastest time.Duration
	for i, r := range results {
		impl := ImplementationReport{
			Name:           r.Implementation,
			Stats:          r.Stats,
			Failures:       len(r.Failures),
			WarmupFailures: len(r.WarmupFailures),
			Failed:         r.Failed,
		}
		for _, f := range slices.Concat(r.WarmupFailures, r.Failures) {
			if len(impl.Errors) == maxErrors {
				break
			}
			impl.Errors = append(impl.Errors, f.Error())
		}
		if i > 0 {
			c, ok := byImpl[r.Implementation]
			eq := ok && c.Err == nil && c.Result.Equal
			impl.Equivalent = &eq
		}
		if !r.Failed {
			s := speedup(slowest, r.Stats.Mean)
			impl.Speedup = &s
			if op.Fastest == "" || r.Stats.Mean < fastest {
				op.Fastest, fastest = r.Implementation, r.Stats.Mean
			}
		}
		op.Implementations = append(op.Implementations, impl)
	}
	return op
}

// speedup is slowest/mean rounded to hundredths. Means below a nanosecond
// count as one nanosecond.
func speedup(slowest, mean time.Duration) float64 {
	return math.Round(float64(max(slowest, 1))/float64(max(mean, 1))*100) / 100
}

// Equivalent reports whether every operation passed its equivalence check.
func (r *Report) Equivalent() bool {
	for _, op := range r.Operations {
		if !op.Equivalent {
			return false
		}
	}
	return true
}

// Failures counts failed runs across the report, warm-up runs included.
func (r *Report) Failures() int {
	n := 0
	for _, op := range r.Operations {
		for _, impl := range op.Implementations {
			n += impl.Failures + impl.WarmupFailures
		}
	}
	return n
}
