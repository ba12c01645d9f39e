// Package plan reads benchmark plans.
//
// A plan is a YAML file naming the datasets to load, the back ends to
// compare and the steps to run. The YAML is decoded, then unified with an
// embedded CUE schema that closes every struct, constrains enumerations
// and fills in defaults, before it is decoded into a Plan.
package plan

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/ng-nicholas/tabbench/internal/bencherr"
	"github.com/ng-nicholas/tabbench/internal/dataset"
	"github.com/ng-nicholas/tabbench/internal/queryir"
	"github.com/ng-nicholas/tabbench/internal/table"
)

//go:embed schema.cue
var schemaCUE string

// Plan is a validated benchmark plan.
type Plan struct {
	Name            string    `json:"name"`
	Iterations      int       `json:"iterations"`
	Warmup          int       `json:"warmup"`
	Tolerance       float64   `json:"tolerance"`
	Implementations []string  `json:"implementations"`
	CollectGarbage  bool      `json:"collect_garbage"`
	Datasets        []Dataset `json:"datasets"`
	Steps           []Step    `json:"steps"`

	// Dir is the directory relative dataset paths resolve against.
	Dir string `json:"-"`
}

// Dataset is one input file.
type Dataset struct {
	Name      string            `json:"name"`
	Path      string            `json:"path"`
	Delimiter string            `json:"delimiter"`
	Header    bool              `json:"header"`
	Types     map[string]string `json:"types,omitempty"`
}

// Step is one operation to benchmark. Inputs name datasets or earlier
// steps, whose reference output feeds this step.
type Step struct {
	Name              string         `json:"name"`
	Kind              string         `json:"kind"`
	Inputs            []string       `json:"inputs"`
	KeyColumns        []string       `json:"key_columns"`
	OrderingSensitive bool           `json:"ordering_sensitive"`
	Params            queryir.Params `json:"params"`
}

// Load reads and validates the plan at path.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return Parse(data, filepath.Dir(path))
}

// Parse decodes and validates plan YAML. dir anchors relative dataset
// paths.
func Parse(data []byte, dir string) (*Plan, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, bencherr.NewInvalidConfig("", "plan is not valid YAML: %v", err)
	}
	if raw == nil {
		return nil, bencherr.NewInvalidConfig("", "plan is empty")
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile plan schema: %w", err)
	}
	doc := ctx.Encode(raw)
	if err := doc.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := schema.LookupPath(cue.ParsePath("#Plan")).Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var p Plan
	if err := v.Decode(&p); err != nil {
		return nil, formatCUEError(err)
	}
	p.Dir = dir
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// formatCUEError reduces a CUE error list to an InvalidConfigError for the
// first error, naming its path.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return bencherr.NewInvalidConfig("", "%v", err)
	}
	first := errs[0]
	format, args := first.Msg()
	return &bencherr.InvalidConfigError{
		Field:  strings.Join(first.Path(), "."),
		Reason: fmt.Sprintf(format, args...),
	}
}

// Validate checks the cross-references the schema cannot express. It is
// safe to call again after overriding fields.
func (p *Plan) Validate() error {
	if p.Iterations < 1 {
		return bencherr.NewInvalidConfig("iterations", "must be at least 1, got %d", p.Iterations)
	}
	if p.Warmup < 0 {
		return bencherr.NewInvalidConfig("warmup", "must not be negative, got %d", p.Warmup)
	}
	if len(p.Implementations) < 2 {
		return bencherr.NewInvalidConfig("implementations", "at least two back ends are required, got %v", p.Implementations)
	}
	seenImpl := make(map[string]bool)
	for _, impl := range p.Implementations {
		if seenImpl[impl] {
			return bencherr.NewInvalidConfig("implementations", "back end %q listed twice", impl)
		}
		seenImpl[impl] = true
	}

	names := make(map[string]string)
	for i, d := range p.Datasets {
		field := fmt.Sprintf("datasets[%d]", i)
		if prev, dup := names[d.Name]; dup {
			return bencherr.NewInvalidConfig(field, "name %q already used by %s", d.Name, prev)
		}
		names[d.Name] = "a dataset"
		if _, err := d.Format(); err != nil {
			return err
		}
	}

	for i, s := range p.Steps {
		field := fmt.Sprintf("steps[%d]", i)
		if prev, dup := names[s.Name]; dup {
			if prev == "a step" {
				return &bencherr.DuplicateOperationError{Name: s.Name}
			}
			return bencherr.NewInvalidConfig(field, "name %q already used by %s", s.Name, prev)
		}
		q, err := s.Query()
		if err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
		if len(s.Inputs) != q.Arity() {
			return bencherr.NewInvalidConfig(field+".inputs", "%s takes %d input(s), got %d", s.Kind, q.Arity(), len(s.Inputs))
		}
		for _, in := range s.Inputs {
			if _, ok := names[in]; !ok {
				return bencherr.NewInvalidConfig(field+".inputs", "%q is not a dataset or an earlier step", in)
			}
		}
		names[s.Name] = "a step"
	}
	return nil
}

// Query builds the step's query node.
func (s Step) Query() (queryir.Query, error) {
	return queryir.FromParams(s.Kind, s.Params)
}

// Format converts the dataset's layout settings.
func (d Dataset) Format() (dataset.Format, error) {
	f := dataset.Format{Header: d.Header, Delimiter: ','}
	if d.Delimiter != "" {
		r, size := utf8.DecodeRuneInString(d.Delimiter)
		if size != len(d.Delimiter) || r == '"' || r == '\n' || r == '\r' {
			return f, bencherr.NewInvalidConfig("delimiter", "dataset %q: delimiter must be a single character other than a quote or newline, got %q", d.Name, d.Delimiter)
		}
		f.Delimiter = r
	}
	if len(d.Types) > 0 {
		f.Types = make(map[string]table.Type, len(d.Types))
		for col, name := range d.Types {
			t, err := table.ParseType(name)
			if err != nil {
				return f, bencherr.NewInvalidConfig("types", "dataset %q column %q: %v", d.Name, col, err)
			}
			f.Types[col] = t
		}
	}
	return f, nil
}

// ResolvePath returns the dataset path, anchored at dir when relative.
func (d Dataset) ResolvePath(dir string) string {
	if filepath.IsAbs(d.Path) || dir == "" {
		return d.Path
	}
	return filepath.Join(dir, d.Path)
}
