package plan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ng-nicholas/tabbench/internal/bencherr"
	"github.com/ng-nicholas/tabbench/internal/queryir"
	"github.com/ng-nicholas/tabbench/internal/table"
)

const minimal = `
name: tiny
datasets:
  - {name: contacts, path: contacts.csv}
steps:
  - name: earliest
    kind: dedupe
    inputs: [contacts]
    params: {keys: [user_id], order_by: contact_date}
`

func TestParse_Defaults(t *testing.T) {
	p, err := Parse([]byte(minimal), "/plans")
	require.NoError(t, err)

	assert.Equal(t, "tiny", p.Name)
	assert.Equal(t, 5, p.Iterations)
	assert.Equal(t, 0, p.Warmup)
	assert.Equal(t, 1e-9, p.Tolerance)
	assert.Equal(t, []string{"frame", "sqlite3"}, p.Implementations)
	assert.False(t, p.CollectGarbage)
	assert.Equal(t, "/plans", p.Dir)

	require.Len(t, p.Datasets, 1)
	d := p.Datasets[0]
	assert.Equal(t, ",", d.Delimiter)
	assert.True(t, d.Header)

	require.Len(t, p.Steps, 1)
	s := p.Steps[0]
	assert.Empty(t, s.KeyColumns)
	assert.False(t, s.OrderingSensitive)
	q, err := s.Query()
	require.NoError(t, err)
	assert.Equal(t, queryir.Dedupe{Keys: []string{"user_id"}, OrderBy: "contact_date"}, q)
}

func TestLoad_ContactLog(t *testing.T) {
	p, err := Load(filepath.Join("testdata", "contact-log.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 3, p.Iterations)
	assert.Equal(t, 1, p.Warmup)
	assert.Equal(t, []string{"frame", "sqlite3", "sqlite"}, p.Implementations)

	contacts, props := p.Datasets[0], p.Datasets[1]
	assert.Equal(t, filepath.Join("testdata", "contacts.csv"), contacts.ResolvePath(p.Dir))
	assert.Equal(t, "/data/props.tsv", props.ResolvePath(p.Dir))

	f, err := contacts.Format()
	require.NoError(t, err)
	assert.Equal(t, ',', f.Delimiter)
	assert.True(t, f.Header)
	assert.Equal(t, map[string]table.Type{"contact_date": table.TypeDate}, f.Types)

	f, err = props.Format()
	require.NoError(t, err)
	assert.Equal(t, '\t', f.Delimiter)
	assert.False(t, f.Header)

	q, err := p.Steps[1].Query()
	require.NoError(t, err)
	assert.Equal(t, queryir.GroupAggregate{Keys: []string{"user_id"}, Aggregates: []queryir.Aggregate{
		{Func: queryir.AggCount, As: "count"},
		{Func: queryir.AggMean, Column: "price", As: "mean_price"},
	}}, q)

	q, err = p.Steps[2].Query()
	require.NoError(t, err)
	assert.Equal(t, table.Float(1.2), q.(queryir.Mutate).Literal)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"not yaml", "name: [", ""},
		{"empty", "", ""},
		{"unknown top-level field", minimal + "bogus: 1\n", "bogus"},
		{"zero iterations", minimal + "iterations: 0\n", "iterations"},
		{"one implementation", minimal + "implementations: [frame]\n", "implementations"},
		{"unknown back end", minimal + "implementations: [frame, duckdb]\n", "implementations"},
		{"duplicate back end", minimal + "implementations: [frame, frame]\n", "implementations"},
		{"unknown kind", `
name: x
datasets: [{name: a, path: a.csv}]
steps: [{name: s, kind: pivot, inputs: [a]}]
`, "steps.0.kind"},
		{"unknown param", `
name: x
datasets: [{name: a, path: a.csv}]
steps: [{name: s, kind: dedupe, inputs: [a], params: {keys: [k], order_by: d, sort: true}}]
`, "steps.0.params.sort"},
		{"bad type hint", `
name: x
datasets: [{name: a, path: a.csv, types: {k: bool}}]
steps: [{name: s, kind: append, inputs: [a, a]}]
`, "datasets.0.types.k"},
		{"bad delimiter", `
name: x
datasets: [{name: a, path: a.csv, delimiter: ";;"}]
steps: [{name: s, kind: append, inputs: [a, a]}]
`, "delimiter"},
		{"unknown input", `
name: x
datasets: [{name: a, path: a.csv}]
steps: [{name: s, kind: append, inputs: [a, b]}]
`, "steps[0].inputs"},
		{"wrong arity", `
name: x
datasets: [{name: a, path: a.csv}]
steps: [{name: s, kind: join, inputs: [a], params: {on: [k]}}]
`, "steps[0].inputs"},
		{"later step as input", `
name: x
datasets: [{name: a, path: a.csv}]
steps:
  - {name: s1, kind: append, inputs: [a, s2]}
  - {name: s2, kind: append, inputs: [a, a]}
`, "steps[0].inputs"},
		{"step shadows dataset", `
name: x
datasets: [{name: a, path: a.csv}]
steps: [{name: a, kind: append, inputs: [a, a]}]
`, "steps[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), "")
			require.Error(t, err)
			var ce *bencherr.InvalidConfigError
			require.ErrorAs(t, err, &ce, "got %v", err)
			assert.True(t, strings.HasPrefix(ce.Field, tt.field), "field %q, error: %v", ce.Field, err)
		})
	}
}

func TestParse_DuplicateStep(t *testing.T) {
	_, err := Parse([]byte(minimal+`  - name: earliest
    kind: dedupe
    inputs: [contacts]
    params: {keys: [prop_id], order_by: contact_date}
`), "")
	require.Error(t, err)
	assert.True(t, bencherr.IsDuplicateOperation(err))
}

func TestValidate_AfterOverride(t *testing.T) {
	p, err := Parse([]byte(minimal), "")
	require.NoError(t, err)

	p.Iterations = 0
	assert.True(t, bencherr.IsInvalidConfig(p.Validate()))

	p.Iterations = 2
	p.Implementations = []string{"sqlite"}
	assert.True(t, bencherr.IsInvalidConfig(p.Validate()))

	p.Implementations = []string{"sqlite", "frame"}
	assert.NoError(t, p.Validate())
}
