package equiv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ng-nicholas/tabbench/internal/bencherr"
	"github.com/ng-nicholas/tabbench/internal/table"
	tu "github.com/ng-nicholas/tabbench/internal/testutil"
)

// compareBoth runs the comparison both ways and checks symmetry.
func compareBoth(t *testing.T, a, b *table.Table, opts Options) Result {
	t.Helper()
	ab, err := Compare(a, b, opts)
	require.NoError(t, err)
	ba, err := Compare(b, a, opts)
	require.NoError(t, err)
	assert.Equal(t, ab.Equal, ba.Equal, "comparison must be symmetric")
	assert.Equal(t, ab.Mismatches, ba.Mismatches)
	return ab
}

func TestCompare_IgnoresRowAndColumnOrder(t *testing.T) {
	a := tu.Table(t,
		tu.Ints("user_id", 1, 2, 1),
		tu.Strs("channel", "web", "email", "phone"),
	)
	b := tu.Table(t,
		tu.Strs("channel", "phone", "web", "email"),
		tu.Ints("user_id", 1, 1, 2),
	)
	res := compareBoth(t, a, b, Options{KeyColumns: []string{"user_id"}})
	assert.True(t, res.Equal, res.Diff)
	assert.Empty(t, res.Diff)

	res = compareBoth(t, a, b, Options{})
	assert.True(t, res.Equal, res.Diff)
}

func TestCompare_OrderingSensitive(t *testing.T) {
	a := tu.Table(t, tu.Ints("x", 1, 2))
	b := tu.Table(t, tu.Ints("x", 2, 1))
	res := compareBoth(t, a, b, Options{OrderingSensitive: true})
	assert.False(t, res.Equal)
	assert.Equal(t, 2, res.Mismatches)
	assert.Contains(t, res.Diff, `row 0 column "x"`)
}

func TestCompare_Tolerance(t *testing.T) {
	tests := []struct {
		name  string
		a, b  float64
		opts  Options
		equal bool
	}{
		{"summation order noise", 0.30000000000000004, 0.3, Options{}, true},
		{"beyond default", 1.0, 1.001, Options{}, false},
		{"absolute", 1.0, 1.001, Options{AbsTolerance: 0.01}, true},
		{"relative on large values", 1e12, 1e12 + 1, Options{RelTolerance: 1e-6}, true},
		{"nan equals nan", math.NaN(), math.NaN(), Options{}, true},
		{"nan differs from number", math.NaN(), 1, Options{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := compareBoth(t, tu.Table(t, tu.Floats("v", tt.a)), tu.Table(t, tu.Floats("v", tt.b)), tt.opts)
			assert.Equal(t, tt.equal, res.Equal, res.Diff)
		})
	}
}

func TestCompare_IntAndFloatAreNumeric(t *testing.T) {
	res := compareBoth(t, tu.Table(t, tu.Ints("v", 3)), tu.Table(t, tu.Floats("v", 3)), Options{})
	assert.True(t, res.Equal, res.Diff)
}

func TestCompare_Nulls(t *testing.T) {
	a := tu.Table(t, tu.Values("v", table.TypeInt, table.Null{}, table.Int(1)))
	b := tu.Table(t, tu.Values("v", table.TypeInt, table.Int(1), table.Null{}))
	assert.True(t, compareBoth(t, a, b, Options{}).Equal)

	c := tu.Table(t, tu.Values("v", table.TypeInt, table.Int(1), table.Int(0)))
	assert.False(t, compareBoth(t, a, c, Options{}).Equal)
}

func TestCompare_UnicodeNormalisation(t *testing.T) {
	composed := tu.Table(t, tu.Strs("city", "Malm\u00f6"))
	decomposed := tu.Table(t, tu.Strs("city", "Malmo\u0308"))
	assert.True(t, compareBoth(t, composed, decomposed, Options{}).Equal)
}

func TestCompare_ColumnDelta(t *testing.T) {
	a := tu.Table(t, tu.Ints("x", 1), tu.Ints("only_a", 1))
	b := tu.Table(t, tu.Ints("x", 1), tu.Ints("only_b", 1), tu.Ints("also_b", 1))
	res := compareBoth(t, a, b, Options{})
	assert.False(t, res.Equal)
	assert.Equal(t, []string{"only_a"}, res.OnlyLeft)
	assert.Equal(t, []string{"also_b", "only_b"}, res.OnlyRight)
	assert.Equal(t, 3, res.Mismatches)
	assert.Contains(t, res.Diff, "columns differ")
}

func TestCompare_RowDelta(t *testing.T) {
	a := tu.Table(t, tu.Ints("x", 1, 2, 3))
	b := tu.Table(t, tu.Ints("x", 1))
	res, err := Compare(a, b, Options{})
	require.NoError(t, err)
	assert.False(t, res.Equal)
	assert.Equal(t, 2, res.RowDelta)
	assert.Equal(t, "row count differs: left 3, right 1 (delta +2)", res.Diff)

	res, err = Compare(b, a, Options{})
	require.NoError(t, err)
	assert.Equal(t, -2, res.RowDelta)
	assert.Equal(t, 2, res.Mismatches)
}

func TestCompare_DiffIsCapped(t *testing.T) {
	a := tu.Table(t, tu.Ints("x", 1, 2, 3, 4))
	b := tu.Table(t, tu.Ints("x", 5, 6, 7, 8))
	res := compareBoth(t, a, b, Options{MaxDiffs: 2})
	assert.Equal(t, 4, res.Mismatches)
	assert.Contains(t, res.Diff, "... and 2 more mismatched cells")
}

func TestCompare_MissingKeyColumn(t *testing.T) {
	a := tu.Table(t, tu.Ints("x", 1))
	b := tu.Table(t, tu.Ints("y", 1))
	_, err := Compare(a, b, Options{KeyColumns: []string{"y"}})
	require.Error(t, err)
	assert.True(t, bencherr.IsInvalidConfig(err))
	assert.Contains(t, err.Error(), "left table")
}

func TestCompare_NegativeTolerance(t *testing.T) {
	a := tu.Table(t, tu.Ints("x", 1))
	_, err := Compare(a, a, Options{AbsTolerance: -1})
	assert.True(t, bencherr.IsInvalidConfig(err))
}

func TestCompare_KeyOrderWithDuplicateKeys(t *testing.T) {
	a := tu.Table(t, tu.Ints("k", 1, 1, 2), tu.Strs("v", "b", "a", "c"))
	b := tu.Table(t, tu.Ints("k", 2, 1, 1), tu.Strs("v", "c", "a", "b"))
	res := compareBoth(t, a, b, Options{KeyColumns: []string{"k"}})
	assert.True(t, res.Equal, res.Diff)
}

func TestCompare_FloatNoiseDoesNotReorderRows(t *testing.T) {
	// mean_price sorts before user by name; the noisy means must not decide
	// row order when no key columns are given
	a := tu.Table(t,
		tu.Floats("mean_price", 0.30000000000000004, 0.3),
		tu.Strs("user", "u1", "u2"),
	)
	b := tu.Table(t,
		tu.Floats("mean_price", 0.3, 0.30000000000000004),
		tu.Strs("user", "u1", "u2"),
	)

	tests := []struct {
		name string
		opts Options
	}{
		{"no keys", Options{}},
		{"string key", Options{KeyColumns: []string{"user"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := compareBoth(t, a, b, tt.opts)
			assert.True(t, res.Equal, res.Diff)
		})
	}
}
