package equiv

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ng-nicholas/tabbench/internal/table"
	tu "github.com/ng-nicholas/tabbench/internal/testutil"
)

func TestFingerprint_IgnoresOrder(t *testing.T) {
	a := tu.Table(t,
		tu.Ints("user_id", 1, 2, 3),
		tu.Strs("channel", "web", "email", "phone"),
	)
	b := tu.Table(t,
		tu.Strs("channel", "phone", "web", "email"),
		tu.Ints("user_id", 3, 1, 2),
	)

	fa := Fingerprint(a)
	assert.Len(t, fa, 64)
	assert.Equal(t, fa, Fingerprint(b))
}

func TestFingerprint_Differs(t *testing.T) {
	base := tu.Table(t, tu.Ints("k", 1, 2), tu.Floats("v", 1, 2))

	tests := []struct {
		name  string
		other *table.Table
	}{
		{"changed cell", tu.Table(t, tu.Ints("k", 1, 2), tu.Floats("v", 1, 2.5))},
		{"renamed column", tu.Table(t, tu.Ints("key", 1, 2), tu.Floats("v", 1, 2))},
		{"extra row", tu.Table(t, tu.Ints("k", 1, 2, 2), tu.Floats("v", 1, 2, 2))},
		{"int instead of float", tu.Table(t, tu.Ints("k", 1, 2), tu.Values("v", table.TypeInt, table.Int(1), table.Int(2)))},
		{"null cell", tu.Table(t, tu.Ints("k", 1, 2), tu.Values("v", table.TypeFloat, table.Float(1), table.Null{}))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, Fingerprint(base), Fingerprint(tt.other))
		})
	}
}

func TestFingerprint_NormalisesStrings(t *testing.T) {
	composed := tu.Table(t, tu.Strs("name", "K\u00f6ln"))
	decomposed := tu.Table(t, tu.Strs("name", "Ko\u0308ln"))
	assert.Equal(t, Fingerprint(composed), Fingerprint(decomposed))
}
