package table

import (
	"cmp"
	"math"
	"strconv"
	"strings"
)

// kindRank orders values of different kinds: Null first, then numbers,
// strings and dates.
func kindRank(v Value) int {
	switch v.(type) {
	case Null, nil:
		return 0
	case Int, Float:
		return 1
	case Str:
		return 2
	case Date:
		return 3
	default:
		return 4
	}
}

// Compare defines the total order used for sorting and grouping. Null sorts
// first, Int and Float compare numerically with NaN after every number,
// strings compare bytewise and dates chronologically.
func Compare(a, b Value) int {
	ra, rb := kindRank(a), kindRank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch x := a.(type) {
	case Int:
		if y, ok := b.(Int); ok {
			return cmp.Compare(x, y)
		}
	case Str:
		return strings.Compare(string(x), string(b.(Str)))
	case Date:
		return cmp.Compare(x, b.(Date))
	case Null, nil:
		return 0
	}
	fa, _ := AsFloat(a)
	fb, _ := AsFloat(b)
	// cmp.Compare orders NaN before numbers; NaN sorts last here to match SQLite.
	na, nb := math.IsNaN(fa), math.IsNaN(fb)
	switch {
	case na && nb:
		return 0
	case na:
		return 1
	case nb:
		return -1
	}
	return cmp.Compare(fa, fb)
}

// CompareRows compares two rows cell by cell.
func CompareRows(a, b []Value) int {
	for i := range min(len(a), len(b)) {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a), len(b))
}

// AppendKey appends an unambiguous encoding of v to buf, suitable for use as
// a map key when grouping. Equal values of the same kind encode identically;
// Int and Float never share an encoding.
func AppendKey(buf []byte, v Value) []byte {
	switch x := v.(type) {
	case Null, nil:
		return append(buf, 'n')
	case Int:
		buf = append(buf, 'i')
		buf = strconv.AppendInt(buf, int64(x), 10)
	case Float:
		f := float64(x)
		if f == 0 {
			f = 0 // fold -0
		}
		buf = append(buf, 'f')
		buf = strconv.AppendFloat(buf, f, 'g', -1, 64)
	case Date:
		buf = append(buf, 'd')
		buf = strconv.AppendInt(buf, int64(x), 10)
	case Str:
		buf = append(buf, 's')
		buf = strconv.AppendInt(buf, int64(len(x)), 10)
		buf = append(buf, ':')
		buf = append(buf, x...)
	}
	return append(buf, 0)
}

// RowKey encodes the cells of the given columns at row i.
func RowKey(buf []byte, cols []*Column, i int) []byte {
	for _, c := range cols {
		buf = AppendKey(buf, c.values[i])
	}
	return buf
}
