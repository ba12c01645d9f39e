package table

import (
	"fmt"
	"strconv"
	"time"
)

// DateLayout is the only accepted textual form of a Date.
const DateLayout = "2006-01-02"

// Type is the semantic type of a column.
type Type int

const (
	TypeString Type = iota
	TypeInt
	TypeFloat
	TypeDate
)

var typeNames = [...]string{
	TypeString: "string",
	TypeInt:    "int",
	TypeFloat:  "float",
	TypeDate:   "date",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// Numeric reports whether values of the type are Int or Float.
func (t Type) Numeric() bool {
	return t == TypeInt || t == TypeFloat
}

// ParseType converts a type name ("string", "int", "float", "date").
func ParseType(s string) (Type, error) {
	for i, name := range typeNames {
		if name == s {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("unknown column type %q", s)
}

// Value is a sealed interface over the scalar cell types.
// Only Null, Str, Int, Float and Date implement it.
type Value interface {
	cellValue()
	String() string
}

// Null is a missing cell. It is valid in a column of any type.
type Null struct{}

func (Null) cellValue()     {}
func (Null) String() string { return "NA" }

// Str is a string cell.
type Str string

func (Str) cellValue()       {}
func (s Str) String() string { return string(s) }

// Int is a 64-bit integer cell.
type Int int64

func (Int) cellValue()       {}
func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

// Float is a 64-bit floating-point cell.
type Float float64

func (Float) cellValue()       {}
func (f Float) String() string { return strconv.FormatFloat(float64(f), 'g', -1, 64) }

// Date is a calendar day, stored as days since 1970-01-01.
type Date int64

func (Date) cellValue() {}

func (d Date) String() string {
	return d.Time().Format(DateLayout)
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	return time.Unix(int64(d)*86400, 0).UTC()
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) Date {
	y, m, day := t.UTC().Date()
	midnight := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return Date(midnight.Unix() / 86400)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return 0, err
	}
	return DateOf(t), nil
}

// IsNull reports whether v is a missing cell.
func IsNull(v Value) bool {
	_, ok := v.(Null)
	return ok || v == nil
}

// AsFloat returns the numeric value of an Int or Float cell.
func AsFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Float:
		return float64(n), true
	default:
		return 0, false
	}
}

// Accepts reports whether v may be stored in a column of type t.
func (t Type) Accepts(v Value) bool {
	switch v.(type) {
	case Null:
		return true
	case Str:
		return t == TypeString
	case Int:
		return t == TypeInt
	case Float:
		return t == TypeFloat
	case Date:
		return t == TypeDate
	default:
		return false
	}
}

// Coerce converts an Int cell to Float for a float column. Other values are
// returned unchanged.
func (t Type) Coerce(v Value) Value {
	if i, ok := v.(Int); ok && t == TypeFloat {
		return Float(float64(i))
	}
	return v
}

// Promote returns the common type of two column types, or false if they
// cannot share a column. Int and Float promote to Float.
func Promote(a, b Type) (Type, bool) {
	if a == b {
		return a, true
	}
	if a.Numeric() && b.Numeric() {
		return TypeFloat, true
	}
	return 0, false
}
