// Package dataset reads and writes delimited text files as tables and
// synthesises benchmark datasets.
//
// Files are read once, before any timed region. A malformed file fails the
// load with a bencherr.LoadError naming the offending line and column.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ng-nicholas/tabbench/internal/bencherr"
	"github.com/ng-nicholas/tabbench/internal/table"
)

// Format describes the layout of a delimited file.
type Format struct {
	// Delimiter separates fields. Zero means ','.
	Delimiter rune

	// Header reports whether the first record names the columns. Without
	// a header columns are named V1..Vn.
	Header bool

	// Types pins column types by name. Unlisted columns are inferred.
	Types map[string]table.Type
}

// DefaultFormat is a comma-separated file with a header row.
func DefaultFormat() Format {
	return Format{Delimiter: ',', Header: true}
}

func (f Format) delimiter() rune {
	if f.Delimiter == 0 {
		return ','
	}
	return f.Delimiter
}

// Load reads the delimited file at path into a table.
func Load(path string, f Format) (*table.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &bencherr.LoadError{Path: path, Reason: "cannot open file", Err: err}
	}
	defer file.Close()

	return Read(path, file, f)
}

// Read parses delimited text from r. name is used in error messages.
func Read(name string, r io.Reader, f Format) (*table.Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = f.delimiter()
	reader.FieldsPerRecord = -1 // checked below so the error can name the line

	var (
		names   []string
		columns [][]string
		lines   []int
	)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			le := &bencherr.LoadError{Path: name, Reason: "malformed record", Err: err}
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				le.Line = pe.Line
				le.Err = pe.Err
			}
			return nil, le
		}
		line, _ := reader.FieldPos(0)

		if names == nil {
			names, err = columnNames(name, line, record, f.Header)
			if err != nil {
				return nil, err
			}
			columns = make([][]string, len(names))
			if f.Header {
				continue
			}
		}

		if len(record) != len(names) {
			return nil, &bencherr.LoadError{
				Path:   name,
				Line:   line,
				Reason: fmt.Sprintf("record has %d fields, expected %d", len(record), len(names)),
			}
		}
		for i, cell := range record {
			columns[i] = append(columns[i], cell)
		}
		lines = append(lines, line)
	}

	if names == nil {
		return nil, &bencherr.LoadError{Path: name, Reason: "file is empty"}
	}

	for hinted := range f.Types {
		if !contains(names, hinted) {
			return nil, &bencherr.LoadError{Path: name, Column: hinted, Reason: "type hint names a column that is not in the file"}
		}
	}

	cols := make([]*table.Column, len(names))
	for i, colName := range names {
		typ, hinted := f.Types[colName]
		if !hinted {
			typ = InferType(columns[i])
		}
		values, err := parseColumn(name, colName, typ, columns[i], lines)
		if err != nil {
			return nil, err
		}
		cols[i] = table.NewColumn(colName, typ, values)
	}

	t, err := table.New(cols...)
	if err != nil {
		return nil, &bencherr.LoadError{Path: name, Reason: "invalid table", Err: err}
	}
	return t, nil
}

func columnNames(path string, line int, record []string, header bool) ([]string, error) {
	names := make([]string, len(record))
	seen := make(map[string]bool, len(record))
	for i, field := range record {
		n := fmt.Sprintf("V%d", i+1)
		if header && field != "" {
			n = field
		}
		if seen[n] {
			return nil, &bencherr.LoadError{Path: path, Line: line, Column: n, Reason: "duplicate column name in header"}
		}
		seen[n] = true
		names[i] = n
	}
	return names, nil
}

// InferType picks the narrowest type every non-empty cell parses as:
// int, then float, then date, else string. A column with no non-empty
// cells is a string column.
func InferType(cells []string) table.Type {
	isInt, isFloat, isDate := true, true, true
	nonEmpty := 0
	for _, s := range cells {
		if s == "" {
			continue
		}
		nonEmpty++
		if isInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat && !isInt {
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				isFloat = false
			}
		}
		if isDate {
			if _, err := table.ParseDate(s); err != nil {
				isDate = false
			}
		}
		if !isInt && !isFloat && !isDate {
			return table.TypeString
		}
	}
	switch {
	case nonEmpty == 0:
		return table.TypeString
	case isInt:
		return table.TypeInt
	case isFloat:
		return table.TypeFloat
	case isDate:
		return table.TypeDate
	default:
		return table.TypeString
	}
}

func parseColumn(path, name string, typ table.Type, cells []string, lines []int) ([]table.Value, error) {
	values := make([]table.Value, len(cells))
	for i, s := range cells {
		v, err := ParseCell(typ, s)
		if err != nil {
			return nil, &bencherr.LoadError{
				Path:   path,
				Line:   lines[i],
				Column: name,
				Value:  s,
				Reason: fmt.Sprintf("not a valid %s", typ),
			}
		}
		values[i] = v
	}
	return values, nil
}

// ParseCell converts raw text to a cell of the given type. The empty string
// is Null in every column type except string.
func ParseCell(typ table.Type, s string) (table.Value, error) {
	if typ == table.TypeString {
		return table.Str(s), nil
	}
	if s == "" {
		return table.Null{}, nil
	}
	switch typ {
	case table.TypeInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, err
		}
		return table.Int(n), nil
	case table.TypeFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		return table.Float(f), nil
	case table.TypeDate:
		d, err := table.ParseDate(s)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unsupported type %s", typ)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
