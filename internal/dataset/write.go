package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/ng-nicholas/tabbench/internal/table"
)

// Write serialises t in the given format. Reading the output back with the
// same format reproduces t when t came from Read.
func Write(w io.Writer, t *table.Table, f Format) error {
	cw := csv.NewWriter(w)
	cw.Comma = f.delimiter()

	if f.Header {
		if err := writeRecord(w, cw, t.Names()); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	cols := t.Columns()
	record := make([]string, len(cols))
	for r := 0; r < t.NumRows(); r++ {
		for c, col := range cols {
			record[c] = FormatCell(col.Value(r))
		}
		if err := writeRecord(w, cw, record); err != nil {
			return fmt.Errorf("write row %d: %w", r, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// writeRecord writes one record. csv.Writer renders a lone empty field as a
// blank line, which csv.Reader skips, so that case is written as "" directly.
func writeRecord(w io.Writer, cw *csv.Writer, record []string) error {
	if len(record) != 1 || record[0] != "" {
		return cw.Write(record)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	_, err := io.WriteString(w, `""`+lineEnd(cw))
	return err
}

func lineEnd(cw *csv.Writer) string {
	if cw.UseCRLF {
		return "\r\n"
	}
	return "\n"
}

// Save writes t to the file at path, replacing it.
func Save(path string, t *table.Table, f Format) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := file.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()
	return Write(file, t, f)
}

// FormatCell renders a cell as text. Null is the empty string. Integral
// floats keep a ".0" so they are not re-inferred as ints.
func FormatCell(v table.Value) string {
	switch x := v.(type) {
	case table.Null, nil:
		return ""
	case table.Float:
		f := float64(x)
		s := strconv.FormatFloat(f, 'g', -1, 64)
		if math.IsInf(f, 0) || math.IsNaN(f) || strings.ContainsAny(s, ".e") {
			return s
		}
		return s + ".0"
	default:
		return v.String()
	}
}
