package equiv

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"

	"github.com/ng-nicholas/tabbench/internal/table"
)

// fingerprintDomain prefixes every fingerprint so the digest cannot be
// confused with another SHA-256 over the same bytes. The version suffix
// changes whenever the encoding does.
const fingerprintDomain = "tabbench/table/v1"

// Fingerprint returns a hex SHA-256 digest of t that does not depend on
// column or row order. Strings are NFC-normalised first.
//
// Cells are hashed exactly: tables that Compare accepts only within a
// tolerance, or that hold Int where the other holds Float, get different
// fingerprints.
func Fingerprint(t *table.Table) string {
	names := t.Names()
	slices.Sort(names)
	rows := materialize(t, names)
	sortRows(rows, exactPositions(names, t))

	h := sha256.New()
	h.Write([]byte(fingerprintDomain))
	h.Write([]byte{0x00})

	var buf []byte
	for _, n := range names {
		c, _ := t.Column(n)
		buf = table.AppendKey(buf, table.Str(n))
		buf = table.AppendKey(buf, table.Str(c.Type().String()))
	}
	buf = append(buf, '\n')
	h.Write(buf)

	for _, row := range rows {
		buf = buf[:0]
		for _, v := range row {
			buf = table.AppendKey(buf, v)
		}
		buf = append(buf, '\n')
		h.Write(buf)
	}
	return hex.EncodeToString(h.Sum(nil))
}
