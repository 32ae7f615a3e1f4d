package models

import (
	"strconv"
)

// ─── shared formatting helpers (package-private) ────────────────────────

// ftoa formats v with prec decimals; prec < 0 uses the shortest exact form.
func ftoa(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// CSVRowWriter is implemented by every model that can be exported as CSV.
type CSVRowWriter interface {
	CSVHeader() []string
	CSVRow() []string
}
