package importing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Row is one normalized spreadsheet record. All downstream components work
// on this fixed schema instead of raw string-keyed cells.
type Row struct {
	Line        int // 1-based position in the source file, for diagnostics
	Code        string
	VehicleCode string
	ExecutedAt  *time.Time
	Street      string
	Number      string
	Commune     string
	Description string
	Quantity    decimal.Decimal
	Additional  bool
}

// ParseQuantity parses a comma-decimal quantity ("1,5" -> 1.5). Anything
// malformed yields zero.
func ParseQuantity(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

var dateLayouts = []string{
	"2-1-2006",
	"02-01-2006",
	"2/1/2006",
	"02/01/2006",
	"2-1-06",
	"2/1/06",
}

// ParseDate parses a day-month-year date. Malformed input yields nil, never
// an error.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func parseFlag(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SI", "S", "X", "1", "TRUE", "VERDADERO":
		return true
	}
	return false
}
