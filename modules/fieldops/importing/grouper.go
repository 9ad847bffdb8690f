package importing

import (
	"fmt"
	"strings"
)

// SyntheticKeyPrefix marks group keys derived from the address instead of an
// external code ("additional" work).
const SyntheticKeyPrefix = "ADIC::"

// Group is one logical work order assembled from raw rows. Header is the
// first row seen for the key; Rows keeps file order.
type Group struct {
	Key       string
	Synthetic bool
	Header    Row
	Rows      []Row
}

// SampleRows renders at most n rows for diagnostics on group failure.
func (g *Group) SampleRows(n int) []string {
	if n > len(g.Rows) {
		n = len(g.Rows)
	}
	out := make([]string, 0, n)
	for _, r := range g.Rows[:n] {
		out = append(out, fmt.Sprintf(
			"line %d: code=%q vehicle=%q desc=%q qty=%s",
			r.Line, r.Code, r.VehicleCode, r.Description, r.Quantity,
		))
	}
	return out
}

func addressKey(r Row) string {
	return strings.ToUpper(strings.TrimSpace(r.Street)) + "|" +
		strings.TrimSpace(r.Number) + "|" +
		strings.ToUpper(strings.TrimSpace(r.Commune))
}

func hasAddress(r Row) bool {
	return strings.TrimSpace(r.Street) != "" || strings.TrimSpace(r.Commune) != ""
}

// BuildGroups partitions rows into logical work-order groups.
//
// Pass 1 indexes each address to the first explicit code seen there, so a
// code logged on one line propagates to sibling lines at the same address
// that omit it. Pass 2 assigns every usable row a key: the indexed code, the
// row's own code, or a synthetic address key for additional work. Group
// order is first-seen order, which keeps the run deterministic.
func BuildGroups(rows []Row) []*Group {
	codeByAddress := make(map[string]string)
	for _, r := range rows {
		code := strings.TrimSpace(r.Code)
		if code == "" || !hasAddress(r) {
			continue
		}
		addr := addressKey(r)
		if _, ok := codeByAddress[addr]; !ok {
			codeByAddress[addr] = code
		}
	}

	byKey := make(map[string]*Group)
	var ordered []*Group
	for _, r := range rows {
		if strings.TrimSpace(r.VehicleCode) == "" && strings.TrimSpace(r.Description) == "" {
			continue
		}

		var key string
		synthetic := false
		if code, ok := codeByAddress[addressKey(r)]; ok && hasAddress(r) {
			key = code
		} else if code := strings.TrimSpace(r.Code); code != "" {
			key = code
		} else {
			key = SyntheticKeyPrefix + addressKey(r)
			synthetic = true
		}

		g, ok := byKey[key]
		if !ok {
			g = &Group{Key: key, Synthetic: synthetic, Header: r}
			byKey[key] = g
			ordered = append(ordered, g)
		}
		g.Rows = append(g.Rows, r)
	}
	return ordered
}
