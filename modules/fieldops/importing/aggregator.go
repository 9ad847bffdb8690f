package importing

import (
	"context"
	"fmt"
	"strings"

	gerrors "github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ItemLookup resolves a catalog item id from a free-text description,
// accent- and case-insensitively. A nil id with nil error means the
// description is not in the catalog.
type ItemLookup interface {
	IDByDescription(ctx context.Context, description string) (*int64, error)
}

// AggregatedItem is one billable line after duplicate rows are summed.
type AggregatedItem struct {
	ItemID     int64
	Quantity   decimal.Decimal
	VehicleTag string
}

// AggregateItems validates and aggregates the group's line items.
//
// Debris rows are lenient: an empty description simply contributes no item,
// a description off the whitelist or a zero quantity is a warning and the
// line is skipped. Every other non-empty description must resolve in the
// catalog; an unresolved one fails the whole group. Quantities of duplicate
// items are summed; output keeps first-appearance order.
func AggregateItems(ctx context.Context, g *Group, whitelist *DebrisWhitelist, items ItemLookup) ([]AggregatedItem, []string, error) {
	totals := make(map[int64]*AggregatedItem)
	var order []int64
	var warnings []string

	for _, r := range g.Rows {
		desc := strings.TrimSpace(r.Description)

		if ClassifyVehicle(r.VehicleCode) == RoleDebris {
			if desc == "" {
				// The trip itself is billable at the order level.
				continue
			}
			if !whitelist.Allows(desc) {
				warnings = append(warnings, fmt.Sprintf(
					"group %s line %d: debris item %q is not on the allowed list, line skipped", g.Key, r.Line, desc))
				continue
			}
			if r.Quantity.IsZero() {
				warnings = append(warnings, fmt.Sprintf(
					"group %s line %d: debris item %q has no valid quantity, line skipped", g.Key, r.Line, desc))
				continue
			}
		} else if desc == "" {
			// A vehicle-only line carries resource facts but no item.
			continue
		}

		id, err := items.IDByDescription(ctx, desc)
		if err != nil {
			return nil, warnings, err
		}
		if id == nil {
			return nil, warnings, gerrors.Errorf("unknown catalog item %q (line %d)", desc, r.Line)
		}

		if agg, ok := totals[*id]; ok {
			agg.Quantity = agg.Quantity.Add(r.Quantity)
			continue
		}
		totals[*id] = &AggregatedItem{
			ItemID:     *id,
			Quantity:   r.Quantity,
			VehicleTag: strings.ToUpper(strings.TrimSpace(r.VehicleCode)),
		}
		order = append(order, *id)
	}

	out := make([]AggregatedItem, 0, len(order))
	for _, id := range order {
		out = append(out, *totals[id])
	}
	return out, warnings, nil
}
