package lineitem

import (
	"context"

	"github.com/shopspring/decimal"
)

// LineItem is a billable line of a work order. At most one row exists per
// (work order, catalog item); duplicate contributions are summed before
// persistence and the insert is a no-op on conflict.
type LineItem struct {
	WorkOrderID int64
	ItemID      int64
	Quantity    decimal.Decimal
	VehicleTag  string
}

type Repository interface {
	// InsertIgnore inserts the given items, silently skipping any
	// (work order, item) pair that already exists.
	InsertIgnore(ctx context.Context, items []LineItem) error
	ListByWorkOrder(ctx context.Context, workOrderID int64) ([]LineItem, error)
}
