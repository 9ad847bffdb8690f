package persistence

import (
	"context"

	gerrors "github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/aquanorte/fieldops/modules/fieldops/domain/entities/lineitem"
	"github.com/aquanorte/fieldops/pkg/composables"
)

type LineItemRepository struct{}

func NewLineItemRepository() lineitem.Repository {
	return &LineItemRepository{}
}

// InsertIgnore never double-charges: an existing (work order, item) pair is
// left untouched by the ON CONFLICT clause.
func (r *LineItemRepository) InsertIgnore(ctx context.Context, items []lineitem.LineItem) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	for _, item := range items {
		_, err := tx.Exec(ctx, `
		INSERT INTO work_order_items (work_order_id, item_id, quantity, vehicle_tag)
		VALUES ($1, $2, $3::numeric, $4)
		ON CONFLICT (work_order_id, item_id) DO NOTHING
		`, item.WorkOrderID, item.ItemID, item.Quantity.String(), textOrNil(item.VehicleTag))
		if err != nil {
			return gerrors.Wrap(err, "failed to insert work order item")
		}
	}
	return nil
}

func (r *LineItemRepository) ListByWorkOrder(ctx context.Context, workOrderID int64) ([]lineitem.LineItem, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
	SELECT work_order_id, item_id, quantity::text, COALESCE(vehicle_tag, '')
	FROM work_order_items
	WHERE work_order_id = $1
	ORDER BY item_id
	`, workOrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []lineitem.LineItem
	for rows.Next() {
		var item lineitem.LineItem
		var quantity string
		if err := rows.Scan(&item.WorkOrderID, &item.ItemID, &quantity, &item.VehicleTag); err != nil {
			return nil, err
		}
		item.Quantity, err = decimal.NewFromString(quantity)
		if err != nil {
			return nil, gerrors.Wrapf(err, "invalid stored quantity %q", quantity)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
