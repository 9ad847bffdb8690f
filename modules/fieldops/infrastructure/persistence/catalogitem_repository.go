package persistence

import (
	"context"
	"errors"

	gerrors "github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/aquanorte/fieldops/modules/fieldops/domain/entities/catalogitem"
	"github.com/aquanorte/fieldops/pkg/composables"
)

type CatalogItemRepository struct{}

func NewCatalogItemRepository() catalogitem.Repository {
	return &CatalogItemRepository{}
}

// GetByDescription resolves accent- and case-insensitively against the
// normalized column maintained on insert.
func (r *CatalogItemRepository) GetByDescription(ctx context.Context, description string) (*catalogitem.CatalogItem, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	var item catalogitem.CatalogItem
	err = tx.QueryRow(ctx, `
	SELECT id, description
	FROM catalog_items
	WHERE normalized_description = $1
	`, catalogitem.NormalizeDescription(description)).Scan(&item.ID, &item.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalogitem.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *CatalogItemRepository) GetAll(ctx context.Context) ([]*catalogitem.CatalogItem, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
	SELECT id, description
	FROM catalog_items
	ORDER BY description
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*catalogitem.CatalogItem
	for rows.Next() {
		var item catalogitem.CatalogItem
		if err := rows.Scan(&item.ID, &item.Description); err != nil {
			return nil, err
		}
		out = append(out, &item)
	}
	return out, rows.Err()
}

func (r *CatalogItemRepository) Create(ctx context.Context, item *catalogitem.CatalogItem) (*catalogitem.CatalogItem, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	created := *item
	err = tx.QueryRow(ctx, `
	INSERT INTO catalog_items (description, normalized_description)
	VALUES ($1, $2)
	RETURNING id
	`, created.Description, catalogitem.NormalizeDescription(created.Description)).Scan(&created.ID)
	if err != nil {
		return nil, gerrors.Wrap(err, "failed to create catalog item")
	}
	return &created, nil
}
