package persistence

import (
	"context"
	"errors"
	"strings"

	gerrors "github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/aquanorte/fieldops/modules/fieldops/domain/entities/vehicle"
	"github.com/aquanorte/fieldops/pkg/composables"
)

type VehicleRepository struct{}

func NewVehicleRepository() vehicle.Repository {
	return &VehicleRepository{}
}

func (r *VehicleRepository) GetByCode(ctx context.Context, code string) (*vehicle.Vehicle, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	var v vehicle.Vehicle
	err = tx.QueryRow(ctx, `
	SELECT id, code, COALESCE(description, '')
	FROM vehicles
	WHERE upper(btrim(code)) = $1
	`, strings.ToUpper(strings.TrimSpace(code))).Scan(&v.ID, &v.Code, &v.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vehicle.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (r *VehicleRepository) GetAll(ctx context.Context) ([]*vehicle.Vehicle, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
	SELECT id, code, COALESCE(description, '')
	FROM vehicles
	ORDER BY code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*vehicle.Vehicle
	for rows.Next() {
		var v vehicle.Vehicle
		if err := rows.Scan(&v.ID, &v.Code, &v.Description); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

func (r *VehicleRepository) Create(ctx context.Context, v *vehicle.Vehicle) (*vehicle.Vehicle, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	created := *v
	created.Code = strings.ToUpper(strings.TrimSpace(v.Code))
	err = tx.QueryRow(ctx, `
	INSERT INTO vehicles (code, description)
	VALUES ($1, $2)
	RETURNING id
	`, created.Code, textOrNil(created.Description)).Scan(&created.ID)
	if err != nil {
		return nil, gerrors.Wrap(err, "failed to create vehicle")
	}
	return &created, nil
}
