package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gerrors "github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/aquanorte/fieldops/modules/fieldops/domain/aggregates/workorder"
	"github.com/aquanorte/fieldops/pkg/composables"
)

const workOrderColumns = `
	id,
	code,
	street,
	number,
	commune,
	hydraulic_vehicle_id,
	civil_vehicle_id,
	debris_vehicle_id,
	started_at,
	civil_work_at,
	finished_at,
	received_at,
	status,
	observation,
	additional,
	dismissed,
	created_at,
	updated_at`

type WorkOrderRepository struct{}

func NewWorkOrderRepository() workorder.Repository {
	return &WorkOrderRepository{}
}

func (r *WorkOrderRepository) GetByID(ctx context.Context, id int64) (*workorder.WorkOrder, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
	SELECT`+workOrderColumns+`
	FROM work_orders
	WHERE id = $1
	`, id)

	order, err := scanWorkOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, workorder.ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

func (r *WorkOrderRepository) GetPaginated(ctx context.Context, params *workorder.FindParams) ([]*workorder.WorkOrder, int64, error) {
	if params == nil {
		params = &workorder.FindParams{}
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, 0, err
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	q := "%" + strings.TrimSpace(params.Q) + "%"
	rows, err := tx.Query(ctx, `
	SELECT`+workOrderColumns+`
	FROM work_orders
	WHERE NOT dismissed
	  AND ($1 = '%%' OR code ILIKE $1 OR street ILIKE $1 OR commune ILIKE $1)
	ORDER BY id DESC
	OFFSET $2 LIMIT $3
	`, q, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]*workorder.WorkOrder, 0, limit)
	for rows.Next() {
		order, err := scanWorkOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := tx.QueryRow(ctx, `
	SELECT COUNT(*)
	FROM work_orders
	WHERE NOT dismissed
	  AND ($1 = '%%' OR code ILIKE $1 OR street ILIKE $1 OR commune ILIKE $1)
	`, q).Scan(&total); err != nil {
		return nil, 0, err
	}

	return out, total, nil
}

func (r *WorkOrderRepository) Count(ctx context.Context) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}

	var total int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM work_orders WHERE NOT dismissed`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *WorkOrderRepository) FindByCode(ctx context.Context, code string) (*workorder.WorkOrder, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
	SELECT`+workOrderColumns+`
	FROM work_orders
	WHERE NOT dismissed
	  AND upper(btrim(code)) = upper(btrim($1))
	`, code)

	order, err := scanWorkOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, workorder.ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

// FindByLocation matches the heuristic path for additional work: same
// normalized address and the best-available existing date within the window.
// Rows are ordered by id so "first match wins" stays deterministic.
func (r *WorkOrderRepository) FindByLocation(ctx context.Context, params workorder.FindByLocationParams) (*workorder.WorkOrder, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
	SELECT`+workOrderColumns+`
	FROM work_orders
	WHERE NOT dismissed
	  AND upper(btrim(commune)) = upper(btrim($1))
	  AND upper(btrim(street)) = upper(btrim($2))
	  AND btrim(number) = btrim($3)
	  AND COALESCE(started_at, civil_work_at, finished_at, received_at) IS NOT NULL
	  AND abs(EXTRACT(EPOCH FROM (COALESCE(started_at, civil_work_at, finished_at, received_at) - $4::timestamptz))) <= $5::bigint * 86400
	ORDER BY id
	LIMIT 1
	`, params.Commune, params.Street, params.Number, params.Around, params.WindowDays)

	order, err := scanWorkOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, workorder.ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

func (r *WorkOrderRepository) Create(ctx context.Context, order *workorder.WorkOrder) (*workorder.WorkOrder, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	created := *order
	if created.Status == "" {
		created.Status = workorder.StatusCreated
	}

	err = tx.QueryRow(ctx, `
	INSERT INTO work_orders (
		code, street, number, commune,
		hydraulic_vehicle_id, civil_vehicle_id, debris_vehicle_id,
		started_at, civil_work_at, finished_at, received_at,
		status, observation, additional, dismissed
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	RETURNING id, created_at, updated_at
	`,
		textOrNil(strings.TrimSpace(created.Code)),
		created.Street,
		created.Number,
		created.Commune,
		created.HydraulicVehicleID,
		created.CivilVehicleID,
		created.DebrisVehicleID,
		created.StartedAt,
		created.CivilWorkAt,
		created.FinishedAt,
		created.ReceivedAt,
		string(created.Status),
		created.Observation,
		created.Additional,
		created.Dismissed,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, gerrors.Wrap(err, "failed to create work order")
	}

	return &created, nil
}

func (r *WorkOrderRepository) Update(ctx context.Context, id int64, patch workorder.UpdatePatch) error {
	if patch.IsZero() {
		return nil
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	sets := make([]string, 0, 10)
	args := make([]any, 0, 11)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.Observation != nil {
		add("observation", *patch.Observation)
	}
	if patch.HydraulicVehicleID != nil {
		add("hydraulic_vehicle_id", *patch.HydraulicVehicleID)
	}
	if patch.CivilVehicleID != nil {
		add("civil_vehicle_id", *patch.CivilVehicleID)
	}
	if patch.DebrisVehicleID != nil {
		add("debris_vehicle_id", *patch.DebrisVehicleID)
	}
	if patch.StartedAt != nil {
		add("started_at", *patch.StartedAt)
	}
	if patch.CivilWorkAt != nil {
		add("civil_work_at", *patch.CivilWorkAt)
	}
	if patch.FinishedAt != nil {
		add("finished_at", *patch.FinishedAt)
	}
	if patch.Dismissed != nil {
		add("dismissed", *patch.Dismissed)
	}
	sets = append(sets, "updated_at = now()")

	args = append(args, id)
	sql := fmt.Sprintf(
		"UPDATE work_orders SET %s WHERE id = $%d",
		strings.Join(sets, ", "), len(args),
	)

	tag, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		return gerrors.Wrap(err, "failed to update work order")
	}
	if tag.RowsAffected() == 0 {
		return workorder.ErrNotFound
	}
	return nil
}

func scanWorkOrder(s interface{ Scan(dest ...any) error }) (*workorder.WorkOrder, error) {
	var (
		o           workorder.WorkOrder
		code        pgtype.Text
		observation pgtype.Text
		hydraulic   pgtype.Int8
		civil       pgtype.Int8
		debris      pgtype.Int8
		startedAt   pgtype.Timestamptz
		civilWorkAt pgtype.Timestamptz
		finishedAt  pgtype.Timestamptz
		receivedAt  pgtype.Timestamptz
	)

	err := s.Scan(
		&o.ID,
		&code,
		&o.Street,
		&o.Number,
		&o.Commune,
		&hydraulic,
		&civil,
		&debris,
		&startedAt,
		&civilWorkAt,
		&finishedAt,
		&receivedAt,
		(*string)(&o.Status),
		&observation,
		&o.Additional,
		&o.Dismissed,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Code = nullableText(code)
	o.Observation = nullableText(observation)
	o.HydraulicVehicleID = nullableInt8(hydraulic)
	o.CivilVehicleID = nullableInt8(civil)
	o.DebrisVehicleID = nullableInt8(debris)
	o.StartedAt = nullableTime(startedAt)
	o.CivilWorkAt = nullableTime(civilWorkAt)
	o.FinishedAt = nullableTime(finishedAt)
	o.ReceivedAt = nullableTime(receivedAt)

	return &o, nil
}
