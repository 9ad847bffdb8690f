package services

import (
	"context"

	"github.com/aquanorte/fieldops/modules/fieldops/domain/aggregates/workorder"
	"github.com/aquanorte/fieldops/modules/fieldops/domain/events"
	"github.com/aquanorte/fieldops/pkg/composables"
	"github.com/aquanorte/fieldops/pkg/eventbus"
)

type WorkOrderService struct {
	repo      workorder.Repository
	publisher eventbus.EventBus
}

func NewWorkOrderService(repo workorder.Repository, publisher eventbus.EventBus) *WorkOrderService {
	return &WorkOrderService{
		repo:      repo,
		publisher: publisher,
	}
}

func (s *WorkOrderService) Count(ctx context.Context) (int64, error) {
	return composables.InTxResult(ctx, func(txCtx context.Context) (int64, error) {
		return s.repo.Count(txCtx)
	})
}

func (s *WorkOrderService) GetByID(ctx context.Context, id int64) (*workorder.WorkOrder, error) {
	return composables.InTxResult(ctx, func(txCtx context.Context) (*workorder.WorkOrder, error) {
		return s.repo.GetByID(txCtx, id)
	})
}

func (s *WorkOrderService) GetPaginated(ctx context.Context, params *workorder.FindParams) ([]*workorder.WorkOrder, int64, error) {
	var total int64
	orders, err := composables.InTxResult(ctx, func(txCtx context.Context) ([]*workorder.WorkOrder, error) {
		var innerErr error
		var out []*workorder.WorkOrder
		out, total, innerErr = s.repo.GetPaginated(txCtx, params)
		return out, innerErr
	})
	return orders, total, err
}

func (s *WorkOrderService) Create(ctx context.Context, order *workorder.WorkOrder) (*workorder.WorkOrder, error) {
	return composables.InTxResult(ctx, func(txCtx context.Context) (*workorder.WorkOrder, error) {
		created, err := s.repo.Create(txCtx, order)
		if err != nil {
			return nil, err
		}
		s.publisher.Publish(&events.WorkOrderCreated{WorkOrder: created})
		return created, nil
	})
}

func (s *WorkOrderService) Update(ctx context.Context, id int64, patch workorder.UpdatePatch) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Update(txCtx, id, patch); err != nil {
			return err
		}
		s.publisher.Publish(&events.WorkOrderUpdated{ID: id, Patch: patch})
		return nil
	})
}

// Dismiss soft-hides a work order; dismissed orders are excluded from import
// matching but never deleted by this service.
func (s *WorkOrderService) Dismiss(ctx context.Context, id int64) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		dismissed := true
		if err := s.repo.Update(txCtx, id, workorder.UpdatePatch{Dismissed: &dismissed}); err != nil {
			return err
		}
		s.publisher.Publish(&events.WorkOrderDismissed{ID: id})
		return nil
	})
}
