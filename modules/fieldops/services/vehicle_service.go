package services

import (
	"context"

	"github.com/aquanorte/fieldops/modules/fieldops/domain/entities/vehicle"
	"github.com/aquanorte/fieldops/pkg/composables"
)

type VehicleService struct {
	repo vehicle.Repository
}

func NewVehicleService(repo vehicle.Repository) *VehicleService {
	return &VehicleService{repo: repo}
}

func (s *VehicleService) GetByCode(ctx context.Context, code string) (*vehicle.Vehicle, error) {
	return composables.InTxResult(ctx, func(txCtx context.Context) (*vehicle.Vehicle, error) {
		return s.repo.GetByCode(txCtx, code)
	})
}

func (s *VehicleService) GetAll(ctx context.Context) ([]*vehicle.Vehicle, error) {
	return composables.InTxResult(ctx, func(txCtx context.Context) ([]*vehicle.Vehicle, error) {
		return s.repo.GetAll(txCtx)
	})
}

func (s *VehicleService) Create(ctx context.Context, v *vehicle.Vehicle) (*vehicle.Vehicle, error) {
	return composables.InTxResult(ctx, func(txCtx context.Context) (*vehicle.Vehicle, error) {
		return s.repo.Create(txCtx, v)
	})
}
