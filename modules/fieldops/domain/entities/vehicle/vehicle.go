package vehicle

import (
	"context"

	gerrors "github.com/go-faster/errors"
)

var ErrNotFound = gerrors.New("vehicle not found")

type Vehicle struct {
	ID          int64
	Code        string
	Description string
}

type Repository interface {
	GetByCode(ctx context.Context, code string) (*Vehicle, error)
	GetAll(ctx context.Context) ([]*Vehicle, error)
	Create(ctx context.Context, v *Vehicle) (*Vehicle, error)
}
