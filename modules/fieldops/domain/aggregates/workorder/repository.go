package workorder

import (
	"context"
	"time"

	gerrors "github.com/go-faster/errors"
)

var ErrNotFound = gerrors.New("work order not found")

type FindParams struct {
	Q      string
	Limit  int
	Offset int
}

// FindByLocationParams drives the heuristic match for additional work
// orders: same normalized address, best-available date within the window.
type FindByLocationParams struct {
	Commune    string
	Street     string
	Number     string
	Around     time.Time
	WindowDays int
}

type Repository interface {
	GetByID(ctx context.Context, id int64) (*WorkOrder, error)
	GetPaginated(ctx context.Context, params *FindParams) ([]*WorkOrder, int64, error)
	Count(ctx context.Context) (int64, error)
	FindByCode(ctx context.Context, code string) (*WorkOrder, error)
	FindByLocation(ctx context.Context, params FindByLocationParams) (*WorkOrder, error)
	Create(ctx context.Context, order *WorkOrder) (*WorkOrder, error)
	Update(ctx context.Context, id int64, patch UpdatePatch) error
}
