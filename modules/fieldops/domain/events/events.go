package events

import (
	"github.com/google/uuid"

	"github.com/aquanorte/fieldops/modules/fieldops/domain/aggregates/workorder"
	"github.com/aquanorte/fieldops/modules/fieldops/importing"
)

type WorkOrderCreated struct {
	WorkOrder *workorder.WorkOrder
}

type WorkOrderUpdated struct {
	ID    int64
	Patch workorder.UpdatePatch
}

type WorkOrderDismissed struct {
	ID int64
}

type ImportCompleted struct {
	RunID  uuid.UUID
	Result *importing.Result
}
