package services

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/aquanorte/fieldops/modules/fieldops/domain/aggregates/workorder"
	"github.com/aquanorte/fieldops/modules/fieldops/domain/entities/catalogitem"
	"github.com/aquanorte/fieldops/modules/fieldops/domain/entities/lineitem"
	"github.com/aquanorte/fieldops/modules/fieldops/domain/entities/vehicle"
	"github.com/aquanorte/fieldops/modules/fieldops/domain/events"
	"github.com/aquanorte/fieldops/modules/fieldops/importing"
	"github.com/aquanorte/fieldops/pkg/composables"
	"github.com/aquanorte/fieldops/pkg/eventbus"
)

// groupErrorSampleSize caps the raw rows captured for a failed group.
const groupErrorSampleSize = 3

// seam for tests; production always goes through composables.
var inTxResult = composables.InTxResult[groupOutcome]

// ImportService reconciles a field-activity CSV against the work-order
// store. Groups are processed strictly one at a time, each inside its own
// transaction; one group's failure never aborts the batch.
type ImportService struct {
	workOrders workorder.Repository
	vehicles   vehicle.Repository
	items      catalogitem.Repository
	lineItems  lineitem.Repository
	publisher  eventbus.EventBus
	logger     *logrus.Logger
	whitelist  *importing.DebrisWhitelist
	windowDays int
}

type ImportServiceOptions struct {
	// Whitelist defaults to the built-in debris item list.
	Whitelist *importing.DebrisWhitelist
	// WindowDays defaults to 30, the tolerance of the heuristic match.
	WindowDays int
}

func NewImportService(
	workOrders workorder.Repository,
	vehicles vehicle.Repository,
	items catalogitem.Repository,
	lineItems lineitem.Repository,
	publisher eventbus.EventBus,
	logger *logrus.Logger,
	opts ImportServiceOptions,
) *ImportService {
	whitelist := opts.Whitelist
	if whitelist == nil {
		whitelist = importing.DefaultDebrisWhitelist()
	}
	windowDays := opts.WindowDays
	if windowDays <= 0 {
		windowDays = 30
	}
	return &ImportService{
		workOrders: workOrders,
		vehicles:   vehicles,
		items:      items,
		lineItems:  lineItems,
		publisher:  publisher,
		logger:     logger,
		whitelist:  whitelist,
		windowDays: windowDays,
	}
}

// ImportFile runs Import over the file at path. The file is removed when
// processing ends, successfully or not, so partial artifacts are never
// reprocessed.
func (s *ImportService) ImportFile(ctx context.Context, path string) (*importing.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, gerrors.Wrap(err, "failed to open import file")
	}
	defer func() {
		_ = f.Close()
		if err := os.Remove(path); err != nil {
			s.logger.WithError(err).WithField("path", path).Warn("failed to remove processed import file")
		}
	}()
	return s.Import(ctx, f)
}

// Import ingests the whole stream and returns a result object. Only a
// stream-level read failure returns an error; every other deviation lands in
// the result's warnings or errors.
func (s *ImportService) Import(ctx context.Context, r io.Reader) (*importing.Result, error) {
	rows, err := importing.ReadRows(r)
	if err != nil {
		return nil, gerrors.Wrap(err, "import aborted")
	}

	groups := importing.BuildGroups(rows)
	result := &importing.Result{
		Summary: importing.Summary{
			RowsProcessed: len(rows),
			UniqueGroups:  len(groups),
		},
	}

	for _, g := range groups {
		out, err := inTxResult(ctx, func(txCtx context.Context) (groupOutcome, error) {
			return s.processGroup(txCtx, g)
		})
		// warnings raised before a failure still describe real lines
		result.Warnings = append(result.Warnings, out.warnings...)
		if err != nil {
			result.Errors = append(result.Errors, importing.GroupError{
				Key:        g.Key,
				Reason:     err.Error(),
				SampleRows: g.SampleRows(groupErrorSampleSize),
			})
			s.logger.WithField("group", g.Key).WithError(err).Error("work order group import failed")
			continue
		}

		if out.created {
			result.DB.Created++
		} else {
			result.DB.Updated++
		}
		if g.Synthetic {
			result.Summary.Breakdown.Additional++
		} else {
			result.Summary.Breakdown.Normal++
		}
	}

	s.publisher.Publish(&events.ImportCompleted{RunID: uuid.New(), Result: result})
	return result, nil
}

type groupOutcome struct {
	created  bool
	warnings []string
}

func (s *ImportService) processGroup(ctx context.Context, g *importing.Group) (groupOutcome, error) {
	facts, err := importing.ResolveResources(ctx, g, vehicleLookup{s.vehicles})
	if err != nil {
		return groupOutcome{}, err
	}

	order, created, err := s.resolveWorkOrder(ctx, g, facts)
	if err != nil {
		return groupOutcome{}, err
	}

	if !created {
		if err := s.mergeIntoExisting(ctx, order, facts); err != nil {
			return groupOutcome{}, err
		}
	}

	items, warnings, err := importing.AggregateItems(ctx, g, s.whitelist, itemLookup{s.items})
	if err != nil {
		return groupOutcome{warnings: warnings}, err
	}

	if len(items) > 0 {
		lines := make([]lineitem.LineItem, 0, len(items))
		for _, it := range items {
			lines = append(lines, lineitem.LineItem{
				WorkOrderID: order.ID,
				ItemID:      it.ItemID,
				Quantity:    it.Quantity,
				VehicleTag:  it.VehicleTag,
			})
		}
		if err := s.lineItems.InsertIgnore(ctx, lines); err != nil {
			return groupOutcome{warnings: warnings}, err
		}
	}

	return groupOutcome{created: created, warnings: warnings}, nil
}

// resolveWorkOrder finds the order this group belongs to, or creates one.
// Groups keyed by a real code resolve by exact lookup; synthetic groups use
// the location + date-window heuristic and always create "additional"
// orders when nothing matches.
func (s *ImportService) resolveWorkOrder(ctx context.Context, g *importing.Group, facts importing.ResourceFacts) (*workorder.WorkOrder, bool, error) {
	if !g.Synthetic {
		order, err := s.workOrders.FindByCode(ctx, g.Key)
		if err == nil {
			return order, false, nil
		}
		if !errors.Is(err, workorder.ErrNotFound) {
			return nil, false, err
		}
		order, err = s.createWorkOrder(ctx, g, facts, g.Key, false)
		return order, true, err
	}

	if g.Header.ExecutedAt == nil {
		return nil, false, gerrors.New("additional work order requires a valid execution date")
	}

	order, err := s.workOrders.FindByLocation(ctx, workorder.FindByLocationParams{
		Commune:    g.Header.Commune,
		Street:     g.Header.Street,
		Number:     g.Header.Number,
		Around:     *g.Header.ExecutedAt,
		WindowDays: s.windowDays,
	})
	if err == nil {
		return order, false, nil
	}
	if !errors.Is(err, workorder.ErrNotFound) {
		return nil, false, err
	}
	order, err = s.createWorkOrder(ctx, g, facts, "", true)
	return order, true, err
}

func (s *ImportService) createWorkOrder(ctx context.Context, g *importing.Group, facts importing.ResourceFacts, code string, additional bool) (*workorder.WorkOrder, error) {
	inf := workorder.Infer(workorder.InferenceFacts{
		HydraulicVehicleID: facts.HydraulicVehicleID,
		CivilVehicleID:     facts.CivilVehicleID,
		DebrisVehicleID:    facts.DebrisVehicleID,
		FinishedAt:         facts.FinishedAt,
	})

	order := &workorder.WorkOrder{
		Code:               code,
		Street:             g.Header.Street,
		Number:             g.Header.Number,
		Commune:            g.Header.Commune,
		HydraulicVehicleID: facts.HydraulicVehicleID,
		CivilVehicleID:     facts.CivilVehicleID,
		DebrisVehicleID:    facts.DebrisVehicleID,
		StartedAt:          facts.StartedAt,
		CivilWorkAt:        facts.CivilWorkAt,
		FinishedAt:         facts.FinishedAt,
		Status:             inf.Status,
		Observation:        inf.Note,
		Additional:         additional,
	}

	created, err := s.workOrders.Create(ctx, order)
	if err != nil {
		return nil, gerrors.Wrap(err, "failed to create work order")
	}
	s.publisher.Publish(&events.WorkOrderCreated{WorkOrder: created})
	return created, nil
}

// mergeIntoExisting merges newly observed facts into a stored order:
// observed non-nil values win, the status is re-inferred against the
// previous one, and only actual changes land in the update patch.
func (s *ImportService) mergeIntoExisting(ctx context.Context, order *workorder.WorkOrder, facts importing.ResourceFacts) error {
	mergedHydraulic := mergeID(order.HydraulicVehicleID, facts.HydraulicVehicleID)
	mergedCivil := mergeID(order.CivilVehicleID, facts.CivilVehicleID)
	mergedDebris := mergeID(order.DebrisVehicleID, facts.DebrisVehicleID)
	mergedStarted := mergeDate(order.StartedAt, facts.StartedAt)
	mergedCivilAt := mergeDate(order.CivilWorkAt, facts.CivilWorkAt)
	mergedFinished := mergeDate(order.FinishedAt, facts.FinishedAt)

	inf := workorder.Infer(workorder.InferenceFacts{
		HydraulicVehicleID: mergedHydraulic,
		CivilVehicleID:     mergedCivil,
		DebrisVehicleID:    mergedDebris,
		FinishedAt:         mergedFinished,
		Current:            order.Status,
	})

	var patch workorder.UpdatePatch
	if inf.Status != order.Status {
		status := inf.Status
		patch.Status = &status
	}

	switch {
	case inf.Note != "":
		// Never overwrite a human-authored note.
		if order.Observation == "" || workorder.IsSystemObservation(order.Observation) {
			if order.Observation != inf.Note {
				note := inf.Note
				patch.Observation = &note
			}
		}
	case workorder.IsSystemObservation(order.Observation):
		// The anomaly resolved; clear our own note.
		empty := ""
		patch.Observation = &empty
	}

	patch.HydraulicVehicleID = changedID(order.HydraulicVehicleID, mergedHydraulic)
	patch.CivilVehicleID = changedID(order.CivilVehicleID, mergedCivil)
	patch.DebrisVehicleID = changedID(order.DebrisVehicleID, mergedDebris)
	patch.StartedAt = changedDate(order.StartedAt, mergedStarted)
	patch.CivilWorkAt = changedDate(order.CivilWorkAt, mergedCivilAt)
	patch.FinishedAt = changedDate(order.FinishedAt, mergedFinished)

	if patch.IsZero() {
		return nil
	}
	if err := s.workOrders.Update(ctx, order.ID, patch); err != nil {
		return gerrors.Wrap(err, "failed to update work order")
	}
	s.publisher.Publish(&events.WorkOrderUpdated{ID: order.ID, Patch: patch})
	return nil
}

func mergeID(existing, observed *int64) *int64 {
	if observed != nil {
		return observed
	}
	return existing
}

func mergeDate(existing, observed *time.Time) *time.Time {
	if observed != nil {
		return observed
	}
	return existing
}

func changedID(existing, merged *int64) *int64 {
	if merged == nil {
		return nil
	}
	if existing != nil && *existing == *merged {
		return nil
	}
	return merged
}

func changedDate(existing, merged *time.Time) *time.Time {
	if merged == nil {
		return nil
	}
	if existing != nil && existing.Equal(*merged) {
		return nil
	}
	return merged
}

// vehicleLookup adapts the vehicle repository to the engine's lookup
// contract: unknown codes are not failures.
type vehicleLookup struct {
	repo vehicle.Repository
}

func (l vehicleLookup) IDByCode(ctx context.Context, code string) (*int64, error) {
	v, err := l.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, vehicle.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &v.ID, nil
}

type itemLookup struct {
	repo catalogitem.Repository
}

func (l itemLookup) IDByDescription(ctx context.Context, description string) (*int64, error) {
	item, err := l.repo.GetByDescription(ctx, description)
	if err != nil {
		if errors.Is(err, catalogitem.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item.ID, nil
}
