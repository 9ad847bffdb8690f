package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/aquanorte/fieldops/modules/fieldops/domain/aggregates/workorder"
	"github.com/aquanorte/fieldops/modules/fieldops/domain/entities/catalogitem"
	"github.com/aquanorte/fieldops/modules/fieldops/domain/entities/lineitem"
	"github.com/aquanorte/fieldops/modules/fieldops/domain/entities/vehicle"
	"github.com/aquanorte/fieldops/modules/fieldops/importing"
	"github.com/aquanorte/fieldops/pkg/composables"
)

const csvHeader = "OT;MOVIL;FECHA;CALLE;NUMERO;COMUNA;DESCRIPCION;CANTIDAD;ADICIONAL\n"

// ---- in-memory fakes -------------------------------------------------------

type memWorkOrders struct {
	seq    int64
	orders []*workorder.WorkOrder
}

func (m *memWorkOrders) clone() *memWorkOrders {
	c := &memWorkOrders{seq: m.seq}
	for _, o := range m.orders {
		cp := *o
		c.orders = append(c.orders, &cp)
	}
	return c
}

func norm(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

func (m *memWorkOrders) GetByID(ctx context.Context, id int64) (*workorder.WorkOrder, error) {
	for _, o := range m.orders {
		if o.ID == id {
			cp := *o
			return &cp, nil
		}
	}
	return nil, workorder.ErrNotFound
}

func (m *memWorkOrders) GetPaginated(ctx context.Context, params *workorder.FindParams) ([]*workorder.WorkOrder, int64, error) {
	return nil, int64(len(m.orders)), nil
}

func (m *memWorkOrders) Count(ctx context.Context) (int64, error) {
	return int64(len(m.orders)), nil
}

func (m *memWorkOrders) FindByCode(ctx context.Context, code string) (*workorder.WorkOrder, error) {
	for _, o := range m.orders {
		if !o.Dismissed && o.Code == code {
			cp := *o
			return &cp, nil
		}
	}
	return nil, workorder.ErrNotFound
}

func (m *memWorkOrders) FindByLocation(ctx context.Context, params workorder.FindByLocationParams) (*workorder.WorkOrder, error) {
	window := time.Duration(params.WindowDays) * 24 * time.Hour
	for _, o := range m.orders {
		if o.Dismissed {
			continue
		}
		if norm(o.Commune) != norm(params.Commune) ||
			norm(o.Street) != norm(params.Street) ||
			strings.TrimSpace(o.Number) != strings.TrimSpace(params.Number) {
			continue
		}
		best := o.BestKnownDate()
		if best == nil {
			continue
		}
		diff := params.Around.Sub(*best)
		if diff < 0 {
			diff = -diff
		}
		if diff <= window {
			cp := *o
			return &cp, nil
		}
	}
	return nil, workorder.ErrNotFound
}

func (m *memWorkOrders) Create(ctx context.Context, order *workorder.WorkOrder) (*workorder.WorkOrder, error) {
	m.seq++
	cp := *order
	cp.ID = m.seq
	m.orders = append(m.orders, &cp)
	out := cp
	return &out, nil
}

func (m *memWorkOrders) Update(ctx context.Context, id int64, patch workorder.UpdatePatch) error {
	for _, o := range m.orders {
		if o.ID != id {
			continue
		}
		if patch.Status != nil {
			o.Status = *patch.Status
		}
		if patch.Observation != nil {
			o.Observation = *patch.Observation
		}
		if patch.HydraulicVehicleID != nil {
			o.HydraulicVehicleID = patch.HydraulicVehicleID
		}
		if patch.CivilVehicleID != nil {
			o.CivilVehicleID = patch.CivilVehicleID
		}
		if patch.DebrisVehicleID != nil {
			o.DebrisVehicleID = patch.DebrisVehicleID
		}
		if patch.StartedAt != nil {
			o.StartedAt = patch.StartedAt
		}
		if patch.CivilWorkAt != nil {
			o.CivilWorkAt = patch.CivilWorkAt
		}
		if patch.FinishedAt != nil {
			o.FinishedAt = patch.FinishedAt
		}
		if patch.Dismissed != nil {
			o.Dismissed = *patch.Dismissed
		}
		return nil
	}
	return workorder.ErrNotFound
}

type memVehicles struct {
	byCode map[string]int64
}

func (m *memVehicles) GetByCode(ctx context.Context, code string) (*vehicle.Vehicle, error) {
	if id, ok := m.byCode[norm(code)]; ok {
		return &vehicle.Vehicle{ID: id, Code: norm(code)}, nil
	}
	return nil, vehicle.ErrNotFound
}

func (m *memVehicles) GetAll(ctx context.Context) ([]*vehicle.Vehicle, error) { return nil, nil }
func (m *memVehicles) Create(ctx context.Context, v *vehicle.Vehicle) (*vehicle.Vehicle, error) {
	return v, nil
}

type memItems struct {
	byDescription map[string]int64
}

func (m *memItems) GetByDescription(ctx context.Context, description string) (*catalogitem.CatalogItem, error) {
	if id, ok := m.byDescription[catalogitem.NormalizeDescription(description)]; ok {
		return &catalogitem.CatalogItem{ID: id, Description: description}, nil
	}
	return nil, catalogitem.ErrNotFound
}

func (m *memItems) GetAll(ctx context.Context) ([]*catalogitem.CatalogItem, error) { return nil, nil }
func (m *memItems) Create(ctx context.Context, item *catalogitem.CatalogItem) (*catalogitem.CatalogItem, error) {
	return item, nil
}

type lineKey struct {
	workOrderID int64
	itemID      int64
}

type memLineItems struct {
	lines map[lineKey]lineitem.LineItem
}

func (m *memLineItems) clone() *memLineItems {
	c := &memLineItems{lines: make(map[lineKey]lineitem.LineItem, len(m.lines))}
	for k, v := range m.lines {
		c.lines[k] = v
	}
	return c
}

func (m *memLineItems) InsertIgnore(ctx context.Context, items []lineitem.LineItem) error {
	for _, it := range items {
		k := lineKey{it.WorkOrderID, it.ItemID}
		if _, exists := m.lines[k]; exists {
			continue
		}
		m.lines[k] = it
	}
	return nil
}

func (m *memLineItems) ListByWorkOrder(ctx context.Context, workOrderID int64) ([]lineitem.LineItem, error) {
	var out []lineitem.LineItem
	for k, v := range m.lines {
		if k.workOrderID == workOrderID {
			out = append(out, v)
		}
	}
	return out, nil
}

type capturingPublisher struct {
	events []interface{}
}

func (p *capturingPublisher) Publish(args ...interface{}) { p.events = append(p.events, args...) }
func (p *capturingPublisher) Subscribe(handler interface{})   {}
func (p *capturingPublisher) Unsubscribe(handler interface{}) {}
func (p *capturingPublisher) Clear()                          {}
func (p *capturingPublisher) SubscribersCount() int           { return 0 }

// ---- environment -----------------------------------------------------------

type testEnv struct {
	workOrders *memWorkOrders
	vehicles   *memVehicles
	items      *memItems
	lineItems  *memLineItems
	publisher  *capturingPublisher
	svc        *ImportService
}

// newTestEnv wires the service against in-memory stores and replaces the
// transaction seam with one that mimics rollback by restoring a snapshot of
// the mutable stores.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		workOrders: &memWorkOrders{},
		vehicles: &memVehicles{byCode: map[string]int64{
			"M-100":  1,
			"OOCC-2": 2,
			"FLETE":  3,
		}},
		items: &memItems{byDescription: map[string]int64{
			"REPAIR":           10,
			"REPARACION CALLE": 11,
			"RETIRO ESCOMBROS": 12,
		}},
		lineItems: &memLineItems{lines: map[lineKey]lineitem.LineItem{}},
		publisher: &capturingPublisher{},
	}

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	env.svc = NewImportService(
		env.workOrders, env.vehicles, env.items, env.lineItems,
		env.publisher, logger, ImportServiceOptions{},
	)

	inTxResult = func(ctx context.Context, fn func(context.Context) (groupOutcome, error)) (groupOutcome, error) {
		ordersSnap := env.workOrders.clone()
		linesSnap := env.lineItems.clone()
		out, err := fn(ctx)
		if err != nil {
			*env.workOrders = *ordersSnap
			*env.lineItems = *linesSnap
		}
		return out, err
	}
	t.Cleanup(func() { inTxResult = composables.InTxResult[groupOutcome] })

	return env
}

func (e *testEnv) importCSV(t *testing.T, body string) *importing.Result {
	t.Helper()
	res, err := e.svc.Import(context.Background(), strings.NewReader(csvHeader+body))
	require.NoError(t, err)
	return res
}

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// ---- tests -----------------------------------------------------------------

func TestImport_Scenario_SingleGroupMergedRows(t *testing.T) {
	env := newTestEnv(t)

	res := env.importCSV(t,
		"OT-1;M-100;15-03-2024;LOS ALERCES;742;MAIPU;REPAIR;1,5;\n"+
			";M-100;16-03-2024;LOS ALERCES;742;MAIPU;;;\n")

	require.True(t, res.Ok(), "errors: %+v", res.Errors)
	require.Equal(t, 2, res.Summary.RowsProcessed)
	require.Equal(t, 1, res.Summary.UniqueGroups)
	require.Equal(t, 1, res.Summary.Breakdown.Normal)
	require.Equal(t, 0, res.Summary.Breakdown.Additional)
	require.Equal(t, 1, res.DB.Created)
	require.Equal(t, 0, res.DB.Updated)

	require.Len(t, env.workOrders.orders, 1)
	order := env.workOrders.orders[0]
	require.Equal(t, "OT-1", order.Code)
	require.NotNil(t, order.HydraulicVehicleID)
	require.Equal(t, int64(1), *order.HydraulicVehicleID)
	require.Equal(t, workorder.StatusPendingCivilWorks, order.Status)
	// latest date wins for the started timestamp
	require.Equal(t, 16, order.StartedAt.Day())

	require.Len(t, env.lineItems.lines, 1)
	line := env.lineItems.lines[lineKey{order.ID, 10}]
	require.True(t, line.Quantity.Equal(decimalFromString(t, "1.5")))
}

func TestImport_Idempotency(t *testing.T) {
	env := newTestEnv(t)
	body := "OT-1;M-100;15-03-2024;LOS ALERCES;742;MAIPU;REPAIR;1,5;\n"

	first := env.importCSV(t, body)
	require.True(t, first.Ok())
	require.Equal(t, 1, first.DB.Created)

	second := env.importCSV(t, body)
	require.True(t, second.Ok())
	require.Equal(t, 0, second.DB.Created)
	require.Equal(t, 1, second.DB.Updated)

	require.Len(t, env.workOrders.orders, 1)
	require.Len(t, env.lineItems.lines, 1)
	require.True(t, env.lineItems.lines[lineKey{1, 10}].Quantity.Equal(decimalFromString(t, "1.5")),
		"repeat import must not double-charge")
}

func TestImport_IncrementalSuperset(t *testing.T) {
	env := newTestEnv(t)
	base := "OT-1;M-100;15-03-2024;LOS ALERCES;742;MAIPU;REPAIR;1;\n"

	env.importCSV(t, base)
	require.Len(t, env.workOrders.orders, 1)

	superset := base + "OT-2;M-100;16-03-2024;CALLE DOS;10;NUNOA;REPAIR;2;\n"
	res := env.importCSV(t, superset)
	require.True(t, res.Ok())
	require.Equal(t, 1, res.DB.Created)
	require.Equal(t, 1, res.DB.Updated)
	require.Len(t, env.workOrders.orders, 2)
}

func TestImport_HeuristicWindowBoundary(t *testing.T) {
	for _, tc := range []struct {
		name       string
		daysApart  int
		wantOrders int
	}{
		{"exactly 30 days matches", 30, 1},
		{"31 days creates a new order", 31, 2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)

			started := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
			existing := &workorder.WorkOrder{
				Street:     "CALLE UNO",
				Number:     "10",
				Commune:    "NUNOA",
				StartedAt:  &started,
				Status:     workorder.StatusPendingCivilWorks,
				Additional: true,
			}
			_, err := env.workOrders.Create(context.Background(), existing)
			require.NoError(t, err)

			rowDate := started.AddDate(0, 0, tc.daysApart)
			body := ";M-100;" + rowDate.Format("02-01-2006") + ";CALLE UNO;10;NUNOA;REPAIR;1;SI\n"

			res := env.importCSV(t, body)
			require.True(t, res.Ok(), "errors: %+v", res.Errors)
			require.Len(t, env.workOrders.orders, tc.wantOrders)
			require.Equal(t, 1, res.Summary.Breakdown.Additional)
		})
	}
}

func TestImport_HeuristicRequiresExecutionDate(t *testing.T) {
	env := newTestEnv(t)

	res := env.importCSV(t, ";M-100;;CALLE UNO;10;NUNOA;REPAIR;1;SI\n")
	require.Len(t, res.Errors, 1)
	require.Contains(t, res.Errors[0].Reason, "execution date")
	require.Empty(t, env.workOrders.orders)
}

func TestImport_HeuristicCreationMarksAdditional(t *testing.T) {
	env := newTestEnv(t)

	res := env.importCSV(t, ";M-100;15-03-2024;CALLE UNO;10;NUNOA;REPAIR;1;SI\n")
	require.True(t, res.Ok())
	require.Len(t, env.workOrders.orders, 1)
	require.True(t, env.workOrders.orders[0].Additional)
	require.Empty(t, env.workOrders.orders[0].Code)
	require.Equal(t, 1, res.Summary.Breakdown.Additional)
}

func TestImport_GroupFailureIsIsolated(t *testing.T) {
	env := newTestEnv(t)

	res := env.importCSV(t,
		"OT-1;M-100;15-03-2024;LOS ALERCES;742;MAIPU;REPAIR;1;\n"+
			"OT-2;M-100;15-03-2024;CALLE DOS;10;NUNOA;NO SUCH ITEM;1;\n"+
			"OT-3;M-100;15-03-2024;CALLE TRES;20;NUNOA;REPAIR;2;\n")

	require.Len(t, res.Errors, 1)
	require.Equal(t, "OT-2", res.Errors[0].Key)
	require.Contains(t, res.Errors[0].Reason, "NO SUCH ITEM")
	require.NotEmpty(t, res.Errors[0].SampleRows)

	// the failed group's work order was rolled back, the others committed
	require.Equal(t, 2, res.DB.Created)
	require.Len(t, env.workOrders.orders, 2)
	for _, o := range env.workOrders.orders {
		require.NotEqual(t, "OT-2", o.Code)
	}
}

func TestImport_TerminalStatusNeverChanges(t *testing.T) {
	env := newTestEnv(t)

	paid := &workorder.WorkOrder{Code: "OT-1", Street: "A", Number: "1", Commune: "B", Status: workorder.StatusPaid}
	_, err := env.workOrders.Create(context.Background(), paid)
	require.NoError(t, err)

	res := env.importCSV(t,
		"OT-1;M-100;15-03-2024;A;1;B;REPAIR;1;\n"+
			"OT-1;FLETE;16-03-2024;A;1;B;;;\n")

	require.True(t, res.Ok(), "errors: %+v", res.Errors)
	require.Equal(t, workorder.StatusPaid, env.workOrders.orders[0].Status)
}

func TestImport_AnomalyDetectedOnDebrisWithoutCivil(t *testing.T) {
	env := newTestEnv(t)

	res := env.importCSV(t,
		"OT-1;M-100;15-03-2024;A;1;B;REPAIR;1;\n"+
			"OT-1;FLETE;16-03-2024;A;1;B;;;\n")

	require.True(t, res.Ok(), "errors: %+v", res.Errors)
	order := env.workOrders.orders[0]
	require.Equal(t, workorder.StatusAnomalous, order.Status)
	require.True(t, workorder.IsSystemObservation(order.Observation))
}

func TestImport_AnomalyResolutionClearsSystemNote(t *testing.T) {
	env := newTestEnv(t)

	// anomalous order: debris finished but civil works never recorded
	hydraulicID := int64(1)
	finished := time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)
	anomalous := &workorder.WorkOrder{
		Code: "OT-1", Street: "A", Number: "1", Commune: "B",
		HydraulicVehicleID: &hydraulicID,
		FinishedAt:         &finished,
		Status:             workorder.StatusAnomalous,
		Observation:        workorder.SystemObservationPrefix + " debris removal recorded without a civil-works record",
	}
	_, err := env.workOrders.Create(context.Background(), anomalous)
	require.NoError(t, err)

	// civil-works crew reports in a later file; anomaly resolves
	res := env.importCSV(t, "OT-1;OOCC-2;17-03-2024;A;1;B;;;\n")
	require.True(t, res.Ok(), "errors: %+v", res.Errors)

	order := env.workOrders.orders[0]
	require.Equal(t, workorder.StatusReadyForPayment, order.Status)
	require.Empty(t, order.Observation)
}

func TestImport_HumanObservationIsNeverOverwritten(t *testing.T) {
	env := newTestEnv(t)

	hydraulicID := int64(1)
	existing := &workorder.WorkOrder{
		Code: "OT-1", Street: "A", Number: "1", Commune: "B",
		HydraulicVehicleID: &hydraulicID,
		Status:             workorder.StatusPendingCivilWorks,
		Observation:        "operator: client requested reschedule",
	}
	_, err := env.workOrders.Create(context.Background(), existing)
	require.NoError(t, err)

	// debris without civil works would normally write a system note
	res := env.importCSV(t, "OT-1;FLETE;16-03-2024;A;1;B;;;\n")
	require.True(t, res.Ok(), "errors: %+v", res.Errors)

	order := env.workOrders.orders[0]
	require.Equal(t, workorder.StatusAnomalous, order.Status)
	require.Equal(t, "operator: client requested reschedule", order.Observation)
}

func TestImport_WarningsSurfaceWithoutFailingGroup(t *testing.T) {
	env := newTestEnv(t)

	res := env.importCSV(t, "OT-1;FLETE;15-03-2024;A;1;B;ALGO RARO;1;\n")
	require.True(t, res.Ok(), "errors: %+v", res.Errors)
	require.Len(t, res.Warnings, 1)
	require.Contains(t, res.Warnings[0], "not on the allowed list")
	require.Len(t, env.workOrders.orders, 1)
	require.Empty(t, env.lineItems.lines)
}

func TestImport_WarningsSurviveGroupFailure(t *testing.T) {
	env := newTestEnv(t)

	// the debris line warns, then the unknown item fails the group
	res := env.importCSV(t,
		"OT-1;FLETE;15-03-2024;A;1;B;ALGO RARO;1;\n"+
			"OT-1;M-100;15-03-2024;A;1;B;NO SUCH ITEM;1;\n")

	require.Len(t, res.Errors, 1)
	require.Equal(t, "OT-1", res.Errors[0].Key)
	require.Len(t, res.Warnings, 1)
	require.Contains(t, res.Warnings[0], "not on the allowed list")
	require.Empty(t, env.workOrders.orders, "failed group must be rolled back")
}

func TestImport_StreamFailureAbortsBatch(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Import(context.Background(), failingReader{})
	require.Error(t, err)
	require.Empty(t, env.workOrders.orders)
}

func TestImportFile_RemovesSourceFile(t *testing.T) {
	env := newTestEnv(t)

	path := filepath.Join(t.TempDir(), "upload.csv")
	body := csvHeader + "OT-1;M-100;15-03-2024;A;1;B;REPAIR;1;\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	res, err := env.svc.ImportFile(context.Background(), path)
	require.NoError(t, err)
	require.True(t, res.Ok())

	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr), "source file must be removed after processing")
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("disk read failed")
}
