package jobs

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ecotrace/footprint-backend/internal/consistency"
	"github.com/ecotrace/footprint-backend/internal/footprint"
	"github.com/ecotrace/footprint-backend/internal/types"
)

const testDatasetVersion = "2026.1"

type fakeProductRepo struct {
	products map[uuid.UUID]*types.Product
}

func newFakeProductRepo(products ...*types.Product) *fakeProductRepo {
	m := map[uuid.UUID]*types.Product{}
	for _, p := range products {
		m[p.ID] = p
	}
	return &fakeProductRepo{products: m}
}

func (f *fakeProductRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Product, error) {
	return f.products[id], nil
}

func (f *fakeProductRepo) ListByCompany(ctx context.Context, tx *gorm.DB, companyID uuid.UUID) ([]*types.Product, error) {
	return nil, nil
}

func (f *fakeProductRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Product, error) {
	var out []*types.Product
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeProductRepo) UpdateCachedFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	p, ok := f.products[id]
	if !ok {
		return nil
	}
	for column, value := range updates {
		raw := value.(datatypes.JSON)
		switch column {
		case "cached_carbon":
			p.CachedCarbon = raw
		case "cached_water":
			p.CachedWater = raw
		case "cached_waste":
			p.CachedWaste = raw
		}
	}
	return nil
}

type fakeAlertRepo struct{}

func (fakeAlertRepo) Create(ctx context.Context, tx *gorm.DB, alert *types.ConsistencyAlert) (*types.ConsistencyAlert, error) {
	return alert, nil
}

func (fakeAlertRepo) FindOpen(ctx context.Context, tx *gorm.DB, productID uuid.UUID, field string) (*types.ConsistencyAlert, error) {
	return nil, nil
}

func (fakeAlertRepo) ListActiveByCompany(ctx context.Context, tx *gorm.DB, companyID uuid.UUID) ([]*types.ConsistencyAlert, error) {
	return nil, nil
}

func (fakeAlertRepo) ListActiveByProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) ([]*types.ConsistencyAlert, error) {
	return nil, nil
}

func (fakeAlertRepo) ResolveForFields(ctx context.Context, tx *gorm.DB, productID uuid.UUID, fields []string) (int64, error) {
	return 0, nil
}

type fakeFactorRepo struct {
	factors []types.ImpactFactor
}

func (f *fakeFactorRepo) GetByName(ctx context.Context, tx *gorm.DB, name string, version string) (*types.ImpactFactor, error) {
	for i := range f.factors {
		if f.factors[i].MaterialName == name && f.factors[i].DatasetVersion == version {
			return &f.factors[i], nil
		}
	}
	return nil, nil
}

func (f *fakeFactorRepo) ListByCategory(ctx context.Context, tx *gorm.DB, category string, version string) ([]types.ImpactFactor, error) {
	return nil, nil
}

func (f *fakeFactorRepo) CountByVersion(ctx context.Context, tx *gorm.DB, version string) (int64, error) {
	return int64(len(f.factors)), nil
}

func (f *fakeFactorRepo) CreateBatch(ctx context.Context, tx *gorm.DB, factors []*types.ImpactFactor) error {
	return nil
}

func testProduct(t *testing.T) *types.Product {
	t.Helper()
	raw, err := json.Marshal([]types.Ingredient{
		{Material: "cane molasses", Amount: 10, Unit: "kg"},
	})
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return &types.Product{
		ID:                     uuid.New(),
		CompanyID:              uuid.New(),
		Name:                   "molasses syrup",
		Ingredients:            datatypes.JSON(raw),
		AnnualProductionVolume: 1000,
		UpdatedAt:              time.Now().UTC().Add(-time.Hour),
	}
}

func newTestHandler(t *testing.T, products *fakeProductRepo, jobRepo *fakeJobRepo, autoSync bool) *FootprintHandler {
	t.Helper()
	log := testLogger(t)
	factorRepo := &fakeFactorRepo{factors: []types.ImpactFactor{{
		ID:             uuid.New(),
		MaterialName:   "cane molasses",
		Category:       "ingredient",
		Unit:           "kg",
		CarbonFactor:   0.26,
		WaterFactor:    26,
		DatasetVersion: testDatasetVersion,
	}}}
	resolver := footprint.NewResolver(factorRepo, testDatasetVersion, log)
	calc := footprint.NewCalculator(resolver, 0.82, log)
	syncer := consistency.NewService(products, jobRepo, fakeAlertRepo{}, calc, consistency.Config{AutoSyncEnabled: autoSync}, log)
	return NewFootprintHandler(products, calc, syncer, log)
}

func TestFootprintHandlerCompletesAndSyncs(t *testing.T) {
	product := testProduct(t)
	products := newFakeProductRepo(product)
	job := pendingJob(product.ID)
	jobRepo := newFakeJobRepo(job)
	notify := &recordingNotifier{}
	h := newTestHandler(t, products, jobRepo, true)

	h.Run(NewContext(context.Background(), nil, job, jobRepo, notify))

	stored := jobRepo.jobs[job.ID]
	if stored.Status != types.JobStatusCompleted {
		t.Fatalf("status: want=completed got=%q (error=%q)", stored.Status, stored.Error)
	}
	var result types.FootprintResult
	if err := json.Unmarshal(stored.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if math.Abs(result.PerUnitCarbon-2.6) > 1e-9 {
		t.Fatalf("per-unit carbon: want=2.6 got=%v", result.PerUnitCarbon)
	}
	cached, err := product.CachedField(types.FieldCarbon)
	if err != nil || cached == nil {
		t.Fatalf("cache not synced: %v", err)
	}
	if math.Abs(cached.Value-2.6) > 1e-9 {
		t.Fatalf("cached carbon: want=2.6 got=%v", cached.Value)
	}
	if notify.completed != 1 {
		t.Fatalf("completion notifications: want=1 got=%d", notify.completed)
	}
}

func TestFootprintHandlerAutoSyncDisabledSkipsCacheWrite(t *testing.T) {
	product := testProduct(t)
	products := newFakeProductRepo(product)
	job := pendingJob(product.ID)
	jobRepo := newFakeJobRepo(job)
	h := newTestHandler(t, products, jobRepo, false)

	h.Run(NewContext(context.Background(), nil, job, jobRepo, &recordingNotifier{}))

	if jobRepo.jobs[job.ID].Status != types.JobStatusCompleted {
		t.Fatalf("job must still complete with auto-sync off")
	}
	cached, err := product.CachedField(types.FieldCarbon)
	if err != nil {
		t.Fatalf("CachedField: %v", err)
	}
	if cached != nil {
		t.Fatalf("cache must stay untouched with auto-sync off")
	}
}

func TestFootprintHandlerMissingProductFails(t *testing.T) {
	products := newFakeProductRepo()
	job := pendingJob(uuid.New())
	jobRepo := newFakeJobRepo(job)
	notify := &recordingNotifier{}
	h := newTestHandler(t, products, jobRepo, true)

	h.Run(NewContext(context.Background(), nil, job, jobRepo, notify))

	stored := jobRepo.jobs[job.ID]
	if stored.Status != types.JobStatusFailed {
		t.Fatalf("status: want=failed got=%q", stored.Status)
	}
	if stored.Error == "" {
		t.Fatalf("failure must record the error")
	}
	if notify.failed != 1 {
		t.Fatalf("failure notifications: want=1 got=%d", notify.failed)
	}
}

func TestFootprintHandlerStopsWhenCancelledMidRun(t *testing.T) {
	product := testProduct(t)
	products := newFakeProductRepo(product)
	job := pendingJob(product.ID)
	jobRepo := newFakeJobRepo(job)
	h := newTestHandler(t, products, jobRepo, true)

	jobRepo.jobs[job.ID].Status = types.JobStatusCancelled

	h.Run(NewContext(context.Background(), nil, job, jobRepo, &recordingNotifier{}))

	stored := jobRepo.jobs[job.ID]
	if stored.Status != types.JobStatusCancelled {
		t.Fatalf("cancelled job must stay cancelled, got %q", stored.Status)
	}
	if len(stored.Result) != 0 {
		t.Fatalf("no result may be persisted after cancellation")
	}
}

type panicHandler struct{}

func (panicHandler) Run(jc *Context) {
	panic("handler exploded")
}

func TestWorkerRunGuardedRecoversPanics(t *testing.T) {
	job := pendingJob(uuid.New())
	jobRepo := newFakeJobRepo(job)
	log := testLogger(t)
	registry := NewRegistry()
	registry.Register(types.JobTypeFootprintCalculate, panicHandler{})
	w := NewWorker(nil, log, jobRepo, registry, &recordingNotifier{}, WorkerConfig{})

	w.runGuarded(NewContext(context.Background(), nil, job, jobRepo, &recordingNotifier{}), panicHandler{})

	stored := jobRepo.jobs[job.ID]
	if stored.Status != types.JobStatusFailed {
		t.Fatalf("panicking handler must fail the job, got %q", stored.Status)
	}
}

func TestRegistryLookup(t *testing.T) {
	registry := NewRegistry()
	if _, ok := registry.Get(types.JobTypeFootprintCalculate); ok {
		t.Fatalf("empty registry must miss")
	}
	registry.Register(types.JobTypeFootprintCalculate, panicHandler{})
	if _, ok := registry.Get(types.JobTypeFootprintCalculate); !ok {
		t.Fatalf("registered handler must be found")
	}
}
