package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ecotrace/footprint-backend/internal/platform/logger"
	"github.com/ecotrace/footprint-backend/internal/repos"
	"github.com/ecotrace/footprint-backend/internal/types"
)

type fakeJobRepo struct {
	jobs map[uuid.UUID]*types.CalculationJob
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: map[uuid.UUID]*types.CalculationJob{}}
}

func (f *fakeJobRepo) EnqueueExclusive(ctx context.Context, tx *gorm.DB, job *types.CalculationJob) (*types.CalculationJob, error) {
	for _, j := range f.jobs {
		if j.ProductID == job.ProductID && !types.JobStatusTerminal(j.Status) {
			return nil, repos.ErrJobAlreadyActive
		}
	}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeJobRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.CalculationJob, error) {
	return f.jobs[id], nil
}

func (f *fakeJobRepo) ActiveForProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*types.CalculationJob, error) {
	for _, j := range f.jobs {
		if j.ProductID == productID && !types.JobStatusTerminal(j.Status) {
			return j, nil
		}
	}
	return nil, nil
}

func (f *fakeJobRepo) HistoryForProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID, limit int) ([]*types.CalculationJob, error) {
	var out []*types.CalculationJob
	for _, j := range f.jobs {
		if j.ProductID == productID {
			out = append(out, j)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeJobRepo) MostRecentCompleted(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*types.CalculationJob, error) {
	return nil, nil
}

func (f *fakeJobRepo) ClaimNextRunnable(ctx context.Context, tx *gorm.DB) (*types.CalculationJob, error) {
	return nil, nil
}

func (f *fakeJobRepo) UpdateFieldsUnlessStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, blocked []string, updates map[string]interface{}) (bool, error) {
	j, ok := f.jobs[id]
	if !ok {
		return false, nil
	}
	for _, status := range blocked {
		if j.Status == status {
			return false, nil
		}
	}
	if status, ok := updates["status"].(string); ok {
		j.Status = status
	}
	return true, nil
}

func (f *fakeJobRepo) Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return nil
}

func (f *fakeJobRepo) FailStaleRunning(ctx context.Context, tx *gorm.DB, staleAfter time.Duration, reason string) (int64, error) {
	return 0, nil
}

func (f *fakeJobRepo) PurgeTerminalBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	return 0, nil
}

type fakeProductRepo struct {
	products map[uuid.UUID]*types.Product
}

func (f *fakeProductRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Product, error) {
	return f.products[id], nil
}

func (f *fakeProductRepo) ListByCompany(ctx context.Context, tx *gorm.DB, companyID uuid.UUID) ([]*types.Product, error) {
	return nil, nil
}

func (f *fakeProductRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Product, error) {
	return nil, nil
}

func (f *fakeProductRepo) UpdateCachedFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	return nil
}

func newTestJobService(t *testing.T) (JobService, *fakeJobRepo, *types.Product) {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	product := &types.Product{ID: uuid.New(), CompanyID: uuid.New(), Name: "p"}
	products := &fakeProductRepo{products: map[uuid.UUID]*types.Product{product.ID: product}}
	jobRepo := newFakeJobRepo()
	return NewJobService(nil, log, jobRepo, products, NewNoopNotifier()), jobRepo, product
}

func TestSubmitCreatesPendingJob(t *testing.T) {
	svc, _, product := newTestJobService(t)

	job, err := svc.Submit(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != types.JobStatusPending {
		t.Fatalf("status: want=pending got=%q", job.Status)
	}
	if job.Stage != types.JobStageQueued {
		t.Fatalf("stage: want=queued got=%q", job.Stage)
	}
	if job.CompanyID != product.CompanyID {
		t.Fatalf("company id not copied from product")
	}
}

func TestSubmitRejectsDuplicateActiveJob(t *testing.T) {
	svc, _, product := newTestJobService(t)

	if _, err := svc.Submit(context.Background(), product.ID); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	_, err := svc.Submit(context.Background(), product.ID)
	if err == nil {
		t.Fatalf("second submit while active must be rejected")
	}
	if !errors.Is(err, repos.ErrJobAlreadyActive) {
		t.Fatalf("want ErrJobAlreadyActive, got %v", err)
	}
}

func TestSubmitAllowedAfterTerminalJob(t *testing.T) {
	svc, jobRepo, product := newTestJobService(t)

	first, err := svc.Submit(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	jobRepo.jobs[first.ID].Status = types.JobStatusCompleted

	if _, err := svc.Submit(context.Background(), product.ID); err != nil {
		t.Fatalf("submit after completion must be allowed: %v", err)
	}
}

func TestSubmitUnknownProduct(t *testing.T) {
	svc, _, _ := newTestJobService(t)

	if _, err := svc.Submit(context.Background(), uuid.New()); err == nil {
		t.Fatalf("expected error for unknown product")
	}
}

func TestCancelPendingJob(t *testing.T) {
	svc, jobRepo, product := newTestJobService(t)

	job, err := svc.Submit(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	cancelled, err := svc.Cancel(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != types.JobStatusCancelled {
		t.Fatalf("status: want=cancelled got=%q", cancelled.Status)
	}
	if jobRepo.jobs[job.ID].Status != types.JobStatusCancelled {
		t.Fatalf("stored status: want=cancelled got=%q", jobRepo.jobs[job.ID].Status)
	}
}

func TestCancelTerminalJobRejected(t *testing.T) {
	svc, jobRepo, product := newTestJobService(t)

	job, err := svc.Submit(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	jobRepo.jobs[job.ID].Status = types.JobStatusCompleted

	if _, err := svc.Cancel(context.Background(), job.ID); err == nil {
		t.Fatalf("cancelling a completed job must fail")
	}
}

func TestStatusUnknownJob(t *testing.T) {
	svc, _, _ := newTestJobService(t)

	if _, err := svc.Status(context.Background(), uuid.New()); err == nil {
		t.Fatalf("expected error for unknown job")
	}
}
