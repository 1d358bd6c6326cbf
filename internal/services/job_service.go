package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ecotrace/footprint-backend/internal/platform/apierr"
	"github.com/ecotrace/footprint-backend/internal/platform/logger"
	"github.com/ecotrace/footprint-backend/internal/repos"
	"github.com/ecotrace/footprint-backend/internal/types"
)

// JobService is the submission/status surface of the calculation orchestrator.
// Submission returns immediately with the job id; callers poll Status. The
// worker owns all subsequent writes to the job row.
type JobService interface {
	Submit(ctx context.Context, productID uuid.UUID) (*types.CalculationJob, error)
	Status(ctx context.Context, jobID uuid.UUID) (*types.CalculationJob, error)
	Cancel(ctx context.Context, jobID uuid.UUID) (*types.CalculationJob, error)
	History(ctx context.Context, productID uuid.UUID, limit int) ([]*types.CalculationJob, error)
}

type jobService struct {
	db       *gorm.DB
	log      *logger.Logger
	jobs     repos.CalculationJobRepo
	products repos.ProductRepo
	notify   JobNotifier
}

func NewJobService(db *gorm.DB, baseLog *logger.Logger, jobs repos.CalculationJobRepo, products repos.ProductRepo, notify JobNotifier) JobService {
	return &jobService{
		db:       db,
		log:      baseLog.With("service", "JobService"),
		jobs:     jobs,
		products: products,
		notify:   notify,
	}
}

func (s *jobService) Submit(ctx context.Context, productID uuid.UUID) (*types.CalculationJob, error) {
	if productID == uuid.Nil {
		return nil, apierr.New(400, "missing_product_id", fmt.Errorf("missing product_id"))
	}
	product, err := s.products.GetByID(ctx, nil, productID)
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	if product == nil {
		return nil, apierr.New(404, "product_not_found", fmt.Errorf("product %s not found", productID))
	}

	payload, _ := json.Marshal(map[string]any{"product_id": productID.String()})
	now := time.Now()
	job := &types.CalculationJob{
		ID:        uuid.New(),
		ProductID: productID,
		CompanyID: product.CompanyID,
		JobType:   types.JobTypeFootprintCalculate,
		Status:    types.JobStatusPending,
		Stage:     types.JobStageQueued,
		Progress:  0,
		Payload:   datatypes.JSON(payload),
		CreatedAt: now,
		UpdatedAt: now,
	}
	created, err := s.jobs.EnqueueExclusive(ctx, nil, job)
	if err != nil {
		if errors.Is(err, repos.ErrJobAlreadyActive) {
			return nil, apierr.New(409, "job_already_active", err)
		}
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	s.log.Info("calculation job submitted", "job_id", created.ID, "product_id", productID)
	return created, nil
}

func (s *jobService) Status(ctx context.Context, jobID uuid.UUID) (*types.CalculationJob, error) {
	job, err := s.jobs.GetByID(ctx, nil, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, apierr.New(404, "job_not_found", fmt.Errorf("job %s not found", jobID))
	}
	return job, nil
}

// Cancel requests cooperative cancellation. The guarded update refuses
// terminal rows, so a finished job stays finished; a running handler observes
// the new status at its next checkpoint and stops.
func (s *jobService) Cancel(ctx context.Context, jobID uuid.UUID) (*types.CalculationJob, error) {
	job, err := s.Status(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if types.JobStatusTerminal(job.Status) {
		return nil, apierr.New(409, "job_terminal", fmt.Errorf("job %s already %s", jobID, job.Status))
	}
	now := time.Now()
	ok, err := s.jobs.UpdateFieldsUnlessStatus(ctx, nil, jobID,
		[]string{types.JobStatusCompleted, types.JobStatusFailed, types.JobStatusCancelled},
		map[string]interface{}{
			"status":       types.JobStatusCancelled,
			"locked_at":    nil,
			"completed_at": now,
			"updated_at":   now,
		})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierr.New(409, "job_terminal", fmt.Errorf("job %s reached a terminal state first", jobID))
	}
	s.log.Info("calculation job cancelled", "job_id", jobID)
	return s.Status(ctx, jobID)
}

func (s *jobService) History(ctx context.Context, productID uuid.UUID, limit int) ([]*types.CalculationJob, error) {
	return s.jobs.HistoryForProduct(ctx, nil, productID, limit)
}
