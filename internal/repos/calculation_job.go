package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ecotrace/footprint-backend/internal/platform/logger"
	"github.com/ecotrace/footprint-backend/internal/types"
)

// ErrJobAlreadyActive is returned by EnqueueExclusive when a pending or
// running job already exists for the product.
var ErrJobAlreadyActive = errors.New("a calculation job is already active for this product")

type CalculationJobRepo interface {
	EnqueueExclusive(ctx context.Context, tx *gorm.DB, job *types.CalculationJob) (*types.CalculationJob, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.CalculationJob, error)
	ActiveForProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*types.CalculationJob, error)
	HistoryForProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID, limit int) ([]*types.CalculationJob, error)
	MostRecentCompleted(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*types.CalculationJob, error)
	ClaimNextRunnable(ctx context.Context, tx *gorm.DB) (*types.CalculationJob, error)
	UpdateFieldsUnlessStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, blockedStatuses []string, updates map[string]interface{}) (bool, error)
	Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	FailStaleRunning(ctx context.Context, tx *gorm.DB, staleAfter time.Duration, reason string) (int64, error)
	PurgeTerminalBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type calculationJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCalculationJobRepo(db *gorm.DB, baseLog *logger.Logger) CalculationJobRepo {
	return &calculationJobRepo{
		db:  db,
		log: baseLog.With("repo", "CalculationJobRepo"),
	}
}

var activeStatuses = []string{types.JobStatusPending, types.JobStatusRunning}

// EnqueueExclusive creates the job row only if no active job exists for the
// product. The existence check and the insert run in one transaction so two
// concurrent submissions cannot both pass the check.
func (r *calculationJobRepo) EnqueueExclusive(ctx context.Context, tx *gorm.DB, job *types.CalculationJob) (*types.CalculationJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if job == nil || job.ProductID == uuid.Nil {
		return nil, errors.New("missing product_id")
	}
	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		var existing types.CalculationJob
		qErr := txx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("product_id = ? AND status IN ?", job.ProductID, activeStatuses).
			Limit(1).
			Find(&existing).Error
		if qErr != nil {
			return qErr
		}
		if existing.ID != uuid.Nil {
			return ErrJobAlreadyActive
		}
		return txx.Create(job).Error
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *calculationJobRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.CalculationJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var job types.CalculationJob
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

func (r *calculationJobRepo) ActiveForProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*types.CalculationJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if productID == uuid.Nil {
		return nil, nil
	}
	var job types.CalculationJob
	err := transaction.WithContext(ctx).
		Where("product_id = ? AND status IN ?", productID, activeStatuses).
		Order("created_at DESC").
		Limit(1).
		Find(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

func (r *calculationJobRepo) HistoryForProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID, limit int) ([]*types.CalculationJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.CalculationJob
	if productID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 {
		limit = 50
	}
	err := transaction.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *calculationJobRepo) MostRecentCompleted(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*types.CalculationJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if productID == uuid.Nil {
		return nil, nil
	}
	var job types.CalculationJob
	err := transaction.WithContext(ctx).
		Where("product_id = ? AND status = ?", productID, types.JobStatusCompleted).
		Order("completed_at DESC").
		Limit(1).
		Find(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

// ClaimNextRunnable picks the oldest pending job and marks it running in one
// transaction, with SKIP LOCKED so concurrent workers never double-claim.
func (r *calculationJobRepo) ClaimNextRunnable(ctx context.Context, tx *gorm.DB) (*types.CalculationJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	var claimed *types.CalculationJob
	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		var job types.CalculationJob
		qErr := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", types.JobStatusPending).
			Order("created_at ASC").
			First(&job).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := txx.Model(&types.CalculationJob{}).
			Where("id = ?", job.ID).
			Updates(map[string]interface{}{
				"status":       types.JobStatusRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"started_at":   now,
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			}).Error
		if uErr != nil {
			return uErr
		}
		job.Status = types.JobStatusRunning
		job.StartedAt = &now
		job.LockedAt = &now
		job.HeartbeatAt = &now
		job.UpdatedAt = now
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// UpdateFieldsUnlessStatus applies updates only while the row is not in one of
// the blocked statuses. Returns false when the guard rejected the write, which
// is how cooperative cancellation is observed at checkpoint boundaries.
func (r *calculationJobRepo) UpdateFieldsUnlessStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, blockedStatuses []string, updates map[string]interface{}) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	q := transaction.WithContext(ctx).
		Model(&types.CalculationJob{}).
		Where("id = ?", id)
	if len(blockedStatuses) > 0 {
		q = q.Where("status NOT IN ?", blockedStatuses)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *calculationJobRepo) Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	now := time.Now()
	return transaction.WithContext(ctx).
		Model(&types.CalculationJob{}).
		Where("id = ? AND status = ?", id, types.JobStatusRunning).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
}

// FailStaleRunning marks running jobs whose heartbeat stopped as failed. This
// is the job timeout: a stuck execution is released rather than reclaimed.
func (r *calculationJobRepo) FailStaleRunning(ctx context.Context, tx *gorm.DB, staleAfter time.Duration, reason string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	cutoff := now.Add(-staleAfter)
	res := transaction.WithContext(ctx).
		Model(&types.CalculationJob{}).
		Where("status = ? AND heartbeat_at IS NOT NULL AND heartbeat_at < ?", types.JobStatusRunning, cutoff).
		Updates(map[string]interface{}{
			"status":        types.JobStatusFailed,
			"error":         reason,
			"last_error_at": now,
			"locked_at":     nil,
			"completed_at":  now,
			"updated_at":    now,
		})
	return res.RowsAffected, res.Error
}

func (r *calculationJobRepo) PurgeTerminalBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Where("status IN ? AND updated_at < ?",
			[]string{types.JobStatusCompleted, types.JobStatusFailed, types.JobStatusCancelled}, cutoff).
		Delete(&types.CalculationJob{})
	return res.RowsAffected, res.Error
}
