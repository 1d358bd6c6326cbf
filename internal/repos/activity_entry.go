package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ecotrace/footprint-backend/internal/platform/logger"
	"github.com/ecotrace/footprint-backend/internal/types"
)

type ActivityEntryRepo interface {
	Create(ctx context.Context, tx *gorm.DB, entry *types.ActivityEntry) (*types.ActivityEntry, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ActivityEntry, error)
	ListByCompany(ctx context.Context, tx *gorm.DB, companyID uuid.UUID) ([]*types.ActivityEntry, error)
	ListByCompanyScopes(ctx context.Context, tx *gorm.DB, companyID uuid.UUID, scopes []int) ([]*types.ActivityEntry, error)
	ReplaceValue(ctx context.Context, tx *gorm.DB, id uuid.UUID, value float64, calculatedEmissions float64) error
}

type activityEntryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActivityEntryRepo(db *gorm.DB, baseLog *logger.Logger) ActivityEntryRepo {
	return &activityEntryRepo{
		db:  db,
		log: baseLog.With("repo", "ActivityEntryRepo"),
	}
}

func (r *activityEntryRepo) Create(ctx context.Context, tx *gorm.DB, entry *types.ActivityEntry) (*types.ActivityEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if entry == nil {
		return nil, nil
	}
	if err := transaction.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *activityEntryRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ActivityEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var entry types.ActivityEntry
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.ID == uuid.Nil {
		return nil, nil
	}
	return &entry, nil
}

func (r *activityEntryRepo) ListByCompany(ctx context.Context, tx *gorm.DB, companyID uuid.UUID) ([]*types.ActivityEntry, error) {
	return r.ListByCompanyScopes(ctx, tx, companyID, nil)
}

func (r *activityEntryRepo) ListByCompanyScopes(ctx context.Context, tx *gorm.DB, companyID uuid.UUID, scopes []int) ([]*types.ActivityEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ActivityEntry
	if companyID == uuid.Nil {
		return out, nil
	}
	q := transaction.WithContext(ctx).Where("company_id = ?", companyID)
	if len(scopes) > 0 {
		q = q.Where("scope IN ?", scopes)
	}
	if err := q.Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ReplaceValue is the recompute-and-replace path: value and emissions move
// together in one update, so an entry is never left with a stale product.
func (r *activityEntryRepo) ReplaceValue(ctx context.Context, tx *gorm.DB, id uuid.UUID, value float64, calculatedEmissions float64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.ActivityEntry{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"value":                value,
			"calculated_emissions": calculatedEmissions,
			"updated_at":           time.Now(),
		}).Error
}
