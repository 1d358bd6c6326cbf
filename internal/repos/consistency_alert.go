package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ecotrace/footprint-backend/internal/platform/logger"
	"github.com/ecotrace/footprint-backend/internal/types"
)

type ConsistencyAlertRepo interface {
	Create(ctx context.Context, tx *gorm.DB, alert *types.ConsistencyAlert) (*types.ConsistencyAlert, error)
	FindOpen(ctx context.Context, tx *gorm.DB, productID uuid.UUID, field string) (*types.ConsistencyAlert, error)
	ListActiveByCompany(ctx context.Context, tx *gorm.DB, companyID uuid.UUID) ([]*types.ConsistencyAlert, error)
	ListActiveByProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) ([]*types.ConsistencyAlert, error)
	ResolveForFields(ctx context.Context, tx *gorm.DB, productID uuid.UUID, fields []string) (int64, error)
}

type consistencyAlertRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConsistencyAlertRepo(db *gorm.DB, baseLog *logger.Logger) ConsistencyAlertRepo {
	return &consistencyAlertRepo{
		db:  db,
		log: baseLog.With("repo", "ConsistencyAlertRepo"),
	}
}

func (r *consistencyAlertRepo) Create(ctx context.Context, tx *gorm.DB, alert *types.ConsistencyAlert) (*types.ConsistencyAlert, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if alert == nil {
		return nil, nil
	}
	if err := transaction.WithContext(ctx).Create(alert).Error; err != nil {
		return nil, err
	}
	return alert, nil
}

func (r *consistencyAlertRepo) FindOpen(ctx context.Context, tx *gorm.DB, productID uuid.UUID, field string) (*types.ConsistencyAlert, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if productID == uuid.Nil || field == "" {
		return nil, nil
	}
	var alert types.ConsistencyAlert
	err := transaction.WithContext(ctx).
		Where("product_id = ? AND field = ? AND resolved = ?", productID, field, false).
		Order("detected_at DESC").
		Limit(1).
		Find(&alert).Error
	if err != nil {
		return nil, err
	}
	if alert.ID == uuid.Nil {
		return nil, nil
	}
	return &alert, nil
}

func (r *consistencyAlertRepo) ListActiveByCompany(ctx context.Context, tx *gorm.DB, companyID uuid.UUID) ([]*types.ConsistencyAlert, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ConsistencyAlert
	if companyID == uuid.Nil {
		return out, nil
	}
	err := transaction.WithContext(ctx).
		Where("company_id = ? AND resolved = ?", companyID, false).
		Order("detected_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *consistencyAlertRepo) ListActiveByProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) ([]*types.ConsistencyAlert, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ConsistencyAlert
	if productID == uuid.Nil {
		return out, nil
	}
	err := transaction.WithContext(ctx).
		Where("product_id = ? AND resolved = ?", productID, false).
		Order("detected_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *consistencyAlertRepo) ResolveForFields(ctx context.Context, tx *gorm.DB, productID uuid.UUID, fields []string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if productID == uuid.Nil || len(fields) == 0 {
		return 0, nil
	}
	now := time.Now()
	res := transaction.WithContext(ctx).
		Model(&types.ConsistencyAlert{}).
		Where("product_id = ? AND field IN ? AND resolved = ?", productID, fields, false).
		Updates(map[string]interface{}{
			"resolved":    true,
			"resolved_at": now,
			"updated_at":  now,
		})
	return res.RowsAffected, res.Error
}
