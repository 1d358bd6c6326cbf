package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/ecotrace/footprint-backend/internal/platform/logger"
	"github.com/ecotrace/footprint-backend/internal/types"
)

type ImpactFactorRepo interface {
	GetByName(ctx context.Context, tx *gorm.DB, normalizedName string, datasetVersion string) (*types.ImpactFactor, error)
	ListByCategory(ctx context.Context, tx *gorm.DB, category string, datasetVersion string) ([]types.ImpactFactor, error)
	CountByVersion(ctx context.Context, tx *gorm.DB, datasetVersion string) (int64, error)
	CreateBatch(ctx context.Context, tx *gorm.DB, factors []*types.ImpactFactor) error
}

type impactFactorRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewImpactFactorRepo(db *gorm.DB, baseLog *logger.Logger) ImpactFactorRepo {
	return &impactFactorRepo{
		db:  db,
		log: baseLog.With("repo", "ImpactFactorRepo"),
	}
}

func (r *impactFactorRepo) GetByName(ctx context.Context, tx *gorm.DB, normalizedName string, datasetVersion string) (*types.ImpactFactor, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if normalizedName == "" || datasetVersion == "" {
		return nil, nil
	}
	var factor types.ImpactFactor
	err := transaction.WithContext(ctx).
		Where("material_name = ? AND dataset_version = ?", normalizedName, datasetVersion).
		Limit(1).
		Find(&factor).Error
	if err != nil {
		return nil, err
	}
	if factor.MaterialName == "" {
		return nil, nil
	}
	return &factor, nil
}

func (r *impactFactorRepo) ListByCategory(ctx context.Context, tx *gorm.DB, category string, datasetVersion string) ([]types.ImpactFactor, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []types.ImpactFactor
	if category == "" || datasetVersion == "" {
		return out, nil
	}
	err := transaction.WithContext(ctx).
		Where("category = ? AND dataset_version = ?", category, datasetVersion).
		Order("material_name ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *impactFactorRepo) CountByVersion(ctx context.Context, tx *gorm.DB, datasetVersion string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.ImpactFactor{}).
		Where("dataset_version = ?", datasetVersion).
		Count(&count).Error
	return count, err
}

func (r *impactFactorRepo) CreateBatch(ctx context.Context, tx *gorm.DB, factors []*types.ImpactFactor) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(factors) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).Create(&factors).Error
}
