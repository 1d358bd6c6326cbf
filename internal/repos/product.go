package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ecotrace/footprint-backend/internal/platform/logger"
	"github.com/ecotrace/footprint-backend/internal/types"
)

type ProductRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Product, error)
	ListByCompany(ctx context.Context, tx *gorm.DB, companyID uuid.UUID) ([]*types.Product, error)
	ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Product, error)
	UpdateCachedFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type productRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProductRepo(db *gorm.DB, baseLog *logger.Logger) ProductRepo {
	return &productRepo{
		db:  db,
		log: baseLog.With("repo", "ProductRepo"),
	}
}

func (r *productRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Product, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var product types.Product
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&product).Error
	if err != nil {
		return nil, err
	}
	if product.ID == uuid.Nil {
		return nil, nil
	}
	return &product, nil
}

func (r *productRepo) ListByCompany(ctx context.Context, tx *gorm.DB, companyID uuid.UUID) ([]*types.Product, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Product
	if companyID == uuid.Nil {
		return out, nil
	}
	err := transaction.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *productRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Product, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Product
	err := transaction.WithContext(ctx).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateCachedFields writes only the cached footprint columns. Product content
// is owned by the product-management side and is never written here; updated_at
// is left alone so cache writes are not mistaken for product edits.
func (r *productRepo) UpdateCachedFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	allowed := map[string]bool{
		"cached_carbon": true,
		"cached_water":  true,
		"cached_waste":  true,
	}
	filtered := make(map[string]interface{}, len(updates)+1)
	for k, v := range updates {
		if allowed[k] {
			filtered[k] = v
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	// UpdateColumns skips gorm's update-time tracking; a cache write must not
	// look like a product edit to the sync-conflict check.
	return transaction.WithContext(ctx).
		Model(&types.Product{}).
		Where("id = ?", id).
		UpdateColumns(filtered).Error
}
