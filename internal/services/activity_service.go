package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ecotrace/footprint-backend/internal/catalog"
	"github.com/ecotrace/footprint-backend/internal/platform/apierr"
	"github.com/ecotrace/footprint-backend/internal/platform/logger"
	"github.com/ecotrace/footprint-backend/internal/repos"
	"github.com/ecotrace/footprint-backend/internal/types"
)

// ActivityService records manual Scope 1/2/3 activity data. Emissions are
// derived at write time from the canonical activity factor table; an entry's
// value never changes without its emissions being recomputed with it.
type ActivityService interface {
	Record(ctx context.Context, companyID uuid.UUID, dataType string, scope int, value float64, unit string) (*types.ActivityEntry, error)
	Recompute(ctx context.Context, entryID uuid.UUID, newValue float64) (*types.ActivityEntry, error)
	List(ctx context.Context, companyID uuid.UUID) ([]*types.ActivityEntry, error)
}

type activityService struct {
	db      *gorm.DB
	log     *logger.Logger
	entries repos.ActivityEntryRepo
	cat     *catalog.Catalog
}

func NewActivityService(db *gorm.DB, baseLog *logger.Logger, entries repos.ActivityEntryRepo, cat *catalog.Catalog) ActivityService {
	return &activityService{
		db:      db,
		log:     baseLog.With("service", "ActivityService"),
		entries: entries,
		cat:     cat,
	}
}

func (s *activityService) Record(ctx context.Context, companyID uuid.UUID, dataType string, scope int, value float64, unit string) (*types.ActivityEntry, error) {
	if companyID == uuid.Nil {
		return nil, apierr.New(400, "missing_company_id", fmt.Errorf("missing company_id"))
	}
	factor, ok := s.cat.ActivityFactor(dataType)
	if !ok {
		return nil, apierr.New(400, "unknown_data_type", fmt.Errorf("no emission factor for data type %q", dataType))
	}
	unit = strings.ToLower(strings.TrimSpace(unit))
	if unit != "" && unit != factor.Unit {
		return nil, apierr.New(400, "unit_mismatch", fmt.Errorf("data type %q expects unit %s, got %s", dataType, factor.Unit, unit))
	}
	if scope == 0 {
		scope = factor.Scope
	}
	if scope < 1 || scope > 3 {
		return nil, apierr.New(400, "invalid_scope", fmt.Errorf("scope must be 1, 2 or 3"))
	}

	now := time.Now()
	entry := &types.ActivityEntry{
		ID:                  uuid.New(),
		CompanyID:           companyID,
		DataType:            catalog.Normalize(dataType),
		Scope:               scope,
		Value:               value,
		Unit:                factor.Unit,
		EmissionsFactor:     factor.Factor,
		CalculatedEmissions: value * factor.Factor,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	created, err := s.entries.Create(ctx, nil, entry)
	if err != nil {
		return nil, fmt.Errorf("create activity entry: %w", err)
	}
	s.log.Info("activity entry recorded", "entry_id", created.ID, "data_type", created.DataType, "scope", created.Scope)
	return created, nil
}

// Recompute is the explicit replace path: the new value and its derived
// emissions are written together, using the factor frozen on the entry.
func (s *activityService) Recompute(ctx context.Context, entryID uuid.UUID, newValue float64) (*types.ActivityEntry, error) {
	entry, err := s.entries.GetByID(ctx, nil, entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, apierr.New(404, "entry_not_found", fmt.Errorf("activity entry %s not found", entryID))
	}
	if err := s.entries.ReplaceValue(ctx, nil, entryID, newValue, newValue*entry.EmissionsFactor); err != nil {
		return nil, fmt.Errorf("recompute activity entry: %w", err)
	}
	return s.entries.GetByID(ctx, nil, entryID)
}

func (s *activityService) List(ctx context.Context, companyID uuid.UUID) ([]*types.ActivityEntry, error) {
	return s.entries.ListByCompany(ctx, nil, companyID)
}
