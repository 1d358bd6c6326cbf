package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ecotrace/footprint-backend/internal/platform/logger"
	"github.com/ecotrace/footprint-backend/internal/repos"
	"github.com/ecotrace/footprint-backend/internal/types"
)

// Seed loads a dataset's material factors into the impact_factor table.
// Published versions are immutable: when rows for the version already exist
// the seed is a no-op, so a past calculation's metadata can never be changed
// retroactively by re-seeding.
func Seed(ctx context.Context, factors repos.ImpactFactorRepo, ds *DatasetFile, log *logger.Logger) error {
	count, err := factors.CountByVersion(ctx, nil, ds.DatasetVersion)
	if err != nil {
		return fmt.Errorf("count factors for version %s: %w", ds.DatasetVersion, err)
	}
	if count > 0 {
		log.Debug("dataset version already seeded", "dataset_version", ds.DatasetVersion, "rows", count)
		return nil
	}
	rows := make([]*types.ImpactFactor, 0, len(ds.Factors))
	for _, f := range ds.Factors {
		rows = append(rows, &types.ImpactFactor{
			ID:             uuid.New(),
			MaterialName:   f.Material,
			Category:       Normalize(f.Category),
			Subcategory:    f.Subcategory,
			Unit:           f.Unit,
			CarbonFactor:   f.Carbon,
			WaterFactor:    f.Water,
			EnergyFactor:   f.Energy,
			DatasetVersion: ds.DatasetVersion,
		})
	}
	if err := factors.CreateBatch(ctx, nil, rows); err != nil {
		return fmt.Errorf("seed impact factors: %w", err)
	}
	log.Info("impact factor dataset seeded", "dataset_version", ds.DatasetVersion, "rows", len(rows))
	return nil
}
