package footprint

import (
	"context"
	"fmt"

	"github.com/ecotrace/footprint-backend/internal/catalog"
	"github.com/ecotrace/footprint-backend/internal/platform/logger"
	"github.com/ecotrace/footprint-backend/internal/repos"
	"github.com/ecotrace/footprint-backend/internal/types"
)

const (
	DataQualityExact            = "exact"
	DataQualityCategoryEstimate = "category-estimate"
	DataQualityUnavailable      = "unavailable"
)

// Resolution is the impact of a single resolved material amount. Carbon in
// kg CO2e, water in liters, energy in kWh. A non-empty Warning marks a value
// that was estimated or zeroed; the caller surfaces it, never drops it.
type Resolution struct {
	Carbon      float64
	Water       float64
	Energy      float64
	DataQuality string
	Warning     string
}

// Resolver looks up per-unit impact factors with an explicit layered fallback:
// exact catalog match, then category average, then zero-with-warning. The
// order is policy, not exception handling; a calculation never aborts because
// a material is unknown.
type Resolver struct {
	factors        repos.ImpactFactorRepo
	datasetVersion string
	log            *logger.Logger
}

func NewResolver(factors repos.ImpactFactorRepo, datasetVersion string, baseLog *logger.Logger) *Resolver {
	return &Resolver{
		factors:        factors,
		datasetVersion: datasetVersion,
		log:            baseLog.With("component", "MaterialResolver"),
	}
}

func (r *Resolver) DatasetVersion() string { return r.datasetVersion }

type resolveLayer func(ctx context.Context, name string, amount float64, unit string, categoryHint string) (*Resolution, error)

// Resolve returns the impact of amount/unit of the named material. Errors are
// infrastructure failures only (catalog unreachable); missing data and unit
// mismatches come back as recovered zero/estimate resolutions.
func (r *Resolver) Resolve(ctx context.Context, materialName string, amount float64, unit string, categoryHint string) (Resolution, error) {
	name := catalog.Normalize(materialName)
	layers := []resolveLayer{r.exactMatch, r.categoryEstimate}
	for _, layer := range layers {
		res, err := layer(ctx, name, amount, unit, categoryHint)
		if err != nil {
			return Resolution{}, err
		}
		if res != nil {
			return *res, nil
		}
	}
	return Resolution{
		DataQuality: DataQualityUnavailable,
		Warning:     fmt.Sprintf("no impact data for material %q; contributes zero", name),
	}, nil
}

func (r *Resolver) exactMatch(ctx context.Context, name string, amount float64, unit string, _ string) (*Resolution, error) {
	factor, err := r.factors.GetByName(ctx, nil, name, r.datasetVersion)
	if err != nil {
		return nil, fmt.Errorf("factor lookup %q: %w", name, err)
	}
	if factor == nil {
		return nil, nil
	}
	native, convErr := ConvertAmount(amount, unit, factor.Unit)
	if convErr != nil {
		return &Resolution{
			DataQuality: DataQualityUnavailable,
			Warning:     fmt.Sprintf("material %q: unit %s does not convert to factor unit %s; contributes zero", name, unit, factor.Unit),
		}, nil
	}
	return &Resolution{
		Carbon:      native * factor.CarbonFactor,
		Water:       native * factor.WaterFactor,
		Energy:      native * factor.EnergyFactor,
		DataQuality: DataQualityExact,
	}, nil
}

// categoryEstimate averages the category's factors, normalized to the base
// unit of the requested dimension. Factors of the other dimension are skipped;
// an empty category yields no estimate and the pipeline falls through to the
// unavailable layer.
func (r *Resolver) categoryEstimate(ctx context.Context, name string, amount float64, unit string, categoryHint string) (*Resolution, error) {
	category := catalog.Normalize(categoryHint)
	if category == "" {
		return nil, nil
	}
	amountBase, dim, err := baseAmount(amount, unit)
	if err != nil {
		return &Resolution{
			DataQuality: DataQualityUnavailable,
			Warning:     fmt.Sprintf("material %q: unsupported unit %q; contributes zero", name, unit),
		}, nil
	}
	factors, err := r.factors.ListByCategory(ctx, nil, category, r.datasetVersion)
	if err != nil {
		return nil, fmt.Errorf("category lookup %q: %w", category, err)
	}
	var carbonSum, waterSum, energySum float64
	var count int
	for _, f := range factors {
		perOne, fdim, convErr := perBaseUnit(f)
		if convErr != nil || fdim != dim {
			continue
		}
		carbonSum += perOne.Carbon
		waterSum += perOne.Water
		energySum += perOne.Energy
		count++
	}
	if count == 0 {
		return nil, nil
	}
	n := float64(count)
	return &Resolution{
		Carbon:      amountBase * carbonSum / n,
		Water:       amountBase * waterSum / n,
		Energy:      amountBase * energySum / n,
		DataQuality: DataQualityCategoryEstimate,
		Warning:     fmt.Sprintf("material %q estimated from category %q average", name, category),
	}, nil
}

// perBaseUnit rescales a factor record to per-kg or per-L.
func perBaseUnit(f types.ImpactFactor) (Resolution, Dimension, error) {
	unitInBase, dim, err := baseAmount(1, f.Unit)
	if err != nil || unitInBase == 0 {
		return Resolution{}, DimensionUnknown, fmt.Errorf("factor %q: bad unit %q", f.MaterialName, f.Unit)
	}
	return Resolution{
		Carbon: f.CarbonFactor / unitInBase,
		Water:  f.WaterFactor / unitInBase,
		Energy: f.EnergyFactor / unitInBase,
	}, dim, nil
}
