package emissions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ecotrace/footprint-backend/internal/catalog"
	"github.com/ecotrace/footprint-backend/internal/footprint"
	"github.com/ecotrace/footprint-backend/internal/platform/logger"
	"github.com/ecotrace/footprint-backend/internal/repos"
	"github.com/ecotrace/footprint-backend/internal/types"
)

const kgPerTonne = 1000.0

// Summary holds a company's emissions ledger in kg CO2e. Everything is summed
// in this one canonical unit; conversion to reporting units happens only at
// the boundary, so parallel paths cannot diverge by rounding at different
// stages.
type Summary struct {
	CompanyID          uuid.UUID `json:"company_id"`
	Scope1             float64   `json:"scope1"`
	Scope2             float64   `json:"scope2"`
	Scope3Automated    float64   `json:"scope3_automated"`
	Scope3Manual       float64   `json:"scope3_manual"`
	PurchasedGoods     float64   `json:"purchased_goods"`
	FuelEnergyUpstream float64   `json:"fuel_energy_upstream"`
	Total              float64   `json:"total"`
	DatasetVersion     string    `json:"dataset_version"`
	ComputedAt         time.Time `json:"computed_at"`
	Warnings           []string  `json:"warnings,omitempty"`
}

// SummaryTonnes is the reporting-unit view of a Summary.
type SummaryTonnes struct {
	CompanyID          uuid.UUID `json:"company_id"`
	Scope1             float64   `json:"scope1_tonnes"`
	Scope2             float64   `json:"scope2_tonnes"`
	Scope3Automated    float64   `json:"scope3_automated_tonnes"`
	Scope3Manual       float64   `json:"scope3_manual_tonnes"`
	PurchasedGoods     float64   `json:"purchased_goods_tonnes"`
	FuelEnergyUpstream float64   `json:"fuel_energy_upstream_tonnes"`
	Total              float64   `json:"total_tonnes"`
	DatasetVersion     string    `json:"dataset_version"`
	ComputedAt         time.Time `json:"computed_at"`
	Warnings           []string  `json:"warnings,omitempty"`
}

// Tonnes converts at the reporting boundary, after all sums are final.
func (s *Summary) Tonnes() SummaryTonnes {
	return SummaryTonnes{
		CompanyID:          s.CompanyID,
		Scope1:             s.Scope1 / kgPerTonne,
		Scope2:             s.Scope2 / kgPerTonne,
		Scope3Automated:    s.Scope3Automated / kgPerTonne,
		Scope3Manual:       s.Scope3Manual / kgPerTonne,
		PurchasedGoods:     s.PurchasedGoods / kgPerTonne,
		FuelEnergyUpstream: s.FuelEnergyUpstream / kgPerTonne,
		Total:              s.Total / kgPerTonne,
		DatasetVersion:     s.DatasetVersion,
		ComputedAt:         s.ComputedAt,
		Warnings:           s.Warnings,
	}
}

// Aggregator rolls activity entries and product footprints into the company
// ledger. It reads cached product footprints and recomputes stale ones
// inline, but never writes anything back; cache writes stay with the sync
// service.
type Aggregator struct {
	products   repos.ProductRepo
	entries    repos.ActivityEntryRepo
	cat        *catalog.Catalog
	calc       *footprint.Calculator
	staleAfter time.Duration
	log        *logger.Logger
}

func NewAggregator(
	products repos.ProductRepo,
	entries repos.ActivityEntryRepo,
	cat *catalog.Catalog,
	calc *footprint.Calculator,
	staleAfter time.Duration,
	baseLog *logger.Logger,
) *Aggregator {
	return &Aggregator{
		products:   products,
		entries:    entries,
		cat:        cat,
		calc:       calc,
		staleAfter: staleAfter,
		log:        baseLog.With("component", "EmissionsAggregator"),
	}
}

func (a *Aggregator) Aggregate(ctx context.Context, companyID uuid.UUID) (*Summary, error) {
	if companyID == uuid.Nil {
		return nil, fmt.Errorf("missing company_id")
	}
	entries, err := a.entries.ListByCompany(ctx, nil, companyID)
	if err != nil {
		return nil, fmt.Errorf("load activity entries: %w", err)
	}
	summary := &Summary{
		CompanyID:      companyID,
		DatasetVersion: a.cat.Version(),
		ComputedAt:     time.Now().UTC(),
	}

	for _, entry := range entries {
		switch entry.Scope {
		case 1:
			summary.Scope1 += entry.CalculatedEmissions
		case 2:
			summary.Scope2 += entry.CalculatedEmissions
		case 3:
			summary.Scope3Manual += entry.CalculatedEmissions
		}
		// Upstream losses apply to the scope 1/2 activity value with a
		// factor table separate from direct combustion.
		if entry.Scope == 1 || entry.Scope == 2 {
			if upstream, ok := a.cat.UpstreamFactor(entry.DataType); ok {
				summary.FuelEnergyUpstream += entry.Value * upstream
			}
		}
	}

	purchased, warnings, err := a.purchasedGoods(ctx, companyID)
	if err != nil {
		return nil, err
	}
	summary.PurchasedGoods = purchased
	summary.Warnings = warnings

	summary.Scope3Automated = summary.PurchasedGoods + summary.FuelEnergyUpstream
	summary.Total = summary.Scope1 + summary.Scope2 + summary.Scope3Automated + summary.Scope3Manual
	return summary, nil
}

// purchasedGoods sums per-unit carbon × annual volume over the company's
// products, in kg. A cache entry is used as-is while fresh; a missing, stale
// or version-mismatched cache triggers an inline recalculation of just that
// product.
func (a *Aggregator) purchasedGoods(ctx context.Context, companyID uuid.UUID) (float64, []string, error) {
	products, err := a.products.ListByCompany(ctx, nil, companyID)
	if err != nil {
		return 0, nil, fmt.Errorf("load products: %w", err)
	}
	var total float64
	var warnings []string
	for _, product := range products {
		perUnit, ok, cErr := a.freshCachedCarbon(product)
		if cErr != nil {
			warnings = append(warnings, fmt.Sprintf("product %s: unreadable footprint cache, recalculating", product.ID))
			ok = false
		}
		if !ok {
			result, rErr := a.calc.Calculate(ctx, product)
			if rErr != nil {
				return 0, nil, fmt.Errorf("recalculate product %s: %w", product.ID, rErr)
			}
			perUnit = result.PerUnitCarbon
		}
		total += perUnit * product.AnnualProductionVolume
	}
	return total, warnings, nil
}

func (a *Aggregator) freshCachedCarbon(product *types.Product) (float64, bool, error) {
	cached, err := product.CachedField(types.FieldCarbon)
	if err != nil {
		return 0, false, err
	}
	if cached == nil {
		return 0, false, nil
	}
	if cached.DatasetVersion != a.cat.Version() {
		return 0, false, nil
	}
	if a.staleAfter > 0 && time.Since(cached.ComputedAt) > a.staleAfter {
		return 0, false, nil
	}
	return cached.Value, true, nil
}
