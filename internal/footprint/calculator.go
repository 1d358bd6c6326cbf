package footprint

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ecotrace/footprint-backend/internal/catalog"
	"github.com/ecotrace/footprint-backend/internal/platform/logger"
	"github.com/ecotrace/footprint-backend/internal/types"
)

// CalculationMethodAutomated marks cache entries produced by this calculator.
const CalculationMethodAutomated = "automated-lca-v1"

// Calculator combines ingredient, packaging, process and end-of-life
// contributions into a product footprint. Given the same product snapshot and
// dataset version the output values are identical across runs; only
// ComputedAt differs.
type Calculator struct {
	resolver           *Resolver
	electricityKgPerKW float64
	log                *logger.Logger
}

// NewCalculator builds a calculator bound to one dataset version via its
// resolver. electricityKgPerKWh converts user-supplied process energy into
// kg CO2e and comes from the same dataset as everything else.
func NewCalculator(resolver *Resolver, electricityKgPerKWh float64, baseLog *logger.Logger) *Calculator {
	return &Calculator{
		resolver:           resolver,
		electricityKgPerKW: electricityKgPerKWh,
		log:                baseLog.With("component", "FootprintCalculator"),
	}
}

func (c *Calculator) DatasetVersion() string { return c.resolver.DatasetVersion() }

// Calculate computes the product's per-unit and per-annum footprint. It fails
// only when the product snapshot itself is unusable; unknown materials and
// unit mismatches degrade to zero contributions with warnings.
func (c *Calculator) Calculate(ctx context.Context, product *types.Product) (*types.FootprintResult, error) {
	if product == nil || product.ID == uuid.Nil {
		return nil, fmt.Errorf("product not loaded")
	}
	ingredients, err := product.DecodeIngredients()
	if err != nil {
		return nil, fmt.Errorf("decode ingredients: %w", err)
	}
	packaging, err := product.DecodePackaging()
	if err != nil {
		return nil, fmt.Errorf("decode packaging: %w", err)
	}
	process, err := product.DecodeProcess()
	if err != nil {
		return nil, fmt.Errorf("decode process data: %w", err)
	}

	result := &types.FootprintResult{
		ProductID:      product.ID.String(),
		DatasetVersion: c.resolver.DatasetVersion(),
		ComputedAt:     time.Now().UTC(),
	}
	var warnings []string
	var exactMass, totalMass float64

	for _, ing := range ingredients {
		res, rErr := c.resolver.Resolve(ctx, ing.Material, ing.Amount, ing.Unit, ing.Category)
		if rErr != nil {
			return nil, rErr
		}
		result.Stages.Ingredients.Carbon += res.Carbon
		result.Stages.Ingredients.Water += res.Water
		if res.Warning != "" {
			warnings = append(warnings, res.Warning)
		}
		if base, _, bErr := baseAmount(ing.Amount, ing.Unit); bErr == nil {
			totalMass += base
			if res.DataQuality == DataQualityExact {
				exactMass += base
			}
		}
	}

	for _, component := range packagingComponents(packaging) {
		stage, waste, quality, warns, pErr := c.packagingImpact(ctx, component)
		if pErr != nil {
			return nil, pErr
		}
		result.Stages.Packaging = result.Stages.Packaging.Add(stage)
		result.Stages.EndOfLife.Waste += waste
		warnings = append(warnings, warns...)
		weightKg := component.WeightGrams / 1000
		totalMass += weightKg
		if quality == DataQualityExact {
			exactMass += weightKg
		}
	}

	// Process impact comes only from figures the user actually supplied.
	// Absent data contributes exactly zero: outputs may back published
	// environmental claims, so an estimated default must never masquerade
	// as measured data.
	if process != nil {
		if process.EnergyKWh != nil {
			result.Stages.Process.Carbon = *process.EnergyKWh * c.electricityKgPerKW
		}
		if process.WaterLiters != nil {
			result.Stages.Process.Water = *process.WaterLiters
		}
	}

	result.PerUnitCarbon = result.Stages.Ingredients.Carbon +
		result.Stages.Packaging.Carbon +
		result.Stages.Process.Carbon +
		result.Stages.EndOfLife.Carbon
	result.PerUnitWater = result.Stages.Ingredients.Water +
		result.Stages.Packaging.Water +
		result.Stages.Process.Water +
		result.Stages.EndOfLife.Water
	result.PerUnitWaste = result.Stages.Ingredients.Waste +
		result.Stages.Packaging.Waste +
		result.Stages.Process.Waste +
		result.Stages.EndOfLife.Waste

	result.AnnualCarbon = result.PerUnitCarbon * product.AnnualProductionVolume
	result.AnnualWater = result.PerUnitWater * product.AnnualProductionVolume
	result.AnnualWaste = result.PerUnitWaste * product.AnnualProductionVolume

	if totalMass > 0 {
		result.DataQuality = exactMass / totalMass
	} else {
		result.DataQuality = 1
	}
	result.Warnings = warnings
	return result, nil
}

type namedComponent struct {
	types.PackagingComponent
	role string
}

func packagingComponents(p *types.Packaging) []namedComponent {
	if p == nil {
		return nil
	}
	var out []namedComponent
	if p.Container != nil {
		out = append(out, namedComponent{*p.Container, "container"})
	}
	if p.Closure != nil {
		out = append(out, namedComponent{*p.Closure, "closure"})
	}
	if p.Label != nil {
		out = append(out, namedComponent{*p.Label, "label"})
	}
	return out
}

// packagingImpact computes one component's contribution as a recycled-content
// weighted blend of the material's virgin and recycled factors. Unrecorded
// recycled content means 0% recycled; a missing recycled-variant factor falls
// back to the virgin factor with a warning.
func (c *Calculator) packagingImpact(ctx context.Context, component namedComponent) (types.StageImpact, float64, string, []string, error) {
	var warns []string
	weightKg := component.WeightGrams / 1000
	if weightKg <= 0 || component.Material == "" {
		return types.StageImpact{}, 0, DataQualityUnavailable, nil, nil
	}

	recycledShare := 0.0
	if component.RecycledContentPct != nil {
		recycledShare = *component.RecycledContentPct / 100
		if recycledShare < 0 {
			recycledShare = 0
		}
		if recycledShare > 1 {
			recycledShare = 1
		}
	}
	virginShare := 1 - recycledShare

	virgin, err := c.resolver.Resolve(ctx, component.Material, weightKg, "kg", "packaging")
	if err != nil {
		return types.StageImpact{}, 0, "", nil, err
	}
	if virgin.Warning != "" {
		warns = append(warns, fmt.Sprintf("packaging %s: %s", component.role, virgin.Warning))
	}

	recycled := virgin
	if recycledShare > 0 {
		rres, rErr := c.resolver.Resolve(ctx, catalog.RecycledVariant(component.Material), weightKg, "kg", "")
		if rErr != nil {
			return types.StageImpact{}, 0, "", nil, rErr
		}
		if rres.DataQuality == DataQualityUnavailable {
			warns = append(warns, fmt.Sprintf("packaging %s: no recycled-content factor for %q, using virgin factor", component.role, component.Material))
		} else {
			recycled = rres
		}
	}

	stage := types.StageImpact{
		Carbon: virginShare*virgin.Carbon + recycledShare*recycled.Carbon,
		Water:  virginShare*virgin.Water + recycledShare*recycled.Water,
	}
	// End-of-life waste: the share of packaging mass not coming from a
	// recovered stream is treated as disposal-bound material.
	waste := weightKg * virginShare
	return stage, waste, virgin.DataQuality, warns, nil
}
