package types

import "time"

const (
	StageIngredients = "ingredients"
	StagePackaging   = "packaging"
	StageProcess     = "process"
	StageEndOfLife   = "end-of-life"
)

// StageImpact is the contribution of one lifecycle stage, per unit produced.
// Carbon in kg CO2e, water in liters, waste in kg of non-recovered material.
type StageImpact struct {
	Carbon float64 `json:"carbon"`
	Water  float64 `json:"water"`
	Waste  float64 `json:"waste"`
}

func (s StageImpact) Add(o StageImpact) StageImpact {
	return StageImpact{
		Carbon: s.Carbon + o.Carbon,
		Water:  s.Water + o.Water,
		Waste:  s.Waste + o.Waste,
	}
}

type StageBreakdown struct {
	Ingredients StageImpact `json:"ingredients"`
	Packaging   StageImpact `json:"packaging"`
	Process     StageImpact `json:"process"`
	EndOfLife   StageImpact `json:"end_of_life"`
}

// FootprintResult is the output of one product footprint calculation. Given
// the same product snapshot and dataset version the values are bit-identical
// across runs; only ComputedAt varies.
type FootprintResult struct {
	ProductID      string         `json:"product_id"`
	PerUnitCarbon  float64        `json:"per_unit_carbon"`
	PerUnitWater   float64        `json:"per_unit_water"`
	PerUnitWaste   float64        `json:"per_unit_waste"`
	AnnualCarbon   float64        `json:"annual_carbon"`
	AnnualWater    float64        `json:"annual_water"`
	AnnualWaste    float64        `json:"annual_waste"`
	Stages         StageBreakdown `json:"stages"`
	DataQuality    float64        `json:"data_quality"`
	Warnings       []string       `json:"warnings,omitempty"`
	DatasetVersion string         `json:"dataset_version"`
	ComputedAt     time.Time      `json:"computed_at"`
}

// PerUnit returns the per-unit total for a footprint field name.
func (r *FootprintResult) PerUnit(field string) float64 {
	if r == nil {
		return 0
	}
	switch field {
	case FieldCarbon:
		return r.PerUnitCarbon
	case FieldWater:
		return r.PerUnitWater
	case FieldWaste:
		return r.PerUnitWaste
	}
	return 0
}
