package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Footprint field names shared by the product cache, job results and
// consistency alerts.
const (
	FieldCarbon = "carbon"
	FieldWater  = "water"
	FieldWaste  = "waste"
)

type Ingredient struct {
	Material string  `json:"material"`
	Amount   float64 `json:"amount"`
	Unit     string  `json:"unit"`
	Category string  `json:"category,omitempty"`
}

// PackagingComponent is one physical packaging part. RecycledContentPct is a
// pointer so "not recorded" stays distinct from an explicit 0; unrecorded
// recycled content is treated as 0% (virgin material), never assumed recycled.
type PackagingComponent struct {
	Material           string   `json:"material"`
	WeightGrams        float64  `json:"weight_grams"`
	RecycledContentPct *float64 `json:"recycled_content_pct,omitempty"`
}

type Packaging struct {
	Container *PackagingComponent `json:"container,omitempty"`
	Closure   *PackagingComponent `json:"closure,omitempty"`
	Label     *PackagingComponent `json:"label,omitempty"`
}

// ProcessData holds user-supplied manufacturing figures. Nil pointers mean the
// figure was never measured; the process stage then contributes exactly zero.
type ProcessData struct {
	EnergyKWh   *float64 `json:"energy_kwh,omitempty"`
	WaterLiters *float64 `json:"water_liters,omitempty"`
}

// CachedFootprint is a derived value and only meaningful together with its
// dataset version and timestamp.
type CachedFootprint struct {
	Value             float64   `json:"value"`
	CalculationMethod string    `json:"calculation_method"`
	DatasetVersion    string    `json:"dataset_version"`
	ComputedAt        time.Time `json:"computed_at"`
}

type Product struct {
	ID                     uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID              uuid.UUID      `gorm:"type:uuid;not null;index" json:"company_id"`
	Name                   string         `gorm:"column:name;not null" json:"name"`
	Ingredients            datatypes.JSON `gorm:"column:ingredients;type:jsonb" json:"ingredients"`
	Packaging              datatypes.JSON `gorm:"column:packaging;type:jsonb" json:"packaging"`
	Process                datatypes.JSON `gorm:"column:process;type:jsonb" json:"process,omitempty"`
	AnnualProductionVolume float64        `gorm:"column:annual_production_volume;not null;default:0" json:"annual_production_volume"`
	CachedCarbon           datatypes.JSON `gorm:"column:cached_carbon;type:jsonb" json:"cached_carbon,omitempty"`
	CachedWater            datatypes.JSON `gorm:"column:cached_water;type:jsonb" json:"cached_water,omitempty"`
	CachedWaste            datatypes.JSON `gorm:"column:cached_waste;type:jsonb" json:"cached_waste,omitempty"`
	CreatedAt              time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt              time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt              gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Product) TableName() string { return "product" }

func (p *Product) DecodeIngredients() ([]Ingredient, error) {
	if p == nil || len(p.Ingredients) == 0 {
		return nil, nil
	}
	var out []Ingredient
	if err := json.Unmarshal(p.Ingredients, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Product) DecodePackaging() (*Packaging, error) {
	if p == nil || len(p.Packaging) == 0 {
		return nil, nil
	}
	var out Packaging
	if err := json.Unmarshal(p.Packaging, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *Product) DecodeProcess() (*ProcessData, error) {
	if p == nil || len(p.Process) == 0 {
		return nil, nil
	}
	var out ProcessData
	if err := json.Unmarshal(p.Process, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CachedField returns the decoded cache entry for a footprint field, or nil
// when the field was never calculated.
func (p *Product) CachedField(field string) (*CachedFootprint, error) {
	if p == nil {
		return nil, nil
	}
	var raw datatypes.JSON
	switch field {
	case FieldCarbon:
		raw = p.CachedCarbon
	case FieldWater:
		raw = p.CachedWater
	case FieldWaste:
		raw = p.CachedWaste
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var out CachedFootprint
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
