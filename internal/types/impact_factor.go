package types

import (
	"time"

	"github.com/google/uuid"
)

// ImpactFactor is one row of the external per-material impact dataset.
// Rows are immutable once seeded under a given dataset version.
type ImpactFactor struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MaterialName   string    `gorm:"column:material_name;not null;index:idx_factor_name_version,unique" json:"material_name"`
	Category       string    `gorm:"column:category;index" json:"category"`
	Subcategory    string    `gorm:"column:subcategory" json:"subcategory,omitempty"`
	Unit           string    `gorm:"column:unit;not null" json:"unit"`
	CarbonFactor   float64   `gorm:"column:carbon_factor;not null" json:"carbon_factor"`
	WaterFactor    float64   `gorm:"column:water_factor;not null" json:"water_factor"`
	EnergyFactor   float64   `gorm:"column:energy_factor;not null" json:"energy_factor"`
	DatasetVersion string    `gorm:"column:dataset_version;not null;index:idx_factor_name_version,unique" json:"dataset_version"`
	CreatedAt      time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (ImpactFactor) TableName() string { return "impact_factor" }
