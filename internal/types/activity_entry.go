package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityEntry is one manually recorded activity figure (fuel burned,
// electricity purchased, waste, travel). CalculatedEmissions is always
// Value × EmissionsFactor; the pair is replaced together, never patched.
type ActivityEntry struct {
	ID                  uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"company_id"`
	DataType            string         `gorm:"column:data_type;not null;index" json:"data_type"`
	Scope               int            `gorm:"column:scope;not null;index" json:"scope"`
	Value               float64        `gorm:"column:value;not null" json:"value"`
	Unit                string         `gorm:"column:unit;not null" json:"unit"`
	EmissionsFactor     float64        `gorm:"column:emissions_factor;not null" json:"emissions_factor"`
	CalculatedEmissions float64        `gorm:"column:calculated_emissions;not null" json:"calculated_emissions"`
	CreatedAt           time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ActivityEntry) TableName() string { return "activity_entry" }
