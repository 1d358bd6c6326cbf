package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
)

// ConsistencyAlert records drift between a cached footprint value and a fresh
// recalculation. Alerts are resolved by an explicit sync or recover action,
// never silently cleared.
type ConsistencyAlert struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"product_id"`
	CompanyID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"company_id"`
	Severity          string     `gorm:"column:severity;not null;index" json:"severity"`
	Field             string     `gorm:"column:field;not null" json:"field"`
	StoredValue       float64    `gorm:"column:stored_value;not null" json:"stored_value"`
	RecalculatedValue float64    `gorm:"column:recalculated_value;not null" json:"recalculated_value"`
	PercentDifference float64    `gorm:"column:percent_difference;not null" json:"percent_difference"`
	DetectedAt        time.Time  `gorm:"column:detected_at;not null" json:"detected_at"`
	Resolved          bool       `gorm:"column:resolved;not null;default:false;index" json:"resolved"`
	ResolvedAt        *time.Time `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
	CreatedAt         time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (ConsistencyAlert) TableName() string { return "consistency_alert" }
