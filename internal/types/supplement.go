package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Supplement is the read-only per-user context attached to every batch sent
// to the analysis provider. It is never mutated by this service.
type Supplement struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	UserID         string         `gorm:"uniqueIndex;not null" json:"user_id"`
	SleepStart     string         `json:"sleep_start"`
	SleepEnd       string         `json:"sleep_end"`
	SupplementInfo datatypes.JSON `json:"supplement_info"`
	MedicalHistory datatypes.JSON `json:"medical_history"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (Supplement) TableName() string { return "supplements" }
