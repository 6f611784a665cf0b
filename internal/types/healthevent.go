package types

import (
	"time"

	"github.com/google/uuid"
)

// Event status labels, stored lower-case after normalization.
const (
	StatusNormal  = "normal"
	StatusWarning = "warning"
	StatusDanger  = "danger"
)

// Number is implemented by decimal-like confidence values that can surface
// a float64 (numeric columns scanned into driver decimals, for example).
type Number interface {
	ToNumber() float64
}

// HealthEvent is one immutable monitoring event from the event store.
// ConfidenceScore is deliberately loose: postgres numeric columns scan as
// strings, fixtures carry floats, and some upstream payloads ship decimal
// objects. The batcher coerces all of them.
type HealthEvent struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	UserID          string     `gorm:"index;not null" json:"user_id"`
	EventType       string     `json:"event_type"`
	Description     string     `json:"description"`
	ConfidenceScore any        `gorm:"type:decimal(4,3)" json:"confidence_score"`
	VerifiedBy      string     `json:"verified_by"`
	ConfirmStatus   bool       `json:"confirm_status"`
	Status          string     `gorm:"index" json:"status"`
	DetectedAt      *time.Time `gorm:"index" json:"detected_at"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (HealthEvent) TableName() string { return "health_events" }

// Timestamp returns the sortable detection time, preferring detected_at over
// created_at. The zero time means neither field is usable.
func (e *HealthEvent) Timestamp() time.Time {
	if e.DetectedAt != nil && !e.DetectedAt.IsZero() {
		return *e.DetectedAt
	}
	return e.CreatedAt
}
