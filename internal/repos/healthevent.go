package repos

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/habitlens-backend/internal/logger"
	"github.com/yungbote/habitlens-backend/internal/types"
)

// HealthEventRepo reads monitoring events from the event store. Read-only:
// events are created by the ingestion services, never here.
type HealthEventRepo interface {
	// GetRange returns events detected in [from, to) with a confidence
	// floor. minConfidence <= 0 disables the floor. The floor exists only
	// on this ranged path; GetLatest deliberately does not apply it.
	GetRange(ctx context.Context, tx *gorm.DB, from, to time.Time, minConfidence float64) ([]types.HealthEvent, error)
	// GetLatest returns the most recent events, newest first.
	GetLatest(ctx context.Context, tx *gorm.DB, limit int) ([]types.HealthEvent, error)
}

type healthEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewHealthEventRepo(db *gorm.DB, baseLog *logger.Logger) HealthEventRepo {
	repoLog := baseLog.With("repo", "HealthEventRepo")
	return &healthEventRepo{db: db, log: repoLog}
}

func (r *healthEventRepo) GetRange(ctx context.Context, tx *gorm.DB, from, to time.Time, minConfidence float64) ([]types.HealthEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []types.HealthEvent
	q := transaction.WithContext(ctx).
		Where("COALESCE(detected_at, created_at) >= ? AND COALESCE(detected_at, created_at) < ?", from, to)
	if minConfidence > 0 {
		q = q.Where("confidence_score >= ?", minConfidence)
	}
	if err := q.Order("COALESCE(detected_at, created_at) ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *healthEventRepo) GetLatest(ctx context.Context, tx *gorm.DB, limit int) ([]types.HealthEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 100
	}

	var results []types.HealthEvent
	if err := transaction.WithContext(ctx).
		Order("COALESCE(detected_at, created_at) DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
