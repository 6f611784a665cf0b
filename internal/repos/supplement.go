package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/yungbote/habitlens-backend/internal/logger"
	"github.com/yungbote/habitlens-backend/internal/types"
)

// SupplementRepo reads per-user context snapshots attached to batches.
type SupplementRepo interface {
	GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []string) (map[string]*types.Supplement, error)
}

type supplementRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSupplementRepo(db *gorm.DB, baseLog *logger.Logger) SupplementRepo {
	repoLog := baseLog.With("repo", "SupplementRepo")
	return &supplementRepo{db: db, log: repoLog}
}

func (r *supplementRepo) GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []string) (map[string]*types.Supplement, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	out := make(map[string]*types.Supplement, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	var results []*types.Supplement
	if err := transaction.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	for _, s := range results {
		out[s.UserID] = s
	}
	return out, nil
}
