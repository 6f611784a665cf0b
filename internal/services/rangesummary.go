package services

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/habitlens-backend/internal/clients/openai"
	"github.com/yungbote/habitlens-backend/internal/docstore"
	"github.com/yungbote/habitlens-backend/internal/logger"
	"github.com/yungbote/habitlens-backend/internal/timeutil"
	"github.com/yungbote/habitlens-backend/internal/types"
)

// RangeSummaryService builds one multi-day roll-up for a user. Any existing
// summary covering the same range is archived first; superseded summaries
// are moved, never deleted.
type RangeSummaryService interface {
	BuildRangeSummary(ctx context.Context, userID string, from, to time.Time) (string, error)
}

type rangeSummaryService struct {
	log   *logger.Logger
	ai    openai.Client
	store *docstore.Store
}

func NewRangeSummaryService(ai openai.Client, store *docstore.Store, baseLog *logger.Logger) RangeSummaryService {
	return &rangeSummaryService{
		log:   baseLog.With("service", "RangeSummaryService"),
		ai:    ai,
		store: store,
	}
}

func (s *rangeSummaryService) BuildRangeSummary(ctx context.Context, userID string, from, to time.Time) (string, error) {
	files, err := s.store.ListRange(userID, from, to, true)
	if err != nil {
		return "", err
	}

	days := make([]types.DayDocument, 0, len(files))
	for _, f := range files {
		if f.Doc != nil {
			days = append(days, *f.Doc)
		}
	}

	archived, err := s.store.ArchiveSummaries(userID, from, to)
	if err != nil {
		return "", err
	}
	if len(archived) > 0 {
		s.log.Info("Superseded summaries archived", "user_id", userID, "count", len(archived))
	}

	summary, err := s.ai.SummarizeRange(ctx, openai.RangeRequest{
		UserID: userID,
		From:   from.In(timeutil.Zone).Format(timeutil.BucketDayLayout),
		To:     to.In(timeutil.Zone).Format(timeutil.BucketDayLayout),
		Days:   days,
	})
	if err != nil {
		return "", fmt.Errorf("summarize range for user %s: %w", userID, err)
	}

	path, err := s.store.WriteSummary(userID, from, to, summary)
	if err != nil {
		return "", err
	}
	s.log.Info("Wrote range summary", "user_id", userID, "path", path, "days", len(days))
	return path, nil
}
