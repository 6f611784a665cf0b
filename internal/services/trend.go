package services

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/habitlens-backend/internal/clients/openai"
	"github.com/yungbote/habitlens-backend/internal/docstore"
	"github.com/yungbote/habitlens-backend/internal/logger"
	"github.com/yungbote/habitlens-backend/internal/timeutil"
	"github.com/yungbote/habitlens-backend/internal/types"
)

// TrendSummarizer patches suggest_summary_daily into a freshly folded
// timeline using up to the last 7 day documents as history.
type TrendSummarizer interface {
	Patch(ctx context.Context, timeline *types.DailyTimeline, day time.Time, window openai.Window) error
}

type trendSummarizer struct {
	log         *logger.Logger
	ai          openai.Client
	store       *docstore.Store
	historyDays int
}

func NewTrendSummarizer(ai openai.Client, store *docstore.Store, historyDays int, baseLog *logger.Logger) TrendSummarizer {
	if historyDays <= 0 {
		historyDays = 7
	}
	return &trendSummarizer{
		log:         baseLog.With("service", "TrendSummarizer"),
		ai:          ai,
		store:       store,
		historyDays: historyDays,
	}
}

// Patch reads the prior days' documents (bounded concurrency, order restored
// after the join), extracts per day the last entry with a non-empty daily
// suggestion, and asks the provider for a trend summary. A reply that fails
// contract validation is logged and skipped; transport errors propagate.
func (t *trendSummarizer) Patch(ctx context.Context, timeline *types.DailyTimeline, day time.Time, window openai.Window) error {
	if timeline == nil || timeline.UserID == "" {
		return nil
	}

	history := make([]openai.DaySummary, t.historyDays)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := 0; i < t.historyDays; i++ {
		i := i
		// history[0] is the oldest day.
		histDay := day.AddDate(0, 0, i-t.historyDays)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entry := openai.DaySummary{Date: histDay.Format(timeutil.BucketDayLayout)}
			doc, found, err := t.store.ReadDay(timeline.UserID, histDay)
			if err != nil {
				t.log.Warn("Unreadable history document, treating as empty", "user_id", timeline.UserID, "day", entry.Date, "error", err)
			} else if found {
				entry.SuggestSummaryDaily = lastDailySuggestion(doc)
			}
			history[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	patch, err := t.ai.SummarizeTrend(ctx, openai.TrendRequest{
		Today:   *timeline,
		History: history,
		Window:  window,
	})
	if err != nil {
		if errors.Is(err, openai.ErrInvalidResponse) {
			t.log.Warn("Trend reply failed validation, leaving timeline unpatched", "user_id", timeline.UserID, "error", err)
			return nil
		}
		return err
	}

	timeline.SuggestSummaryDaily = patch.SuggestSummaryDaily
	return nil
}

// lastDailySuggestion returns the last analysis entry of a day document that
// carries a non-empty suggest_summary_daily, or "".
func lastDailySuggestion(doc *types.DayDocument) string {
	for i := len(doc.Analyses) - 1; i >= 0; i-- {
		if doc.Analyses[i].SuggestSummaryDaily != "" {
			return doc.Analyses[i].SuggestSummaryDaily
		}
	}
	return ""
}
