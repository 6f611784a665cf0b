package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yungbote/habitlens-backend/internal/batcher"
	"github.com/yungbote/habitlens-backend/internal/clients/openai"
	"github.com/yungbote/habitlens-backend/internal/docstore"
	"github.com/yungbote/habitlens-backend/internal/folder"
	"github.com/yungbote/habitlens-backend/internal/logger"
	"github.com/yungbote/habitlens-backend/internal/repos"
	"github.com/yungbote/habitlens-backend/internal/timeutil"
	"github.com/yungbote/habitlens-backend/internal/types"
)

// AnalysisService drives one pipeline run: fetch window -> batch -> call the
// analysis provider per batch -> fold per user -> trend patch -> persist.
type AnalysisService interface {
	// RebuildWindow runs the full pipeline for every user with events in
	// [from, to).
	RebuildWindow(ctx context.Context, from, to time.Time) error
	// InvalidateAndRebuild deletes the notified user's bucket-day document
	// and reruns the pipeline for the noon-to-noon window containing it.
	InvalidateAndRebuild(ctx context.Context, payload types.ChangePayload) error
	// RunDaily rebuilds the most recently closed noon-to-noon window.
	RunDaily(ctx context.Context) error
}

// AnalysisConfig carries the per-run knobs.
type AnalysisConfig struct {
	// MinConfidence is the floor applied to the ranged fetch path only.
	// Other fetch paths deliberately skip it.
	MinConfidence float64
	Batch         batcher.Config
}

type analysisService struct {
	log         *logger.Logger
	events      repos.HealthEventRepo
	supplements repos.SupplementRepo
	ai          openai.Client
	store       *docstore.Store
	trend       TrendSummarizer
	cfg         AnalysisConfig
	now         func() time.Time

	// One in-flight rebuild per bucket day. The document store itself has
	// no write guard, so serialization happens here.
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewAnalysisService(events repos.HealthEventRepo, supplements repos.SupplementRepo, ai openai.Client, store *docstore.Store, trend TrendSummarizer, cfg AnalysisConfig, baseLog *logger.Logger) AnalysisService {
	return &analysisService{
		log:         baseLog.With("service", "AnalysisService"),
		events:      events,
		supplements: supplements,
		ai:          ai,
		store:       store,
		trend:       trend,
		cfg:         cfg,
		now:         time.Now,
		inFlight:    make(map[string]struct{}),
	}
}

func (s *analysisService) RebuildWindow(ctx context.Context, from, to time.Time) error {
	return s.rebuildWindow(ctx, from, to, "")
}

func (s *analysisService) RunDaily(ctx context.Context) error {
	to := timeutil.MostRecentNoon(s.now())
	from := to.AddDate(0, 0, -1)
	return s.rebuildWindow(ctx, from, to, "")
}

func (s *analysisService) InvalidateAndRebuild(ctx context.Context, payload types.ChangePayload) error {
	if payload.UserID == "" {
		return fmt.Errorf("change payload has no user_id")
	}
	day, err := resolveBucketDay(payload)
	if err != nil {
		return err
	}

	if err := s.store.Delete(payload.UserID, day); err != nil {
		return err
	}
	s.log.Info("Invalidated day document",
		"user_id", payload.UserID,
		"bucket_day", day.Format(timeutil.BucketDayLayout),
		"source_trigger", payload.SourceTrigger,
	)

	from, to := timeutil.NoonWindow(day)
	return s.rebuildWindow(ctx, from, to, payload.UserID)
}

// resolveBucketDay prefers an explicit bucket_day over deriving one from
// detected_at via the noon-anchored rule.
func resolveBucketDay(payload types.ChangePayload) (time.Time, error) {
	if payload.BucketDay != "" {
		day, err := timeutil.ParseBucketDay(payload.BucketDay)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid bucket_day %q: %w", payload.BucketDay, err)
		}
		return day, nil
	}
	if payload.DetectedAt != "" {
		detected, err := time.Parse(time.RFC3339, payload.DetectedAt)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid detected_at %q: %w", payload.DetectedAt, err)
		}
		return timeutil.BucketDay(detected), nil
	}
	return time.Time{}, fmt.Errorf("change payload has neither bucket_day nor detected_at")
}

// rebuildWindow is the whole pipeline. onlyUser narrows an
// invalidation-triggered rebuild to the notified user so other users' day
// documents are not appended to twice.
func (s *analysisService) rebuildWindow(ctx context.Context, from, to time.Time, onlyUser string) error {
	day := timeutil.BucketDay(from)
	key := day.Format(timeutil.BucketDayLayout)
	if onlyUser != "" {
		key = onlyUser + "/" + key
	}

	s.mu.Lock()
	if _, busy := s.inFlight[key]; busy {
		s.mu.Unlock()
		s.log.Warn("Rebuild already in flight, skipping", "key", key)
		return nil
	}
	s.inFlight[key] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inFlight, key)
		s.mu.Unlock()
	}()

	eventsByUser, supplements, err := s.fetchWindow(ctx, from, to, onlyUser)
	if err != nil {
		return err
	}
	if len(eventsByUser) == 0 {
		s.log.Info("No events in window", "from", from, "to", to)
		return nil
	}

	timelines, userOrder, err := s.runBatchAnalysis(ctx, eventsByUser, supplements)
	if err != nil {
		return err
	}

	window := openai.Window{From: from, To: to}
	for _, user := range userOrder {
		timeline := timelines[user]
		if err := s.trend.Patch(ctx, timeline, day, window); err != nil {
			return fmt.Errorf("trend patch for user %s: %w", user, err)
		}
	}

	return s.persistWindow(day, timelines, userOrder)
}

func (s *analysisService) fetchWindow(ctx context.Context, from, to time.Time, onlyUser string) (map[string][]types.HealthEvent, map[string]*types.Supplement, error) {
	events, err := s.events.GetRange(ctx, nil, from, to, s.cfg.MinConfidence)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch event window: %w", err)
	}

	byUser := make(map[string][]types.HealthEvent)
	var userIDs []string
	for _, e := range events {
		if onlyUser != "" && e.UserID != onlyUser {
			continue
		}
		if _, seen := byUser[e.UserID]; !seen {
			userIDs = append(userIDs, e.UserID)
		}
		byUser[e.UserID] = append(byUser[e.UserID], e)
	}
	if len(byUser) == 0 {
		return byUser, nil, nil
	}

	supplements, err := s.supplements.GetByUserIDs(ctx, nil, userIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch supplements: %w", err)
	}
	return byUser, supplements, nil
}

// runBatchAnalysis calls the provider once per batch, strictly sequentially
// and in the batcher's globally sorted order, then folds each user's
// analyses into one timeline. An error aborts the remaining batches and
// propagates.
func (s *analysisService) runBatchAnalysis(ctx context.Context, eventsByUser map[string][]types.HealthEvent, supplements map[string]*types.Supplement) (map[string]*types.DailyTimeline, []string, error) {
	batches := batcher.BatchAllUsers(eventsByUser, supplements, s.cfg.Batch)
	s.log.Info("Batched window events", "users", len(eventsByUser), "batches", len(batches))

	analysesByUser := make(map[string][]types.SingleSegmentAnalysis)
	var userOrder []string
	for i, b := range batches {
		analyses, err := s.ai.AnalyzeBatch(ctx, b)
		if err != nil {
			return nil, nil, fmt.Errorf("analyze batch %d/%d: %w", i+1, len(batches), err)
		}
		for _, a := range analyses {
			if _, seen := analysesByUser[a.UserID]; !seen {
				userOrder = append(userOrder, a.UserID)
			}
			analysesByUser[a.UserID] = append(analysesByUser[a.UserID], a)
		}
	}

	timelines := make(map[string]*types.DailyTimeline, len(analysesByUser))
	for _, user := range userOrder {
		timeline := folder.Fold(analysesByUser[user])
		timelines[user] = &timeline
	}
	return timelines, userOrder, nil
}

// persistWindow write-merges each user's timeline into the bucket day's
// document. Writes are per user; there is no cross-user transaction, so
// already-committed writes stay committed when a later one fails.
func (s *analysisService) persistWindow(day time.Time, timelines map[string]*types.DailyTimeline, userOrder []string) error {
	for _, user := range userOrder {
		res, err := s.store.WriteMerge(user, day, []types.DailyTimeline{*timelines[user]})
		if err != nil {
			return fmt.Errorf("persist timeline for user %s: %w", user, err)
		}
		s.log.Info("Persisted day document",
			"user_id", user,
			"path", res.Path,
			"size", res.Size,
			"created", res.Created,
		)
	}
	return nil
}
