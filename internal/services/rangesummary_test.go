package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/habitlens-backend/internal/clients/openai"
	"github.com/yungbote/habitlens-backend/internal/docstore"
	"github.com/yungbote/habitlens-backend/internal/logger"
	"github.com/yungbote/habitlens-backend/internal/timeutil"
	"github.com/yungbote/habitlens-backend/internal/types"
)

type rangeCapturingProvider struct {
	fakeProvider
	lastRange openai.RangeRequest
}

func (c *rangeCapturingProvider) SummarizeRange(ctx context.Context, req openai.RangeRequest) (*types.RangeSummary, error) {
	c.lastRange = req
	return c.fakeProvider.SummarizeRange(ctx, req)
}

func TestBuildRangeSummarySkipsHolesAndArchivesOld(t *testing.T) {
	log := logger.NewNop()
	base := t.TempDir()
	store, err := docstore.New(base, log)
	require.NoError(t, err)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, timeutil.Zone)
	to := time.Date(2024, 3, 5, 0, 0, 0, 0, timeutil.Zone)

	// Day documents on the 1st, 2nd and 4th; the 3rd and 5th are holes.
	for _, offset := range []int{0, 1, 3} {
		_, err := store.WriteMerge("u1", from.AddDate(0, 0, offset), []types.DailyTimeline{
			{UserID: "u1", HabitName: "Sleep pattern"},
		})
		require.NoError(t, err)
	}

	// A prior roll-up over the same range, to be superseded.
	oldPath, err := store.WriteSummary("u1", from, to, &types.RangeSummary{AISummary: "old"})
	require.NoError(t, err)

	ai := &rangeCapturingProvider{}
	svc := NewRangeSummaryService(ai, store, log)

	path, err := svc.BuildRangeSummary(context.Background(), "u1", from, to)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err)

	require.Equal(t, "u1", ai.lastRange.UserID)
	require.Equal(t, "2024-03-01", ai.lastRange.From)
	require.Equal(t, "2024-03-05", ai.lastRange.To)
	require.Len(t, ai.lastRange.Days, 3)

	// The superseded summary is moved, not deleted.
	_, err = os.Stat(oldPath)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(base, "u1", "Move", filepath.Base(oldPath)))
	require.NoError(t, err)
}

func TestBuildRangeSummaryEmptyRange(t *testing.T) {
	log := logger.NewNop()
	store, err := docstore.New(t.TempDir(), log)
	require.NoError(t, err)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, timeutil.Zone)
	to := time.Date(2024, 3, 2, 0, 0, 0, 0, timeutil.Zone)

	ai := &rangeCapturingProvider{}
	svc := NewRangeSummaryService(ai, store, log)

	path, err := svc.BuildRangeSummary(context.Background(), "u1", from, to)
	require.NoError(t, err)
	require.NotEmpty(t, path)
	require.Empty(t, ai.lastRange.Days)
}
