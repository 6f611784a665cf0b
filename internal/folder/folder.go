// Package folder merges the ordered per-batch analyses for one user into a
// single daily timeline. Pure and synchronous, like batcher.
package folder

import (
	"sort"
	"strings"
	"time"

	"github.com/yungbote/habitlens-backend/internal/timeutil"
	"github.com/yungbote/habitlens-backend/internal/types"
)

// UnknownUserID is the sentinel user id produced when folding an empty input
// list. Kept for compatibility with existing documents.
const UnknownUserID = "unknown"

func severityRank(status string) int {
	switch strings.ToLower(status) {
	case types.StatusDanger:
		return 3
	case types.StatusWarning:
		return 2
	case types.StatusNormal:
		return 1
	default:
		return 0
	}
}

// Fold builds one DailyTimeline from the analyses of one user, in provider
// call order. Segments are sorted by start time and merged only when exactly
// contiguous (previous end == next start) with identical status, summary and
// suggestion text.
func Fold(analyses []types.SingleSegmentAnalysis) types.DailyTimeline {
	if len(analyses) == 0 {
		return types.DailyTimeline{
			UserID:   UnknownUserID,
			Segments: []types.TimelineSegment{},
		}
	}

	segments := make([]types.TimelineSegment, 0, len(analyses))
	for _, a := range analyses {
		segments = append(segments, types.TimelineSegment{
			Start:            a.Segment.Start,
			End:              a.Segment.End,
			Status:           a.Segment.Status,
			AISummary:        a.AISummary,
			ActionSuggestion: a.ActionSuggestion,
		})
	}
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start.Before(segments[j].Start)
	})

	merged := mergeAdjacent(segments)

	first := analyses[0]
	timeline := types.DailyTimeline{
		UserID:      first.UserID,
		HabitType:   first.HabitType,
		HabitName:   first.HabitName,
		Description: first.Description,
		Segments:    merged,
	}
	if active := longestSegment(merged); active != nil {
		timeline.MostActivePeriod = timeutil.FormatPeriod(active.Start, active.End)
	}
	if abnormal := mostAbnormalSegment(merged); abnormal != nil {
		timeline.MostAbnormalPeriod = timeutil.FormatPeriod(abnormal.Start, abnormal.End)
	}
	return timeline
}

// mergeAdjacent extends the previous accepted segment only on an exact
// boundary match with identical text. This is a textual merge, not a
// semantic one: a 1ms gap or a differing summary keeps segments apart.
func mergeAdjacent(segments []types.TimelineSegment) []types.TimelineSegment {
	if len(segments) == 0 {
		return segments
	}
	accepted := []types.TimelineSegment{segments[0]}
	for _, s := range segments[1:] {
		prev := &accepted[len(accepted)-1]
		if prev.End.Equal(s.Start) &&
			prev.Status == s.Status &&
			prev.AISummary == s.AISummary &&
			prev.ActionSuggestion == s.ActionSuggestion {
			prev.End = s.End
			continue
		}
		accepted = append(accepted, s)
	}
	return accepted
}

func segmentDuration(s types.TimelineSegment) time.Duration {
	return s.End.Sub(s.Start)
}

func longestSegment(segments []types.TimelineSegment) *types.TimelineSegment {
	var best *types.TimelineSegment
	for i := range segments {
		if best == nil || segmentDuration(segments[i]) > segmentDuration(*best) {
			best = &segments[i]
		}
	}
	return best
}

func mostAbnormalSegment(segments []types.TimelineSegment) *types.TimelineSegment {
	var best *types.TimelineSegment
	for i := range segments {
		if best == nil {
			best = &segments[i]
			continue
		}
		ri, rb := severityRank(segments[i].Status), severityRank(best.Status)
		if ri > rb || (ri == rb && segmentDuration(segments[i]) > segmentDuration(*best)) {
			best = &segments[i]
		}
	}
	return best
}
