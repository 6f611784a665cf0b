package types

import "time"

// Batch is one bounded, time-contiguous, single-status, single-user group of
// events sent together to the analysis provider. It only lives for one
// pipeline run.
type Batch struct {
	UserID     string        `json:"user_id"`
	Events     []HealthEvent `json:"events"`
	Supplement *Supplement   `json:"supplement,omitempty"`
}

// SegmentWindow is the time window the provider attributes to one batch.
type SegmentWindow struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Status string    `json:"status"`
}

// SingleSegmentAnalysis is the provider's response for one batch.
type SingleSegmentAnalysis struct {
	UserID           string        `json:"user_id"`
	HabitType        string        `json:"habit_type"`
	HabitName        string        `json:"habit_name"`
	Description      string        `json:"description"`
	Segment          SegmentWindow `json:"segment"`
	AISummary        string        `json:"aiSummary"`
	ActionSuggestion string        `json:"actionSuggestion"`
}

// TimelineSegment is one merged span of a daily timeline.
type TimelineSegment struct {
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	Status           string    `json:"status"`
	AISummary        string    `json:"aiSummary"`
	ActionSuggestion string    `json:"actionSuggestion"`
}

// DailyTimeline is the folded result for one user, the unit persisted into a
// day document. SuggestSummaryDaily is patched in by the trend step after
// folding.
type DailyTimeline struct {
	UserID              string            `json:"user_id"`
	HabitType           string            `json:"habit_type"`
	HabitName           string            `json:"habit_name"`
	Description         string            `json:"description"`
	Segments            []TimelineSegment `json:"segments"`
	MostActivePeriod    string            `json:"mostActivePeriod,omitempty"`
	MostAbnormalPeriod  string            `json:"mostAbnormalPeriod,omitempty"`
	SuggestSummaryDaily string            `json:"suggest_summary_daily,omitempty"`
}

// DayDocument is the on-disk persisted unit: all analyses appended for one
// user on one calendar day. Analyses only grows, except during an explicit
// delete-and-rebuild.
type DayDocument struct {
	UserID   string          `json:"user_id"`
	Date     string          `json:"date"`
	Analyses []DailyTimeline `json:"analyses"`
}

// TrendPatch is the provider's response for the 7-day trend contract.
type TrendPatch struct {
	UserID              string `json:"user_id"`
	SuggestSummaryDaily string `json:"suggest_summary_daily"`
}

// RangeSummary is the provider's response for the multi-day roll-up contract.
type RangeSummary struct {
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	Status           string `json:"status"`
	AISummary        string `json:"aiSummary"`
	ActionSuggestion string `json:"actionSuggestion"`
}
