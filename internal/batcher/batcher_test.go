package batcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/habitlens-backend/internal/types"
)

func eventAt(user string, status string, at time.Time) types.HealthEvent {
	t := at
	return types.HealthEvent{
		UserID:     user,
		Status:     status,
		DetectedAt: &t,
	}
}

type fakeDecimal struct{ v float64 }

func (d fakeDecimal) ToNumber() float64 { return d.v }

func TestCoerceConfidence(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want float64
	}{
		{name: "float", in: 0.85, want: 0.85},
		{name: "numeric_string", in: "0.92", want: 0.92},
		{name: "padded_string", in: " 0.5 ", want: 0.5},
		{name: "decimal_object", in: fakeDecimal{v: 0.73}, want: 0.73},
		{name: "int", in: 1, want: 1},
		{name: "garbage_string", in: "high", want: 0},
		{name: "nil", in: nil, want: 0},
		{name: "unsupported_type", in: []int{1}, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, CoerceConfidence(tc.in), 1e-9)
		})
	}
}

func TestBatchUserEventsGapSplit(t *testing.T) {
	// Warning events at t=0, t=2m, t=~11.7m with a 5m gap
	// must produce two batches: [t0, t2m] and [t11.7m].
	base := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	events := []types.HealthEvent{
		eventAt("u1", "warning", base),
		eventAt("u1", "warning", base.Add(120000*time.Millisecond)),
		eventAt("u1", "warning", base.Add(700000*time.Millisecond)),
	}

	batches := BatchUserEvents("u1", events, DefaultConfig())
	require.Len(t, batches, 2)
	assert.Len(t, batches[0].Events, 2)
	assert.Len(t, batches[1].Events, 1)
	assert.Equal(t, base, batches[0].Events[0].Timestamp())
	assert.Equal(t, base.Add(700000*time.Millisecond), batches[1].Events[0].Timestamp())
}

func TestBatchUserEventsMaxBatchSize(t *testing.T) {
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	var events []types.HealthEvent
	for i := 0; i < 45; i++ {
		events = append(events, eventAt("u1", "danger", base.Add(time.Duration(i)*time.Second)))
	}

	cfg := DefaultConfig()
	batches := BatchUserEvents("u1", events, cfg)
	require.Len(t, batches, 3)
	total := 0
	for _, b := range batches {
		assert.LessOrEqual(t, len(b.Events), cfg.MaxBatchSize)
		total += len(b.Events)
	}
	assert.Equal(t, 45, total)
	// Order preserved across chunks.
	assert.Equal(t, base, batches[0].Events[0].Timestamp())
	assert.Equal(t, base.Add(40*time.Second), batches[2].Events[0].Timestamp())
}

func TestExcludeNormalRetainsEmptyStatus(t *testing.T) {
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	events := []types.HealthEvent{
		eventAt("u1", "Normal", base),
		eventAt("u1", "NORMAL", base.Add(time.Minute)),
		eventAt("u1", "", base.Add(2*time.Minute)),
		eventAt("u1", "warning", base.Add(3*time.Minute)),
	}

	batches := BatchUserEvents("u1", events, DefaultConfig())
	var statuses []string
	for _, b := range batches {
		for _, e := range b.Events {
			statuses = append(statuses, e.Status)
		}
	}
	// Exactly the normalized "normal" events are gone; empty status stays.
	assert.ElementsMatch(t, []string{"", "warning"}, statuses)
}

func TestIncludeStatusesOverridesExcludeNormal(t *testing.T) {
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	events := []types.HealthEvent{
		eventAt("u1", "normal", base),
		eventAt("u1", "warning", base.Add(time.Minute)),
		eventAt("u1", "danger", base.Add(2*time.Minute)),
	}

	cfg := DefaultConfig()
	cfg.IncludeStatuses = []string{"Normal"}
	batches := BatchUserEvents("u1", events, cfg)
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Events, 1)
	assert.Equal(t, "normal", batches[0].Events[0].Status)
}

func TestUnparsableTimestampDropped(t *testing.T) {
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	events := []types.HealthEvent{
		{UserID: "u1", Status: "warning"}, // no detected_at, zero created_at
		eventAt("u1", "warning", base),
	}

	batches := BatchUserEvents("u1", events, DefaultConfig())
	require.Len(t, batches, 1)
	assert.Len(t, batches[0].Events, 1)
}

func TestForceStatusOutputIsCosmetic(t *testing.T) {
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	events := []types.HealthEvent{
		eventAt("u1", "normal", base),
		eventAt("u1", "warning", base.Add(time.Minute)),
	}

	cfg := DefaultConfig()
	cfg.ForceStatusOutput = "danger"
	batches := BatchUserEvents("u1", events, cfg)
	// The normal event was still filtered before relabeling.
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Events, 1)
	assert.Equal(t, "danger", batches[0].Events[0].Status)
}

func TestBatchAllUsersNeverMixesUsers(t *testing.T) {
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	byUser := map[string][]types.HealthEvent{
		"u1": {
			eventAt("u1", "warning", base.Add(10*time.Minute)),
			eventAt("u1", "warning", base.Add(11*time.Minute)),
		},
		"u2": {
			eventAt("u2", "danger", base),
		},
	}
	supp := map[string]*types.Supplement{
		"u1": {UserID: "u1"},
	}

	batches := BatchAllUsers(byUser, supp, DefaultConfig())
	require.Len(t, batches, 2)
	for _, b := range batches {
		for _, e := range b.Events {
			assert.Equal(t, b.UserID, e.UserID)
		}
	}
	// Globally sorted by leading event time: u2's batch starts earlier.
	assert.Equal(t, "u2", batches[0].UserID)
	assert.Equal(t, "u1", batches[1].UserID)
	require.NotNil(t, batches[1].Supplement)
	assert.Nil(t, batches[0].Supplement)
}

func TestBatchStatusHomogeneous(t *testing.T) {
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	events := []types.HealthEvent{
		eventAt("u1", "warning", base),
		eventAt("u1", "danger", base.Add(time.Second)),
		eventAt("u1", "warning", base.Add(2*time.Second)),
		eventAt("u1", "danger", base.Add(3*time.Second)),
	}

	batches := BatchUserEvents("u1", events, DefaultConfig())
	require.Len(t, batches, 2)
	for _, b := range batches {
		first := b.Events[0].Status
		for _, e := range b.Events {
			assert.Equal(t, first, e.Status)
		}
		// Ascending within the batch.
		for i := 1; i < len(b.Events); i++ {
			assert.False(t, b.Events[i].Timestamp().Before(b.Events[i-1].Timestamp()))
		}
	}
}
