package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketDayNoonAnchored(t *testing.T) {
	cases := []struct {
		name string
		in   time.Time
		want string
	}{
		{
			name: "afternoon_belongs_to_same_day",
			in:   time.Date(2026, 3, 14, 15, 30, 0, 0, Zone),
			want: "2026-03-14",
		},
		{
			name: "exactly_noon_belongs_to_same_day",
			in:   time.Date(2026, 3, 14, 12, 0, 0, 0, Zone),
			want: "2026-03-14",
		},
		{
			name: "morning_belongs_to_previous_day",
			in:   time.Date(2026, 3, 14, 3, 0, 0, 0, Zone),
			want: "2026-03-13",
		},
		{
			name: "just_before_noon_belongs_to_previous_day",
			in:   time.Date(2026, 3, 14, 11, 59, 59, 0, Zone),
			want: "2026-03-13",
		},
		{
			name: "utc_input_shifted_into_fixed_zone",
			// 22:30 UTC = 05:30 UTC+7 next day, before noon -> that same UTC day.
			in:   time.Date(2026, 3, 14, 22, 30, 0, 0, time.UTC),
			want: "2026-03-14",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, BucketDay(tc.in).Format(BucketDayLayout))
		})
	}
}

func TestNoonWindow(t *testing.T) {
	day, err := ParseBucketDay("2026-03-14")
	require.NoError(t, err)

	from, to := NoonWindow(day)
	assert.Equal(t, time.Date(2026, 3, 14, 12, 0, 0, 0, Zone).Unix(), from.Unix())
	assert.Equal(t, time.Date(2026, 3, 15, 12, 0, 0, 0, Zone).Unix(), to.Unix())
	assert.Equal(t, 24*time.Hour, to.Sub(from))
}

func TestNoonWindowContainsItsBucketDayEvents(t *testing.T) {
	detected := time.Date(2026, 3, 14, 23, 45, 0, 0, Zone)
	day := BucketDay(detected)
	from, to := NoonWindow(day)
	assert.False(t, detected.Before(from))
	assert.True(t, detected.Before(to))
}

func TestFormatPeriod(t *testing.T) {
	start := time.Date(2026, 3, 14, 3, 0, 0, 0, time.UTC) // 10:00 UTC+7
	end := start.Add(95 * time.Minute)
	assert.Equal(t, "10:00-11:35", FormatPeriod(start, end))
}

func TestDayFileName(t *testing.T) {
	assert.Equal(t, "05-01-2026", DayFileName(time.Date(2026, 1, 5, 13, 0, 0, 0, Zone)))
}

func TestMostRecentNoon(t *testing.T) {
	afternoon := time.Date(2026, 3, 14, 18, 0, 0, 0, Zone)
	assert.Equal(t, time.Date(2026, 3, 14, 12, 0, 0, 0, Zone).Unix(), MostRecentNoon(afternoon).Unix())

	morning := time.Date(2026, 3, 14, 6, 0, 0, 0, Zone)
	assert.Equal(t, time.Date(2026, 3, 13, 12, 0, 0, 0, Zone).Unix(), MostRecentNoon(morning).Unix())
}

func TestPreviousDay(t *testing.T) {
	ref := time.Date(2026, 3, 15, 12, 0, 0, 0, Zone)
	assert.Equal(t, "14-03-2026", DayFileName(PreviousDay(ref)))
}
