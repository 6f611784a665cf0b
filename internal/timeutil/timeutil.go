// Package timeutil isolates the fixed UTC+7 offset arithmetic used by the
// analysis pipeline. Every bucket-day derivation, clock formatting and
// day-file name goes through here so the offset lives in exactly one place.
package timeutil

import (
	"fmt"
	"time"
)

// Zone is the fixed display/bucketing offset for all analyses.
var Zone = time.FixedZone("UTC+7", 7*60*60)

const (
	// DayFileLayout names one day document on disk.
	DayFileLayout = "02-01-2006"
	// BucketDayLayout is the wire format for bucket_day fields.
	BucketDayLayout = "2006-01-02"
	// CompactDayLayout appears in summary file names.
	CompactDayLayout = "20060102"
)

// FormatClock renders t as HH:mm in the fixed zone.
func FormatClock(t time.Time) string {
	return t.In(Zone).Format("15:04")
}

// FormatPeriod renders a start/end pair as "HH:mm-HH:mm" in the fixed zone.
func FormatPeriod(start, end time.Time) string {
	return fmt.Sprintf("%s-%s", FormatClock(start), FormatClock(end))
}

// DayFileName returns the dd-MM-yyyy file stem for t's calendar day in the
// fixed zone.
func DayFileName(t time.Time) string {
	return t.In(Zone).Format(DayFileLayout)
}

// BucketDay attributes a detection instant to a calendar day using the
// noon-anchored rule: everything from noon of day D up to (but excluding)
// noon of day D+1 belongs to bucket-day D.
func BucketDay(detected time.Time) time.Time {
	local := detected.In(Zone)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, Zone)
	if local.Hour() < 12 {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// ParseBucketDay parses a YYYY-MM-DD bucket_day value in the fixed zone.
func ParseBucketDay(s string) (time.Time, error) {
	return time.ParseInLocation(BucketDayLayout, s, Zone)
}

// NoonWindow returns the exact 24h noon-to-noon window containing bucketDay.
func NoonWindow(bucketDay time.Time) (from, to time.Time) {
	local := bucketDay.In(Zone)
	from = time.Date(local.Year(), local.Month(), local.Day(), 12, 0, 0, 0, Zone)
	return from, from.AddDate(0, 0, 1)
}

// PreviousDay returns the calendar day before ref in the fixed zone,
// truncated to midnight. Used by the trigger/previous-day write mode.
func PreviousDay(ref time.Time) time.Time {
	local := ref.In(Zone)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, Zone).AddDate(0, 0, -1)
}

// StartOfDay truncates t to midnight in the fixed zone.
func StartOfDay(t time.Time) time.Time {
	local := t.In(Zone)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, Zone)
}

// MostRecentNoon returns the latest noon (fixed zone) at or before now.
func MostRecentNoon(now time.Time) time.Time {
	local := now.In(Zone)
	noon := time.Date(local.Year(), local.Month(), local.Day(), 12, 0, 0, 0, Zone)
	if local.Before(noon) {
		noon = noon.AddDate(0, 0, -1)
	}
	return noon
}
