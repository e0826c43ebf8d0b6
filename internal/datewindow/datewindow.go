// Package datewindow provides the pure date-bucketing rules behind the
// exposure history UI: recency windows, the quarantine countdown, and the
// fixed-length calendar fill.
package datewindow

import (
	"math"
	"time"

	"github.com/pathcheck/enclient/internal/exposure"
)

// Window names the recency bucket an exposure falls into.
type Window string

const (
	TodayToThreeDaysAgo    Window = "TodayToThreeDaysAgo"
	FourToSixDaysAgo       Window = "FourToSixDaysAgo"
	SevenToFourteenDaysAgo Window = "SevenToFourteenDaysAgo"
)

// Bucket assigns an exposure to a recency window relative to now. Boundaries
// use day-truncated comparisons, so an exposure at any time of day three days
// ago still counts as TodayToThreeDaysAgo. Future dates fall into the first
// bucket without special-casing.
func Bucket(datum exposure.Datum, now time.Time) Window {
	threeDaysAgo := exposure.ToPosix(now.AddDate(0, 0, -3)).BeginningOfDay()
	sevenDaysAgo := exposure.ToPosix(now.AddDate(0, 0, -7)).BeginningOfDay()

	switch {
	case datum.Date >= threeDaysAgo:
		return TodayToThreeDaysAgo
	case datum.Date > sevenDaysAgo:
		return FourToSixDaysAgo
	default:
		return SevenToFourteenDaysAgo
	}
}

// RemainingQuarantine computes how many days of a quarantine window remain
// for an exposure, clamped to [0, quarantineLength]. The countdown starts
// the day after the exposure, so an exposure today (or even tomorrow) still
// yields the full window.
func RemainingQuarantine(quarantineLength int, today time.Time, exposureDate exposure.Posix) int {
	dayOfExposure := exposureDate.Time().AddDate(0, 0, 1)
	daysSinceExposure := int(math.Floor(today.Sub(dayOfExposure).Hours() / 24))

	remaining := quarantineLength - daysSinceExposure
	if remaining > quarantineLength {
		remaining = quarantineLength
	}
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}
