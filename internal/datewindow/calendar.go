package datewindow

import (
	"time"

	"github.com/pathcheck/enclient/internal/exposure"
)

// HistoryDatumKind tags a calendar day as either a known possible exposure
// or an explicit "nothing detected" placeholder. Days are never omitted from
// the calendar.
type HistoryDatumKind string

const (
	NoKnownExposure  HistoryDatumKind = "NoKnown"
	PossibleExposure HistoryDatumKind = "Possible"
)

// HistoryDatum is one calendar day in the exposure history.
type HistoryDatum struct {
	Kind     HistoryDatumKind
	Date     exposure.Posix
	Duration float64 // weighted exposure seconds, zero for NoKnownExposure
}

// History is a fixed-length ascending calendar of exposure days.
type History []HistoryDatum

// ToExposureHistory builds a calendar ending on the next Saturday at or
// after now, back-filled with dayCount entries in ascending chronological
// order. Days without a matching exposure record are synthesized as
// NoKnownExposure placeholders. When several records share a day, the most
// recent record for that day (first in the descending-sorted info) is shown.
func ToExposureHistory(info exposure.Info, dayCount int, now time.Time) History {
	byDay := make(map[exposure.Posix]exposure.Datum, len(info))
	for _, datum := range info {
		if _, seen := byDay[datum.Date]; !seen {
			byDay[datum.Date] = datum
		}
	}

	end := nextSaturday(now)
	history := make(History, 0, dayCount)
	for offset := dayCount - 1; offset >= 0; offset-- {
		day := exposure.ToPosix(end.AddDate(0, 0, -offset)).BeginningOfDay()
		if datum, ok := byDay[day]; ok {
			history = append(history, HistoryDatum{
				Kind:     PossibleExposure,
				Date:     day,
				Duration: datum.Duration,
			})
		} else {
			history = append(history, HistoryDatum{
				Kind: NoKnownExposure,
				Date: day,
			})
		}
	}
	return history
}

// nextSaturday returns the next Saturday at or after t (t itself when t is a
// Saturday).
func nextSaturday(t time.Time) time.Time {
	daysUntil := (int(time.Saturday) - int(t.Weekday()) + 7) % 7
	return t.AddDate(0, 0, daysUntil)
}
