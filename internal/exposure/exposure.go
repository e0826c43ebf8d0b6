package exposure

import (
	"time"
)

// Posix is a unix timestamp in milliseconds, matching the wire format the
// platform layer reports exposure dates in.
type Posix int64

// Time converts a Posix timestamp to a time.Time in the local calendar.
func (p Posix) Time() time.Time {
	return time.UnixMilli(int64(p))
}

// ToPosix converts a time.Time to a Posix millisecond timestamp.
func ToPosix(t time.Time) Posix {
	return Posix(t.UnixMilli())
}

// BeginningOfDay truncates a Posix timestamp to local midnight of the same
// calendar day.
func (p Posix) BeginningOfDay() Posix {
	t := p.Time()
	year, month, day := t.Date()
	return ToPosix(time.Date(year, month, day, 0, 0, 0, 0, t.Location()))
}

// Datum represents one detected possible-exposure event bucketed to a
// calendar day. Immutable once constructed.
type Datum struct {
	ID       string
	Date     Posix   // truncated to start-of-day
	Duration float64 // weighted exposure seconds
}

// Info is the full current exposure set, sorted descending by date. It is
// derived, never persisted, and recomputed wholesale on every emission from
// the platform layer.
type Info []Datum

// MostRecent returns the latest exposure, relying on the descending sort
// guarantee of ToExposureInfo.
func (i Info) MostRecent() (Datum, bool) {
	if len(i) == 0 {
		return Datum{}, false
	}
	return i[0], true
}

// RawExposure is the platform-layer wire shape for a single exposure record.
type RawExposure struct {
	ID                  string  `json:"id"`
	Date                Posix   `json:"date"`
	WeightedDurationSum float64 `json:"weightedDurationSum"`
}
