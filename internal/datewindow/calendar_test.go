package datewindow

import (
	"testing"
	"time"

	"github.com/pathcheck/enclient/internal/exposure"
)

func TestToExposureHistoryEndsOnNextSaturday(t *testing.T) {
	// 2020-12-15 was a Tuesday; the following Saturday is 2020-12-19.
	now := time.Date(2020, time.December, 15, 10, 30, 0, 0, time.Local)
	wantEnd := exposure.ToPosix(time.Date(2020, time.December, 19, 0, 0, 0, 0, time.Local))

	history := ToExposureHistory(nil, 21, now)

	if len(history) != 21 {
		t.Fatalf("history length = %d, want 21", len(history))
	}
	if history[len(history)-1].Date != wantEnd {
		t.Errorf("last day = %s, want Saturday %s",
			history[len(history)-1].Date.Time().Format("2006-01-02"),
			wantEnd.Time().Format("2006-01-02"))
	}
}

func TestToExposureHistoryOnASaturday(t *testing.T) {
	// A Saturday "now" is its own calendar end.
	now := time.Date(2020, time.December, 19, 8, 0, 0, 0, time.Local)

	history := ToExposureHistory(nil, 7, now)

	if got := history[len(history)-1].Date; got != exposure.ToPosix(now).BeginningOfDay() {
		t.Errorf("last day = %s, want %s",
			got.Time().Format("2006-01-02"), now.Format("2006-01-02"))
	}
}

func TestToExposureHistoryAscendingWithPlaceholders(t *testing.T) {
	now := time.Date(2020, time.December, 15, 0, 0, 0, 0, time.Local)
	exposureDay := exposure.ToPosix(time.Date(2020, time.December, 13, 0, 0, 0, 0, time.Local))
	info := exposure.Info{{ID: "a", Date: exposureDay, Duration: 1800}}

	history := ToExposureHistory(info, 14, now)

	var possible int
	for i, day := range history {
		if i > 0 && history[i-1].Date >= day.Date {
			t.Fatal("history is not in ascending chronological order")
		}
		switch day.Kind {
		case PossibleExposure:
			possible++
			if day.Date != exposureDay {
				t.Errorf("possible exposure on %s, want %s",
					day.Date.Time().Format("2006-01-02"),
					exposureDay.Time().Format("2006-01-02"))
			}
			if day.Duration != 1800 {
				t.Errorf("duration = %f, want 1800", day.Duration)
			}
		case NoKnownExposure:
			if day.Duration != 0 {
				t.Errorf("placeholder day carries duration %f", day.Duration)
			}
		default:
			t.Errorf("unexpected kind %q", day.Kind)
		}
	}
	if possible != 1 {
		t.Errorf("possible exposure days = %d, want 1", possible)
	}
}

func TestToExposureHistorySameDayUsesFirstRecord(t *testing.T) {
	now := time.Date(2020, time.December, 15, 0, 0, 0, 0, time.Local)
	day := exposure.ToPosix(now).BeginningOfDay()
	info := exposure.Info{
		{ID: "first", Date: day, Duration: 600},
		{ID: "second", Date: day, Duration: 1200},
	}

	history := ToExposureHistory(info, 7, now)

	for _, entry := range history {
		if entry.Date == day {
			if entry.Kind != PossibleExposure || entry.Duration != 600 {
				t.Errorf("same-day entry = %+v, want first record's duration", entry)
			}
			return
		}
	}
	t.Fatal("exposure day missing from calendar")
}
