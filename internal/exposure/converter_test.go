package exposure

import (
	"testing"
	"time"
)

func TestToExposureInfoEmpty(t *testing.T) {
	result := ToExposureInfo(nil)

	if len(result) != 0 {
		t.Errorf("expected empty info, got %d records", len(result))
	}
}

func TestToExposureInfoTruncatesToStartOfDay(t *testing.T) {
	twoDaysAgo := time.Now().AddDate(0, 0, -2)
	duration := 30.0 * 60

	result := ToExposureInfo([]RawExposure{
		{ID: "ABCD-EFGH", Date: ToPosix(twoDaysAgo), WeightedDurationSum: duration},
	})

	if len(result) != 1 {
		t.Fatalf("expected 1 record, got %d", len(result))
	}
	expected := Datum{
		ID:       "ABCD-EFGH",
		Date:     ToPosix(twoDaysAgo).BeginningOfDay(),
		Duration: duration,
	}
	if result[0] != expected {
		t.Errorf("got %+v, want %+v", result[0], expected)
	}
}

func TestToExposureInfoSortsDescendingByDate(t *testing.T) {
	now := time.Now()
	oldest := ToPosix(now.AddDate(0, 0, -10))
	middle := ToPosix(now.AddDate(0, 0, -5))
	newest := ToPosix(now)

	result := ToExposureInfo([]RawExposure{
		{ID: "middle", Date: middle, WeightedDurationSum: 1},
		{ID: "oldest", Date: oldest, WeightedDurationSum: 2},
		{ID: "newest", Date: newest, WeightedDurationSum: 3},
	})

	ids := []string{result[0].ID, result[1].ID, result[2].ID}
	want := []string{"newest", "middle", "oldest"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("order = %v, want %v", ids, want)
		}
	}
}

func TestToExposureInfoRetainsSameDayRecords(t *testing.T) {
	dayStart := ToPosix(time.Now()).BeginningOfDay()

	result := ToExposureInfo([]RawExposure{
		{ID: "first", Date: dayStart + 1000, WeightedDurationSum: 1800},
		{ID: "second", Date: dayStart + 18000, WeightedDurationSum: 600},
	})

	if len(result) != 2 {
		t.Fatalf("expected both same-day records retained, got %d", len(result))
	}
	for _, datum := range result {
		if datum.Date != dayStart {
			t.Errorf("record %s date = %d, want %d", datum.ID, datum.Date, dayStart)
		}
	}
}

func TestMostRecent(t *testing.T) {
	if _, ok := (Info{}).MostRecent(); ok {
		t.Error("expected no most recent exposure for empty info")
	}

	info := ToExposureInfo([]RawExposure{
		{ID: "old", Date: ToPosix(time.Now().AddDate(0, 0, -4))},
		{ID: "new", Date: ToPosix(time.Now())},
	})
	datum, ok := info.MostRecent()
	if !ok || datum.ID != "new" {
		t.Errorf("MostRecent = %+v, %v; want the newest record", datum, ok)
	}
}
