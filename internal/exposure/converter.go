package exposure

import (
	"sort"
)

// ToExposureInfo maps raw platform-layer exposure records into domain data.
// Each record's date is truncated to local start-of-day before mapping
// weightedDurationSum onto Duration. The result is sorted descending by date;
// "most recent exposure" consumers index the first element and depend on
// this ordering.
//
// Records sharing a post-truncation date are both retained. The platform
// layer may report multiple distinct exposure windows within one day and the
// emission is always the complete current set, so no merging happens here.
func ToExposureInfo(rawExposures []RawExposure) Info {
	info := make(Info, 0, len(rawExposures))
	for _, raw := range rawExposures {
		info = append(info, Datum{
			ID:       raw.ID,
			Date:     raw.Date.BeginningOfDay(),
			Duration: raw.WeightedDurationSum,
		})
	}

	sort.SliceStable(info, func(a, b int) bool {
		return info[a].Date > info[b].Date
	})

	return info
}
