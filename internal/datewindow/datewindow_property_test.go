package datewindow

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/pathcheck/enclient/internal/exposure"
)

// TestRemainingQuarantineProperty checks the clamp invariant: the countdown
// never leaves [0, quarantineLength] for any exposure date, past or future.
func TestRemainingQuarantineProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)
	today := time.Date(2020, time.December, 15, 0, 0, 0, 0, time.Local)

	properties.Property("result is clamped to [0, quarantineLength]", prop.ForAll(
		func(quarantineLength int, dayOffset int) bool {
			exposureDate := exposure.ToPosix(today.AddDate(0, 0, dayOffset))
			got := RemainingQuarantine(quarantineLength, today, exposureDate)
			return got >= 0 && got <= quarantineLength
		},
		gen.IntRange(1, 60),
		gen.IntRange(-365, 365),
	))

	properties.Property("exposures today or later always yield the full window", prop.ForAll(
		func(quarantineLength int, dayOffset int) bool {
			exposureDate := exposure.ToPosix(today.AddDate(0, 0, dayOffset))
			return RemainingQuarantine(quarantineLength, today, exposureDate) == quarantineLength
		},
		gen.IntRange(1, 60),
		gen.IntRange(0, 30),
	))

	properties.TestingRun(t)
}
