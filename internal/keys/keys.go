// Package keys models the temporary exposure keys fetched from the platform
// key store. Keys are opaque inputs to signing and submission and are never
// mutated.
package keys

import (
	"fmt"

	"github.com/pathcheck/enclient/internal/errors"
)

// ExposureKey is one diagnosis key covering a rolling 10-minute epoch window.
type ExposureKey struct {
	Key                string `json:"key"`
	RollingPeriod      int    `json:"rollingPeriod"`
	RollingStartNumber int    `json:"rollingStartNumber"`
	TransmissionRisk   int    `json:"transmissionRisk"`
}

// RawExposureKey is the unvalidated platform-layer wire shape.
type RawExposureKey struct {
	Key                string `json:"key"`
	RollingPeriod      int    `json:"rollingPeriod"`
	RollingStartNumber int    `json:"rollingStartNumber"`
	TransmissionRisk   int    `json:"transmissionRisk"`
}

// ParseRawKeys validates raw keys field by field and converts them. Any
// invalid record fails the whole batch: a partially-valid key set must never
// be signed and submitted.
func ParseRawKeys(rawKeys []RawExposureKey) ([]ExposureKey, error) {
	parsed := make([]ExposureKey, 0, len(rawKeys))
	for i, raw := range rawKeys {
		if err := validateRawKey(raw); err != nil {
			return nil, fmt.Errorf("%w: key %d: %v", errors.ErrInvalidInput, i, err)
		}
		parsed = append(parsed, ExposureKey(raw))
	}
	return parsed, nil
}

func validateRawKey(raw RawExposureKey) error {
	if raw.Key == "" {
		return fmt.Errorf("empty key data")
	}
	if raw.RollingPeriod < 0 {
		return fmt.Errorf("negative rollingPeriod %d", raw.RollingPeriod)
	}
	if raw.RollingStartNumber < 0 {
		return fmt.Errorf("negative rollingStartNumber %d", raw.RollingStartNumber)
	}
	if raw.TransmissionRisk < 0 {
		return fmt.Errorf("negative transmissionRisk %d", raw.TransmissionRisk)
	}
	return nil
}
