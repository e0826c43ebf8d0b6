// Package storage persists the small set of durable client state: locale
// override, onboarding flag, analytics consent, the publish revision token,
// and the new-exposure flag. It is a plain key→string store with no schema
// versioning; an absent key reads as its well-defined default.
package storage

import (
	"context"
)

// Store is the persisted key→string store.
type Store interface {
	// Get returns the value for key, or ok=false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set writes the value for key, overwriting any prior value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the underlying resources.
	Close() error
}

// Well-known keys. Values are plain strings; boolean flags use the marker
// conventions below rather than "true"/"false" so legacy stores read
// unchanged.
const (
	keyLocaleOverride     = "LANG_OVERRIDE"
	keyOnboardingComplete = "ONBOARDING_COMPLETE"
	keyAnalyticsConsent   = "ANALYTICS_CONSENT"
	keyRevisionToken      = "REVISION_TOKEN"
	keyNewExposure        = "NEW_EXPOSURE"

	userConsented    = "USER_CONSENTED"
	userNotConsented = "USER_NOT_CONSENTED"
)

// Typed accessors over a Store. Zero-value defaults: no locale override, not
// onboarded, no consent, empty revision token, no unseen exposure.

// GetLocaleOverride returns the user's locale override, empty when unset.
func GetLocaleOverride(ctx context.Context, s Store) (string, error) {
	value, _, err := s.Get(ctx, keyLocaleOverride)
	return value, err
}

// SetLocaleOverride stores the user's locale override.
func SetLocaleOverride(ctx context.Context, s Store, locale string) error {
	return s.Set(ctx, keyLocaleOverride, locale)
}

// GetOnboardingComplete reports whether onboarding has finished.
func GetOnboardingComplete(ctx context.Context, s Store) (bool, error) {
	value, ok, err := s.Get(ctx, keyOnboardingComplete)
	if err != nil {
		return false, err
	}
	return ok && value == keyOnboardingComplete, nil
}

// SetOnboardingComplete marks onboarding as finished.
func SetOnboardingComplete(ctx context.Context, s Store) error {
	return s.Set(ctx, keyOnboardingComplete, keyOnboardingComplete)
}

// RemoveOnboardingComplete resets the onboarding flag.
func RemoveOnboardingComplete(ctx context.Context, s Store) error {
	return s.Delete(ctx, keyOnboardingComplete)
}

// GetAnalyticsConsent reports whether the user consented to analytics.
// Absence means no consent.
func GetAnalyticsConsent(ctx context.Context, s Store) (bool, error) {
	value, _, err := s.Get(ctx, keyAnalyticsConsent)
	if err != nil {
		return false, err
	}
	return value == userConsented, nil
}

// SetAnalyticsConsent stores the user's analytics consent decision.
func SetAnalyticsConsent(ctx context.Context, s Store, consent bool) error {
	marker := userNotConsented
	if consent {
		marker = userConsented
	}
	return s.Set(ctx, keyAnalyticsConsent, marker)
}

// GetRevisionToken returns the persisted publish revision token, empty when
// this device has never published.
func GetRevisionToken(ctx context.Context, s Store) (string, error) {
	value, _, err := s.Get(ctx, keyRevisionToken)
	return value, err
}

// SetRevisionToken overwrites the persisted publish revision token.
func SetRevisionToken(ctx context.Context, s Store, token string) error {
	return s.Set(ctx, keyRevisionToken, token)
}

// GetUserHasNewExposure reports whether an exposure arrived that the user
// has not observed yet. The flag survives app restarts.
func GetUserHasNewExposure(ctx context.Context, s Store) (bool, error) {
	value, _, err := s.Get(ctx, keyNewExposure)
	if err != nil {
		return false, err
	}
	return value == "1", nil
}

// SetUserHasNewExposure records whether an unobserved exposure exists.
func SetUserHasNewExposure(ctx context.Context, s Store, hasNew bool) error {
	value := "0"
	if hasNew {
		value = "1"
	}
	return s.Set(ctx, keyNewExposure, value)
}
