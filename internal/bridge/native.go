// Package bridge defines the boundary to the platform exposure-notification
// layer. The platform side owns detection, permissions, and the key store;
// this side consumes its events and calls its operations through a fixed
// interface.
package bridge

import (
	"context"

	"github.com/pathcheck/enclient/internal/exposure"
	"github.com/pathcheck/enclient/internal/keys"
)

// Authorization is the raw EN authorization half of the platform status tuple.
type Authorization string

const (
	Unauthorized Authorization = "UNAUTHORIZED"
	Authorized   Authorization = "AUTHORIZED"
)

// Enablement is the raw EN enablement half of the platform status tuple.
type Enablement string

const (
	Disabled Enablement = "DISABLED"
	Enabled  Enablement = "ENABLED"
)

// RawENStatus is the two-element authorization/enablement tuple the
// platform layer reports. It carries no platform-specific interpretation;
// reduction rules live in the permissions package.
type RawENStatus struct {
	Authorization Authorization
	Enablement    Enablement
}

// Native is the complete operation surface of the platform collaborator.
// Every call is asynchronous on the platform side and may be pending
// indefinitely; callers bound their own waits.
type Native interface {
	// Permissions
	GetCurrentENPermissionsStatus(ctx context.Context) (RawENStatus, error)
	RequestAuthorization(ctx context.Context) error

	// Exposure history
	GetCurrentExposures(ctx context.Context) ([]exposure.RawExposure, error)
	FetchLastDetectionDate(ctx context.Context) (*exposure.Posix, error)
	DetectExposures(ctx context.Context) error

	// Diagnosis keys
	FetchExposureKeys(ctx context.Context) ([]keys.RawExposureKey, error)
	StoreRevisionToken(ctx context.Context, token string) error
	GetRevisionToken(ctx context.Context) (string, error)

	// System services
	IsBluetoothEnabled(ctx context.Context) (bool, error)
	IsLocationEnabled(ctx context.Context) (bool, error)
	DeviceSupportsLocationlessScanning(ctx context.Context) (bool, error)
}
