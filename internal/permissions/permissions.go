// Package permissions reconciles the raw exposure-notification status tuple
// and the system service switches (Bluetooth, location) into the small set
// of named states the UI and alerting run on.
package permissions

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pathcheck/enclient/internal/bridge"
	"github.com/pathcheck/enclient/internal/observability"
)

// Platform identifies the host OS. The reduction rules and the foreground
// event name differ per platform.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// ForegroundEvent returns the app-state event the platform emits when the
// app returns to the foreground.
func (p Platform) ForegroundEvent() bridge.EventType {
	if p == PlatformAndroid {
		return bridge.EventAppStateFocus
	}
	return bridge.EventAppStateChange
}

// ENStatus is the reduced three-valued exposure-notification status.
type ENStatus string

const (
	NotAuthorized ENStatus = "NOT_AUTHORIZED"
	ENDisabled    ENStatus = "DISABLED"
	ENEnabled     ENStatus = "ENABLED"
)

// LocationPermissions describes whether scanning needs location services and
// whether they are on.
type LocationPermissions string

const (
	LocationNotRequired LocationPermissions = "NotRequired"
	LocationRequiredOff LocationPermissions = "RequiredOff"
	LocationRequiredOn  LocationPermissions = "RequiredOn"
)

// ReduceENStatus reduces the raw authorization/enablement tuple. iOS has a
// distinct unauthorized alert path; Android exposes no separate
// unauthorized concept to the user, so an unauthorized tuple reads as
// disabled there.
func ReduceENStatus(raw bridge.RawENStatus, platform Platform) ENStatus {
	if raw.Authorization != bridge.Authorized {
		if platform == PlatformIOS {
			return NotAuthorized
		}
		return ENDisabled
	}
	if raw.Enablement != bridge.Enabled {
		return ENDisabled
	}
	return ENEnabled
}

// systemServices is the slice of the platform bridge the reconciler needs.
type systemServices interface {
	GetCurrentENPermissionsStatus(ctx context.Context) (bridge.RawENStatus, error)
	RequestAuthorization(ctx context.Context) error
	IsBluetoothEnabled(ctx context.Context) (bool, error)
	IsLocationEnabled(ctx context.Context) (bool, error)
	DeviceSupportsLocationlessScanning(ctx context.Context) (bool, error)
}

const refreshTimeout = 5 * time.Second

// Reconciler merges the three independent signals into derived state. All
// refresh paths swallow platform errors: a failed check keeps the prior
// state rather than surfacing a transient bridge hiccup to the user.
type Reconciler struct {
	native   systemServices
	hub      *bridge.Hub
	platform Platform
	logger   *slog.Logger

	mu               sync.RWMutex
	status           ENStatus
	bluetoothOn      bool
	locationOn       bool
	locationRequired bool

	subscriptions []*bridge.Subscription
	closeOnce     sync.Once
}

// NewReconciler creates a reconciler in its initial state (everything off
// and unauthorized). Call Start to subscribe and perform the first check.
func NewReconciler(native systemServices, hub *bridge.Hub, platform Platform, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	status := ENDisabled
	if platform == PlatformIOS {
		status = NotAuthorized
	}
	return &Reconciler{
		native:   native,
		hub:      hub,
		platform: platform,
		logger:   logger,
		status:   status,
	}
}

// Start subscribes to platform push events and the foreground transition,
// determines whether this device requires location services, and performs
// the initial check.
func (r *Reconciler) Start(ctx context.Context) {
	r.subscriptions = append(r.subscriptions,
		r.hub.Subscribe(bridge.EventENStatusUpdated, r.onENStatus),
		r.hub.Subscribe(bridge.EventBluetoothStatusUpdated, r.onBluetooth),
		r.hub.Subscribe(bridge.EventLocationStatusUpdated, r.onLocation),
		r.hub.Subscribe(r.platform.ForegroundEvent(), r.onForeground),
	)

	r.determineLocationRequirement(ctx)
	r.Check(ctx)
}

// Close removes all event subscriptions. Safe to call more than once.
func (r *Reconciler) Close() {
	r.closeOnce.Do(func() {
		for _, sub := range r.subscriptions {
			sub.Remove()
		}
	})
}

func (r *Reconciler) onENStatus(event bridge.Event) {
	raw, ok := event.Payload.(bridge.RawENStatus)
	if !ok {
		return
	}
	r.mu.Lock()
	r.status = ReduceENStatus(raw, r.platform)
	r.mu.Unlock()
	observability.GetMetrics().PermissionRefreshes.Inc()
}

func (r *Reconciler) onBluetooth(event bridge.Event) {
	on, ok := event.Payload.(bool)
	if !ok {
		return
	}
	r.mu.Lock()
	r.bluetoothOn = on
	r.mu.Unlock()
	observability.GetMetrics().PermissionRefreshes.Inc()
}

func (r *Reconciler) onLocation(event bridge.Event) {
	on, ok := event.Payload.(bool)
	if !ok {
		return
	}
	r.mu.Lock()
	r.locationOn = on
	r.mu.Unlock()
	observability.GetMetrics().PermissionRefreshes.Inc()
}

func (r *Reconciler) onForeground(bridge.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	r.Check(ctx)
}

func (r *Reconciler) determineLocationRequirement(ctx context.Context) {
	// Only Android devices can require location services for scanning.
	if r.platform != PlatformAndroid {
		return
	}
	supported, err := r.native.DeviceSupportsLocationlessScanning(ctx)
	if err != nil {
		r.logger.Warn("locationless scanning support check failed",
			"error", err.Error())
		return
	}
	r.mu.Lock()
	r.locationRequired = !supported
	r.mu.Unlock()
}

// Check refreshes all three signals from the platform. Each signal that
// fails to read keeps its prior value.
func (r *Reconciler) Check(ctx context.Context) {
	observability.GetMetrics().PermissionRefreshes.Inc()

	if raw, err := r.native.GetCurrentENPermissionsStatus(ctx); err != nil {
		r.logger.Warn("EN permission check failed", "error", err.Error())
	} else {
		r.mu.Lock()
		r.status = ReduceENStatus(raw, r.platform)
		r.mu.Unlock()
	}

	if on, err := r.native.IsBluetoothEnabled(ctx); err != nil {
		r.logger.Warn("bluetooth check failed", "error", err.Error())
	} else {
		r.mu.Lock()
		r.bluetoothOn = on
		r.mu.Unlock()
	}

	if on, err := r.native.IsLocationEnabled(ctx); err != nil {
		r.logger.Warn("location check failed", "error", err.Error())
	} else {
		r.mu.Lock()
		r.locationOn = on
		r.mu.Unlock()
	}
}

// Request asks the platform for exposure-notification authorization and
// refreshes. Bridge errors never reach the caller.
func (r *Reconciler) Request(ctx context.Context) {
	if err := r.native.RequestAuthorization(ctx); err != nil {
		r.logger.Warn("authorization request failed", "error", err.Error())
	}
	r.Check(ctx)
}

// Status returns the reduced exposure-notification status.
func (r *Reconciler) Status() ENStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// BluetoothOn reports the last known Bluetooth state.
func (r *Reconciler) BluetoothOn() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bluetoothOn
}

// LocationPermissions returns the derived location state.
func (r *Reconciler) LocationPermissions() LocationPermissions {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.locationPermissionsLocked()
}

func (r *Reconciler) locationPermissionsLocked() LocationPermissions {
	if !r.locationRequired {
		return LocationNotRequired
	}
	if r.locationOn {
		return LocationRequiredOn
	}
	return LocationRequiredOff
}

// ExposureDetectionActive is the single source of truth for "is the device
// actively scanning": EN enabled, Bluetooth on, and location either not
// required or on.
func (r *Reconciler) ExposureDetectionActive() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status == ENEnabled &&
		r.bluetoothOn &&
		r.locationPermissionsLocked() != LocationRequiredOff
}
