// Package history keeps the device's current exposure set warm for the UI:
// it caches the latest conversion of the platform's exposure records and
// tracks whether the user has an exposure they have not looked at yet.
package history

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pathcheck/enclient/internal/bridge"
	"github.com/pathcheck/enclient/internal/exposure"
	"github.com/pathcheck/enclient/internal/observability"
	"github.com/pathcheck/enclient/internal/storage"
)

// exposureSource is the slice of the platform bridge the store needs.
type exposureSource interface {
	GetCurrentExposures(ctx context.Context) ([]exposure.RawExposure, error)
	FetchLastDetectionDate(ctx context.Context) (*exposure.Posix, error)
	DetectExposures(ctx context.Context) error
}

const refreshTimeout = 5 * time.Second

// Store caches the current exposure set. Every platform emission carries the
// complete set, so updates replace the cache wholesale rather than merging.
type Store struct {
	native exposureSource
	hub    *bridge.Hub
	kv     storage.Store
	logger *slog.Logger

	mu                sync.RWMutex
	info              exposure.Info
	lastDetectionDate *exposure.Posix

	subscription *bridge.Subscription
	closeOnce    sync.Once
}

// NewStore creates an exposure history store. Call Start to subscribe and
// perform the initial fetch.
func NewStore(native exposureSource, hub *bridge.Hub, kv storage.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		native: native,
		hub:    hub,
		kv:     kv,
		logger: logger,
	}
}

// Start subscribes to exposure-record updates and loads the current set.
func (s *Store) Start(ctx context.Context) {
	s.subscription = s.hub.Subscribe(bridge.EventExposureRecordsUpdated, s.onExposureRecords)
	if err := s.fetch(ctx); err != nil {
		s.logger.Warn("initial exposure fetch failed", "error", err.Error())
	}
	s.refreshLastDetectionDate(ctx)
}

// Close removes the event subscription. Safe to call more than once.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		if s.subscription != nil {
			s.subscription.Remove()
		}
	})
}

func (s *Store) onExposureRecords(event bridge.Event) {
	raw, ok := event.Payload.([]exposure.RawExposure)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	s.replace(ctx, raw)
	s.refreshLastDetectionDate(ctx)
}

// Refresh re-runs platform-side detection and reloads the current exposure
// set. Used by pull-to-refresh and screen-focus paths that cannot wait for
// a platform push.
func (s *Store) Refresh(ctx context.Context) error {
	observability.GetMetrics().HistoryRefreshes.Inc()
	if err := s.native.DetectExposures(ctx); err != nil {
		return err
	}
	if err := s.fetch(ctx); err != nil {
		return err
	}
	s.refreshLastDetectionDate(ctx)
	return nil
}

func (s *Store) fetch(ctx context.Context) error {
	raw, err := s.native.GetCurrentExposures(ctx)
	if err != nil {
		return err
	}
	s.replace(ctx, raw)
	return nil
}

// replace swaps in the converted set. A set that grew since the last one
// marks the user as having a new, unseen exposure.
func (s *Store) replace(ctx context.Context, raw []exposure.RawExposure) {
	info := exposure.ToExposureInfo(raw)

	s.mu.Lock()
	grew := len(info) > len(s.info)
	s.info = info
	s.mu.Unlock()

	metrics := observability.GetMetrics()
	metrics.ExposureEventsReceived.Inc()
	metrics.ExposuresCurrent.Set(float64(len(info)))

	if grew {
		if err := storage.SetUserHasNewExposure(ctx, s.kv, true); err != nil {
			s.logger.Warn("failed to persist new-exposure flag", "error", err.Error())
		}
	}
}

func (s *Store) refreshLastDetectionDate(ctx context.Context) {
	date, err := s.native.FetchLastDetectionDate(ctx)
	if err != nil {
		s.logger.Warn("last detection date fetch failed", "error", err.Error())
		return
	}
	s.mu.Lock()
	s.lastDetectionDate = date
	s.mu.Unlock()
}

// Exposures returns the cached exposure set, most recent first.
func (s *Store) Exposures() exposure.Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(exposure.Info, len(s.info))
	copy(out, s.info)
	return out
}

// LastDetectionDate returns when the platform last ran detection, or nil if
// it never has.
func (s *Store) LastDetectionDate() *exposure.Posix {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastDetectionDate
}

// UserHasNewExposure reports whether an exposure arrived that the user has
// not observed yet. The flag survives restarts.
func (s *Store) UserHasNewExposure(ctx context.Context) bool {
	hasNew, err := storage.GetUserHasNewExposure(ctx, s.kv)
	if err != nil {
		s.logger.Warn("failed to read new-exposure flag", "error", err.Error())
		return false
	}
	return hasNew
}

// ObserveExposures records that the user has looked at the exposure list,
// clearing the new-exposure flag.
func (s *Store) ObserveExposures(ctx context.Context) {
	if err := storage.SetUserHasNewExposure(ctx, s.kv, false); err != nil {
		s.logger.Warn("failed to clear new-exposure flag", "error", err.Error())
	}
}
