// Package fleet fetches and normalizes vehicles and vehicle history behind the session guard.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/DIMO-Network/fleet-sync/internal/apperr"
	"github.com/DIMO-Network/fleet-sync/internal/client/rest"
	"github.com/DIMO-Network/fleet-sync/internal/client/telemetry"
	"github.com/DIMO-Network/fleet-sync/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	resourceVehicles = "vehicles"
	resourceHistory  = "history"
)

// Sessions is the part of the session guard the fetchers use.
type Sessions interface {
	RequireSession() (string, error)
	Revoke(token string) error
}

// VehicleSource fetches raw vehicle records.
type VehicleSource interface {
	GetVehicles(ctx context.Context, token string) ([]telemetry.RawVehicle, error)
}

// HistorySource fetches raw history records for one vehicle.
type HistorySource interface {
	GetVehicleHistory(ctx context.Context, token, vehicleID string) ([]telemetry.RawHistoryEntry, error)
}

// fetcher holds what both fetchers share: session gating, coalescing and error mapping.
type fetcher struct {
	sessions Sessions
	group    singleflight.Group
	logger   *zerolog.Logger
}

// do runs fn at most once per key at a time. Callers whose context ends first
// get ctx.Err(); the shared call keeps running for the others.
func (f *fetcher) do(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (any, error) {
	ch := f.group.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			f.logger.Debug().Str("key", key).Msg("coalesced fetch")
		}
		return res.Val, res.Err
	}
}

// classify maps a remote error onto the taxonomy. An authorization failure
// revokes the session that produced it.
func (f *fetcher) classify(resource, token string, err error) error {
	switch {
	case errors.Is(err, rest.ErrUnauthorized):
		f.logger.Info().Str("resource", resource).Msg("session rejected by fleet API, clearing")
		metrics.SessionActive.Set(0)
		return fmt.Errorf("fetch %s: %w", resource, f.sessions.Revoke(token))
	case errors.Is(err, rest.ErrMalformedResponse):
		return &apperr.ValidationError{Source: resource, Err: err}
	default:
		return fmt.Errorf("fetch %s: %w: %w", resource, apperr.ErrServiceUnavailable, err)
	}
}

func (f *fetcher) observe(resource string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = apperr.KindOf(err).String()
		f.logger.Warn().Err(err).Str("resource", resource).Str("outcome", outcome).Msg("fetch failed")
	}
	metrics.FetchTotal.WithLabelValues(resource, outcome).Inc()
	if !start.IsZero() {
		metrics.FetchLatency.WithLabelValues(resource).Observe(time.Since(start).Seconds())
	}
}

// VehicleFetcher retrieves the fleet of the current session.
type VehicleFetcher struct {
	fetcher
	source VehicleSource
}

// NewVehicleFetcher creates a VehicleFetcher.
func NewVehicleFetcher(sessions Sessions, source VehicleSource, logger zerolog.Logger) (*VehicleFetcher, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session guard is nil")
	}
	if source == nil {
		return nil, fmt.Errorf("vehicle source is nil")
	}
	return &VehicleFetcher{
		fetcher: fetcher{sessions: sessions, logger: &logger},
		source:  source,
	}, nil
}

// FetchAll returns the whole fleet or an error; never a partial list. Without a
// session it returns apperr.ErrAuthRequired without touching the network.
func (f *VehicleFetcher) FetchAll(ctx context.Context) ([]Vehicle, error) {
	token, err := f.sessions.RequireSession()
	if err != nil {
		f.observe(resourceVehicles, time.Time{}, err)
		return nil, fmt.Errorf("fetch %s: %w", resourceVehicles, err)
	}

	val, err := f.do(ctx, resourceVehicles+":"+token, func(ctx context.Context) (any, error) {
		start := time.Now()
		vehicles, err := f.fetch(ctx, token)
		f.observe(resourceVehicles, start, err)
		return vehicles, err
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(val.([]Vehicle)), nil
}

func (f *VehicleFetcher) fetch(ctx context.Context, token string) ([]Vehicle, error) {
	raw, err := f.source.GetVehicles(ctx, token)
	if err != nil {
		return nil, f.classify(resourceVehicles, token, err)
	}
	return NormalizeVehicles(raw)
}

// HistoryFetcher retrieves the telemetry history of a single vehicle.
type HistoryFetcher struct {
	fetcher
	source HistorySource
}

// NewHistoryFetcher creates a HistoryFetcher.
func NewHistoryFetcher(sessions Sessions, source HistorySource, logger zerolog.Logger) (*HistoryFetcher, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session guard is nil")
	}
	if source == nil {
		return nil, fmt.Errorf("history source is nil")
	}
	return &HistoryFetcher{
		fetcher: fetcher{sessions: sessions, logger: &logger},
		source:  source,
	}, nil
}

// FetchHistory returns the history of vehicleID in receipt order. An empty
// history is a success with zero entries.
func (f *HistoryFetcher) FetchHistory(ctx context.Context, vehicleID string) ([]HistoryEntry, error) {
	token, err := f.sessions.RequireSession()
	if err != nil {
		f.observe(resourceHistory, time.Time{}, err)
		return nil, fmt.Errorf("fetch %s: %w", resourceHistory, err)
	}
	switch vehicleID {
	case "":
		verr := apperr.NewValidationError("vehicle")
		verr.Add("vehicleId", "required")
		return nil, verr
	case ".", "..":
		verr := apperr.NewValidationError("vehicle")
		verr.Add("vehicleId", "invalid")
		return nil, verr
	}

	val, err := f.do(ctx, resourceHistory+":"+vehicleID+":"+token, func(ctx context.Context) (any, error) {
		start := time.Now()
		history, err := f.fetch(ctx, token, vehicleID)
		f.observe(resourceHistory, start, err)
		return history, err
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(val.([]HistoryEntry)), nil
}

func (f *HistoryFetcher) fetch(ctx context.Context, token, vehicleID string) ([]HistoryEntry, error) {
	raw, err := f.source.GetVehicleHistory(ctx, token, vehicleID)
	if err != nil {
		return nil, f.classify(resourceHistory, token, err)
	}
	return NormalizeHistory(raw)
}
