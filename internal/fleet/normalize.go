package fleet

import (
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/DIMO-Network/fleet-sync/internal/apperr"
	"github.com/DIMO-Network/fleet-sync/internal/client/telemetry"
)

// Vehicle is a validated fleet member.
type Vehicle struct {
	Chassis      string  `json:"chassis"`
	LicensePlate string  `json:"licensePlate"`
	FuelLevel    float64 `json:"fuelLevel"`
	OdometerKm   float64 `json:"odometerKm"`
	Model        string  `json:"model"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	PictureLink  string  `json:"pictureLink"`
}

// HistoryEntry is a validated telemetry sample.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	FuelLevel float64   `json:"fuelLevel"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
}

// NormalizeVehicles validates every raw record. Any invalid record fails the whole
// list; a nil slice is never returned on success.
func NormalizeVehicles(raw []telemetry.RawVehicle) ([]Vehicle, error) {
	verr := apperr.NewValidationError("vehicles")
	vehicles := make([]Vehicle, 0, len(raw))
	seen := make(map[string]int, len(raw))

	for i, r := range raw {
		v := Vehicle{
			Chassis:      requireString(verr, i, "chassis", r.Chassis),
			LicensePlate: requireString(verr, i, "licensePlate", r.LicensePlate),
			Model:        requireString(verr, i, "model", r.Model),
			FuelLevel:    requireRange(verr, i, "fuelLevel", r.FuelLevel, 0, 100),
			OdometerKm:   requireRange(verr, i, "odometerKm", r.OdometerKm, 0, math.MaxFloat64),
			Latitude:     requireRange(verr, i, "latitude", r.Latitude, -90, 90),
			Longitude:    requireRange(verr, i, "longitude", r.Longitude, -180, 180),
			PictureLink:  requireURI(verr, i, "pictureLink", r.PictureLink),
		}
		if v.Chassis != "" {
			if first, dup := seen[v.Chassis]; dup {
				verr.AddAt(i, "chassis", fmt.Sprintf("duplicate of record %d", first))
			} else {
				seen[v.Chassis] = i
			}
		}
		vehicles = append(vehicles, v)
	}

	if verr.HasErrors() {
		return nil, verr
	}
	return vehicles, nil
}

// NormalizeHistory validates every raw sample, preserving receipt order.
func NormalizeHistory(raw []telemetry.RawHistoryEntry) ([]HistoryEntry, error) {
	verr := apperr.NewValidationError("history")
	history := make([]HistoryEntry, 0, len(raw))

	for i, r := range raw {
		history = append(history, HistoryEntry{
			Timestamp: requireTime(verr, i, "timestamp", r.Timestamp),
			FuelLevel: requireRange(verr, i, "fuelLevel", r.FuelLevel, 0, 100),
			Latitude:  requireRange(verr, i, "latitude", r.Latitude, -90, 90),
			Longitude: requireRange(verr, i, "longitude", r.Longitude, -180, 180),
		})
	}

	if verr.HasErrors() {
		return nil, verr
	}
	return history, nil
}

func requireString(verr *apperr.ValidationError, i int, field string, value *string) string {
	if value == nil || *value == "" {
		verr.AddAt(i, field, "required")
		return ""
	}
	return *value
}

func requireRange(verr *apperr.ValidationError, i int, field string, value *float64, lower, upper float64) float64 {
	switch {
	case value == nil:
		verr.AddAt(i, field, "required")
		return 0
	case math.IsNaN(*value) || math.IsInf(*value, 0):
		verr.AddAt(i, field, "must be finite")
		return 0
	case *value < lower || *value > upper:
		verr.AddAt(i, field, fmt.Sprintf("%v out of range [%v, %v]", *value, lower, upper))
		return 0
	}
	return *value
}

func requireURI(verr *apperr.ValidationError, i int, field string, value *string) string {
	s := requireString(verr, i, field, value)
	if s == "" {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		verr.AddAt(i, field, "must be an absolute URI")
		return ""
	}
	return s
}

func requireTime(verr *apperr.ValidationError, i int, field string, value *string) time.Time {
	s := requireString(verr, i, field, value)
	if s == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		verr.AddAt(i, field, "must be an RFC 3339 timestamp")
		return time.Time{}
	}
	return ts
}
