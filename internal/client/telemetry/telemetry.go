// Package telemetry fetches vehicles and their telemetry history from the fleet API.
package telemetry

import (
	"context"
	"fmt"
	"net/url"

	"github.com/DIMO-Network/fleet-sync/internal/client/rest"
)

const (
	vehiclesPath = "vehicles"
	historyPath  = "history"
)

// Client interacts with the fleet API's vehicle endpoints.
type Client struct {
	rest *rest.Client
}

// NewClient creates a new instance of Client.
func NewClient(restClient *rest.Client) (*Client, error) {
	if restClient == nil {
		return nil, fmt.Errorf("REST client is nil")
	}
	return &Client{rest: restClient}, nil
}

// GetVehicles fetches the fleet visible to token.
func (c *Client) GetVehicles(ctx context.Context, token string) ([]RawVehicle, error) {
	var vehicles []RawVehicle
	if err := c.rest.Get(ctx, token, &vehicles, vehiclesPath); err != nil {
		return nil, fmt.Errorf("failed to get vehicles: %w", err)
	}
	return vehicles, nil
}

// GetVehicleHistory fetches the telemetry history of one vehicle in the order the API returns it.
// vehicleID is sent as a single escaped path segment.
func (c *Client) GetVehicleHistory(ctx context.Context, token, vehicleID string) ([]RawHistoryEntry, error) {
	switch vehicleID {
	case "", ".", "..":
		return nil, fmt.Errorf("invalid vehicle id %q", vehicleID)
	}
	var history []RawHistoryEntry
	if err := c.rest.Get(ctx, token, &history, vehiclesPath, url.PathEscape(vehicleID), historyPath); err != nil {
		return nil, fmt.Errorf("failed to get history for vehicle %s: %w", vehicleID, err)
	}
	return history, nil
}
