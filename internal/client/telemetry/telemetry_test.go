package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DIMO-Network/fleet-sync/internal/client/rest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	restClient, err := rest.NewClient(srv.URL, srv.Client(), rest.RetryPolicy{}, zerolog.Nop())
	require.NoError(t, err)
	client, err := NewClient(restClient)
	require.NoError(t, err)
	return client
}

func TestGetVehicles(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vehicles", r.URL.Path)
		assert.Equal(t, "Bearer tok123", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[
			{"chassis":"VIN1","licensePlate":"ABC1D23","fuelLevel":75,"odometerKm":12000,"model":"Onix","latitude":-23.55,"longitude":-46.63,"pictureLink":"https://img.example.com/onix.png"},
			{"chassis":"VIN2","model":"HB20"}
		]`))
	})

	vehicles, err := client.GetVehicles(context.Background(), "tok123")
	require.NoError(t, err)
	require.Len(t, vehicles, 2)

	assert.Equal(t, "VIN1", *vehicles[0].Chassis)
	assert.InDelta(t, 75.0, *vehicles[0].FuelLevel, 0)
	assert.InDelta(t, -23.55, *vehicles[0].Latitude, 1e-9)
	assert.Equal(t, "HB20", *vehicles[1].Model)
	assert.Nil(t, vehicles[1].Latitude)
	assert.Nil(t, vehicles[1].LicensePlate)
}

func TestGetVehiclesUnauthorized(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.GetVehicles(context.Background(), "expired")
	require.ErrorIs(t, err, rest.ErrUnauthorized)
}

func TestGetVehiclesWrongShape(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"chassis":"VIN1","latitude":"north"}]`))
	})

	_, err := client.GetVehicles(context.Background(), "tok")
	require.ErrorIs(t, err, rest.ErrMalformedResponse)
}

func TestGetVehicleHistory(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vehicles/VIN1/history", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"timestamp":"2024-05-01T10:00:00Z","fuelLevel":80,"latitude":-23.5,"longitude":-46.6},
			{"timestamp":"2024-05-01T09:00:00Z","fuelLevel":82,"latitude":-23.4,"longitude":-46.5}
		]`))
	})

	history, err := client.GetVehicleHistory(context.Background(), "tok", "VIN1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2024-05-01T10:00:00Z", *history[0].Timestamp)
	assert.Equal(t, "2024-05-01T09:00:00Z", *history[1].Timestamp)
}

func TestGetVehicleHistoryEmpty(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	history, err := client.GetVehicleHistory(context.Background(), "tok", "VIN1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestGetVehicleHistoryEscapesID(t *testing.T) {
	var paths []string
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.EscapedPath())
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := client.GetVehicleHistory(context.Background(), "tok", "VIN/1")
	require.NoError(t, err)
	_, err = client.GetVehicleHistory(context.Background(), "tok", "VIN 2")
	require.NoError(t, err)
	assert.Equal(t, []string{"/vehicles/VIN%2F1/history", "/vehicles/VIN%202/history"}, paths)
}

func TestGetVehicleHistoryRejectsDotSegments(t *testing.T) {
	var calls int
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = w.Write([]byte(`[]`))
	})

	for _, id := range []string{"", ".", ".."} {
		_, err := client.GetVehicleHistory(context.Background(), "tok", id)
		require.Error(t, err, id)
	}
	assert.Zero(t, calls)
}
