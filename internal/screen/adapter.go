package screen

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/DIMO-Network/fleet-sync/internal/fleet"
	"github.com/DIMO-Network/fleet-sync/internal/session"
)

// Marker is one map pin.
type Marker struct {
	Key         string  `json:"key"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// HistoryRow is one row of the history list.
type HistoryRow struct {
	Timestamp time.Time `json:"timestamp"`
	DateTime  string    `json:"dateTime"`
	Fuel      string    `json:"fuel"`
	Position  string    `json:"position"`
}

// VehicleHeader is the detail panel shown above the history list.
type VehicleHeader struct {
	Chassis     string `json:"chassis"`
	Model       string `json:"model"`
	PictureLink string `json:"pictureLink"`
	Odometer    string `json:"odometer"`
	Fuel        string `json:"fuel"`
	Identity    string `json:"identity"`
}

// Greeting is the header avatar block.
type Greeting struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

const dateTimeLayout = "02/01/2006 15:04"

// ToMarkers renders one marker per vehicle keyed by chassis.
func ToMarkers(vehicles []fleet.Vehicle) []Marker {
	markers := make([]Marker, 0, len(vehicles))
	for _, v := range vehicles {
		markers = append(markers, Marker{
			Key:         v.Chassis,
			Title:       v.Model,
			Description: v.LicensePlate,
			Latitude:    v.Latitude,
			Longitude:   v.Longitude,
		})
	}
	return markers
}

// ToHistoryRows renders history entries in the order given.
func ToHistoryRows(history []fleet.HistoryEntry) []HistoryRow {
	rows := make([]HistoryRow, 0, len(history))
	for _, h := range history {
		rows = append(rows, HistoryRow{
			Timestamp: h.Timestamp,
			DateTime:  h.Timestamp.Format(dateTimeLayout),
			Fuel:      formatPercent(h.FuelLevel),
			Position:  fmt.Sprintf("%.5f, %.5f", h.Latitude, h.Longitude),
		})
	}
	return rows
}

// ToHeader renders the vehicle detail panel.
func ToHeader(v fleet.Vehicle) VehicleHeader {
	return VehicleHeader{
		Chassis:     v.Chassis,
		Model:       v.Model,
		PictureLink: v.PictureLink,
		Odometer:    strconv.FormatFloat(v.OdometerKm, 'f', -1, 64) + " km",
		Fuel:        formatPercent(v.FuelLevel),
		Identity:    v.Chassis + " • " + v.LicensePlate,
	}
}

// NewGreeting builds the avatar block for profile using an initials-avatar service.
func NewGreeting(profile session.Profile, avatarBaseURL string) Greeting {
	query := url.Values{}
	query.Set("name", profile.Name)
	query.Set("background", "random")
	return Greeting{
		Name:      profile.Name,
		AvatarURL: avatarBaseURL + "?" + query.Encode(),
	}
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}
