package telemetry

// RawVehicle is a vehicle record as sent by the fleet API. Fields are pointers so
// that a missing field can be told apart from a zero value.
type RawVehicle struct {
	Chassis      *string  `json:"chassis"`
	LicensePlate *string  `json:"licensePlate"`
	FuelLevel    *float64 `json:"fuelLevel"`
	OdometerKm   *float64 `json:"odometerKm"`
	Model        *string  `json:"model"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	PictureLink  *string  `json:"pictureLink"`
}

// RawHistoryEntry is a single telemetry sample as sent by the fleet API.
type RawHistoryEntry struct {
	Timestamp *string  `json:"timestamp"`
	FuelLevel *float64 `json:"fuelLevel"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}
