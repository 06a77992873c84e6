package models

import (
	"time"
)

// Station represents a weather station from the reference table.
// Stations are keyed by WMO index.
type Station struct {
	StationID string    `json:"station_id" db:"station_id"`
	Name      string    `json:"name" db:"name"`
	Latitude  float64   `json:"latitude" db:"latitude"`
	Longitude float64   `json:"longitude" db:"longitude"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Location returns the lookup view of the station.
func (s *Station) Location() StationLocation {
	return StationLocation{
		StationID: s.StationID,
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
	}
}

// StationLocation is the position used for grid matching.
// Values are immutable once looked up.
type StationLocation struct {
	StationID string  `json:"station_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
