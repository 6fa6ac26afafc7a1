package domain

import (
	"time"

	"github.com/paulmach/orb"

	"github.com/rugbymap/rugbymap/internal/normalize"
)

// NormalizedAddress is the postal address of a club's ground.
type NormalizedAddress struct {
	ClubKey string `json:"club_key"`
	// Name is the display name of the club, kept for reporting.
	Name    string `json:"name,omitempty"`
	RawText string `json:"raw_text"`
	// Season records which season's listing produced the lookup.
	Season     string    `json:"season"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// AddressKey is the geocode cache key for this address.
func (a NormalizedAddress) AddressKey() string {
	return normalize.AddressKey(a.RawText)
}

// GeoCoordinate is a geocoded address in WGS84 degrees.
type GeoCoordinate struct {
	AddressKey       string    `json:"address_key"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	FormattedAddress string    `json:"formatted_address,omitempty"`
	PlaceID          string    `json:"place_id,omitempty"`
	ResolvedAt       time.Time `json:"resolved_at"`
}

// Point returns the coordinate as lon/lat.
func (c GeoCoordinate) Point() orb.Point {
	return orb.Point{c.Longitude, c.Latitude}
}
