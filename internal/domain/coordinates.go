package domain

import (
	"fmt"
	"math"
	"strings"
)

// Immutable geographic coordinates (longitude, latitude).
type Coordinates struct {
	Lon float64
	Lat float64
}

// Return coordinates as [lon, lat] for external API compatibility.
func (c Coordinates) CoordsToList() []float64 { return []float64{c.Lon, c.Lat} }

// Location is either a street address or a fixed coordinate pair.
// Coordinates win when both are set.
type Location struct {
	Address     string
	Coordinates *Coordinates
}

func AddressLocation(address string) Location {
	return Location{Address: address}
}

func CoordinateLocation(lat, lng float64) Location {
	return Location{Coordinates: &Coordinates{Lon: lng, Lat: lat}}
}

func (l Location) IsZero() bool {
	return l.Coordinates == nil && strings.TrimSpace(l.Address) == ""
}

// Key returns a stable identifier used for cache keys. Coordinates are
// rounded to 4 decimals (about 11m) so nearby fixes share a key.
func (l Location) Key() string {
	if l.Coordinates != nil {
		return fmt.Sprintf("@%.4f,%.4f", round4(l.Coordinates.Lat), round4(l.Coordinates.Lon))
	}
	return strings.Join(strings.Fields(l.Address), " ")
}

func (l Location) String() string {
	if l.Coordinates != nil {
		return fmt.Sprintf("%.6f,%.6f", l.Coordinates.Lat, l.Coordinates.Lon)
	}
	return l.Address
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
