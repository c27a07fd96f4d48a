// Package geo holds the geographic results of the engine: boundary curves,
// shadow polygons and their GeoJSON encodings.
package geo

import (
	"math"
)

// Position is a point on the Earth in degrees, east-positive longitude.
type Position struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Valid reports whether both coordinates are finite and in range.
func (p Position) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lon) &&
		math.Abs(p.Lat) <= 90 && math.Abs(p.Lon) <= 180
}

// Crossing returns the abscissa where a linear field through (x0, f0) and
// (x1, f1) crosses zero.
func Crossing(x0, f0, x1, f1 float64) float64 {
	sum := math.Abs(f0) + math.Abs(f1)
	if sum == 0 {
		return x1
	}
	return x1 - (x1-x0)*math.Abs(f1)/sum
}

// BBox is a latitude/longitude rectangle.
type BBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// EmptyBBox returns a box that any Extend call replaces.
func EmptyBBox() BBox {
	return BBox{MinLat: math.Inf(1), MaxLat: math.Inf(-1), MinLon: math.Inf(1), MaxLon: math.Inf(-1)}
}

// Empty reports whether the box contains no points.
func (b BBox) Empty() bool { return b.MinLat > b.MaxLat || b.MinLon > b.MaxLon }

// Extend grows the box to cover p.
func (b *BBox) Extend(p Position) {
	b.MinLat = math.Min(b.MinLat, p.Lat)
	b.MaxLat = math.Max(b.MaxLat, p.Lat)
	b.MinLon = math.Min(b.MinLon, p.Lon)
	b.MaxLon = math.Max(b.MaxLon, p.Lon)
}

// Union returns the smallest box covering both.
func (b BBox) Union(o BBox) BBox {
	return BBox{
		MinLat: math.Min(b.MinLat, o.MinLat),
		MaxLat: math.Max(b.MaxLat, o.MaxLat),
		MinLon: math.Min(b.MinLon, o.MinLon),
		MaxLon: math.Max(b.MaxLon, o.MaxLon),
	}
}

// Contains reports whether p lies inside the box, edges included.
func (b BBox) Contains(p Position) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// PoleSmoothing inserts synthetic points across a pole so that a ring
// wrapping around it renders without self-intersection on a plate carrée
// map.
type PoleSmoothing struct {
	North   bool    `yaml:"north"`
	South   bool    `yaml:"south"`
	Trigger float64 `yaml:"trigger_latitude"` // degrees; both ends must be poleward of it
	MaxJump float64 `yaml:"max_longitude_jump"`
}

// DefaultPoleSmoothing smooths only the north pole.
func DefaultPoleSmoothing() PoleSmoothing {
	return PoleSmoothing{North: true, Trigger: 75, MaxJump: 30}
}

// Apply returns ring with a detour through the pole inserted between every
// pair of consecutive points that are both poleward of the trigger and whose
// longitudes jump by more than MaxJump.
func (s PoleSmoothing) Apply(ring []Position) []Position {
	if len(ring) < 2 || (!s.North && !s.South) {
		return ring
	}
	out := make([]Position, 0, len(ring)+4)
	out = append(out, ring[0])
	for i := 1; i < len(ring); i++ {
		a, b := ring[i-1], ring[i]
		if pole, ok := s.detour(a, b); ok {
			out = append(out, Position{Lat: pole, Lon: a.Lon}, Position{Lat: pole, Lon: b.Lon})
		}
		out = append(out, b)
	}
	return out
}

func (s PoleSmoothing) detour(a, b Position) (float64, bool) {
	if math.Abs(b.Lon-a.Lon) <= s.MaxJump {
		return 0, false
	}
	switch {
	case s.North && a.Lat > s.Trigger && b.Lat > s.Trigger:
		return 90, true
	case s.South && a.Lat < -s.Trigger && b.Lat < -s.Trigger:
		return -90, true
	}
	return 0, false
}
