package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lng"`
}

// Valid reports whether both components are finite and within WGS 84 range.
func (p GeoPoint) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lon) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// LngLat returns the point in renderer order.
func (p GeoPoint) LngLat() [2]float64 {
	return [2]float64{p.Lon, p.Lat}
}

// Orb converts the point to an orb.Point (x = lng, y = lat).
func (p GeoPoint) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// PointFromOrb is the inverse of GeoPoint.Orb.
func PointFromOrb(p orb.Point) GeoPoint {
	return GeoPoint{Lat: p.Lat(), Lon: p.Lon()}
}

// ParseCoordinates parses the CMS "lat, lng" notation.
func ParseCoordinates(s string) (GeoPoint, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return GeoPoint{}, fmt.Errorf("%w: %q", ErrInvalidCoordinates, s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return GeoPoint{}, fmt.Errorf("%w: lat %q", ErrInvalidCoordinates, parts[0])
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return GeoPoint{}, fmt.Errorf("%w: lng %q", ErrInvalidCoordinates, parts[1])
	}
	p := GeoPoint{Lat: lat, Lon: lon}
	if !p.Valid() {
		return GeoPoint{}, fmt.Errorf("%w: %q", ErrInvalidCoordinates, s)
	}
	return p, nil
}

// GeoLineString represents an ordered sequence of geographic coordinates.
type GeoLineString struct {
	Coordinates []GeoPoint `json:"coordinates"`
}

// Orb converts the line to an orb.LineString.
func (l GeoLineString) Orb() orb.LineString {
	ls := make(orb.LineString, 0, len(l.Coordinates))
	for _, c := range l.Coordinates {
		ls = append(ls, c.Orb())
	}
	return ls
}

// LineFromOrb is the inverse of GeoLineString.Orb.
func LineFromOrb(ls orb.LineString) GeoLineString {
	coords := make([]GeoPoint, 0, len(ls))
	for _, p := range ls {
		coords = append(coords, PointFromOrb(p))
	}
	return GeoLineString{Coordinates: coords}
}

// Drawable reports whether the line has at least two points and every point is finite.
func (l GeoLineString) Drawable() bool {
	if len(l.Coordinates) < 2 {
		return false
	}
	for _, c := range l.Coordinates {
		if !c.Valid() {
			return false
		}
	}
	return true
}

// Bounds returns the bounding box enclosing every coordinate.
func (l GeoLineString) Bounds() Bounds {
	return BoundsFromOrb(l.Orb().Bound())
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// BoundsFromOrb converts an orb.Bound.
func BoundsFromOrb(b orb.Bound) Bounds {
	return Bounds{MinLat: b.Min.Lat(), MinLon: b.Min.Lon(), MaxLat: b.Max.Lat(), MaxLon: b.Max.Lon()}
}

// BoundsOf returns the box enclosing the given points.
func BoundsOf(points ...GeoPoint) Bounds {
	mp := make(orb.MultiPoint, 0, len(points))
	for _, p := range points {
		mp = append(mp, p.Orb())
	}
	return BoundsFromOrb(mp.Bound())
}

// Contains reports whether p lies inside the box (edges included).
func (b Bounds) Contains(p GeoPoint) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// SouthWestNorthEast returns the box in renderer order: [[w, s], [e, n]].
func (b Bounds) SouthWestNorthEast() [2][2]float64 {
	return [2][2]float64{{b.MinLon, b.MinLat}, {b.MaxLon, b.MaxLat}}
}
