package geospatial

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// metersPerDegreeLat is the length of one degree of latitude.
const metersPerDegreeLat = 111320.0

// Distance returns the great-circle distance in meters between two points.
func Distance(a, b orb.Point) float64 {
	return geo.DistanceHaversine(a, b)
}

// LineLength returns the great-circle length of ls in meters.
func LineLength(ls orb.LineString) float64 {
	return geo.LengthHaversine(ls)
}

// BoundingBox returns a box around center extending radiusMeters in each direction.
func BoundingBox(center orb.Point, radiusMeters float64) orb.Bound {
	latDelta := radiusMeters / metersPerDegreeLat
	lonDelta := radiusMeters / (metersPerDegreeLat * math.Cos(center.Lat()*math.Pi/180))

	return orb.Bound{
		Min: orb.Point{center.Lon() - lonDelta, center.Lat() - latDelta},
		Max: orb.Point{center.Lon() + lonDelta, center.Lat() + latDelta},
	}
}

// WithinRadius returns the indexes of points no further than radiusMeters from
// center, nearest first.
func WithinRadius(center orb.Point, points []orb.Point, radiusMeters float64) []int {
	box := BoundingBox(center, radiusMeters)
	type hit struct {
		idx  int
		dist float64
	}
	var hits []hit
	for i, p := range points {
		if !box.Contains(p) {
			continue
		}
		if d := Distance(center, p); d <= radiusMeters {
			hits = append(hits, hit{i, d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })
	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.idx
	}
	return out
}
