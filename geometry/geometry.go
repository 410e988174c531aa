// Package geometry provides the planar math used to place stops along
// route paths. City-scale paths are short enough that an
// equirectangular projection anchored at the path's first coordinate
// is accurate to well under a meter.
package geometry

import (
	"math"
)

const earthRadiusMeters = 6371000.0

// Haversine returns the great-circle distance between two WGS84
// coordinates, in meters.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// LatLon is a WGS84 coordinate pair.
type LatLon struct {
	Lat float64
	Lon float64
}

// Point is a position in a projection's local XY frame, in meters.
type Point struct {
	X float64
	Y float64
}

// Projection maps coordinates onto a local planar frame anchored at a
// reference coordinate. The meters-per-degree scale factors are
// measured with Haversine at the anchor, so the frame holds up at any
// latitude.
type Projection struct {
	refLat          float64
	refLon          float64
	metersPerDegLat float64
	metersPerDegLon float64
}

func NewProjection(lat, lon float64) Projection {
	return Projection{
		refLat:          lat,
		refLon:          lon,
		metersPerDegLat: Haversine(lat, lon, lat-0.1, lon) * 10,
		metersPerDegLon: Haversine(lat, lon, lat, lon-0.1) * 10,
	}
}

func (p Projection) Project(lat, lon float64) Point {
	return Point{
		X: (lon - p.refLon) * p.metersPerDegLon,
		Y: (lat - p.refLat) * p.metersPerDegLat,
	}
}

func distance(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// distanceToSegment returns the distance from point to the segment ab.
func distanceToSegment(point, a, b Point) float64 {
	abx := b.X - a.X
	aby := b.Y - a.Y

	lenSq := abx*abx + aby*aby
	if lenSq == 0 {
		return distance(point, a)
	}

	t := ((point.X-a.X)*abx + (point.Y-a.Y)*aby) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	return distance(point, Point{X: a.X + t*abx, Y: a.Y + t*aby})
}
