// Package geometry computes geodesic lengths and areas of measured paths and
// field outlines.
package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"

	"github.com/sells-group/fieldmap-cli/internal/model"
)

// ToOrb converts a GeoPoint to an orb.Point (lng, lat).
func ToOrb(p model.GeoPoint) orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// FromOrb converts an orb.Point to a GeoPoint.
func FromOrb(p orb.Point) model.GeoPoint {
	return model.GeoPoint{Lng: p.Lon(), Lat: p.Lat()}
}

// Distance returns the haversine distance in meters between a and b.
func Distance(a, b model.GeoPoint) float64 {
	if a == b {
		return 0
	}
	return geo.DistanceHaversine(ToOrb(a), ToOrb(b))
}

// DistanceAlongPath sums the great-circle distance of each consecutive pair.
// Fewer than two points yield 0.
func DistanceAlongPath(points []model.GeoPoint) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1], points[i])
	}
	return total
}

// CloseRing returns points with the first point appended when the first and
// last points differ. The input slice is never modified.
func CloseRing(points []model.GeoPoint) []model.GeoPoint {
	if len(points) == 0 {
		return nil
	}
	out := make([]model.GeoPoint, len(points), len(points)+1)
	copy(out, points)
	if out[0] != out[len(out)-1] {
		out = append(out, out[0])
	}
	return out
}

// DistinctCount returns the number of distinct points.
func DistinctCount(points []model.GeoPoint) int {
	seen := make(map[model.GeoPoint]struct{}, len(points))
	for _, p := range points {
		seen[p] = struct{}{}
	}
	return len(seen)
}

// PolygonArea returns the area in square meters enclosed by the ring formed
// by points. The ring is closed if needed and the result is independent of
// winding order. Self-intersecting rings are not validated.
func PolygonArea(points []model.GeoPoint) float64 {
	if DistinctCount(points) < 3 {
		return 0
	}
	ring := toRing(CloseRing(points))
	return math.Abs(geo.Area(ring))
}

// PolygonPerimeter returns the length of the closed ring in meters.
func PolygonPerimeter(points []model.GeoPoint) float64 {
	if len(points) < 2 {
		return 0
	}
	return DistanceAlongPath(CloseRing(points))
}

// Centroid returns the planar centroid of the closed ring, or the mean of the
// points when they enclose no area.
func Centroid(points []model.GeoPoint) model.GeoPoint {
	if len(points) == 0 {
		return model.GeoPoint{}
	}
	if DistinctCount(points) >= 3 {
		c, area := planar.CentroidArea(orb.Polygon{toRing(CloseRing(points))})
		if area != 0 && !math.IsNaN(c[0]) && !math.IsNaN(c[1]) {
			return FromOrb(c)
		}
	}
	var lng, lat float64
	for _, p := range points {
		lng += p.Lng
		lat += p.Lat
	}
	n := float64(len(points))
	return model.GeoPoint{Lng: lng / n, Lat: lat / n}
}

// Bounds returns the bounding box of the points.
func Bounds(points []model.GeoPoint) orb.Bound {
	ls := make(orb.MultiPoint, len(points))
	for i, p := range points {
		ls[i] = ToOrb(p)
	}
	return ls.Bound()
}

func toRing(points []model.GeoPoint) orb.Ring {
	r := make(orb.Ring, len(points))
	for i, p := range points {
		r[i] = ToOrb(p)
	}
	return r
}
