package geometry

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/sells-group/fieldmap-cli/internal/model"
)

// ClosestPointOnSegment returns the point of segment ab nearest to p.
// The projection is done in an equirectangular plane centred on p, which is
// accurate at field scale.
func ClosestPointOnSegment(p, a, b model.GeoPoint) model.GeoPoint {
	if a == b {
		return a
	}
	k := math.Cos(p.Lat * math.Pi / 180)
	ax, ay := (a.Lng-p.Lng)*k, a.Lat-p.Lat
	bx, by := (b.Lng-p.Lng)*k, b.Lat-p.Lat

	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return a
	}
	// p is the origin of the plane.
	t := -(ax*dx + ay*dy) / lenSq
	switch {
	case t <= 0:
		return a
	case t >= 1:
		return b
	}
	return model.GeoPoint{
		Lng: a.Lng + t*(b.Lng-a.Lng),
		Lat: a.Lat + t*(b.Lat-a.Lat),
	}
}

// Destination returns the point reached by travelling meters from p along
// bearing degrees (clockwise from north).
func Destination(p model.GeoPoint, bearing, meters float64) model.GeoPoint {
	r := meters / orb.EarthRadius
	brng := bearing * math.Pi / 180
	lat1 := p.Lat * math.Pi / 180
	lng1 := p.Lng * math.Pi / 180

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(r) + math.Cos(lat1)*math.Sin(r)*math.Cos(brng))
	lng2 := lng1 + math.Atan2(math.Sin(brng)*math.Sin(r)*math.Cos(lat1), math.Cos(r)-math.Sin(lat1)*math.Sin(lat2))

	return model.GeoPoint{Lng: lng2 * 180 / math.Pi, Lat: lat2 * 180 / math.Pi}
}
