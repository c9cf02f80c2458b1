// Package snap adjusts captured points onto detected field boundaries.
package snap

import (
	"math"

	"github.com/sells-group/fieldmap-cli/internal/geometry"
	"github.com/sells-group/fieldmap-cli/internal/model"
)

// MinConfidence is the lowest boundary confidence considered for snapping.
const MinConfidence = 0.5

// Type describes which boundary feature a point was snapped to.
type Type string

// Snap types.
const (
	TypeNone   Type = "none"
	TypeVertex Type = "vertex"
	TypeEdge   Type = "edge"
)

// Settings controls the snap heuristic.
type Settings struct {
	Enabled        bool    `json:"enabled" yaml:"enabled"`
	Tolerance      float64 `json:"tolerance_m" yaml:"tolerance_m"`
	SnapToVertices bool    `json:"snap_to_vertices" yaml:"snap_to_vertices"`
	SnapToEdges    bool    `json:"snap_to_edges" yaml:"snap_to_edges"`
}

// DefaultSettings returns snapping disabled with a 10 m tolerance on both
// vertices and edges.
func DefaultSettings() Settings {
	return Settings{
		Enabled:        false,
		Tolerance:      10,
		SnapToVertices: true,
		SnapToEdges:    true,
	}
}

// ValidTolerance reports whether t is a usable snap tolerance in meters.
func ValidTolerance(t float64) bool {
	return t >= 0 && !math.IsInf(t, 1)
}

// Result is the outcome of snapping a single point. WasSnapped=false is a
// normal outcome, not an error.
type Result struct {
	Original       model.GeoPoint `json:"original"`
	Snapped        model.GeoPoint `json:"snapped"`
	WasSnapped     bool           `json:"was_snapped"`
	Type           Type           `json:"snap_type"`
	DistanceMeters float64        `json:"distance_m"`
	BoundaryID     string         `json:"boundary_id,omitempty"`
}

type candidate struct {
	point      model.GeoPoint
	typ        Type
	dist       float64
	boundaryID string
}

// better reports whether c should replace the current best. Equal distances
// prefer vertices over edge points.
func (c candidate) better(best *candidate) bool {
	if best == nil {
		return true
	}
	if c.dist != best.dist {
		return c.dist < best.dist
	}
	return c.typ == TypeVertex && best.typ != TypeVertex
}

// Point snaps p to the nearest eligible vertex or edge point of the given
// boundaries within settings.Tolerance meters.
func Point(p model.GeoPoint, boundaries []model.FieldBoundary, settings Settings) Result {
	res := Result{Original: p, Snapped: p, Type: TypeNone}
	if !settings.Enabled || len(boundaries) == 0 || !ValidTolerance(settings.Tolerance) {
		return res
	}

	var best *candidate
	consider := func(c candidate) {
		if c.dist > settings.Tolerance {
			return
		}
		if c.better(best) {
			cc := c
			best = &cc
		}
	}

	for _, b := range boundaries {
		if !(b.Confidence >= MinConfidence) || len(b.Ring) == 0 {
			continue
		}
		if settings.SnapToVertices {
			for _, v := range b.Ring {
				consider(candidate{point: v, typ: TypeVertex, dist: geometry.Distance(p, v), boundaryID: b.ID})
			}
		}
		if settings.SnapToEdges && len(b.Ring) >= 2 {
			ring := geometry.CloseRing(b.Ring)
			for i := 1; i < len(ring); i++ {
				q := geometry.ClosestPointOnSegment(p, ring[i-1], ring[i])
				consider(candidate{point: q, typ: TypeEdge, dist: geometry.Distance(p, q), boundaryID: b.ID})
			}
		}
	}

	if best == nil {
		return res
	}
	res.Snapped = best.point
	res.WasSnapped = true
	res.Type = best.typ
	res.DistanceMeters = best.dist
	res.BoundaryID = best.boundaryID
	return res
}
