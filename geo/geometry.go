// Package geo provides the point, vector, and path math used by the town
// simulation. Positions are measured in tiles and timestamps in milliseconds
// of simulation time.
package geo

import (
	"math"

	"github.com/pkg/errors"
)

// Epsilon is the magnitude below which a vector is considered zero.
const Epsilon = 1e-4

var (
	// ErrEmptyPath is returned when interpolating over a path with no components.
	ErrEmptyPath = errors.New("path has no components")
	// ErrZeroVector is returned when a vector is too small to orient.
	ErrZeroVector = errors.New("vector is too small to compute an orientation")
)

// Point is a position on the tile grid. Fractional coordinates are valid:
// players move smoothly between integer tiles.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vector is a direction on the tile grid.
type Vector struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// PathComponent is one waypoint of a path: where the player is, which way it
// faces, and the simulation time of arrival.
type PathComponent struct {
	Position Point   `json:"position"`
	Facing   Vector  `json:"facing"`
	T        float64 `json:"t"`
}

// Path is an ordered sequence of waypoints with strictly increasing T.
type Path []PathComponent

// Distance returns the Euclidean distance between two points.
func Distance(p0, p1 Point) float64 {
	dx := p0.X - p1.X
	dy := p0.Y - p1.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// ManhattanDistance returns the L1 distance between two points.
func ManhattanDistance(p0, p1 Point) float64 {
	return math.Abs(p0.X-p1.X) + math.Abs(p0.Y-p1.Y)
}

// PointsEqual reports exact coordinate equality.
func PointsEqual(p0, p1 Point) bool {
	return p0.X == p1.X && p0.Y == p1.Y
}

// MakeVector returns the vector pointing from p0 to p1.
func MakeVector(p0, p1 Point) Vector {
	return Vector{DX: p1.X - p0.X, DY: p1.Y - p0.Y}
}

// Length returns the magnitude of v.
func (v Vector) Length() float64 {
	return math.Sqrt(v.DX*v.DX + v.DY*v.DY)
}

// Normalize scales v to unit length. The second return is false when v is too
// small to normalize.
func Normalize(v Vector) (Vector, bool) {
	l := v.Length()
	if l < Epsilon {
		return Vector{}, false
	}
	return Vector{DX: v.DX / l, DY: v.DY / l}, true
}

// OrientationDegrees maps v onto [0, 360) degrees, with 0 pointing along the
// positive x axis and angles growing counterclockwise.
func OrientationDegrees(v Vector) (float64, error) {
	if v.Length() < Epsilon {
		return 0, ErrZeroVector
	}
	twoPi := 2 * math.Pi
	radians := math.Mod(math.Atan2(v.DY, v.DX)+twoPi, twoPi)
	return radians / twoPi * 360, nil
}

// PathPosition interpolates a path at time t. Inside a segment the position
// is linear between the endpoints, the facing is the segment's starting
// facing, and the velocity is the segment's tiles-per-millisecond speed.
// Before the first waypoint or after the last, the boundary waypoint is
// returned with zero velocity.
func PathPosition(path Path, t float64) (Point, Vector, float64, error) {
	if len(path) == 0 {
		return Point{}, Vector{}, 0, ErrEmptyPath
	}
	first := path[0]
	if t < first.T {
		return first.Position, first.Facing, 0, nil
	}
	last := path[len(path)-1]
	if t > last.T {
		return last.Position, last.Facing, 0, nil
	}
	for i := 0; i < len(path)-1; i++ {
		start, end := path[i], path[i+1]
		if t > end.T {
			continue
		}
		interp := (t - start.T) / (end.T - start.T)
		pos := Point{
			X: start.Position.X + interp*(end.Position.X-start.Position.X),
			Y: start.Position.Y + interp*(end.Position.Y-start.Position.Y),
		}
		velocity := Distance(start.Position, end.Position) / (end.T - start.T)
		return pos, start.Facing, velocity, nil
	}
	// t == last.T and the loop skipped every segment, which only happens for
	// a single-component path.
	return last.Position, last.Facing, 0, nil
}

// PathOverlaps reports whether t falls within the path's time span. A
// single-component path spans exactly its one timestamp.
func PathOverlaps(path Path, t float64) (bool, error) {
	if len(path) == 0 {
		return false, ErrEmptyPath
	}
	return path[0].T <= t && t <= path[len(path)-1].T, nil
}
