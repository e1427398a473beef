package town

import (
	"math"

	"github.com/aitownlabs/aitown/config/params"
	"github.com/aitownlabs/aitown/container/minheap"
	"github.com/aitownlabs/aitown/geo"
	"github.com/aitownlabs/aitown/types"
)

// pathCandidate is one node of the route search: a position, the direction
// and time of arrival, and the cumulative walking length from the start.
type pathCandidate struct {
	pos    geo.Point
	facing geo.Vector
	t      float64 // simulation ms of scheduled arrival
	length float64 // tiles walked from the start
	cost   float64 // length plus Manhattan distance to the destination
	prev   *pathCandidate
}

// findRoute plans a walk from the player's position to destination, starting
// at simulation time now. A cell is blocked by the map's object layer or by
// another player's scheduled position at the candidate's arrival time, so two
// walkers do not plan through the same tile at the same moment. When the
// destination is unreachable the route leads to the explored cell closest to
// it by Manhattan distance and that cell is returned as the replacement
// destination. ErrNoRoute means no progress from the start is possible.
func (g *Game) findRoute(now int64, player *types.Player, destination geo.Point) (geo.Path, *geo.Point, error) {
	loc, err := g.locations.Lookup(player.LocationID)
	if err != nil {
		return nil, nil, err
	}
	start := geo.Point{X: loc.X(), Y: loc.Y()}
	speed := params.TownConfig().MovementSpeed

	// best holds the cheapest candidate seen per position; a dearer candidate
	// for a position someone already reached is never expanded.
	best := make(map[geo.Point]*pathCandidate)
	open := minheap.New(func(a, b *pathCandidate) bool { return a.cost > b.cost })

	origin := &pathCandidate{
		pos:    start,
		facing: geo.Vector{DX: loc.DX(), DY: loc.DY()},
		t:      float64(now),
		cost:   geo.ManhattanDistance(start, destination),
	}
	best[start] = origin
	open.Push(origin)

	var closest *pathCandidate
	for {
		current, ok := open.Pop()
		if !ok {
			break
		}
		if best[current.pos] != current {
			continue // a cheaper candidate superseded this entry
		}
		if closest == nil || geo.ManhattanDistance(current.pos, destination) < geo.ManhattanDistance(closest.pos, destination) {
			closest = current
		}
		if geo.PointsEqual(current.pos, destination) {
			return buildPath(current), nil, nil
		}
		for _, next := range neighborPositions(current.pos) {
			length := current.length + geo.Distance(current.pos, next)
			arrival := float64(now) + length/speed*1000
			if g.positionBlockedAt(next, arrival, player.ID) != nil {
				continue
			}
			if existing, seen := best[next]; seen && existing.length <= length {
				continue
			}
			candidate := &pathCandidate{
				pos:    next,
				facing: geo.MakeVector(current.pos, next),
				t:      arrival,
				length: length,
				cost:   length + geo.ManhattanDistance(next, destination),
				prev:   current,
			}
			best[next] = candidate
			open.Push(candidate)
		}
	}
	if closest == nil || geo.PointsEqual(closest.pos, start) {
		return nil, nil, ErrNoRoute
	}
	newDestination := closest.pos
	return buildPath(closest), &newDestination, nil
}

// neighborPositions generates the candidate moves from p. A position that is
// off-grid on an axis can only move to the two adjacent integer points on
// that axis; grid-aligned positions move 4-connected. Paths are axis-aligned,
// so at most one axis is ever fractional.
func neighborPositions(p geo.Point) []geo.Point {
	if p.X != math.Floor(p.X) {
		return []geo.Point{
			{X: math.Floor(p.X), Y: p.Y},
			{X: math.Ceil(p.X), Y: p.Y},
		}
	}
	if p.Y != math.Floor(p.Y) {
		return []geo.Point{
			{X: p.X, Y: math.Floor(p.Y)},
			{X: p.X, Y: math.Ceil(p.Y)},
		}
	}
	return []geo.Point{
		{X: p.X - 1, Y: p.Y},
		{X: p.X + 1, Y: p.Y},
		{X: p.X, Y: p.Y - 1},
		{X: p.X, Y: p.Y + 1},
	}
}

// buildPath walks the predecessor chain back to the origin and reverses it
// into a path with strictly increasing timestamps. The origin waypoint faces
// toward the first move so a sprite turns before it walks.
func buildPath(end *pathCandidate) geo.Path {
	var chain []*pathCandidate
	for c := end; c != nil; c = c.prev {
		chain = append(chain, c)
	}
	path := make(geo.Path, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		c := chain[i]
		facing := c.facing
		if i == len(chain)-1 && len(chain) > 1 {
			facing = chain[len(chain)-2].facing
		}
		path = append(path, geo.PathComponent{Position: c.pos, Facing: facing, T: c.t})
	}
	return path
}
