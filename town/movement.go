package town

import (
	"math"

	"github.com/pkg/errors"

	"github.com/aitownlabs/aitown/config/params"
	"github.com/aitownlabs/aitown/geo"
	"github.com/aitownlabs/aitown/types"
)

// errOccupied marks a position blocked by another player. It never reaches
// input callers; planners skip the cell and the tick loop stalls on it.
var errOccupied = errors.New("another player is in the way")

// mapBlocked reports why a position cannot be stood on, considering only the
// static map: out of bounds, or a non-walkable object tile.
func mapBlocked(m *types.WorldMap, pos geo.Point) error {
	if pos.X < 0 || pos.Y < 0 || pos.X >= float64(m.Width) || pos.Y >= float64(m.Height) {
		return ErrOutOfBounds
	}
	x, y := int(math.Floor(pos.X)), int(math.Floor(pos.Y))
	if y >= len(m.ObjectTiles) || x >= len(m.ObjectTiles[y]) {
		return ErrOutOfBounds
	}
	if m.ObjectTiles[y][x] != -1 {
		return ErrBlockedDestination
	}
	return nil
}

// Walkable reports whether the static map allows standing on pos. Other
// players are not considered; movement rules resolve those at tick time.
func Walkable(m *types.WorldMap, pos geo.Point) bool {
	return mapBlocked(m, pos) == nil
}

// positionBlockedAt reports why pos cannot be occupied at the given
// simulation time: the static map, or another player scheduled within the
// collision threshold at that time.
func (g *Game) positionBlockedAt(pos geo.Point, atTime float64, selfID types.ID) error {
	if err := mapBlocked(g.wmap, pos); err != nil {
		return err
	}
	threshold := params.TownConfig().CollisionThreshold
	for _, other := range g.players.All() {
		if other.ID == selfID {
			continue
		}
		if geo.Distance(pos, g.playerPositionAt(other, atTime)) < threshold {
			return errOccupied
		}
	}
	return nil
}

// playerPositionAt predicts where a player will be at the given simulation
// time: along their committed path when it covers that time, otherwise
// planted at their current location.
func (g *Game) playerPositionAt(p *types.Player, atTime float64) geo.Point {
	if p.Pathfinding != nil && p.Pathfinding.State.Kind == types.PathMoving {
		path := p.Pathfinding.State.Path
		if overlaps, err := geo.PathOverlaps(path, atTime); err == nil && overlaps {
			if pos, _, _, err := geo.PathPosition(path, atTime); err == nil {
				return pos
			}
		}
	}
	if loc, err := g.locations.Lookup(p.LocationID); err == nil {
		return geo.Point{X: loc.X(), Y: loc.Y()}
	}
	// A player without a location blocks nothing.
	return geo.Point{X: math.Inf(-1), Y: math.Inf(-1)}
}

// movePlayer points a player at a destination. The route is planned on the
// next tick so that obstacle predictions use the freshest world state.
// Participating in a conversation pins the player in place.
func (g *Game) movePlayer(now int64, playerID types.ID, destination geo.Point) error {
	dest := geo.Point{X: math.Floor(destination.X), Y: math.Floor(destination.Y)}
	if err := mapBlocked(g.wmap, dest); err != nil {
		return err
	}
	if m, ok := g.activeMember(playerID); ok && m.Status.Kind == types.MemberParticipating {
		return errors.Wrap(ErrInConversation, "cannot walk away while participating")
	}
	return g.players.Update(playerID, func(p *types.Player) {
		p.Pathfinding = &types.Pathfinding{
			Destination: dest,
			Started:     now,
			State:       types.PathfindingState{Kind: types.PathNeedsPath},
		}
	})
}

// stopPlayer clears a player's movement plan and zeroes their velocity.
func (g *Game) stopPlayer(playerID types.ID) error {
	var locationID types.ID
	if err := g.players.Update(playerID, func(p *types.Player) {
		p.Pathfinding = nil
		locationID = p.LocationID
	}); err != nil {
		return err
	}
	return g.locations.Update(locationID, func(l *types.Location) {
		l.SetVelocity(0)
	})
}

// tickPathfinding advances a player's movement plan: gives up on stale
// destinations, promotes expired backoffs, stops arrived walkers, and plans
// routes for players that need one.
func (g *Game) tickPathfinding(now int64, playerID types.ID) {
	player, err := g.players.Lookup(playerID)
	if err != nil || player.Pathfinding == nil {
		return
	}
	pf := player.Pathfinding
	cfg := params.TownConfig()

	if now-pf.Started >= int64(cfg.PathfindingTimeoutMillis) {
		log.WithField("player", playerID).Debug("Giving up on stale destination")
		if err := g.stopPlayer(playerID); err != nil {
			log.WithError(err).WithField("player", playerID).Error("Could not stop player")
		}
		return
	}

	switch pf.State.Kind {
	case types.PathMoving:
		path := pf.State.Path
		if len(path) == 0 || float64(now) >= path[len(path)-1].T {
			if err := g.stopPlayer(playerID); err != nil {
				log.WithError(err).WithField("player", playerID).Error("Could not stop player")
			}
		}
		return
	case types.PathWaiting:
		if now < pf.State.Until {
			return
		}
	}

	path, newDestination, err := g.findRoute(now, player, pf.Destination)
	if err != nil {
		log.WithError(err).WithField("player", playerID).Debug("Route planning failed")
		if err := g.stopPlayer(playerID); err != nil {
			log.WithError(err).WithField("player", playerID).Error("Could not stop player")
		}
		return
	}
	if err := g.players.Update(playerID, func(p *types.Player) {
		if p.Pathfinding == nil {
			return
		}
		if newDestination != nil {
			p.Pathfinding.Destination = *newDestination
		}
		p.Pathfinding.State = types.PathfindingState{Kind: types.PathMoving, Path: path}
	}); err != nil {
		log.WithError(err).WithField("player", playerID).Error("Could not commit route")
	}
}

// tickPosition advances a moving player along their path. A position blocked
// by another player stalls the walk in place and schedules a replan after the
// pathfinding backoff.
func (g *Game) tickPosition(now int64, playerID types.ID) {
	player, err := g.players.Lookup(playerID)
	if err != nil || player.Pathfinding == nil || player.Pathfinding.State.Kind != types.PathMoving {
		return
	}
	path := player.Pathfinding.State.Path
	if len(path) == 0 {
		return
	}
	pos, facing, velocity, err := geo.PathPosition(path, float64(now))
	if err != nil {
		log.WithError(err).WithField("player", playerID).Debug("Dropping unusable path")
		if err := g.stopPlayer(playerID); err != nil {
			log.WithError(err).WithField("player", playerID).Error("Could not stop player")
		}
		return
	}
	if blocked := g.positionBlockedAt(pos, float64(now), playerID); blocked != nil {
		cfg := params.TownConfig()
		// Blocked within reach of the destination counts as arrival;
		// stopping here beats a replan loop around a planted neighbor.
		if geo.Distance(pos, player.Pathfinding.Destination) <= cfg.DestinationReachedDistance {
			if err := g.stopPlayer(playerID); err != nil {
				log.WithError(err).WithField("player", playerID).Error("Could not stop player")
			}
			return
		}
		backoff := int64(cfg.PathfindingBackoffMillis)
		if err := g.players.Update(playerID, func(p *types.Player) {
			if p.Pathfinding != nil {
				p.Pathfinding.State = types.PathfindingState{Kind: types.PathWaiting, Until: now + backoff}
			}
		}); err != nil {
			log.WithError(err).WithField("player", playerID).Error("Could not stall player")
		}
		if err := g.locations.Update(player.LocationID, func(l *types.Location) {
			l.SetVelocity(0)
		}); err != nil {
			log.WithError(err).WithField("player", playerID).Error("Could not zero velocity")
		}
		return
	}
	if err := g.locations.Update(player.LocationID, func(l *types.Location) {
		l.SetX(pos.X)
		l.SetY(pos.Y)
		if f, ok := geo.Normalize(facing); ok {
			l.SetDX(f.DX)
			l.SetDY(f.DY)
		}
		l.SetVelocity(velocity)
	}); err != nil {
		log.WithError(err).WithField("player", playerID).Error("Could not update location")
	}
}
