package town

import (
	"context"
	"math"
	"testing"

	"github.com/aitownlabs/aitown/config/params"
	"github.com/aitownlabs/aitown/geo"
	"github.com/aitownlabs/aitown/testing/assert"
	"github.com/aitownlabs/aitown/testing/require"
	"github.com/aitownlabs/aitown/types"
)

func lookupLocation(t *testing.T, g *Game, playerID types.ID) *types.Location {
	t.Helper()
	p, err := g.players.Lookup(playerID)
	require.NoError(t, err)
	loc, err := g.locations.Lookup(p.LocationID)
	require.NoError(t, err)
	return loc
}

func TestMovePlayer_Validation(t *testing.T) {
	g := newTestGame(testMap(5, 5, geo.Point{X: 3, Y: 3}))
	id := addPlayer(g, "walker", 1, 1)

	require.ErrorIs(t, g.movePlayer(0, id, geo.Point{X: 9, Y: 1}), ErrOutOfBounds)
	require.ErrorIs(t, g.movePlayer(0, id, geo.Point{X: -1, Y: 1}), ErrOutOfBounds)
	require.ErrorIs(t, g.movePlayer(0, id, geo.Point{X: 3, Y: 3}), ErrBlockedDestination)
	// Fractional destinations resolve to the containing tile.
	require.ErrorIs(t, g.movePlayer(0, id, geo.Point{X: 3.7, Y: 3.2}), ErrBlockedDestination)

	require.NoError(t, g.movePlayer(100, id, geo.Point{X: 2.9, Y: 1.4}))
	p, err := g.players.Lookup(id)
	require.NoError(t, err)
	require.NotNil(t, p.Pathfinding)
	assert.DeepEqual(t, geo.Point{X: 2, Y: 1}, p.Pathfinding.Destination)
	assert.Equal(t, int64(100), p.Pathfinding.Started)
	assert.Equal(t, types.PathNeedsPath, p.Pathfinding.State.Kind)
}

func TestMovePlayer_PinnedWhileParticipating(t *testing.T) {
	g := newTestGame(testMap(10, 10))
	a := addPlayer(g, "alice", 1, 1)
	b := addPlayer(g, "bob", 2, 1)
	startParticipating(t, g, a, b, 0)

	require.ErrorIs(t, g.movePlayer(100, a, geo.Point{X: 5, Y: 5}), ErrInConversation)
}

func TestTick_WalksPlayerToDestination(t *testing.T) {
	ctx := context.Background()
	g := newTestGame(testMap(10, 10))
	id := addPlayer(g, "walker", 0, 0)
	require.NoError(t, g.movePlayer(0, id, geo.Point{X: 3, Y: 0}))

	var sawMovement bool
	for now := int64(16); now <= 4100; now += 16 {
		require.NoError(t, g.Tick(ctx, now))
		if lookupLocation(t, g, id).Velocity() > 0 {
			sawMovement = true
		}
	}
	assert.Equal(t, true, sawMovement, "the walker never moved")

	p, err := g.players.Lookup(id)
	require.NoError(t, err)
	if p.Pathfinding != nil {
		t.Fatal("arrived walker must stop")
	}
	loc := lookupLocation(t, g, id)
	assert.Equal(t, 0.0, loc.Velocity())
	assert.Equal(t, 0.0, loc.Y())
	if d := math.Abs(loc.X() - 3); d > 0.05 {
		t.Fatalf("stopped %v tiles short of the destination", d)
	}
	// The sprite faces the direction it walked.
	assert.Equal(t, 1.0, loc.DX())
	assert.Equal(t, 0.0, loc.DY())
}

func TestTick_StallsOnNewObstacleAndReplans(t *testing.T) {
	ctx := context.Background()
	g := newTestGame(testMap(10, 10))
	walker := addPlayer(g, "walker", 0, 0)
	require.NoError(t, g.movePlayer(0, walker, geo.Point{X: 4, Y: 0}))
	require.NoError(t, g.Tick(ctx, 16))
	p, err := g.players.Lookup(walker)
	require.NoError(t, err)
	require.NotNil(t, p.Pathfinding)
	require.Equal(t, types.PathMoving, p.Pathfinding.State.Kind)

	// Someone parks on the committed path after it was planned.
	addPlayer(g, "idler", 2, 0)

	cfg := params.TownConfig()
	var stalledAt int64
	for now := int64(32); now <= 3000 && stalledAt == 0; now += 16 {
		require.NoError(t, g.Tick(ctx, now))
		p, err = g.players.Lookup(walker)
		require.NoError(t, err)
		if p.Pathfinding != nil && p.Pathfinding.State.Kind == types.PathWaiting {
			stalledAt = now
		}
	}
	if stalledAt == 0 {
		t.Fatal("walker never stalled on the idler")
	}
	assert.Equal(t, stalledAt+int64(cfg.PathfindingBackoffMillis), p.Pathfinding.State.Until)
	loc := lookupLocation(t, g, walker)
	assert.Equal(t, 0.0, loc.Velocity())
	if d := geo.Distance(geo.Point{X: loc.X(), Y: loc.Y()}, geo.Point{X: 2, Y: 0}); d < cfg.CollisionThreshold {
		t.Fatalf("stalled inside the idler's radius: %v", d)
	}

	// After the backoff the route is replanned around the idler.
	for now := stalledAt + 16; now <= stalledAt+int64(cfg.PathfindingBackoffMillis)+32; now += 16 {
		require.NoError(t, g.Tick(ctx, now))
	}
	p, err = g.players.Lookup(walker)
	require.NoError(t, err)
	require.NotNil(t, p.Pathfinding)
	require.Equal(t, types.PathMoving, p.Pathfinding.State.Kind)
	assert.DeepEqual(t, geo.Point{X: 4, Y: 0}, p.Pathfinding.Destination)
	for i, c := range p.Pathfinding.State.Path {
		if geo.PointsEqual(c.Position, geo.Point{X: 2, Y: 0}) {
			t.Fatalf("replanned path[%d] still crosses the idler", i)
		}
	}
}

func TestTick_GivesUpOnStaleDestination(t *testing.T) {
	ctx := context.Background()
	g := newTestGame(testMap(5, 5))
	id := addPlayer(g, "walker", 0, 0)
	// A stall that never clears.
	require.NoError(t, g.players.Update(id, func(p *types.Player) {
		p.Pathfinding = &types.Pathfinding{
			Destination: geo.Point{X: 3, Y: 0},
			Started:     0,
			State:       types.PathfindingState{Kind: types.PathWaiting, Until: math.MaxInt64},
		}
	}))

	timeout := int64(params.TownConfig().PathfindingTimeoutMillis)
	require.NoError(t, g.Tick(ctx, timeout-16))
	p, err := g.players.Lookup(id)
	require.NoError(t, err)
	require.NotNil(t, p.Pathfinding, "the walker gave up before the timeout")

	require.NoError(t, g.Tick(ctx, timeout))
	p, err = g.players.Lookup(id)
	require.NoError(t, err)
	if p.Pathfinding != nil {
		t.Fatal("stale destination must be dropped at the timeout")
	}
}

func TestApplyInput_NullDestinationStops(t *testing.T) {
	ctx := context.Background()
	g := newTestGame(testMap(10, 10))
	id := addPlayer(g, "walker", 0, 0)
	require.NoError(t, g.movePlayer(0, id, geo.Point{X: 4, Y: 0}))

	args, err := json.Marshal(MoveToArgs{PlayerID: id})
	require.NoError(t, err)
	_, err = g.ApplyInput(ctx, &types.Input{Name: InputMoveTo, Args: args})
	require.NoError(t, err)

	p, err := g.players.Lookup(id)
	require.NoError(t, err)
	if p.Pathfinding != nil {
		t.Fatal("null destination must stop the player")
	}
	assert.Equal(t, 0.0, lookupLocation(t, g, id).Velocity())
}

func TestTick_BlockedNearDestinationCountsAsArrived(t *testing.T) {
	ctx := context.Background()
	g := newTestGame(testMap(10, 10))
	walker := addPlayer(g, "walker", 0, 0)
	require.NoError(t, g.movePlayer(0, walker, geo.Point{X: 3, Y: 0}))
	require.NoError(t, g.Tick(ctx, 16))
	p, err := g.players.Lookup(walker)
	require.NoError(t, err)
	require.NotNil(t, p.Pathfinding)
	require.Equal(t, types.PathMoving, p.Pathfinding.State.Kind)

	// Someone parks just past the destination after the route is committed.
	// Reaching the exact tile is now impossible, but the walker ends up
	// within reach of it before the collision stops them.
	addPlayer(g, "idler", 3.3, 0)

	cfg := params.TownConfig()
	for now := int64(32); now <= 6000; now += 16 {
		require.NoError(t, g.Tick(ctx, now))
		p, err = g.players.Lookup(walker)
		require.NoError(t, err)
		if p.Pathfinding == nil {
			break
		}
		require.NotEqual(t, types.PathWaiting, p.Pathfinding.State.Kind,
			"a walker blocked within reach of the destination must stop, not stall")
	}
	if p.Pathfinding != nil {
		t.Fatal("the walker never settled")
	}
	loc := lookupLocation(t, g, walker)
	assert.Equal(t, 0.0, loc.Velocity())
	if d := geo.Distance(geo.Point{X: loc.X(), Y: loc.Y()}, geo.Point{X: 3, Y: 0}); d > cfg.DestinationReachedDistance {
		t.Fatalf("settled %v tiles from the destination", d)
	}
}
