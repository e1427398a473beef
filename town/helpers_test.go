package town

import (
	"context"
	"testing"

	jsoniter "github.com/json-iterator/go"

	"github.com/aitownlabs/aitown/db/gametable"
	"github.com/aitownlabs/aitown/geo"
	"github.com/aitownlabs/aitown/testing/require"
	"github.com/aitownlabs/aitown/types"
)

// testMap builds a fully walkable grid with the given tiles blocked.
func testMap(width, height int, blocked ...geo.Point) *types.WorldMap {
	objects := make([][]int32, height)
	for y := range objects {
		objects[y] = make([]int32, width)
		for x := range objects[y] {
			objects[y][x] = -1
		}
	}
	for _, b := range blocked {
		objects[int(b.Y)][int(b.X)] = 1
	}
	return &types.WorldMap{
		ID:          types.NewID(),
		Width:       width,
		Height:      height,
		TileDim:     32,
		ObjectTiles: objects,
	}
}

// newTestGame assembles a Game over empty tables, bypassing the database.
func newTestGame(wmap *types.WorldMap) *Game {
	return &Game{
		world: &types.World{
			ID:       types.NewID(),
			EngineID: types.NewID(),
			MapID:    wmap.ID,
			Status:   types.WorldRunning,
		},
		wmap:          wmap,
		players:       gametable.New[*types.Player](nil),
		locations:     gametable.NewHistorical[*types.Location](nil),
		conversations: gametable.New[*types.Conversation](nil),
		members:       gametable.New[*types.ConversationMember](nil),
		messages:      gametable.New[*types.Message](nil),
		agents:        gametable.New[*types.Agent](nil),
	}
}

// addPlayer plants a player at the given tile and returns their id.
func addPlayer(g *Game, name string, x, y float64) types.ID {
	locationID := types.NewID()
	g.locations.Insert(types.NewLocation(locationID, x, y))
	return g.players.Insert(&types.Player{
		WorldID:    g.world.ID,
		Name:       name,
		Character:  "f1",
		LocationID: locationID,
		Active:     true,
	})
}

// applyOK marshals args and dispatches them as a named input, failing the
// test on any error.
func applyOK(t *testing.T, g *Game, name string, args interface{}) jsoniter.RawMessage {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	out, err := g.ApplyInput(context.Background(), &types.Input{Name: name, Args: raw})
	require.NoError(t, err)
	return out
}

// applyErr dispatches a named input and hands back the handler's error.
func applyErr(t *testing.T, g *Game, name string, args interface{}) error {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	_, err = g.ApplyInput(context.Background(), &types.Input{Name: name, Args: raw})
	return err
}

// startParticipating runs a conversation between two adjacent players all the
// way to both sides participating and returns the conversation id.
func startParticipating(t *testing.T, g *Game, a, b types.ID, now int64) types.ID {
	t.Helper()
	conversationID, err := g.startConversation(now, a, b)
	require.NoError(t, err)
	require.NoError(t, g.acceptInvite(b, conversationID))
	g.tickConversations(now + 16)
	for _, id := range []types.ID{a, b} {
		m, ok := g.memberOf(id, conversationID)
		require.Equal(t, true, ok, "member missing for player %s", id)
		require.Equal(t, types.MemberParticipating, m.Status.Kind)
	}
	return conversationID
}
