// Package town implements the world rules of the simulation: players walking
// a tile map, colliding, inviting each other into conversations, and talking.
// A Game aggregates the in-memory tables of one world for the duration of a
// single engine step; the engine applies inputs, advances ticks, and flushes
// the resulting delta. Nothing in this package touches the database after
// load: all writes flow through the tables and come back out of Delta.
package town

import (
	"context"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/aitownlabs/aitown/db"
	"github.com/aitownlabs/aitown/db/gametable"
	"github.com/aitownlabs/aitown/engine"
	"github.com/aitownlabs/aitown/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Game is the mutable world state of one engine step.
type Game struct {
	world *types.World
	wmap  *types.WorldMap

	players       *gametable.Table[*types.Player]
	locations     *gametable.HistoricalTable[*types.Location]
	conversations *gametable.Table[*types.Conversation]
	members       *gametable.Table[*types.ConversationMember]
	messages      *gametable.Table[*types.Message]
	agents        *gametable.Table[*types.Agent]

	// currentTime is the simulation timestamp the game is being advanced to.
	// Input handlers run before the first tick of a step and observe the
	// engine's time as of the previous step.
	currentTime int64
}

// Loader loads world state into a Game at the start of each engine step.
type Loader struct {
	db db.Database
}

// NewLoader returns a Loader reading from database.
func NewLoader(database db.Database) *Loader {
	return &Loader{db: database}
}

// LoadGame implements engine.GameLoader.
func (l *Loader) LoadGame(ctx context.Context, engineID types.ID) (engine.Game, error) {
	worlds, err := l.db.Worlds(ctx)
	if err != nil {
		return nil, err
	}
	var world *types.World
	for _, w := range worlds {
		if w.EngineID == engineID {
			world = w
			break
		}
	}
	if world == nil {
		return nil, errors.Errorf("no world for engine %s", engineID)
	}
	wmap, err := l.db.WorldMap(ctx, world.MapID)
	if err != nil {
		return nil, errors.Wrapf(err, "could not load map for world %s", world.ID)
	}
	eng, err := l.db.Engine(ctx, engineID)
	if err != nil {
		return nil, err
	}
	players, err := l.db.PlayersInWorld(ctx, world.ID)
	if err != nil {
		return nil, err
	}
	locations, err := l.db.LocationsInWorld(ctx, world.ID)
	if err != nil {
		return nil, err
	}
	conversations, err := l.db.ConversationsInWorld(ctx, world.ID)
	if err != nil {
		return nil, err
	}
	members, err := l.db.MembersInWorld(ctx, world.ID)
	if err != nil {
		return nil, err
	}
	agents, err := l.db.AgentsInWorld(ctx, world.ID)
	if err != nil {
		return nil, err
	}
	return &Game{
		world:         world,
		wmap:          wmap,
		players:       gametable.New(players),
		locations:     gametable.NewHistorical(locations),
		conversations: gametable.New(conversations),
		members:       gametable.New(members),
		// Messages are insert-only within a step; history lives in the db.
		messages:    gametable.New[*types.Message](nil),
		agents:      gametable.New(agents),
		currentTime: eng.CurrentTime,
	}, nil
}

var _ engine.GameLoader = (*Loader)(nil)
var _ engine.Game = (*Game)(nil)

// Tick implements engine.Game: advances the world by one simulation sub-step.
// Rule order per tick: walkover steering, movement planning, position advance
// with collision stalls, conversation membership and lifecycle, then history
// capture.
func (g *Game) Tick(_ context.Context, now int64) error {
	g.currentTime = now
	g.walkMembersOver(now)
	for _, p := range g.players.All() {
		g.tickPathfinding(now, p.ID)
	}
	for _, p := range g.players.All() {
		g.tickPosition(now, p.ID)
	}
	g.tickConversations(now)
	g.locations.CaptureTick(now)
	return nil
}

// Delta implements engine.Game: packs historical buffers and drains every
// table into the step's write set.
func (g *Game) Delta() (*types.WorldDelta, error) {
	if err := g.locations.PackHistories(); err != nil {
		return nil, errors.Wrap(err, "could not pack location histories")
	}
	delta := &types.WorldDelta{}
	delta.Players, delta.DeletedPlayers = g.players.Save()
	delta.Locations, delta.DeletedLocations = g.locations.Save()
	delta.Conversations, delta.DeletedConversations = g.conversations.Save()
	delta.Members, delta.DeletedMembers = g.members.Save()
	delta.Messages, delta.DeletedMessages = g.messages.Save()
	delta.Agents, delta.DeletedAgents = g.agents.Save()
	return delta, nil
}

// activeMember returns the player's membership in an unfinished conversation,
// if any. A player holds at most one.
func (g *Game) activeMember(playerID types.ID) (*types.ConversationMember, bool) {
	return g.members.Find(func(m *types.ConversationMember) bool {
		return m.PlayerID == playerID
	})
}

// conversationMembers returns the active members of a conversation in
// insertion order.
func (g *Game) conversationMembers(conversationID types.ID) []*types.ConversationMember {
	return g.members.Filter(func(m *types.ConversationMember) bool {
		return m.ConversationID == conversationID
	})
}

// agentForPlayer resolves the agent controlling a player, if one exists.
func (g *Game) agentForPlayer(playerID types.ID) (*types.Agent, bool) {
	return g.agents.Find(func(a *types.Agent) bool {
		return a.PlayerID == playerID
	})
}
