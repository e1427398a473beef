package agent

import (
	"context"

	"github.com/aitownlabs/aitown/db"
	"github.com/aitownlabs/aitown/geo"
	"github.com/aitownlabs/aitown/types"
)

// Snapshot is a read-only view of one world assembled outside the engine
// transaction. Agents observe the world through snapshots and mutate it only
// by submitting inputs, which preserves the engine's serial step semantics.
type Snapshot struct {
	World  *types.World
	Engine *types.Engine
	// Now is the engine's simulation clock at load time. All game document
	// timestamps are compared against it.
	Now int64

	players       map[types.ID]*types.Player
	locations     map[types.ID]*types.Location
	agents        map[types.ID]*types.Agent
	agentByPlayer map[types.ID]*types.Agent
	conversations map[types.ID]*types.Conversation
	membership    map[types.ID]*types.ConversationMember
	members       []*types.ConversationMember
}

// LoadSnapshot reads one world's active documents. The reads are not a
// single transaction; a step committing mid-load can skew the view by one
// tick, which the input validation rules absorb.
func LoadSnapshot(ctx context.Context, database db.ReadOnlyDatabase, worldID types.ID) (*Snapshot, error) {
	world, err := database.World(ctx, worldID)
	if err != nil {
		return nil, err
	}
	eng, err := database.Engine(ctx, world.EngineID)
	if err != nil {
		return nil, err
	}
	players, err := database.PlayersInWorld(ctx, worldID)
	if err != nil {
		return nil, err
	}
	locations, err := database.LocationsInWorld(ctx, worldID)
	if err != nil {
		return nil, err
	}
	conversations, err := database.ConversationsInWorld(ctx, worldID)
	if err != nil {
		return nil, err
	}
	members, err := database.MembersInWorld(ctx, worldID)
	if err != nil {
		return nil, err
	}
	agents, err := database.AgentsInWorld(ctx, worldID)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(world, eng, players, locations, conversations, members, agents), nil
}

// NewSnapshot indexes already-loaded documents.
func NewSnapshot(
	world *types.World,
	eng *types.Engine,
	players []*types.Player,
	locations []*types.Location,
	conversations []*types.Conversation,
	members []*types.ConversationMember,
	agents []*types.Agent,
) *Snapshot {
	s := &Snapshot{
		World:         world,
		Engine:        eng,
		Now:           eng.CurrentTime,
		players:       make(map[types.ID]*types.Player, len(players)),
		locations:     make(map[types.ID]*types.Location, len(locations)),
		agents:        make(map[types.ID]*types.Agent, len(agents)),
		agentByPlayer: make(map[types.ID]*types.Agent, len(agents)),
		conversations: make(map[types.ID]*types.Conversation, len(conversations)),
		membership:    make(map[types.ID]*types.ConversationMember, len(members)),
		members:       members,
	}
	for _, p := range players {
		if p.Active {
			s.players[p.ID] = p
		}
	}
	for _, l := range locations {
		s.locations[l.GetID()] = l
	}
	for _, a := range agents {
		s.agents[a.ID] = a
		s.agentByPlayer[a.PlayerID] = a
	}
	for _, c := range conversations {
		s.conversations[c.ID] = c
	}
	for _, m := range members {
		if m.IsActive() {
			s.membership[m.PlayerID] = m
		}
	}
	return s
}

// Player returns the active player with the given id, or nil.
func (s *Snapshot) Player(id types.ID) *types.Player {
	return s.players[id]
}

// AgentByID returns the agent document, or nil.
func (s *Snapshot) AgentByID(id types.ID) *types.Agent {
	return s.agents[id]
}

// AgentForPlayer returns the agent controlling the player, or nil for human
// players.
func (s *Snapshot) AgentForPlayer(playerID types.ID) *types.Agent {
	return s.agentByPlayer[playerID]
}

// ConversationByID returns the unfinished conversation, or nil.
func (s *Snapshot) ConversationByID(id types.ID) *types.Conversation {
	return s.conversations[id]
}

// MembershipFor returns the player's live conversation membership, or nil
// when the player is free.
func (s *Snapshot) MembershipFor(playerID types.ID) *types.ConversationMember {
	return s.membership[playerID]
}

// OtherParticipant returns the other player in a two-party conversation and
// their membership. Nil when the partner already left or never joined.
func (s *Snapshot) OtherParticipant(conversationID, selfID types.ID) (*types.Player, *types.ConversationMember) {
	for _, m := range s.members {
		if !m.IsActive() || m.ConversationID != conversationID || m.PlayerID == selfID {
			continue
		}
		return s.players[m.PlayerID], m
	}
	return nil, nil
}

// PositionOf resolves a player's last committed position.
func (s *Snapshot) PositionOf(playerID types.ID) (geo.Point, bool) {
	p := s.players[playerID]
	if p == nil {
		return geo.Point{}, false
	}
	loc := s.locations[p.LocationID]
	if loc == nil {
		return geo.Point{}, false
	}
	return geo.Point{X: loc.X(), Y: loc.Y()}, true
}

// FreePlayers returns active players who are in no conversation, excluding
// self.
func (s *Snapshot) FreePlayers(selfID types.ID) []*types.Player {
	free := make([]*types.Player, 0, len(s.players))
	for id, p := range s.players {
		if id == selfID {
			continue
		}
		if s.membership[id] != nil {
			continue
		}
		free = append(free, p)
	}
	return free
}

// NameOf returns the player's display name, falling back to a placeholder
// for players no longer in the active set.
func (s *Snapshot) NameOf(playerID types.ID) string {
	if p := s.players[playerID]; p != nil {
		return p.Name
	}
	return "someone"
}
