package town

import (
	"context"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/aitownlabs/aitown/config/params"
	"github.com/aitownlabs/aitown/geo"
	"github.com/aitownlabs/aitown/types"
)

// Input names the world rules recognize.
const (
	InputJoin              = "join"
	InputLeave             = "leave"
	InputMoveTo            = "moveTo"
	InputStartConversation = "startConversation"
	InputAcceptInvite      = "acceptInvite"
	InputRejectInvite      = "rejectInvite"
	InputLeaveConversation = "leaveConversation"
	InputSendMessage       = "sendMessage"
	InputStartTyping       = "startTyping"
	InputCreateAgent       = "createAgent"
	InputAgentStart        = "agentStart"
	InputAgentDone         = "agentDone"
)

// JoinArgs adds a player to the world. A human token binds the player to the
// submitting human; agent-controlled players are created via createAgent.
type JoinArgs struct {
	Name        string `json:"name"`
	Character   string `json:"character"`
	Description string `json:"description,omitempty"`
	HumanToken  string `json:"human,omitempty"`
}

// PlayerArgs addresses an input at a single player.
type PlayerArgs struct {
	PlayerID types.ID `json:"playerId"`
}

// MoveToArgs points a player at a destination; a null destination stops them.
type MoveToArgs struct {
	PlayerID    types.ID   `json:"playerId"`
	Destination *geo.Point `json:"destination"`
}

// StartConversationArgs invites another player into a conversation.
type StartConversationArgs struct {
	PlayerID  types.ID `json:"playerId"`
	InviteeID types.ID `json:"invitee"`
}

// ConversationArgs addresses a player's pending membership.
type ConversationArgs struct {
	PlayerID       types.ID `json:"playerId"`
	ConversationID types.ID `json:"conversationId"`
}

// SendMessageArgs appends a message to a conversation.
type SendMessageArgs struct {
	PlayerID       types.ID `json:"playerId"`
	ConversationID types.ID `json:"conversationId"`
	Text           string   `json:"text"`
}

// CreateAgentArgs seeds an agent-controlled player with its identity.
type CreateAgentArgs struct {
	Name        string `json:"name"`
	Character   string `json:"character"`
	Description string `json:"description,omitempty"`
	Identity    string `json:"identity"`
	Plan        string `json:"plan"`
}

// AgentOperationArgs brackets an agent's asynchronous operation.
type AgentOperationArgs struct {
	AgentID   types.ID `json:"agentId"`
	Operation string   `json:"operation"`
}

// ApplyInput implements engine.Game: dispatches one drained input to its
// handler. Handlers are total — they return a typed error rather than
// panicking — and run at the engine's current simulation time.
func (g *Game) ApplyInput(_ context.Context, input *types.Input) (jsoniter.RawMessage, error) {
	now := g.currentTime
	switch input.Name {
	case InputJoin:
		var a JoinArgs
		if err := json.Unmarshal(input.Args, &a); err != nil {
			return nil, errors.Wrap(err, "malformed join args")
		}
		id, err := g.handleJoin(a)
		if err != nil {
			return nil, err
		}
		return idValue(id)
	case InputLeave:
		var a PlayerArgs
		if err := json.Unmarshal(input.Args, &a); err != nil {
			return nil, errors.Wrap(err, "malformed leave args")
		}
		return nil, g.handleLeave(now, a.PlayerID)
	case InputMoveTo:
		var a MoveToArgs
		if err := json.Unmarshal(input.Args, &a); err != nil {
			return nil, errors.Wrap(err, "malformed moveTo args")
		}
		if a.Destination == nil {
			return nil, g.stopPlayer(a.PlayerID)
		}
		return nil, g.movePlayer(now, a.PlayerID, *a.Destination)
	case InputStartConversation:
		var a StartConversationArgs
		if err := json.Unmarshal(input.Args, &a); err != nil {
			return nil, errors.Wrap(err, "malformed startConversation args")
		}
		id, err := g.startConversation(now, a.PlayerID, a.InviteeID)
		if err != nil {
			return nil, err
		}
		return idValue(id)
	case InputAcceptInvite:
		var a ConversationArgs
		if err := json.Unmarshal(input.Args, &a); err != nil {
			return nil, errors.Wrap(err, "malformed acceptInvite args")
		}
		return nil, g.acceptInvite(a.PlayerID, a.ConversationID)
	case InputRejectInvite:
		var a ConversationArgs
		if err := json.Unmarshal(input.Args, &a); err != nil {
			return nil, errors.Wrap(err, "malformed rejectInvite args")
		}
		return nil, g.rejectInvite(now, a.PlayerID, a.ConversationID)
	case InputLeaveConversation:
		var a ConversationArgs
		if err := json.Unmarshal(input.Args, &a); err != nil {
			return nil, errors.Wrap(err, "malformed leaveConversation args")
		}
		return nil, g.leaveConversation(now, a.PlayerID, a.ConversationID)
	case InputSendMessage:
		var a SendMessageArgs
		if err := json.Unmarshal(input.Args, &a); err != nil {
			return nil, errors.Wrap(err, "malformed sendMessage args")
		}
		id, err := g.sendMessage(now, a.PlayerID, a.ConversationID, a.Text)
		if err != nil {
			return nil, err
		}
		return idValue(id)
	case InputStartTyping:
		var a ConversationArgs
		if err := json.Unmarshal(input.Args, &a); err != nil {
			return nil, errors.Wrap(err, "malformed startTyping args")
		}
		return nil, g.startTyping(now, a.PlayerID, a.ConversationID)
	case InputCreateAgent:
		var a CreateAgentArgs
		if err := json.Unmarshal(input.Args, &a); err != nil {
			return nil, errors.Wrap(err, "malformed createAgent args")
		}
		id, err := g.handleCreateAgent(a)
		if err != nil {
			return nil, err
		}
		return idValue(id)
	case InputAgentStart:
		var a AgentOperationArgs
		if err := json.Unmarshal(input.Args, &a); err != nil {
			return nil, errors.Wrap(err, "malformed agentStart args")
		}
		return nil, g.handleAgentStart(now, a)
	case InputAgentDone:
		var a AgentOperationArgs
		if err := json.Unmarshal(input.Args, &a); err != nil {
			return nil, errors.Wrap(err, "malformed agentDone args")
		}
		return nil, g.handleAgentDone(a)
	default:
		return nil, errors.Errorf("unknown input name %q", input.Name)
	}
}

func idValue(id types.ID) (jsoniter.RawMessage, error) {
	out, err := json.Marshal(id)
	return out, err
}

// handleJoin admits a player into the world on the first free tile.
func (g *Game) handleJoin(a JoinArgs) (types.ID, error) {
	if a.HumanToken != "" {
		if _, taken := g.players.Find(func(p *types.Player) bool {
			return p.HumanToken == a.HumanToken
		}); taken {
			return "", errors.Wrapf(ErrDuplicateJoin, "%s", a.Name)
		}
		humans := g.players.Filter(func(p *types.Player) bool { return p.Human() })
		if len(humans) >= params.TownConfig().MaxHumanPlayers {
			return "", ErrWorldFull
		}
	}
	spawn, err := g.findSpawnPosition()
	if err != nil {
		return "", err
	}
	locationID := types.NewID()
	g.locations.Insert(types.NewLocation(locationID, spawn.X, spawn.Y))
	playerID := g.players.Insert(&types.Player{
		WorldID:     g.world.ID,
		Name:        a.Name,
		Description: a.Description,
		Character:   a.Character,
		HumanToken:  a.HumanToken,
		LocationID:  locationID,
		Active:      true,
	})
	log.WithFields(logrus.Fields{
		"player": playerID,
		"name":   a.Name,
		"human":  a.HumanToken != "",
	}).Info("Player joined world")
	return playerID, nil
}

// handleLeave retires a player. Their conversation ends, their movement
// stops, and the player deactivates; the location row stays behind so
// history readers can still interpolate their final approach.
func (g *Game) handleLeave(now int64, playerID types.ID) error {
	if _, err := g.players.Lookup(playerID); err != nil {
		return err
	}
	if member, ok := g.activeMember(playerID); ok {
		if err := g.leaveConversation(now, playerID, member.ConversationID); err != nil {
			return err
		}
	}
	if err := g.stopPlayer(playerID); err != nil {
		return err
	}
	return g.players.Update(playerID, func(p *types.Player) {
		p.Active = false
	})
}

// findSpawnPosition picks the first free tile in row-major order.
func (g *Game) findSpawnPosition() (geo.Point, error) {
	for y := 0; y < g.wmap.Height; y++ {
		for x := 0; x < g.wmap.Width; x++ {
			pos := geo.Point{X: float64(x), Y: float64(y)}
			if g.positionBlockedAt(pos, float64(g.currentTime), "") == nil {
				return pos, nil
			}
		}
	}
	return geo.Point{}, errors.New("no free tile to spawn on")
}

// handleCreateAgent seeds an agent-controlled player and its agent document.
func (g *Game) handleCreateAgent(a CreateAgentArgs) (types.ID, error) {
	spawn, err := g.findSpawnPosition()
	if err != nil {
		return "", err
	}
	locationID := types.NewID()
	g.locations.Insert(types.NewLocation(locationID, spawn.X, spawn.Y))
	playerID := g.players.Insert(&types.Player{
		WorldID:     g.world.ID,
		Name:        a.Name,
		Description: a.Description,
		Character:   a.Character,
		LocationID:  locationID,
		Active:      true,
	})
	agentID := g.agents.Insert(&types.Agent{
		WorldID:  g.world.ID,
		PlayerID: playerID,
		Identity: a.Identity,
		Plan:     a.Plan,
	})
	log.WithFields(logrus.Fields{
		"agent":  agentID,
		"player": playerID,
		"name":   a.Name,
	}).Info("Agent joined world")
	return agentID, nil
}

// handleAgentStart records an agent's in-flight operation. A previous
// operation that outlived the action timeout is considered crashed and its
// slot is reclaimed.
func (g *Game) handleAgentStart(now int64, a AgentOperationArgs) error {
	agent, err := g.agents.Lookup(a.AgentID)
	if err != nil {
		return err
	}
	if op := agent.InProgressOperation; op != nil && now-op.Started < int64(params.TownConfig().ActionTimeoutMillis) {
		return errors.Wrapf(ErrOperationInFlight, "%s since %d", op.Name, op.Started)
	}
	return g.agents.Update(a.AgentID, func(ag *types.Agent) {
		ag.InProgressOperation = &types.AgentOperation{Name: a.Operation, Started: now}
	})
}

// handleAgentDone clears a completed operation. Completions for an operation
// that was already reclaimed are ignored.
func (g *Game) handleAgentDone(a AgentOperationArgs) error {
	agent, err := g.agents.Lookup(a.AgentID)
	if err != nil {
		return err
	}
	if agent.InProgressOperation == nil || agent.InProgressOperation.Name != a.Operation {
		log.WithFields(logrus.Fields{
			"agent":     a.AgentID,
			"operation": a.Operation,
		}).Debug("Ignoring stale operation completion")
		return nil
	}
	return g.agents.Update(a.AgentID, func(ag *types.Agent) {
		ag.InProgressOperation = nil
	})
}
