package types

import "github.com/aitownlabs/aitown/geo"

// PathfindingKind enumerates the movement planning states of a player.
type PathfindingKind string

const (
	// PathNeedsPath means a destination is set but no route exists yet.
	PathNeedsPath PathfindingKind = "needsPath"
	// PathWaiting means planning is backed off until the Until timestamp.
	PathWaiting PathfindingKind = "waiting"
	// PathMoving means the player is walking the attached path.
	PathMoving PathfindingKind = "moving"
)

// PathfindingState is the active branch of a player's movement plan.
type PathfindingState struct {
	Kind  PathfindingKind `json:"kind"`
	Until int64           `json:"until,omitempty"` // simulation ms; set while waiting
	Path  geo.Path        `json:"path,omitempty"`  // set while moving
}

// Pathfinding is a player's current movement intent.
type Pathfinding struct {
	Destination geo.Point        `json:"destination"`
	Started     int64            `json:"started"` // simulation ms
	State       PathfindingState `json:"state"`
}

// Player is one inhabitant of a world, human controlled or agent controlled.
// HumanToken is the opaque identity of the controlling human, empty for
// agent-controlled players; at most one active player per token per world.
type Player struct {
	ID          ID           `json:"id"`
	WorldID     ID           `json:"worldId"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Character   string       `json:"character,omitempty"`
	HumanToken  string       `json:"human,omitempty"`
	LocationID  ID           `json:"locationId"`
	Active      bool         `json:"active"`
	Pathfinding *Pathfinding `json:"pathfinding,omitempty"`
}

// Human reports whether a human controls this player.
func (p *Player) Human() bool { return p.HumanToken != "" }

// GetID implements gametable.Record.
func (p *Player) GetID() ID { return p.ID }

// SetID implements gametable.Record.
func (p *Player) SetID(id ID) { p.ID = id }

// IsActive implements gametable.Record.
func (p *Player) IsActive() bool { return p.Active }
