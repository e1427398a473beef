package town

import "github.com/pkg/errors"

// Typed input handler failures. Handlers return these (possibly wrapped) so
// callers polling an input's return value can tell rule violations apart from
// infrastructure faults.
var (
	// ErrOutOfBounds is returned when a destination lies outside the map.
	ErrOutOfBounds = errors.New("destination is outside the map")
	// ErrBlockedDestination is returned when a destination tile is occupied
	// by the object layer.
	ErrBlockedDestination = errors.New("destination is blocked")
	// ErrNoRoute is returned when pathfinding cannot make any progress from
	// the player's position.
	ErrNoRoute = errors.New("no route to destination")
	// ErrWorldFull is returned when a world already hosts the maximum number
	// of human players.
	ErrWorldFull = errors.New("world has reached its human player capacity")
	// ErrDuplicateJoin is returned when a human token already controls an
	// active player in the world.
	ErrDuplicateJoin = errors.New("human already controls a player in this world")
	// ErrInConversation is returned when a player who is already a member of
	// an unfinished conversation tries to enter another one.
	ErrInConversation = errors.New("player is already in a conversation")
	// ErrNotParticipating is returned when a conversation action requires
	// the player to be a participating member and they are not.
	ErrNotParticipating = errors.New("player is not participating in this conversation")
	// ErrConversationFull is returned when a conversation has reached its
	// message cap.
	ErrConversationFull = errors.New("conversation has reached its message cap")
	// ErrAlreadyTyping is returned when another player holds the typing slot.
	ErrAlreadyTyping = errors.New("another player is already typing")
	// ErrOperationInFlight is returned when an agent starts an operation
	// while a previous one has not finished or timed out.
	ErrOperationInFlight = errors.New("agent already has an operation in flight")
)
