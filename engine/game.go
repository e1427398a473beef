package engine

import (
	"context"

	jsoniter "github.com/json-iterator/go"

	"github.com/aitownlabs/aitown/types"
)

// Game is the simulation an engine drives. A Game instance is loaded fresh
// at the start of every step, mutated by inputs and ticks, and drained into
// a delta that commits atomically with the engine document. The engine never
// inspects game state; it only sequences it.
type Game interface {
	// ApplyInput applies one external input at the simulation time it was
	// received, returning the value recorded on the input's ok result. A
	// returned error is recorded as the input's error result and does not
	// abort the step.
	ApplyInput(ctx context.Context, input *types.Input) (jsoniter.RawMessage, error)
	// Tick advances the simulation to the given time. Called once per
	// TICK_MILLIS sub-step.
	Tick(ctx context.Context, now int64) error
	// Delta drains every write the step produced, including packed history
	// blobs. Called exactly once, after the last tick.
	Delta() (*types.WorldDelta, error)
}

// GameLoader constructs the Game bound to an engine. Implemented by the town
// package; the engine core stays agnostic of what it simulates.
type GameLoader interface {
	LoadGame(ctx context.Context, engineID types.ID) (Game, error)
}
