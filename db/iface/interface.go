// Package iface defines the database interface used by a town node, also
// containing useful, scoped interfaces such as a ReadOnlyDatabase.
package iface

import (
	"context"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/aitownlabs/aitown/monitoring/backup"
	"github.com/aitownlabs/aitown/types"
)

// ReadOnlyDatabase defines a struct which only has read access to database
// methods.
type ReadOnlyDatabase interface {
	// Engine related methods.
	Engine(ctx context.Context, id types.ID) (*types.Engine, error)
	Engines(ctx context.Context) ([]*types.Engine, error)
	Input(ctx context.Context, id types.ID) (*types.Input, error)
	// NextInput returns the input with the given number for the engine, or
	// nil when no such input exists yet.
	NextInput(ctx context.Context, engineID types.ID, number uint64) (*types.Input, error)
	// World related methods.
	World(ctx context.Context, id types.ID) (*types.World, error)
	Worlds(ctx context.Context) ([]*types.World, error)
	// DefaultWorld returns the world flagged as default, or nil when none
	// has been created yet.
	DefaultWorld(ctx context.Context) (*types.World, error)
	WorldMap(ctx context.Context, id types.ID) (*types.WorldMap, error)
	// Game document queries, scoped by world. Conversation queries return
	// only unfinished conversations and their members; finished transcripts
	// stay on disk and are reachable through Conversation and
	// MessagesInConversation.
	PlayersInWorld(ctx context.Context, worldID types.ID) ([]*types.Player, error)
	LocationsInWorld(ctx context.Context, worldID types.ID) ([]*types.Location, error)
	ConversationsInWorld(ctx context.Context, worldID types.ID) ([]*types.Conversation, error)
	MembersInWorld(ctx context.Context, worldID types.ID) ([]*types.ConversationMember, error)
	AgentsInWorld(ctx context.Context, worldID types.ID) ([]*types.Agent, error)
	Conversation(ctx context.Context, id types.ID) (*types.Conversation, error)
	MessagesInConversation(ctx context.Context, conversationID types.ID) ([]*types.Message, error)
	// Agent memory queries.
	MemoriesForPlayer(ctx context.Context, playerID types.ID) ([]*types.Memory, error)
	// Scheduler queries.
	Tasks(ctx context.Context) ([]*types.ScheduledTask, error)
}

// NoStepAccessDatabase defines a struct which has the write access required
// by input submitters, but cannot commit engine steps.
type NoStepAccessDatabase interface {
	ReadOnlyDatabase

	// InsertInput allocates the next dense input number for the engine and
	// persists the input record, both inside one transaction.
	InsertInput(ctx context.Context, engineID types.ID, name string, args jsoniter.RawMessage, receivedTs int64) (*types.Input, error)
	SaveWorld(ctx context.Context, world *types.World) error
	SaveMemory(ctx context.Context, memory *types.Memory) error
}

// Database interface with full access.
type Database interface {
	io.Closer
	backup.Exporter
	NoStepAccessDatabase

	SaveEngine(ctx context.Context, engine *types.Engine) error
	SaveWorldMap(ctx context.Context, m *types.WorldMap) error
	SaveTask(ctx context.Context, task *types.ScheduledTask) error
	DeleteTask(ctx context.Context, engineID types.ID) error
	// CommitStep atomically persists the outcome of one engine step: the
	// advanced engine document, the processed inputs with their return
	// values, every modified or deleted game document, and the engine's
	// next self-scheduled task (nil clears it). Either everything commits
	// or nothing does. prev carries the engine as the step loaded it; a
	// mismatch with the stored document fails the commit.
	CommitStep(ctx context.Context, prev, engine *types.Engine, inputs []*types.Input, delta *types.WorldDelta, next *types.ScheduledTask) error

	DatabasePath() string
	ClearDB() error
}
