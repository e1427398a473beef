package kv

import (
	"context"
	"testing"

	jsoniter "github.com/json-iterator/go"

	"github.com/aitownlabs/aitown/testing/assert"
	"github.com/aitownlabs/aitown/testing/require"
	"github.com/aitownlabs/aitown/types"
)

// setupDB instantiates and returns a Store instance.
func setupDB(t testing.TB) *Store {
	s, err := NewKVStore(context.Background(), t.TempDir())
	require.NoError(t, err, "Failed to instantiate DB")
	t.Cleanup(func() {
		require.NoError(t, s.Close(), "Failed to close database")
	})
	return s
}

func TestStore_EnginesCRUD(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	_, err := db.Engine(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	engine := &types.Engine{
		ID:               "e1",
		GenerationNumber: 3,
		State:            types.EngineRunning,
		ScheduledSelfTs:  1500,
		CurrentTime:      1000,
		LastStepTs:       1000,
	}
	require.NoError(t, db.SaveEngine(ctx, engine))

	got, err := db.Engine(ctx, "e1")
	require.NoError(t, err)
	require.DeepEqual(t, engine, got)

	require.NoError(t, db.SaveEngine(ctx, &types.Engine{ID: "e2", State: types.EngineStopped}))
	all, err := db.Engines(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, len(all))
}

func TestStore_InputAllocation(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	first, err := db.InsertInput(ctx, "e1", "join", jsoniter.RawMessage(`{"name":"Alex"}`), 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Number)

	second, err := db.InsertInput(ctx, "e1", "moveTo", nil, 150)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Number)

	// A different engine allocates its numbers independently.
	other, err := db.InsertInput(ctx, "e2", "join", nil, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), other.Number)

	third, err := db.InsertInput(ctx, "e1", "leave", nil, 200)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), third.Number)

	got, err := db.NextInput(ctx, "e1", 2)
	require.NoError(t, err)
	require.DeepEqual(t, second, got)

	none, err := db.NextInput(ctx, "e1", 99)
	require.NoError(t, err)
	assert.Equal(t, (*types.Input)(nil), none)

	byID, err := db.Input(ctx, third.ID)
	require.NoError(t, err)
	require.DeepEqual(t, third, byID)

	_, err = db.Input(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_WorldsCRUD(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	none, err := db.DefaultWorld(ctx)
	require.NoError(t, err)
	assert.Equal(t, (*types.World)(nil), none)

	world := &types.World{
		ID:         "w1",
		EngineID:   "e1",
		MapID:      "m1",
		Status:     types.WorldRunning,
		IsDefault:  true,
		LastViewed: 42,
	}
	require.NoError(t, db.SaveWorld(ctx, world))
	require.NoError(t, db.SaveWorld(ctx, &types.World{ID: "w2", EngineID: "e2", Status: types.WorldInactive}))

	got, err := db.World(ctx, "w1")
	require.NoError(t, err)
	require.DeepEqual(t, world, got)

	def, err := db.DefaultWorld(ctx)
	require.NoError(t, err)
	require.DeepEqual(t, world, def)

	worlds, err := db.Worlds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, len(worlds))
}

func TestStore_WorldMapCached(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	_, err := db.WorldMap(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	m := &types.WorldMap{
		ID:      "m1",
		Width:   2,
		Height:  2,
		TileDim: 32,
		BgTiles: [][]int32{{0, 1}, {1, 0}},
		ObjectTiles: [][]int32{
			{-1, -1},
			{-1, 3},
		},
	}
	require.NoError(t, db.SaveWorldMap(ctx, m))

	got, err := db.WorldMap(ctx, "m1")
	require.NoError(t, err)
	require.DeepEqual(t, m, got)

	// Second read is served from the cache and must be the same object.
	again, err := db.WorldMap(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestStore_CommitStepAtomicWrites(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	engine := &types.Engine{ID: "e1", State: types.EngineRunning, GenerationNumber: 1}
	require.NoError(t, db.SaveEngine(ctx, engine))
	prev := *engine

	input, err := db.InsertInput(ctx, "e1", "join", nil, 100)
	require.NoError(t, err)
	input.ReturnValue = &types.ReturnValue{Kind: types.ReturnOk}

	loc := types.NewLocation("l1", 4, 2)
	delta := &types.WorldDelta{
		Players: []*types.Player{
			{ID: "p1", WorldID: "w1", Name: "Alex", Active: true, LocationID: "l1"},
		},
		Locations: []*types.Location{loc},
		Conversations: []*types.Conversation{
			{ID: "c1", WorldID: "w1", CreatorID: "p1", Created: 100},
		},
		Members: []*types.ConversationMember{
			{ID: "cm1", ConversationID: "c1", PlayerID: "p1", Status: types.MemberStatus{Kind: types.MemberParticipating}},
		},
		Messages: []*types.Message{
			{ID: "msg2", ConversationID: "c1", AuthorID: "p1", Text: "later", Created: 200},
			{ID: "msg1", ConversationID: "c1", AuthorID: "p1", Text: "hi", Created: 150},
		},
		Agents: []*types.Agent{
			{ID: "a1", WorldID: "w1", PlayerID: "p1", Identity: "the baker"},
		},
	}
	engine.CurrentTime = 500
	engine.LastStepTs = 500
	engine.ProcessedInputNumber = 1
	next := &types.ScheduledTask{EngineID: "e1", Generation: 1, RunAt: 1500}
	require.NoError(t, db.CommitStep(ctx, &prev, engine, []*types.Input{input}, delta, next))

	gotEngine, err := db.Engine(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), gotEngine.LastStepTs)
	assert.Equal(t, uint64(1), gotEngine.ProcessedInputNumber)

	gotInput, err := db.Input(ctx, input.ID)
	require.NoError(t, err)
	require.NotNil(t, gotInput.ReturnValue)
	assert.Equal(t, types.ReturnOk, gotInput.ReturnValue.Kind)

	players, err := db.PlayersInWorld(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, 1, len(players))
	assert.Equal(t, "Alex", players[0].Name)

	locations, err := db.LocationsInWorld(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, 1, len(locations))
	assert.Equal(t, 4.0, locations[0].X())

	convs, err := db.ConversationsInWorld(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, 1, len(convs))

	members, err := db.MembersInWorld(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, 1, len(members))

	msgs, err := db.MessagesInConversation(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, 2, len(msgs))
	assert.Equal(t, "hi", msgs[0].Text)
	assert.Equal(t, "later", msgs[1].Text)

	agents, err := db.AgentsInWorld(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, 1, len(agents))

	tasks, err := db.Tasks(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, len(tasks))
	require.DeepEqual(t, next, tasks[0])
}

func TestStore_CommitStepDeletes(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	engine := &types.Engine{ID: "e1", State: types.EngineRunning}
	require.NoError(t, db.SaveEngine(ctx, engine))
	delta := &types.WorldDelta{
		Players: []*types.Player{
			{ID: "p1", WorldID: "w1", Active: true, LocationID: "l1"},
		},
		Locations: []*types.Location{types.NewLocation("l1", 0, 0)},
	}
	require.NoError(t, db.CommitStep(ctx, engine, engine, nil, delta, nil))

	players, err := db.PlayersInWorld(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, 1, len(players))

	drop := &types.WorldDelta{
		DeletedPlayers:   []types.ID{"p1"},
		DeletedLocations: []types.ID{"l1"},
	}
	require.NoError(t, db.CommitStep(ctx, engine, engine, nil, drop, nil))

	players, err = db.PlayersInWorld(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, 0, len(players))

	// CommitStep with a nil task clears any pending one.
	tasks, err := db.Tasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, len(tasks))
}

func TestStore_ConversationScoping(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	engine := &types.Engine{ID: "e1", State: types.EngineRunning}
	require.NoError(t, db.SaveEngine(ctx, engine))
	finished := &types.Conversation{
		ID: "c1", WorldID: "w1", CreatorID: "p1", Created: 100,
		Finished: &types.ConversationFinish{EndedAt: 900},
	}
	open := &types.Conversation{ID: "c2", WorldID: "w1", CreatorID: "p2", Created: 500}
	delta := &types.WorldDelta{
		Conversations: []*types.Conversation{finished, open},
		Members: []*types.ConversationMember{
			{ID: "cm1", ConversationID: "c1", PlayerID: "p1", Status: types.MemberStatus{Kind: types.MemberLeft}},
			{ID: "cm2", ConversationID: "c2", PlayerID: "p2", Status: types.MemberStatus{Kind: types.MemberInvited}},
		},
		Messages: []*types.Message{
			{ID: "m1", ConversationID: "c1", AuthorID: "p1", Text: "bye", Created: 800},
		},
	}
	require.NoError(t, db.CommitStep(ctx, engine, engine, nil, delta, nil))

	convs, err := db.ConversationsInWorld(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, 1, len(convs))
	assert.Equal(t, types.ID("c2"), convs[0].ID)

	members, err := db.MembersInWorld(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, 1, len(members))
	assert.Equal(t, types.ID("cm2"), members[0].ID)

	// The finished transcript stays reachable by id.
	got, err := db.Conversation(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got.Finished)

	msgs, err := db.MessagesInConversation(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, 1, len(msgs))
}

func TestStore_CommitStepConflict(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	engine := &types.Engine{ID: "e1", State: types.EngineRunning, GenerationNumber: 1}
	require.NoError(t, db.SaveEngine(ctx, engine))
	prev := *engine

	// A kick lands while the step is in flight.
	kicked := *engine
	kicked.GenerationNumber = 2
	require.NoError(t, db.SaveEngine(ctx, &kicked))

	stepped := prev
	stepped.LastStepTs = 500
	delta := &types.WorldDelta{
		Players: []*types.Player{{ID: "p1", WorldID: "w1", Active: true}},
	}
	err := db.CommitStep(ctx, &prev, &stepped, nil, delta, nil)
	assert.ErrorIs(t, err, ErrStoreConflict)

	// The losing step's writes were discarded wholesale.
	players, err := db.PlayersInWorld(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, 0, len(players))

	got, err := db.Engine(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.GenerationNumber)
	assert.Equal(t, int64(0), got.LastStepTs)
}

func TestStore_MemoriesPrefixScan(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	m1 := &types.Memory{ID: "mem1", WorldID: "w1", PlayerID: "p1", OtherID: "p2", Summary: "argued about bread"}
	m2 := &types.Memory{ID: "mem2", WorldID: "w1", PlayerID: "p1", OtherID: "p3", Summary: "shared a recipe"}
	m3 := &types.Memory{ID: "mem3", WorldID: "w1", PlayerID: "p2", OtherID: "p1", Summary: "argued about bread"}
	for _, m := range []*types.Memory{m1, m2, m3} {
		require.NoError(t, db.SaveMemory(ctx, m))
	}

	memories, err := db.MemoriesForPlayer(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 2, len(memories))
	assert.Equal(t, types.ID("mem1"), memories[0].ID)
	assert.Equal(t, types.ID("mem2"), memories[1].ID)
}

func TestStore_TasksCRUD(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	task := &types.ScheduledTask{EngineID: "e1", Generation: 2, RunAt: 1000}
	require.NoError(t, db.SaveTask(ctx, task))

	// Saving again replaces the pending task rather than adding one.
	task.RunAt = 2000
	require.NoError(t, db.SaveTask(ctx, task))

	tasks, err := db.Tasks(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, len(tasks))
	assert.Equal(t, int64(2000), tasks[0].RunAt)

	require.NoError(t, db.DeleteTask(ctx, "e1"))
	tasks, err = db.Tasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, len(tasks))
}
