package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/aitownlabs/aitown/config/params"
	dbtest "github.com/aitownlabs/aitown/db/testing"
	"github.com/aitownlabs/aitown/testing/assert"
	"github.com/aitownlabs/aitown/testing/require"
	"github.com/aitownlabs/aitown/types"
)

type fakeNow struct {
	ms int64
}

func (f *fakeNow) Set(ms int64) {
	atomic.StoreInt64(&f.ms, ms)
}

func (f *fakeNow) Now() time.Time {
	return time.UnixMilli(atomic.LoadInt64(&f.ms))
}

// recordingGame captures the order of everything the engine feeds it.
type recordingGame struct {
	mu     sync.Mutex
	inputs []string
	ticks  []int64
}

func (g *recordingGame) ApplyInput(_ context.Context, input *types.Input) (jsoniter.RawMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inputs = append(g.inputs, input.Name)
	switch input.Name {
	case "fail":
		return nil, errors.New("handler rejected the input")
	case "explode":
		panic("handler blew up")
	}
	return jsoniter.RawMessage(`{"ok":true}`), nil
}

func (g *recordingGame) Tick(_ context.Context, now int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ticks = append(g.ticks, now)
	return nil
}

func (g *recordingGame) Delta() (*types.WorldDelta, error) {
	return &types.WorldDelta{}, nil
}

type fakeLoader struct {
	game  Game
	loads int32
}

func (l *fakeLoader) LoadGame(_ context.Context, _ types.ID) (Game, error) {
	atomic.AddInt32(&l.loads, 1)
	return l.game, nil
}

func setupService(t *testing.T) (*Service, *fakeNow, *recordingGame) {
	storeDB := dbtest.SetupDB(t)
	clock := &fakeNow{}
	game := &recordingGame{}
	svc, err := NewService(
		context.Background(),
		WithDatabase(storeDB),
		WithGameLoader(&fakeLoader{game: game}),
		WithNow(clock.Now),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, svc.Stop())
	})
	return svc, clock, game
}

func TestRunStep_InputOrderingUnderKick(t *testing.T) {
	svc, clock, game := setupService(t)
	ctx := context.Background()

	eng, err := svc.CreateEngine(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.StartEngine(ctx, eng.ID))

	// Run the initial step at T=0 so the engine settles into its cadence.
	require.NoError(t, svc.runStep(ctx, eng.ID, 1))
	loaded, err := svc.cfg.db.Engine(ctx, eng.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), loaded.LastStepTs)

	clock.Set(50)
	first, err := svc.InsertInput(ctx, eng.ID, "wave", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Number)
	loaded, err = svc.cfg.db.Engine(ctx, eng.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), loaded.GenerationNumber, "a near step must not trigger a kick")

	// Push the pending step far out, as after a long quiet stretch, so the
	// next submission has to kick.
	loaded.ScheduledSelfTs = 2000
	require.NoError(t, svc.cfg.db.SaveEngine(ctx, loaded))

	clock.Set(300)
	second, err := svc.InsertInput(ctx, eng.ID, "dance", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Number)
	loaded, err = svc.cfg.db.Engine(ctx, eng.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), loaded.GenerationNumber, "distant step must kick")
	assert.Equal(t, int64(300), loaded.ScheduledSelfTs)

	clock.Set(500)
	require.NoError(t, svc.runStep(ctx, eng.ID, 2))

	require.DeepEqual(t, []string{"wave", "dance"}, game.inputs)

	loaded, err = svc.cfg.db.Engine(ctx, eng.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), loaded.LastStepTs)
	assert.Equal(t, int64(500), loaded.CurrentTime)
	assert.Equal(t, uint64(2), loaded.ProcessedInputNumber)

	gotFirst, err := svc.cfg.db.Input(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, gotFirst.ReturnValue)
	assert.Equal(t, types.ReturnOk, gotFirst.ReturnValue.Kind)

	tasks, err := svc.cfg.db.Tasks(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, len(tasks))
	assert.Equal(t, int64(500+1000), tasks[0].RunAt)
	assert.Equal(t, uint64(2), tasks[0].Generation)
}

func TestRunStep_GenerationFenceIsNoOp(t *testing.T) {
	svc, clock, game := setupService(t)
	ctx := context.Background()

	eng, err := svc.CreateEngine(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.StartEngine(ctx, eng.ID))

	clock.Set(100)
	_, err = svc.InsertInput(ctx, eng.ID, "wave", nil)
	require.NoError(t, err)

	clock.Set(200)
	require.NoError(t, svc.runStep(ctx, eng.ID, 999))

	assert.Equal(t, 0, len(game.inputs), "fenced step must not apply inputs")
	loaded, err := svc.cfg.db.Engine(ctx, eng.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), loaded.ProcessedInputNumber)
	assert.Equal(t, int64(0), loaded.LastStepTs)
}

func TestRunStep_StoppedEngineIsNoOp(t *testing.T) {
	svc, clock, game := setupService(t)
	ctx := context.Background()

	eng, err := svc.CreateEngine(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.StartEngine(ctx, eng.ID))
	require.NoError(t, svc.StopEngine(ctx, eng.ID))

	clock.Set(400)
	require.NoError(t, svc.runStep(ctx, eng.ID, 1))
	assert.Equal(t, 0, len(game.ticks))
}

func TestRunStep_WindowClampedToMaxStep(t *testing.T) {
	cfg := params.TownConfig().Copy()
	cfg.MaxStepMillis = 160
	params.OverrideTownConfig(cfg)
	defer params.OverrideTownConfig(params.DefaultConfig())

	svc, clock, game := setupService(t)
	ctx := context.Background()

	eng, err := svc.CreateEngine(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.StartEngine(ctx, eng.ID))

	// Far more wall time passes than the cap allows in one step.
	clock.Set(10_000)
	require.NoError(t, svc.runStep(ctx, eng.ID, 1))

	loaded, err := svc.cfg.db.Engine(ctx, eng.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(160), loaded.LastStepTs)
	require.Equal(t, 10, len(game.ticks))
	assert.Equal(t, int64(16), game.ticks[0])
	assert.Equal(t, int64(160), game.ticks[9])
}

func TestRunStep_InputErrorsRecorded(t *testing.T) {
	svc, clock, _ := setupService(t)
	ctx := context.Background()

	eng, err := svc.CreateEngine(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.StartEngine(ctx, eng.ID))

	clock.Set(10)
	failing, err := svc.InsertInput(ctx, eng.ID, "fail", nil)
	require.NoError(t, err)
	exploding, err := svc.InsertInput(ctx, eng.ID, "explode", nil)
	require.NoError(t, err)
	after, err := svc.InsertInput(ctx, eng.ID, "wave", nil)
	require.NoError(t, err)

	clock.Set(100)
	require.NoError(t, svc.runStep(ctx, eng.ID, 1))

	gotFail, err := svc.cfg.db.Input(ctx, failing.ID)
	require.NoError(t, err)
	require.NotNil(t, gotFail.ReturnValue)
	assert.Equal(t, types.ReturnError, gotFail.ReturnValue.Kind)
	assert.Equal(t, "handler rejected the input", gotFail.ReturnValue.Message)

	gotExplode, err := svc.cfg.db.Input(ctx, exploding.ID)
	require.NoError(t, err)
	require.NotNil(t, gotExplode.ReturnValue)
	assert.Equal(t, types.ReturnError, gotExplode.ReturnValue.Kind)
	assert.ErrorContains(t, "panicked", errors.New(gotExplode.ReturnValue.Message))

	// A bad input never blocks the ones behind it.
	gotAfter, err := svc.cfg.db.Input(ctx, after.ID)
	require.NoError(t, err)
	require.NotNil(t, gotAfter.ReturnValue)
	assert.Equal(t, types.ReturnOk, gotAfter.ReturnValue.Kind)

	loaded, err := svc.cfg.db.Engine(ctx, eng.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), loaded.ProcessedInputNumber)
}

func TestRunStep_LeavesFutureInputsQueued(t *testing.T) {
	svc, clock, game := setupService(t)
	ctx := context.Background()

	eng, err := svc.CreateEngine(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.StartEngine(ctx, eng.ID))

	clock.Set(50)
	_, err = svc.InsertInput(ctx, eng.ID, "wave", nil)
	require.NoError(t, err)

	// Step only up to T=20: the input arrived later and must stay queued.
	clock.Set(20)
	require.NoError(t, svc.runStep(ctx, eng.ID, 1))
	assert.Equal(t, 0, len(game.inputs))

	loaded, err := svc.cfg.db.Engine(ctx, eng.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), loaded.ProcessedInputNumber)

	clock.Set(100)
	require.NoError(t, svc.runStep(ctx, eng.ID, 1))
	require.DeepEqual(t, []string{"wave"}, game.inputs)
}

func TestService_RehydratesPersistedTasks(t *testing.T) {
	storeDB := dbtest.SetupDB(t)
	ctx := context.Background()

	stepped := make(chan struct{}, 1)
	game := &recordingGame{}
	loader := &signallingLoader{game: game, loaded: stepped}
	clock := &fakeNow{}
	clock.Set(5)

	eng := &types.Engine{
		ID:               types.NewID(),
		GenerationNumber: 4,
		State:            types.EngineRunning,
		ScheduledSelfTs:  1,
		LastStepTs:       1,
		CurrentTime:      1,
	}
	require.NoError(t, storeDB.SaveEngine(ctx, eng))
	require.NoError(t, storeDB.SaveTask(ctx, &types.ScheduledTask{
		EngineID:   eng.ID,
		Generation: 4,
		RunAt:      1,
	}))

	svc, err := NewService(ctx, WithDatabase(storeDB), WithGameLoader(loader), WithNow(clock.Now))
	require.NoError(t, err)
	svc.Start()
	defer func() {
		require.NoError(t, svc.Stop())
	}()

	select {
	case <-stepped:
	case <-time.After(5 * time.Second):
		t.Fatal("rehydrated task never ran")
	}
}

type signallingLoader struct {
	game   Game
	loaded chan struct{}
}

func (l *signallingLoader) LoadGame(_ context.Context, _ types.ID) (Game, error) {
	select {
	case l.loaded <- struct{}{}:
	default:
	}
	return l.game, nil
}

func TestService_StatusFeedAnnouncesSteps(t *testing.T) {
	svc, clock, _ := setupService(t)
	ctx := context.Background()

	events := make(chan *StatusEvent, 4)
	sub := svc.StatusFeed().Subscribe(events)
	defer sub.Unsubscribe()

	eng, err := svc.CreateEngine(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.StartEngine(ctx, eng.ID))

	clock.Set(48)
	require.NoError(t, svc.runStep(ctx, eng.ID, 1))

	select {
	case ev := <-events:
		assert.Equal(t, eng.ID, ev.EngineID)
		// The event brackets the simulated window of the step.
		assert.Equal(t, int64(0), ev.LastStepTs)
		assert.Equal(t, int64(48), ev.CurrentTime)
	case <-time.After(time.Second):
		t.Fatal("no status event received")
	}
}

func TestStartEngine_Twice(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	eng, err := svc.CreateEngine(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.StartEngine(ctx, eng.ID))
	assert.ErrorIs(t, svc.StartEngine(ctx, eng.ID), ErrEngineRunning)

	require.NoError(t, svc.StopEngine(ctx, eng.ID))
	// Restarting bumps the generation again.
	require.NoError(t, svc.StartEngine(ctx, eng.ID))
	loaded, err := svc.cfg.db.Engine(ctx, eng.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), loaded.GenerationNumber)
}

func TestKick_RequiresRunningEngine(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	eng, err := svc.CreateEngine(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Kick(ctx, eng.ID), ErrEngineStopped)
}
