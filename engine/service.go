// Package engine defines the simulation driver of a town node: a per-world
// input queue and tick loop that advances game time transactionally and
// reschedules itself, surviving restarts through persisted engine documents
// and step tasks. The engine is deliberately ignorant of game rules; it
// sequences a Game implementation supplied by the town package.
package engine

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/ethereum/go-ethereum/event"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/aitownlabs/aitown/config/params"
	"github.com/aitownlabs/aitown/db"
	"github.com/aitownlabs/aitown/types"
)

// InputInserter is the capability handed to input submitters: the RPC
// service and the agent loops.
type InputInserter interface {
	InsertInput(ctx context.Context, engineID types.ID, name string, args jsoniter.RawMessage) (*types.Input, error)
}

type config struct {
	db          db.Database
	loader      GameLoader
	now         Now
	maxRoutines int
}

// Service drives every engine hosted by this node.
type Service struct {
	cfg        *config
	ctx        context.Context
	cancel     context.CancelFunc
	sched      *scheduler
	statusFeed event.Feed
	runError   error
}

// NewService initializes the engine service with its database, game loader,
// and clock.
func NewService(ctx context.Context, opts ...Option) (*Service, error) {
	ctx, cancel := context.WithCancel(ctx)
	s := &Service{
		cfg: &config{
			now: time.Now,
		},
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			cancel()
			return nil, err
		}
	}
	if s.cfg.db == nil {
		cancel()
		return nil, errors.New("engine service requires a database")
	}
	if s.cfg.loader == nil {
		cancel()
		return nil, errors.New("engine service requires a game loader")
	}
	s.sched = newScheduler(s.cfg.now)
	return s, nil
}

// Start rehydrates persisted step tasks and begins dispatching them.
func (s *Service) Start() {
	go s.run()
}

// Stop halts the dispatch loop. In-flight steps commit or vanish atomically,
// so stopping mid-step never corrupts a world.
func (s *Service) Stop() error {
	s.cancel()
	return nil
}

// Status reports a fatal rehydration failure, if any occurred, or an
// unhealthy goroutine count.
func (s *Service) Status() error {
	if s.runError != nil {
		return s.runError
	}
	if s.cfg.maxRoutines > 0 && runtime.NumGoroutine() > s.cfg.maxRoutines {
		return fmt.Errorf("too many goroutines %d", runtime.NumGoroutine())
	}
	return nil
}

// StatusFeed implements Notifier for step announcements.
func (s *Service) StatusFeed() *event.Feed {
	return &s.statusFeed
}

func (s *Service) run() {
	tasks, err := s.cfg.db.Tasks(s.ctx)
	if err != nil {
		s.runError = errors.Wrap(err, "could not load persisted tasks")
		log.WithError(err).Error("Could not rehydrate scheduler")
		return
	}
	armed := make(map[types.ID]bool, len(tasks))
	for _, task := range tasks {
		s.sched.arm(task)
		armed[task.EngineID] = true
	}
	// A crash between an engine update and its task write can leave a
	// running engine without a task; re-arm from the engine document.
	engines, err := s.cfg.db.Engines(s.ctx)
	if err != nil {
		s.runError = errors.Wrap(err, "could not load engines")
		log.WithError(err).Error("Could not rehydrate scheduler")
		return
	}
	running := 0
	for _, eng := range engines {
		if eng.State != types.EngineRunning {
			continue
		}
		running++
		if !armed[eng.ID] {
			s.sched.arm(&types.ScheduledTask{
				EngineID:   eng.ID,
				Generation: eng.GenerationNumber,
				RunAt:      eng.ScheduledSelfTs,
			})
		}
	}
	log.WithField("engines", running).Info("Engine scheduler started")
	s.sched.loop(s.ctx, s.runStep)
}

func (s *Service) nowMillis() int64 {
	return s.cfg.now().UnixMilli()
}

// CreateEngine mints a stopped engine document.
func (s *Service) CreateEngine(ctx context.Context) (*types.Engine, error) {
	eng := &types.Engine{
		ID:    types.NewID(),
		State: types.EngineStopped,
	}
	if err := s.cfg.db.SaveEngine(ctx, eng); err != nil {
		return nil, err
	}
	return eng, nil
}

// StartEngine transitions a stopped engine to running under a fresh
// generation and schedules its first step immediately.
func (s *Service) StartEngine(ctx context.Context, id types.ID) error {
	eng, err := s.cfg.db.Engine(ctx, id)
	if err != nil {
		return err
	}
	if eng.State == types.EngineRunning {
		return errors.Wrapf(ErrEngineRunning, "%s", id)
	}
	now := s.nowMillis()
	eng.GenerationNumber++
	eng.State = types.EngineRunning
	eng.ScheduledSelfTs = now
	if eng.LastStepTs == 0 {
		eng.LastStepTs = now
		eng.CurrentTime = now
	}
	if err := s.cfg.db.SaveEngine(ctx, eng); err != nil {
		return err
	}
	task := &types.ScheduledTask{EngineID: id, Generation: eng.GenerationNumber, RunAt: now}
	if err := s.cfg.db.SaveTask(ctx, task); err != nil {
		return err
	}
	s.sched.arm(task)
	log.WithField("engine", id).WithField("generation", eng.GenerationNumber).Info("Engine started")
	return nil
}

// StopEngine transitions an engine to stopped and clears its pending step.
// Any step already in flight discovers the state change through the fence.
func (s *Service) StopEngine(ctx context.Context, id types.ID) error {
	eng, err := s.cfg.db.Engine(ctx, id)
	if err != nil {
		return err
	}
	if eng.State == types.EngineStopped {
		return nil
	}
	eng.State = types.EngineStopped
	eng.ScheduledSelfTs = 0
	if err := s.cfg.db.SaveEngine(ctx, eng); err != nil {
		return err
	}
	if err := s.cfg.db.DeleteTask(ctx, id); err != nil {
		return err
	}
	log.WithField("engine", id).Info("Engine stopped")
	return nil
}

// Kick bumps the engine's generation and reschedules a step immediately,
// cancelling whatever step was pending.
func (s *Service) Kick(ctx context.Context, id types.ID) error {
	eng, err := s.cfg.db.Engine(ctx, id)
	if err != nil {
		return err
	}
	if eng.State != types.EngineRunning {
		return errors.Wrapf(ErrEngineStopped, "%s", id)
	}
	now := s.nowMillis()
	eng.GenerationNumber++
	eng.ScheduledSelfTs = now
	if err := s.cfg.db.SaveEngine(ctx, eng); err != nil {
		return err
	}
	task := &types.ScheduledTask{EngineID: id, Generation: eng.GenerationNumber, RunAt: now}
	if err := s.cfg.db.SaveTask(ctx, task); err != nil {
		return err
	}
	s.sched.arm(task)
	kicksCounter.Inc()
	return nil
}

// InsertInput allocates the next input number for the engine and records the
// input. A running engine whose next step is more than the input delay away
// is kicked, bounding input latency.
func (s *Service) InsertInput(ctx context.Context, engineID types.ID, name string, args jsoniter.RawMessage) (*types.Input, error) {
	receivedTs := s.nowMillis()
	input, err := s.cfg.db.InsertInput(ctx, engineID, name, args, receivedTs)
	if err != nil {
		return nil, err
	}
	eng, err := s.cfg.db.Engine(ctx, engineID)
	if err != nil {
		return nil, err
	}
	if eng.State == types.EngineRunning && eng.ScheduledSelfTs-receivedTs > int64(params.TownConfig().InputDelayMillis) {
		if err := s.Kick(ctx, engineID); err != nil {
			return nil, err
		}
	}
	return input, nil
}
