package town

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/aitownlabs/aitown/async"
	"github.com/aitownlabs/aitown/config/params"
	"github.com/aitownlabs/aitown/db"
	"github.com/aitownlabs/aitown/engine"
	"github.com/aitownlabs/aitown/types"
)

// Service owns world lifecycle: bootstrapping the default world on a fresh
// database, restarting inactive worlds on heartbeat, and stopping worlds
// nobody has viewed for the idle timeout.
type Service struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *serviceConfig
	runError error
}

type serviceConfig struct {
	db      db.Database
	engines *engine.Service
	now     engine.Now
}

// ServiceOption configures the lifecycle service.
type ServiceOption func(s *Service) error

// WithDatabase sets the backing store.
func WithDatabase(database db.Database) ServiceOption {
	return func(s *Service) error {
		s.cfg.db = database
		return nil
	}
}

// WithEngines sets the engine runtime that steps worlds.
func WithEngines(engines *engine.Service) ServiceOption {
	return func(s *Service) error {
		s.cfg.engines = engines
		return nil
	}
}

// WithNow overrides the wall clock, for tests.
func WithNow(now engine.Now) ServiceOption {
	return func(s *Service) error {
		s.cfg.now = now
		return nil
	}
}

// NewService creates the lifecycle service.
func NewService(ctx context.Context, opts ...ServiceOption) (*Service, error) {
	ctx, cancel := context.WithCancel(ctx)
	s := &Service{
		ctx:    ctx,
		cancel: cancel,
		cfg:    &serviceConfig{now: time.Now},
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			cancel()
			return nil, err
		}
	}
	if s.cfg.db == nil {
		cancel()
		return nil, errors.New("lifecycle service requires a database")
	}
	if s.cfg.engines == nil {
		cancel()
		return nil, errors.New("lifecycle service requires an engine service")
	}
	return s, nil
}

// Start bootstraps the default world and begins the idle-world janitor.
func (s *Service) Start() {
	if err := s.EnsureDefaultWorld(s.ctx); err != nil {
		s.runError = err
		log.WithError(err).Error("Could not bootstrap default world")
		return
	}
	interval := time.Duration(params.TownConfig().WorldHeartbeatIntervalMillis) * time.Millisecond
	async.RunEvery(s.ctx, interval, s.reapIdleWorlds)
}

// Stop halts the janitor.
func (s *Service) Stop() error {
	s.cancel()
	return nil
}

// Status returns the bootstrap error, if any.
func (s *Service) Status() error {
	return s.runError
}

func (s *Service) nowMillis() int64 {
	return s.cfg.now().UnixMilli()
}

// EnsureDefaultWorld creates the default world, its map, its engine, and its
// baked-in agents when the database holds none, then starts the engine.
func (s *Service) EnsureDefaultWorld(ctx context.Context) error {
	existing, err := s.cfg.db.DefaultWorld(ctx)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	wmap := DefaultWorldMap()
	if err := s.cfg.db.SaveWorldMap(ctx, wmap); err != nil {
		return errors.Wrap(err, "could not save default map")
	}
	eng, err := s.cfg.engines.CreateEngine(ctx)
	if err != nil {
		return errors.Wrap(err, "could not create default engine")
	}
	world := &types.World{
		ID:         types.NewID(),
		EngineID:   eng.ID,
		MapID:      wmap.ID,
		Status:     types.WorldRunning,
		IsDefault:  true,
		LastViewed: s.nowMillis(),
	}
	if err := s.cfg.db.SaveWorld(ctx, world); err != nil {
		return errors.Wrap(err, "could not save default world")
	}
	if err := s.cfg.engines.StartEngine(ctx, eng.ID); err != nil {
		return errors.Wrap(err, "could not start default engine")
	}
	for _, character := range DefaultCharacters {
		args, err := json.Marshal(&CreateAgentArgs{
			Name:        character.Name,
			Character:   character.Sprite,
			Identity:    character.Identity,
			Plan:        character.Plan,
			Description: character.Identity,
		})
		if err != nil {
			return err
		}
		if _, err := s.cfg.engines.InsertInput(ctx, eng.ID, InputCreateAgent, args); err != nil {
			return errors.Wrapf(err, "could not seed agent %s", character.Name)
		}
	}
	log.WithFields(logrus.Fields{
		"world":  world.ID,
		"engine": eng.ID,
		"agents": len(DefaultCharacters),
	}).Info("Bootstrapped default world")
	return nil
}

// Heartbeat records that somebody is viewing the world and revives it when
// the idle janitor had put it to sleep.
func (s *Service) Heartbeat(ctx context.Context, worldID types.ID) error {
	world, err := s.cfg.db.World(ctx, worldID)
	if err != nil {
		return err
	}
	restart := world.Status == types.WorldInactive
	world.LastViewed = s.nowMillis()
	if restart {
		world.Status = types.WorldRunning
	}
	if err := s.cfg.db.SaveWorld(ctx, world); err != nil {
		return err
	}
	if restart {
		log.WithField("world", worldID).Info("Restarting world on heartbeat")
		if err := s.cfg.engines.StartEngine(ctx, world.EngineID); err != nil && !errors.Is(err, engine.ErrEngineRunning) {
			return err
		}
	}
	return nil
}

// reapIdleWorlds stops engines of running worlds nobody has viewed for the
// idle timeout.
func (s *Service) reapIdleWorlds() {
	ctx := s.ctx
	now := s.nowMillis()
	idleAfter := int64(params.TownConfig().IdleWorldTimeoutMillis)
	worlds, err := s.cfg.db.Worlds(ctx)
	if err != nil {
		log.WithError(err).Error("Could not list worlds")
		return
	}
	for _, world := range worlds {
		if world.Status != types.WorldRunning || now-world.LastViewed < idleAfter {
			continue
		}
		log.WithFields(logrus.Fields{
			"world":      world.ID,
			"lastViewed": world.LastViewed,
		}).Info("Stopping idle world")
		if err := s.cfg.engines.StopEngine(ctx, world.EngineID); err != nil {
			log.WithError(err).WithField("world", world.ID).Error("Could not stop idle engine")
			continue
		}
		world.Status = types.WorldInactive
		if err := s.cfg.db.SaveWorld(ctx, world); err != nil {
			log.WithError(err).WithField("world", world.ID).Error("Could not mark world inactive")
		}
	}
}
