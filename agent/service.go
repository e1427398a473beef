// Package agent runs the decision loops of agent-controlled players. Each
// agent is one cooperative task that wakes on engine steps or timers, reads
// a world snapshot, and acts through engine inputs: wandering, inviting and
// answering invites, taking conversation turns through the language model,
// and writing conversation memories when a chat ends. Agents never write
// game tables directly.
package agent

import (
	"context"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/errgroup"

	"github.com/aitownlabs/aitown/config/params"
	"github.com/aitownlabs/aitown/crypto/rand"
	"github.com/aitownlabs/aitown/db"
	"github.com/aitownlabs/aitown/engine"
	"github.com/aitownlabs/aitown/llm"
	"github.com/aitownlabs/aitown/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// InputSubmitter enqueues inputs for an engine. Implemented by the engine
// service.
type InputSubmitter interface {
	InsertInput(ctx context.Context, engineID types.ID, name string, args jsoniter.RawMessage) (*types.Input, error)
}

// LanguageModel is the slice of the llm client the agent loops use.
type LanguageModel interface {
	Chat(ctx context.Context, req llm.ChatRequest) (string, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// ServiceConfig holds the collaborators of the agent runner service.
type ServiceConfig struct {
	Database db.NoStepAccessDatabase
	Inputs   InputSubmitter
	Notifier engine.Notifier
	LLM      LanguageModel
	// Rand defaults to the crypto-backed generator; tests inject a
	// deterministic one.
	Rand *rand.Rand
}

// Service discovers agents in running worlds and runs one loop per agent.
type Service struct {
	cfg    *ServiceConfig
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	gctx   context.Context

	mu      sync.Mutex
	runners map[types.ID]*runner
}

// New instantiates the agent service from configuration values.
func New(ctx context.Context, cfg *ServiceConfig) (*Service, error) {
	if cfg.Rand == nil {
		cfg.Rand = rand.NewGenerator()
	}
	ctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(ctx)
	return &Service{
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		group:   group,
		gctx:    gctx,
		runners: make(map[types.ID]*runner),
	}, nil
}

// Start begins discovering agents and running their loops.
func (s *Service) Start() {
	go s.run()
}

// Stop cancels every agent loop and waits for them to exit.
func (s *Service) Stop() error {
	s.cancel()
	return s.group.Wait()
}

// Status always reports healthy; individual agent failures are logged and
// retried rather than failing the node.
func (s *Service) Status() error {
	return nil
}

func (s *Service) run() {
	statusCh := make(chan *engine.StatusEvent, 16)
	sub := s.cfg.Notifier.StatusFeed().Subscribe(statusCh)
	defer sub.Unsubscribe()

	interval := time.Duration(params.TownConfig().AgentWakeupIntervalMillis) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.reconcile()
	for {
		select {
		case <-s.ctx.Done():
			return
		case err := <-sub.Err():
			log.WithError(err).Debug("Status subscription closed")
			return
		case ev := <-statusCh:
			s.wakeEngine(ev.EngineID)
		case <-ticker.C:
			s.reconcile()
		}
	}
}

// reconcile aligns the runner set with the agents of running worlds:
// spawns loops for new agents and retires loops whose agent or world is
// gone.
func (s *Service) reconcile() {
	worlds, err := s.cfg.Database.Worlds(s.ctx)
	if err != nil {
		log.WithError(err).Error("Could not list worlds")
		return
	}
	seen := make(map[types.ID]bool)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, world := range worlds {
		if world.Status != types.WorldRunning {
			continue
		}
		agents, err := s.cfg.Database.AgentsInWorld(s.ctx, world.ID)
		if err != nil {
			log.WithError(err).WithField("world", world.ID).Error("Could not list agents")
			continue
		}
		for _, ag := range agents {
			seen[ag.ID] = true
			if _, ok := s.runners[ag.ID]; ok {
				continue
			}
			r := newRunner(ag.ID, world.ID, world.EngineID)
			s.runners[ag.ID] = r
			s.group.Go(func() error {
				defer s.removeRunner(r.agentID)
				s.loop(s.gctx, r)
				return nil
			})
		}
	}
	for id, r := range s.runners {
		if !seen[id] {
			r.retire()
		}
	}
}

func (s *Service) removeRunner(agentID types.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runners, agentID)
}

// wakeEngine nudges every runner whose world is driven by the engine that
// just stepped.
func (s *Service) wakeEngine(engineID types.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runners {
		if r.engineID == engineID {
			r.nudge()
		}
	}
}
