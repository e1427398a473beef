// Package rpc exposes the town over HTTP/JSON: clients submit inputs, poll
// their outcomes, read world and engine snapshots, fetch conversation
// transcripts, and subscribe to a server-sent stream of engine status
// updates. Handlers never write game tables directly; every mutation travels
// through the engine input queue.
package rpc

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/rs/cors"

	"github.com/aitownlabs/aitown/api/server"
	"github.com/aitownlabs/aitown/db"
	"github.com/aitownlabs/aitown/engine"
	"github.com/aitownlabs/aitown/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// InputSubmitter appends an externally submitted input to an engine's queue.
type InputSubmitter interface {
	InsertInput(ctx context.Context, engineID types.ID, name string, args jsoniter.RawMessage) (*types.Input, error)
}

// Heartbeater records that a world has viewers and revives it when the idle
// janitor had stopped it.
type Heartbeater interface {
	Heartbeat(ctx context.Context, worldID types.ID) error
}

// Moderator screens player-authored text before it enters the world.
type Moderator interface {
	Moderate(ctx context.Context, text string) (bool, error)
}

// Config parameters for setting up the rpc service.
type config struct {
	httpAddr       string
	allowedOrigins []string
	database       db.NoStepAccessDatabase
	inputs         InputSubmitter
	towns          Heartbeater
	notifier       engine.Notifier
	moderator      Moderator
}

// Server serves HTTP JSON traffic for the town.
type Server struct {
	cfg          *config
	router       *mux.Router
	server       *http.Server
	cancel       context.CancelFunc
	ctx          context.Context
	startFailure error
}

// New returns a new instance of the Server.
func New(ctx context.Context, opts ...Option) (*Server, error) {
	s := &Server{
		ctx: ctx,
		cfg: &config{},
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.cfg.database == nil {
		return nil, errors.New("database option not configured")
	}
	if s.cfg.inputs == nil {
		return nil, errors.New("input submitter option not configured")
	}
	if s.cfg.towns == nil {
		return nil, errors.New("town service option not configured")
	}
	if s.cfg.notifier == nil {
		return nil, errors.New("notifier option not configured")
	}

	s.router = mux.NewRouter()
	s.router.Use(server.NormalizeQueryValuesHandler)
	s.registerRoutes(s.router)
	corsMux := s.corsMiddleware(s.router)
	// No WriteTimeout: the event stream holds its response open for the
	// lifetime of the subscription.
	s.server = &http.Server{
		Addr:              s.cfg.httpAddr,
		Handler:           corsMux,
		ReadHeaderTimeout: time.Second,
	}
	return s, nil
}

func (s *Server) registerRoutes(r *mux.Router) {
	r.HandleFunc("/v1/town/worlds/{world}/inputs", s.SubmitInput).Methods(http.MethodPost)
	r.HandleFunc("/v1/town/worlds/{world}/heartbeat", s.WorldHeartbeat).Methods(http.MethodPost)
	r.HandleFunc("/v1/town/worlds/{world}/engine", s.GetEngine).Methods(http.MethodGet)
	r.HandleFunc("/v1/town/worlds/{world}/events", s.StreamEvents).Methods(http.MethodGet)
	r.HandleFunc("/v1/town/worlds/{world}", s.GetWorld).Methods(http.MethodGet)
	r.HandleFunc("/v1/town/inputs/{input}", s.GetInputStatus).Methods(http.MethodGet)
	r.HandleFunc("/v1/town/conversations/{conversation}/messages", s.ListMessages).Methods(http.MethodGet)
}

func (s *Server) corsMiddleware(h http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.allowedOrigins,
		AllowedMethods:   []string{http.MethodPost, http.MethodGet, http.MethodOptions},
		AllowCredentials: true,
		MaxAge:           600,
		AllowedHeaders:   []string{"*"},
	})
	return c.Handler(h)
}

// Start the http rpc service.
func (s *Server) Start() {
	_, cancel := context.WithCancel(s.ctx)
	s.cancel = cancel

	go func() {
		log.WithField("address", s.cfg.httpAddr).Info("Starting HTTP server")
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Error("Failed to start HTTP server")
			s.startFailure = err
			return
		}
	}()
}

// Status of the HTTP server. Returns an error if this service is unhealthy.
func (s *Server) Status() error {
	if s.startFailure != nil {
		return s.startFailure
	}
	return nil
}

// Stop the HTTP server with a graceful shutdown.
func (s *Server) Stop() error {
	if s.server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(s.ctx, 2*time.Second)
		defer shutdownCancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				log.Warn("Existing connections terminated")
			} else {
				log.WithError(err).Error("Failed to gracefully shut down server")
			}
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}
