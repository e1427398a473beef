package rpc

import (
	"github.com/aitownlabs/aitown/db"
	"github.com/aitownlabs/aitown/engine"
)

// Option for the rpc server.
type Option func(*Server) error

// WithHTTPAddr sets the listen address, like "127.0.0.1:3000".
func WithHTTPAddr(addr string) Option {
	return func(s *Server) error {
		s.cfg.httpAddr = addr
		return nil
	}
}

// WithAllowedOrigins sets the CORS origins allowed to call the API.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) error {
		s.cfg.allowedOrigins = origins
		return nil
	}
}

// WithDatabase sets the store handlers read documents from.
func WithDatabase(database db.NoStepAccessDatabase) Option {
	return func(s *Server) error {
		s.cfg.database = database
		return nil
	}
}

// WithInputSubmitter sets the sink for submitted inputs.
func WithInputSubmitter(inputs InputSubmitter) Option {
	return func(s *Server) error {
		s.cfg.inputs = inputs
		return nil
	}
}

// WithTownService sets the world lifecycle collaborator behind the
// heartbeat endpoint.
func WithTownService(towns Heartbeater) Option {
	return func(s *Server) error {
		s.cfg.towns = towns
		return nil
	}
}

// WithNotifier sets the engine status feed backing the event stream.
func WithNotifier(notifier engine.Notifier) Option {
	return func(s *Server) error {
		s.cfg.notifier = notifier
		return nil
	}
}

// WithModerator screens join submissions through the given moderator. When
// unset, join inputs pass through unmoderated.
func WithModerator(moderator Moderator) Option {
	return func(s *Server) error {
		s.cfg.moderator = moderator
		return nil
	}
}
