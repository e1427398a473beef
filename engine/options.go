package engine

import (
	"time"

	"github.com/aitownlabs/aitown/db"
)

// Now provides a value for time.Now() that can be overridden in tests.
type Now func() time.Time

// Option is a functional option for the engine service.
type Option func(s *Service) error

// WithDatabase for engine, input, and step persistence.
func WithDatabase(database db.Database) Option {
	return func(s *Service) error {
		s.cfg.db = database
		return nil
	}
}

// WithGameLoader to construct the simulation an engine drives.
func WithGameLoader(loader GameLoader) Option {
	return func(s *Service) error {
		s.cfg.loader = loader
		return nil
	}
}

// WithNow allows tests in particular to inject an alternate implementation
// of time.Now vs using system time.
func WithNow(n Now) Option {
	return func(s *Service) error {
		s.cfg.now = n
		return nil
	}
}

// WithMaxGoroutines sets the goroutine count above which the service health
// check fails. Zero disables the check.
func WithMaxGoroutines(n int) Option {
	return func(s *Service) error {
		s.cfg.maxRoutines = n
		return nil
	}
}
