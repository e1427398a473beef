package engine

import "github.com/pkg/errors"

var (
	// ErrGenerationFenced is returned when a scheduled step carries a
	// generation older than the engine's current one and must exit without
	// mutating anything.
	ErrGenerationFenced = errors.New("step generation superseded")
	// ErrEngineStopped is returned when an operation requires a running
	// engine.
	ErrEngineStopped = errors.New("engine is not running")
	// ErrEngineRunning is returned when starting an engine that is already
	// running.
	ErrEngineRunning = errors.New("engine is already running")
)
