package engine

import (
	"github.com/ethereum/go-ethereum/event"

	"github.com/aitownlabs/aitown/types"
)

// StatusEvent is published on the status feed after every committed step.
// Agents use it to wake when simulated time advances; connected clients use
// the [LastStepTs, CurrentTime] window to drive their historical time
// cursor. LastStepTs is where the previous step left the simulation cursor,
// so the pair brackets exactly the time this step simulated.
type StatusEvent struct {
	EngineID             types.ID `json:"engineId"`
	GenerationNumber     uint64   `json:"generationNumber"`
	CurrentTime          int64    `json:"currentTime"`
	LastStepTs           int64    `json:"lastStepTs"`
	ProcessedInputNumber uint64   `json:"processedInputNumber"`
}

// Notifier interface defines the methods of the service that provides engine
// status updates to consumers.
type Notifier interface {
	StatusFeed() *event.Feed
}
