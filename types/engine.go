package types

import jsoniter "github.com/json-iterator/go"

// EngineState enumerates the run states of an engine.
type EngineState string

const (
	// EngineStopped means no step is scheduled and inputs accumulate unprocessed.
	EngineStopped EngineState = "stopped"
	// EngineRunning means exactly one self-scheduled step is outstanding.
	EngineRunning EngineState = "running"
)

// Engine is the per-world simulation driver document. GenerationNumber
// increases on every kick or resume and fences stale scheduled steps.
type Engine struct {
	ID                   ID          `json:"id"`
	GenerationNumber     uint64      `json:"generationNumber"`
	State                EngineState `json:"state"`
	ScheduledSelfTs      int64       `json:"scheduledSelfTs,omitempty"` // wall-clock ms; meaningful while running
	CurrentTime          int64       `json:"currentTime,omitempty"`     // simulation ms
	LastStepTs           int64       `json:"lastStepTs,omitempty"`      // simulation ms
	ProcessedInputNumber uint64      `json:"processedInputNumber"`      // number of inputs applied so far
}

// ReturnValueKind discriminates input results.
type ReturnValueKind string

const (
	ReturnOk    ReturnValueKind = "ok"
	ReturnError ReturnValueKind = "error"
)

// ReturnValue is the recorded outcome of one processed input. Absent on an
// input document means the input is still pending.
type ReturnValue struct {
	Kind    ReturnValueKind     `json:"kind"`
	Value   jsoniter.RawMessage `json:"value,omitempty"`
	Message string              `json:"message,omitempty"`
}

// Input is an externally submitted command. Numbers are dense per engine and
// assigned at insertion; the engine applies inputs in number order exactly
// once.
type Input struct {
	ID          ID                  `json:"id"`
	EngineID    ID                  `json:"engineId"`
	Number      uint64              `json:"number"`
	Name        string              `json:"name"`
	Args        jsoniter.RawMessage `json:"args,omitempty"`
	ReceivedTs  int64               `json:"receivedTs"`
	ReturnValue *ReturnValue        `json:"returnValue,omitempty"`
}

// ScheduledTask is a persisted deferred step, keyed by engine so that at
// most one is outstanding per engine. Tasks survive restart; a task whose
// generation trails its engine's is discarded without effect.
type ScheduledTask struct {
	EngineID   ID     `json:"engineId"`
	Generation uint64 `json:"generation"`
	RunAt      int64  `json:"runAt"` // wall-clock ms
}
