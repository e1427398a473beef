// Package params defines important constants that are essential to town
// simulation services.
package params

// TownSimConfig contains constant configs for a node to run town simulations.
type TownSimConfig struct {
	// Identity.
	ConfigName string `yaml:"CONFIG_NAME"`

	// Engine time constants, in milliseconds of simulation time unless noted.
	TickMillis         uint64 `yaml:"TICK_MILLIS"`          // Duration of one simulation tick.
	StepIntervalMillis uint64 `yaml:"STEP_INTERVAL_MILLIS"` // Cadence of engine steps while running.
	MaxStepMillis      uint64 `yaml:"MAX_STEP_MILLIS"`      // Upper bound of simulated time per step.
	InputDelayMillis   uint64 `yaml:"INPUT_DELAY_MILLIS"`   // Kick the engine if the next step is further out than this.

	// World lifecycle.
	IdleWorldTimeoutMillis       uint64 `yaml:"IDLE_WORLD_TIMEOUT_MILLIS"`       // Stop worlds nobody has viewed for this long.
	WorldHeartbeatIntervalMillis uint64 `yaml:"WORLD_HEARTBEAT_INTERVAL_MILLIS"` // Cadence of the idle-world janitor.
	MaxHumanPlayers              int    `yaml:"MAX_HUMAN_PLAYERS"`               // Concurrent human-controlled players per world.

	// Movement.
	MovementSpeed              float64 `yaml:"MOVEMENT_SPEED"`               // Tiles per second along a path.
	CollisionThreshold         float64 `yaml:"COLLISION_THRESHOLD"`          // Players closer than this collide.
	PathfindingTimeoutMillis   uint64  `yaml:"PATHFINDING_TIMEOUT_MILLIS"`   // Give up on a destination after this long.
	PathfindingBackoffMillis   uint64  `yaml:"PATHFINDING_BACKOFF_MILLIS"`   // Wait before recomputing a blocked route.
	DestinationReachedDistance float64 `yaml:"DESTINATION_REACHED_DISTANCE"` // Close enough to stop walking.

	// Conversations.
	ConversationDistance          float64 `yaml:"CONVERSATION_DISTANCE"`            // Members this close may start talking.
	MaxConversationDurationMillis uint64  `yaml:"MAX_CONVERSATION_DURATION_MILLIS"` // Hard cap on conversation length.
	MaxConversationMessages       int     `yaml:"MAX_CONVERSATION_MESSAGES"`        // Hard cap on messages per conversation.
	TypingTimeoutMillis           uint64  `yaml:"TYPING_TIMEOUT_MILLIS"`            // Typing indicators expire after this.

	// Agent behavior, wall-clock driven.
	MessageCooldownMillis             uint64  `yaml:"MESSAGE_COOLDOWN_MILLIS"`              // Min pause between agent messages.
	AwkwardConversationTimeoutMillis  uint64  `yaml:"AWKWARD_CONVERSATION_TIMEOUT_MILLIS"`  // Leave if nothing said for this long.
	InviteTimeoutMillis               uint64  `yaml:"INVITE_TIMEOUT_MILLIS"`                // Auto-reject stale invites.
	ActionTimeoutMillis               uint64  `yaml:"ACTION_TIMEOUT_MILLIS"`                // Deadline for one agent operation.
	ConversationCooldownMillis        uint64  `yaml:"CONVERSATION_COOLDOWN_MILLIS"`         // Min pause before the same pair talks again.
	PlayerConversationCooldownMillis  uint64  `yaml:"PLAYER_CONVERSATION_COOLDOWN_MILLIS"`  // Min pause before any new conversation per player.
	InviteAcceptProbability           float64 `yaml:"INVITE_ACCEPT_PROBABILITY"`            // Chance an agent accepts an invite.
	AgentWakeupIntervalMillis         uint64  `yaml:"AGENT_WAKEUP_INTERVAL_MILLIS"`         // Fallback poll cadence for agent loops.
	ConversationSummaryMaxTokens      int     `yaml:"CONVERSATION_SUMMARY_MAX_TOKENS"`      // Token budget for memory summaries.
	MemoryRelevantCount               int     `yaml:"MEMORY_RELEVANT_COUNT"`                // Memories retrieved per prompt.
	EmbeddingCacheTTLMillis           uint64  `yaml:"EMBEDDING_CACHE_TTL_MILLIS"`           // Wall-clock TTL for cached embeddings.
}

var defaultTownConfig = &TownSimConfig{
	ConfigName: "default",

	TickMillis:         16,
	StepIntervalMillis: 1000,
	MaxStepMillis:      10 * 60 * 1000,
	InputDelayMillis:   1000,

	IdleWorldTimeoutMillis:       5 * 60 * 1000,
	WorldHeartbeatIntervalMillis: 60 * 1000,
	MaxHumanPlayers:              8,

	MovementSpeed:              0.75,
	CollisionThreshold:         0.75,
	PathfindingTimeoutMillis:   60 * 1000,
	PathfindingBackoffMillis:   1000,
	DestinationReachedDistance: 0.5,

	ConversationDistance:          1.3,
	MaxConversationDurationMillis: 120 * 1000,
	MaxConversationMessages:       8,
	TypingTimeoutMillis:           15 * 1000,

	MessageCooldownMillis:            2000,
	AwkwardConversationTimeoutMillis: 20 * 1000,
	InviteTimeoutMillis:              60 * 1000,
	ActionTimeoutMillis:              60 * 1000,
	ConversationCooldownMillis:       15 * 1000,
	PlayerConversationCooldownMillis: 60 * 1000,
	InviteAcceptProbability:          0.8,
	AgentWakeupIntervalMillis:        1000,
	ConversationSummaryMaxTokens:     500,
	MemoryRelevantCount:              3,
	EmbeddingCacheTTLMillis:          60 * 60 * 1000,
}

// DefaultConfig returns the default town config used in production.
func DefaultConfig() *TownSimConfig {
	return defaultTownConfig
}

// E2ETestConfig returns a shrunk config for end to end tests: small worlds,
// short cooldowns, and aggressive timeouts so tests converge quickly.
func E2ETestConfig() *TownSimConfig {
	e2e := DefaultConfig().Copy()
	e2e.ConfigName = "end-to-end"
	e2e.IdleWorldTimeoutMillis = 10 * 1000
	e2e.WorldHeartbeatIntervalMillis = 1000
	e2e.MessageCooldownMillis = 100
	e2e.ConversationCooldownMillis = 500
	e2e.PlayerConversationCooldownMillis = 1000
	e2e.InviteTimeoutMillis = 5 * 1000
	e2e.ActionTimeoutMillis = 10 * 1000
	e2e.AwkwardConversationTimeoutMillis = 2000
	e2e.MaxConversationDurationMillis = 20 * 1000
	return e2e
}
