package types

// AgentOperation is the in-flight asynchronous operation of an agent, if any.
// The agent loop clears it by submitting an agentDone input when the
// operation ends, so a crashed operation is recoverable by timeout.
type AgentOperation struct {
	Name    string `json:"name"`
	Started int64  `json:"started"` // simulation ms
}

// Agent is the decision-making state bound to one agent-controlled player.
// The agent loop reads this document and the world snapshot, then mutates
// the world only by submitting inputs.
type Agent struct {
	ID       ID     `json:"id"`
	WorldID  ID     `json:"worldId"`
	PlayerID ID     `json:"playerId"`
	Identity string `json:"identity,omitempty"`
	Plan     string `json:"plan,omitempty"`

	InProgressOperation *AgentOperation `json:"inProgressOperation,omitempty"`
	LastConversation    int64           `json:"lastConversation,omitempty"`  // simulation ms a conversation last ended
	LastInviteAttempt   int64           `json:"lastInviteAttempt,omitempty"` // simulation ms of the latest invite sent
	// LastTalkedTo maps peer player ids to the simulation ms the pair last
	// finished a conversation, for the per-peer cooldown.
	LastTalkedTo map[ID]int64 `json:"lastTalkedTo,omitempty"`
}

// GetID implements gametable.Record.
func (a *Agent) GetID() ID { return a.ID }

// SetID implements gametable.Record.
func (a *Agent) SetID(id ID) { a.ID = id }

// IsActive implements gametable.Record.
func (a *Agent) IsActive() bool { return true }

// Memory is a summarized recollection of a past conversation, embedded for
// relevance retrieval when the same pair talks again.
type Memory struct {
	ID       ID        `json:"id"`
	WorldID  ID        `json:"worldId"`
	PlayerID ID        `json:"playerId"`
	OtherID  ID        `json:"otherId"`
	Summary  string    `json:"summary"`
	Vector   []float32 `json:"vector,omitempty"`
	Created  int64     `json:"created"` // wall-clock ms
}
