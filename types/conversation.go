package types

// MemberKind enumerates conversation membership states.
type MemberKind string

const (
	// MemberInvited means the player has been asked and not yet answered.
	MemberInvited MemberKind = "invited"
	// MemberWalkingOver means the player accepted and is approaching.
	MemberWalkingOver MemberKind = "walkingOver"
	// MemberParticipating means the player is close enough to talk.
	MemberParticipating MemberKind = "participating"
	// MemberLeft means the player left or was timed out.
	MemberLeft MemberKind = "left"
)

// MemberStatus is the active branch of a member's lifecycle.
type MemberStatus struct {
	Kind    MemberKind `json:"kind"`
	Started int64      `json:"started,omitempty"` // simulation ms when participation began
}

// ConversationMember links a player to a conversation.
type ConversationMember struct {
	ID             ID           `json:"id"`
	ConversationID ID           `json:"conversationId"`
	PlayerID       ID           `json:"playerId"`
	Status         MemberStatus `json:"status"`
	InvitedAt      int64        `json:"invitedAt"` // simulation ms
}

// GetID implements gametable.Record.
func (m *ConversationMember) GetID() ID { return m.ID }

// SetID implements gametable.Record.
func (m *ConversationMember) SetID(id ID) { m.ID = id }

// IsActive implements gametable.Record. Members who left drop out of active
// queries but remain stored for history.
func (m *ConversationMember) IsActive() bool { return m.Status.Kind != MemberLeft }

// ConversationFinish records why and when a conversation ended.
type ConversationFinish struct {
	EndedAt int64 `json:"endedAt"` // simulation ms
}

// LastMessage tracks the most recent message for timeout decisions.
type LastMessage struct {
	AuthorID ID    `json:"authorId"`
	Ts       int64 `json:"ts"` // simulation ms
}

// TypingIndicator marks that a player has claimed the next message slot.
type TypingIndicator struct {
	PlayerID ID    `json:"playerId"`
	Since    int64 `json:"since"` // simulation ms
}

// Conversation is a chat between players in a world.
type Conversation struct {
	ID          ID                  `json:"id"`
	WorldID     ID                  `json:"worldId"`
	CreatorID   ID                  `json:"creatorId"`
	Created     int64               `json:"created"` // simulation ms
	NumMessages int                 `json:"numMessages"`
	LastMessage *LastMessage        `json:"lastMessage,omitempty"`
	IsTyping    *TypingIndicator    `json:"isTyping,omitempty"`
	Finished    *ConversationFinish `json:"finished,omitempty"`
}

// GetID implements gametable.Record.
func (c *Conversation) GetID() ID { return c.ID }

// SetID implements gametable.Record.
func (c *Conversation) SetID(id ID) { c.ID = id }

// IsActive implements gametable.Record. Finished conversations fail lookups.
func (c *Conversation) IsActive() bool { return c.Finished == nil }

// Message is one utterance inside a conversation.
type Message struct {
	ID             ID     `json:"id"`
	ConversationID ID     `json:"conversationId"`
	AuthorID       ID     `json:"authorId"`
	Text           string `json:"text"`
	Created        int64  `json:"created"` // simulation ms
}

// GetID implements gametable.Record.
func (m *Message) GetID() ID { return m.ID }

// SetID implements gametable.Record.
func (m *Message) SetID(id ID) { m.ID = id }

// IsActive implements gametable.Record.
func (m *Message) IsActive() bool { return true }
