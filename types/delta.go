package types

// WorldDelta is the set of document writes produced by one engine step. The
// store applies a delta atomically with the engine document update, so a
// crash never leaves a half-flushed step visible.
type WorldDelta struct {
	Players              []*Player
	DeletedPlayers       []ID
	Locations            []*Location
	DeletedLocations     []ID
	Conversations        []*Conversation
	DeletedConversations []ID
	Members              []*ConversationMember
	DeletedMembers       []ID
	Messages             []*Message
	DeletedMessages      []ID
	Agents               []*Agent
	DeletedAgents        []ID
}

// Empty reports whether the delta carries no writes.
func (d *WorldDelta) Empty() bool {
	if d == nil {
		return true
	}
	return len(d.Players) == 0 && len(d.DeletedPlayers) == 0 &&
		len(d.Locations) == 0 && len(d.DeletedLocations) == 0 &&
		len(d.Conversations) == 0 && len(d.DeletedConversations) == 0 &&
		len(d.Members) == 0 && len(d.DeletedMembers) == 0 &&
		len(d.Messages) == 0 && len(d.DeletedMessages) == 0 &&
		len(d.Agents) == 0 && len(d.DeletedAgents) == 0
}
