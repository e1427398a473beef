package town

import (
	"math"

	"github.com/pkg/errors"

	"github.com/aitownlabs/aitown/config/params"
	"github.com/aitownlabs/aitown/geo"
	"github.com/aitownlabs/aitown/types"
)

// memberOf returns the player's active membership in the given conversation.
func (g *Game) memberOf(playerID, conversationID types.ID) (*types.ConversationMember, bool) {
	return g.members.Find(func(m *types.ConversationMember) bool {
		return m.ConversationID == conversationID && m.PlayerID == playerID
	})
}

// startConversation opens a conversation between the inviter and an invitee.
// The inviter starts walking over immediately; the invitee holds an invite
// until they accept or reject. Either player already being in a conversation
// fails the invite.
func (g *Game) startConversation(now int64, playerID, inviteeID types.ID) (types.ID, error) {
	if playerID == inviteeID {
		return "", errors.New("players cannot invite themselves")
	}
	if _, err := g.players.Lookup(playerID); err != nil {
		return "", err
	}
	if _, err := g.players.Lookup(inviteeID); err != nil {
		return "", err
	}
	if _, busy := g.activeMember(playerID); busy {
		return "", errors.Wrapf(ErrInConversation, "inviter %s", playerID)
	}
	if _, busy := g.activeMember(inviteeID); busy {
		return "", errors.Wrapf(ErrInConversation, "invitee %s", inviteeID)
	}
	conversationID := g.conversations.Insert(&types.Conversation{
		WorldID:   g.world.ID,
		CreatorID: playerID,
		Created:   now,
	})
	g.members.Insert(&types.ConversationMember{
		ConversationID: conversationID,
		PlayerID:       playerID,
		Status:         types.MemberStatus{Kind: types.MemberWalkingOver},
		InvitedAt:      now,
	})
	g.members.Insert(&types.ConversationMember{
		ConversationID: conversationID,
		PlayerID:       inviteeID,
		Status:         types.MemberStatus{Kind: types.MemberInvited},
		InvitedAt:      now,
	})
	if agent, ok := g.agentForPlayer(playerID); ok {
		if err := g.agents.Update(agent.ID, func(a *types.Agent) {
			a.LastInviteAttempt = now
		}); err != nil {
			log.WithError(err).WithField("agent", agent.ID).Error("Could not stamp invite attempt")
		}
	}
	return conversationID, nil
}

// acceptInvite flips a pending invite to walkingOver. The accepting player
// still has to walk within conversation distance before talking starts.
func (g *Game) acceptInvite(playerID, conversationID types.ID) error {
	member, ok := g.memberOf(playerID, conversationID)
	if !ok || member.Status.Kind != types.MemberInvited {
		return errors.Errorf("player %s has no pending invite to conversation %s", playerID, conversationID)
	}
	return g.members.Update(member.ID, func(m *types.ConversationMember) {
		m.Status = types.MemberStatus{Kind: types.MemberWalkingOver}
	})
}

// rejectInvite declines a pending invite. Dropping below two members finishes
// the conversation.
func (g *Game) rejectInvite(now int64, playerID, conversationID types.ID) error {
	member, ok := g.memberOf(playerID, conversationID)
	if !ok || member.Status.Kind != types.MemberInvited {
		return errors.Errorf("player %s has no pending invite to conversation %s", playerID, conversationID)
	}
	if err := g.members.Update(member.ID, func(m *types.ConversationMember) {
		m.Status = types.MemberStatus{Kind: types.MemberLeft}
	}); err != nil {
		return err
	}
	if len(g.conversationMembers(conversationID)) < 2 {
		return g.finishConversation(now, conversationID)
	}
	return nil
}

// leaveConversation ends the conversation for everyone. Two-person chats do
// not outlive a member walking away.
func (g *Game) leaveConversation(now int64, playerID, conversationID types.ID) error {
	if _, ok := g.memberOf(playerID, conversationID); !ok {
		return errors.Errorf("player %s is not in conversation %s", playerID, conversationID)
	}
	return g.finishConversation(now, conversationID)
}

// finishConversation marks the conversation finished, releases every member,
// and stamps conversation cooldowns on the agents that were participating.
func (g *Game) finishConversation(now int64, conversationID types.ID) error {
	members := g.conversationMembers(conversationID)
	var participants []*types.ConversationMember
	for _, m := range members {
		if m.Status.Kind == types.MemberParticipating {
			participants = append(participants, m)
		}
	}
	for _, m := range participants {
		agent, ok := g.agentForPlayer(m.PlayerID)
		if !ok {
			continue
		}
		peers := make([]types.ID, 0, len(participants)-1)
		for _, other := range participants {
			if other.PlayerID != m.PlayerID {
				peers = append(peers, other.PlayerID)
			}
		}
		if err := g.agents.Update(agent.ID, func(a *types.Agent) {
			a.LastConversation = now
			if a.LastTalkedTo == nil {
				a.LastTalkedTo = make(map[types.ID]int64, len(peers))
			}
			for _, peer := range peers {
				a.LastTalkedTo[peer] = now
			}
		}); err != nil {
			log.WithError(err).WithField("agent", agent.ID).Error("Could not stamp conversation cooldown")
		}
	}
	for _, m := range members {
		if err := g.members.Update(m.ID, func(mm *types.ConversationMember) {
			mm.Status = types.MemberStatus{Kind: types.MemberLeft}
		}); err != nil {
			log.WithError(err).WithField("member", m.ID).Error("Could not release member")
		}
	}
	return g.conversations.Update(conversationID, func(c *types.Conversation) {
		c.IsTyping = nil
		c.Finished = &types.ConversationFinish{EndedAt: now}
	})
}

// sendMessage appends a message to a conversation the player is participating
// in and returns the message id. The author's typing claim is released.
func (g *Game) sendMessage(now int64, playerID, conversationID types.ID, text string) (types.ID, error) {
	conv, err := g.conversations.Lookup(conversationID)
	if err != nil {
		return "", err
	}
	member, ok := g.memberOf(playerID, conversationID)
	if !ok || member.Status.Kind != types.MemberParticipating {
		return "", errors.Wrapf(ErrNotParticipating, "player %s", playerID)
	}
	if conv.NumMessages >= params.TownConfig().MaxConversationMessages {
		return "", errors.Wrapf(ErrConversationFull, "conversation %s", conversationID)
	}
	messageID := g.messages.Insert(&types.Message{
		ConversationID: conversationID,
		AuthorID:       playerID,
		Text:           text,
		Created:        now,
	})
	err = g.conversations.Update(conversationID, func(c *types.Conversation) {
		c.NumMessages++
		c.LastMessage = &types.LastMessage{AuthorID: playerID, Ts: now}
		if c.IsTyping != nil && c.IsTyping.PlayerID == playerID {
			c.IsTyping = nil
		}
	})
	return messageID, err
}

// startTyping claims the next message slot so both sides do not talk over
// each other. The claim expires on its own after the typing timeout.
func (g *Game) startTyping(now int64, playerID, conversationID types.ID) error {
	conv, err := g.conversations.Lookup(conversationID)
	if err != nil {
		return err
	}
	member, ok := g.memberOf(playerID, conversationID)
	if !ok || member.Status.Kind != types.MemberParticipating {
		return errors.Wrapf(ErrNotParticipating, "player %s", playerID)
	}
	if conv.IsTyping != nil && conv.IsTyping.PlayerID != playerID {
		return errors.Wrapf(ErrAlreadyTyping, "player %s holds the slot", conv.IsTyping.PlayerID)
	}
	return g.conversations.Update(conversationID, func(c *types.Conversation) {
		c.IsTyping = &types.TypingIndicator{PlayerID: playerID, Since: now}
	})
}

// walkMembersOver steers every walkingOver member toward their partner so
// the pair converges on conversation distance. The partner's tile is usually
// unreachable because the partner stands on it; route planning then falls
// back to the nearest reachable cell, which is close enough to talk from. An
// existing plan is kept while it still lands near the partner, so routes are
// not rebuilt every tick.
func (g *Game) walkMembersOver(now int64) {
	cfg := params.TownConfig()
	for _, conv := range g.conversations.All() {
		members := g.conversationMembers(conv.ID)
		if len(members) != 2 {
			continue
		}
		for i, m := range members {
			if m.Status.Kind != types.MemberWalkingOver {
				continue
			}
			player, err := g.players.Lookup(m.PlayerID)
			if err != nil {
				continue
			}
			partner, err := g.players.Lookup(members[1-i].PlayerID)
			if err != nil {
				continue
			}
			target := g.playerPositionAt(partner, float64(now))
			self := g.playerPositionAt(player, float64(now))
			if geo.Distance(self, target) < cfg.ConversationDistance {
				continue // close enough; the promotion rule takes it from here
			}
			if pf := player.Pathfinding; pf != nil && geo.Distance(pf.Destination, target) < cfg.ConversationDistance {
				continue // current plan still ends within talking range
			}
			dest := geo.Point{X: math.Floor(target.X), Y: math.Floor(target.Y)}
			if err := g.players.Update(player.ID, func(p *types.Player) {
				p.Pathfinding = &types.Pathfinding{
					Destination: dest,
					Started:     now,
					State:       types.PathfindingState{Kind: types.PathNeedsPath},
				}
			}); err != nil {
				log.WithError(err).WithField("player", player.ID).Error("Could not walk member over")
			}
		}
	}
}

// tickConversations advances every unfinished conversation: expires typing
// claims, promotes members who walked within conversation distance, and
// finishes conversations that ran out of members, messages, or time.
func (g *Game) tickConversations(now int64) {
	cfg := params.TownConfig()
	for _, conv := range g.conversations.All() {
		if conv.IsTyping != nil && now-conv.IsTyping.Since >= int64(cfg.TypingTimeoutMillis) {
			if err := g.conversations.Update(conv.ID, func(c *types.Conversation) {
				c.IsTyping = nil
			}); err != nil {
				log.WithError(err).WithField("conversation", conv.ID).Error("Could not expire typing claim")
			}
		}

		members := g.conversationMembers(conv.ID)
		if len(members) < 2 {
			if err := g.finishConversation(now, conv.ID); err != nil {
				log.WithError(err).WithField("conversation", conv.ID).Error("Could not finish abandoned conversation")
			}
			continue
		}
		if now-conv.Created >= int64(cfg.MaxConversationDurationMillis) || conv.NumMessages >= cfg.MaxConversationMessages {
			if err := g.finishConversation(now, conv.ID); err != nil {
				log.WithError(err).WithField("conversation", conv.ID).Error("Could not finish expired conversation")
			}
			continue
		}

		// Promote walkers once both sides are close enough to talk.
		if len(members) == 2 {
			d, ok := g.playerDistance(members[0].PlayerID, members[1].PlayerID)
			if !ok || d >= cfg.ConversationDistance {
				continue
			}
			bothCommitted := true
			for _, m := range members {
				if m.Status.Kind != types.MemberWalkingOver && m.Status.Kind != types.MemberParticipating {
					bothCommitted = false
					break
				}
			}
			if !bothCommitted {
				continue
			}
			for _, m := range members {
				if m.Status.Kind != types.MemberWalkingOver {
					continue
				}
				if err := g.members.Update(m.ID, func(mm *types.ConversationMember) {
					mm.Status = types.MemberStatus{Kind: types.MemberParticipating, Started: now}
				}); err != nil {
					log.WithError(err).WithField("member", m.ID).Error("Could not promote member")
					continue
				}
				// Participants stand still; movePlayer refuses to walk
				// them away until the conversation ends.
				if err := g.stopPlayer(m.PlayerID); err != nil {
					log.WithError(err).WithField("player", m.PlayerID).Error("Could not pin participant")
				}
			}
		}
	}
}

// playerDistance measures the current distance between two players.
func (g *Game) playerDistance(a, b types.ID) (float64, bool) {
	pa, err := g.players.Lookup(a)
	if err != nil {
		return 0, false
	}
	pb, err := g.players.Lookup(b)
	if err != nil {
		return 0, false
	}
	la, err := g.locations.Lookup(pa.LocationID)
	if err != nil {
		return 0, false
	}
	lb, err := g.locations.Lookup(pb.LocationID)
	if err != nil {
		return 0, false
	}
	return geo.Distance(geo.Point{X: la.X(), Y: la.Y()}, geo.Point{X: lb.X(), Y: lb.Y()}), true
}
