package agent

import (
	"sort"
	"time"

	"github.com/aitownlabs/aitown/config/params"
	"github.com/aitownlabs/aitown/crypto/rand"
	"github.com/aitownlabs/aitown/geo"
	"github.com/aitownlabs/aitown/town"
	"github.com/aitownlabs/aitown/types"
)

// idleDecision is the outcome of a wake-up for an agent who is in no
// conversation: invite somebody, wander somewhere, or sit tight.
type idleDecision struct {
	invite types.ID
	wander *geo.Point
	wait   time.Duration
}

// turnDecision is the outcome of a wake-up inside a conversation.
type turnDecision struct {
	leave bool
	speak bool
	wait  time.Duration
}

// decideIdle applies the idle policy: invite the nearest free player if the
// conversation cooldowns allow it, otherwise wander to a random walkable
// tile once the current walk is done.
func decideIdle(rng *rand.Rand, snap *Snapshot, wmap *types.WorldMap, ag *types.Agent, self *types.Player, now int64) idleDecision {
	cfg := params.TownConfig()
	if invitee := inviteCandidate(snap, ag, self, now); invitee != "" {
		return idleDecision{invite: invitee}
	}
	if self.Pathfinding != nil {
		// Mid-walk; look again when the walk should be over.
		return idleDecision{wait: time.Duration(cfg.AgentWakeupIntervalMillis) * time.Millisecond}
	}
	if dest := wanderDestination(rng, wmap, snap); dest != nil {
		return idleDecision{wander: dest}
	}
	return idleDecision{wait: time.Duration(cfg.AgentWakeupIntervalMillis) * time.Millisecond}
}

// inviteCandidate picks the nearest free player the cooldowns permit talking
// to, or empty when the agent should keep to itself.
func inviteCandidate(snap *Snapshot, ag *types.Agent, self *types.Player, now int64) types.ID {
	cfg := params.TownConfig()
	if ag.LastInviteAttempt > 0 && now-ag.LastInviteAttempt < int64(cfg.ConversationCooldownMillis) {
		return ""
	}
	if ag.LastConversation > 0 && now-ag.LastConversation < int64(cfg.ConversationCooldownMillis) {
		return ""
	}
	selfPos, ok := snap.PositionOf(self.ID)
	if !ok {
		return ""
	}
	candidates := snap.FreePlayers(self.ID)
	sort.Slice(candidates, func(i, j int) bool {
		pi, _ := snap.PositionOf(candidates[i].ID)
		pj, _ := snap.PositionOf(candidates[j].ID)
		di, dj := geo.Distance(selfPos, pi), geo.Distance(selfPos, pj)
		if di != dj {
			return di < dj
		}
		return candidates[i].ID < candidates[j].ID
	})
	for _, candidate := range candidates {
		if last, ok := ag.LastTalkedTo[candidate.ID]; ok && now-last < int64(cfg.PlayerConversationCooldownMillis) {
			continue
		}
		return candidate.ID
	}
	return ""
}

// wanderDestination picks a random walkable tile that no player currently
// stands on. Nil when a handful of draws all land on blocked tiles.
func wanderDestination(rng *rand.Rand, wmap *types.WorldMap, snap *Snapshot) *geo.Point {
	cfg := params.TownConfig()
	for i := 0; i < 10; i++ {
		p := geo.Point{X: float64(rng.Intn(wmap.Width)), Y: float64(rng.Intn(wmap.Height))}
		if !town.Walkable(wmap, p) {
			continue
		}
		occupied := false
		for id := range snap.players {
			pos, ok := snap.PositionOf(id)
			if ok && geo.Distance(p, pos) < cfg.CollisionThreshold {
				occupied = true
				break
			}
		}
		if !occupied {
			return &p
		}
	}
	return nil
}

// decideTurn applies the conversation-turn policy: leave when the message
// quota is spent or nobody has said anything for the awkward timeout, hold
// while the partner is typing or the message cooldown runs, otherwise claim
// the turn.
func decideTurn(conv *types.Conversation, member *types.ConversationMember, self *types.Player, now int64) turnDecision {
	cfg := params.TownConfig()
	if conv.NumMessages >= cfg.MaxConversationMessages {
		return turnDecision{leave: true}
	}
	lastActivity := member.Status.Started
	if conv.LastMessage != nil && conv.LastMessage.Ts > lastActivity {
		lastActivity = conv.LastMessage.Ts
	}
	if now-lastActivity >= int64(cfg.AwkwardConversationTimeoutMillis) {
		return turnDecision{leave: true}
	}
	if typing := conv.IsTyping; typing != nil && typing.PlayerID != self.ID {
		return turnDecision{wait: time.Duration(cfg.MessageCooldownMillis) * time.Millisecond}
	}
	cooldown := int64(cfg.MessageCooldownMillis)
	if last := conv.LastMessage; last != nil {
		if wait := cooldown - (now - last.Ts); wait > 0 {
			return turnDecision{wait: time.Duration(wait) * time.Millisecond}
		}
	} else if conv.CreatorID != self.ID {
		// Nobody has spoken yet. The inviter breaks the ice; give them a
		// beat before jumping in.
		if wait := cooldown - (now - member.Status.Started); wait > 0 {
			return turnDecision{wait: time.Duration(wait) * time.Millisecond}
		}
	}
	return turnDecision{speak: true}
}

// decideInvite rolls the accept probability for a fresh invite; invites that
// sat unanswered past the timeout are rejected outright.
func decideInvite(rng *rand.Rand, member *types.ConversationMember, now int64) bool {
	cfg := params.TownConfig()
	if now-member.InvitedAt >= int64(cfg.InviteTimeoutMillis) {
		return false
	}
	return rng.Float64() < cfg.InviteAcceptProbability
}
