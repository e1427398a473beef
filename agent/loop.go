package agent

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/aitownlabs/aitown/config/params"
	"github.com/aitownlabs/aitown/town"
	"github.com/aitownlabs/aitown/types"
)

// Operation names recorded on the agent document while an asynchronous task
// runs.
const (
	opGenerateMessage      = "generateMessage"
	opRememberConversation = "rememberConversation"
)

const (
	inputPollInterval = 50 * time.Millisecond
	inputPollTimeout  = 5 * time.Second
)

var errAgentGone = errors.New("agent no longer in world")

// runner is the per-agent loop state. It lives in service memory only; a
// restart rebuilds it from the agent document and the world snapshot.
type runner struct {
	agentID  types.ID
	worldID  types.ID
	engineID types.ID

	wake chan struct{}
	quit chan struct{}
	once sync.Once

	wmap *types.WorldMap

	// The invite decision is rolled once per conversation so a slow engine
	// step cannot re-roll it into a different answer.
	decidedInvite types.ID
	acceptInvite  bool

	// The conversation the agent last participated in, kept until it
	// finishes and a memory of it has been written.
	lastConversation types.ID
	lastPeer         types.ID
	lastPeerName     string
}

func newRunner(agentID, worldID, engineID types.ID) *runner {
	return &runner{
		agentID:  agentID,
		worldID:  worldID,
		engineID: engineID,
		wake:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
	}
}

// nudge wakes the loop without blocking; a loop already awake misses
// nothing, it reads fresh state anyway.
func (r *runner) nudge() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *runner) retire() {
	r.once.Do(func() { close(r.quit) })
}

func (s *Service) wakeInterval() time.Duration {
	return time.Duration(params.TownConfig().AgentWakeupIntervalMillis) * time.Millisecond
}

func (s *Service) loop(ctx context.Context, r *runner) {
	entry := log.WithFields(logrus.Fields{"agent": r.agentID, "world": r.worldID})
	entry.Debug("Agent loop started")
	for {
		wait, err := s.act(ctx, r)
		if err != nil {
			if errors.Is(err, errAgentGone) {
				entry.Debug("Agent loop retired")
				return
			}
			entry.WithError(err).Error("Agent wake-up failed")
			wait = s.wakeInterval()
		}
		if wait <= 0 {
			wait = s.wakeInterval()
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-r.quit:
			timer.Stop()
			entry.Debug("Agent loop retired")
			return
		case <-r.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// act runs one wake-up of the policy and returns how long to sleep.
func (s *Service) act(ctx context.Context, r *runner) (time.Duration, error) {
	snap, err := LoadSnapshot(ctx, s.cfg.Database, r.worldID)
	if err != nil {
		return 0, err
	}
	ag := snap.AgentByID(r.agentID)
	if ag == nil {
		return 0, errAgentGone
	}
	self := snap.Player(ag.PlayerID)
	if self == nil {
		return 0, errAgentGone
	}
	if snap.World.Status != types.WorldRunning {
		return s.wakeInterval(), nil
	}
	if r.wmap == nil {
		wmap, err := s.cfg.Database.WorldMap(ctx, snap.World.MapID)
		if err != nil {
			return 0, err
		}
		r.wmap = wmap
	}

	// A conversation that ended since the last wake-up gets summarized
	// before anything else, so the memory is on file when the pair next
	// meets.
	if r.lastConversation != "" && snap.ConversationByID(r.lastConversation) == nil {
		if err := s.rememberConversation(ctx, r, snap, ag, self); err != nil {
			log.WithError(err).WithField("agent", ag.ID).Warn("Could not write conversation memory")
		}
		r.lastConversation, r.lastPeer, r.lastPeerName = "", "", ""
	}

	if op := ag.InProgressOperation; op != nil && snap.Now-op.Started < int64(params.TownConfig().ActionTimeoutMillis) {
		// An operation is still marked in flight; let it finish or age out.
		return s.wakeInterval(), nil
	}

	member := snap.MembershipFor(self.ID)
	if member == nil {
		return s.actIdle(ctx, r, decideIdle(s.cfg.Rand, snap, r.wmap, ag, self, snap.Now), self)
	}
	switch member.Status.Kind {
	case types.MemberInvited:
		return s.answerInvite(ctx, r, member, self, snap.Now)
	case types.MemberWalkingOver:
		// The tick loop is walking the player over; nothing to decide.
		return s.wakeInterval(), nil
	case types.MemberParticipating:
		r.lastConversation = member.ConversationID
		if other, _ := snap.OtherParticipant(member.ConversationID, self.ID); other != nil {
			r.lastPeer, r.lastPeerName = other.ID, other.Name
		}
		return s.takeTurn(ctx, r, snap, ag, self, member)
	}
	return s.wakeInterval(), nil
}

func (s *Service) actIdle(ctx context.Context, r *runner, d idleDecision, self *types.Player) (time.Duration, error) {
	switch {
	case d.invite != "":
		if err := s.submit(ctx, r, town.InputStartConversation, town.StartConversationArgs{PlayerID: self.ID, InviteeID: d.invite}); err != nil {
			return 0, err
		}
	case d.wander != nil:
		if err := s.submit(ctx, r, town.InputMoveTo, town.MoveToArgs{PlayerID: self.ID, Destination: d.wander}); err != nil {
			return 0, err
		}
	}
	return d.wait, nil
}

func (s *Service) answerInvite(ctx context.Context, r *runner, member *types.ConversationMember, self *types.Player, now int64) (time.Duration, error) {
	if r.decidedInvite != member.ConversationID {
		r.decidedInvite = member.ConversationID
		r.acceptInvite = decideInvite(s.cfg.Rand, member, now)
	}
	name := town.InputAcceptInvite
	if !r.acceptInvite {
		name = town.InputRejectInvite
	}
	if err := s.submit(ctx, r, name, town.ConversationArgs{PlayerID: self.ID, ConversationID: member.ConversationID}); err != nil {
		return 0, err
	}
	return s.wakeInterval(), nil
}

func (s *Service) takeTurn(ctx context.Context, r *runner, snap *Snapshot, ag *types.Agent, self *types.Player, member *types.ConversationMember) (time.Duration, error) {
	conv := snap.ConversationByID(member.ConversationID)
	if conv == nil {
		return s.wakeInterval(), nil
	}
	other, _ := snap.OtherParticipant(conv.ID, self.ID)
	if other == nil {
		// The partner is gone; the tick loop will finish the conversation.
		return s.wakeInterval(), nil
	}
	d := decideTurn(conv, member, self, snap.Now)
	switch {
	case d.leave:
		if err := s.submit(ctx, r, town.InputLeaveConversation, town.ConversationArgs{PlayerID: self.ID, ConversationID: conv.ID}); err != nil {
			return 0, err
		}
		return s.wakeInterval(), nil
	case d.speak:
		return s.generateMessage(ctx, r, snap, ag, self, other, conv)
	}
	return d.wait, nil
}

// generateMessage claims the typing slot, prompts the language model, and
// submits the resulting line. The operation is bracketed on the agent
// document so a crash mid-generation is visible and reclaimable.
func (s *Service) generateMessage(ctx context.Context, r *runner, snap *Snapshot, ag *types.Agent, self, other *types.Player, conv *types.Conversation) (time.Duration, error) {
	cfg := params.TownConfig()
	cooldown := time.Duration(cfg.MessageCooldownMillis) * time.Millisecond

	// Claim the turn first so two agents do not talk over each other.
	claim, err := s.submitInput(ctx, r, town.InputStartTyping, town.ConversationArgs{PlayerID: self.ID, ConversationID: conv.ID})
	if err != nil {
		return 0, err
	}
	result, err := s.waitForInput(ctx, claim.ID)
	if err != nil {
		return 0, err
	}
	if result.Kind == types.ReturnError {
		// Lost the claim; the partner is typing.
		return cooldown, nil
	}

	if err := s.submit(ctx, r, town.InputAgentStart, town.AgentOperationArgs{AgentID: ag.ID, Operation: opGenerateMessage}); err != nil {
		return 0, err
	}
	defer func() {
		if err := s.submit(ctx, r, town.InputAgentDone, town.AgentOperationArgs{AgentID: ag.ID, Operation: opGenerateMessage}); err != nil {
			log.WithError(err).Warn("Could not clear agent operation")
		}
	}()

	opCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.ActionTimeoutMillis)*time.Millisecond)
	defer cancel()

	messages, err := s.cfg.Database.MessagesInConversation(ctx, conv.ID)
	if err != nil {
		return 0, err
	}
	memories, err := s.relevantMemories(opCtx, self.ID, other.Name)
	if err != nil {
		// The prompt still works without recollections.
		log.WithError(err).WithField("agent", ag.ID).Warn("Could not retrieve memories")
	}
	otherIdentity := ""
	if otherAgent := snap.AgentForPlayer(other.ID); otherAgent != nil {
		otherIdentity = otherAgent.Identity
	} else if other.Description != "" {
		otherIdentity = other.Description
	}
	text, err := s.generateText(opCtx, conversationPrompt(ag, self, other, otherIdentity, memories, messages), other.Name)
	if err != nil {
		return 0, err
	}
	if text == "" {
		// Nothing left to say; bow out instead of sending empty lines.
		if err := s.submit(ctx, r, town.InputLeaveConversation, town.ConversationArgs{PlayerID: self.ID, ConversationID: conv.ID}); err != nil {
			return 0, err
		}
		return s.wakeInterval(), nil
	}
	if err := s.submit(ctx, r, town.InputSendMessage, town.SendMessageArgs{PlayerID: self.ID, ConversationID: conv.ID, Text: text}); err != nil {
		return 0, err
	}
	return cooldown, nil
}

// rememberConversation summarizes a finished conversation into a memory
// document. Memory formation is best effort: losing the race to a process
// restart loses the memory but never the transcript.
func (s *Service) rememberConversation(ctx context.Context, r *runner, snap *Snapshot, ag *types.Agent, self *types.Player) error {
	if r.lastPeer == "" {
		return nil
	}
	messages, err := s.cfg.Database.MessagesInConversation(ctx, r.lastConversation)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	if err := s.submit(ctx, r, town.InputAgentStart, town.AgentOperationArgs{AgentID: ag.ID, Operation: opRememberConversation}); err != nil {
		return err
	}
	defer func() {
		if err := s.submit(ctx, r, town.InputAgentDone, town.AgentOperationArgs{AgentID: ag.ID, Operation: opRememberConversation}); err != nil {
			log.WithError(err).Warn("Could not clear agent operation")
		}
	}()

	cfg := params.TownConfig()
	opCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.ActionTimeoutMillis)*time.Millisecond)
	defer cancel()

	otherName := r.lastPeerName
	if otherName == "" {
		otherName = snap.NameOf(r.lastPeer)
	}
	nameOf := func(id types.ID) string {
		if id == self.ID {
			return self.Name
		}
		if id == r.lastPeer {
			return otherName
		}
		return snap.NameOf(id)
	}
	summary, err := s.summarizeConversation(opCtx, self.Name, otherName, messages, nameOf)
	if err != nil {
		return err
	}
	if summary == "" {
		return nil
	}
	vector, err := s.cfg.LLM.EmbedOne(opCtx, summary)
	if err != nil {
		return err
	}
	return s.cfg.Database.SaveMemory(ctx, &types.Memory{
		ID:       types.NewID(),
		WorldID:  r.worldID,
		PlayerID: self.ID,
		OtherID:  r.lastPeer,
		Summary:  summary,
		Vector:   vector,
		Created:  snap.Now,
	})
}

// waitForInput polls until the engine has processed the input. The engine
// kicks itself when an input would otherwise wait out a full step interval,
// so this resolves within roughly the input delay.
func (s *Service) waitForInput(ctx context.Context, id types.ID) (*types.ReturnValue, error) {
	deadline := time.NewTimer(inputPollTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(inputPollInterval)
	defer ticker.Stop()
	for {
		input, err := s.cfg.Database.Input(ctx, id)
		if err != nil {
			return nil, err
		}
		if input.ReturnValue != nil {
			return input.ReturnValue, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, errors.Errorf("input %s was not processed in time", id)
		case <-ticker.C:
		}
	}
}

func (s *Service) submitInput(ctx context.Context, r *runner, name string, args interface{}) (*types.Input, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, errors.Wrapf(err, "could not encode %s args", name)
	}
	input, err := s.cfg.Inputs.InsertInput(ctx, r.engineID, name, raw)
	if err != nil {
		return nil, errors.Wrapf(err, "could not submit %s", name)
	}
	return input, nil
}

func (s *Service) submit(ctx context.Context, r *runner, name string, args interface{}) error {
	_, err := s.submitInput(ctx, r, name, args)
	return err
}
