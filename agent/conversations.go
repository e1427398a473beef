package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/aitownlabs/aitown/config/params"
	"github.com/aitownlabs/aitown/llm"
	"github.com/aitownlabs/aitown/types"
)

// messageMaxTokens bounds one generated utterance; town chat lines are
// short.
const messageMaxTokens = 300

// conversationPrompt assembles the chat-completion prompt for the agent's
// next line: who the agent is, who they are talking to, what they remember
// about them, and the transcript so far as alternating turns.
func conversationPrompt(self *types.Agent, selfPlayer, other *types.Player, otherIdentity string, memories []*types.Memory, messages []*types.Message) []llm.ChatMessage {
	b := strings.Builder{}
	fmt.Fprintf(&b, "You are %s, a character in a small simulated town.\n", selfPlayer.Name)
	if self.Identity != "" {
		fmt.Fprintf(&b, "About you: %s\n", self.Identity)
	}
	if self.Plan != "" {
		fmt.Fprintf(&b, "Your current goal: %s\n", self.Plan)
	}
	fmt.Fprintf(&b, "You are talking to %s.\n", other.Name)
	if otherIdentity != "" {
		fmt.Fprintf(&b, "About %s: %s\n", other.Name, otherIdentity)
	}
	if len(memories) > 0 {
		fmt.Fprintf(&b, "Things you remember:\n")
		for _, m := range memories {
			fmt.Fprintf(&b, "- %s\n", m.Summary)
		}
	}
	fmt.Fprintf(&b, "Reply with a single short conversational message from %s. Do not narrate, do not write for %s.", selfPlayer.Name, other.Name)

	prompt := []llm.ChatMessage{{Role: llm.RoleSystem, Content: b.String()}}
	for _, msg := range messages {
		if msg.AuthorID == selfPlayer.ID {
			prompt = append(prompt, llm.ChatMessage{Role: llm.RoleAssistant, Content: msg.Text})
			continue
		}
		prompt = append(prompt, llm.ChatMessage{Role: llm.RoleUser, Content: other.Name + ": " + msg.Text})
	}
	return prompt
}

// summaryPrompt asks for a compact recollection of a finished conversation,
// written from the agent's own point of view.
func summaryPrompt(selfName, otherName string, messages []*types.Message, nameOf func(types.ID) string) []llm.ChatMessage {
	b := strings.Builder{}
	for _, msg := range messages {
		fmt.Fprintf(&b, "%s: %s\n", nameOf(msg.AuthorID), msg.Text)
	}
	system := fmt.Sprintf(
		"Summarize the following conversation between %s and %s in one or two sentences, written from %s's point of view. Keep names.",
		selfName, otherName, selfName)
	return []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: b.String()},
	}
}

// generateText runs the prompt with the partner's name as the stop word so
// the model cannot put words in the other player's mouth.
func (s *Service) generateText(ctx context.Context, prompt []llm.ChatMessage, otherName string) (string, error) {
	reply, err := s.cfg.LLM.Chat(ctx, llm.ChatRequest{
		Messages:  prompt,
		Stop:      []string{"\n" + otherName + ":", otherName + ":"},
		MaxTokens: messageMaxTokens,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// summarizeConversation turns a finished transcript into a one-memory
// summary.
func (s *Service) summarizeConversation(ctx context.Context, selfName, otherName string, messages []*types.Message, nameOf func(types.ID) string) (string, error) {
	summary, err := s.cfg.LLM.Chat(ctx, llm.ChatRequest{
		Messages:  summaryPrompt(selfName, otherName, messages, nameOf),
		MaxTokens: params.TownConfig().ConversationSummaryMaxTokens,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(summary), nil
}
