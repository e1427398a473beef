package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aitownlabs/aitown/config/params"
	"github.com/aitownlabs/aitown/llm"
	"github.com/aitownlabs/aitown/testing/assert"
	"github.com/aitownlabs/aitown/testing/require"
	"github.com/aitownlabs/aitown/types"
)

func TestConversationPrompt(t *testing.T) {
	ag := &types.Agent{ID: "a1", PlayerID: "me", Identity: "a retired sailor", Plan: "find a chess partner"}
	self := &types.Player{ID: "me", Name: "Ann", Active: true}
	other := &types.Player{ID: "them", Name: "Bob", Active: true}
	memories := []*types.Memory{{Summary: "Bob beat Ann at chess last week."}}
	messages := []*types.Message{
		{AuthorID: "them", Text: "hello"},
		{AuthorID: "me", Text: "hi Bob"},
	}

	prompt := conversationPrompt(ag, self, other, "a baker", memories, messages)
	require.Equal(t, 3, len(prompt))

	system := prompt[0]
	assert.Equal(t, llm.RoleSystem, system.Role)
	for _, want := range []string{
		"You are Ann",
		"a retired sailor",
		"find a chess partner",
		"talking to Bob",
		"a baker",
		"Bob beat Ann at chess last week.",
	} {
		if !strings.Contains(system.Content, want) {
			t.Errorf("system prompt missing %q:\n%s", want, system.Content)
		}
	}

	assert.Equal(t, llm.RoleUser, prompt[1].Role)
	assert.Equal(t, "Bob: hello", prompt[1].Content)
	assert.Equal(t, llm.RoleAssistant, prompt[2].Role)
	assert.Equal(t, "hi Bob", prompt[2].Content)
}

func TestSummaryPrompt(t *testing.T) {
	messages := []*types.Message{
		{AuthorID: "me", Text: "nice weather"},
		{AuthorID: "them", Text: "indeed"},
	}
	nameOf := func(id types.ID) string {
		if id == "me" {
			return "Ann"
		}
		return "Bob"
	}
	prompt := summaryPrompt("Ann", "Bob", messages, nameOf)
	require.Equal(t, 2, len(prompt))
	assert.Equal(t, llm.RoleSystem, prompt[0].Role)
	assert.Equal(t, true, strings.Contains(prompt[0].Content, "between Ann and Bob"))
	assert.Equal(t, true, strings.Contains(prompt[1].Content, "Ann: nice weather"))
	assert.Equal(t, true, strings.Contains(prompt[1].Content, "Bob: indeed"))
}

func TestGenerateText_StopsAtPartnerName(t *testing.T) {
	var got struct {
		Messages []llm.ChatMessage `json:"messages"`
		Stop     []string          `json:"stop"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, err := w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Sure, let's play!\nBob: great"},"finish_reason":"stop"}]}`))
		require.NoError(t, err)
	}))
	defer srv.Close()

	client, err := llm.NewClient(srv.URL, llm.WithAPIKey("sk-test"))
	require.NoError(t, err)
	s := &Service{cfg: &ServiceConfig{LLM: client}}

	text, err := s.generateText(context.Background(), []llm.ChatMessage{{Role: llm.RoleUser, Content: "hi"}}, "Bob")
	require.NoError(t, err)
	assert.Equal(t, "Sure, let's play!", text)
	assert.DeepEqual(t, []string{"\nBob:", "Bob:"}, got.Stop)
}

func TestSummarizeConversation_UsesConfiguredTokenBudget(t *testing.T) {
	cfg := params.TownConfig().Copy()
	cfg.ConversationSummaryMaxTokens = 123
	params.OverrideTownConfig(cfg)
	defer params.OverrideTownConfig(params.DefaultConfig())

	var got struct {
		MaxTokens int `json:"max_tokens"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, err := w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" Ann and Bob played chess. "},"finish_reason":"stop"}]}`))
		require.NoError(t, err)
	}))
	defer srv.Close()

	client, err := llm.NewClient(srv.URL, llm.WithAPIKey("sk-test"))
	require.NoError(t, err)
	s := &Service{cfg: &ServiceConfig{LLM: client}}

	messages := []*types.Message{{AuthorID: "me", Text: "good game"}}
	nameOf := func(types.ID) string { return "Ann" }
	summary, err := s.summarizeConversation(context.Background(), "Ann", "Bob", messages, nameOf)
	require.NoError(t, err)
	assert.Equal(t, "Ann and Bob played chess.", summary)
	assert.Equal(t, 123, got.MaxTokens)
}
