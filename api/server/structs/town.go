// Package structs holds the JSON wire types of the town HTTP API. The rpc
// handlers encode them and the api/client/town SDK decodes them, so client
// binaries never import the server stack.
package structs

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/aitownlabs/aitown/types"
)

// StatusTopic is the SSE event name under which engine status frames are
// streamed on the events endpoint.
const StatusTopic = "status"

// DefaultWorldAlias is the path id that resolves to the world flagged as
// default, letting clients bootstrap without knowing any document id.
const DefaultWorldAlias = "default"

// StatusEvent is one engine status frame. CurrentTime and LastStepTs
// bracket the simulated window of the step that produced the frame.
type StatusEvent struct {
	EngineID             string `json:"engineId"`
	GenerationNumber     uint64 `json:"generationNumber"`
	CurrentTime          int64  `json:"currentTime"`
	LastStepTs           int64  `json:"lastStepTs"`
	ProcessedInputNumber uint64 `json:"processedInputNumber"`
}

// SubmitInputRequest names an input handler and carries its JSON arguments.
type SubmitInputRequest struct {
	Name string              `json:"name"`
	Args jsoniter.RawMessage `json:"args,omitempty"`
}

// SubmitInputResponse returns the id to poll for the input's outcome.
type SubmitInputResponse struct {
	InputID string `json:"inputId"`
}

// InputStatusResponse reports the recorded outcome of an input. ReturnValue
// stays null until the engine has processed the input.
type InputStatusResponse struct {
	InputID     string             `json:"inputId"`
	ReturnValue *types.ReturnValue `json:"returnValue"`
}

// EngineResponse wraps a world's engine document.
type EngineResponse struct {
	Engine *types.Engine `json:"engine"`
}

// WorldResponse is a read-only snapshot of one world as of the engine's
// last committed step.
type WorldResponse struct {
	World         *types.World        `json:"world"`
	Engine        *types.Engine       `json:"engine"`
	Players       []*PlayerJson       `json:"players"`
	Conversations []*ConversationJson `json:"conversations"`
}

// PlayerJson is a player document joined with its committed location.
// History carries the packed historical buffer for the last step so clients
// can interpolate between snapshots.
type PlayerJson struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Character   string  `json:"character,omitempty"`
	Description string  `json:"description,omitempty"`
	Human       bool    `json:"human"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	DX          float64 `json:"dx"`
	DY          float64 `json:"dy"`
	Velocity    float64 `json:"velocity"`
	History     []byte  `json:"history,omitempty"`
}

// ConversationJson is an unfinished conversation with its live membership.
type ConversationJson struct {
	ID          string                 `json:"id"`
	CreatorID   string                 `json:"creatorId"`
	Created     int64                  `json:"created"`
	NumMessages int                    `json:"numMessages"`
	LastMessage *types.LastMessage     `json:"lastMessage,omitempty"`
	IsTyping    *types.TypingIndicator `json:"isTyping,omitempty"`
	Members     []*MemberJson          `json:"members"`
}

// MemberJson is one player's membership state inside a conversation.
type MemberJson struct {
	PlayerID  string             `json:"playerId"`
	Status    types.MemberStatus `json:"status"`
	InvitedAt int64              `json:"invitedAt"`
}

// MessagesResponse lists a conversation's transcript in creation order.
type MessagesResponse struct {
	Messages []*MessageJson `json:"messages"`
}

// MessageJson is one utterance with its author resolved to a name when the
// author is known to the world.
type MessageJson struct {
	ID       string `json:"id"`
	AuthorID string `json:"authorId"`
	Author   string `json:"author,omitempty"`
	Text     string `json:"text"`
	Created  int64  `json:"created"`
}
