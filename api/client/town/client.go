// Package town provides a typed client for the town node's HTTP API:
// submitting inputs and polling their outcomes, reading world snapshots and
// transcripts, streaming engine status frames, and mapping wall-clock time
// onto the engine's simulated timeline.
package town

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/aitownlabs/aitown/api/client"
	"github.com/aitownlabs/aitown/api/server/structs"
	"github.com/aitownlabs/aitown/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	inputsPath      = "/v1/town/worlds/%s/inputs"
	heartbeatPath   = "/v1/town/worlds/%s/heartbeat"
	enginePath      = "/v1/town/worlds/%s/engine"
	eventsPath      = "/v1/town/worlds/%s/events"
	worldPath       = "/v1/town/worlds/%s"
	inputStatusPath = "/v1/town/inputs/%s"
	messagesPath    = "/v1/town/conversations/%s/messages"
)

// DefaultWorld is the world id that targets the node's default world, so
// callers can bootstrap without knowing any document id.
const DefaultWorld = structs.DefaultWorldAlias

// defaultPollInterval spaces WaitForInput's status polls.
const defaultPollInterval = 500 * time.Millisecond

// Client provides a collection of helpers for calling the town node's HTTP API.
type Client struct {
	*client.Client
	pollInterval time.Duration
}

// NewClient returns a new Client that includes functions for rest calls to
// the town API.
func NewClient(host string, opts ...client.ClientOpt) (*Client, error) {
	c, err := client.NewClient(host, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{Client: c, pollInterval: defaultPollInterval}, nil
}

// SendInput submits a named input to the world's engine queue and returns
// the id to poll for its outcome.
func (c *Client) SendInput(ctx context.Context, worldID, name string, args jsoniter.RawMessage) (string, error) {
	body, err := json.Marshal(&structs.SubmitInputRequest{Name: name, Args: args})
	if err != nil {
		return "", errors.Wrap(err, "could not marshal input request")
	}
	b, err := c.Post(ctx, fmt.Sprintf(inputsPath, worldID), body)
	if err != nil {
		return "", errors.Wrap(err, "error requesting input submission")
	}
	resp := &structs.SubmitInputResponse{}
	if err := json.Unmarshal(b, resp); err != nil {
		return "", errors.Wrap(err, "failed to decode response body")
	}
	return resp.InputID, nil
}

// InputStatus reports the recorded outcome of an input. The outcome is nil
// while the engine has not yet processed the input.
func (c *Client) InputStatus(ctx context.Context, inputID string) (*types.ReturnValue, error) {
	b, err := c.Get(ctx, fmt.Sprintf(inputStatusPath, inputID))
	if err != nil {
		return nil, errors.Wrap(err, "error requesting input status")
	}
	resp := &structs.InputStatusResponse{}
	if err := json.Unmarshal(b, resp); err != nil {
		return nil, errors.Wrap(err, "failed to decode response body")
	}
	return resp.ReturnValue, nil
}

// WaitForInput polls until the engine records the input's outcome, then
// returns the handler's value. A rejected input surfaces as an error
// carrying the handler's message. The wait is bounded by ctx.
func (c *Client) WaitForInput(ctx context.Context, inputID string) (jsoniter.RawMessage, error) {
	for {
		rv, err := c.InputStatus(ctx, inputID)
		if err != nil {
			return nil, err
		}
		if rv != nil {
			if rv.Kind == types.ReturnError {
				return nil, errors.Errorf("input %s failed: %s", inputID, rv.Message)
			}
			return rv.Value, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

// EngineStatus returns the engine document backing a world.
func (c *Client) EngineStatus(ctx context.Context, worldID string) (*types.Engine, error) {
	b, err := c.Get(ctx, fmt.Sprintf(enginePath, worldID))
	if err != nil {
		return nil, errors.Wrap(err, "error requesting engine status")
	}
	resp := &structs.EngineResponse{}
	if err := json.Unmarshal(b, resp); err != nil {
		return nil, errors.Wrap(err, "failed to decode response body")
	}
	return resp.Engine, nil
}

// World returns the world snapshot as of the engine's last committed step.
func (c *Client) World(ctx context.Context, worldID string) (*structs.WorldResponse, error) {
	b, err := c.Get(ctx, fmt.Sprintf(worldPath, worldID))
	if err != nil {
		return nil, errors.Wrap(err, "error requesting world snapshot")
	}
	resp := &structs.WorldResponse{}
	if err := json.Unmarshal(b, resp); err != nil {
		return nil, errors.Wrap(err, "failed to decode response body")
	}
	return resp, nil
}

// Messages returns a conversation's transcript in creation order.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]*structs.MessageJson, error) {
	b, err := c.Get(ctx, fmt.Sprintf(messagesPath, conversationID))
	if err != nil {
		return nil, errors.Wrap(err, "error requesting conversation messages")
	}
	resp := &structs.MessagesResponse{}
	if err := json.Unmarshal(b, resp); err != nil {
		return nil, errors.Wrap(err, "failed to decode response body")
	}
	return resp.Messages, nil
}

// Heartbeat reports that someone is viewing the world, so an idle engine
// wakes and a running one stays awake.
func (c *Client) Heartbeat(ctx context.Context, worldID string) error {
	if _, err := c.Post(ctx, fmt.Sprintf(heartbeatPath, worldID), nil); err != nil {
		return errors.Wrap(err, "error requesting world heartbeat")
	}
	return nil
}
