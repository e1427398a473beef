package llm

import (
	"context"

	"github.com/pkg/errors"
)

type moderationPayload struct {
	Input string `json:"input"`
}

type moderationResponse struct {
	Results []struct {
		Flagged bool `json:"flagged"`
	} `json:"results"`
}

// Moderate reports whether the text trips the moderation model.
func (c *Client) Moderate(ctx context.Context, text string) (bool, error) {
	resp := &moderationResponse{}
	if err := c.post(ctx, moderationsPath, moderationPayload{Input: text}, resp); err != nil {
		return false, err
	}
	if len(resp.Results) == 0 {
		return false, errors.Wrap(ErrFatal, "no results in moderation response")
	}
	return resp.Results[0].Flagged, nil
}
