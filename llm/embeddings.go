package llm

import (
	"context"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
)

type embeddingsPayload struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one vector per input text, in input order. Vectors are
// cached for an hour keyed by the exact text, so re-embedding the stable
// parts of prompts costs nothing.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	misses := make([]string, 0, len(texts))
	missIdx := make([]int, 0, len(texts))
	for i, text := range texts {
		if v, ok := c.embeds.Get(text); ok {
			vector, ok := v.([]float32)
			if !ok {
				return nil, errors.New("could not convert cached value to vector type")
			}
			out[i] = vector
			continue
		}
		misses = append(misses, text)
		missIdx = append(missIdx, i)
	}
	if len(misses) == 0 {
		return out, nil
	}
	resp := &embeddingsResponse{}
	if err := c.post(ctx, embeddingsPath, embeddingsPayload{Model: c.embeddingModel, Input: misses}, resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(misses) {
		return nil, errors.Wrapf(ErrFatal, "%d embeddings returned for %d inputs", len(resp.Data), len(misses))
	}
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(misses) {
			return nil, errors.Wrapf(ErrFatal, "embedding index %d out of range", d.Index)
		}
		out[missIdx[d.Index]] = d.Embedding
		c.embeds.Set(misses[d.Index], d.Embedding, cache.DefaultExpiration)
	}
	return out, nil
}

// EmbedOne embeds a single text.
func (c *Client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
