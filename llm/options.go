package llm

import (
	"net/http"
	"time"

	"github.com/kevinms/leakybucket-go"
)

// ClientOpt is a functional option for the Client type.
type ClientOpt func(*Client)

// WithTimeout sets the .Timeout attribute of the wrapped http.Client.
func WithTimeout(timeout time.Duration) ClientOpt {
	return func(c *Client) {
		c.hc.Timeout = timeout
	}
}

// WithCustomTransport replaces the underlying transport of the wrapped
// http.Client.
func WithCustomTransport(t http.RoundTripper) ClientOpt {
	return func(c *Client) {
		c.hc.Transport = t
	}
}

// WithAPIKey sets the bearer token for every request, overriding the
// OPENAI_API_KEY environment variable.
func WithAPIKey(key string) ClientOpt {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithChatModel selects the model used for chat completions.
func WithChatModel(model string) ClientOpt {
	return func(c *Client) {
		c.chatModel = model
	}
}

// WithEmbeddingModel selects the model used for embeddings.
func WithEmbeddingModel(model string) ClientOpt {
	return func(c *Client) {
		c.embeddingModel = model
	}
}

// WithBackoffSchedule replaces the waits between retries of retriable
// failures. Tests shrink these to keep runs fast.
func WithBackoffSchedule(schedule []time.Duration) ClientOpt {
	return func(c *Client) {
		c.schedule = schedule
	}
}

// WithRateLimit replaces the default requests-per-second budget shared by
// all calls to one endpoint.
func WithRateLimit(perSecond float64, burst int64) ClientOpt {
	return func(c *Client) {
		c.limiter = leakybucket.NewCollector(perSecond, burst, false /* deleteEmptyBuckets */)
	}
}
