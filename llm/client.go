// Package llm is a thin client for OpenAI-compatible API servers covering
// the three endpoints the simulation needs: chat completions (plain or
// streamed with stop word handling), embeddings with a TTL cache, and
// moderation. Transport failures and HTTP 429/5xx responses are absorbed by
// a bounded backoff; every other failure is surfaced immediately.
package llm

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/kevinms/leakybucket-go"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/aitownlabs/aitown/config/params"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// DefaultHost is the public API endpoint. Nodes running a local
	// inference server point the client elsewhere via the --llm-host flag.
	DefaultHost = "https://api.openai.com"
	// APIKeyEnv names the environment variable read for the bearer token
	// when WithAPIKey is not used.
	APIKeyEnv = "OPENAI_API_KEY"

	chatCompletionsPath = "/v1/chat/completions"
	embeddingsPath      = "/v1/embeddings"
	moderationsPath     = "/v1/moderations"

	defaultChatModel      = "gpt-3.5-turbo-16k"
	defaultEmbeddingModel = "text-embedding-ada-002"

	embeddingCacheInterval = 10 * time.Minute

	// defaultRequestsPerSecond caps calls per endpoint so a town full of
	// agents does not trip the provider's account level limits.
	defaultRequestsPerSecond = 2
	defaultRequestBurst      = 4

	// backoffJitterMax is added to every retry wait so agents that failed
	// together do not retry together.
	backoffJitterMax = 100 * time.Millisecond
)

// defaultBackoffSchedule spaces the retries of retriable failures. One
// initial attempt plus one attempt per entry.
var defaultBackoffSchedule = []time.Duration{time.Second, 10 * time.Second, 20 * time.Second}

// Client is a wrapper object around the HTTP client.
type Client struct {
	hc             *http.Client
	baseURL        *url.URL
	apiKey         string
	chatModel      string
	embeddingModel string
	schedule       []time.Duration
	limiter        *leakybucket.Collector
	embeds         *cache.Cache
}

// NewClient constructs a new client with the provided options (ex WithTimeout).
// `host` is the base host + port used to construct request urls. This value can be
// a URL string, or NewClient will assume an http endpoint if just `host:port` is used.
// An empty host selects the public endpoint. The API key comes from the
// OPENAI_API_KEY environment variable unless WithAPIKey overrides it, and a
// missing key is a construction error.
func NewClient(host string, opts ...ClientOpt) (*Client, error) {
	if host == "" {
		host = DefaultHost
	}
	u, err := urlForHost(host)
	if err != nil {
		return nil, err
	}
	c := &Client{
		hc:             &http.Client{Timeout: 90 * time.Second},
		baseURL:        u,
		apiKey:         os.Getenv(APIKeyEnv),
		chatModel:      defaultChatModel,
		embeddingModel: defaultEmbeddingModel,
		schedule:       defaultBackoffSchedule,
		limiter:        leakybucket.NewCollector(defaultRequestsPerSecond, defaultRequestBurst, false /* deleteEmptyBuckets */),
		embeds:         cache.New(time.Duration(params.TownConfig().EmbeddingCacheTTLMillis)*time.Millisecond, embeddingCacheInterval),
	}
	for _, o := range opts {
		o(c)
	}
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return c, nil
}

func urlForHost(h string) (*url.URL, error) {
	// try to parse as url (being permissive)
	u, err := url.Parse(h)
	if err == nil && u.Host != "" {
		return u, nil
	}
	// try to parse as host:port
	host, port, err := net.SplitHostPort(h)
	if err != nil {
		return nil, errMalformedHostname
	}
	return &url.URL{Host: net.JoinHostPort(host, port), Scheme: "http"}, nil
}

// NodeURL returns a human-readable string representation of the API base url.
func (c *Client) NodeURL() string {
	return c.baseURL.String()
}

func (c *Client) newRequest(ctx context.Context, path string, body []byte) (*http.Request, error) {
	u := c.baseURL.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

// waitTurn blocks until the endpoint's rate limit budget admits one more
// request.
func (c *Client) waitTurn(ctx context.Context, endpoint string) error {
	if c.limiter.Remaining(endpoint) < 1 {
		log.WithField("endpoint", endpoint).Debug("Slowing down for rate limit")
		timer := time.NewTimer(c.limiter.TillEmpty(endpoint))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	c.limiter.Add(endpoint, 1)
	return nil
}

func retriableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// excerpt trims an error body to a single loggable line.
func excerpt(body []byte) string {
	s := strings.Join(strings.Fields(string(body)), " ")
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// send posts body to path and returns an open 200 response, absorbing
// retriable failures with the backoff schedule. The caller owns the response
// body.
func (c *Client) send(ctx context.Context, path string, body []byte) (*http.Response, error) {
	var last error
	for attempt := 0; ; attempt++ {
		if err := c.waitTurn(ctx, path); err != nil {
			return nil, err
		}
		req, err := c.newRequest(ctx, path, body)
		if err != nil {
			return nil, err
		}
		resp, err := c.hc.Do(req)
		switch {
		case err != nil:
			last = errors.Wrapf(ErrRetriable, "could not reach %s: %v", path, err)
		case resp.StatusCode == http.StatusOK:
			return resp, nil
		default:
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			if err := resp.Body.Close(); err != nil {
				log.WithError(err).Debug("Could not close response body")
			}
			if !retriableStatus(resp.StatusCode) {
				return nil, errors.Wrapf(ErrFatal, "%s returned %s: %s", path, resp.Status, excerpt(data))
			}
			last = errors.Wrapf(ErrRetriable, "%s returned %s: %s", path, resp.Status, excerpt(data))
		}
		if attempt >= len(c.schedule) {
			return nil, last
		}
		wait := c.schedule[attempt] + time.Duration(rand.Int63n(int64(backoffJitterMax)+1))
		log.WithError(last).WithField("wait", wait).Debug("Backing off before retrying")
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// post sends payload as JSON and decodes the response into out.
func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "could not encode request")
	}
	resp, err := c.send(ctx, path, body)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.WithError(err).Debug("Could not close response body")
		}
	}()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(ErrRetriable, "could not read %s response: %v", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(ErrFatal, "could not decode %s response: %v", path, err)
	}
	return nil
}
