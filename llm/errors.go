package llm

import "github.com/pkg/errors"

// ErrMissingAPIKey is returned from NewClient when no API key is configured
// and the OPENAI_API_KEY environment variable is empty. A node that needs
// language model access refuses to start without one rather than failing on
// the first agent action.
var ErrMissingAPIKey = errors.New("missing API key: set the OPENAI_API_KEY environment variable")

// ErrRetriable marks transport failures and HTTP 429 or 5xx responses. The
// client absorbs these with its backoff schedule, so callers only observe
// one after the final attempt has failed.
var ErrRetriable = errors.New("retriable language model failure")

// ErrFatal marks responses that retrying cannot fix, such as a 4xx status
// for a malformed request or an undecodable body.
var ErrFatal = errors.New("fatal language model failure")

var errMalformedHostname = errors.New("hostname must include port, separated by one colon, like example.com:8080")
