package client

import (
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// ErrMalformedHostname is returned when a host argument is neither a url nor
// a host:port pair.
var ErrMalformedHostname = errors.New("hostname must include port, separated by one colon, like example.com:8080")

// ErrNotOK is used to indicate when an http request to the API failed with any non-2xx response code.
// Use errors.Is to handle this condition.
var ErrNotOK = errors.New("did not receive 2xx response from API")

// ErrNotFound specifically means that a '404 - NOT FOUND' response was received from the API.
var ErrNotFound = errors.Wrap(ErrNotOK, "recv 404 NotFound response from API")

// Non200Err folds a non-200 response into an error, keeping as much of the
// body as could be read for the message.
func Non200Err(response *http.Response) error {
	bodyBytes, err := io.ReadAll(response.Body)
	var body string
	if err != nil {
		body = "(Unable to read response body.)"
	} else {
		body = "response body:\n" + string(bodyBytes)
	}
	msg := fmt.Sprintf("code=%d, url=%s, %s", response.StatusCode, response.Request.URL, body)
	switch response.StatusCode {
	case http.StatusNotFound:
		return errors.Wrap(ErrNotFound, msg)
	default:
		return errors.Wrap(ErrNotOK, msg)
	}
}
