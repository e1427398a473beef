// Package httputil contains helpers for writing HTTP/JSON responses.
package httputil

import (
	"fmt"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const jsonMediaType = "application/json"

// DefaultErrorJson is a JSON representation of a simple error value,
// containing only a message and an error code.
type DefaultErrorJson struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Error satisfies the error interface.
func (e *DefaultErrorJson) Error() string {
	return fmt.Sprintf("HTTP request unsuccessful (%d: %s)", e.Code, e.Message)
}

// HandleError writes a JSON error response with the given message and code.
func HandleError(w http.ResponseWriter, message string, code int) {
	errJson := &DefaultErrorJson{
		Message: message,
		Code:    code,
	}
	WriteError(w, errJson)
}

// WriteError writes the error by manipulating headers and the body of the
// final response.
func WriteError(w http.ResponseWriter, errJson *DefaultErrorJson) {
	j, err := json.Marshal(errJson)
	if err != nil {
		logrus.WithError(err).Error("Could not marshal error message")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", jsonMediaType)
	w.WriteHeader(errJson.Code)
	if _, err := w.Write(j); err != nil {
		logrus.WithError(err).Error("Could not write error message")
	}
}

// WriteJson writes the response message in JSON format.
func WriteJson(w http.ResponseWriter, v interface{}) {
	j, err := json.Marshal(v)
	if err != nil {
		HandleError(w, "Could not marshal response: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", jsonMediaType)
	if _, err := w.Write(j); err != nil {
		logrus.WithError(err).Error("Could not write response message")
	}
}
