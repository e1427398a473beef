package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aitownlabs/aitown/testing/require"
)

func TestHandleError(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleError(rec, "world missing-id could not be found", http.StatusNotFound)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	e := &DefaultErrorJson{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), e))
	require.Equal(t, http.StatusNotFound, e.Code)
	require.Equal(t, "world missing-id could not be found", e.Message)
}

func TestWriteJson(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJson(rec, map[string]string{"status": "running"})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, `{"status":"running"}`, rec.Body.String())
}

func TestDefaultErrorJson_Error(t *testing.T) {
	e := &DefaultErrorJson{Message: "bad input", Code: http.StatusBadRequest}
	require.Equal(t, "HTTP request unsuccessful (400: bad input)", e.Error())
}
