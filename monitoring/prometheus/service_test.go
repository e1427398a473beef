package prometheus

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	logTest "github.com/sirupsen/logrus/hooks/test"

	"github.com/aitownlabs/aitown/runtime"
	"github.com/aitownlabs/aitown/testing/assert"
	"github.com/aitownlabs/aitown/testing/require"
)

type healthyService struct{}

func (*healthyService) Start()        {}
func (*healthyService) Stop() error   { return nil }
func (*healthyService) Status() error { return nil }

type brokenService struct{}

func (*brokenService) Start()        {}
func (*brokenService) Stop() error   { return nil }
func (*brokenService) Status() error { return errors.New("db unreachable") }

func TestLifecycle(t *testing.T) {
	hook := logTest.NewGlobal()
	service := NewService("127.0.0.1:0", runtime.NewServiceRegistry())

	service.Start()
	require.LogsContain(t, hook, "Starting service")

	require.NoError(t, service.Stop())
	require.LogsContain(t, hook, "Stopping service")
}

func TestHealthz(t *testing.T) {
	registry := runtime.NewServiceRegistry()
	require.NoError(t, registry.RegisterService(&healthyService{}))
	s := NewService("127.0.0.1:0", registry)

	rec := httptest.NewRecorder()
	s.healthzHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, strings.Contains(rec.Body.String(), "healthyService: OK"))
}

func TestHealthz_FailingService(t *testing.T) {
	registry := runtime.NewServiceRegistry()
	require.NoError(t, registry.RegisterService(&brokenService{}))
	s := NewService("127.0.0.1:0", registry)

	rec := httptest.NewRecorder()
	s.healthzHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, true, strings.Contains(rec.Body.String(), "ERROR db unreachable"))
}

func TestHealthz_NegotiatesJSON(t *testing.T) {
	registry := runtime.NewServiceRegistry()
	require.NoError(t, registry.RegisterService(&healthyService{}))
	require.NoError(t, registry.RegisterService(&brokenService{}))
	s := NewService("127.0.0.1:0", registry)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Accept", contentTypeJSON)
	rec := httptest.NewRecorder()
	s.healthzHandler(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, contentTypeJSON, rec.Header().Get("Content-Type"))

	resp := struct {
		Data []struct {
			Name string `json:"service"`
			OK   bool   `json:"status"`
			Err  string `json:"error"`
		} `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, len(resp.Data))
}

func TestAdditionalHandlers(t *testing.T) {
	var called bool
	s := NewService("127.0.0.1:0", runtime.NewServiceRegistry(), Handler{
		Path: "/db/backup",
		Handler: func(w http.ResponseWriter, _ *http.Request) {
			called = true
			w.WriteHeader(http.StatusOK)
		},
	})

	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/db/backup", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, called)

	rec = httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, strings.Contains(rec.Body.String(), "# HELP"))
}
