package rpc

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/aitownlabs/aitown/api/server/structs"
	"github.com/aitownlabs/aitown/engine"
	"github.com/aitownlabs/aitown/testing/assert"
	"github.com/aitownlabs/aitown/testing/require"
)

// readEvent consumes one SSE event from the stream, returning its name and
// payload line.
func readEvent(t *testing.T, br *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := br.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && data != "":
			return name, data
		}
	}
}

func TestStreamEvents(t *testing.T) {
	h := setupServer(t)
	seedWorld(t, h)

	httpSrv := httptest.NewServer(h.srv.router)
	defer httpSrv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpSrv.URL+"/v1/town/worlds/w1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, resp.Body.Close())
	}()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	br := bufio.NewReader(resp.Body)

	// The engine's committed cursor arrives before any step lands.
	name, data := readEvent(t, br)
	assert.Equal(t, structs.StatusTopic, name)
	primed := &structs.StatusEvent{}
	require.NoError(t, json.Unmarshal([]byte(data), primed))
	assert.Equal(t, "e1", primed.EngineID)
	assert.Equal(t, int64(1000), primed.CurrentTime)

	// A status from another engine is filtered out; the next event the
	// client sees belongs to its world.
	h.notifier.feed.Send(&engine.StatusEvent{EngineID: "e9", GenerationNumber: 1, CurrentTime: 9999})
	h.notifier.feed.Send(&engine.StatusEvent{EngineID: "e1", GenerationNumber: 1, CurrentTime: 2000, LastStepTs: 1000, ProcessedInputNumber: 3})

	name, data = readEvent(t, br)
	assert.Equal(t, structs.StatusTopic, name)
	stepped := &structs.StatusEvent{}
	require.NoError(t, json.Unmarshal([]byte(data), stepped))
	assert.Equal(t, "e1", stepped.EngineID)
	assert.Equal(t, int64(2000), stepped.CurrentTime)
	assert.Equal(t, uint64(3), stepped.ProcessedInputNumber)
}

func TestStreamEvents_UnknownWorld(t *testing.T) {
	h := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/town/worlds/w404/events", nil)
	req = mux.SetURLVars(req, map[string]string{"world": "w404"})
	rec := httptest.NewRecorder()
	h.srv.StreamEvents(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
