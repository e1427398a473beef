package town

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/aitownlabs/aitown/api/client"
	"github.com/aitownlabs/aitown/api/server/structs"
	"github.com/aitownlabs/aitown/testing/assert"
	"github.com/aitownlabs/aitown/testing/require"
)

func testClient(t *testing.T, srv *httptest.Server) *Client {
	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	c.pollInterval = time.Millisecond
	return c
}

func TestNewClient_MalformedHost(t *testing.T) {
	_, err := NewClient("portless")
	require.ErrorIs(t, err, client.ErrMalformedHostname)
}

func TestSendInput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/town/worlds/w1/inputs", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		req := &structs.SubmitInputRequest{}
		require.NoError(t, json.Unmarshal(body, req))
		assert.Equal(t, "moveTo", req.Name)
		assert.Equal(t, `{"playerId":"p1","x":3,"y":4}`, string(req.Args))
		_, err = w.Write([]byte(`{"inputId":"i1"}`))
		require.NoError(t, err)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	id, err := c.SendInput(context.Background(), "w1", "moveTo", jsoniter.RawMessage(`{"playerId":"p1","x":3,"y":4}`))
	require.NoError(t, err)
	assert.Equal(t, "i1", id)
}

func TestSendInput_ServerRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, err := w.Write([]byte(`{"message":"Input name is required","code":400}`))
		require.NoError(t, err)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	_, err := c.SendInput(context.Background(), "w1", "", nil)
	require.ErrorIs(t, err, client.ErrNotOK)
	require.ErrorContains(t, "Input name is required", err)
}

func TestInputStatus_Pending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/town/inputs/i1", r.URL.Path)
		_, err := w.Write([]byte(`{"inputId":"i1","returnValue":null}`))
		require.NoError(t, err)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	rv, err := c.InputStatus(context.Background(), "i1")
	require.NoError(t, err)
	if rv != nil {
		t.Fatalf("expected pending input to have no return value, got %+v", rv)
	}
}

func TestInputStatus_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte(`{"message":"Input i404 could not be found","code":404}`))
		require.NoError(t, err)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	_, err := c.InputStatus(context.Background(), "i404")
	require.ErrorIs(t, err, client.ErrNotFound)
}

func TestWaitForInput_PollsUntilProcessed(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		var err error
		if atomic.AddInt32(&calls, 1) < 3 {
			_, err = w.Write([]byte(`{"inputId":"i1","returnValue":null}`))
		} else {
			_, err = w.Write([]byte(`{"inputId":"i1","returnValue":{"kind":"ok","value":{"playerId":"p1"}}}`))
		}
		require.NoError(t, err)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	value, err := c.WaitForInput(context.Background(), "i1")
	require.NoError(t, err)
	assert.Equal(t, `{"playerId":"p1"}`, string(value))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestWaitForInput_SurfacesHandlerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, err := w.Write([]byte(`{"inputId":"i1","returnValue":{"kind":"error","message":"world is full"}}`))
		require.NoError(t, err)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	_, err := c.WaitForInput(context.Background(), "i1")
	require.ErrorContains(t, "world is full", err)
}

func TestWaitForInput_HonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, err := w.Write([]byte(`{"inputId":"i1","returnValue":null}`))
		require.NoError(t, err)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.WaitForInput(ctx, "i1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEngineStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/town/worlds/default/engine", r.URL.Path)
		_, err := w.Write([]byte(`{"engine":{"id":"e1","state":"running","currentTime":1000,"lastStepTs":1000,"processedInputNumber":4}}`))
		require.NoError(t, err)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	eng, err := c.EngineStatus(context.Background(), DefaultWorld)
	require.NoError(t, err)
	assert.Equal(t, "e1", string(eng.ID))
	assert.Equal(t, int64(1000), eng.CurrentTime)
	assert.Equal(t, uint64(4), eng.ProcessedInputNumber)
}

func TestWorld(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/town/worlds/w1", r.URL.Path)
		_, err := w.Write([]byte(`{
			"world":{"id":"w1","engineId":"e1","mapId":"m1","status":"running","isDefault":true},
			"engine":{"id":"e1","state":"running","currentTime":1000},
			"players":[{"id":"p1","name":"Alex","human":false,"x":4,"y":2,"velocity":1.5}],
			"conversations":[{"id":"c1","creatorId":"p1","created":500,"numMessages":2,"members":[{"playerId":"p1","status":{"kind":"participating"}}]}]
		}`))
		require.NoError(t, err)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	world, err := c.World(context.Background(), "w1")
	require.NoError(t, err)
	assert.Equal(t, "w1", string(world.World.ID))
	require.Equal(t, 1, len(world.Players))
	assert.Equal(t, "Alex", world.Players[0].Name)
	assert.Equal(t, 4.0, world.Players[0].X)
	require.Equal(t, 1, len(world.Conversations))
	require.Equal(t, 1, len(world.Conversations[0].Members))
	assert.Equal(t, "p1", world.Conversations[0].Members[0].PlayerID)
}

func TestMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/town/conversations/c1/messages", r.URL.Path)
		_, err := w.Write([]byte(`{"messages":[{"id":"m1","authorId":"p1","author":"Alex","text":"hi","created":300}]}`))
		require.NoError(t, err)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	msgs, err := c.Messages(context.Background(), "c1")
	require.NoError(t, err)
	require.Equal(t, 1, len(msgs))
	assert.Equal(t, "Alex", msgs[0].Author)
	assert.Equal(t, "hi", msgs[0].Text)
}

func TestHeartbeat(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/town/worlds/w1/heartbeat", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	require.NoError(t, c.Heartbeat(context.Background(), "w1"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
