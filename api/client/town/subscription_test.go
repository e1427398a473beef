package town

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aitownlabs/aitown/api/server/structs"
	"github.com/aitownlabs/aitown/testing/assert"
	"github.com/aitownlabs/aitown/testing/require"
)

// eventServer streams the given SSE frames and then holds the connection
// open until the client disconnects.
func eventServer(t *testing.T, wantPath string, frames ...string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, wantPath, r.URL.Path)
		flusher, ok := w.(http.Flusher)
		require.Equal(t, true, ok)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range frames {
			_, err := fmt.Fprint(w, f)
			require.NoError(t, err)
			flusher.Flush()
		}
		<-r.Context().Done()
	}))
}

func sseFrame(name, data string) string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", name, data)
}

func recvStatus(t *testing.T, sub *StatusSubscription) *structs.StatusEvent {
	t.Helper()
	select {
	case ev := <-sub.Events():
		return ev
	case err := <-sub.Errors():
		t.Fatalf("stream failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for status event")
	}
	return nil
}

func TestSubscribeStatus(t *testing.T) {
	srv := eventServer(t, "/v1/town/worlds/w1/events",
		sseFrame("status", `{"engineId":"e1","generationNumber":1,"currentTime":1000,"lastStepTs":1000,"processedInputNumber":0}`),
		sseFrame("typing", `{"ignored":true}`),
		sseFrame("status", `{"engineId":"e1","generationNumber":1,"currentTime":2000,"lastStepTs":1000,"processedInputNumber":2}`),
	)
	defer srv.Close()

	c := testClient(t, srv)
	sub, err := c.SubscribeStatus("w1")
	require.NoError(t, err)
	defer sub.Close()

	primed := recvStatus(t, sub)
	assert.Equal(t, "e1", primed.EngineID)
	assert.Equal(t, int64(1000), primed.CurrentTime)
	assert.Equal(t, int64(1000), primed.LastStepTs)

	// The typing frame is not a status frame and never surfaces.
	stepped := recvStatus(t, sub)
	assert.Equal(t, int64(2000), stepped.CurrentTime)
	assert.Equal(t, uint64(2), stepped.ProcessedInputNumber)

	// Feeding the frames straight into a TimeManager yields the step's
	// simulated window.
	tm := NewTimeManager()
	require.NoError(t, tm.ReceiveStatus(primed))
	require.NoError(t, tm.ReceiveStatus(stepped))
	require.Equal(t, 1, len(tm.intervals))
	assert.Equal(t, Interval{StartTs: 1000, EndTs: 2000}, tm.intervals[0])
}

func TestSubscribeStatus_DecodeFailure(t *testing.T) {
	srv := eventServer(t, "/v1/town/worlds/w1/events",
		sseFrame("status", `{not json`),
	)
	defer srv.Close()

	c := testClient(t, srv)
	sub, err := c.SubscribeStatus("w1")
	require.NoError(t, err)
	defer sub.Close()

	select {
	case err := <-sub.Errors():
		require.ErrorContains(t, "could not decode status event", err)
	case ev := <-sub.Events():
		t.Fatalf("expected decode failure, got event %+v", ev)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for stream failure")
	}
}

func TestStatusSubscription_CloseIsIdempotent(t *testing.T) {
	srv := eventServer(t, "/v1/town/worlds/w1/events",
		sseFrame("status", `{"engineId":"e1","generationNumber":1,"currentTime":1000,"lastStepTs":1000,"processedInputNumber":0}`),
	)
	defer srv.Close()

	c := testClient(t, srv)
	sub, err := c.SubscribeStatus("w1")
	require.NoError(t, err)
	recvStatus(t, sub)

	sub.Close()
	sub.Close()
}
