package rpc

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/aitownlabs/aitown/api/server/structs"
	"github.com/aitownlabs/aitown/engine"
	"github.com/aitownlabs/aitown/network/httputil"
)

// StreamEvents subscribes the caller to the world's engine status feed over
// server-sent events. The stream opens with the engine's committed cursor so
// a fresh subscriber holds an interval before the next step lands.
func (s *Server) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.HandleError(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()
	world, errJson := s.resolveWorld(ctx, mux.Vars(r)["world"])
	if errJson != nil {
		httputil.WriteError(w, errJson)
		return
	}
	eng, err := s.cfg.database.Engine(ctx, world.EngineID)
	if err != nil {
		httputil.HandleError(w, "Could not query engine: "+err.Error(), http.StatusInternalServerError)
		return
	}

	statusCh := make(chan *engine.StatusEvent, 8)
	sub := s.cfg.notifier.StatusFeed().Subscribe(statusCh)
	defer sub.Unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Connection", "keep-alive")

	send(w, flusher, structs.StatusTopic, &structs.StatusEvent{
		EngineID:             string(eng.ID),
		GenerationNumber:     eng.GenerationNumber,
		CurrentTime:          eng.CurrentTime,
		LastStepTs:           eng.LastStepTs,
		ProcessedInputNumber: eng.ProcessedInputNumber,
	})

	for {
		select {
		case ev := <-statusCh:
			if ev.EngineID != world.EngineID {
				continue
			}
			send(w, flusher, structs.StatusTopic, statusFrame(ev))
		case <-sub.Err():
			return
		case <-ctx.Done():
			return
		}
	}
}

func statusFrame(ev *engine.StatusEvent) *structs.StatusEvent {
	return &structs.StatusEvent{
		EngineID:             string(ev.EngineID),
		GenerationNumber:     ev.GenerationNumber,
		CurrentTime:          ev.CurrentTime,
		LastStepTs:           ev.LastStepTs,
		ProcessedInputNumber: ev.ProcessedInputNumber,
	}
}

func send(w http.ResponseWriter, flusher http.Flusher, name string, data interface{}) {
	j, err := json.Marshal(data)
	if err != nil {
		write(w, flusher, "Could not marshal event to JSON: "+err.Error())
		return
	}
	write(w, flusher, "event: %s\ndata: %s\n\n", name, string(j))
}

func write(w http.ResponseWriter, flusher http.Flusher, format string, a ...interface{}) {
	if _, err := fmt.Fprintf(w, format, a...); err != nil {
		log.WithError(err).Error("Could not write to response writer")
	}
	flusher.Flush()
}
