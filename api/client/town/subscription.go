package town

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/pkg/errors"
	"github.com/r3labs/sse"

	"github.com/aitownlabs/aitown/api/server/structs"
)

// statusBufferSize absorbs bursts of frames while the consumer catches up.
const statusBufferSize = 16

// StatusSubscription delivers a world's engine status frames, decoded from
// the node's server-sent events stream. Frames arrive on Events in engine
// order; a decoding failure ends the stream and lands on Errors.
type StatusSubscription struct {
	events chan *structs.StatusEvent
	errs   chan error
	raw    chan *sse.Event
	stream *sse.Client
	done   chan struct{}
	once   sync.Once
}

// SubscribeStatus opens the world's events stream. The first frame carries
// the engine's committed cursor, so feeding the subscription straight into
// a TimeManager seeds it before the next step lands. Callers must Close the
// subscription when done with it.
func (c *Client) SubscribeStatus(worldID string) (*StatusSubscription, error) {
	u := c.BaseURL().ResolveReference(&url.URL{Path: fmt.Sprintf(eventsPath, worldID)})
	sub := &StatusSubscription{
		events: make(chan *structs.StatusEvent, statusBufferSize),
		errs:   make(chan error, 1),
		raw:    make(chan *sse.Event, statusBufferSize),
		stream: sse.NewClient(u.String()),
		done:   make(chan struct{}),
	}
	if err := sub.stream.SubscribeChanRaw(sub.raw); err != nil {
		return nil, errors.Wrap(err, "could not subscribe to event stream")
	}
	go sub.forward()
	return sub, nil
}

// Events returns the channel of decoded status frames.
func (s *StatusSubscription) Events() <-chan *structs.StatusEvent {
	return s.events
}

// Errors returns the channel a stream failure is reported on.
func (s *StatusSubscription) Errors() <-chan error {
	return s.errs
}

// Close tears down the stream. Safe to call more than once.
func (s *StatusSubscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.stream.Unsubscribe(s.raw)
	})
}

func (s *StatusSubscription) forward() {
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.raw:
			if !ok {
				return
			}
			if ev == nil || len(ev.Data) == 0 {
				continue
			}
			if string(ev.Event) != structs.StatusTopic {
				continue
			}
			status := &structs.StatusEvent{}
			if err := json.Unmarshal(ev.Data, status); err != nil {
				select {
				case s.errs <- errors.Wrap(err, "could not decode status event"):
				default:
				}
				return
			}
			select {
			case s.events <- status:
			case <-s.done:
				return
			}
		}
	}
}
