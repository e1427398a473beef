package town

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/aitownlabs/aitown/api/server/structs"
)

// ErrOutOfOrderStatus is returned when a status frame reports a simulated
// window behind or overlapping what the manager already holds.
var ErrOutOfOrderStatus = errors.New("engine status went back in time")

const (
	// The historical clock runs slow below softMinServerBufferMs of
	// lead and fast above softMaxServerBufferMs, so the cursor hovers
	// inside that band behind the engine head.
	softMinServerBufferMs = 100
	softMaxServerBufferMs = 1000

	// maxServerBufferAgeMs bounds how far the cursor may trail the head
	// regardless of rate, forcing a jump after long stalls.
	maxServerBufferAgeMs = 1250

	slowdownRate = 0.8
	speedupRate  = 1.2
)

// Interval is one simulated window reported by a status frame.
type Interval struct {
	StartTs int64
	EndTs   int64
}

// TimeManager maps the client's wall clock onto the engine's simulated
// timeline. Status frames accumulate simulated windows; ServerTime replays
// them slightly behind the engine head so positions interpolated from
// historical buffers always have data to draw on.
//
// All timestamps are simulated milliseconds except ServerTime's argument,
// which is the caller's wall clock in milliseconds.
type TimeManager struct {
	mu        sync.Mutex
	intervals []Interval

	// Cursor state from the previous ServerTime call.
	synced       bool
	prevClientTs int64
	prevServerTs int64
}

// NewTimeManager returns a manager with no observed windows. ServerTime
// reports zero until the first status frame arrives.
func NewTimeManager() *TimeManager {
	return &TimeManager{}
}

// ReceiveStatus folds one status frame into the window list. Frames must
// arrive in engine order: a frame whose window sits behind or overlaps the
// latest one fails with ErrOutOfOrderStatus. Two shapes are absorbed
// silently: a duplicate of the latest frame, which reconnects produce, and
// a frame growing the latest window in place, which follows a zero-width
// priming frame.
func (tm *TimeManager) ReceiveStatus(status *structs.StatusEvent) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	start, end := status.LastStepTs, status.CurrentTime
	if len(tm.intervals) == 0 {
		tm.intervals = append(tm.intervals, Interval{StartTs: start, EndTs: end})
		return nil
	}
	latest := &tm.intervals[len(tm.intervals)-1]
	switch {
	case end == latest.EndTs:
		return nil
	case end < latest.EndTs:
		return errors.Wrapf(ErrOutOfOrderStatus, "window ends at %d, already at %d", end, latest.EndTs)
	case start == latest.StartTs:
		latest.EndTs = end
		return nil
	case start >= latest.EndTs:
		// A gap means missed frames. Keep both windows; ServerTime
		// snaps the cursor across the hole.
		tm.intervals = append(tm.intervals, Interval{StartTs: start, EndTs: end})
		return nil
	default:
		return errors.Wrapf(ErrOutOfOrderStatus, "window [%d, %d] overlaps [%d, %d]", start, end, latest.StartTs, latest.EndTs)
	}
}

// ServerTime advances the historical cursor for the given wall-clock
// reading and returns its position on the simulated timeline. The cursor
// moves at slowdownRate when less than softMinServerBufferMs of simulated
// time remains ahead of it, at speedupRate when more than
// softMaxServerBufferMs does, and in real time otherwise. It never trails
// the engine head by more than maxServerBufferAgeMs, never leaves the
// reported windows, and never runs backwards.
func (tm *TimeManager) ServerTime(clientNow int64) int64 {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if len(tm.intervals) == 0 {
		return 0
	}
	prevClient, prevServer := tm.prevClientTs, tm.prevServerTs
	if !tm.synced {
		prevClient = clientNow
		prevServer = tm.intervals[0].StartTs
	}
	lastServer := tm.intervals[len(tm.intervals)-1].EndTs

	rate := 1.0
	switch buffer := lastServer - prevServer; {
	case buffer < softMinServerBufferMs:
		rate = slowdownRate
	case buffer > softMaxServerBufferMs:
		rate = speedupRate
	}
	serverTs := prevServer + int64(float64(clientNow-prevClient)*rate)
	if min := lastServer - maxServerBufferAgeMs; serverTs < min {
		serverTs = min
	}

	chosen := len(tm.intervals) - 1
	for i := range tm.intervals {
		iv := tm.intervals[i]
		if serverTs < iv.StartTs {
			serverTs = iv.StartTs
			chosen = i
			break
		}
		if serverTs <= iv.EndTs {
			chosen = i
			break
		}
	}
	if serverTs > lastServer {
		serverTs = lastServer
	}

	// Drop windows the cursor has passed, keeping the enclosing one and
	// its predecessor for interpolation across the boundary.
	if chosen > 1 {
		tm.intervals = append([]Interval(nil), tm.intervals[chosen-1:]...)
	}

	tm.synced = true
	tm.prevClientTs = clientNow
	tm.prevServerTs = serverTs
	return serverTs
}

// BufferHealth reports how much simulated time remains between the cursor
// and the engine head, in milliseconds. Zero before any frame arrives.
func (tm *TimeManager) BufferHealth() int64 {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if len(tm.intervals) == 0 {
		return 0
	}
	prevServer := tm.prevServerTs
	if !tm.synced {
		prevServer = tm.intervals[0].StartTs
	}
	return tm.intervals[len(tm.intervals)-1].EndTs - prevServer
}
