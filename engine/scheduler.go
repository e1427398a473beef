package engine

import (
	"context"
	"sync"
	"time"

	"github.com/aitownlabs/aitown/container/minheap"
	"github.com/aitownlabs/aitown/types"
)

// schedulerPollInterval bounds how long the loop sleeps with an empty heap,
// so externally persisted tasks are never missed for long.
const schedulerPollInterval = time.Minute

// scheduler drives persisted step tasks with in-process timers. The heap may
// hold superseded entries for an engine; they fire harmlessly into the
// generation fence, so arming never needs to cancel.
type scheduler struct {
	mu   sync.Mutex
	heap *minheap.Heap[*types.ScheduledTask]
	wake chan struct{}
	now  Now
}

func newScheduler(now Now) *scheduler {
	return &scheduler{
		heap: minheap.New(func(a, b *types.ScheduledTask) bool {
			return a.RunAt < b.RunAt
		}),
		wake: make(chan struct{}, 1),
		now:  now,
	}
}

// arm queues a task and wakes the loop so a nearer deadline takes effect
// immediately.
func (s *scheduler) arm(task *types.ScheduledTask) {
	s.mu.Lock()
	s.heap.Push(task)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// loop pops due tasks and hands them to run, sleeping until the next
// deadline in between. Tasks run one at a time; a slow step delays later
// engines rather than racing them.
func (s *scheduler) loop(ctx context.Context, run func(ctx context.Context, engineID types.ID, generation uint64) error) {
	for {
		nowMs := s.now().UnixMilli()
		wait := schedulerPollInterval

		s.mu.Lock()
		var due []*types.ScheduledTask
		for s.heap.Len() > 0 {
			next, _ := s.heap.Peek()
			if next.RunAt > nowMs {
				wait = time.Duration(next.RunAt-nowMs) * time.Millisecond
				break
			}
			task, _ := s.heap.Pop()
			due = append(due, task)
		}
		s.mu.Unlock()

		for _, task := range due {
			if ctx.Err() != nil {
				return
			}
			if err := run(ctx, task.EngineID, task.Generation); err != nil {
				log.WithField("engine", task.EngineID).WithError(err).Error("Could not run scheduled step")
				// Leave the persisted task in place and retry shortly;
				// a successful commit will replace it.
				retry := *task
				retry.RunAt = nowMs + int64(time.Second/time.Millisecond)
				s.arm(&retry)
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}
