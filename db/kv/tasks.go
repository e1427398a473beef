package kv

import (
	"context"

	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"

	"github.com/aitownlabs/aitown/types"
)

// SaveTask upserts an engine's pending self-scheduled step. An engine has at
// most one outstanding task, so the engine id is the key and a save replaces
// whatever was pending.
func (s *Store) SaveTask(ctx context.Context, task *types.ScheduledTask) error {
	_, span := trace.StartSpan(ctx, "TownDB.SaveTask")
	defer span.End()

	enc, err := encode(task)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(tasksBucket).Put([]byte(task.EngineID), enc)
	})
}

// DeleteTask removes an engine's pending task, if any.
func (s *Store) DeleteTask(ctx context.Context, engineID types.ID) error {
	_, span := trace.StartSpan(ctx, "TownDB.DeleteTask")
	defer span.End()

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(tasksBucket).Delete([]byte(engineID))
	})
}

// Tasks retrieves every pending task. Used to rehydrate the scheduler after
// a restart.
func (s *Store) Tasks(ctx context.Context) ([]*types.ScheduledTask, error) {
	_, span := trace.StartSpan(ctx, "TownDB.Tasks")
	defer span.End()

	var tasks []*types.ScheduledTask
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(tasksBucket).ForEach(func(_, enc []byte) error {
			t := &types.ScheduledTask{}
			if err := decode(enc, t); err != nil {
				return err
			}
			tasks = append(tasks, t)
			return nil
		})
	})
	return tasks, err
}
