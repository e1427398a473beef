package kv

import (
	"context"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"

	"github.com/aitownlabs/aitown/types"
)

// CommitStep atomically persists the outcome of one engine step: the
// advanced engine document, the processed inputs with their return values,
// every modified or deleted game document, and the engine's next
// self-scheduled task. Either everything commits or nothing does, which is
// what makes a crashed step safe to re-run.
//
// prev carries the generation and step timestamp the step loaded; when the
// stored engine no longer matches, another writer won the race and the
// commit fails with ErrStoreConflict.
func (s *Store) CommitStep(ctx context.Context, prev, engine *types.Engine, inputs []*types.Input, delta *types.WorldDelta, next *types.ScheduledTask) error {
	_, span := trace.StartSpan(ctx, "TownDB.CommitStep")
	defer span.End()

	return s.db.Update(func(tx *bolt.Tx) error {
		enc := tx.Bucket(enginesBucket).Get([]byte(engine.ID))
		if enc == nil {
			return errors.Wrapf(ErrNotFound, "engine %s", engine.ID)
		}
		stored := &types.Engine{}
		if err := decode(enc, stored); err != nil {
			return err
		}
		if stored.GenerationNumber != prev.GenerationNumber || stored.LastStepTs != prev.LastStepTs {
			return errors.Wrapf(ErrStoreConflict, "engine %s", engine.ID)
		}
		if err := putEngine(tx, engine); err != nil {
			return err
		}
		for _, input := range inputs {
			if err := putInput(tx, input); err != nil {
				return err
			}
		}
		if err := applyDelta(tx, delta); err != nil {
			return err
		}
		tasks := tx.Bucket(tasksBucket)
		if next == nil {
			return tasks.Delete([]byte(engine.ID))
		}
		enc, err := encode(next)
		if err != nil {
			return err
		}
		return tasks.Put([]byte(next.EngineID), enc)
	})
}

func applyDelta(tx *bolt.Tx, delta *types.WorldDelta) error {
	if delta.Empty() {
		return nil
	}
	for _, p := range delta.Players {
		if err := putDoc(tx, playersBucket, p.ID, p); err != nil {
			return err
		}
	}
	for _, l := range delta.Locations {
		if err := putDoc(tx, locationsBucket, l.GetID(), l); err != nil {
			return err
		}
	}
	for _, c := range delta.Conversations {
		if err := putDoc(tx, conversationsBucket, c.ID, c); err != nil {
			return err
		}
	}
	for _, m := range delta.Members {
		if err := putDoc(tx, membersBucket, m.ID, m); err != nil {
			return err
		}
	}
	for _, m := range delta.Messages {
		if err := putDoc(tx, messagesBucket, m.ID, m); err != nil {
			return err
		}
	}
	for _, a := range delta.Agents {
		if err := putDoc(tx, agentsBucket, a.ID, a); err != nil {
			return err
		}
	}
	deletions := []struct {
		bucket []byte
		ids    []types.ID
	}{
		{playersBucket, delta.DeletedPlayers},
		{locationsBucket, delta.DeletedLocations},
		{conversationsBucket, delta.DeletedConversations},
		{membersBucket, delta.DeletedMembers},
		{messagesBucket, delta.DeletedMessages},
		{agentsBucket, delta.DeletedAgents},
	}
	for _, d := range deletions {
		bkt := tx.Bucket(d.bucket)
		for _, id := range d.ids {
			if err := bkt.Delete([]byte(id)); err != nil {
				return err
			}
		}
	}
	return nil
}

func putDoc(tx *bolt.Tx, bucket []byte, id types.ID, doc interface{}) error {
	enc, err := encode(doc)
	if err != nil {
		return err
	}
	return tx.Bucket(bucket).Put([]byte(id), enc)
}
