package kv

import (
	"context"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"

	"github.com/aitownlabs/aitown/types"
)

// Engine retrieves an engine document by id.
func (s *Store) Engine(ctx context.Context, id types.ID) (*types.Engine, error) {
	_, span := trace.StartSpan(ctx, "TownDB.Engine")
	defer span.End()

	var engine *types.Engine
	err := s.db.View(func(tx *bolt.Tx) error {
		enc := tx.Bucket(enginesBucket).Get([]byte(id))
		if enc == nil {
			return errors.Wrapf(ErrNotFound, "engine %s", id)
		}
		engine = &types.Engine{}
		return decode(enc, engine)
	})
	return engine, err
}

// Engines retrieves every engine document. Used to rehydrate the scheduler
// after a restart.
func (s *Store) Engines(ctx context.Context) ([]*types.Engine, error) {
	_, span := trace.StartSpan(ctx, "TownDB.Engines")
	defer span.End()

	var engines []*types.Engine
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(enginesBucket).ForEach(func(_, enc []byte) error {
			engine := &types.Engine{}
			if err := decode(enc, engine); err != nil {
				return err
			}
			engines = append(engines, engine)
			return nil
		})
	})
	return engines, err
}

// SaveEngine upserts an engine document.
func (s *Store) SaveEngine(ctx context.Context, engine *types.Engine) error {
	_, span := trace.StartSpan(ctx, "TownDB.SaveEngine")
	defer span.End()

	return s.db.Update(func(tx *bolt.Tx) error {
		return putEngine(tx, engine)
	})
}

func putEngine(tx *bolt.Tx, engine *types.Engine) error {
	enc, err := encode(engine)
	if err != nil {
		return err
	}
	return tx.Bucket(enginesBucket).Put([]byte(engine.ID), enc)
}
