package kv

import (
	"context"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"

	"github.com/aitownlabs/aitown/types"
)

// World retrieves a world document by id.
func (s *Store) World(ctx context.Context, id types.ID) (*types.World, error) {
	_, span := trace.StartSpan(ctx, "TownDB.World")
	defer span.End()

	var world *types.World
	err := s.db.View(func(tx *bolt.Tx) error {
		enc := tx.Bucket(worldsBucket).Get([]byte(id))
		if enc == nil {
			return errors.Wrapf(ErrNotFound, "world %s", id)
		}
		world = &types.World{}
		return decode(enc, world)
	})
	return world, err
}

// Worlds retrieves every world document.
func (s *Store) Worlds(ctx context.Context) ([]*types.World, error) {
	_, span := trace.StartSpan(ctx, "TownDB.Worlds")
	defer span.End()

	var worlds []*types.World
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(worldsBucket).ForEach(func(_, enc []byte) error {
			world := &types.World{}
			if err := decode(enc, world); err != nil {
				return err
			}
			worlds = append(worlds, world)
			return nil
		})
	})
	return worlds, err
}

// DefaultWorld returns the world flagged as default, or nil when none has
// been created yet.
func (s *Store) DefaultWorld(ctx context.Context) (*types.World, error) {
	ctx, span := trace.StartSpan(ctx, "TownDB.DefaultWorld")
	defer span.End()

	worlds, err := s.Worlds(ctx)
	if err != nil {
		return nil, err
	}
	for _, w := range worlds {
		if w.IsDefault {
			return w, nil
		}
	}
	return nil, nil
}

// SaveWorld upserts a world document.
func (s *Store) SaveWorld(ctx context.Context, world *types.World) error {
	_, span := trace.StartSpan(ctx, "TownDB.SaveWorld")
	defer span.End()

	enc, err := encode(world)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(worldsBucket).Put([]byte(world.ID), enc)
	})
}

// WorldMap retrieves a world's tile map by id. Maps are immutable once
// created, so decoded maps are served from an LRU cache.
func (s *Store) WorldMap(ctx context.Context, id types.ID) (*types.WorldMap, error) {
	_, span := trace.StartSpan(ctx, "TownDB.WorldMap")
	defer span.End()

	if cached, ok := s.mapCache.Get(id); ok {
		return cached.(*types.WorldMap), nil
	}
	var m *types.WorldMap
	err := s.db.View(func(tx *bolt.Tx) error {
		enc := tx.Bucket(mapsBucket).Get([]byte(id))
		if enc == nil {
			return errors.Wrapf(ErrNotFound, "map %s", id)
		}
		m = &types.WorldMap{}
		return decode(enc, m)
	})
	if err != nil {
		return nil, err
	}
	s.mapCache.Add(id, m)
	return m, nil
}

// SaveWorldMap upserts a world's tile map.
func (s *Store) SaveWorldMap(ctx context.Context, m *types.WorldMap) error {
	_, span := trace.StartSpan(ctx, "TownDB.SaveWorldMap")
	defer span.End()

	enc, err := encode(m)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(mapsBucket).Put([]byte(m.ID), enc)
	})
	if err != nil {
		return err
	}
	s.mapCache.Add(m.ID, m)
	return nil
}
