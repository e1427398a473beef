package kv

import (
	"bytes"
	"context"

	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"

	"github.com/aitownlabs/aitown/types"
)

// AgentsInWorld retrieves every agent document belonging to a world.
func (s *Store) AgentsInWorld(ctx context.Context, worldID types.ID) ([]*types.Agent, error) {
	_, span := trace.StartSpan(ctx, "TownDB.AgentsInWorld")
	defer span.End()

	var agents []*types.Agent
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(agentsBucket).ForEach(func(_, enc []byte) error {
			a := &types.Agent{}
			if err := decode(enc, a); err != nil {
				return err
			}
			if a.WorldID == worldID {
				agents = append(agents, a)
			}
			return nil
		})
	})
	return agents, err
}

// memoryKey prefixes a memory with its owning player so that one player's
// memories occupy a contiguous key range.
func memoryKey(playerID, id types.ID) []byte {
	key := make([]byte, 0, len(playerID)+1+len(id))
	key = append(key, []byte(playerID)...)
	key = append(key, '/')
	return append(key, []byte(id)...)
}

// SaveMemory upserts an agent memory document.
func (s *Store) SaveMemory(ctx context.Context, memory *types.Memory) error {
	_, span := trace.StartSpan(ctx, "TownDB.SaveMemory")
	defer span.End()

	enc, err := encode(memory)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(memoriesBucket).Put(memoryKey(memory.PlayerID, memory.ID), enc)
	})
}

// MemoriesForPlayer retrieves every memory owned by a player via a prefix
// scan.
func (s *Store) MemoriesForPlayer(ctx context.Context, playerID types.ID) ([]*types.Memory, error) {
	_, span := trace.StartSpan(ctx, "TownDB.MemoriesForPlayer")
	defer span.End()

	prefix := append([]byte(playerID), '/')
	var memories []*types.Memory
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(memoriesBucket).Cursor()
		for k, enc := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, enc = c.Next() {
			m := &types.Memory{}
			if err := decode(enc, m); err != nil {
				return err
			}
			memories = append(memories, m)
		}
		return nil
	})
	return memories, err
}
