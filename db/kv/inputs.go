package kv

import (
	"bytes"
	"context"
	"encoding/binary"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"

	"github.com/aitownlabs/aitown/types"
)

// inputKey builds the composite key for an input: the engine id followed by
// the big-endian input number, so a bucket scan walks one engine's inputs in
// submission order.
func inputKey(engineID types.ID, number uint64) []byte {
	key := make([]byte, 0, len(engineID)+8)
	key = append(key, []byte(engineID)...)
	numBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(numBytes, number)
	return append(key, numBytes...)
}

// Input retrieves an input by its id, resolving the composite key through
// the id index.
func (s *Store) Input(ctx context.Context, id types.ID) (*types.Input, error) {
	_, span := trace.StartSpan(ctx, "TownDB.Input")
	defer span.End()

	var input *types.Input
	err := s.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(inputIDIndicesBucket).Get([]byte(id))
		if key == nil {
			return errors.Wrapf(ErrNotFound, "input %s", id)
		}
		enc := tx.Bucket(inputsBucket).Get(key)
		if enc == nil {
			return errors.Wrapf(ErrNotFound, "input %s", id)
		}
		input = &types.Input{}
		return decode(enc, input)
	})
	return input, err
}

// NextInput returns the input with the given number for the engine, or nil
// when no such input exists yet.
func (s *Store) NextInput(ctx context.Context, engineID types.ID, number uint64) (*types.Input, error) {
	_, span := trace.StartSpan(ctx, "TownDB.NextInput")
	defer span.End()

	var input *types.Input
	err := s.db.View(func(tx *bolt.Tx) error {
		enc := tx.Bucket(inputsBucket).Get(inputKey(engineID, number))
		if enc == nil {
			return nil
		}
		input = &types.Input{}
		return decode(enc, input)
	})
	return input, err
}

// InsertInput allocates the next dense input number for the engine and
// persists the input record, both inside one transaction. Concurrent
// submitters therefore never race on a number.
func (s *Store) InsertInput(ctx context.Context, engineID types.ID, name string, args jsoniter.RawMessage, receivedTs int64) (*types.Input, error) {
	_, span := trace.StartSpan(ctx, "TownDB.InsertInput")
	defer span.End()

	input := &types.Input{
		ID:         types.NewID(),
		EngineID:   engineID,
		Name:       name,
		Args:       args,
		ReceivedTs: receivedTs,
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(inputsBucket)
		last, ok := lastInputNumber(bkt, engineID)
		if ok {
			input.Number = last + 1
		} else {
			input.Number = 1
		}
		enc, err := encode(input)
		if err != nil {
			return err
		}
		key := inputKey(engineID, input.Number)
		if err := bkt.Put(key, enc); err != nil {
			return err
		}
		return tx.Bucket(inputIDIndicesBucket).Put([]byte(input.ID), key)
	})
	if err != nil {
		return nil, err
	}
	return input, nil
}

// lastInputNumber finds the highest allocated input number for an engine by
// seeking just past the engine's key range and stepping back once.
func lastInputNumber(bkt *bolt.Bucket, engineID types.ID) (uint64, bool) {
	prefix := []byte(engineID)
	upper := append(append([]byte{}, prefix...), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
	c := bkt.Cursor()
	k, _ := c.Seek(upper)
	if k == nil {
		k, _ = c.Last()
	} else {
		k, _ = c.Prev()
	}
	if k == nil || !bytes.HasPrefix(k, prefix) || len(k) != len(prefix)+8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(k[len(prefix):]), true
}

func putInput(tx *bolt.Tx, input *types.Input) error {
	enc, err := encode(input)
	if err != nil {
		return err
	}
	return tx.Bucket(inputsBucket).Put(inputKey(input.EngineID, input.Number), enc)
}
