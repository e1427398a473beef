package kv

import (
	"context"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"

	"github.com/aitownlabs/aitown/types"
)

// PlayersInWorld retrieves every player document belonging to a world, in
// id order.
func (s *Store) PlayersInWorld(ctx context.Context, worldID types.ID) ([]*types.Player, error) {
	_, span := trace.StartSpan(ctx, "TownDB.PlayersInWorld")
	defer span.End()

	var players []*types.Player
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(playersBucket).ForEach(func(_, enc []byte) error {
			p := &types.Player{}
			if err := decode(enc, p); err != nil {
				return err
			}
			if p.WorldID == worldID {
				players = append(players, p)
			}
			return nil
		})
	})
	return players, err
}

// LocationsInWorld retrieves the location documents of a world's active
// players, resolved through each player's location reference. Inactive
// players have no location; theirs is deleted when they leave.
func (s *Store) LocationsInWorld(ctx context.Context, worldID types.ID) ([]*types.Location, error) {
	_, span := trace.StartSpan(ctx, "TownDB.LocationsInWorld")
	defer span.End()

	var locations []*types.Location
	err := s.db.View(func(tx *bolt.Tx) error {
		locBkt := tx.Bucket(locationsBucket)
		return tx.Bucket(playersBucket).ForEach(func(_, enc []byte) error {
			p := &types.Player{}
			if err := decode(enc, p); err != nil {
				return err
			}
			if p.WorldID != worldID || !p.Active || p.LocationID == "" {
				return nil
			}
			locEnc := locBkt.Get([]byte(p.LocationID))
			if locEnc == nil {
				return errors.Wrapf(ErrNotFound, "location %s for player %s", p.LocationID, p.ID)
			}
			loc := &types.Location{}
			if err := decode(locEnc, loc); err != nil {
				return err
			}
			locations = append(locations, loc)
			return nil
		})
	})
	return locations, err
}
