package kv

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"

	"github.com/aitownlabs/aitown/types"
)

// Conversation retrieves a conversation document by id, finished or not.
func (s *Store) Conversation(ctx context.Context, id types.ID) (*types.Conversation, error) {
	_, span := trace.StartSpan(ctx, "TownDB.Conversation")
	defer span.End()

	var conv *types.Conversation
	err := s.db.View(func(tx *bolt.Tx) error {
		enc := tx.Bucket(conversationsBucket).Get([]byte(id))
		if enc == nil {
			return errors.Wrapf(ErrNotFound, "conversation %s", id)
		}
		conv = &types.Conversation{}
		return decode(enc, conv)
	})
	return conv, err
}

// ConversationsInWorld retrieves a world's unfinished conversations.
// Finished transcripts stay on disk and are reachable by id.
func (s *Store) ConversationsInWorld(ctx context.Context, worldID types.ID) ([]*types.Conversation, error) {
	_, span := trace.StartSpan(ctx, "TownDB.ConversationsInWorld")
	defer span.End()

	var convs []*types.Conversation
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(conversationsBucket).ForEach(func(_, enc []byte) error {
			c := &types.Conversation{}
			if err := decode(enc, c); err != nil {
				return err
			}
			if c.WorldID == worldID && c.Finished == nil {
				convs = append(convs, c)
			}
			return nil
		})
	})
	return convs, err
}

// MembersInWorld retrieves the membership rows of a world's unfinished
// conversations.
func (s *Store) MembersInWorld(ctx context.Context, worldID types.ID) ([]*types.ConversationMember, error) {
	_, span := trace.StartSpan(ctx, "TownDB.MembersInWorld")
	defer span.End()

	var members []*types.ConversationMember
	err := s.db.View(func(tx *bolt.Tx) error {
		active := make(map[types.ID]bool)
		err := tx.Bucket(conversationsBucket).ForEach(func(_, enc []byte) error {
			c := &types.Conversation{}
			if err := decode(enc, c); err != nil {
				return err
			}
			if c.WorldID == worldID && c.Finished == nil {
				active[c.ID] = true
			}
			return nil
		})
		if err != nil {
			return err
		}
		return tx.Bucket(membersBucket).ForEach(func(_, enc []byte) error {
			m := &types.ConversationMember{}
			if err := decode(enc, m); err != nil {
				return err
			}
			if active[m.ConversationID] {
				members = append(members, m)
			}
			return nil
		})
	})
	return members, err
}

// MessagesInConversation retrieves a conversation's messages in the order
// they were written.
func (s *Store) MessagesInConversation(ctx context.Context, conversationID types.ID) ([]*types.Message, error) {
	_, span := trace.StartSpan(ctx, "TownDB.MessagesInConversation")
	defer span.End()

	var msgs []*types.Message
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(messagesBucket).ForEach(func(_, enc []byte) error {
			m := &types.Message{}
			if err := decode(enc, m); err != nil {
				return err
			}
			if m.ConversationID == conversationID {
				msgs = append(msgs, m)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].Created != msgs[j].Created {
			return msgs[i].Created < msgs[j].Created
		}
		return msgs[i].ID < msgs[j].ID
	})
	return msgs, nil
}
