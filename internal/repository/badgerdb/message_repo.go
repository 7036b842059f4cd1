package badgerdb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/dom/league-chat/internal/domain"
)

type messageRepository struct {
	db *badger.DB
}

func NewMessageRepository(db *badger.DB) *messageRepository {
	return &messageRepository{db: db}
}

// conversationPrefix is identical for (a, b) and (b, a). Each username is
// length-prefixed, so no other pair's keys can share or extend the prefix
// whatever bytes the usernames contain.
func conversationPrefix(userA, userB string) []byte {
	if userB < userA {
		userA, userB = userB, userA
	}
	return []byte(fmt.Sprintf("msg\x00%08x%s%08x%s\x00", len(userA), userA, len(userB), userB))
}

// messageKey is conversationPrefix + "{timestamp:019d}\x00{id}". Zero padding
// keeps lexicographic and chronological order aligned; the time-ordered id
// breaks ties between messages created in the same millisecond.
func messageKey(message *domain.Message) []byte {
	prefix := conversationPrefix(message.SenderUsername, message.RecipientUsername)
	return append(prefix, []byte(fmt.Sprintf("%019d\x00%s", message.Timestamp, message.ID))...)
}

func (r *messageRepository) Create(ctx context.Context, message *domain.Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message), data)
	})
}

func (r *messageRepository) GetConversation(ctx context.Context, userA, userB string, limit, offset int) ([]*domain.Message, error) {
	messages := []*domain.Message{}
	prefix := conversationPrefix(userA, userB)

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// In reverse mode Seek lands on the last key <= the seek key.
		seek := append(append([]byte{}, prefix...), 0xFF)
		skipped := 0
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if skipped < offset {
				skipped++
				continue
			}
			if len(messages) >= limit {
				break
			}

			var message domain.Message
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &message)
			})
			if err != nil {
				return err
			}
			messages = append(messages, &message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}
