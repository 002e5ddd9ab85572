package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chat-hub/internal/models"
	"chat-hub/internal/store"
)

const (
	// MaxLogSize is the per-room message capacity; older entries are evicted.
	MaxLogSize = 100
	// DefaultHistoryLimit is used when a caller asks for no explicit limit.
	DefaultHistoryLimit = 50
)

var ErrReadMarkFailed = errors.New("failed to mark messages as read")

// MessageRepository owns the bounded, oldest-first message log of each room.
type MessageRepository interface {
	Append(ctx context.Context, roomID string, msg models.Message) error
	Range(ctx context.Context, roomID string, limit int) ([]models.Message, error)
	Latest(ctx context.Context, roomID string) (*models.Message, error)
	MarkRead(ctx context.Context, roomID string, userID string, messageID string) error
	UnreadCount(ctx context.Context, roomID string, userID string) (int, error)
}

// MessageRepo is a store-backed MessageRepository.
type MessageRepo struct {
	store store.Store
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(s store.Store) *MessageRepo {
	return &MessageRepo{store: s}
}

// Append pushes msg at the tail and trims the log to MaxLogSize in one atomic batch.
func (r *MessageRepo) Append(ctx context.Context, roomID string, msg models.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	key := RoomMessagesKey(roomID)
	return r.store.Exec(ctx, func(b store.Batch) {
		b.RPush(key, string(raw))
		b.LTrim(key, -MaxLogSize, -1)
	})
}

// Range returns the newest limit messages ordered oldest to newest.
func (r *MessageRepo) Range(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxLogSize {
		limit = MaxLogSize
	}
	raws, err := r.store.LRange(ctx, RoomMessagesKey(roomID), int64(-limit), -1)
	if err != nil {
		return nil, err
	}
	return decodeMessages(raws)
}

// Latest returns the newest message, or nil for an empty room.
func (r *MessageRepo) Latest(ctx context.Context, roomID string) (*models.Message, error) {
	raw, ok, err := r.store.LIndex(ctx, RoomMessagesKey(roomID), -1)
	if err != nil || !ok {
		return nil, err
	}
	var msg models.Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return &msg, nil
}

// MarkRead adds userID to the read-by set of one message, or of every message
// when messageID is empty. The log is rewritten inside a watched transaction,
// so a concurrent Append forces a retry instead of losing the new entry.
func (r *MessageRepo) MarkRead(ctx context.Context, roomID string, userID string, messageID string) error {
	key := RoomMessagesKey(roomID)
	err := r.store.Watch(ctx, func(tx store.Tx) error {
		raws, err := tx.LRange(ctx, key, 0, -1)
		if err != nil {
			return err
		}

		changed := false
		for i, raw := range raws {
			var msg models.Message
			if err := json.Unmarshal([]byte(raw), &msg); err != nil {
				return fmt.Errorf("decode message: %w", err)
			}
			if messageID != "" && msg.ID != messageID {
				continue
			}
			if !msg.MarkReadBy(userID) {
				continue
			}
			updated, err := json.Marshal(msg)
			if err != nil {
				return fmt.Errorf("encode message: %w", err)
			}
			raws[i] = string(updated)
			changed = true
		}
		if !changed {
			return nil
		}

		return tx.Exec(ctx, func(b store.Batch) {
			b.Del(key)
			b.RPush(key, raws...)
		})
	}, key)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReadMarkFailed, err)
	}
	return nil
}

// UnreadCount scans the whole log; the log is capped at MaxLogSize entries.
func (r *MessageRepo) UnreadCount(ctx context.Context, roomID string, userID string) (int, error) {
	msgs, err := r.all(ctx, roomID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, msg := range msgs {
		if !msg.IsReadBy(userID) {
			count++
		}
	}
	return count, nil
}

func (r *MessageRepo) all(ctx context.Context, roomID string) ([]models.Message, error) {
	raws, err := r.store.LRange(ctx, RoomMessagesKey(roomID), 0, -1)
	if err != nil {
		return nil, err
	}
	return decodeMessages(raws)
}

func decodeMessages(raws []string) ([]models.Message, error) {
	msgs := make([]models.Message, 0, len(raws))
	for _, raw := range raws {
		var msg models.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
