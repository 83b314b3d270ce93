package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/shopclaw/internal/store"
)

// MessageStore implements store.MessageStore on SQLite.
type MessageStore struct {
	d *DB
}

// RecordInbound persists one admitted update. The unique index on
// update_id makes the insert idempotent under replays.
func (s *MessageStore) RecordInbound(ctx context.Context, msg store.InboundMessage) error {
	_, err := s.d.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO inbound_messages (update_id, conversation_id, sender_id, text, timestamp, processed, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)`,
		msg.UpdateID, msg.ConversationID, msg.SenderID, msg.Text,
		msg.Timestamp.Unix(), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record inbound: %w", err)
	}
	return nil
}

// RecentMessages returns the conversation's latest messages, oldest
// first, so the caller can feed them to the model in reading order.
func (s *MessageStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]*store.InboundMessage, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.d.db.QueryContext(ctx, `
		SELECT id, update_id, conversation_id, sender_id, text, timestamp, processed, created_at
		FROM (
			SELECT * FROM inbound_messages
			WHERE conversation_id = ?
			ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []*store.InboundMessage
	for rows.Next() {
		var (
			m         store.InboundMessage
			ts        int64
			processed int
			createdAt string
		)
		if err := rows.Scan(&m.ID, &m.UpdateID, &m.ConversationID, &m.SenderID, &m.Text, &ts, &processed, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Timestamp = time.Unix(ts, 0).UTC()
		m.Processed = processed != 0
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			m.CreatedAt = t
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// MarkProcessed flags every message of the conversation as handled.
func (s *MessageStore) MarkProcessed(ctx context.Context, conversationID string) error {
	_, err := s.d.db.ExecContext(ctx,
		`UPDATE inbound_messages SET processed = 1 WHERE conversation_id = ? AND processed = 0`,
		conversationID)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

// PruneProcessed deletes processed messages created before the cutoff.
func (s *MessageStore) PruneProcessed(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.d.db.ExecContext(ctx,
		`DELETE FROM inbound_messages WHERE processed = 1 AND created_at < ?`,
		before.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("prune messages: %w", err)
	}
	return res.RowsAffected()
}
