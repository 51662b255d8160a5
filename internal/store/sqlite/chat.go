package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/dkeye/Collab/internal/domain"
)

const (
	defaultHistory = 50
	maxHistory     = 200
)

// SaveMessage implements app.ChatStore. Ids are ULIDs so they sort by time.
func (s *Store) SaveMessage(ctx context.Context, msg domain.ChatMessage) (domain.ChatMessage, error) {
	msg.Content = strings.TrimSpace(msg.Content)
	if msg.Content == "" || msg.Room == "" || msg.SenderID == "" {
		return domain.ChatMessage{}, fmt.Errorf("save message: %w", domain.ErrBadPayload)
	}
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	msg.CreatedAt = msg.CreatedAt.UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, room, sender_id, sender_name, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, string(msg.Room), string(msg.SenderID), msg.SenderName, msg.Content, formatTime(msg.CreatedAt),
	)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("save message in %s: %w", msg.Room, err)
	}
	return msg, nil
}

// History implements app.ChatStore: the newest limit messages of room,
// returned oldest first.
func (s *Store) History(ctx context.Context, room domain.RoomName, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = defaultHistory
	}
	if limit > maxHistory {
		limit = maxHistory
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room, sender_id, sender_name, content, created_at
		FROM chat_messages WHERE room = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, string(room), limit)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", room, err)
	}
	defer rows.Close()

	out := make([]domain.ChatMessage, 0, limit)
	for rows.Next() {
		var (
			m       domain.ChatMessage
			created string
		)
		if err := rows.Scan(&m.ID, &m.Room, &m.SenderID, &m.SenderName, &m.Content, &created); err != nil {
			return nil, err
		}
		if m.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
