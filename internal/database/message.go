package database

import (
	"context"
	"fmt"

	"github.com/chatterbox-server/chatterbox/internal/database/models"
)

// messageRepo implements MessageRepository.
type messageRepo struct {
	db *DB
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(db *DB) MessageRepository {
	return &messageRepo{db: db}
}

// Save appends a message to the transcript.
func (r *messageRepo) Save(ctx context.Context, msg *models.Message) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_history (sender, receiver, message, timestamp)
		 VALUES (?, ?, ?, datetime('now'))`,
		msg.Sender, msg.Receiver, msg.Message,
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	msg.ID = id
	return nil
}

// History returns up to limit messages exchanged between user1 and user2,
// oldest first. The newest messages win when the conversation exceeds the
// limit.
func (r *messageRepo) History(ctx context.Context, user1, user2 string, limit int) ([]models.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, sender, receiver, message, timestamp FROM (
		   SELECT id, sender, receiver, message, timestamp
		   FROM chat_history
		   WHERE (sender = ? AND receiver = ?) OR (sender = ? AND receiver = ?)
		   ORDER BY timestamp DESC, id DESC
		   LIMIT ?
		 ) ORDER BY timestamp ASC, id ASC`,
		user1, user2, user2, user1, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying chat history: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.Sender, &m.Receiver, &m.Message, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
