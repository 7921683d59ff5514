package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mvalles/asistente/llm"
)

// PostgresStore persists conversation history in the conversation_messages
// table so sessions survive process restarts.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Messages(ctx context.Context, sessionID string) ([]llm.Message, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT role, content
        FROM conversation_messages
        WHERE session_id = $1
        ORDER BY id
    `, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query conversation messages: %w", err)
	}
	defer rows.Close()

	var messages []llm.Message
	for rows.Next() {
		var msg llm.Message
		if err := rows.Scan(&msg.Role, &msg.Content); err != nil {
			return nil, fmt.Errorf("scan conversation message: %w", err)
		}
		messages = append(messages, msg)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return messages, nil
}

func (s *PostgresStore) Append(ctx context.Context, sessionID string, messages ...llm.Message) error {
	for _, msg := range messages {
		if _, err := s.pool.Exec(ctx, `
            INSERT INTO conversation_messages (session_id, role, content)
            VALUES ($1, $2, $3)
        `, sessionID, msg.Role, msg.Content); err != nil {
			return fmt.Errorf("insert conversation message: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, sessionID string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM conversation_messages WHERE session_id = $1", sessionID); err != nil {
		return fmt.Errorf("clear conversation messages: %w", err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
