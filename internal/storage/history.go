package storage

import (
	"fmt"
	"time"

	"whiteboard/internal/domain"
)

// HistoryStore keeps assistant conversations in SQLite.
type HistoryStore struct {
	db *DB
}

func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// AppendMessage inserts m, stamping CreatedAt when it is zero.
func (s *HistoryStore) AppendMessage(m *domain.Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err := s.db.Conn().Exec(
		`INSERT INTO ai_messages (id, session_id, role, content, request_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, string(m.Role), m.Content, m.RequestID, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListMessages returns a session's messages in the order they were appended.
func (s *HistoryStore) ListMessages(sessionID string) ([]domain.Message, error) {
	rows, err := s.db.Conn().Query(
		`SELECT id, session_id, role, content, request_id, created_at
		 FROM ai_messages WHERE session_id = ? ORDER BY seq ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var (
			m    domain.Message
			role string
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &m.RequestID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = domain.MessageRole(role)
		out = append(out, m)
	}
	return out, rows.Err()
}

// ClearMessages removes every message of a session.
func (s *HistoryStore) ClearMessages(sessionID string) error {
	_, err := s.db.Conn().Exec(`DELETE FROM ai_messages WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	return nil
}

// PruneMessages keeps only the newest keepPerSession messages of every
// session and returns how many rows were removed.
func (s *HistoryStore) PruneMessages(keepPerSession int) (int64, error) {
	if keepPerSession < 0 {
		keepPerSession = 0
	}
	res, err := s.db.Conn().Exec(
		`DELETE FROM ai_messages WHERE seq IN (
			SELECT seq FROM (
				SELECT seq, ROW_NUMBER() OVER (PARTITION BY session_id ORDER BY seq DESC) AS rn
				FROM ai_messages
			) WHERE rn > ?
		)`, keepPerSession,
	)
	if err != nil {
		return 0, fmt.Errorf("prune messages: %w", err)
	}
	return res.RowsAffected()
}

// Sessions lists the ids of sessions that have at least one message.
func (s *HistoryStore) Sessions() ([]string, error) {
	rows, err := s.db.Conn().Query(
		`SELECT session_id FROM ai_messages GROUP BY session_id ORDER BY MIN(seq)`,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
