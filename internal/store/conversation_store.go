package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/voxhall/voxhall/internal/domain"
)

// ConversationStore persists conversations and their messages. The internal
// conversation id it issues is the only valid key for saving messages.
type ConversationStore struct {
	db *DB
}

// NewConversationStore creates a conversation store on the given database.
func NewConversationStore(db *DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// CreateConversation creates a conversation record paired with the given
// external id and returns the issued internal id. If a record for the
// external id already exists, its internal id is returned instead.
func (s *ConversationStore) CreateConversation(ctx context.Context, externalID string) (string, error) {
	if externalID != "" {
		if id, err := s.FindConversationByExternalID(ctx, externalID); err == nil {
			return id, nil
		} else if !errors.Is(err, domain.ErrConversationNotFound) {
			return "", err
		}
	}

	id := uuid.New().String()
	now := time.Now().Format(time.DateTime)
	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO conversations (id, external_id, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, externalID, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("creating conversation: %w", err)
	}

	s.db.log.Debug().Str("internalId", id).Str("externalId", externalID).Msg("conversation created")
	return id, nil
}

// FindConversationByExternalID returns the internal id paired with the given
// external id, or domain.ErrConversationNotFound.
func (s *ConversationStore) FindConversationByExternalID(ctx context.Context, externalID string) (string, error) {
	if externalID == "" {
		return "", domain.ErrConversationNotFound
	}

	var id string
	err := s.db.sql.QueryRowContext(ctx,
		`SELECT id FROM conversations WHERE external_id = ?`, externalID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrConversationNotFound
	}
	if err != nil {
		return "", fmt.Errorf("looking up conversation %s: %w", externalID, err)
	}
	return id, nil
}

// SaveMessage upserts a message under the given internal conversation id.
func (s *ConversationStore) SaveMessage(ctx context.Context, msg domain.Message, internalID string) error {
	if internalID == "" {
		return errors.New("save message: missing internal conversation id")
	}

	var attachments sql.NullString
	if len(msg.Attachments) > 0 {
		data, err := json.Marshal(msg.Attachments)
		if err != nil {
			return fmt.Errorf("encoding attachments: %w", err)
		}
		attachments = sql.NullString{String: string(data), Valid: true}
	}

	var stoppedAt sql.NullString
	if msg.StoppedAt != nil {
		stoppedAt = sql.NullString{String: msg.StoppedAt.Format(time.DateTime), Valid: true}
	}

	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, attachments, was_stopped, stopped_at, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			was_stopped = excluded.was_stopped,
			stopped_at = excluded.stopped_at,
			error = excluded.error`,
		msg.ID, internalID, string(msg.Role), msg.Text, attachments,
		boolToInt(msg.WasManuallyStopped), stoppedAt, msg.Error,
		createdAt.Format(time.DateTime),
	)
	if err != nil {
		return fmt.Errorf("saving message %s: %w", msg.ID, err)
	}

	_, _ = s.db.sql.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		time.Now().Format(time.DateTime), internalID,
	)
	return nil
}

// Messages returns all messages of a conversation in creation order.
func (s *ConversationStore) Messages(ctx context.Context, internalID string) ([]domain.Message, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, role, content, attachments, was_stopped, stopped_at, error, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY created_at, id`, internalID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var (
			msg         domain.Message
			role        string
			attachments sql.NullString
			wasStopped  int
			stoppedAt   sql.NullString
			createdAt   string
		)
		if err := rows.Scan(&msg.ID, &role, &msg.Text, &attachments, &wasStopped, &stoppedAt, &msg.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.Role = domain.Role(role)
		msg.WasManuallyStopped = wasStopped != 0
		msg.PersistenceStatus = domain.PersistenceSaved
		msg.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
		if stoppedAt.Valid {
			if t, err := time.Parse(time.DateTime, stoppedAt.String); err == nil {
				msg.StoppedAt = &t
			}
		}
		if attachments.Valid && attachments.String != "" {
			_ = json.Unmarshal([]byte(attachments.String), &msg.Attachments)
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
