package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-app/internal/models"
)

var (
	ErrChatNotFound = errors.New("chat not found")
	ErrSelfChat     = errors.New("cannot create chat with self")
)

// ChatRepository abstracts conversation persistence.
type ChatRepository interface {
	ListForUser(ctx context.Context, userID int) ([]models.ChatSummary, error)
	GetOrCreatePersonal(ctx context.Context, userID, otherID int) (models.Chat, bool, error)
	IsParticipant(ctx context.Context, chatID, userID int) (bool, error)
	GetChat(ctx context.Context, chatID int) (models.Chat, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// ListForUser returns the user's conversations annotated with the other
// participant's name, message count and last-message activity, most recent
// activity first.
func (r *ChatRepo) ListForUser(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	query := `SELECT
            c.id,
            COALESCE(c.name,
                (SELECT u2.username FROM chat_participants cp2
                    JOIN users u2 ON u2.id = cp2.user_id
                    WHERE cp2.chat_id = c.id AND cp2.user_id <> $1
                    ORDER BY cp2.user_id LIMIT 1),
                '') AS display_name,
            c.type,
            u.username AS created_by_name,
            (SELECT COUNT(*) FROM messages WHERE chat_id = c.id) AS message_count,
            (SELECT content FROM messages WHERE chat_id = c.id ORDER BY created_at DESC, id DESC LIMIT 1) AS last_message,
            (SELECT created_at FROM messages WHERE chat_id = c.id ORDER BY created_at DESC, id DESC LIMIT 1) AS last_message_time,
            c.created_at
        FROM chats c
        JOIN chat_participants cp ON cp.chat_id = c.id
        LEFT JOIN users u ON u.id = c.created_by
        WHERE cp.user_id = $1
        ORDER BY last_message_time DESC NULLS LAST, c.id`
	summaries := []models.ChatSummary{}
	err := r.db.SelectContext(ctx, &summaries, query, userID)
	return summaries, err
}

// GetOrCreatePersonal finds the personal conversation between the two users
// or creates it. The boolean reports whether a new conversation was created.
// The pair_key unique constraint makes the check-then-act safe under
// concurrent creation for the same pair.
func (r *ChatRepo) GetOrCreatePersonal(ctx context.Context, userID, otherID int) (models.Chat, bool, error) {
	if userID == otherID {
		return models.Chat{}, false, ErrSelfChat
	}

	chat, err := r.findPersonal(ctx, userID, otherID)
	if err == nil {
		return chat, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, false, err
	}

	key := pairKey(userID, otherID)
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Chat{}, false, err
	}
	defer tx.Rollback()

	err = tx.QueryRowxContext(ctx,
		`INSERT INTO chats (type, created_by, pair_key) VALUES ($1, $2, $3)
            RETURNING id, name, type, created_by, pair_key, created_at`,
		models.ChatTypePersonal, userID, key).StructScan(&chat)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			// Lost the race; the other creator's chat is the one.
			existing, findErr := r.findPersonal(ctx, userID, otherID)
			if findErr != nil {
				return models.Chat{}, false, findErr
			}
			return existing, false, nil
		}
		return models.Chat{}, false, err
	}

	for _, participant := range []int{userID, otherID} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_participants (chat_id, user_id) VALUES ($1, $2)`,
			chat.ID, participant); err != nil {
			return models.Chat{}, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Chat{}, false, err
	}
	return chat, true, nil
}

func (r *ChatRepo) findPersonal(ctx context.Context, userID, otherID int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat,
		`SELECT c.id, c.name, c.type, c.created_by, c.pair_key, c.created_at FROM chats c
            WHERE c.type = $1 AND c.pair_key = $2`,
		models.ChatTypePersonal, pairKey(userID, otherID))
	return chat, err
}

// IsParticipant checks standing membership in a conversation. It is the
// authorization gate for every conversation-scoped operation.
func (r *ChatRepo) IsParticipant(ctx context.Context, chatID, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM chat_participants WHERE chat_id=$1 AND user_id=$2)`,
		chatID, userID)
	return exists, err
}

// GetChat fetches a conversation by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT * FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// pairKey derives the unique key for a personal conversation from the
// unordered user pair.
func pairKey(a, b int) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}
