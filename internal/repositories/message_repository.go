package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-app/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository is the append-only message log.
type MessageRepository interface {
	Create(ctx context.Context, chatID, senderID int, content, messageType string, attachment *models.Attachment) (models.MessageView, error)
	ListPage(ctx context.Context, chatID, limit, offset int) ([]models.MessageView, error)
}

// MessageRepo is a sqlx implementation of MessageRepository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageViewColumns = `m.id, m.chat_id, m.sender_id, m.content, m.message_type,
        m.file_path, m.file_name, m.file_size, m.created_at,
        u.username AS sender_name, u.avatar AS sender_avatar`

// Create appends a message with a server-assigned timestamp and returns it
// with the sender display fields joined in.
func (r *MessageRepo) Create(ctx context.Context, chatID, senderID int, content, messageType string, attachment *models.Attachment) (models.MessageView, error) {
	var filePath, fileName *string
	var fileSize *int64
	if attachment != nil {
		filePath = &attachment.Path
		fileName = &attachment.Name
		fileSize = &attachment.Size
	}

	var body *string
	if content != "" {
		body = &content
	}

	var id int
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (chat_id, sender_id, content, message_type, file_path, file_name, file_size)
            VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		chatID, senderID, body, messageType, filePath, fileName, fileSize).Scan(&id)
	if err != nil {
		return models.MessageView{}, err
	}
	return r.getView(ctx, id)
}

// ListPage returns one page of messages in chronological order. The page is
// selected newest-first so limit/offset always track the tail of the log,
// then reversed before returning.
func (r *MessageRepo) ListPage(ctx context.Context, chatID, limit, offset int) ([]models.MessageView, error) {
	msgs := []models.MessageView{}
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageViewColumns+`
            FROM messages m
            JOIN users u ON u.id = m.sender_id
            WHERE m.chat_id = $1
            ORDER BY m.created_at DESC, m.id DESC
            LIMIT $2 OFFSET $3`,
		chatID, limit, offset)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *MessageRepo) getView(ctx context.Context, messageID int) (models.MessageView, error) {
	var msg models.MessageView
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageViewColumns+`
            FROM messages m
            JOIN users u ON u.id = m.sender_id
            WHERE m.id = $1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.MessageView{}, ErrMessageNotFound
	}
	return msg, err
}
