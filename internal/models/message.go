package models

import "time"

// Message kinds.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
)

// Attachment describes an uploaded file referenced by a message.
type Attachment struct {
	Path string
	Name string
	Size int64
}

// Message is a persisted, append-only chat message.
type Message struct {
	ID          int       `db:"id" json:"id"`
	ChatID      int       `db:"chat_id" json:"chat_id"`
	SenderID    int       `db:"sender_id" json:"sender_id"`
	Content     *string   `db:"content" json:"content,omitempty"`
	MessageType string    `db:"message_type" json:"message_type"`
	FilePath    *string   `db:"file_path" json:"file_path,omitempty"`
	FileName    *string   `db:"file_name" json:"file_name,omitempty"`
	FileSize    *int64    `db:"file_size" json:"file_size,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// MessageView is a message joined with sender display fields. The sender
// fields are computed at read time, never stored on the row.
type MessageView struct {
	Message
	SenderName   string  `db:"sender_name" json:"sender_name"`
	SenderAvatar *string `db:"sender_avatar" json:"sender_avatar,omitempty"`
}

// ChatEvent is broadcast through websockets.
type ChatEvent struct {
	Type    string       `json:"type"`
	ChatID  int          `json:"chat_id"`
	Message *MessageView `json:"message,omitempty"`
}
