package models

import "time"

// Chat types. Only personal chats exist today; the column is a string so
// group types can be added without a schema change.
const (
	ChatTypePersonal = "personal"
)

// Chat represents a conversation row.
type Chat struct {
	ID        int       `db:"id" json:"id"`
	Name      *string   `db:"name" json:"name,omitempty"`
	Type      string    `db:"type" json:"type"`
	CreatedBy *int      `db:"created_by" json:"created_by,omitempty"`
	PairKey   *string   `db:"pair_key" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ChatSummary is the per-user listing view of a conversation, annotated
// with activity fields derived from the message log.
type ChatSummary struct {
	ID              int        `db:"id" json:"id"`
	DisplayName     string     `db:"display_name" json:"display_name"`
	Type            string     `db:"type" json:"type"`
	CreatedByName   *string    `db:"created_by_name" json:"created_by_name,omitempty"`
	MessageCount    int        `db:"message_count" json:"message_count"`
	LastMessage     *string    `db:"last_message" json:"last_message,omitempty"`
	LastMessageTime *time.Time `db:"last_message_time" json:"last_message_time,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}
