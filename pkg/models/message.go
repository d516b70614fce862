package models

import "time"

type MessageType string

const (
	MessageText           MessageType = "text"
	MessageTypeAttachment MessageType = "attachment"
	MessageSystem         MessageType = "system"
)

// WorkflowMessage belongs to exactly one workflow. Content is immutable
// once created; only soft and hard deletion are supported.
type WorkflowMessage struct {
	ID         string      `json:"id" db:"id"`
	WorkflowID string      `json:"workflow_id" db:"workflow_id"`
	SenderID   string      `json:"sender_id" db:"sender_id"`
	Content    string      `json:"content" db:"content"`
	Type       MessageType `json:"type" db:"type"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
	DeletedAt  *time.Time  `json:"deleted_at,omitempty" db:"deleted_at"`
}

// MessageRecipient is the per-recipient delivery row: read state plus the
// recipient's own soft-delete visibility flag. ReadAt stays null until the
// recipient marks the message read, and never regresses afterwards.
type MessageRecipient struct {
	MessageID   string     `json:"message_id" db:"message_id"`
	RecipientID string     `json:"recipient_id" db:"recipient_id"`
	IsRead      bool       `json:"is_read" db:"is_read"`
	ReadAt      *time.Time `json:"read_at,omitempty" db:"read_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// MessageAttachment references an object handed over by the media
// subsystem. The engine only ever deletes by storage key.
type MessageAttachment struct {
	ID          string    `json:"id" db:"id"`
	MessageID   string    `json:"message_id" db:"message_id"`
	StorageKey  string    `json:"storage_key" db:"storage_key"`
	FileName    string    `json:"file_name" db:"file_name"`
	ContentType string    `json:"content_type,omitempty" db:"content_type"`
	SizeBytes   int64     `json:"size_bytes,omitempty" db:"size_bytes"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// MessageLink is a URL reference carried by a message.
type MessageLink struct {
	ID        string    `json:"id" db:"id"`
	MessageID string    `json:"message_id" db:"message_id"`
	URL       string    `json:"url" db:"url"`
	Title     string    `json:"title,omitempty" db:"title"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// MessageView is a message joined with the viewer's read state and its
// child attachment/link rows, shaped for API responses.
type MessageView struct {
	WorkflowMessage
	IsRead      bool                `json:"is_read"`
	ReadAt      *time.Time          `json:"read_at,omitempty"`
	Attachments []MessageAttachment `json:"attachments,omitempty"`
	Links       []MessageLink       `json:"links,omitempty"`
}
