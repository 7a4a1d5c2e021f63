package store

import "time"

// User is a registered identity. The username is the primary key and is
// case-sensitive; the display name defaults to the username at registration.
type User struct {
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Message is one persisted chat message. Seq is assigned by the archive at
// append time and increases monotonically.
type Message struct {
	Seq       int64     `json:"seq"`
	MessageID string    `json:"message_id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
