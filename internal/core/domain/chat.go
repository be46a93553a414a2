package domain

import "time"

type MessageKind string

const (
	MessageText   MessageKind = "text"
	MessageSystem MessageKind = "system"
)

// ChatMessage is one append-only room message.
type ChatMessage struct {
	ID         string      `json:"id"`
	RoomID     RoomID      `json:"room_id"`
	AuthorID   IdentityID  `json:"author_id"`
	AuthorName string      `json:"author_name"`
	Content    string      `json:"content"`
	Kind       MessageKind `json:"kind"`
	CreatedAt  time.Time   `json:"created_at"`
}
