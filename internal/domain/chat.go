package domain

import "time"

// ChatMessage is a persisted chat line. Room is the scope it was sent to,
// e.g. conversation:<id> or meeting:<id>.
type ChatMessage struct {
	ID         string    `json:"id"`
	Room       RoomName  `json:"room"`
	SenderID   UserID    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}
