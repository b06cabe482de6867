package domain

import "time"

const AnonymousName = "Anonymous"

// ChatEvent is immutable once appended to a room's buffer.
type ChatEvent struct {
	From        ClientID  `json:"from"`
	DisplayName string    `json:"displayName"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}
