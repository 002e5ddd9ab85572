package models

import "time"

// MessageType distinguishes text from image payloads.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	return t == MessageTypeText || t == MessageTypeImage
}

// Message is one entry of a room's bounded log.
type Message struct {
	ID        string      `json:"id"`
	SenderID  string      `json:"senderId"`
	Type      MessageType `json:"type"`
	Content   []string    `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	ReadBy    []string    `json:"readBy"`
}

// IsReadBy reports whether userID acknowledged the message.
func (m Message) IsReadBy(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// MarkReadBy adds userID to the read-by set and reports whether it changed.
func (m *Message) MarkReadBy(userID string) bool {
	if m.IsReadBy(userID) {
		return false
	}
	m.ReadBy = append(m.ReadBy, userID)
	return true
}
