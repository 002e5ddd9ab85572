package models

import "encoding/json"

// Inbound event names.
const (
	EventInitializeChat      = "initializeChat"
	EventGetChatList         = "getChatList"
	EventEnterChat           = "enterChat"
	EventLeaveChat           = "leaveChat"
	EventSendMessage         = "sendMessage"
	EventMarkAsRead          = "markAsRead"
	EventResetForDevelopment = "resetForDevelopment"
)

// Outbound event names.
const (
	EventStatus      = "status"
	EventChatList    = "chatList"
	EventChatHistory = "chatHistory"
	EventNewMessage  = "newMessage"
	EventError       = "error"
	EventResetStatus = "resetStatus"
)

// ClientFrame is what a client sends over the socket.
type ClientFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ServerEvent is what the server pushes to a connection.
type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// ErrorPayload is the body of an error event.
type ErrorPayload struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ResetStatus is the body of a resetStatus event.
type ResetStatus struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Deleted int    `json:"deleted,omitempty"`
}

type InitializeChatRequest struct {
	Participants []string `json:"participants"`
	Name         string   `json:"name,omitempty"`
}

type EnterChatRequest struct {
	RoomID string `json:"roomId"`
}

type SendMessageRequest struct {
	RoomID  string      `json:"roomId"`
	Type    MessageType `json:"type"`
	Content []string    `json:"content"`
}

type MarkAsReadRequest struct {
	RoomID    string `json:"roomId"`
	MessageID string `json:"messageId,omitempty"`
}

type ResetRequest struct {
	Patterns []string `json:"patterns,omitempty"`
}
