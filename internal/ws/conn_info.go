package ws

import "time"

// ConnInfo identifies one device connection of a user for logs, spans and ws_events.
type ConnInfo struct {
	ConnID      string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
