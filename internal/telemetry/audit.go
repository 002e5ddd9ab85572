package telemetry

import (
	"context"
	"log"
	"time"
)

const AuditRoutingKey = "audit.chat"

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// AuditEmitter publishes audit_log envelopes for security-relevant chat actions
// (room creation, forbidden access, development resets).
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        *string      `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level  string            `json:"level"`
	Text   string            `json:"text"`
	RoomID string            `json:"room_id,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// AuditEntry is one thing worth recording.
type AuditEntry struct {
	Level     string
	Text      string
	RequestID string
	UserID    string
	RoomID    string
	Fields    map[string]string
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	if routingKey == "" {
		routingKey = AuditRoutingKey
	}
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
	}
}

func (e *AuditEmitter) Emit(ctx context.Context, entry AuditEntry) {
	if e == nil || e.publisher == nil {
		return
	}
	if entry.Level == "" {
		entry.Level = "INFO"
	}

	log.Printf("audit emit: level=%s request_id=%s user_id=%s room_id=%s text=%q", entry.Level, entry.RequestID, entry.UserID, entry.RoomID, entry.Text)
	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     entry.RequestID,
		Payload: AuditPayload{
			Level:  entry.Level,
			Text:   entry.Text,
			RoomID: entry.RoomID,
			Fields: entry.Fields,
		},
	}
	if entry.UserID != "" {
		userID := entry.UserID
		envelope.UserID = &userID
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		log.Printf("audit publish failed: %v", err)
	}
}
