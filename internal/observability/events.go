package observability

import "time"

// Header names attached to every published event.
const (
	HeaderRequestID = "x-request-id"
	HeaderTraceID   = "trace_id"
	HeaderDeviceID  = "x-device-id"
)

// EventEnvelope is the body of a ws_events message.
type EventEnvelope struct {
	EventType  string      `json:"event_type"`
	EventName  string      `json:"event_name"`
	OccurredAt string      `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

func NewEventEnvelope(eventType, eventName string, payload interface{}) EventEnvelope {
	return EventEnvelope{
		EventType:  eventType,
		EventName:  eventName,
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:    payload,
	}
}

// BuildHeaders returns the correlation headers that are set; empty values are skipped.
func BuildHeaders(requestID, traceID, deviceID string) map[string]string {
	headers := make(map[string]string, 3)
	for name, value := range map[string]string{
		HeaderRequestID: requestID,
		HeaderTraceID:   traceID,
		HeaderDeviceID:  deviceID,
	} {
		if value != "" {
			headers[name] = value
		}
	}
	return headers
}
