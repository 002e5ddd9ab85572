package ws

import (
	"context"
	"log"
	"time"

	"chat-hub/internal/observability"
)

const wsRoutingKey = "ws_events.chats"

// publishLifecycle emits ws_connect, ws_disconnect and ws_error to the event bus.
func publishLifecycle(ctx context.Context, info ConnInfo, event, reason string) {
	var duration int64
	if event != "ws_connect" {
		duration = time.Since(info.ConnectedAt).Milliseconds()
	}

	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        "chat",
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": duration,
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID, info.DeviceID)
	envelope := observability.NewEventEnvelope("ws_events", event, payload)
	if err := observability.PublishEvent(ctx, wsRoutingKey, envelope, headers); err != nil {
		log.Printf("ws event publish failed event=%s conn_id=%s err=%v", event, info.ConnID, err)
	}
	observability.IncWSEvent(event, "ok")
}
