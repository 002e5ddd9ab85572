package ws

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"chat-hub/internal/models"
	"chat-hub/internal/observability"
	"chat-hub/internal/services"
	"chat-hub/internal/telemetry"
)

const (
	pingPeriod    = 30 * time.Second
	readDeadline  = 60 * time.Second
	writeWait     = 10 * time.Second
	eventTimeout  = 15 * time.Second
	maxFrameBytes = 32 << 20
	fanoutLimit   = 8
)

// ChatService is what the gateway needs from the chat core.
type ChatService interface {
	InitializeChat(ctx context.Context, requesterID string, participants []string, name string) (string, error)
	Members(ctx context.Context, roomID string) ([]string, error)
	SendMessage(ctx context.Context, userID, roomID string, typ models.MessageType, content []string, activeViewers []string) (models.Message, error)
	MarkMessageAsRead(ctx context.Context, roomID, userID, messageID string) error
	EnterChat(ctx context.Context, userID, roomID string) ([]models.Message, error)
	GetChatList(ctx context.Context, userID string) ([]models.ChatSummary, error)
	ResetAll(ctx context.Context, patterns []string) (int, error)
}

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Gateway upgrades authenticated requests and turns client frames into chat operations.
type Gateway struct {
	hub       *Hub
	chats     ChatService
	verifier  TokenVerifier
	audit     *telemetry.AuditEmitter
	upgrader  websocket.Upgrader
	tracer    trace.Tracer
	sendQueue int
}

// NewGateway constructs a Gateway. audit may be nil.
func NewGateway(hub *Hub, chats ChatService, verifier TokenVerifier, audit *telemetry.AuditEmitter) *Gateway {
	return &Gateway{
		hub:      hub,
		chats:    chats,
		verifier: verifier,
		audit:    audit,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		tracer:    otel.Tracer("chat-hub/ws"),
		sendQueue: defaultSendQueue,
	}
}

// Handle authenticates, upgrades and then serves the connection until it closes.
func (g *Gateway) Handle(c *gin.Context) {
	ctx, span := g.tracer.Start(c.Request.Context(), "ws.handshake")

	userID, err := g.verifier.Verify(tokenFromRequest(c.Request))
	if err != nil {
		span.SetStatus(codes.Error, "unauthenticated")
		span.End()
		observability.IncWSEvent("ws_connect", "unauthenticated")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.RecordError(err)
		span.End()
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		ConnectedAt: time.Now(),
	}
	if sc := span.SpanContext(); sc.HasTraceID() {
		info.TraceID = sc.TraceID().String()
	}
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("ws.conn_id", info.ConnID))
	span.End()

	// in-flight events finish even after the peer goes away
	g.serve(context.WithoutCancel(ctx), conn, info)
}

func (g *Gateway) serve(ctx context.Context, conn *websocket.Conn, info ConnInfo) {
	client := NewClient(info, g.sendQueue)
	g.hub.Register(client)
	observability.IncWSActive()
	publishLifecycle(ctx, info, "ws_connect", "")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		g.writeLoop(conn, client)
	}()

	g.onConnect(ctx, client)

	conn.SetReadLimit(maxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	var closeReason string
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				publishLifecycle(ctx, info, "ws_error", closeReason)
			}
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))

		var frame models.ClientFrame
		if err := decodeFrame(data, &frame); err != nil {
			observability.IncWSEvent("unknown", CodeValidation)
			g.sendError(client, err)
			continue
		}
		// focus changes of one connection apply in arrival order
		if changesFocus(frame.Event) {
			g.dispatch(ctx, client, frame)
			continue
		}
		go g.dispatch(ctx, client, frame)
	}

	g.hub.Unregister(client)
	client.Close()
	<-writerDone
	_ = conn.Close()
	observability.DecWSActive()
	publishLifecycle(ctx, info, "ws_disconnect", closeReason)
}

// writeLoop is the only writer of conn.
func (g *Gateway) writeLoop(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-client.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case payload := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("ws write failed conn_id=%s user_id=%s err=%v", client.Info.ConnID, client.UserID(), err)
				client.Close()
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("ws ping failed conn_id=%s user_id=%s err=%v", client.Info.ConnID, client.UserID(), err)
				client.Close()
				_ = conn.Close()
				return
			}
		}
	}
}

// onConnect subscribes the connection to its rooms and sends the chat list.
func (g *Gateway) onConnect(ctx context.Context, client *Client) {
	userID := client.UserID()
	g.sendStatus(client, fmt.Sprintf("user:%s connected", userID))

	list, err := g.chats.GetChatList(ctx, userID)
	if err != nil {
		log.Printf("ws connect chat list failed user_id=%s err=%v", userID, err)
		g.sendError(client, err)
		return
	}
	list = services.AvailableOnly(list)
	for _, summary := range list {
		g.hub.Subscribe(client, summary.RoomID)
	}
	g.sendStatus(client, "chat list updated")
	g.hub.BroadcastToConnection(client, models.ServerEvent{Event: models.EventChatList, Data: list})
}

// dispatch runs one inbound frame. Failures never escape to other events.
func (g *Gateway) dispatch(parent context.Context, client *Client, frame models.ClientFrame) {
	ctx, cancel := context.WithTimeout(parent, eventTimeout)
	defer cancel()
	ctx, span := g.tracer.Start(ctx, "ws."+frame.Event, trace.WithAttributes(
		attribute.String("user.id", client.UserID()),
		attribute.String("ws.conn_id", client.Info.ConnID),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("ws event panic event=%s user_id=%s panic=%v", frame.Event, client.UserID(), r)
			span.SetStatus(codes.Error, "panic")
			observability.IncWSEvent(frame.Event, CodeInternal)
			g.sendError(client, fmt.Errorf("panic: %v", r))
		}
	}()

	err := g.handleEvent(ctx, client, frame)
	if err == nil {
		observability.IncWSEvent(frame.Event, "ok")
		return
	}

	payload := errorPayload(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, payload.Status)
	observability.IncWSEvent(frame.Event, payload.Status)
	switch payload.Status {
	case CodeInternal, CodeRoomInitFailed, CodeReadMarkFailed:
		log.Printf("ws event failed event=%s user_id=%s err=%v", frame.Event, client.UserID(), err)
	case CodeForbidden:
		g.audit.Emit(ctx, telemetry.AuditEntry{
			Level:     "WARN",
			Text:      "forbidden room access via " + frame.Event,
			RequestID: client.Info.RequestID,
			UserID:    client.UserID(),
		})
	}
	g.hub.BroadcastToConnection(client, models.ServerEvent{Event: models.EventError, Data: payload})
}

func (g *Gateway) handleEvent(ctx context.Context, client *Client, frame models.ClientFrame) error {
	switch frame.Event {
	case models.EventInitializeChat:
		return g.onInitializeChat(ctx, client, frame)
	case models.EventGetChatList:
		return g.sendChatList(ctx, client)
	case models.EventEnterChat:
		return g.onEnterChat(ctx, client, frame)
	case models.EventLeaveChat:
		g.hub.SetActiveRoom(client, "")
		g.sendStatus(client, "left all rooms")
		return nil
	case models.EventSendMessage:
		return g.onSendMessage(ctx, client, frame)
	case models.EventMarkAsRead:
		return g.onMarkAsRead(ctx, client, frame)
	case models.EventResetForDevelopment:
		return g.onReset(ctx, client, frame)
	}
	return fmt.Errorf("%w: unsupported event %q", errMalformed, frame.Event)
}

func (g *Gateway) onInitializeChat(ctx context.Context, client *Client, frame models.ClientFrame) error {
	var req models.InitializeChatRequest
	if err := decodeData(frame.Data, &req); err != nil {
		return err
	}
	if len(req.Participants) == 0 {
		return fmt.Errorf("%w: participants are required", errMalformed)
	}

	roomID, err := g.chats.InitializeChat(ctx, client.UserID(), req.Participants, req.Name)
	if err != nil {
		return err
	}
	members, err := g.chats.Members(ctx, roomID)
	if err != nil {
		return err
	}
	for _, memberID := range members {
		g.hub.SubscribeUser(memberID, roomID)
	}
	g.pushChatLists(ctx, members)

	g.audit.Emit(ctx, telemetry.AuditEntry{
		Text:      "chat initialized",
		RequestID: client.Info.RequestID,
		UserID:    client.UserID(),
		RoomID:    roomID,
		Fields:    map[string]string{"kind": string(models.KindOf(len(members)))},
	})
	g.sendStatus(client, roomID+" initialized")
	return nil
}

func (g *Gateway) onEnterChat(ctx context.Context, client *Client, frame models.ClientFrame) error {
	var req models.EnterChatRequest
	if err := decodeData(frame.Data, &req); err != nil {
		return err
	}
	if err := requireRoomID(req.RoomID); err != nil {
		return err
	}

	history, err := g.chats.EnterChat(ctx, client.UserID(), req.RoomID)
	if err != nil {
		return err
	}
	g.hub.Subscribe(client, req.RoomID)
	g.hub.SetActiveRoom(client, req.RoomID)
	g.hub.BroadcastToConnection(client, models.ServerEvent{Event: models.EventChatHistory, Data: history})
	g.pushChatLists(ctx, []string{client.UserID()})
	g.sendStatus(client, req.RoomID+" entered")
	return nil
}

func (g *Gateway) onSendMessage(ctx context.Context, client *Client, frame models.ClientFrame) error {
	var req models.SendMessageRequest
	if err := decodeData(frame.Data, &req); err != nil {
		return err
	}
	if err := requireRoomID(req.RoomID); err != nil {
		return err
	}

	members, err := g.chats.Members(ctx, req.RoomID)
	if err != nil {
		return err
	}
	viewers := g.hub.ResolveActiveViewers(req.RoomID, members)

	msg, err := g.chats.SendMessage(ctx, client.UserID(), req.RoomID, req.Type, req.Content, viewers)
	if err != nil {
		return err
	}
	g.hub.BroadcastToRoom(req.RoomID, models.ServerEvent{Event: models.EventNewMessage, Data: msg})
	g.pushChatLists(ctx, members)
	return nil
}

func (g *Gateway) onMarkAsRead(ctx context.Context, client *Client, frame models.ClientFrame) error {
	var req models.MarkAsReadRequest
	if err := decodeData(frame.Data, &req); err != nil {
		return err
	}
	if err := requireRoomID(req.RoomID); err != nil {
		return err
	}

	if err := g.chats.MarkMessageAsRead(ctx, req.RoomID, client.UserID(), req.MessageID); err != nil {
		return err
	}
	marked := req.MessageID
	if marked == "" {
		marked = "all messages"
	}
	g.sendStatus(client, marked+" marked")
	return nil
}

func (g *Gateway) onReset(ctx context.Context, client *Client, frame models.ClientFrame) error {
	var req models.ResetRequest
	if len(frame.Data) > 0 && string(frame.Data) != "null" {
		if err := decodeData(frame.Data, &req); err != nil {
			return err
		}
	}

	deleted, err := g.chats.ResetAll(ctx, req.Patterns)
	status := models.ResetStatus{Success: err == nil, Deleted: deleted}
	switch {
	case err == nil:
		status.Message = "store has been reset"
		log.Printf("store reset completed user_id=%s deleted=%d", client.UserID(), deleted)
	case errors.Is(err, services.ErrOperationNotPermitted):
		status.Message = err.Error()
	default:
		status.Message = "failed to reset store"
		log.Printf("store reset failed user_id=%s err=%v", client.UserID(), err)
	}

	g.audit.Emit(ctx, telemetry.AuditEntry{
		Level:     auditLevel(err),
		Text:      "development reset: " + status.Message,
		RequestID: client.Info.RequestID,
		UserID:    client.UserID(),
	})
	g.hub.BroadcastToConnection(client, models.ServerEvent{Event: models.EventResetStatus, Data: status})
	return nil
}

// sendChatList answers getChatList on the requesting connection only.
func (g *Gateway) sendChatList(ctx context.Context, client *Client) error {
	list, err := g.chats.GetChatList(ctx, client.UserID())
	if err != nil {
		return err
	}
	g.hub.BroadcastToConnection(client, models.ServerEvent{Event: models.EventChatList, Data: services.AvailableOnly(list)})
	return nil
}

// pushChatLists recomputes and pushes the chat list to every connection of
// each user, concurrently. A failed user is logged and skipped; the others
// still get their list.
func (g *Gateway) pushChatLists(ctx context.Context, userIDs []string) {
	var group errgroup.Group
	group.SetLimit(fanoutLimit)
	for _, userID := range userIDs {
		userID := userID
		group.Go(func() error {
			list, err := g.chats.GetChatList(ctx, userID)
			if err != nil {
				log.Printf("ws chat list fan-out failed user_id=%s err=%v", userID, err)
				return nil
			}
			g.hub.BroadcastToUser(userID, models.ServerEvent{Event: models.EventChatList, Data: services.AvailableOnly(list)})
			return nil
		})
	}
	_ = group.Wait()
}

func (g *Gateway) sendStatus(client *Client, message string) {
	g.hub.BroadcastToConnection(client, models.ServerEvent{Event: models.EventStatus, Data: message})
}

func (g *Gateway) sendError(client *Client, err error) {
	g.hub.BroadcastToConnection(client, models.ServerEvent{Event: models.EventError, Data: errorPayload(err)})
}

func decodeFrame(data []byte, frame *models.ClientFrame) error {
	if err := decodeData(data, frame); err != nil {
		return err
	}
	if frame.Event == "" {
		return fmt.Errorf("%w: event is required", errMalformed)
	}
	return nil
}

func changesFocus(event string) bool {
	return event == models.EventEnterChat || event == models.EventLeaveChat
}

func auditLevel(err error) string {
	if err != nil {
		return "WARN"
	}
	return "INFO"
}
