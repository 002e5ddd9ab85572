package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"chat-hub/internal/models"
	"chat-hub/internal/repositories"
)

// DefaultResetPatterns covers every key the room directory and message log write.
var DefaultResetPatterns = []string{"chat:*", "user:*"}

// KeyEvicter deletes keys by glob pattern. store.Store satisfies it.
type KeyEvicter interface {
	DeletePattern(ctx context.Context, pattern string) (int, error)
}

// ChatService composes the room directory and the message log into the
// user-facing chat operations. It holds no state of its own.
type ChatService struct {
	rooms    repositories.RoomRepository
	messages repositories.MessageRepository
	keys     KeyEvicter
	devMode  bool
	now      func() time.Time
}

// NewChatService builds a ChatService. devMode enables ResetAll.
func NewChatService(rooms repositories.RoomRepository, messages repositories.MessageRepository, keys KeyEvicter, devMode bool) *ChatService {
	return &ChatService{
		rooms:    rooms,
		messages: messages,
		keys:     keys,
		devMode:  devMode,
		now:      time.Now,
	}
}

// InitializeChat creates (or for a pair, finds) the room shared by the requester
// and the given participants.
func (s *ChatService) InitializeChat(ctx context.Context, requesterID string, participants []string, name string) (string, error) {
	members := make([]string, 0, len(participants)+1)
	members = append(members, requesterID)
	members = append(members, participants...)
	return s.rooms.InitializeRoom(ctx, members, name)
}

// IsChatMember reports whether userID belongs to roomID.
func (s *ChatService) IsChatMember(ctx context.Context, userID, roomID string) (bool, error) {
	return s.rooms.IsMember(ctx, roomID, userID)
}

// Members returns every member of roomID.
func (s *ChatService) Members(ctx context.Context, roomID string) ([]string, error) {
	return s.rooms.GetMembers(ctx, roomID)
}

// SendMessage validates and appends a message. The stored read-by set is the
// active viewers plus the sender.
func (s *ChatService) SendMessage(ctx context.Context, userID, roomID string, typ models.MessageType, content []string, activeViewers []string) (models.Message, error) {
	if err := s.requireMember(ctx, userID, roomID); err != nil {
		return models.Message{}, err
	}
	if err := ValidateContent(typ, content); err != nil {
		return models.Message{}, err
	}

	now := s.now().UTC()
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return models.Message{}, fmt.Errorf("message id: %w", err)
	}

	msg := models.Message{
		ID:        id.String(),
		SenderID:  userID,
		Type:      typ,
		Content:   content,
		Timestamp: now,
		ReadBy:    make([]string, 0, len(activeViewers)+1),
	}
	for _, viewer := range activeViewers {
		msg.MarkReadBy(viewer)
	}
	msg.MarkReadBy(userID)

	if err := s.messages.Append(ctx, roomID, msg); err != nil {
		return models.Message{}, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// MarkMessageAsRead marks one message, or all of them when messageID is empty.
func (s *ChatService) MarkMessageAsRead(ctx context.Context, roomID, userID, messageID string) error {
	if err := s.requireMember(ctx, userID, roomID); err != nil {
		return err
	}
	return s.messages.MarkRead(ctx, roomID, userID, messageID)
}

// EnterChat marks the whole room read for userID and returns its history.
func (s *ChatService) EnterChat(ctx context.Context, userID, roomID string) ([]models.Message, error) {
	if err := s.requireMember(ctx, userID, roomID); err != nil {
		return nil, err
	}
	if err := s.messages.MarkRead(ctx, roomID, userID, ""); err != nil {
		return nil, err
	}
	return s.messages.Range(ctx, roomID, repositories.DefaultHistoryLimit)
}

// GetMessages returns the newest limit messages. Callers check membership.
func (s *ChatService) GetMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	return s.messages.Range(ctx, roomID, limit)
}

// GetChatList builds a summary for every room of userID, newest activity first.
func (s *ChatService) GetChatList(ctx context.Context, userID string) ([]models.ChatSummary, error) {
	roomIDs, err := s.rooms.ListRoomsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	summaries := make([]models.ChatSummary, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		summary, err := s.summarize(ctx, userID, roomID)
		if err != nil {
			return nil, fmt.Errorf("summarize room %s: %w", roomID, err)
		}
		summaries = append(summaries, summary)
	}

	sortSummaries(summaries)
	return summaries, nil
}

func (s *ChatService) summarize(ctx context.Context, userID, roomID string) (models.ChatSummary, error) {
	members, err := s.rooms.GetMembers(ctx, roomID)
	if err != nil {
		return models.ChatSummary{}, err
	}
	latest, err := s.messages.Latest(ctx, roomID)
	if err != nil {
		return models.ChatSummary{}, err
	}
	unread, err := s.messages.UnreadCount(ctx, roomID, userID)
	if err != nil {
		return models.ChatSummary{}, err
	}

	kind := models.KindOf(len(members))
	summary := models.ChatSummary{
		RoomID:      roomID,
		LastMessage: latest,
		UnreadCnt:   unread,
		Available:   contains(members, userID),
		IsGroupChat: kind == models.RoomKindGroup,
		Kind:        kind,
	}

	if kind == models.RoomKindGroup {
		name, ok, err := s.rooms.GetName(ctx, roomID)
		if err != nil {
			return models.ChatSummary{}, err
		}
		if !ok || name == "" {
			name = fmt.Sprintf("Group (%d)", len(members))
		}
		summary.GroupName = name
		summary.MemberCount = len(members)
		summary.Members = without(members, userID)
		return summary, nil
	}

	for _, m := range members {
		if m != userID {
			summary.FriendID = m
			break
		}
	}
	return summary, nil
}

// ResetAll evicts every key matching patterns. Only allowed in development.
func (s *ChatService) ResetAll(ctx context.Context, patterns []string) (int, error) {
	if !s.devMode {
		return 0, ErrOperationNotPermitted
	}
	if len(patterns) == 0 {
		patterns = DefaultResetPatterns
	}

	deleted := 0
	for _, pattern := range patterns {
		n, err := s.keys.DeletePattern(ctx, pattern)
		deleted += n
		if err != nil {
			return deleted, fmt.Errorf("delete %q: %w", pattern, err)
		}
	}
	return deleted, nil
}

// DevMode reports whether development-only operations are enabled.
func (s *ChatService) DevMode() bool {
	return s.devMode
}

func (s *ChatService) requireMember(ctx context.Context, userID, roomID string) error {
	ok, err := s.rooms.IsMember(ctx, roomID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// sortSummaries orders by last message timestamp descending. Rooms without
// messages go last; ties break on room id.
func sortSummaries(list []models.ChatSummary) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].LastMessage, list[j].LastMessage
		switch {
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		case a != nil && b != nil && !a.Timestamp.Equal(b.Timestamp):
			return a.Timestamp.After(b.Timestamp)
		}
		return list[i].RoomID < list[j].RoomID
	})
}

// AvailableOnly drops rooms the user is no longer a member of.
func AvailableOnly(list []models.ChatSummary) []models.ChatSummary {
	out := make([]models.ChatSummary, 0, len(list))
	for _, summary := range list {
		if summary.Available {
			out = append(out, summary)
		}
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
