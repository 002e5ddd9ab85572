package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-hub/internal/models"
	"chat-hub/internal/repositories"
)

type RoomRepositoryMock struct {
	mock.Mock
}

func (m *RoomRepositoryMock) InitializeRoom(ctx context.Context, memberIDs []string, name string) (string, error) {
	args := m.Called(ctx, memberIDs, name)
	return args.String(0), args.Error(1)
}

func (m *RoomRepositoryMock) IsMember(ctx context.Context, roomID string, userID string) (bool, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *RoomRepositoryMock) GetMembers(ctx context.Context, roomID string) ([]string, error) {
	args := m.Called(ctx, roomID)
	var members []string
	if val := args.Get(0); val != nil {
		members = val.([]string)
	}
	return members, args.Error(1)
}

func (m *RoomRepositoryMock) ListRoomsForUser(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	var rooms []string
	if val := args.Get(0); val != nil {
		rooms = val.([]string)
	}
	return rooms, args.Error(1)
}

func (m *RoomRepositoryMock) GetName(ctx context.Context, roomID string) (string, bool, error) {
	args := m.Called(ctx, roomID)
	return args.String(0), args.Bool(1), args.Error(2)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, roomID string, msg models.Message) error {
	args := m.Called(ctx, roomID, msg)
	return args.Error(0)
}

func (m *MessageRepositoryMock) Range(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	args := m.Called(ctx, roomID, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) Latest(ctx context.Context, roomID string) (*models.Message, error) {
	args := m.Called(ctx, roomID)
	var msg *models.Message
	if val := args.Get(0); val != nil {
		msg = val.(*models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, roomID string, userID string, messageID string) error {
	args := m.Called(ctx, roomID, userID, messageID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) UnreadCount(ctx context.Context, roomID string, userID string) (int, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Int(0), args.Error(1)
}

// ChatServiceMock covers the chat operations the REST handlers call.
type ChatServiceMock struct {
	mock.Mock
}

func (m *ChatServiceMock) IsChatMember(ctx context.Context, userID, roomID string) (bool, error) {
	args := m.Called(ctx, userID, roomID)
	return args.Bool(0), args.Error(1)
}

func (m *ChatServiceMock) GetMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	args := m.Called(ctx, roomID, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *ChatServiceMock) GetChatList(ctx context.Context, userID string) ([]models.ChatSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ChatSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ChatSummary)
	}
	return list, args.Error(1)
}

func (m *ChatServiceMock) ResetAll(ctx context.Context, patterns []string) (int, error) {
	args := m.Called(ctx, patterns)
	return args.Int(0), args.Error(1)
}

var _ repositories.RoomRepository = (*RoomRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
