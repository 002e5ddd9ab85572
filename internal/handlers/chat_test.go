package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-hub/internal/middleware"
	"chat-hub/internal/mocks"
	"chat-hub/internal/models"
)

func setupChatRouter(handler *ChatHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, "alice")
		c.Next()
	})
	r.GET("/chats", handler.ListChats)
	r.GET("/chats/:room_id/messages", handler.GetChatMessages)
	return r
}

func TestListChatsFiltersUnavailable(t *testing.T) {
	chats := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(chats))

	chats.On("GetChatList", mock.Anything, "alice").Return([]models.ChatSummary{
		{RoomID: "r1", Available: true, Kind: models.RoomKindDirect, FriendID: "bob"},
		{RoomID: "r2", Available: false, Kind: models.RoomKindGroup},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Chats []models.ChatSummary `json:"chats"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Chats, 1)
	assert.Equal(t, "r1", resp.Chats[0].RoomID)
	chats.AssertExpectations(t)
}

func TestListChatsServiceError(t *testing.T) {
	chats := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(chats))

	chats.On("GetChatList", mock.Anything, "alice").Return(nil, assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	chats.AssertExpectations(t)
}

func TestGetChatMessagesSuccess(t *testing.T) {
	chats := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(chats))

	chats.On("IsChatMember", mock.Anything, "alice", "r1").Return(true, nil).Once()
	chats.On("GetMessages", mock.Anything, "r1", 20).Return([]models.Message{
		{ID: "m1", SenderID: "bob", Type: models.MessageTypeText, Content: []string{"hi"}},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/r1/messages?limit=20", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "m1", resp.Messages[0].ID)
	chats.AssertExpectations(t)
}

func TestGetChatMessagesEmptyRoomReturnsArray(t *testing.T) {
	chats := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(chats))

	chats.On("IsChatMember", mock.Anything, "alice", "r1").Return(true, nil).Once()
	chats.On("GetMessages", mock.Anything, "r1", 0).Return(nil, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/r1/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())
	chats.AssertExpectations(t)
}

func TestGetChatMessagesForbidden(t *testing.T) {
	chats := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(chats))

	chats.On("IsChatMember", mock.Anything, "alice", "r1").Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/r1/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	chats.AssertNotCalled(t, "GetMessages", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetChatMessagesBadLimit(t *testing.T) {
	chats := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(chats))

	for _, q := range []string{"abc", "0", "-3"} {
		req := httptest.NewRequest(http.MethodGet, "/chats/r1/messages?limit="+q, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
	chats.AssertNotCalled(t, "IsChatMember", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetChatMessagesMembershipError(t *testing.T) {
	chats := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(chats))

	chats.On("IsChatMember", mock.Anything, "alice", "r1").Return(false, assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/r1/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	chats.AssertExpectations(t)
}
