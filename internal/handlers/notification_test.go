package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/automarked/automarked-sub000/internal/mocks"
	"github.com/automarked/automarked-sub000/internal/models"
)

func setupNotificationRouter(handler *NotificationHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/notifications/:userId", handler.List)
	r.GET("/notifications/unread/:userId", handler.ListUnread)
	r.PATCH("/notifications/read/:userId", handler.MarkAllRead)
	r.DELETE("/notifications/:userId/:notificationId", handler.Delete)
	r.GET("/notifications-group/:companyId", handler.GroupMembers)
	r.POST("/notifications-group/add", handler.GroupAdd)
	r.POST("/notifications-group/remove", handler.GroupRemove)
	r.POST("/notifications-group/delete", handler.GroupClear)
	return r
}

func newNotificationHandler(store *mocks.NotificationStoreMock, groups *mocks.GroupStoreMock, hub *mocks.BroadcasterMock) *NotificationHandler {
	return NewNotificationHandler(store, groups, hub, zerolog.New(io.Discard))
}

func TestListNotifications(t *testing.T) {
	store := new(mocks.NotificationStoreMock)
	handler := newNotificationHandler(store, new(mocks.GroupStoreMock), new(mocks.BroadcasterMock))
	router := setupNotificationRouter(handler)

	store.On("ForUser", mock.Anything, "u1").
		Return([]models.Notification{{ID: "n1", UserID: "u1"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/notifications/u1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []models.Notification
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "n1", resp[0].ID)
	store.AssertExpectations(t)
}

func TestListNotificationsEmptyListNotNull(t *testing.T) {
	store := new(mocks.NotificationStoreMock)
	handler := newNotificationHandler(store, new(mocks.GroupStoreMock), new(mocks.BroadcasterMock))
	router := setupNotificationRouter(handler)

	store.On("ForUser", mock.Anything, "u1").Return(([]models.Notification)(nil), nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/notifications/u1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestListUnreadNotifications(t *testing.T) {
	store := new(mocks.NotificationStoreMock)
	handler := newNotificationHandler(store, new(mocks.GroupStoreMock), new(mocks.BroadcasterMock))
	router := setupNotificationRouter(handler)

	store.On("UnreadForUser", mock.Anything, "u1").
		Return([]models.Notification{{ID: "n2", Unread: true}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/notifications/unread/u1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	store.AssertExpectations(t)
}

func TestMarkAllReadBroadcasts(t *testing.T) {
	store := new(mocks.NotificationStoreMock)
	hub := new(mocks.BroadcasterMock)
	handler := newNotificationHandler(store, new(mocks.GroupStoreMock), hub)
	router := setupNotificationRouter(handler)

	store.On("MarkAllRead", mock.Anything, "u1").Return(nil).Once()
	hub.On("BroadcastAllRead", "u1").Once()

	req := httptest.NewRequest(http.MethodPatch, "/notifications/read/u1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	store.AssertExpectations(t)
	hub.AssertExpectations(t)
}

func TestMarkAllReadStoreErrorSkipsBroadcast(t *testing.T) {
	store := new(mocks.NotificationStoreMock)
	hub := new(mocks.BroadcasterMock)
	handler := newNotificationHandler(store, new(mocks.GroupStoreMock), hub)
	router := setupNotificationRouter(handler)

	store.On("MarkAllRead", mock.Anything, "u1").Return(assert.AnError).Once()

	req := httptest.NewRequest(http.MethodPatch, "/notifications/read/u1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	hub.AssertNotCalled(t, "BroadcastAllRead", mock.Anything)
}

func TestDeleteNotification(t *testing.T) {
	store := new(mocks.NotificationStoreMock)
	handler := newNotificationHandler(store, new(mocks.GroupStoreMock), new(mocks.BroadcasterMock))
	router := setupNotificationRouter(handler)

	store.On("Delete", mock.Anything, "u1", "n1").Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/notifications/u1/n1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	store.AssertExpectations(t)
}

func TestGroupMembers(t *testing.T) {
	groups := new(mocks.GroupStoreMock)
	handler := newNotificationHandler(new(mocks.NotificationStoreMock), groups, new(mocks.BroadcasterMock))
	router := setupNotificationRouter(handler)

	groups.On("Members", mock.Anything, "c1").Return([]string{"u1"}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/notifications-group/c1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"notifications":["u1"]}`, rec.Body.String())
	groups.AssertExpectations(t)
}

func TestGroupAdd(t *testing.T) {
	groups := new(mocks.GroupStoreMock)
	handler := newNotificationHandler(new(mocks.NotificationStoreMock), groups, new(mocks.BroadcasterMock))
	router := setupNotificationRouter(handler)

	groups.On("Add", mock.Anything, "c1", "u1").Return([]string{"u1"}, nil).Once()

	body := bytes.NewBufferString(`{"companyId":"c1","userId":"u1"}`)
	req := httptest.NewRequest(http.MethodPost, "/notifications-group/add", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"notifications":["u1"]}`, rec.Body.String())
	groups.AssertExpectations(t)
}

func TestGroupAddMissingUser(t *testing.T) {
	groups := new(mocks.GroupStoreMock)
	handler := newNotificationHandler(new(mocks.NotificationStoreMock), groups, new(mocks.BroadcasterMock))
	router := setupNotificationRouter(handler)

	body := bytes.NewBufferString(`{"companyId":"c1"}`)
	req := httptest.NewRequest(http.MethodPost, "/notifications-group/add", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	groups.AssertNotCalled(t, "Add", mock.Anything, mock.Anything, mock.Anything)
}

func TestGroupRemove(t *testing.T) {
	groups := new(mocks.GroupStoreMock)
	handler := newNotificationHandler(new(mocks.NotificationStoreMock), groups, new(mocks.BroadcasterMock))
	router := setupNotificationRouter(handler)

	groups.On("Remove", mock.Anything, "c1", "u1").Return([]string{}, nil).Once()

	body := bytes.NewBufferString(`{"companyId":"c1","userId":"u1"}`)
	req := httptest.NewRequest(http.MethodPost, "/notifications-group/remove", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"notifications":[]}`, rec.Body.String())
	groups.AssertExpectations(t)
}

func TestGroupClear(t *testing.T) {
	groups := new(mocks.GroupStoreMock)
	handler := newNotificationHandler(new(mocks.NotificationStoreMock), groups, new(mocks.BroadcasterMock))
	router := setupNotificationRouter(handler)

	groups.On("Clear", mock.Anything, "c1").Return([]string{}, nil).Once()

	body := bytes.NewBufferString(`{"companyId":"c1"}`)
	req := httptest.NewRequest(http.MethodPost, "/notifications-group/delete", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	groups.AssertExpectations(t)
}
