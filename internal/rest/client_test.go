package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automarked/automarked-sub000/internal/models"
)

func TestMessagesDecodesWrappedList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/chat/messages", r.URL.Path)
		assert.Equal(t, "u1", r.URL.Query().Get("senderId"))
		assert.Equal(t, "u2", r.URL.Query().Get("receiverId"))
		json.NewEncoder(w).Encode(map[string]any{
			"messages": []models.Message{{ID: "m1", SenderID: "u2", ReceiverID: "u1", Text: "hi"}},
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, zerolog.New(io.Discard))
	msgs, err := client.Messages(context.Background(), "u1", "u2")

	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Text)
}

func TestUnreadMessagesDecodesCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/unread/u1", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]int{"totalUnreadMessages": 4})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, zerolog.New(io.Discard))
	count, err := client.UnreadMessages(context.Background(), "u1")

	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestNotificationsDecodesBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notifications/u1", r.URL.Path)
		json.NewEncoder(w).Encode([]models.Notification{{ID: "n1", UserID: "u1"}})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, zerolog.New(io.Discard))
	list, err := client.Notifications(context.Background(), "u1")

	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "n1", list[0].ID)
}

func TestMarkNotificationsReadUsesPatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/notifications/read/u1", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, zerolog.New(io.Discard))
	require.NoError(t, client.MarkNotificationsRead(context.Background(), "u1"))
}

func TestGroupAddPostsJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/notifications-group/add", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "c1", body["companyId"])
		assert.Equal(t, "u1", body["userId"])

		json.NewEncoder(w).Encode(map[string][]string{"notifications": {"u1"}})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, zerolog.New(io.Discard))
	list, err := client.GroupAdd(context.Background(), "c1", "u1")

	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, list)
}

func TestGroupClearOmitsUserID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notifications-group/delete", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "userId")

		json.NewEncoder(w).Encode(map[string][]string{"notifications": {}})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, zerolog.New(io.Discard))
	list, err := client.GroupClear(context.Background(), "c1")

	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestNon2xxStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, zerolog.New(io.Discard))
	_, err := client.UserChats(context.Background(), "u1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}

func TestUnreachableGatewayIsError(t *testing.T) {
	client := NewHTTPClient("http://127.0.0.1:1", zerolog.New(io.Discard))
	_, err := client.Notifications(context.Background(), "u1")
	require.Error(t, err)
}
