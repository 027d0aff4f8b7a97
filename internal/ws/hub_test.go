package ws

import (
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestHubAddAndRemoveConn(t *testing.T) {
	hub := NewHub(zerolog.New(io.Discard))

	hub.AddChatClient("u1:u2", nil)
	assert.Len(t, hub.chatRooms, 1)

	hub.AddUserClient("u1", nil)
	assert.Len(t, hub.userRooms, 1)

	hub.RemoveConn(nil)
	assert.Empty(t, hub.chatRooms, "empty rooms are swept")
	assert.Empty(t, hub.userRooms)
}

func TestRoomKeyOrderIndependent(t *testing.T) {
	assert.Equal(t, RoomKey("a", "b"), RoomKey("b", "a"))
	assert.Equal(t, "a:b", RoomKey("b", "a"))
}
