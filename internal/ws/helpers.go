package ws

import (
	"crypto/rand"
	"encoding/hex"
)

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}

// RoomKey identifies the conversation channel for a user pair,
// independent of who joined first.
func RoomKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}
