package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateConnectionID generates a unique connection id.
func GenerateConnectionID() string {
	return "conn_" + uuid.NewString()
}

// GenerateAnonymousID generates the identity id for an anonymous connection.
func GenerateAnonymousID() string {
	return "anon_" + uuid.NewString()
}

// GenerateRoomID generates a unique room id.
func GenerateRoomID() string {
	return "room_" + uuid.NewString()
}

// GenerateElementID generates a unique whiteboard element id.
func GenerateElementID() string {
	return "el_" + uuid.NewString()
}

// GenerateMessageID generates a unique chat message id.
func GenerateMessageID() string {
	return "msg_" + uuid.NewString()
}

// GenerateRequestID generates a unique request ID
func GenerateRequestID() string {
	timestamp := time.Now().UnixNano()
	b := make([]byte, 4)
	rand.Read(b)
	return fmt.Sprintf("req_%d_%s", timestamp, hex.EncodeToString(b))
}

// GenerateInstanceID identifies one gateway process on the shared bus.
func GenerateInstanceID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return "gw_" + hex.EncodeToString(b)
}
