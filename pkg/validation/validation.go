package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// RoomIDRegex validates room id format
	RoomIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// IdentityIDRegex validates identity id format
	IdentityIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// ElementIDRegex validates whiteboard element id format
	ElementIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidateRoomID validates a room id carried in an event payload.
func ValidateRoomID(roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return fmt.Errorf("room_id is required")
	}
	if len(roomID) > 100 {
		return fmt.Errorf("room_id must be at most 100 characters")
	}
	if !RoomIDRegex.MatchString(roomID) {
		return fmt.Errorf("room_id contains invalid characters")
	}
	return nil
}

// ValidateIdentityID validates a target identity id in a signaling payload.
func ValidateIdentityID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("identity id is required")
	}
	if len(id) > 100 {
		return fmt.Errorf("identity id must be at most 100 characters")
	}
	if !IdentityIDRegex.MatchString(id) {
		return fmt.Errorf("identity id contains invalid characters")
	}
	return nil
}

// ValidateElementID validates a whiteboard element id.
func ValidateElementID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("element id is required")
	}
	if len(id) > 100 {
		return fmt.Errorf("element id must be at most 100 characters")
	}
	if !ElementIDRegex.MatchString(id) {
		return fmt.Errorf("element id contains invalid characters")
	}
	return nil
}

// ValidateDisplayName validates a user-facing display name.
func ValidateDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("display name is required")
	}
	if utf8.RuneCountInString(name) > 64 {
		return fmt.Errorf("display name must be at most 64 characters")
	}
	return nil
}

// ValidateChatContent validates a chat message body.
func ValidateChatContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("message content is required")
	}
	if utf8.RuneCountInString(content) > 4000 {
		return fmt.Errorf("message content must be at most 4000 characters")
	}
	return nil
}

// ValidateNonEmptyString validates that a string field is present.
func ValidateNonEmptyString(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateStringLength validates string length bounds.
func ValidateStringLength(s string, min, max int, fieldName string) error {
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s must be at most %d characters", fieldName, max)
	}
	return nil
}
