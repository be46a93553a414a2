package domain

import "time"

// PresenceRecord is the shared-store view of one identity occupying one room.
// At most one record exists per (identity, room); a reconnect replaces the
// record rather than adding a second one.
type PresenceRecord struct {
	IdentityID     IdentityID   `json:"identity_id"`
	RoomID         RoomID       `json:"room_id"`
	ConnectionID   ConnectionID `json:"connection_id"`
	DisplayName    string       `json:"display_name"`
	AvatarRef      string       `json:"avatar_ref,omitempty"`
	JoinedAt       time.Time    `json:"joined_at"`
	LastActivityAt time.Time    `json:"last_activity_at"`
}

// Touch refreshes the activity timestamp.
func (p *PresenceRecord) Touch() {
	p.LastActivityAt = time.Now()
}
