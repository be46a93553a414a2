package domain

import "time"

type RoomVisibility string

const (
	RoomPublic  RoomVisibility = "public"
	RoomPrivate RoomVisibility = "private"
)

// Room is the authoritative membership record: owner, invited participants
// and visibility. Occupancy (who is live right now) is tracked separately in
// the presence store.
type Room struct {
	ID           RoomID         `json:"id"`
	Name         string         `json:"name"`
	OwnerID      IdentityID     `json:"owner_id"`
	Participants []IdentityID   `json:"participants,omitempty"`
	Visibility   RoomVisibility `json:"visibility"`
	CreatedAt    time.Time      `json:"created_at"`
}

// IsMember reports whether id is the owner or a listed participant.
func (r *Room) IsMember(id IdentityID) bool {
	if r.OwnerID == id {
		return true
	}
	for _, p := range r.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// MemberCount is the authoritative membership count, owner included.
func (r *Room) MemberCount() int {
	count := len(r.Participants)
	if !containsIdentity(r.Participants, r.OwnerID) {
		count++
	}
	return count
}

func containsIdentity(ids []IdentityID, id IdentityID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
