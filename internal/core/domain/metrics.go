package domain

import "time"

// RoomStats is the live occupancy view of a room, reconciled from the
// presence store and the authoritative membership list.
type RoomStats struct {
	RoomID          RoomID
	PresenceCount   int
	MembershipCount int
	DocumentVersion int64
	Timestamp       time.Time
}

// Occupancy is the capacity-gate view: the max of the two counts, so a
// partial presence-store failure never undercounts a full room.
func (s *RoomStats) Occupancy() int {
	if s.MembershipCount > s.PresenceCount {
		return s.MembershipCount
	}
	return s.PresenceCount
}
