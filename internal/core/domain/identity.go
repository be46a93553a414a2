package domain

import "time"

type IdentityID string
type ConnectionID string
type RoomID string
type ElementID string
type SessionID string

type PlanTier string

const (
	PlanFree PlanTier = "free"
	PlanPro  PlanTier = "pro"
	PlanTeam PlanTier = "team"
)

// Identity is the resolved principal attached to a live connection. Anonymous
// identities are synthesized per connection and never persisted.
type Identity struct {
	ID          IdentityID `json:"id"`
	DisplayName string     `json:"display_name"`
	AvatarRef   string     `json:"avatar_ref,omitempty"`
	Plan        PlanTier   `json:"plan"`
	Anonymous   bool       `json:"anonymous,omitempty"`
}

// PlanLimits are the numeric entitlements derived from a plan tier.
type PlanLimits struct {
	RoomParticipants int
	CallParticipants int
	StorageMB        int
}

var planLimits = map[PlanTier]PlanLimits{
	PlanFree: {RoomParticipants: 2, CallParticipants: 2, StorageMB: 100},
	PlanPro:  {RoomParticipants: 10, CallParticipants: 6, StorageMB: 2048},
	PlanTeam: {RoomParticipants: 50, CallParticipants: 12, StorageMB: 10240},
}

// LimitsForPlan returns the entitlements for a tier. Unknown tiers fall back
// to the free plan.
func LimitsForPlan(tier PlanTier) PlanLimits {
	if l, ok := planLimits[tier]; ok {
		return l
	}
	return planLimits[PlanFree]
}

type User struct {
	ID          IdentityID `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	Email       string     `json:"email,omitempty"`
	AvatarRef   string     `json:"avatar_ref,omitempty"`
	Plan        PlanTier   `json:"plan"`
	CreatedAt   time.Time  `json:"created_at"`
}
