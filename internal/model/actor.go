package model

import "time"

// Role names understood by the agent. Anything else is treated as a plain user.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Actor is the authenticated field worker. It is persisted as the currentUser key.
type Actor struct {
	Username  string    `json:"u"`
	Role      string    `json:"role"`
	Timestamp time.Time `json:"ts"`
	Timezone  string    `json:"tz"`
}

// IsAdmin reports whether the actor may change settings and create users.
func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}
