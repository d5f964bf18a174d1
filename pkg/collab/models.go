package collab

import "github.com/google/uuid"

// Participant is one connection's presence inside a project. The json tags
// are the wire shape consumed by clients in current_users and user_joined.
type Participant struct {
	ConnID   uuid.UUID `json:"sid"`
	UserID   string    `json:"user_id"`
	Nickname string    `json:"nickname"`
	Color    string    `json:"color"`
}

// LockInfo is one held lock, as reported to late-joining clients.
type LockInfo struct {
	FurnitureID string    `json:"furniture_id"`
	HeldBy      uuid.UUID `json:"locked_by"`
}

// ReleasedLock identifies a lock released during disconnect cleanup, so the
// caller can notify the affected project.
type ReleasedLock struct {
	ProjectID   string
	FurnitureID string
}
