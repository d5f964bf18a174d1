package session

import (
	"encoding/json"

	"github.com/CodysseyLionMeeting/furniture-platform/pkg/collab"
	"github.com/CodysseyLionMeeting/furniture-platform/pkg/collision"
	"github.com/google/uuid"
)

// Inbound event names. These are the wire contract shared with clients.
const (
	EventJoinProject       = "join_project"
	EventFurnitureMove     = "furniture_move"
	EventFurnitureAdd      = "furniture_add"
	EventFurnitureDelete   = "furniture_delete"
	EventValidateFurniture = "validate_furniture"
	EventRequestLock       = "request_lock"
	EventReleaseLock       = "release_lock"
)

// Outbound event names.
const (
	EventUserJoined        = "user_joined"
	EventUserLeft          = "user_left"
	EventCurrentUsers      = "current_users"
	EventCurrentLocks      = "current_locks"
	EventFurnitureUpdated  = "furniture_updated"
	EventFurnitureAdded    = "furniture_added"
	EventFurnitureDeleted  = "furniture_deleted"
	EventValidationResult  = "validation_result"
	EventCollisionDetected = "collision_detected"
	EventObjectLocked      = "object_locked"
	EventLockRejected      = "lock_rejected"
	EventObjectUnlocked    = "object_unlocked"
)

// roomChannel names the broadcast channel for a project.
func roomChannel(projectID string) string {
	return "project_" + projectID
}

type currentUsersPayload struct {
	Users []collab.Participant `json:"users"`
}

type currentLocksPayload struct {
	Locks []collab.LockInfo `json:"locks"`
}

type userLeftPayload struct {
	Sid uuid.UUID `json:"sid"`
}

type furnitureUpdatedPayload struct {
	FurnitureID string          `json:"furniture_id"`
	Position    json.RawMessage `json:"position"`
	Rotation    json.RawMessage `json:"rotation"`
}

type furnitureAddedPayload struct {
	Furniture json.RawMessage `json:"furniture"`
}

type furnitureDeletedPayload struct {
	FurnitureID string `json:"furniture_id"`
}

type lockStatusPayload struct {
	FurnitureID string    `json:"furniture_id"`
	LockedBy    uuid.UUID `json:"locked_by"`
}

type objectUnlockedPayload struct {
	FurnitureID string `json:"furniture_id"`
}

type collisionDetectedPayload struct {
	Collisions  []collision.Pair `json:"collisions"`
	OutOfBounds []string         `json:"out_of_bounds"`
}
