package session

import (
	"encoding/json"
	"log/slog"

	"github.com/CodysseyLionMeeting/furniture-platform/pkg/collab"
	"github.com/CodysseyLionMeeting/furniture-platform/pkg/collision"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// requireFields extracts the named fields from the payload and reports
// whether each one is present and non-empty. A frame failing this check is
// dropped: no state change, no broadcast, no error reply.
func (c *Coordinator) requireFields(event string, connID uuid.UUID, payload []byte, names ...string) ([]gjson.Result, bool) {
	results := make([]gjson.Result, len(names))
	for i, name := range names {
		value := gjson.GetBytes(payload, name)
		if !value.Exists() || value.String() == "" {
			c.logger.Debug("Dropping event with missing field",
				slog.String("event", event),
				slog.String("field", name),
				slog.String("connID", connID.String()),
			)
			return nil, false
		}
		results[i] = value
	}
	return results, true
}

func (c *Coordinator) handleJoinProject(connID uuid.UUID, payload []byte) {
	fields, ok := c.requireFields(EventJoinProject, connID, payload, "project_id")
	if !ok {
		return
	}
	projectID := fields[0].String()

	userID := gjson.GetBytes(payload, "user_id").String()
	nickname := gjson.GetBytes(payload, "nickname").String()
	if nickname == "" {
		nickname = "User " + userID
	}
	color := gjson.GetBytes(payload, "color").String()
	if color == "" {
		color = "#cccccc"
	}

	participant := collab.Participant{
		ConnID:   connID,
		UserID:   userID,
		Nickname: nickname,
		Color:    color,
	}

	channel := roomChannel(projectID)
	c.rooms.Join(projectID, participant)
	c.bus.Subscribe(channel, connID)

	c.logger.Info("User joined project",
		slog.String("projectID", projectID),
		slog.String("userID", userID),
		slog.String("nickname", nickname),
	)

	// Notify others, then give the joiner the current membership and any
	// held locks.
	c.bus.ToRoom(channel, EventUserJoined, participant, connID)
	c.bus.ToConnection(connID, EventCurrentUsers, currentUsersPayload{Users: c.rooms.Members(projectID)})
	if locks := c.rooms.Locks(projectID); len(locks) > 0 {
		c.bus.ToConnection(connID, EventCurrentLocks, currentLocksPayload{Locks: locks})
	}
}

// Movement is relayed without an ownership check: locking is advisory and
// not enforced on the data path.
func (c *Coordinator) handleFurnitureMove(connID uuid.UUID, payload []byte) {
	fields, ok := c.requireFields(EventFurnitureMove, connID, payload, "project_id", "furniture_id", "position")
	if !ok {
		return
	}
	projectID, furnitureID, position := fields[0].String(), fields[1].String(), fields[2]

	rotation := json.RawMessage("null")
	if r := gjson.GetBytes(payload, "rotation"); r.Exists() {
		rotation = json.RawMessage(r.Raw)
	}

	c.bus.ToRoom(roomChannel(projectID), EventFurnitureUpdated, furnitureUpdatedPayload{
		FurnitureID: furnitureID,
		Position:    json.RawMessage(position.Raw),
		Rotation:    rotation,
	}, connID)
}

func (c *Coordinator) handleFurnitureAdd(connID uuid.UUID, payload []byte) {
	fields, ok := c.requireFields(EventFurnitureAdd, connID, payload, "project_id", "furniture")
	if !ok {
		return
	}
	projectID, furniture := fields[0].String(), fields[1]

	c.bus.ToRoom(roomChannel(projectID), EventFurnitureAdded, furnitureAddedPayload{
		Furniture: json.RawMessage(furniture.Raw),
	}, connID)
}

func (c *Coordinator) handleFurnitureDelete(connID uuid.UUID, payload []byte) {
	fields, ok := c.requireFields(EventFurnitureDelete, connID, payload, "project_id", "furniture_id")
	if !ok {
		return
	}
	projectID, furnitureID := fields[0].String(), fields[1].String()

	c.bus.ToRoom(roomChannel(projectID), EventFurnitureDeleted, furnitureDeletedPayload{
		FurnitureID: furnitureID,
	}, connID)
}

func (c *Coordinator) handleValidateFurniture(connID uuid.UUID, payload []byte) {
	fields, ok := c.requireFields(EventValidateFurniture, connID, payload, "project_id", "furniture_state", "room_dimensions")
	if !ok {
		return
	}
	projectID, furnitureState, roomDims := fields[0].String(), fields[1], fields[2]

	var items []collision.Item
	if err := json.Unmarshal([]byte(furnitureState.Raw), &items); err != nil {
		c.logger.Debug("Dropping validate_furniture with malformed furniture_state", slog.Any("error", err))
		return
	}
	var dims collision.Dimensions
	if err := json.Unmarshal([]byte(roomDims.Raw), &dims); err != nil {
		c.logger.Debug("Dropping validate_furniture with malformed room_dimensions", slog.Any("error", err))
		return
	}

	result := c.validate(items, dims)

	// The requester always gets the full result; an invalid layout is also
	// announced to the whole room.
	c.bus.ToConnection(connID, EventValidationResult, result)
	if !result.Valid {
		c.bus.ToRoom(roomChannel(projectID), EventCollisionDetected, collisionDetectedPayload{
			Collisions:  result.Collisions,
			OutOfBounds: result.OutOfBounds,
		}, uuid.Nil)
	}
}

// Lock grants broadcast to the requester too, so its UI flips to
// "locked by me" without a separate unicast race.
func (c *Coordinator) handleRequestLock(connID uuid.UUID, payload []byte) {
	fields, ok := c.requireFields(EventRequestLock, connID, payload, "project_id", "furniture_id")
	if !ok {
		return
	}
	projectID, furnitureID := fields[0].String(), fields[1].String()

	holder, granted := c.rooms.Acquire(projectID, furnitureID, connID)
	if !granted {
		c.bus.ToConnection(connID, EventLockRejected, lockStatusPayload{
			FurnitureID: furnitureID,
			LockedBy:    holder,
		})
		return
	}

	c.logger.Info("Lock granted",
		slog.String("projectID", projectID),
		slog.String("furnitureID", furnitureID),
		slog.String("connID", connID.String()),
	)
	c.bus.ToRoom(roomChannel(projectID), EventObjectLocked, lockStatusPayload{
		FurnitureID: furnitureID,
		LockedBy:    holder,
	}, uuid.Nil)
}

func (c *Coordinator) handleReleaseLock(connID uuid.UUID, payload []byte) {
	fields, ok := c.requireFields(EventReleaseLock, connID, payload, "project_id", "furniture_id")
	if !ok {
		return
	}
	projectID, furnitureID := fields[0].String(), fields[1].String()

	if !c.rooms.Release(projectID, furnitureID, connID) {
		// Non-holder releases and unknown objects are denied silently.
		return
	}

	c.logger.Info("Lock released",
		slog.String("projectID", projectID),
		slog.String("furnitureID", furnitureID),
		slog.String("connID", connID.String()),
	)
	c.bus.ToRoom(roomChannel(projectID), EventObjectUnlocked, objectUnlockedPayload{
		FurnitureID: furnitureID,
	}, uuid.Nil)
}
