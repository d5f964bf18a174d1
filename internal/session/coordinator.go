package session

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/CodysseyLionMeeting/furniture-platform/pkg/collab"
	"github.com/CodysseyLionMeeting/furniture-platform/pkg/collision"
	"github.com/CodysseyLionMeeting/furniture-platform/pkg/transport"
	"github.com/google/uuid"
)

// Bus is the slice of the broadcast broker the coordinator needs: channel
// subscription, room fan-out with sender exclusion, and unicast.
type Bus interface {
	Subscribe(channel string, connID uuid.UUID)
	Drop(connID uuid.UUID)
	ToRoom(channel, event string, payload any, exclude uuid.UUID)
	ToConnection(connID uuid.UUID, event string, payload any)
}

var _ Bus = (*transport.Broker)(nil)

// Validator checks a furniture layout against its room.
type Validator func(items []collision.Item, room collision.Dimensions) collision.Result

// Coordinator dispatches inbound client events to their handlers, mutating
// the collab registry and fanning results out through the bus. Registry
// operations are short critical sections; every broadcast and the validation
// call happen with no room mutex held.
type Coordinator struct {
	logger   *slog.Logger
	rooms    *collab.Registry
	bus      Bus
	validate Validator
}

func NewCoordinator(logger *slog.Logger, rooms *collab.Registry, bus Bus, validate Validator) *Coordinator {
	if validate == nil {
		validate = collision.ValidateLayout
	}
	return &Coordinator{
		logger:   logger.With(slog.String("component", "session_coordinator")),
		rooms:    rooms,
		bus:      bus,
		validate: validate,
	}
}

// ClientMessage is the inbound wire envelope.
type ClientMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// HandleMessage decodes one inbound frame and dispatches it. Unknown events
// and frames with missing required fields are dropped without a reply; a
// misbehaving client must never perturb any room's state.
func (c *Coordinator) HandleMessage(ctx context.Context, connID uuid.UUID, msg []byte) {
	var clientMsg ClientMessage
	if err := json.Unmarshal(msg, &clientMsg); err != nil {
		c.logger.Warn("Failed to unmarshal client message", slog.String("connID", connID.String()), slog.Any("error", err))
		return
	}

	switch clientMsg.Event {
	case EventJoinProject:
		c.handleJoinProject(connID, clientMsg.Payload)
	case EventFurnitureMove:
		c.handleFurnitureMove(connID, clientMsg.Payload)
	case EventFurnitureAdd:
		c.handleFurnitureAdd(connID, clientMsg.Payload)
	case EventFurnitureDelete:
		c.handleFurnitureDelete(connID, clientMsg.Payload)
	case EventValidateFurniture:
		c.handleValidateFurniture(connID, clientMsg.Payload)
	case EventRequestLock:
		c.handleRequestLock(connID, clientMsg.Payload)
	case EventReleaseLock:
		c.handleReleaseLock(connID, clientMsg.Payload)
	default:
		c.logger.Debug("Received unknown event", slog.String("event", clientMsg.Event), slog.String("connID", connID.String()))
	}
}

// HandleDisconnect runs the transport-driven cleanup for a torn-down
// connection: membership purge first, then lock release, so no observer sees
// a user_left without the matching unlock cleanup.
func (c *Coordinator) HandleDisconnect(connID uuid.UUID) {
	affected := c.rooms.PurgeConnection(connID)
	for _, projectID := range affected {
		c.bus.ToRoom(roomChannel(projectID), EventUserLeft, userLeftPayload{Sid: connID}, connID)
	}

	released := c.rooms.ReleaseAllForConnection(connID)
	for _, lock := range released {
		c.bus.ToRoom(roomChannel(lock.ProjectID), EventObjectUnlocked, objectUnlockedPayload{FurnitureID: lock.FurnitureID}, uuid.Nil)
		c.logger.Info("Auto-released lock for disconnected connection",
			slog.String("projectID", lock.ProjectID),
			slog.String("furnitureID", lock.FurnitureID),
			slog.String("connID", connID.String()),
		)
	}

	c.bus.Drop(connID)
}
