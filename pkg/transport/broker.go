package transport

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Frame is the wire envelope for every outbound event.
type Frame struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Broker tracks live connections and their channel subscriptions, and fans
// events out to them. Delivery is fire-and-forget: there is no ack, no retry,
// and a dropped connection is silently skipped.
type Broker struct {
	mu       sync.RWMutex
	conns    map[uuid.UUID]*Connection
	channels map[string]map[uuid.UUID]*Connection

	logger *slog.Logger
}

func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{
		conns:    make(map[uuid.UUID]*Connection),
		channels: make(map[string]map[uuid.UUID]*Connection),
		logger:   logger.With(slog.String("component", "broker")),
	}
}

// Register makes a connection addressable for unicast and subscription.
func (b *Broker) Register(conn *Connection) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conns[conn.ID()] = conn
}

// Drop removes a connection from the registry and from every channel it
// subscribed to. Unknown ids are a no-op.
func (b *Broker) Drop(connID uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.conns, connID)
	for name, subs := range b.channels {
		delete(subs, connID)
		if len(subs) == 0 {
			delete(b.channels, name)
		}
	}
}

// Subscribe adds a registered connection to a channel, creating the channel
// if needed. Subscribing an unregistered connection is a no-op; the caller
// may be racing the connection's teardown.
func (b *Broker) Subscribe(channel string, connID uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	conn, ok := b.conns[connID]
	if !ok {
		b.logger.Debug("Subscribe for unknown connection", slog.String("channel", channel), slog.String("connID", connID.String()))
		return
	}
	subs, ok := b.channels[channel]
	if !ok {
		subs = make(map[uuid.UUID]*Connection)
		b.channels[channel] = subs
	}
	subs[connID] = conn
}

// ToRoom delivers an event to every subscriber of a channel. If exclude is
// not uuid.Nil, that connection is skipped.
func (b *Broker) ToRoom(channel, event string, payload any, exclude uuid.UUID) {
	msg, err := json.Marshal(Frame{Event: event, Payload: payload})
	if err != nil {
		b.logger.Error("Failed to marshal event", slog.String("event", event), slog.Any("error", err))
		return
	}

	b.mu.RLock()
	targets := make([]*Connection, 0, len(b.channels[channel]))
	for id, conn := range b.channels[channel] {
		if id == exclude {
			continue
		}
		targets = append(targets, conn)
	}
	b.mu.RUnlock()

	for _, conn := range targets {
		conn.Send(msg)
	}
}

// ToConnection delivers an event to a single connection. Unknown targets are
// silently dropped.
func (b *Broker) ToConnection(connID uuid.UUID, event string, payload any) {
	msg, err := json.Marshal(Frame{Event: event, Payload: payload})
	if err != nil {
		b.logger.Error("Failed to marshal event", slog.String("event", event), slog.Any("error", err))
		return
	}

	b.mu.RLock()
	conn, ok := b.conns[connID]
	b.mu.RUnlock()
	if !ok {
		return
	}
	conn.Send(msg)
}

// Each calls fn for every registered connection. Used by graceful shutdown
// to close all live connections.
func (b *Broker) Each(fn func(conn *Connection)) {
	b.mu.RLock()
	conns := make([]*Connection, 0, len(b.conns))
	for _, conn := range b.conns {
		conns = append(conns, conn)
	}
	b.mu.RUnlock()

	for _, conn := range conns {
		fn(conn)
	}
}
