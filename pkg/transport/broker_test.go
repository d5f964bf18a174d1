package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

// newIdleConnection builds a connection whose pumps never run, so queued
// frames stay in the send channel for inspection.
func newIdleConnection() *Connection {
	var wg sync.WaitGroup
	return NewConnection(context.Background(), &wg, nil, ConnectionConfig{}, newTestLogger())
}

func drain(c *Connection) [][]byte {
	var out [][]byte
	for {
		select {
		case msg := <-c.send:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestToRoomExcludesSender(t *testing.T) {
	b := NewBroker(newTestLogger())
	a := newIdleConnection()
	c := newIdleConnection()
	b.Register(a)
	b.Register(c)
	b.Subscribe("project_1", a.ID())
	b.Subscribe("project_1", c.ID())

	b.ToRoom("project_1", "furniture_updated", map[string]string{"furniture_id": "sofa"}, a.ID())

	if got := drain(a); len(got) != 0 {
		t.Errorf("Excluded connection received %d frames", len(got))
	}
	frames := drain(c)
	if len(frames) != 1 {
		t.Fatalf("Expected 1 frame, got %d", len(frames))
	}

	var frame Frame
	if err := json.Unmarshal(frames[0], &frame); err != nil {
		t.Fatalf("Frame is not valid JSON: %v", err)
	}
	if frame.Event != "furniture_updated" {
		t.Errorf("Frame event = %q", frame.Event)
	}
}

func TestToRoomWithoutExclusion(t *testing.T) {
	b := NewBroker(newTestLogger())
	a := newIdleConnection()
	c := newIdleConnection()
	b.Register(a)
	b.Register(c)
	b.Subscribe("project_1", a.ID())
	b.Subscribe("project_1", c.ID())

	b.ToRoom("project_1", "object_locked", nil, uuid.Nil)

	if len(drain(a)) != 1 || len(drain(c)) != 1 {
		t.Error("uuid.Nil exclusion should deliver to every subscriber")
	}
}

func TestUnicastToUnknownTargetIsDropped(t *testing.T) {
	b := NewBroker(newTestLogger())
	// Must not panic or deliver anywhere.
	b.ToConnection(uuid.New(), "validation_result", nil)
}

func TestSubscribeUnregisteredConnectionIsNoOp(t *testing.T) {
	b := NewBroker(newTestLogger())
	b.Subscribe("project_1", uuid.New())

	b.ToRoom("project_1", "user_joined", nil, uuid.Nil)
	if len(b.channels) != 0 {
		t.Error("Subscription recorded for unregistered connection")
	}
}

func TestDropRemovesAllSubscriptions(t *testing.T) {
	b := NewBroker(newTestLogger())
	a := newIdleConnection()
	c := newIdleConnection()
	b.Register(a)
	b.Register(c)
	b.Subscribe("project_1", a.ID())
	b.Subscribe("project_2", a.ID())
	b.Subscribe("project_1", c.ID())

	b.Drop(a.ID())

	b.ToRoom("project_1", "user_left", nil, uuid.Nil)
	b.ToRoom("project_2", "user_left", nil, uuid.Nil)
	if len(drain(a)) != 0 {
		t.Error("Dropped connection still receives frames")
	}
	if len(drain(c)) != 1 {
		t.Error("Remaining subscriber lost delivery after unrelated drop")
	}

	// project_2 had only the dropped subscriber; its channel entry is gone.
	if _, ok := b.channels["project_2"]; ok {
		t.Error("Empty channel not cleaned up after drop")
	}
}

func TestEachVisitsEveryConnection(t *testing.T) {
	b := NewBroker(newTestLogger())
	for i := 0; i < 3; i++ {
		b.Register(newIdleConnection())
	}

	visited := 0
	b.Each(func(conn *Connection) { visited++ })
	if visited != 3 {
		t.Errorf("Each visited %d connections, want 3", visited)
	}
}
