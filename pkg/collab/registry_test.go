package collab_test

import (
	"log/slog"
	"os"
	"strconv"
	"sync"
	"testing"

	"github.com/CodysseyLionMeeting/furniture-platform/pkg/collab"
	"github.com/google/uuid"
)

// --- Test Suite Setup ---

func newTestLogger() *slog.Logger {
	// Discard logger output during tests by setting a high level
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func newTestRegistry() *collab.Registry {
	return collab.NewRegistry(newTestLogger())
}

func participant(connID uuid.UUID, userID string) collab.Participant {
	return collab.Participant{
		ConnID:   connID,
		UserID:   userID,
		Nickname: "User " + userID,
		Color:    "#cccccc",
	}
}

// --- Membership Tests ---

func TestJoinAndLeave(t *testing.T) {
	reg := newTestRegistry()
	connID := uuid.New()

	reg.Join("p1", participant(connID, "alice"))

	members := reg.Members("p1")
	if len(members) != 1 {
		t.Fatalf("Expected 1 member, got %d", len(members))
	}
	if members[0].UserID != "alice" {
		t.Errorf("Expected member alice, got %s", members[0].UserID)
	}

	p, ok := reg.Leave("p1", connID)
	if !ok {
		t.Fatal("Leave failed to find joined connection")
	}
	if p.UserID != "alice" {
		t.Errorf("Leave returned wrong participant: %s", p.UserID)
	}

	if len(reg.Members("p1")) != 0 {
		t.Error("Member still present after leave")
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	reg := newTestRegistry()
	connID := uuid.New()

	reg.Join("p1", participant(connID, "alice"))

	// Second join overwrites metadata without duplicating membership.
	updated := participant(connID, "alice")
	updated.Nickname = "Alice Prime"
	reg.Join("p1", updated)

	members := reg.Members("p1")
	if len(members) != 1 {
		t.Fatalf("Duplicate join created %d entries", len(members))
	}
	if members[0].Nickname != "Alice Prime" {
		t.Errorf("Rejoin did not overwrite metadata: %s", members[0].Nickname)
	}
}

func TestLeaveUnknownIsNotAnError(t *testing.T) {
	reg := newTestRegistry()

	if _, ok := reg.Leave("nope", uuid.New()); ok {
		t.Error("Leave reported success for unknown project")
	}

	reg.Join("p1", participant(uuid.New(), "alice"))
	if _, ok := reg.Leave("p1", uuid.New()); ok {
		t.Error("Leave reported success for unknown connection")
	}
}

func TestPurgeConnection(t *testing.T) {
	reg := newTestRegistry()
	connID := uuid.New()
	other := uuid.New()

	reg.Join("p1", participant(connID, "alice"))
	reg.Join("p2", participant(connID, "alice"))
	reg.Join("p2", participant(other, "bob"))

	affected := reg.PurgeConnection(connID)
	if len(affected) != 2 {
		t.Fatalf("Expected 2 affected projects, got %d: %v", len(affected), affected)
	}

	if len(reg.Members("p1")) != 0 {
		t.Error("p1 still has members after purge")
	}
	members := reg.Members("p2")
	if len(members) != 1 || members[0].ConnID != other {
		t.Errorf("p2 membership corrupted by purge: %v", members)
	}
}

// --- Lock Table Tests ---

func TestMutualExclusion(t *testing.T) {
	reg := newTestRegistry()
	a := uuid.New()
	b := uuid.New()

	holder, granted := reg.Acquire("p1", "chair-1", a)
	if !granted || holder != a {
		t.Fatalf("First acquire not granted to a: holder=%v granted=%v", holder, granted)
	}

	holder, granted = reg.Acquire("p1", "chair-1", b)
	if granted {
		t.Fatal("Second acquire from different connection was granted")
	}
	if holder != a {
		t.Errorf("Rejection did not report the original holder: %v", holder)
	}

	// Re-acquire by the holder is granted.
	holder, granted = reg.Acquire("p1", "chair-1", a)
	if !granted || holder != a {
		t.Errorf("Idempotent re-acquire failed: holder=%v granted=%v", holder, granted)
	}
}

func TestReleaseAuthority(t *testing.T) {
	reg := newTestRegistry()
	a := uuid.New()
	b := uuid.New()

	reg.Acquire("p1", "chair-1", a)

	if reg.Release("p1", "chair-1", b) {
		t.Fatal("Non-holder release succeeded")
	}
	locks := reg.Locks("p1")
	if len(locks) != 1 || locks[0].HeldBy != a {
		t.Errorf("Lock table changed by denied release: %v", locks)
	}

	if !reg.Release("p1", "chair-1", a) {
		t.Fatal("Holder release denied")
	}
	if len(reg.Locks("p1")) != 0 {
		t.Error("Lock still held after release")
	}
}

func TestReleaseUnknownIsDenied(t *testing.T) {
	reg := newTestRegistry()

	if reg.Release("p1", "chair-1", uuid.New()) {
		t.Error("Release of never-locked object succeeded")
	}
}

func TestReleaseAllForConnection(t *testing.T) {
	reg := newTestRegistry()
	c := uuid.New()
	other := uuid.New()

	reg.Join("p1", participant(c, "alice"))
	reg.Join("q1", participant(c, "alice"))
	reg.Acquire("p1", "a", c)
	reg.Acquire("p1", "b", c)
	reg.Acquire("p1", "x", other)
	reg.Acquire("q1", "y", other)

	released := reg.ReleaseAllForConnection(c)
	if len(released) != 2 {
		t.Fatalf("Expected 2 released locks, got %d: %v", len(released), released)
	}
	for _, lock := range released {
		if lock.ProjectID != "p1" {
			t.Errorf("Released lock from unexpected project: %v", lock)
		}
	}

	// Other connections' locks are untouched.
	if locks := reg.Locks("p1"); len(locks) != 1 || locks[0].HeldBy != other {
		t.Errorf("Unrelated lock in p1 disturbed: %v", locks)
	}
	if locks := reg.Locks("q1"); len(locks) != 1 || locks[0].HeldBy != other {
		t.Errorf("Unrelated lock in q1 disturbed: %v", locks)
	}
}

// --- Room Lifecycle Tests ---

func TestEmptyRoomIsReaped(t *testing.T) {
	reg := newTestRegistry()
	connID := uuid.New()

	reg.Join("p1", participant(connID, "alice"))
	reg.Acquire("p1", "chair-1", connID)
	if reg.RoomCount() != 1 {
		t.Fatalf("Expected 1 room, got %d", reg.RoomCount())
	}

	// Still referenced by the lock after the member leaves.
	reg.Leave("p1", connID)
	if reg.RoomCount() != 1 {
		t.Fatalf("Room reaped while a lock was still held")
	}

	reg.Release("p1", "chair-1", connID)
	if reg.RoomCount() != 0 {
		t.Errorf("Empty room not reaped, count=%d", reg.RoomCount())
	}
}

func TestDisconnectCleanupReapsRooms(t *testing.T) {
	reg := newTestRegistry()
	connID := uuid.New()

	reg.Join("p1", participant(connID, "alice"))
	reg.Join("q1", participant(connID, "alice"))
	reg.Acquire("p1", "a", connID)

	reg.PurgeConnection(connID)
	reg.ReleaseAllForConnection(connID)

	if reg.RoomCount() != 0 {
		t.Errorf("Rooms left behind after full disconnect cleanup: %d", reg.RoomCount())
	}
}

func TestRejoinAfterReap(t *testing.T) {
	reg := newTestRegistry()
	connID := uuid.New()

	reg.Join("p1", participant(connID, "alice"))
	reg.Leave("p1", connID)
	reg.Join("p1", participant(connID, "alice"))

	if len(reg.Members("p1")) != 1 {
		t.Error("Rejoin after reap lost the member")
	}
}

// --- Concurrency Tests ---

func TestConcurrentJoinLeave(t *testing.T) {
	reg := newTestRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			connID := uuid.New()
			projectID := "p" + strconv.Itoa(n%5)
			reg.Join(projectID, participant(connID, strconv.Itoa(n)))
			reg.Members(projectID)
			reg.Leave(projectID, connID)
		}(i)
	}
	wg.Wait()

	if reg.RoomCount() != 0 {
		t.Errorf("Expected all rooms reaped after churn, got %d", reg.RoomCount())
	}
}

func TestConcurrentAcquireSingleWinner(t *testing.T) {
	reg := newTestRegistry()
	const contenders = 20

	var wg sync.WaitGroup
	granted := make([]bool, contenders)
	conns := make([]uuid.UUID, contenders)
	for i := range conns {
		conns[i] = uuid.New()
	}

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, ok := reg.Acquire("p1", "chair-1", conns[n])
			granted[n] = ok
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, ok := range granted {
		if ok {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("Expected exactly 1 granted acquire, got %d", winners)
	}
}

func TestReleaseAllConcurrentWithAcquire(t *testing.T) {
	reg := newTestRegistry()
	doomed := uuid.New()

	for i := 0; i < 10; i++ {
		reg.Acquire("p"+strconv.Itoa(i), "obj", doomed)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		reg.ReleaseAllForConnection(doomed)
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 10; i++ {
			connID := uuid.New()
			reg.Acquire("other", "obj"+strconv.Itoa(i), connID)
			reg.Release("other", "obj"+strconv.Itoa(i), connID)
		}
	}()
	wg.Wait()

	for i := 0; i < 10; i++ {
		if locks := reg.Locks("p" + strconv.Itoa(i)); len(locks) != 0 {
			t.Errorf("Lock survived ReleaseAllForConnection in p%d: %v", i, locks)
		}
	}
}
