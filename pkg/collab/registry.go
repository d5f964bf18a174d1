package collab

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// room holds one project's membership and lock table behind a single mutex.
// Rooms are created on first join or first lock acquire and reaped once both
// maps are empty, so the registry never grows with abandoned projects.
type room struct {
	mu      sync.Mutex
	members map[uuid.UUID]Participant
	locks   map[string]uuid.UUID
	gone    bool // set under mu when the room has been reaped
}

func newRoom() *room {
	return &room{
		members: make(map[uuid.UUID]Participant),
		locks:   make(map[string]uuid.UUID),
	}
}

// caller must hold r.mu.
func (r *room) empty() bool {
	return len(r.members) == 0 && len(r.locks) == 0
}

// Registry tracks every live project room. The registry mutex guards only
// the room map itself; all membership and lock state is guarded by the
// owning room's mutex, so unrelated projects never serialize against each
// other. Lock ordering is always registry before room.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room

	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		rooms:  make(map[string]*room),
		logger: logger.With(slog.String("component", "collab_registry")),
	}
}

func (reg *Registry) lookup(projectID string) *room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.rooms[projectID]
}

func (reg *Registry) getOrCreate(projectID string) *room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[projectID]
	if !ok {
		r = newRoom()
		reg.rooms[projectID] = r
		reg.logger.Debug("Created room", slog.String("projectID", projectID))
	}
	return r
}

// maybeReap deletes the room if it is still empty. Racing inserters that
// already hold a pointer to the room observe the gone flag and retry.
func (reg *Registry) maybeReap(projectID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[projectID]
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.empty() {
		r.gone = true
		delete(reg.rooms, projectID)
		reg.logger.Debug("Removed empty room", slog.String("projectID", projectID))
	}
}

// Join inserts or overwrites the participant entry for its connection in the
// given project. Joining twice is idempotent: the metadata is replaced, no
// duplicate membership is created.
func (reg *Registry) Join(projectID string, p Participant) {
	for {
		r := reg.getOrCreate(projectID)
		r.mu.Lock()
		if r.gone {
			r.mu.Unlock()
			continue
		}
		r.members[p.ConnID] = p
		r.mu.Unlock()
		return
	}
}

// Leave removes and returns the participant entry if present. A missing
// entry is not an error; a disconnect may race a join.
func (reg *Registry) Leave(projectID string, connID uuid.UUID) (Participant, bool) {
	r := reg.lookup(projectID)
	if r == nil {
		return Participant{}, false
	}

	r.mu.Lock()
	p, ok := r.members[connID]
	if ok {
		delete(r.members, connID)
	}
	empty := r.empty()
	r.mu.Unlock()

	if empty {
		reg.maybeReap(projectID)
	}
	return p, ok
}

// Members returns a point-in-time snapshot of the project's membership.
func (reg *Registry) Members(projectID string) []Participant {
	r := reg.lookup(projectID)
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	members := make([]Participant, 0, len(r.members))
	for _, p := range r.members {
		members = append(members, p)
	}
	return members
}

// PurgeConnection removes the connection from every project it belongs to
// and returns the affected project ids. Used by disconnect handling, which
// has no record of the connection's memberships. Rooms are visited one at a
// time; the scan never holds two room mutexes at once.
func (reg *Registry) PurgeConnection(connID uuid.UUID) []string {
	reg.mu.RLock()
	ids := make([]string, 0, len(reg.rooms))
	for id := range reg.rooms {
		ids = append(ids, id)
	}
	reg.mu.RUnlock()

	var affected []string
	for _, id := range ids {
		if _, ok := reg.Leave(id, connID); ok {
			affected = append(affected, id)
		}
	}
	return affected
}

// Acquire grants the lock on (projectID, furnitureID) if it is unheld or
// already held by the requester, and reports the holder otherwise.
func (reg *Registry) Acquire(projectID, furnitureID string, connID uuid.UUID) (holder uuid.UUID, granted bool) {
	for {
		r := reg.getOrCreate(projectID)
		r.mu.Lock()
		if r.gone {
			r.mu.Unlock()
			continue
		}
		current, held := r.locks[furnitureID]
		if held && current != connID {
			r.mu.Unlock()
			return current, false
		}
		r.locks[furnitureID] = connID
		r.mu.Unlock()
		return connID, true
	}
}

// Release frees the lock only if the requester is the current holder.
// Anything else, including an unknown project or object, is a silent denial.
func (reg *Registry) Release(projectID, furnitureID string, connID uuid.UUID) bool {
	r := reg.lookup(projectID)
	if r == nil {
		return false
	}

	r.mu.Lock()
	current, held := r.locks[furnitureID]
	if !held || current != connID {
		r.mu.Unlock()
		return false
	}
	delete(r.locks, furnitureID)
	empty := r.empty()
	r.mu.Unlock()

	if empty {
		reg.maybeReap(projectID)
	}
	return true
}

// Locks returns a snapshot of the project's held locks for late joiners.
func (reg *Registry) Locks(projectID string) []LockInfo {
	r := reg.lookup(projectID)
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	locks := make([]LockInfo, 0, len(r.locks))
	for furnitureID, holder := range r.locks {
		locks = append(locks, LockInfo{FurnitureID: furnitureID, HeldBy: holder})
	}
	return locks
}

// ReleaseAllForConnection scans every project and frees every lock held by
// the connection, returning what was released so callers can broadcast the
// unlocks. Safe to run concurrently with Acquire/Release on other objects.
func (reg *Registry) ReleaseAllForConnection(connID uuid.UUID) []ReleasedLock {
	reg.mu.RLock()
	ids := make([]string, 0, len(reg.rooms))
	for id := range reg.rooms {
		ids = append(ids, id)
	}
	reg.mu.RUnlock()

	var released []ReleasedLock
	for _, id := range ids {
		r := reg.lookup(id)
		if r == nil {
			continue
		}

		r.mu.Lock()
		for furnitureID, holder := range r.locks {
			if holder == connID {
				delete(r.locks, furnitureID)
				released = append(released, ReleasedLock{ProjectID: id, FurnitureID: furnitureID})
			}
		}
		empty := r.empty()
		r.mu.Unlock()

		if empty {
			reg.maybeReap(id)
		}
	}
	return released
}

// RoomCount reports the number of live rooms.
func (reg *Registry) RoomCount() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}
