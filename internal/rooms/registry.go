// Package rooms holds the ephemeral spatial sessions. Rooms are created on
// demand, mutated by join/leave, and never garbage-collected: they live until
// process restart, which is accepted for this layer.
package rooms

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Member struct {
	UserID       string
	ConnectionID string
	DisplayName  string
}

type Invitee struct {
	UserID      string
	DisplayName string
}

type room struct {
	id        string
	createdAt time.Time
	members   map[string]*Member
	order     []string
	invited   map[string]Invitee
}

type Room struct {
	ID        string
	CreatedAt time.Time
}

// Registry is the shared room store. Mutation of a room happens under the
// registry lock so concurrent joins and leaves on the same room cannot
// interleave into a corrupted member set.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*room)}
}

// Create allocates a new room and seeds it with the creator as first member.
// Room IDs are 128-bit random UUIDs; collisions are not handled.
func (r *Registry) Create(creatorUserID, connectionID, displayName string) Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm := &room{
		id:        uuid.NewString(),
		createdAt: time.Now(),
		members:   make(map[string]*Member),
		invited:   make(map[string]Invitee),
	}
	rm.members[creatorUserID] = &Member{
		UserID:       creatorUserID,
		ConnectionID: connectionID,
		DisplayName:  displayName,
	}
	rm.order = append(rm.order, creatorUserID)
	r.rooms[rm.id] = rm

	return Room{ID: rm.id, CreatedAt: rm.createdAt}
}

func (r *Registry) Get(roomID string) (Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[roomID]
	if !ok {
		return Room{}, false
	}
	return Room{ID: rm.id, CreatedAt: rm.createdAt}, true
}

// AddMember inserts or overwrites the member entry for userID. Re-adding an
// existing member refreshes its connection ID and display name but keeps its
// position in the roster. Returns false if the room does not exist.
func (r *Registry) AddMember(roomID, connectionID, userID, displayName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return false
	}

	if _, exists := rm.members[userID]; !exists {
		rm.order = append(rm.order, userID)
	}
	rm.members[userID] = &Member{
		UserID:       userID,
		ConnectionID: connectionID,
		DisplayName:  displayName,
	}
	return true
}

// RemoveMember is idempotent for users that are not members; it only returns
// false when the room itself is missing.
func (r *Registry) RemoveMember(roomID, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return false
	}

	if _, exists := rm.members[userID]; exists {
		delete(rm.members, userID)
		for i, id := range rm.order {
			if id == userID {
				rm.order = append(rm.order[:i], rm.order[i+1:]...)
				break
			}
		}
	}
	return true
}

// Invite records an invited-but-not-joined user. Duplicate and
// already-a-member policy lives in the gateway, not here.
func (r *Registry) Invite(roomID, userID, displayName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	rm.invited[userID] = Invitee{UserID: userID, DisplayName: displayName}
	return true
}

func (r *Registry) Invited(roomID string) []Invitee {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]Invitee, 0, len(rm.invited))
	for _, inv := range rm.invited {
		out = append(out, inv)
	}
	return out
}

func (r *Registry) Delete(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[roomID]; !ok {
		return false
	}
	delete(r.rooms, roomID)
	return true
}

// ListMembers returns the roster in insertion order.
func (r *Registry) ListMembers(roomID string) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]Member, 0, len(rm.order))
	for _, userID := range rm.order {
		if m, exists := rm.members[userID]; exists {
			out = append(out, *m)
		}
	}
	return out
}

// MembershipsOf reports every room userID is currently a member of. The
// registry deliberately permits membership in more than one room; the gateway
// uses this to flag cross-room membership rather than enforce exclusivity.
func (r *Registry) MembershipsOf(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for id, rm := range r.rooms {
		if _, ok := rm.members[userID]; ok {
			out = append(out, id)
		}
	}
	return out
}
