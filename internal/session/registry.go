// Package session tracks the currently-connected users and their last-known
// spatial state. All state is process-local and rebuilt from scratch on every
// connect; there is no durable session store.
package session

import (
	"sync"
	"time"
)

type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Identity returns the neutral orientation new sessions start with.
func Identity() Quaternion { return Quaternion{W: 1} }

type Session struct {
	UserID       string
	ConnectionID string
	RoomID       string
	Online       bool
	AvatarID     string
	Position     Vector3
	Rotation     Quaternion
	UpdatedAt    time.Time
}

// Registry maps user IDs to their live session and keeps the reverse
// connection index in lockstep. Both indexes mutate under one lock so callers
// never observe them disagreeing.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*Session
	byConn map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]*Session),
		byConn: make(map[string]string),
	}
}

// CreateOrReplace installs a fresh session for userID. A previous session for
// the same user is discarded along with its reverse-index entry: last writer
// wins, and the stale connection is not torn down here — that is the
// gateway's call.
func (r *Registry) CreateOrReplace(userID, connectionID string, online bool) Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byUser[userID]; ok {
		delete(r.byConn, old.ConnectionID)
	}

	sess := &Session{
		UserID:       userID,
		ConnectionID: connectionID,
		Online:       online,
		Rotation:     Identity(),
		UpdatedAt:    time.Now(),
	}
	r.byUser[userID] = sess
	r.byConn[connectionID] = userID
	return *sess
}

// UpdatePosition overwrites the spatial state for userID. It does not require
// a prior CreateOrReplace: an unknown user gets an entry recorded anyway,
// matching the relaxed validation of the announce flow.
func (r *Registry) UpdatePosition(userID, roomID, connectionID string, position Vector3, rotation Quaternion) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.byUser[userID]
	if !ok {
		sess = &Session{UserID: userID}
		r.byUser[userID] = sess
	} else if sess.ConnectionID != connectionID {
		delete(r.byConn, sess.ConnectionID)
	}

	sess.RoomID = roomID
	sess.ConnectionID = connectionID
	sess.Position = position
	sess.Rotation = rotation
	sess.UpdatedAt = time.Now()
	r.byConn[connectionID] = userID
}

func (r *Registry) Get(userID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.byUser[userID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

func (r *Registry) GetConnectionID(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.byUser[userID]
	if !ok {
		return "", false
	}
	return sess.ConnectionID, true
}

// GetUserID is the reverse lookup used on transport-level disconnects, where
// only the connection ID is known.
func (r *Registry) GetUserID(connectionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.byConn[connectionID]
	return userID, ok
}

func (r *Registry) SetOnline(userID string, online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.byUser[userID]; ok {
		sess.Online = online
		sess.UpdatedAt = time.Now()
	}
}

func (r *Registry) SetAvatar(userID, avatarID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.byUser[userID]; ok {
		sess.AvatarID = avatarID
		sess.UpdatedAt = time.Now()
	}
}

func (r *Registry) Remove(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.byUser[userID]; ok {
		delete(r.byConn, sess.ConnectionID)
		delete(r.byUser, userID)
	}
}

// All returns a point-in-time copy of every session.
func (r *Registry) All() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Session, 0, len(r.byUser))
	for _, sess := range r.byUser {
		out = append(out, *sess)
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
