// Package voice tracks which connections participate in room voice chat.
// Only signaling metadata is held here; media never passes through this
// process.
package voice

import "sync"

// Peer is keyed by connection ID rather than user ID: rapid reconnects can
// transiently leave an orphaned entry behind until the old connection's
// disconnect cleanup runs.
type Peer struct {
	ConnectionID string
	UserID       string
	RoomID       string
	Muted        bool
}

type Registry struct {
	mu    sync.RWMutex
	peers map[string]*Peer
}

func NewRegistry() *Registry {
	return &Registry{peers: make(map[string]*Peer)}
}

// AddPeer creates or overwrites the peer entry for connectionID.
func (r *Registry) AddPeer(connectionID, userID, roomID string, muted bool) Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	peer := &Peer{
		ConnectionID: connectionID,
		UserID:       userID,
		RoomID:       roomID,
		Muted:        muted,
	}
	r.peers[connectionID] = peer
	return *peer
}

func (r *Registry) RemovePeer(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, connectionID)
}

func (r *Registry) GetPeer(connectionID string) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	peer, ok := r.peers[connectionID]
	if !ok {
		return Peer{}, false
	}
	return *peer, true
}

// GetPeerByUserID scans the live peers. Peer counts are bounded by concurrent
// voice participants in one process, so the linear scan is fine.
func (r *Registry) GetPeerByUserID(userID string) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, peer := range r.peers {
		if peer.UserID == userID {
			return *peer, true
		}
	}
	return Peer{}, false
}

func (r *Registry) PeersInRoom(roomID string) []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Peer
	for _, peer := range r.peers {
		if peer.RoomID == roomID {
			out = append(out, *peer)
		}
	}
	return out
}

// ToggleMute mutates the peer in place; absent peers are a no-op.
func (r *Registry) ToggleMute(connectionID string, muted bool) (Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	peer, ok := r.peers[connectionID]
	if !ok {
		return Peer{}, false
	}
	peer.Muted = muted
	return *peer, true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}
