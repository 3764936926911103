package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndGetPeer(t *testing.T) {
	r := NewRegistry()

	p := r.AddPeer("conn-1", "user-1", "room-1", true)
	assert.True(t, p.Muted)

	got, ok := r.GetPeer("conn-1")
	require.True(t, ok)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "room-1", got.RoomID)
	assert.True(t, got.Muted)

	byUser, ok := r.GetPeerByUserID("user-1")
	require.True(t, ok)
	assert.Equal(t, "conn-1", byUser.ConnectionID)
}

func TestGetPeerAbsent(t *testing.T) {
	r := NewRegistry()

	_, ok := r.GetPeer("nobody")
	assert.False(t, ok)
	_, ok = r.GetPeerByUserID("nobody")
	assert.False(t, ok)
}

func TestPeersInRoom(t *testing.T) {
	r := NewRegistry()

	r.AddPeer("conn-1", "user-1", "room-1", false)
	r.AddPeer("conn-2", "user-2", "room-1", true)
	r.AddPeer("conn-3", "user-3", "room-2", false)

	peers := r.PeersInRoom("room-1")
	require.Len(t, peers, 2)
	assert.Empty(t, r.PeersInRoom("room-9"))
}

func TestRemovePeer(t *testing.T) {
	r := NewRegistry()

	r.AddPeer("conn-1", "user-1", "room-1", false)
	r.RemovePeer("conn-1")

	_, ok := r.GetPeer("conn-1")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Count())

	// Removing an absent peer is a no-op.
	r.RemovePeer("conn-1")
}

func TestToggleMute(t *testing.T) {
	r := NewRegistry()

	r.AddPeer("conn-1", "user-1", "room-1", false)

	p, ok := r.ToggleMute("conn-1", true)
	require.True(t, ok)
	assert.True(t, p.Muted)

	got, _ := r.GetPeer("conn-1")
	assert.True(t, got.Muted)

	_, ok = r.ToggleMute("nobody", true)
	assert.False(t, ok)
}
