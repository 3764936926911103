package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrReplace(t *testing.T) {
	r := NewRegistry()

	sess := r.CreateOrReplace("user-1", "conn-1", true)
	assert.Equal(t, "user-1", sess.UserID)
	assert.Equal(t, "conn-1", sess.ConnectionID)
	assert.True(t, sess.Online)
	assert.Equal(t, Identity(), sess.Rotation)

	got, ok := r.Get("user-1")
	require.True(t, ok)
	assert.Equal(t, "conn-1", got.ConnectionID)

	userID, ok := r.GetUserID("conn-1")
	require.True(t, ok)
	assert.Equal(t, "user-1", userID)
}

func TestCreateOrReplaceReconnect(t *testing.T) {
	r := NewRegistry()

	r.CreateOrReplace("user-1", "conn-old", true)
	r.CreateOrReplace("user-1", "conn-new", true)

	// Last writer wins and the stale reverse entry is gone.
	connID, ok := r.GetConnectionID("user-1")
	require.True(t, ok)
	assert.Equal(t, "conn-new", connID)

	_, ok = r.GetUserID("conn-old")
	assert.False(t, ok)

	userID, ok := r.GetUserID("conn-new")
	require.True(t, ok)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, 1, r.Count())
}

func TestGetAbsent(t *testing.T) {
	r := NewRegistry()

	sess, ok := r.Get("nobody")
	assert.False(t, ok)
	assert.Equal(t, Session{}, sess)

	_, ok = r.GetConnectionID("nobody")
	assert.False(t, ok)

	_, ok = r.GetUserID("no-conn")
	assert.False(t, ok)
}

func TestUpdatePositionUnknownUser(t *testing.T) {
	r := NewRegistry()

	pos := Vector3{X: 1, Y: 2, Z: 3}
	rot := Quaternion{W: 1}
	r.UpdatePosition("ghost", "room-1", "conn-9", pos, rot)

	sess, ok := r.Get("ghost")
	require.True(t, ok)
	assert.Equal(t, pos, sess.Position)
	assert.Equal(t, "room-1", sess.RoomID)

	userID, ok := r.GetUserID("conn-9")
	require.True(t, ok)
	assert.Equal(t, "ghost", userID)
}

func TestUpdatePositionRebindsConnection(t *testing.T) {
	r := NewRegistry()

	r.CreateOrReplace("user-1", "conn-1", true)
	r.UpdatePosition("user-1", "room-1", "conn-2", Vector3{X: 5}, Identity())

	_, ok := r.GetUserID("conn-1")
	assert.False(t, ok)

	userID, ok := r.GetUserID("conn-2")
	require.True(t, ok)
	assert.Equal(t, "user-1", userID)
}

func TestSettersIgnoreAbsentUser(t *testing.T) {
	r := NewRegistry()

	r.SetOnline("nobody", true)
	r.SetAvatar("nobody", "avatar-3")
	assert.Equal(t, 0, r.Count())

	r.CreateOrReplace("user-1", "conn-1", false)
	r.SetOnline("user-1", true)
	r.SetAvatar("user-1", "avatar-3")

	sess, ok := r.Get("user-1")
	require.True(t, ok)
	assert.True(t, sess.Online)
	assert.Equal(t, "avatar-3", sess.AvatarID)
}

func TestRemove(t *testing.T) {
	r := NewRegistry()

	r.CreateOrReplace("user-1", "conn-1", true)
	r.Remove("user-1")

	_, ok := r.Get("user-1")
	assert.False(t, ok)
	_, ok = r.GetUserID("conn-1")
	assert.False(t, ok)

	// Removing again is a no-op.
	r.Remove("user-1")
	assert.Equal(t, 0, r.Count())
}

func TestAllReturnsCopies(t *testing.T) {
	r := NewRegistry()

	r.CreateOrReplace("user-1", "conn-1", true)
	r.CreateOrReplace("user-2", "conn-2", false)

	all := r.All()
	require.Len(t, all, 2)

	all[0].Online = !all[0].Online
	sess, ok := r.Get(all[0].UserID)
	require.True(t, ok)
	assert.NotEqual(t, all[0].Online, sess.Online)
}
