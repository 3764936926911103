package rooms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSeedsCreator(t *testing.T) {
	r := NewRegistry()

	room := r.Create("user-1", "conn-1", "Alice")
	require.NotEmpty(t, room.ID)

	members := r.ListMembers(room.ID)
	require.Len(t, members, 1)
	assert.Equal(t, "user-1", members[0].UserID)
	assert.Equal(t, "conn-1", members[0].ConnectionID)
	assert.Equal(t, "Alice", members[0].DisplayName)
}

func TestCreateUniqueIDs(t *testing.T) {
	r := NewRegistry()

	a := r.Create("user-1", "conn-1", "Alice")
	b := r.Create("user-1", "conn-1", "Alice")
	assert.NotEqual(t, a.ID, b.ID)
}

func TestAddMemberMissingRoom(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.AddMember("no-such-room", "conn-2", "user-2", "Bob"))
}

func TestAddMemberKeepsRosterPosition(t *testing.T) {
	r := NewRegistry()

	room := r.Create("user-1", "conn-1", "Alice")
	require.True(t, r.AddMember(room.ID, "conn-2", "user-2", "Bob"))
	require.True(t, r.AddMember(room.ID, "conn-3", "user-3", "Carol"))

	// Re-adding Bob with a new connection refreshes the entry without
	// moving him to the back of the roster.
	require.True(t, r.AddMember(room.ID, "conn-2b", "user-2", "Bobby"))

	members := r.ListMembers(room.ID)
	require.Len(t, members, 3)
	assert.Equal(t, []string{"user-1", "user-2", "user-3"}, []string{
		members[0].UserID, members[1].UserID, members[2].UserID,
	})
	assert.Equal(t, "conn-2b", members[1].ConnectionID)
	assert.Equal(t, "Bobby", members[1].DisplayName)
}

func TestRemoveMember(t *testing.T) {
	r := NewRegistry()

	room := r.Create("user-1", "conn-1", "Alice")
	r.AddMember(room.ID, "conn-2", "user-2", "Bob")

	assert.True(t, r.RemoveMember(room.ID, "user-2"))
	assert.Len(t, r.ListMembers(room.ID), 1)

	// Not a member: still true, the room exists.
	assert.True(t, r.RemoveMember(room.ID, "user-2"))

	// Missing room is the only false case.
	assert.False(t, r.RemoveMember("no-such-room", "user-2"))
}

func TestInvite(t *testing.T) {
	r := NewRegistry()

	room := r.Create("user-1", "conn-1", "Alice")
	require.True(t, r.Invite(room.ID, "user-2", "Bob"))
	assert.False(t, r.Invite("no-such-room", "user-2", "Bob"))

	invited := r.Invited(room.ID)
	require.Len(t, invited, 1)
	assert.Equal(t, "user-2", invited[0].UserID)

	// Invited users are not members until they join.
	assert.Len(t, r.ListMembers(room.ID), 1)
}

func TestDelete(t *testing.T) {
	r := NewRegistry()

	room := r.Create("user-1", "conn-1", "Alice")
	assert.True(t, r.Delete(room.ID))
	assert.False(t, r.Delete(room.ID))

	_, ok := r.Get(room.ID)
	assert.False(t, ok)
	assert.Nil(t, r.ListMembers(room.ID))
}

func TestMembershipsOf(t *testing.T) {
	r := NewRegistry()

	a := r.Create("user-1", "conn-1", "Alice")
	b := r.Create("user-2", "conn-2", "Bob")
	r.AddMember(b.ID, "conn-1", "user-1", "Alice")

	got := r.MembershipsOf("user-1")
	assert.ElementsMatch(t, []string{a.ID, b.ID}, got)
	assert.Empty(t, r.MembershipsOf("user-3"))
}
