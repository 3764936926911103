package social

import (
	"context"
	"testing"

	apperrors "github.com/atriumverse/atrium/internal/common/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	friends     map[string][]Friend
	invitations map[string][]Invitation
	friendships map[string]bool

	createdInvitations [][2]string
	removedInvitations [][2]string
	createdFriendships [][2]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		friends:     make(map[string][]Friend),
		invitations: make(map[string][]Invitation),
		friendships: make(map[string]bool),
	}
}

func (s *fakeStore) ListFriends(_ context.Context, userID string) ([]Friend, error) {
	return s.friends[userID], nil
}

func (s *fakeStore) ListPendingInvitations(_ context.Context, userID string) ([]Invitation, error) {
	return s.invitations[userID], nil
}

func (s *fakeStore) CreateInvitation(_ context.Context, inviterID, _, invitedID string) error {
	s.createdInvitations = append(s.createdInvitations, [2]string{inviterID, invitedID})
	return nil
}

func (s *fakeStore) RemoveInvitation(_ context.Context, inviterID, invitedID string) error {
	for _, inv := range s.invitations[invitedID] {
		if inv.InviterID == inviterID {
			s.removedInvitations = append(s.removedInvitations, [2]string{inviterID, invitedID})
			return nil
		}
	}
	return apperrors.NotFound("invitation not found")
}

func (s *fakeStore) CreateFriendship(_ context.Context, userID, _, friendID, _ string) error {
	s.createdFriendships = append(s.createdFriendships, [2]string{userID, friendID})
	s.friendships[userID+"|"+friendID] = true
	s.friendships[friendID+"|"+userID] = true
	return nil
}

func (s *fakeStore) AreFriends(_ context.Context, userID, friendID string) (bool, error) {
	return s.friendships[userID+"|"+friendID], nil
}

type fakeNotifier struct {
	online map[string]bool
	pushed []string
}

func (n *fakeNotifier) NotifyUser(userID, event string, _ any) bool {
	n.pushed = append(n.pushed, userID+":"+event)
	return n.online[userID]
}

func TestInviteFriend(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{online: map[string]bool{"u2": true}}
	svc := NewService(store, notifier, zap.NewNop())

	err := svc.InviteFriend(context.Background(), "u1", "Alice", "u2")
	require.NoError(t, err)

	require.Len(t, store.createdInvitations, 1)
	assert.Equal(t, [2]string{"u1", "u2"}, store.createdInvitations[0])
	assert.Equal(t, []string{"u2:friend:invited"}, notifier.pushed)
}

func TestInviteFriendSelf(t *testing.T) {
	svc := NewService(newFakeStore(), nil, zap.NewNop())

	err := svc.InviteFriend(context.Background(), "u1", "Alice", "u1")
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeBadRequest, appErr.Code)
}

func TestInviteFriendAlreadyFriends(t *testing.T) {
	store := newFakeStore()
	store.friendships["u1|u2"] = true
	svc := NewService(store, nil, zap.NewNop())

	err := svc.InviteFriend(context.Background(), "u1", "Alice", "u2")
	assert.True(t, apperrors.IsConflict(err))
	assert.Empty(t, store.createdInvitations)
}

func TestInviteFriendOfflineInvitee(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{online: map[string]bool{}}
	svc := NewService(store, notifier, zap.NewNop())

	// Push not delivered, but the invitation persists regardless.
	err := svc.InviteFriend(context.Background(), "u1", "Alice", "u2")
	require.NoError(t, err)
	assert.Len(t, store.createdInvitations, 1)
}

func TestAcceptInvitation(t *testing.T) {
	store := newFakeStore()
	store.invitations["u2"] = []Invitation{{InviterID: "u1", InviterName: "Alice"}}
	notifier := &fakeNotifier{online: map[string]bool{"u1": true}}
	svc := NewService(store, notifier, zap.NewNop())

	err := svc.AcceptInvitation(context.Background(), "u1", "Alice", "u2", "Bob")
	require.NoError(t, err)

	require.Len(t, store.removedInvitations, 1)
	require.Len(t, store.createdFriendships, 1)
	assert.Equal(t, [2]string{"u2", "u1"}, store.createdFriendships[0])
	assert.Equal(t, []string{"u1:friend:added"}, notifier.pushed)
}

func TestAcceptInvitationMissing(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil, zap.NewNop())

	err := svc.AcceptInvitation(context.Background(), "u1", "Alice", "u2", "Bob")
	assert.True(t, apperrors.IsNotFound(err))
	assert.Empty(t, store.createdFriendships)
}

func TestRejectInvitation(t *testing.T) {
	store := newFakeStore()
	store.invitations["u2"] = []Invitation{{InviterID: "u1", InviterName: "Alice"}}
	svc := NewService(store, nil, zap.NewNop())

	require.NoError(t, svc.RejectInvitation(context.Background(), "u1", "u2"))
	require.Len(t, store.removedInvitations, 1)

	assert.True(t, apperrors.IsNotFound(svc.RejectInvitation(context.Background(), "u9", "u2")))
}
