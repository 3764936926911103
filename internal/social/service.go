package social

import (
	"context"
	"fmt"
	"time"

	"github.com/atriumverse/atrium/internal/common/errors"
	"go.uber.org/zap"
)

// Store is the persistence surface the service needs; satisfied by
// *Repository and by fakes in tests.
type Store interface {
	ListFriends(ctx context.Context, userID string) ([]Friend, error)
	ListPendingInvitations(ctx context.Context, userID string) ([]Invitation, error)
	CreateInvitation(ctx context.Context, inviterID, inviterName, invitedID string) error
	RemoveInvitation(ctx context.Context, inviterID, invitedID string) error
	CreateFriendship(ctx context.Context, userID, userName, friendID, friendName string) error
	AreFriends(ctx context.Context, userID, friendID string) (bool, error)
}

// Notifier pushes a named payload to a user's live connection, if any. The
// gateway implements it; a user without a session is a no-op and the push is
// reported as not delivered.
type Notifier interface {
	NotifyUser(userID, event string, payload any) bool
}

type Service struct {
	store    Store
	notifier Notifier
	logger   *zap.Logger
}

func NewService(store Store, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{store: store, notifier: notifier, logger: logger}
}

// SetNotifier wires the push hook after construction; the gateway that
// implements it is itself built around this service's friend lookups.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *Service) Friends(ctx context.Context, userID string) ([]Friend, error) {
	return s.store.ListFriends(ctx, userID)
}

func (s *Service) PendingInvitations(ctx context.Context, userID string) ([]Invitation, error) {
	return s.store.ListPendingInvitations(ctx, userID)
}

// InviteFriend persists the invitation and, when the invited user is
// connected, pushes a friend:invited event to their socket.
func (s *Service) InviteFriend(ctx context.Context, inviterID, inviterName, invitedID string) error {
	if inviterID == invitedID {
		return errors.BadRequest("cannot send invitation to yourself")
	}

	dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	alreadyFriends, err := s.store.AreFriends(dbCtx, inviterID, invitedID)
	if err != nil {
		return errors.Internal("failed to check friendship status", err)
	}
	if alreadyFriends {
		return errors.Conflict("already friends with this user")
	}

	if err := s.store.CreateInvitation(dbCtx, inviterID, inviterName, invitedID); err != nil {
		return err
	}

	if s.notifier != nil {
		delivered := s.notifier.NotifyUser(invitedID, "friend:invited", map[string]any{
			"inviterId":   inviterID,
			"inviterName": inviterName,
			"message":     fmt.Sprintf("%s added you as a friend!", inviterName),
		})
		if !delivered {
			s.logger.Debug("invited user not connected, invitation stays pending",
				zap.String("invited_id", invitedID),
			)
		}
	}

	return nil
}

// AcceptInvitation converts a pending invitation into a friendship in both
// directions and notifies the inviter's live connection.
func (s *Service) AcceptInvitation(ctx context.Context, inviterID, inviterName, invitedID, invitedName string) error {
	dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.store.RemoveInvitation(dbCtx, inviterID, invitedID); err != nil {
		return err
	}
	if err := s.store.CreateFriendship(dbCtx, invitedID, invitedName, inviterID, inviterName); err != nil {
		return errors.Internal("failed to create friendship", err)
	}

	if s.notifier != nil {
		s.notifier.NotifyUser(inviterID, "friend:added", map[string]any{
			"userId":      invitedID,
			"nameSurname": invitedName,
		})
	}

	return nil
}

func (s *Service) RejectInvitation(ctx context.Context, inviterID, invitedID string) error {
	dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return s.store.RemoveInvitation(dbCtx, inviterID, invitedID)
}
