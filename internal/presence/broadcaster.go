// Package presence computes who gets told about a user coming online and
// what the announcing user should see: its friend list joined against live
// sessions, plus pending invitations.
package presence

import (
	"context"
	"fmt"

	"github.com/atriumverse/atrium/internal/session"
	"github.com/atriumverse/atrium/internal/social"
	"go.uber.org/zap"
)

// Directory is the external friend/invitation lookup. Satisfied by
// *social.Service.
type Directory interface {
	Friends(ctx context.Context, userID string) ([]social.Friend, error)
	PendingInvitations(ctx context.Context, userID string) ([]social.Invitation, error)
}

type FriendStatus struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"nameSurname"`
	Email       string `json:"email,omitempty"`
	Online      bool   `json:"online"`
}

type PendingInvite struct {
	InviterID   string `json:"inviterId"`
	InviterName string `json:"inviterName"`
	Message     string `json:"message"`
}

// Snapshot is what an announcing user gets back: friends with their current
// presence and invitations not already covered by a friendship.
type Snapshot struct {
	Friends     []FriendStatus
	Invitations []PendingInvite
}

// Target identifies one live friend connection to push a status change to.
type Target struct {
	UserID       string
	ConnectionID string
}

type Broadcaster struct {
	sessions  *session.Registry
	directory Directory
	logger    *zap.Logger
}

func NewBroadcaster(sessions *session.Registry, directory Directory, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		sessions:  sessions,
		directory: directory,
		logger:    logger,
	}
}

// Snapshot runs the external lookups and joins the friend list against the
// session registry. A friend is reported online only if it has a live
// session whose online flag is set.
func (b *Broadcaster) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	invitations, err := b.directory.PendingInvitations(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list invitations: %w", err)
	}

	friends, err := b.directory.Friends(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list friends: %w", err)
	}

	friendIDs := make(map[string]bool, len(friends))
	snap := Snapshot{Friends: make([]FriendStatus, 0, len(friends))}

	for _, f := range friends {
		friendIDs[f.UserID] = true
		online := false
		if sess, ok := b.sessions.Get(f.UserID); ok {
			online = sess.Online
		}
		snap.Friends = append(snap.Friends, FriendStatus{
			UserID:      f.UserID,
			DisplayName: f.DisplayName,
			Email:       f.Email,
			Online:      online,
		})
	}

	// An invitation from someone who is already a friend is stale; hide it.
	for _, inv := range invitations {
		if friendIDs[inv.InviterID] {
			continue
		}
		snap.Invitations = append(snap.Invitations, PendingInvite{
			InviterID:   inv.InviterID,
			InviterName: inv.InviterName,
			Message:     fmt.Sprintf("%s added you as a friend!", inv.InviterName),
		})
	}

	return snap, nil
}

// OnlineTargets resolves the snapshot's online friends to their current
// connections. Friends whose session vanished between the snapshot and this
// call are skipped; there is no queuing or retry.
func (b *Broadcaster) OnlineTargets(snap Snapshot) []Target {
	var targets []Target
	for _, f := range snap.Friends {
		if !f.Online {
			continue
		}
		connID, ok := b.sessions.GetConnectionID(f.UserID)
		if !ok {
			b.logger.Debug("online friend has no live connection, skipping",
				zap.String("friend_id", f.UserID),
			)
			continue
		}
		targets = append(targets, Target{UserID: f.UserID, ConnectionID: connID})
	}
	return targets
}
