package social

import (
	"context"
	"fmt"
	"time"

	"github.com/atriumverse/atrium/internal/common/errors"
	"github.com/atriumverse/atrium/internal/infra/cache"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Friend is one entry of a user's friend list. Display name and email are
// denormalized onto the friendship row; the identity backend owns the
// canonical profile.
type Friend struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"nameSurname"`
	Email       string `json:"email,omitempty"`
}

// Invitation is a pending friend invitation addressed to a user.
type Invitation struct {
	InviterID   string `json:"inviterId"`
	InviterName string `json:"inviterName"`
}

type Repository struct {
	pool  *pgxpool.Pool
	cache *cache.Cache
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func NewRepositoryWithCache(pool *pgxpool.Pool, c *cache.Cache) *Repository {
	return &Repository{pool: pool, cache: c}
}

const (
	friendListCacheTTL  = 2 * time.Minute
	invitationsCacheTTL = 30 * time.Second
)

func friendListCacheKey(userID string) string {
	return fmt.Sprintf("friends:%s", userID)
}

func invitationsCacheKey(userID string) string {
	return fmt.Sprintf("invitations:%s", userID)
}

func (r *Repository) ListFriends(ctx context.Context, userID string) ([]Friend, error) {
	if r.cache != nil {
		var cached []Friend
		if err := r.cache.Get(ctx, friendListCacheKey(userID), &cached); err == nil {
			return cached, nil
		}
	}

	query := `
		SELECT friend_id, friend_name, friend_email
		FROM friends
		WHERE user_id = $1
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var friends []Friend
	for rows.Next() {
		var f Friend
		if err := rows.Scan(&f.UserID, &f.DisplayName, &f.Email); err != nil {
			return nil, err
		}
		friends = append(friends, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if r.cache != nil && len(friends) > 0 {
		_ = r.cache.Set(ctx, friendListCacheKey(userID), friends, friendListCacheTTL)
	}

	return friends, nil
}

func (r *Repository) ListPendingInvitations(ctx context.Context, userID string) ([]Invitation, error) {
	if r.cache != nil {
		var cached []Invitation
		if err := r.cache.Get(ctx, invitationsCacheKey(userID), &cached); err == nil {
			return cached, nil
		}
	}

	query := `
		SELECT inviter_id, inviter_name
		FROM invitations
		WHERE invited_id = $1
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invitations []Invitation
	for rows.Next() {
		var inv Invitation
		if err := rows.Scan(&inv.InviterID, &inv.InviterName); err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if r.cache != nil && len(invitations) > 0 {
		_ = r.cache.Set(ctx, invitationsCacheKey(userID), invitations, invitationsCacheTTL)
	}

	return invitations, nil
}

func (r *Repository) CreateInvitation(ctx context.Context, inviterID, inviterName, invitedID string) error {
	query := `
		INSERT INTO invitations (inviter_id, invited_id, inviter_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (inviter_id, invited_id) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query, inviterID, invitedID, inviterName)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errors.Conflict("invitation already exists")
	}

	r.invalidate(ctx, invitedID)
	return nil
}

func (r *Repository) RemoveInvitation(ctx context.Context, inviterID, invitedID string) error {
	query := `DELETE FROM invitations WHERE inviter_id = $1 AND invited_id = $2`

	result, err := r.pool.Exec(ctx, query, inviterID, invitedID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("invitation not found")
	}

	r.invalidate(ctx, invitedID)
	return nil
}

// CreateFriendship records the friendship in both directions so each side
// sees the other in its friend list.
func (r *Repository) CreateFriendship(ctx context.Context, userID, userName, friendID, friendName string) error {
	query := `
		INSERT INTO friends (user_id, friend_id, friend_name)
		VALUES ($1, $2, $3), ($2, $1, $4)
		ON CONFLICT (user_id, friend_id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query, userID, friendID, friendName, userName)
	if err != nil {
		return err
	}

	r.invalidate(ctx, userID, friendID)
	return nil
}

func (r *Repository) AreFriends(ctx context.Context, userID, friendID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM friends WHERE user_id = $1 AND friend_id = $2)`

	var areFriends bool
	err := r.pool.QueryRow(ctx, query, userID, friendID).Scan(&areFriends)
	return areFriends, err
}

func (r *Repository) invalidate(ctx context.Context, userIDs ...string) {
	if r.cache == nil {
		return
	}
	keys := make([]string, 0, len(userIDs)*2)
	for _, id := range userIDs {
		keys = append(keys, friendListCacheKey(id), invitationsCacheKey(id))
	}
	_ = r.cache.Delete(ctx, keys...)
}
