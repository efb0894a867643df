package postgres

import (
	"context"
	"errors"

	"github.com/cwrk-planet/fanout-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DirectoryRepository читает факты авторизации: сессии, воркспейсы, членство.
// Запись принадлежит внешнему auth-сервису.
type DirectoryRepository struct {
	db *pgxpool.Pool
}

func NewDirectoryRepository(db *pgxpool.Pool) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

func (r *DirectoryRepository) SessionByToken(ctx context.Context, token string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.QueryRow(ctx, `
		SELECT s.token, s.user_id, s.expires_at, u.id, u.email, u.fullname, u.avatar_url
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = $1`,
		token).Scan(&s.Token, &s.UserID, &s.ExpiresAt, &s.User.ID, &s.User.Email, &s.User.Fullname, &s.User.AvatarURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAuthentication
		}
		return nil, storeErr("load session", err)
	}
	return &s, nil
}

func (r *DirectoryRepository) WorkspaceExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM workspaces WHERE id=$1)`, id).Scan(&exists)
	if err != nil {
		return false, storeErr("check workspace", err)
	}
	return exists, nil
}

func (r *DirectoryRepository) IsMember(ctx context.Context, workspaceID string, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM members WHERE workspace_id=$1 AND user_id=$2)`,
		workspaceID, userID).Scan(&exists)
	if err != nil {
		return false, storeErr("check membership", err)
	}
	return exists, nil
}
