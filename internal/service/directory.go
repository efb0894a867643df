package service

import (
	"context"

	"github.com/cwrk-planet/fanout-service/internal/domain"
)

// Directory — внешний источник фактов авторизации. Ядро только читает.
type Directory interface {
	SessionByToken(ctx context.Context, token string) (*domain.Session, error)
	WorkspaceExists(ctx context.Context, id string) (bool, error)
	IsMember(ctx context.Context, workspaceID string, userID int64) (bool, error)
}

// MessageStore — внешнее хранилище сообщений с транзакционной семантикой.
// ToggleReaction обязан быть одной транзакцией: read-branch-write-reread
// пересекает точку ожидания, и блокировка в процессе его не спасает.
type MessageStore interface {
	Create(ctx context.Context, d domain.MessageDraft) (*domain.Message, error)
	Edit(ctx context.Context, id, body string) (*domain.Message, error)
	Delete(ctx context.Context, id string) (authorMemberID int64, err error)
	ToggleReaction(ctx context.Context, messageID string, memberID int64, value string) (*domain.Message, error)
	WorkspaceOf(ctx context.Context, messageID string) (string, error)
}
