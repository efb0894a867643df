package service

import (
	"context"
	"errors"
	"strings"

	"github.com/cwrk-planet/fanout-service/internal/domain"
)

// MessageService — единый пайплайн мутаций для всех видов комнат. Каждая
// операция сначала перепроверяет членство в воркспейсе сообщения и
// останавливается на первой ошибке — до любых мутаций в хранилище.
type MessageService struct {
	store     MessageStore
	directory Directory
}

func NewMessageService(store MessageStore, directory Directory) *MessageService {
	return &MessageService{store: store, directory: directory}
}

// Send сохраняет новое сообщение (или реплай, если задан parentId) и
// возвращает его гидрированным для рассылки.
func (s *MessageService) Send(ctx context.Context, d domain.MessageDraft) (*domain.Message, error) {
	if strings.TrimSpace(d.Body) == "" {
		return nil, errors.New("empty message")
	}
	if d.Anchor().ID == "" {
		return nil, errors.New("message has no channel or conversation")
	}

	if err := s.authorize(ctx, d.WorkspaceID, d.UserID); err != nil {
		return nil, err
	}

	return s.store.Create(ctx, d)
}

func (s *MessageService) Edit(ctx context.Context, userID int64, messageID, body string) (*domain.Message, error) {
	if err := s.authorizeMessage(ctx, messageID, userID); err != nil {
		return nil, err
	}
	return s.store.Edit(ctx, messageID, body)
}

// Delete убирает сообщение вместе с прямыми реплаями (атомарно в store).
// Возвращает member_id автора для payload'а message-deleted.
func (s *MessageService) Delete(ctx context.Context, userID int64, messageID string) (int64, error) {
	if err := s.authorizeMessage(ctx, messageID, userID); err != nil {
		return 0, err
	}
	return s.store.Delete(ctx, messageID)
}

// ToggleReaction атомарно переключает тройку (message, member, value) и
// возвращает перечитанное гидрированное сообщение.
func (s *MessageService) ToggleReaction(ctx context.Context, userID int64, messageID string, memberID int64, value string) (*domain.Message, error) {
	if err := s.authorizeMessage(ctx, messageID, userID); err != nil {
		return nil, err
	}
	return s.store.ToggleReaction(ctx, messageID, memberID, value)
}

func (s *MessageService) authorize(ctx context.Context, workspaceID string, userID int64) error {
	exists, err := s.directory.WorkspaceExists(ctx, workspaceID)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrWorkspaceNotFound
	}

	isMember, err := s.directory.IsMember(ctx, workspaceID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return domain.ErrUnauthorized
	}
	return nil
}

func (s *MessageService) authorizeMessage(ctx context.Context, messageID string, userID int64) error {
	workspaceID, err := s.store.WorkspaceOf(ctx, messageID)
	if err != nil {
		return err
	}

	isMember, err := s.directory.IsMember(ctx, workspaceID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return domain.ErrUnauthorized
	}
	return nil
}
