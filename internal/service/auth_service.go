package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cwrk-planet/fanout-service/internal/domain"
)

// AuthService — гейт рукопожатия: токен проверяется один раз на соединение,
// до любых операций с комнатами.
type AuthService struct {
	directory Directory
	now       func() time.Time
}

func NewAuthService(directory Directory, now func() time.Time) *AuthService {
	if now == nil {
		now = time.Now
	}
	return &AuthService{directory: directory, now: now}
}

// Authenticate резолвит токен через Directory. Отсутствующий, неизвестный и
// просроченный токен снаружи неразличимы — все три случая дают
// ErrAuthentication.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, domain.ErrAuthentication
	}

	sess, err := s.directory.SessionByToken(ctx, token)
	if err != nil {
		if !errors.Is(err, domain.ErrAuthentication) {
			slog.Error("auth.authenticate failed", slog.Any("err", err))
		}
		return nil, domain.ErrAuthentication
	}

	if sess.IsExpired(s.now()) {
		return nil, domain.ErrAuthentication
	}

	u := sess.User
	return &u, nil
}
