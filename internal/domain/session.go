package domain

import "time"

// Session is the Directory's record behind an opaque handshake token.
// The core only reads it; issuing and revoking belong to the auth service.
type Session struct {
	Token     string
	UserID    int64
	ExpiresAt time.Time
	User      User
}

func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

type User struct {
	ID        int64
	Email     string
	Fullname  *string
	AvatarURL *string
}

// Member is a (user, workspace) authorization fact owned by the Directory.
type Member struct {
	ID          int64
	UserID      int64
	WorkspaceID string
}
