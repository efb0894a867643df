package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cwrk-planet/fanout-service/internal/domain"
	"github.com/cwrk-planet/fanout-service/pkg/logger"

	"github.com/gorilla/websocket"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

type Presence interface {
	Join(ctx context.Context, workspaceID string, entry domain.PresenceEntry) ([]domain.PresenceEntry, error)
	Leave(workspaceID string, entry domain.PresenceEntry) ([]domain.PresenceEntry, bool)
}

type Messages interface {
	Send(ctx context.Context, d domain.MessageDraft) (*domain.Message, error)
	Edit(ctx context.Context, userID int64, messageID, body string) (*domain.Message, error)
	Delete(ctx context.Context, userID int64, messageID string) (int64, error)
	ToggleReaction(ctx context.Context, userID int64, messageID string, memberID int64, value string) (*domain.Message, error)
}

type Config struct {
	PingInterval   time.Duration
	AllowedOrigins []string
}

type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	auth     Authenticator
	presence Presence
	messages Messages

	pingEvery time.Duration
}

func NewServer(hub *Hub, auth Authenticator, presence Presence, messages Messages, cfg Config) *Server {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 15 * time.Second
	}
	return &Server{
		hub:      hub,
		auth:     auth,
		presence: presence,
		messages: messages,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		pingEvery: cfg.PingInterval,
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}

// WS endpoint: GET /ws?token=...
// Аутентификация — один раз на соединение, до апгрейда: без валидной сессии
// соединение не получает доступа ни к одной комнате.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	user, err := s.auth.Authenticate(r.Context(), token)
	if err != nil {
		http.Error(w, domain.ErrAuthentication.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newWsConn(conn, user)
	attrs := append([]slog.Attr{slog.Int64("user", user.ID)}, logger.AttrsFromCtx(r.Context())...)
	slog.LogAttrs(r.Context(), slog.LevelDebug, "ws connected", attrs...)

	go s.writeLoop(r.Context(), c)
	s.readLoop(r.Context(), c)

	// disconnect: снять со всех комнат, затем неявный leave-workspace
	s.hub.LeaveAll(c)
	if workspaceID, entry := c.clearPresence(); entry != nil {
		if snapshot, ok := s.presence.Leave(workspaceID, *entry); ok {
			s.hub.Broadcast(workspaceID, Event{Type: TypeUsersOnline, Payload: snapshot})
		}
	}

	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", "user", user.ID, "err", err)
	}
	slog.Debug("ws disconnected", "user", user.ID)
}

func (s *Server) readLoop(ctx context.Context, c *wsConn) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(1 << 20)
	c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		s.dispatch(ctx, c, msg.Type, msg.Payload)
	}
}

func (s *Server) dispatch(ctx context.Context, c *wsConn, typ string, payload json.RawMessage) {
	switch typ {
	case TypeJoinRoom:
		var p JoinRoomPayload
		if decode(payload, &p) == nil && p.RoomID != "" {
			s.hub.Join(p.RoomID, c)
		}
	case TypeJoinThread:
		var p JoinThreadPayload
		if decode(payload, &p) == nil && p.ThreadID != "" {
			s.hub.Join(p.ThreadID, c)
		}
	case TypeJoinWorkspace:
		var p WorkspacePayload
		if decode(payload, &p) == nil {
			s.handleJoinWorkspace(ctx, c, p)
		}
	case TypeLeaveWorkspace:
		var p WorkspacePayload
		if decode(payload, &p) == nil {
			s.handleLeaveWorkspace(c, p)
		}
	case TypeSendMessage:
		var p SendMessagePayload
		if decode(payload, &p) == nil {
			s.handleSendMessage(ctx, c, p)
		}
	case TypeEditMessage:
		var p EditMessagePayload
		if decode(payload, &p) == nil {
			s.handleEditMessage(ctx, c, p)
		}
	case TypeDeleteMessage:
		var p DeleteMessagePayload
		if decode(payload, &p) == nil {
			s.handleDeleteMessage(ctx, c, p)
		}
	case TypeReaction:
		var p ReactionPayload
		if decode(payload, &p) == nil {
			s.handleReaction(ctx, c, p)
		}
	case TypeSendReply:
		var p SendReplyPayload
		if decode(payload, &p) == nil && p.AnchorID != "" {
			// ретрансляция как есть, без сохранения
			s.hub.Broadcast(p.AnchorID, Event{Type: TypeNewReply, Payload: p.Reply})
		}
	default:
		// ignore
	}
}

func (s *Server) handleJoinWorkspace(ctx context.Context, c *wsConn, p WorkspacePayload) {
	entry := domain.PresenceEntry{MemberID: p.MemberID, UserID: p.UserID}

	// соединение держит не более одной presence-записи: при повторном
	// join-workspace прежняя запись снимается, чтобы не пережить соединение
	if oldWS, old := c.clearPresence(); old != nil && (oldWS != p.WorkspaceID || *old != entry) {
		if oldWS != p.WorkspaceID {
			s.hub.Leave(oldWS, c)
		}
		if snapshot, ok := s.presence.Leave(oldWS, *old); ok {
			s.hub.Broadcast(oldWS, Event{Type: TypeUsersOnline, Payload: snapshot})
		}
	}
	snapshot, err := s.presence.Join(ctx, p.WorkspaceID, entry)
	if err != nil {
		s.emitError(c, err, "failed to join workspace")
		return
	}

	s.hub.Join(p.WorkspaceID, c)
	c.setPresence(p.WorkspaceID, entry)
	s.hub.Broadcast(p.WorkspaceID, Event{Type: TypeUsersOnline, Payload: snapshot})
	slog.Debug("user joined workspace", "workspace", p.WorkspaceID, "member", p.MemberID)
}

func (s *Server) handleLeaveWorkspace(c *wsConn, p WorkspacePayload) {
	s.hub.Leave(p.WorkspaceID, c)

	entry := domain.PresenceEntry{MemberID: p.MemberID, UserID: p.UserID}
	if snapshot, ok := s.presence.Leave(p.WorkspaceID, entry); ok {
		s.hub.Broadcast(p.WorkspaceID, Event{Type: TypeUsersOnline, Payload: snapshot})
	}
	c.dropPresence(p.WorkspaceID, entry)
}

func (s *Server) handleSendMessage(ctx context.Context, c *wsConn, p SendMessagePayload) {
	saved, err := s.messages.Send(ctx, p.Message)
	if err != nil {
		s.emitError(c, err, "failed to save message")
		return
	}

	room := saved.Anchor().ID
	if saved.ParentID != nil {
		room = *saved.ParentID // реплай уходит в комнату треда
	}
	s.hub.Broadcast(room, Event{
		Type:    TypeNewMessage,
		Payload: NewMessagePayload{Message: *saved, Key: p.Message.Key},
	})
}

func (s *Server) handleEditMessage(ctx context.Context, c *wsConn, p EditMessagePayload) {
	updated, err := s.messages.Edit(ctx, c.user.ID, p.ID, p.Body)
	if err != nil {
		s.emitError(c, err, "failed to edit message")
		return
	}

	room := updated.Anchor().ID
	if updated.ParentID != nil {
		room = *updated.ParentID
	}
	s.hub.Broadcast(room, Event{Type: TypeMessageUpdated, Payload: updated})
}

func (s *Server) handleDeleteMessage(ctx context.Context, c *wsConn, p DeleteMessagePayload) {
	memberID, err := s.messages.Delete(ctx, c.user.ID, p.ID)
	if err != nil {
		s.emitError(c, err, "failed to delete message")
		return
	}

	s.hub.Broadcast(p.AnchorID, Event{
		Type:    TypeMessageDeleted,
		Payload: MessageDeletedPayload{ID: p.ID, MemberID: memberID},
	})
}

func (s *Server) handleReaction(ctx context.Context, c *wsConn, p ReactionPayload) {
	updated, err := s.messages.ToggleReaction(ctx, c.user.ID, p.MessageID, p.MemberID, p.Value)
	if err != nil {
		s.emitError(c, err, "failed to add reaction")
		return
	}

	s.hub.Broadcast(p.AnchorID, Event{Type: TypeReactionAdded, Payload: updated})
}

func (s *Server) writeLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		}
	}
}

// emitError шлёт событие error только инициатору; в комнаты ошибки не
// попадают никогда.
func (s *Server) emitError(c *wsConn, err error, fallback string) {
	slog.Warn("ws handler failed", "user", c.user.ID, "err", err)
	_ = c.Send(Event{Type: TypeError, Payload: clientError(err, fallback)})
}

var clientVisible = []error{
	domain.ErrAuthentication,
	domain.ErrUnauthorized,
	domain.ErrWorkspaceNotFound,
	domain.ErrMessageNotFound,
	domain.ErrParentNotFound,
	domain.ErrShutdown,
}

func clientError(err error, fallback string) string {
	for _, sentinel := range clientVisible {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return fallback
}

func decode(payload json.RawMessage, dst any) error {
	return json.Unmarshal(payload, dst)
}
