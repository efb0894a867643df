package ws

import (
	"encoding/json"

	"github.com/cwrk-planet/fanout-service/internal/domain"
)

// Входящие события
const (
	TypeJoinRoom       = "join-room"       // канал или диалог
	TypeJoinThread     = "join-thread"     // тред (id родительского сообщения)
	TypeJoinWorkspace  = "join-workspace"  // воркспейс + presence
	TypeLeaveWorkspace = "leave-workspace" // явный выход из воркспейса
	TypeSendMessage    = "send-message"
	TypeEditMessage    = "edit-message"
	TypeDeleteMessage  = "delete-message"
	TypeReaction       = "reaction"
	TypeSendReply      = "send-reply" // ретрансляция без сохранения
)

// Исходящие события
const (
	TypeNewMessage     = "new-message"
	TypeMessageUpdated = "message-updated"
	TypeMessageDeleted = "message-deleted"
	TypeReactionAdded  = "reaction-added" // имя историческое: шлётся и при снятии реакции
	TypeNewReply       = "new-reply"
	TypeUsersOnline    = "users-online"
	TypeError          = "error" // только отправителю, никогда в комнату
)

type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type JoinRoomPayload struct {
	RoomID   string `json:"roomId"`
	MemberID int64  `json:"memberId"`
}

type JoinThreadPayload struct {
	ThreadID string `json:"threadId"`
	MemberID int64  `json:"memberId"`
}

type WorkspacePayload struct {
	WorkspaceID string `json:"workspaceId"`
	MemberID    int64  `json:"memberId"`
	UserID      int64  `json:"userId"`
}

type SendMessagePayload struct {
	Message domain.MessageDraft `json:"message"`
}

type EditMessagePayload struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

type DeleteMessagePayload struct {
	ID       string `json:"id"`
	AnchorID string `json:"anchorId"`
}

type ReactionPayload struct {
	MessageID string `json:"messageId"`
	MemberID  int64  `json:"memberId"`
	Value     string `json:"value"`
	AnchorID  string `json:"anchorId"`
}

type SendReplyPayload struct {
	Reply    json.RawMessage `json:"reply"`
	AnchorID string          `json:"anchorId"`
}

// NewMessagePayload — гидрированное сообщение, аннотированное клиентским
// idempotency-ключом, чтобы отправитель снял optimistic-копию.
type NewMessagePayload struct {
	domain.Message
	Key string `json:"key,omitempty"`
}

type MessageDeletedPayload struct {
	ID       string `json:"id"`
	MemberID int64  `json:"memberId"`
}
