package domain

import "time"

// UserInfo — display fields of the user behind a member, denormalized into
// broadcast payloads so clients render without extra lookups.
type UserInfo struct {
	Fullname  *string `json:"fullname"`
	Email     string  `json:"email,omitempty"`
	AvatarURL *string `json:"avatarUrl"`
}

type Author struct {
	MemberID int64    `json:"memberId"`
	UserID   int64    `json:"userId"`
	User     UserInfo `json:"user"`
}

// Reaction is a presence fact keyed by (messageId, memberId, value);
// existence of the triple means the member has that reaction on the message.
type Reaction struct {
	MessageID string   `json:"messageId"`
	MemberID  int64    `json:"memberId"`
	Value     string   `json:"value"`
	Member    UserInfo `json:"member"`
}

type Message struct {
	ID             string     `json:"id"`
	Body           string     `json:"body"`
	MemberID       int64      `json:"memberId"`
	WorkspaceID    string     `json:"workspaceId"`
	ChannelID      *string    `json:"channelId"`
	ConversationID *string    `json:"conversationId"`
	ParentID       *string    `json:"parentId"`
	Attachments    []string   `json:"attachments"`
	Author         Author     `json:"member"`
	Reactions      []Reaction `json:"reactions"`
	Replies        []Message  `json:"replies,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Anchor returns the room the message belongs to. A message carries exactly
// one of channel/conversation; the store schema enforces that.
func (m *Message) Anchor() Anchor {
	if m.ChannelID != nil {
		return ChannelAnchor(*m.ChannelID)
	}
	if m.ConversationID != nil {
		return ConversationAnchor(*m.ConversationID)
	}
	return Anchor{}
}

// MessageDraft is a create command before the store assigns id/timestamps.
type MessageDraft struct {
	Body           string   `json:"body"`
	UserID         int64    `json:"userId"`
	MemberID       int64    `json:"memberId"`
	WorkspaceID    string   `json:"workspaceId"`
	ChannelID      *string  `json:"channelId"`
	ConversationID *string  `json:"conversationId"`
	ParentID       *string  `json:"parentId"`
	Attachments    []string `json:"attachments"`

	// Key is the client-supplied idempotency key, echoed back on the
	// new-message broadcast so the sender reconciles its optimistic copy.
	Key string `json:"key,omitempty"`
}

func (d *MessageDraft) Anchor() Anchor {
	if d.ChannelID != nil {
		return ChannelAnchor(*d.ChannelID)
	}
	if d.ConversationID != nil {
		return ConversationAnchor(*d.ConversationID)
	}
	return Anchor{}
}
