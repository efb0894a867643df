package domain

// RoomKind scopes a broadcast: four kinds share one multiplexer.
type RoomKind string

const (
	RoomChannel      RoomKind = "channel"
	RoomConversation RoomKind = "conversation"
	RoomThread       RoomKind = "thread"
	RoomWorkspace    RoomKind = "workspace"
)

// Anchor is the room a message belongs to: exactly one of channel or
// conversation. Thread replies broadcast to their parent's id instead.
type Anchor struct {
	Kind RoomKind
	ID   string
}

func ChannelAnchor(id string) Anchor      { return Anchor{Kind: RoomChannel, ID: id} }
func ConversationAnchor(id string) Anchor { return Anchor{Kind: RoomConversation, ID: id} }
