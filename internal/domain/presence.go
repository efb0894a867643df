package domain

// PresenceEntry is one online (member, user) pair inside a workspace's live
// set. Never persisted; lives only as long as the connection that created it.
type PresenceEntry struct {
	MemberID int64 `json:"memberId"`
	UserID   int64 `json:"userId"`
}
