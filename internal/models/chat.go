package models

// RoomKind is derived from a room's member count and never stored.
type RoomKind string

const (
	RoomKindDirect RoomKind = "direct"
	RoomKindGroup  RoomKind = "group"
)

// KindOf classifies a room by member count.
func KindOf(memberCount int) RoomKind {
	if memberCount > 2 {
		return RoomKindGroup
	}
	return RoomKindDirect
}

// ChatSummary is the per-user view of a room shown in the chat list.
type ChatSummary struct {
	RoomID      string   `json:"roomId"`
	LastMessage *Message `json:"lastMessage"`
	UnreadCnt   int      `json:"unreadCnt"`
	Available   bool     `json:"available"`
	IsGroupChat bool     `json:"isGroupChat"`
	Kind        RoomKind `json:"kind"`
	GroupName   string   `json:"groupName,omitempty"`
	MemberCount int      `json:"memberCount,omitempty"`
	Members     []string `json:"members,omitempty"`
	FriendID    string   `json:"friendId,omitempty"`
}
