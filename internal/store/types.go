package store

import "time"

// Participant roles within a group chat.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Participant is a chat member reference.
type Participant struct {
	UserID    string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Role      string `json:"role,omitempty"`
}

// Chat represents a conversation in the canonical chat list. An empty ID is
// the sentinel for "not yet created": only a prospective recipient is known.
type Chat struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	AvatarURL       string        `json:"avatarUrl,omitempty"`
	IsGroup         bool          `json:"isGroup"`
	LastMessage     string        `json:"lastMessage,omitempty"`
	LastMessageTime time.Time     `json:"time,omitempty"`
	UnreadCount     int           `json:"unreadCount"`
	IsOnline        bool          `json:"isOnline"`
	IsBlockedBy     bool          `json:"isBlockedBy"`
	Participants    []Participant `json:"participants,omitempty"`
}

// Attachment is a file attached to a message.
type Attachment struct {
	URL      string `json:"fileUrl"`
	MimeType string `json:"fileType,omitempty"`
	FileName string `json:"fileName,omitempty"`
	Size     int64  `json:"fileSize,omitempty"`
}

// Reaction aggregates one emoji's reactions on a message.
type Reaction struct {
	Emoji   string `json:"emoji"`
	Count   int    `json:"count"`
	Reacted bool   `json:"reacted"`
}

// Message represents a message in the open chat's list. The server-assigned
// ID is the sole deduplication key. IsIncoming is derived locally from the
// session user and is recomputed on every reconciliation, never trusted from
// the wire.
type Message struct {
	ID          string       `json:"id"`
	ChatID      string       `json:"chatId"`
	SenderID    string       `json:"senderId"`
	SenderName  string       `json:"senderName,omitempty"`
	Text        string       `json:"text"`
	Time        time.Time    `json:"time"`
	IsIncoming  bool         `json:"isIncoming"`
	IsRead      bool         `json:"isRead"`
	IsRecalled  bool         `json:"isRecalled"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Reactions   []Reaction   `json:"reactions,omitempty"`
}

// User is a directory entry: a search result or a prospective chat recipient.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	IsOnline  bool   `json:"isOnline"`
}
