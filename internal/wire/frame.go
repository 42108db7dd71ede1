// Package wire defines the push-frame taxonomy and decodes inbound frames
// once, at the channel boundary. Every frame carries a "type" discriminator;
// a frame without one is the base message shape and resolves to the
// new-message kind, for compatibility with servers that predate the
// discriminator. Rules never inspect raw JSON.
package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/osilveira/courier/internal/store"
)

// Kind discriminates inbound push frames.
type Kind string

const (
	KindNewMessage       Kind = "new_message" // implicit: frames without a type field
	KindMessageUpdate    Kind = "message_update"
	KindUserStatusChange Kind = "user_status_change"
	KindUserBlockUpdate  Kind = "user_block_update"
	KindGroupEvent       Kind = "group_event"
)

// Group event subtypes.
const (
	GroupUserKicked    = "user_kicked"
	GroupMemberRemoved = "member_removed"
	GroupDissolved     = "group_dissolved"
	GroupAddedToGroup  = "added_to_group"
	GroupMemberAdded   = "member_added"
)

// Frame is the decoded tagged union. Exactly one payload field matching Kind
// is non-nil.
type Frame struct {
	Kind Kind

	Message       *store.Message
	MessageUpdate *MessageUpdate
	StatusChange  *UserStatusChange
	BlockUpdate   *UserBlockUpdate
	GroupEvent    *GroupEvent
}

// MessageUpdate announces a message recall. The message id travels in the
// same "id" field the base message shape uses.
type MessageUpdate struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"id"`
	Recalled  bool   `json:"isRecalled"`
}

// UserStatusChange announces a presence change.
type UserStatusChange struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

// UserBlockUpdate announces a block or unblock between two users.
type UserBlockUpdate struct {
	BlockerID string `json:"blockerId"`
	BlockedID string `json:"blockedId"`
	IsBlocked bool   `json:"isBlocked"`
}

// GroupEvent announces a group membership change.
type GroupEvent struct {
	Event   string              `json:"event"`
	ChatID  string              `json:"chatId"`
	UserID  string              `json:"userId,omitempty"`
	Members []store.Participant `json:"members,omitempty"`
}

// wireMessage is the base message shape as broadcast by the server.
type wireMessage struct {
	ID          string             `json:"id"`
	ChatID      string             `json:"chatId"`
	SenderID    string             `json:"senderId"`
	SenderName  string             `json:"senderName"`
	Text        string             `json:"text"`
	Time        string             `json:"time"`
	Attachments []store.Attachment `json:"attachments"`
}

// Decode parses one raw frame. Unknown discriminator values fall back to the
// new-message kind, matching the server's base message shape.
func Decode(data []byte) (Frame, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}

	switch Kind(probe.Type) {
	case KindMessageUpdate:
		var p MessageUpdate
		if err := json.Unmarshal(data, &p); err != nil {
			return Frame{}, fmt.Errorf("decode message_update: %w", err)
		}
		return Frame{Kind: KindMessageUpdate, MessageUpdate: &p}, nil

	case KindUserStatusChange:
		var p UserStatusChange
		if err := json.Unmarshal(data, &p); err != nil {
			return Frame{}, fmt.Errorf("decode user_status_change: %w", err)
		}
		return Frame{Kind: KindUserStatusChange, StatusChange: &p}, nil

	case KindUserBlockUpdate:
		var p UserBlockUpdate
		if err := json.Unmarshal(data, &p); err != nil {
			return Frame{}, fmt.Errorf("decode user_block_update: %w", err)
		}
		return Frame{Kind: KindUserBlockUpdate, BlockUpdate: &p}, nil

	case KindGroupEvent:
		var p GroupEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return Frame{}, fmt.Errorf("decode group_event: %w", err)
		}
		if p.Event == "" {
			return Frame{}, fmt.Errorf("decode group_event: missing event field")
		}
		return Frame{Kind: KindGroupEvent, GroupEvent: &p}, nil

	default:
		var w wireMessage
		if err := json.Unmarshal(data, &w); err != nil {
			return Frame{}, fmt.Errorf("decode message: %w", err)
		}
		if w.ID == "" || w.ChatID == "" {
			return Frame{}, fmt.Errorf("decode message: missing id or chatId")
		}
		return Frame{Kind: KindNewMessage, Message: w.toStoreMessage()}, nil
	}
}

func (w *wireMessage) toStoreMessage() *store.Message {
	return &store.Message{
		ID:          w.ID,
		ChatID:      w.ChatID,
		SenderID:    w.SenderID,
		SenderName:  w.SenderName,
		Text:        w.Text,
		Time:        parseTime(w.Time),
		Attachments: w.Attachments,
	}
}

// parseTime accepts the server's RFC 3339 timestamps; anything else falls
// back to arrival time. Frame timestamps never drive ordering (the chat list
// is reordered explicitly), so a lossy parse is acceptable.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Now()
}
