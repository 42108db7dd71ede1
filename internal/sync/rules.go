package sync

import (
	"strings"

	"go.uber.org/zap"

	"github.com/osilveira/courier/internal/store"
	"github.com/osilveira/courier/internal/wire"
)

// Preview labels for attachment-only messages.
const (
	photoPreview = "📷 Photo"
	filePreview  = "📎 File"
)

// applyNewMessage is the default rule. It is the only rule whose miss (an
// unknown chat) actively repairs local state via refetch instead of no-oping.
func (e *Engine) applyNewMessage(msg store.Message) {
	// IsIncoming is derived, never trusted from the wire.
	msg.IsIncoming = !e.sess.IsSelf(msg.SenderID)

	open := e.store.OpenChatID()
	if msg.ChatID == open {
		e.store.AppendMessage(msg) // dedup by id inside
	}

	if !e.store.HasChat(msg.ChatID) {
		e.logger.Info("message for unknown chat, refetching chat list",
			zap.String("chat_id", msg.ChatID))
		e.refetchChats()
		return
	}

	e.store.SetPreview(msg.ChatID, previewText(&msg), msg.Time)
	if msg.ChatID == open {
		e.store.ResetUnread(msg.ChatID)
	} else if msg.IsIncoming {
		e.store.AdjustUnread(msg.ChatID, 1)
	}
	e.store.MoveToTop(msg.ChatID)
}

// applyMessageUpdate handles recalls. Recall is monotonic; a frame that would
// revert it is ignored.
func (e *Engine) applyMessageUpdate(p *wire.MessageUpdate) {
	if !p.Recalled {
		return
	}
	if !e.store.MarkRecalled(p.ChatID, p.MessageID) {
		e.logger.Debug("recall for unknown message ignored",
			zap.String("chat_id", p.ChatID), zap.String("message_id", p.MessageID))
	}
}

func (e *Engine) applyStatusChange(p *wire.UserStatusChange) {
	e.store.SetUserOnline(p.UserID, p.IsOnline)
}

// applyBlockUpdate projects a block fact onto whichever side of it the
// current user is. Block and unblock are the same symmetric rule.
func (e *Engine) applyBlockUpdate(p *wire.UserBlockUpdate) {
	switch {
	case e.sess.IsSelf(p.BlockerID):
		if p.IsBlocked {
			e.store.Block(p.BlockedID)
		} else {
			e.store.Unblock(p.BlockedID)
		}
	case e.sess.IsSelf(p.BlockedID):
		e.store.SetBlockedBy(p.BlockerID, p.IsBlocked)
	}
}

func (e *Engine) applyGroupEvent(p *wire.GroupEvent) {
	switch p.Event {
	case wire.GroupUserKicked:
		if e.sess.IsSelf(p.UserID) {
			// Kicked out: the chat is gone for us, closed if it was open.
			e.store.RemoveChat(p.ChatID)
			return
		}
		e.store.RemoveParticipant(p.ChatID, p.UserID)

	case wire.GroupMemberRemoved:
		e.store.RemoveParticipant(p.ChatID, p.UserID)

	case wire.GroupDissolved:
		e.store.RemoveChat(p.ChatID)

	case wire.GroupAddedToGroup:
		// We were added to a group we don't know about.
		e.refetchChats()

	case wire.GroupMemberAdded:
		e.store.AddParticipants(p.ChatID, p.Members)

	default:
		e.logger.Warn("unknown group event ignored", zap.String("event", p.Event))
	}
}

// previewText is the chat-list preview for a message: its text, or a fixed
// glyph label when the message carries only attachments.
func previewText(m *store.Message) string {
	if m.Text != "" {
		return m.Text
	}
	if len(m.Attachments) == 0 {
		return ""
	}
	if strings.HasPrefix(m.Attachments[0].MimeType, "image/") {
		return photoPreview
	}
	return filePreview
}
