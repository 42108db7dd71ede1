// Package actions implements the client-initiated mutations: selecting and
// creating chats, sending messages, blocking, and group administration.
// Actions touch the store immediately and converge with the authoritative
// push event for the same logical change; call failures are logged, never
// rolled back; a later reconciliation pass or reload corrects drift.
package actions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/osilveira/courier/internal/session"
	"github.com/osilveira/courier/internal/store"
)

// API is the REST surface the pipeline depends on.
type API interface {
	ListMessages(ctx context.Context, chatID, query string) ([]store.Message, error)
	SendMessage(ctx context.Context, chatID, text string, attachments []store.Attachment) (store.Message, error)
	CreateChat(ctx context.Context, userID string) (store.Chat, error)
	CreateGroupChat(ctx context.Context, userIDs []string, name string) (store.Chat, error)
	MarkRead(ctx context.Context, chatID string) error
	RecallMessage(ctx context.Context, chatID, messageID string) error
	Block(ctx context.Context, userID string) error
	Unblock(ctx context.Context, userID string) error
	LeaveGroup(ctx context.Context, chatID string) error
	KickMember(ctx context.Context, chatID, userID string) error
	DeleteGroup(ctx context.Context, chatID string) error
	AddMembers(ctx context.Context, chatID string, userIDs []string) error
}

// Canceler invalidates pending search work. Selection changes clear the
// search overlay, so any in-flight query must be discarded with it.
type Canceler interface {
	Cancel()
}

const markReadTimeout = 10 * time.Second

// ErrNoChatSelected is returned by SendMessage when neither an open chat nor
// a pending recipient exists.
var ErrNoChatSelected = errors.New("no chat selected")

// Pipeline is the optimistic action pipeline.
type Pipeline struct {
	store  *store.Store
	sess   *session.Context
	api    API
	search Canceler
	logger *zap.Logger
}

// NewPipeline creates the pipeline. search may be nil when no searcher runs.
func NewPipeline(st *store.Store, sess *session.Context, api API, search Canceler, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		store:  st,
		sess:   sess,
		api:    api,
		search: search,
		logger: logger,
	}
}

// SelectChat opens the chat: clears any search overlay, zeroes the local
// unread counter and issues a fire-and-forget mark-read call (read state is
// best-effort; a failed call never restores the counter). It then loads the
// chat's message snapshot.
func (p *Pipeline) SelectChat(ctx context.Context, chatID string) error {
	p.cancelSearch()
	p.store.SetOpenChat(chatID)
	p.store.ResetUnread(chatID)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), markReadTimeout)
		defer cancel()
		if err := p.api.MarkRead(ctx, chatID); err != nil {
			p.logger.Error("mark read failed", zap.Error(err), zap.String("chat_id", chatID))
		}
	}()

	msgs, err := p.api.ListMessages(ctx, chatID, "")
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	for i := range msgs {
		msgs[i].IsIncoming = !p.sess.IsSelf(msgs[i].SenderID)
	}
	p.store.SetMessages(chatID, msgs)
	return nil
}

// SelectRecipient targets a user for a new conversation. If a direct chat
// with them already exists it is simply opened; otherwise the store holds the
// user as the pending recipient; no chat exists until the first send.
func (p *Pipeline) SelectRecipient(ctx context.Context, user store.User) error {
	if chatID, ok := p.store.DirectChatWith(user.ID); ok {
		return p.SelectChat(ctx, chatID)
	}
	p.cancelSearch()
	p.store.ClearSearch()
	p.store.SetPendingRecipient(user)
	return nil
}

func (p *Pipeline) cancelSearch() {
	if p.search != nil {
		p.search.Cancel()
	}
}

// SendMessage sends through the open chat, first creating the chat when only
// a pending recipient exists. The sent message is never appended here: the
// server echo over the channel is the single append path, so dedup by id
// stays the only guard against double entry.
func (p *Pipeline) SendMessage(ctx context.Context, text string, attachments []store.Attachment) error {
	chatID := p.store.OpenChatID()
	if user, ok := p.store.PendingRecipient(); ok {
		chat, err := p.api.CreateChat(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("create chat: %w", err)
		}
		p.store.UpsertChat(chat)
		p.store.SetOpenChat(chat.ID) // clears the pending recipient
		chatID = chat.ID
	}
	if chatID == "" {
		return ErrNoChatSelected
	}

	if _, err := p.api.SendMessage(ctx, chatID, text, attachments); err != nil {
		p.logger.Error("send failed", zap.Error(err), zap.String("chat_id", chatID))
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// CreateGroupChat creates a group and opens it.
func (p *Pipeline) CreateGroupChat(ctx context.Context, userIDs []string, name string) (store.Chat, error) {
	chat, err := p.api.CreateGroupChat(ctx, userIDs, name)
	if err != nil {
		return store.Chat{}, fmt.Errorf("create group chat: %w", err)
	}
	p.store.UpsertChat(chat)
	p.store.SetOpenChat(chat.ID)
	return chat, nil
}

// Block blocks the user. The local mutation mirrors the user_block_update
// rule so a single-client session stays correct even if the broadcast to
// self never arrives; the broadcast, if it comes, re-applies idempotently.
func (p *Pipeline) Block(ctx context.Context, userID string) error {
	p.store.Block(userID)
	if err := p.api.Block(ctx, userID); err != nil {
		p.logger.Error("block failed", zap.Error(err), zap.String("user_id", userID))
		return fmt.Errorf("block: %w", err)
	}
	return nil
}

// Unblock unblocks the user.
func (p *Pipeline) Unblock(ctx context.Context, userID string) error {
	p.store.Unblock(userID)
	if err := p.api.Unblock(ctx, userID); err != nil {
		p.logger.Error("unblock failed", zap.Error(err), zap.String("user_id", userID))
		return fmt.Errorf("unblock: %w", err)
	}
	return nil
}

// LeaveGroup leaves the group; locally this is the user_kicked rule for self.
func (p *Pipeline) LeaveGroup(ctx context.Context, chatID string) error {
	p.store.RemoveChat(chatID)
	if err := p.api.LeaveGroup(ctx, chatID); err != nil {
		p.logger.Error("leave group failed", zap.Error(err), zap.String("chat_id", chatID))
		return fmt.Errorf("leave group: %w", err)
	}
	return nil
}

// KickMember removes a member; locally this is the member_removed rule.
func (p *Pipeline) KickMember(ctx context.Context, chatID, userID string) error {
	p.store.RemoveParticipant(chatID, userID)
	if err := p.api.KickMember(ctx, chatID, userID); err != nil {
		p.logger.Error("kick member failed", zap.Error(err),
			zap.String("chat_id", chatID), zap.String("user_id", userID))
		return fmt.Errorf("kick member: %w", err)
	}
	return nil
}

// DeleteGroup dissolves the group; locally this is the group_dissolved rule.
func (p *Pipeline) DeleteGroup(ctx context.Context, chatID string) error {
	p.store.RemoveChat(chatID)
	if err := p.api.DeleteGroup(ctx, chatID); err != nil {
		p.logger.Error("delete group failed", zap.Error(err), zap.String("chat_id", chatID))
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

// AddMembers adds members to the group; locally this is the member_added rule.
func (p *Pipeline) AddMembers(ctx context.Context, chatID string, members []store.Participant) error {
	p.store.AddParticipants(chatID, members)
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	if err := p.api.AddMembers(ctx, chatID, ids); err != nil {
		p.logger.Error("add members failed", zap.Error(err), zap.String("chat_id", chatID))
		return fmt.Errorf("add members: %w", err)
	}
	return nil
}

// RecallMessage recalls a sent message; locally this is the message_update rule.
func (p *Pipeline) RecallMessage(ctx context.Context, chatID, messageID string) error {
	p.store.MarkRecalled(chatID, messageID)
	if err := p.api.RecallMessage(ctx, chatID, messageID); err != nil {
		p.logger.Error("recall failed", zap.Error(err),
			zap.String("chat_id", chatID), zap.String("message_id", messageID))
		return fmt.Errorf("recall message: %w", err)
	}
	return nil
}
