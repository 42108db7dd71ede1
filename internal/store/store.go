// Package store holds the canonical in-memory client state: the ordered chat
// list, the open chat's message list, the session's blocked-user set, the
// pending new-chat recipient and the transient search overlay.
//
// Mutations come from exactly two writers, the reconciliation rules and the
// optimistic action pipeline, and are serialized behind one mutex so every
// rule runs to completion before the next. Readers always get deep copies;
// no mutable reference ever leaves the store.
package store

import (
	"sync"
	"time"

	"github.com/osilveira/courier/internal/bus"
)

// Store is the conversation store.
type Store struct {
	mu          sync.Mutex
	chats       []*Chat
	messages    []*Message // open chat only
	openChatID  string
	pending     *User
	blocked     map[string]struct{}
	msgResults  []Message // search overlays; nil means no active overlay
	userResults []User

	bus *bus.Bus
}

// New creates an empty store. The bus may be nil (tests).
func New(b *bus.Bus) *Store {
	return &Store{
		blocked: make(map[string]struct{}),
		bus:     b,
	}
}

func (s *Store) notify(kind string) {
	if s.bus != nil {
		s.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now()})
	}
}

func (s *Store) findChat(chatID string) (int, *Chat) {
	for i, c := range s.chats {
		if c.ID == chatID {
			return i, c
		}
	}
	return -1, nil
}

// UpsertChat inserts the chat at the top of the list if absent, else
// shallow-merges the incoming fields into the existing entry, preserving any
// field the partial does not carry. Flags and counters are owned by their
// dedicated primitives and are merged only on insert.
func (s *Store) UpsertChat(in Chat) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, c := s.findChat(in.ID)
	if c == nil {
		fresh := copyChat(&in)
		s.chats = append([]*Chat{fresh}, s.chats...)
		s.notify("store.chats_changed")
		return
	}
	if in.Name != "" {
		c.Name = in.Name
	}
	if in.AvatarURL != "" {
		c.AvatarURL = in.AvatarURL
	}
	if in.LastMessage != "" {
		c.LastMessage = in.LastMessage
	}
	if !in.LastMessageTime.IsZero() {
		c.LastMessageTime = in.LastMessageTime
	}
	if in.Participants != nil {
		c.Participants = append([]Participant(nil), in.Participants...)
	}
	s.notify("store.chats_changed")
}

// ReplaceChats swaps in a fresh snapshot of the chat list (initial fetch or
// self-healing refetch). Locally projected presence and block flags survive
// the swap for chats that were already known; the open selection is cleared
// if its chat no longer exists.
func (s *Store) ReplaceChats(chats []Chat) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]*Chat, 0, len(chats))
	for i := range chats {
		c := copyChat(&chats[i])
		if _, old := s.findChat(c.ID); old != nil {
			c.IsOnline = old.IsOnline
			c.IsBlockedBy = old.IsBlockedBy
		}
		next = append(next, c)
	}
	s.chats = next

	if s.openChatID != "" {
		if _, c := s.findChat(s.openChatID); c == nil {
			s.openChatID = ""
			s.messages = nil
			s.notify("store.messages_changed")
		}
	}
	s.notify("store.chats_changed")
}

// RemoveChat deletes the chat. If it was the open chat, the selection and its
// message list are cleared. Reports whether the chat was open.
func (s *Store) RemoveChat(chatID string) (wasOpen bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, c := s.findChat(chatID)
	if c == nil {
		return false
	}
	s.chats = append(s.chats[:i], s.chats[i+1:]...)
	if s.openChatID == chatID {
		wasOpen = true
		s.openChatID = ""
		s.messages = nil
		s.notify("store.messages_changed")
	}
	s.notify("store.chats_changed")
	return wasOpen
}

// MoveToTop reorders the chat to the head of the list. Activity-based
// ordering is always this explicit step, never a timestamp sort.
func (s *Store) MoveToTop(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, c := s.findChat(chatID)
	if c == nil || i == 0 {
		return
	}
	s.chats = append(s.chats[:i], s.chats[i+1:]...)
	s.chats = append([]*Chat{c}, s.chats...)
	s.notify("store.chats_changed")
}

// SetPreview updates the chat's last-message preview and activity time.
// Reports whether the chat exists.
func (s *Store) SetPreview(chatID, preview string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, c := s.findChat(chatID)
	if c == nil {
		return false
	}
	c.LastMessage = preview
	c.LastMessageTime = at
	s.notify("store.chats_changed")
	return true
}

// AdjustUnread adds delta to the chat's unread counter, clamped at zero.
func (s *Store) AdjustUnread(chatID string, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, c := s.findChat(chatID)
	if c == nil {
		return
	}
	c.UnreadCount += delta
	if c.UnreadCount < 0 {
		c.UnreadCount = 0
	}
	s.notify("store.chats_changed")
}

// ResetUnread zeroes the chat's unread counter.
func (s *Store) ResetUnread(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, c := s.findChat(chatID)
	if c == nil || c.UnreadCount == 0 {
		return
	}
	c.UnreadCount = 0
	s.notify("store.chats_changed")
}

// SetParticipants replaces the chat's participant list.
func (s *Store) SetParticipants(chatID string, participants []Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, c := s.findChat(chatID)
	if c == nil {
		return
	}
	c.Participants = append([]Participant(nil), participants...)
	s.notify("store.chats_changed")
}

// AddParticipants merges new members into the chat's participant list,
// skipping ids already present (idempotent against the optimistic twin).
func (s *Store) AddParticipants(chatID string, participants []Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, c := s.findChat(chatID)
	if c == nil {
		return
	}
	present := make(map[string]struct{}, len(c.Participants))
	for _, p := range c.Participants {
		present[p.UserID] = struct{}{}
	}
	changed := false
	for _, p := range participants {
		if _, ok := present[p.UserID]; ok {
			continue
		}
		c.Participants = append(c.Participants, p)
		present[p.UserID] = struct{}{}
		changed = true
	}
	if changed {
		s.notify("store.chats_changed")
	}
}

// RemoveParticipant trims the named member from the chat's participant list.
// Removing an already-removed participant is a no-op.
func (s *Store) RemoveParticipant(chatID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, c := s.findChat(chatID)
	if c == nil {
		return
	}
	for i, p := range c.Participants {
		if p.UserID == userID {
			c.Participants = append(c.Participants[:i], c.Participants[i+1:]...)
			s.notify("store.chats_changed")
			return
		}
	}
}

// SetUserOnline projects a presence fact onto every non-group chat the user
// participates in. Group chats are unaffected.
func (s *Store) SetUserOnline(userID string, online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for _, c := range s.chats {
		if c.IsGroup {
			continue
		}
		if hasParticipant(c, userID) && c.IsOnline != online {
			c.IsOnline = online
			changed = true
		}
	}
	if changed {
		s.notify("store.chats_changed")
	}
}

// SetBlockedBy marks every chat containing blockerID as (un)blocked-by.
func (s *Store) SetBlockedBy(blockerID string, blocked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for _, c := range s.chats {
		if hasParticipant(c, blockerID) && c.IsBlockedBy != blocked {
			c.IsBlockedBy = blocked
			changed = true
		}
	}
	if changed {
		s.notify("store.chats_changed")
	}
}

// Block adds the user to the session's blocked set.
func (s *Store) Block(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked[userID] = struct{}{}
	s.notify("store.blocked_changed")
}

// Unblock removes the user from the session's blocked set.
func (s *Store) Unblock(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blocked, userID)
	s.notify("store.blocked_changed")
}

// SetBlocked replaces the blocked set (initial snapshot).
func (s *Store) SetBlocked(userIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked = make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		s.blocked[id] = struct{}{}
	}
	s.notify("store.blocked_changed")
}

// IsBlocked reports whether the current user has blocked the given user.
func (s *Store) IsBlocked(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blocked[userID]
	return ok
}

// BlockedIDs returns a copy of the blocked set.
func (s *Store) BlockedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.blocked))
	for id := range s.blocked {
		ids = append(ids, id)
	}
	return ids
}

// SetOpenChat selects the chat for display. The previous message list, the
// pending recipient and any search overlay are cleared.
func (s *Store) SetOpenChat(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openChatID = chatID
	s.messages = nil
	s.pending = nil
	if s.msgResults != nil || s.userResults != nil {
		s.msgResults = nil
		s.userResults = nil
		s.notify("store.search_changed")
	}
	s.notify("store.messages_changed")
}

// ClearOpenChat drops the selection and its message list.
func (s *Store) ClearOpenChat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openChatID == "" {
		return
	}
	s.openChatID = ""
	s.messages = nil
	s.notify("store.messages_changed")
}

// OpenChatID returns the currently selected chat id ("" if none).
func (s *Store) OpenChatID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openChatID
}

// SetMessages loads a fetched message snapshot for the open chat. A snapshot
// for any other chat is stale (the selection moved while the fetch was in
// flight) and is discarded.
func (s *Store) SetMessages(chatID string, msgs []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chatID != s.openChatID {
		return
	}
	s.messages = make([]*Message, 0, len(msgs))
	for i := range msgs {
		s.messages = append(s.messages, copyMessage(&msgs[i]))
	}
	s.notify("store.messages_changed")
}

// AppendMessage appends to the open chat's list unless the message id is
// already present. Dedup by id is the single guard against the optimistic
// send path and the push echo both delivering the same logical message.
// Reports whether the message was appended.
func (s *Store) AppendMessage(m Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ChatID != s.openChatID || s.openChatID == "" {
		return false
	}
	for _, existing := range s.messages {
		if existing.ID == m.ID {
			return false
		}
	}
	s.messages = append(s.messages, copyMessage(&m))
	s.notify("store.messages_changed")
	return true
}

// MarkRecalled flags the message as recalled and clears its content. The flag
// is monotonic: a recalled message never regains text or attachments.
func (s *Store) MarkRecalled(chatID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chatID != s.openChatID {
		return false
	}
	for _, m := range s.messages {
		if m.ID != messageID {
			continue
		}
		if !m.IsRecalled {
			m.IsRecalled = true
			m.Text = ""
			m.Attachments = nil
			s.notify("store.messages_changed")
		}
		return true
	}
	return false
}

// SetPendingRecipient records a prospective recipient with no chat yet. No
// Chat row is created until the first send.
func (s *Store) SetPendingRecipient(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := u
	s.pending = &pending
	s.openChatID = ""
	s.messages = nil
	s.notify("store.messages_changed")
}

// PendingRecipient returns the prospective recipient, if any.
func (s *Store) PendingRecipient() (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return User{}, false
	}
	return *s.pending, true
}

// SetMessageResults installs an in-chat message search overlay. The canonical
// message list is untouched.
func (s *Store) SetMessageResults(results []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgResults = append([]Message{}, results...)
	s.notify("store.search_changed")
}

// MessageResults returns the message search overlay and whether one is active.
func (s *Store) MessageResults() ([]Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.msgResults == nil {
		return nil, false
	}
	return append([]Message(nil), s.msgResults...), true
}

// SetUserResults installs a user search overlay.
func (s *Store) SetUserResults(results []User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userResults = append([]User{}, results...)
	s.notify("store.search_changed")
}

// UserResults returns the user search overlay and whether one is active.
func (s *Store) UserResults() ([]User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userResults == nil {
		return nil, false
	}
	return append([]User(nil), s.userResults...), true
}

// ClearSearch drops both overlays; the display reverts to the canonical lists.
func (s *Store) ClearSearch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.msgResults == nil && s.userResults == nil {
		return
	}
	s.msgResults = nil
	s.userResults = nil
	s.notify("store.search_changed")
}

// Chat returns a snapshot of one chat.
func (s *Store) Chat(chatID string) (Chat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, c := s.findChat(chatID)
	if c == nil {
		return Chat{}, false
	}
	return *copyChat(c), true
}

// HasChat reports whether the chat is locally known.
func (s *Store) HasChat(chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, c := s.findChat(chatID)
	return c != nil
}

// Chats returns a snapshot of the chat list in display order.
func (s *Store) Chats() []Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Chat, 0, len(s.chats))
	for _, c := range s.chats {
		out = append(out, *copyChat(c))
	}
	return out
}

// Messages returns a snapshot of the open chat's message list.
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, *copyMessage(m))
	}
	return out
}

// DirectChatWith returns the id of the existing non-group chat containing the
// given user, if one exists.
func (s *Store) DirectChatWith(userID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.chats {
		if !c.IsGroup && hasParticipant(c, userID) {
			return c.ID, true
		}
	}
	return "", false
}

// Reset clears all state (logout).
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = nil
	s.messages = nil
	s.openChatID = ""
	s.pending = nil
	s.blocked = make(map[string]struct{})
	s.msgResults = nil
	s.userResults = nil
	s.notify("store.reset")
}

func hasParticipant(c *Chat, userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func copyChat(c *Chat) *Chat {
	dup := *c
	dup.Participants = append([]Participant(nil), c.Participants...)
	return &dup
}

func copyMessage(m *Message) *Message {
	dup := *m
	dup.Attachments = append([]Attachment(nil), m.Attachments...)
	dup.Reactions = append([]Reaction(nil), m.Reactions...)
	return &dup
}
