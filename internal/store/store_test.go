package store

import (
	"testing"
	"time"

	"github.com/osilveira/courier/internal/bus"
)

func testStore() *Store {
	return New(nil)
}

func directChat(id, name, otherID string) Chat {
	return Chat{
		ID:   id,
		Name: name,
		Participants: []Participant{
			{UserID: "me", Username: "me"},
			{UserID: otherID, Username: name},
		},
	}
}

func TestUpsertChatInsertsAtTop(t *testing.T) {
	s := testStore()
	s.UpsertChat(Chat{ID: "c1", Name: "Alice"})
	s.UpsertChat(Chat{ID: "c2", Name: "Bob"})

	chats := s.Chats()
	if len(chats) != 2 {
		t.Fatalf("got %d chats, want 2", len(chats))
	}
	if chats[0].ID != "c2" {
		t.Errorf("top chat = %q, want c2", chats[0].ID)
	}
}

func TestUpsertChatMergePreservesAbsentFields(t *testing.T) {
	s := testStore()
	s.UpsertChat(Chat{ID: "c1", Name: "Alice", AvatarURL: "http://a/alice.png"})
	s.AdjustUnread("c1", 3)

	// Partial update: only preview fields present.
	s.UpsertChat(Chat{ID: "c1", LastMessage: "hi", LastMessageTime: time.Unix(100, 0)})

	c, ok := s.Chat("c1")
	if !ok {
		t.Fatal("chat missing")
	}
	if c.Name != "Alice" || c.AvatarURL != "http://a/alice.png" {
		t.Errorf("merge dropped fields: %+v", c)
	}
	if c.LastMessage != "hi" {
		t.Errorf("LastMessage = %q, want hi", c.LastMessage)
	}
	if c.UnreadCount != 3 {
		t.Errorf("UnreadCount = %d, want 3 (not merged)", c.UnreadCount)
	}
}

func TestMoveToTop(t *testing.T) {
	s := testStore()
	s.UpsertChat(Chat{ID: "c1"})
	s.UpsertChat(Chat{ID: "c2"})
	s.UpsertChat(Chat{ID: "c3"}) // order: c3, c2, c1

	s.MoveToTop("c1")

	chats := s.Chats()
	if chats[0].ID != "c1" || chats[1].ID != "c3" || chats[2].ID != "c2" {
		t.Errorf("order = %s,%s,%s, want c1,c3,c2", chats[0].ID, chats[1].ID, chats[2].ID)
	}
}

func TestAdjustUnreadClampsAtZero(t *testing.T) {
	s := testStore()
	s.UpsertChat(Chat{ID: "c1"})
	s.AdjustUnread("c1", 2)
	s.AdjustUnread("c1", -5)

	c, _ := s.Chat("c1")
	if c.UnreadCount != 0 {
		t.Errorf("UnreadCount = %d, want 0", c.UnreadCount)
	}
}

func TestAppendMessageDedupByID(t *testing.T) {
	s := testStore()
	s.UpsertChat(Chat{ID: "c1"})
	s.SetOpenChat("c1")

	m := Message{ID: "m1", ChatID: "c1", Text: "hello"}
	if !s.AppendMessage(m) {
		t.Fatal("first append rejected")
	}
	if s.AppendMessage(m) {
		t.Error("duplicate id appended")
	}
	if got := len(s.Messages()); got != 1 {
		t.Errorf("got %d messages, want 1", got)
	}
}

func TestAppendMessageIgnoresOtherChats(t *testing.T) {
	s := testStore()
	s.UpsertChat(Chat{ID: "c1"})
	s.UpsertChat(Chat{ID: "c2"})
	s.SetOpenChat("c2")

	if s.AppendMessage(Message{ID: "m1", ChatID: "c1"}) {
		t.Error("appended message for a chat that is not open")
	}
	if got := len(s.Messages()); got != 0 {
		t.Errorf("got %d messages, want 0", got)
	}
}

func TestMarkRecalledIsMonotonic(t *testing.T) {
	s := testStore()
	s.UpsertChat(Chat{ID: "c1"})
	s.SetOpenChat("c1")
	s.AppendMessage(Message{ID: "m1", ChatID: "c1", Text: "secret", Attachments: []Attachment{{URL: "http://f/x"}}})

	if !s.MarkRecalled("c1", "m1") {
		t.Fatal("recall target not found")
	}
	// Second recall is a no-op, not an error.
	if !s.MarkRecalled("c1", "m1") {
		t.Fatal("second recall reported missing")
	}

	msgs := s.Messages()
	if !msgs[0].IsRecalled {
		t.Error("IsRecalled = false, want true")
	}
	if msgs[0].Text != "" || len(msgs[0].Attachments) != 0 {
		t.Errorf("content not cleared: text=%q attachments=%d", msgs[0].Text, len(msgs[0].Attachments))
	}
}

func TestRemoveChatClearsOpenSelection(t *testing.T) {
	s := testStore()
	s.UpsertChat(Chat{ID: "c1"})
	s.SetOpenChat("c1")
	s.AppendMessage(Message{ID: "m1", ChatID: "c1"})

	wasOpen := s.RemoveChat("c1")
	if !wasOpen {
		t.Error("wasOpen = false, want true")
	}
	if s.OpenChatID() != "" {
		t.Errorf("OpenChatID = %q, want empty", s.OpenChatID())
	}
	if len(s.Messages()) != 0 {
		t.Error("message list not cleared")
	}
	if s.RemoveChat("c1") {
		t.Error("removing a missing chat reported wasOpen")
	}
}

func TestAddParticipantsSkipsExisting(t *testing.T) {
	s := testStore()
	s.UpsertChat(Chat{ID: "g1", IsGroup: true, Participants: []Participant{{UserID: "u1"}}})

	s.AddParticipants("g1", []Participant{{UserID: "u1"}, {UserID: "u2"}})
	s.AddParticipants("g1", []Participant{{UserID: "u2"}})

	c, _ := s.Chat("g1")
	if len(c.Participants) != 2 {
		t.Errorf("got %d participants, want 2", len(c.Participants))
	}
}

func TestRemoveParticipantIdempotent(t *testing.T) {
	s := testStore()
	s.UpsertChat(Chat{ID: "g1", IsGroup: true, Participants: []Participant{{UserID: "u1"}, {UserID: "u2"}}})

	s.RemoveParticipant("g1", "u1")
	s.RemoveParticipant("g1", "u1")

	c, _ := s.Chat("g1")
	if len(c.Participants) != 1 || c.Participants[0].UserID != "u2" {
		t.Errorf("participants = %+v, want only u2", c.Participants)
	}
}

func TestSetUserOnlineSkipsGroups(t *testing.T) {
	s := testStore()
	s.UpsertChat(directChat("c1", "Alice", "u1"))
	s.UpsertChat(Chat{ID: "g1", IsGroup: true, Participants: []Participant{{UserID: "u1"}}})

	s.SetUserOnline("u1", true)

	direct, _ := s.Chat("c1")
	group, _ := s.Chat("g1")
	if !direct.IsOnline {
		t.Error("direct chat IsOnline = false, want true")
	}
	if group.IsOnline {
		t.Error("group chat IsOnline = true, want false")
	}
}

func TestSetBlockedBy(t *testing.T) {
	s := testStore()
	s.UpsertChat(directChat("c1", "Alice", "u1"))
	s.UpsertChat(directChat("c2", "Bob", "u2"))

	s.SetBlockedBy("u1", true)

	c1, _ := s.Chat("c1")
	c2, _ := s.Chat("c2")
	if !c1.IsBlockedBy {
		t.Error("c1.IsBlockedBy = false, want true")
	}
	if c2.IsBlockedBy {
		t.Error("c2.IsBlockedBy = true, want false")
	}

	s.SetBlockedBy("u1", false)
	c1, _ = s.Chat("c1")
	if c1.IsBlockedBy {
		t.Error("c1.IsBlockedBy not reverted")
	}
}

func TestBlockedSet(t *testing.T) {
	s := testStore()
	s.Block("u1")
	if !s.IsBlocked("u1") {
		t.Error("IsBlocked(u1) = false after Block")
	}
	s.Unblock("u1")
	if s.IsBlocked("u1") {
		t.Error("IsBlocked(u1) = true after Unblock")
	}

	s.SetBlocked([]string{"a", "b"})
	if len(s.BlockedIDs()) != 2 {
		t.Errorf("got %d blocked ids, want 2", len(s.BlockedIDs()))
	}
}

func TestSetOpenChatClearsPendingAndSearch(t *testing.T) {
	s := testStore()
	s.UpsertChat(Chat{ID: "c1"})
	s.SetPendingRecipient(User{ID: "u9", Username: "carol"})
	s.SetMessageResults([]Message{{ID: "m1"}})

	s.SetOpenChat("c1")

	if _, ok := s.PendingRecipient(); ok {
		t.Error("pending recipient survived SetOpenChat")
	}
	if _, ok := s.MessageResults(); ok {
		t.Error("search overlay survived SetOpenChat")
	}
}

func TestSetMessagesDiscardsStaleChat(t *testing.T) {
	s := testStore()
	s.UpsertChat(Chat{ID: "c1"})
	s.UpsertChat(Chat{ID: "c2"})
	s.SetOpenChat("c2")

	// A fetch issued for c1 completing after the selection moved to c2.
	s.SetMessages("c1", []Message{{ID: "m1", ChatID: "c1"}})

	if len(s.Messages()) != 0 {
		t.Error("stale message snapshot applied")
	}
}

func TestSearchIsolation(t *testing.T) {
	s := testStore()
	s.UpsertChat(Chat{ID: "c1"})
	s.SetOpenChat("c1")
	s.AppendMessage(Message{ID: "m1", ChatID: "c1", Text: "canonical"})

	s.SetMessageResults([]Message{{ID: "m9", ChatID: "c1", Text: "match"}})

	if got := len(s.Messages()); got != 1 {
		t.Fatalf("canonical list mutated: %d messages, want 1", got)
	}
	results, ok := s.MessageResults()
	if !ok || len(results) != 1 || results[0].ID != "m9" {
		t.Errorf("results = %+v, want [m9]", results)
	}

	s.ClearSearch()
	if _, ok := s.MessageResults(); ok {
		t.Error("overlay still active after ClearSearch")
	}
	if msgs := s.Messages(); len(msgs) != 1 || msgs[0].Text != "canonical" {
		t.Errorf("canonical list changed after ClearSearch: %+v", msgs)
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	s := testStore()
	s.UpsertChat(Chat{ID: "c1", Participants: []Participant{{UserID: "u1"}}})

	chats := s.Chats()
	chats[0].Name = "mutated"
	chats[0].Participants[0].UserID = "mutated"

	c, _ := s.Chat("c1")
	if c.Name == "mutated" || c.Participants[0].UserID == "mutated" {
		t.Error("snapshot shares memory with store")
	}
}

func TestDirectChatWith(t *testing.T) {
	s := testStore()
	s.UpsertChat(directChat("c1", "Alice", "u1"))
	s.UpsertChat(Chat{ID: "g1", IsGroup: true, Participants: []Participant{{UserID: "u2"}}})

	if id, ok := s.DirectChatWith("u1"); !ok || id != "c1" {
		t.Errorf("DirectChatWith(u1) = %q,%v, want c1,true", id, ok)
	}
	// Group membership does not count as a direct chat.
	if _, ok := s.DirectChatWith("u2"); ok {
		t.Error("DirectChatWith(u2) found a group chat")
	}
}

func TestReplaceChatsPreservesProjectedFlags(t *testing.T) {
	s := testStore()
	s.UpsertChat(directChat("c1", "Alice", "u1"))
	s.SetUserOnline("u1", true)
	s.SetBlockedBy("u1", true)
	s.SetOpenChat("c1")

	s.ReplaceChats([]Chat{directChat("c1", "Alice", "u1"), directChat("c2", "Bob", "u2")})

	c1, _ := s.Chat("c1")
	if !c1.IsOnline || !c1.IsBlockedBy {
		t.Errorf("projected flags lost: %+v", c1)
	}
	if s.OpenChatID() != "c1" {
		t.Errorf("open chat = %q, want c1", s.OpenChatID())
	}

	// Refetch that drops the open chat clears the selection.
	s.ReplaceChats([]Chat{directChat("c2", "Bob", "u2")})
	if s.OpenChatID() != "" {
		t.Errorf("open chat = %q, want empty after its removal", s.OpenChatID())
	}
}

func TestReset(t *testing.T) {
	s := testStore()
	s.UpsertChat(Chat{ID: "c1"})
	s.Block("u1")
	s.SetOpenChat("c1")

	s.Reset()

	if len(s.Chats()) != 0 || s.IsBlocked("u1") || s.OpenChatID() != "" {
		t.Error("Reset left state behind")
	}
}

func TestSetOpenChatNotifiesSearchCleared(t *testing.T) {
	b := bus.New()
	s := New(b)
	s.UpsertChat(Chat{ID: "c1"})
	s.SetUserResults([]User{{ID: "u1", Username: "alice"}})

	events, tok := b.Subscribe("store.search_changed", 4)
	defer b.Unsubscribe(tok)

	s.SetOpenChat("c1")

	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatal("no search_changed event when opening a chat dropped the overlay")
	}
	if _, ok := s.UserResults(); ok {
		t.Error("overlay survived SetOpenChat")
	}
}
