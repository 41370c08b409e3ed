package client

import (
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"chat-relay/internal/models"
	"chat-relay/internal/presence"
)

func env(t *testing.T, event string, payload any) models.Envelope {
	t.Helper()
	e, err := models.NewEnvelope(event, payload)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func newTestState(t *testing.T) (*State, *presence.ManualClock, *atomic.Int32) {
	t.Helper()
	clock := presence.NewManualClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	s := NewState(clock, nil)
	var changes atomic.Int32
	s.OnChange(func() { changes.Add(1) })
	return s, clock, &changes
}

func mustApply(t *testing.T, s *State, e models.Envelope) {
	t.Helper()
	if err := s.Apply(e); err != nil {
		t.Fatalf("Apply(%s): %v", e.Event, err)
	}
}

func TestStateIdentityAndSessions(t *testing.T) {
	s, _, changes := newTestState(t)
	mustApply(t, s, env(t, models.EventConnected, models.Connected{ID: "me"}))
	s.SetProfile("Ana", "555")

	mustApply(t, s, env(t, models.EventUsersUpdated, []models.Session{
		{ID: "me", Name: "Ana", Status: models.StatusOnline},
		{ID: "abcdefghij", Name: "", Status: models.StatusAway},
		{ID: "", Name: "ghost"},
		{ID: "z", Name: "Zed"},
	}))

	self := s.Self()
	if self.ID != "me" || self.Name != "Ana" || self.Phone != "555" {
		t.Errorf("self = %+v", self)
	}
	list := s.Sessions()
	if len(list) != 3 {
		t.Fatalf("sessions = %d, want 3", len(list))
	}
	if list[1].Name != "User_abcde" {
		t.Errorf("blank name sanitised to %q", list[1].Name)
	}
	if list[2].Status != models.StatusOnline {
		t.Errorf("blank status = %q, want online", list[2].Status)
	}

	// A new snapshot replaces the old one wholesale.
	mustApply(t, s, env(t, models.EventUsersUpdated, []models.Session{{ID: "z", Name: "Zed"}}))
	if _, ok := s.Session("me"); ok {
		t.Error("old snapshot entry survived")
	}
	if changes.Load() != 4 {
		t.Errorf("changes = %d, want 4", changes.Load())
	}
}

func TestStateConversationAndRead(t *testing.T) {
	s, _, _ := newTestState(t)
	mustApply(t, s, env(t, models.EventConnected, models.Connected{ID: "me"}))

	msgs := []models.Message{
		{ID: "1", From: "me", To: "bob", Message: "hi"},
		{ID: "2", From: "bob", To: "me", Message: "hey"},
		{ID: "3", From: "carol", To: "me", Message: "psst"},
		{ID: "4", From: "bob", To: models.BroadcastTarget, Message: "all"},
	}
	for _, m := range msgs {
		mustApply(t, s, env(t, models.EventNewMessage, m))
	}

	conv := s.Conversation("bob")
	if len(conv) != 2 || conv[0].ID != "1" || conv[1].ID != "2" {
		t.Errorf("conversation(bob) = %+v", conv)
	}
	if all := s.Conversation(models.BroadcastTarget); len(all) != 1 || all[0].ID != "4" {
		t.Errorf("conversation(all) = %+v", all)
	}

	mustApply(t, s, env(t, models.EventMessageRead, models.Message{ID: "1", Read: true}))
	for _, m := range s.Messages() {
		if got := m.Read; got != (m.ID == "1") {
			t.Errorf("message %s read = %v", m.ID, got)
		}
	}
	if len(s.Messages()) != 4 {
		t.Error("message_read must not append")
	}
}

func TestStateTypingExpiry(t *testing.T) {
	s, clock, _ := newTestState(t)
	mustApply(t, s, env(t, models.EventUsersUpdated, []models.Session{{ID: "b", Name: "Bob"}, {ID: "c", Name: "Cy"}}))

	mustApply(t, s, env(t, models.EventUserTyping, "b"))
	if got := s.Typing(); len(got) != 1 || got[0] != "Bob" {
		t.Fatalf("typing = %v", got)
	}

	// A second event refreshes the deadline.
	clock.Advance(1500 * time.Millisecond)
	mustApply(t, s, env(t, models.EventUserTyping, "b"))
	mustApply(t, s, env(t, models.EventUserTyping, "c"))
	clock.Advance(1500 * time.Millisecond)
	if got := s.Typing(); len(got) != 2 || got[0] != "Bob" || got[1] != "Cy" {
		t.Errorf("typing after refresh = %v", got)
	}

	clock.Advance(600 * time.Millisecond)
	if got := s.Typing(); len(got) != 0 {
		t.Errorf("typing after expiry = %v", got)
	}
}

func TestStateTypingFromUnknownSessionIgnored(t *testing.T) {
	s, clock, changes := newTestState(t)
	mustApply(t, s, env(t, models.EventUserTyping, "nobody"))
	if len(s.Typing()) != 0 || changes.Load() != 0 {
		t.Error("unknown typing id changed state")
	}
	if clock.Pending() != 0 {
		t.Error("timer armed for unknown session")
	}
}

func TestStateNotificationsExpire(t *testing.T) {
	s, clock, changes := newTestState(t)
	mustApply(t, s, env(t, models.EventNotification, models.Notification{From: "Bob", Message: "hi"}))
	clock.Advance(2 * time.Second)
	mustApply(t, s, models.Envelope{Event: models.EventNotification})

	notes := s.Notifications()
	if len(notes) != 2 {
		t.Fatalf("notes = %d, want 2", len(notes))
	}
	if notes[1].From != "System" || notes[1].Message != "Notification" {
		t.Errorf("defaults = %+v", notes[1])
	}

	clock.Advance(3 * time.Second)
	if notes := s.Notifications(); len(notes) != 1 || notes[0].From != "System" {
		t.Errorf("after first expiry = %+v", notes)
	}
	clock.Advance(2 * time.Second)
	if len(s.Notifications()) != 0 {
		t.Error("notifications not expired")
	}
	if changes.Load() != 4 {
		t.Errorf("changes = %d, want 4", changes.Load())
	}
}

func TestStateSelect(t *testing.T) {
	s, _, _ := newTestState(t)
	if !s.Select("bob") {
		t.Error("first select reported no change")
	}
	if s.Select("bob") {
		t.Error("reselect reported a change")
	}
	if s.Selected() != "bob" {
		t.Errorf("selected = %q", s.Selected())
	}
}

func TestStateRejectsBadEvents(t *testing.T) {
	s, _, _ := newTestState(t)
	tests := []models.Envelope{
		{Event: "dance"},
		{Event: models.EventUsersUpdated, Data: json.RawMessage(`{"id":1}`)},
		{Event: models.EventNewMessage, Data: json.RawMessage(`"x"`)},
		{Event: models.EventUserTyping, Data: json.RawMessage(`42`)},
	}
	for _, e := range tests {
		if err := s.Apply(e); err == nil {
			t.Errorf("Apply(%s %s) = nil, want error", e.Event, e.Data)
		}
	}
}
