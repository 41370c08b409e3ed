package client

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"chat-relay/internal/models"
	"chat-relay/internal/presence"

	"go.uber.org/zap"
)

const (
	TypingTTL       = 2 * time.Second
	NotificationTTL = 5 * time.Second
)

// Note is a queued notification with the id used to expire it.
type Note struct {
	ID uint64
	models.Notification
}

type typingEntry struct {
	gen   uint64
	timer presence.Timer
}

// State mirrors what the server has told this client. Every mutation,
// including expiries, fires the OnChange callback outside the lock.
type State struct {
	mu     sync.Mutex
	clock  presence.Clock
	logger *zap.Logger

	self     models.Session
	sessions []models.Session
	messages []models.Message
	typing   map[string]*typingEntry
	notes    []Note
	nextNote uint64
	selected string

	onChange func()
}

func NewState(clock presence.Clock, logger *zap.Logger) *State {
	if clock == nil {
		clock = presence.SystemClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &State{
		clock:  clock,
		logger: logger,
		typing: make(map[string]*typingEntry),
	}
}

// OnChange registers the redraw callback. It must not call back into
// State while holding its own locks.
func (s *State) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// update runs fn under the lock and fires OnChange when it reports a change.
func (s *State) update(fn func() bool) {
	s.mu.Lock()
	changed := fn()
	cb := s.onChange
	s.mu.Unlock()
	if changed && cb != nil {
		cb()
	}
}

// Apply folds one server event into the state.
func (s *State) Apply(env models.Envelope) error {
	switch env.Event {
	case models.EventConnected:
		var c models.Connected
		if err := json.Unmarshal(env.Data, &c); err != nil {
			return fmt.Errorf("%s: %w", env.Event, err)
		}
		s.update(func() bool {
			s.self.ID = c.ID
			return true
		})

	case models.EventUsersUpdated:
		var list []models.Session
		if err := json.Unmarshal(env.Data, &list); err != nil {
			return fmt.Errorf("%s: %w", env.Event, err)
		}
		s.update(func() bool {
			s.sessions = sanitizeSessions(list)
			return true
		})

	case models.EventNewMessage:
		var msg models.Message
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return fmt.Errorf("%s: %w", env.Event, err)
		}
		s.update(func() bool {
			s.messages = append(s.messages, msg)
			return true
		})

	case models.EventMessageRead:
		var msg models.Message
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return fmt.Errorf("%s: %w", env.Event, err)
		}
		s.update(func() bool { return s.markReadLocked(msg.ID) })

	case models.EventUserTyping:
		var id string
		if err := json.Unmarshal(env.Data, &id); err != nil {
			return fmt.Errorf("%s: %w", env.Event, err)
		}
		s.update(func() bool { return s.typingLocked(id) })

	case models.EventNotification:
		var n models.Notification
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &n); err != nil {
				return fmt.Errorf("%s: %w", env.Event, err)
			}
		}
		s.Notify(n.From, n.Message)

	default:
		return fmt.Errorf("unknown event %q", env.Event)
	}
	return nil
}

// Notify queues a notification that disappears after NotificationTTL.
func (s *State) Notify(from, message string) {
	if from == "" {
		from = "System"
	}
	if message == "" {
		message = "Notification"
	}
	s.update(func() bool {
		s.nextNote++
		id := s.nextNote
		s.notes = append(s.notes, Note{ID: id, Notification: models.Notification{From: from, Message: message}})
		s.clock.AfterFunc(NotificationTTL, func() { s.expireNote(id) })
		return true
	})
}

func (s *State) expireNote(id uint64) {
	s.update(func() bool {
		for i, n := range s.notes {
			if n.ID == id {
				s.notes = append(s.notes[:i], s.notes[i+1:]...)
				return true
			}
		}
		return false
	})
}

func (s *State) markReadLocked(id string) bool {
	if id == "" {
		return false
	}
	changed := false
	for i := range s.messages {
		if s.messages[i].ID == id && !s.messages[i].Read {
			s.messages[i].Read = true
			changed = true
		}
	}
	return changed
}

// typingLocked marks the named sender as typing and (re)arms its expiry.
func (s *State) typingLocked(id string) bool {
	name := ""
	for _, sess := range s.sessions {
		if sess.ID == id {
			name = sess.Name
			break
		}
	}
	if name == "" {
		s.logger.Debug("typing from unknown session ignored", zap.String("session", id))
		return false
	}

	e, ok := s.typing[name]
	if !ok {
		e = &typingEntry{}
		s.typing[name] = e
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.gen++
	gen := e.gen
	e.timer = s.clock.AfterFunc(TypingTTL, func() { s.expireTyping(name, gen) })
	return true
}

func (s *State) expireTyping(name string, gen uint64) {
	s.update(func() bool {
		e, ok := s.typing[name]
		if !ok || e.gen != gen {
			return false
		}
		delete(s.typing, name)
		return true
	})
}

// SetProfile records the name and phone this client logged in with.
func (s *State) SetProfile(name, phone string) {
	s.update(func() bool {
		s.self.Name = name
		s.self.Phone = phone
		return true
	})
}

// Select switches the open conversation and reports whether it changed.
func (s *State) Select(id string) bool {
	changed := false
	s.update(func() bool {
		changed = s.selected != id
		s.selected = id
		return changed
	})
	return changed
}

func (s *State) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

func (s *State) Self() models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.self
}

func (s *State) Sessions() []models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Session(nil), s.sessions...)
}

// Session looks up a peer from the last snapshot.
func (s *State) Session(id string) (models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess, true
		}
	}
	return models.Session{}, false
}

func (s *State) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages...)
}

// Conversation returns the messages exchanged with peer, or the broadcast
// channel when peer is models.BroadcastTarget, in arrival order.
func (s *State) Conversation(peer string) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, m := range s.messages {
		switch {
		case peer == models.BroadcastTarget:
			if m.To == models.BroadcastTarget {
				out = append(out, m)
			}
		case m.To == models.BroadcastTarget:
		case m.From == peer && m.To == s.self.ID, m.From == s.self.ID && m.To == peer:
			out = append(out, m)
		}
	}
	return out
}

// Typing returns the names currently typing, sorted.
func (s *State) Typing() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.typing))
	for name := range s.typing {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *State) Notifications() []Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Note(nil), s.notes...)
}

// sanitizeSessions drops entries without an id and fills blank fields.
func sanitizeSessions(list []models.Session) []models.Session {
	out := make([]models.Session, 0, len(list))
	for _, sess := range list {
		if sess.ID == "" {
			continue
		}
		if sess.Name == "" {
			sess.Name = presence.DefaultName(sess.ID)
		}
		if sess.Status == "" {
			sess.Status = models.StatusOnline
		}
		out = append(out, sess)
	}
	return out
}
