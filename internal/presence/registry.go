package presence

import (
	"errors"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"chat-relay/internal/models"

	"go.uber.org/zap"
)

var ErrNotRegistered = errors.New("session not registered")

const (
	DefaultAwayAfter     = 60 * time.Second
	DefaultSweepInterval = 30 * time.Second
	DefaultGracePeriod   = 5 * time.Minute
)

// Same palette the room chat uses for user colours.
var avatarColors = []string{"#FF6B6B", "#4ECDC4", "#45B7D1", "#FFA07A", "#98D8C8", "#F7DC6F", "#BB8FCE"}

type Options struct {
	AwayAfter   time.Duration
	GracePeriod time.Duration
}

// Notifier receives the full session list after every visible change.
type Notifier func(snapshot []models.Session)

// Registry owns every session record and drives them through the presence machine.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	opts     Options
	clock    Clock
	notify   Notifier
	logger   *zap.Logger
}

type entry struct {
	session  models.Session
	purge    Timer
	purgeGen uint64
}

func NewRegistry(opts Options, clock Clock, notify Notifier, logger *zap.Logger) *Registry {
	if opts.AwayAfter <= 0 {
		opts.AwayAfter = DefaultAwayAfter
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*entry),
		opts:     opts,
		clock:    clock,
		notify:   notify,
		logger:   logger,
	}
}

// SetNotifier replaces the change callback. Used when the broadcaster is
// built after the registry.
func (r *Registry) SetNotifier(n Notifier) {
	r.mu.Lock()
	r.notify = n
	r.mu.Unlock()
}

// Login creates or overwrites the session for id and marks it online.
func (r *Registry) Login(id, name, phone string) models.Session {
	if name == "" {
		name = DefaultName(id)
	}
	r.apply(id, Login, nil, func(e *entry) {
		e.session.Name = name
		e.session.Phone = phone
		if e.session.AvatarColor == "" {
			e.session.AvatarColor = avatarColor(id)
		}
	})
	s, _ := r.Get(id)
	return s
}

// Touch records inbound activity. It reports false if id is not an active session.
func (r *Registry) Touch(id string) bool {
	return r.apply(id, Activity, nil, nil)
}

// SetCurrentChat records which conversation id has open. Counts as activity.
func (r *Registry) SetCurrentChat(id, chatID string) bool {
	return r.apply(id, Activity, nil, func(e *entry) {
		e.session.CurrentChat = chatID
	})
}

// Disconnect marks id offline and schedules its removal after the grace period.
func (r *Registry) Disconnect(id string) bool {
	return r.apply(id, Disconnect, nil, nil)
}

// Sweep demotes every online session whose last activity is older than AwayAfter.
// It returns the ids that were demoted.
func (r *Registry) Sweep() []string {
	now := r.clock.Now()

	r.mu.Lock()
	var stale []string
	for id, e := range r.sessions {
		if r.isStale(e, now) {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()
	sort.Strings(stale)

	var demoted []string
	for _, id := range stale {
		ok := r.apply(id, Stale, func(e *entry) bool {
			return r.isStale(e, r.clock.Now())
		}, nil)
		if ok {
			demoted = append(demoted, id)
		}
	}
	if len(demoted) > 0 {
		r.logger.Info("sweep demoted sessions", zap.Strings("sessions", demoted))
	}
	return demoted
}

func (r *Registry) Get(id string) (models.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return models.Session{}, false
	}
	return e.session, true
}

// State returns where id currently sits in the presence machine.
func (r *Registry) State(id string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return Unregistered
	}
	return stateOf(e.session.Status)
}

// Snapshot returns every registered session once, ordered by name then id.
func (r *Registry) Snapshot() []models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) isStale(e *entry, now time.Time) bool {
	return e.session.Status == models.StatusOnline && now.Sub(e.session.LastSeen) > r.opts.AwayAfter
}

// apply runs trigger t against id. guard may veto the transition after the
// lock is taken; mutate edits the record before effects are applied.
// It reports whether a transition happened.
func (r *Registry) apply(id string, t Trigger, guard func(*entry) bool, mutate func(*entry)) bool {
	r.mu.Lock()

	e, exists := r.sessions[id]
	from := Unregistered
	if exists {
		from = stateOf(e.session.Status)
	}

	tr, ok := Next(from, t)
	if !ok || (exists && guard != nil && !guard(e)) {
		r.mu.Unlock()
		r.logger.Debug("presence trigger ignored",
			zap.String("session", id),
			zap.String("state", string(from)),
			zap.String("trigger", string(t)),
		)
		return false
	}

	if !exists {
		e = &entry{session: models.Session{ID: id}}
		r.sessions[id] = e
	}
	if mutate != nil {
		mutate(e)
	}

	now := r.clock.Now()
	if tr.Effects.Has(EffectTouch) {
		e.session.LastSeen = now
	}
	if tr.Effects.Has(EffectCancelPurge) {
		r.cancelPurgeLocked(e)
	}
	if tr.Effects.Has(EffectSchedulePurge) {
		r.schedulePurgeLocked(id, e)
	}
	if tr.Effects.Has(EffectDelete) {
		r.cancelPurgeLocked(e)
		delete(r.sessions, id)
	} else {
		e.session.Status = tr.To.status()
	}

	var snapshot []models.Session
	notify := r.notify
	if tr.Effects.Has(EffectBroadcast) {
		snapshot = r.snapshotLocked()
	}
	r.mu.Unlock()

	r.logger.Debug("presence transition",
		zap.String("session", id),
		zap.String("from", string(from)),
		zap.String("to", string(tr.To)),
		zap.String("trigger", string(t)),
		zap.Stringer("effects", tr.Effects),
	)

	if snapshot != nil && notify != nil {
		notify(snapshot)
	}
	return true
}

func (r *Registry) schedulePurgeLocked(id string, e *entry) {
	r.cancelPurgeLocked(e)
	e.purgeGen++
	gen := e.purgeGen
	e.purge = r.clock.AfterFunc(r.opts.GracePeriod, func() {
		removed := r.apply(id, GraceExpired, func(cur *entry) bool {
			return cur.purgeGen == gen
		}, nil)
		if removed {
			r.logger.Info("session purged", zap.String("session", id))
		}
	})
}

func (r *Registry) cancelPurgeLocked(e *entry) {
	if e.purge != nil {
		e.purge.Stop()
		e.purge = nil
	}
}

func (r *Registry) snapshotLocked() []models.Session {
	out := make([]models.Session, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, e.session)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// DefaultName is the placeholder used when a client logs in without a name.
func DefaultName(id string) string {
	prefix := id
	if len(prefix) > 5 {
		prefix = prefix[:5]
	}
	return "User_" + prefix
}

func avatarColor(id string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return avatarColors[h.Sum32()%uint32(len(avatarColors))]
}
