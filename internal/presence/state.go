package presence

import (
	"strings"

	"chat-relay/internal/models"
)

// State is a session's position in the presence lifecycle.
type State string

const (
	Unregistered State = "unregistered"
	Online       State = "online"
	Away         State = "away"
	Offline      State = "offline"
	Removed      State = "removed"
)

// Trigger is an event that can move a session between states.
type Trigger string

const (
	Login        Trigger = "login"
	Activity     Trigger = "activity"
	Stale        Trigger = "stale"
	Disconnect   Trigger = "disconnect"
	GraceExpired Trigger = "grace_expired"
)

// Effect is a set of side effects attached to a transition.
type Effect uint8

const (
	EffectTouch Effect = 1 << iota
	EffectBroadcast
	EffectSchedulePurge
	EffectCancelPurge
	EffectDelete
)

func (e Effect) Has(f Effect) bool { return e&f == f }

func (e Effect) String() string {
	names := []struct {
		f    Effect
		name string
	}{
		{EffectTouch, "touch"},
		{EffectBroadcast, "broadcast"},
		{EffectSchedulePurge, "schedule_purge"},
		{EffectCancelPurge, "cancel_purge"},
		{EffectDelete, "delete"},
	}
	var parts []string
	for _, n := range names {
		if e.Has(n.f) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Transition is the outcome of applying a trigger in some state.
type Transition struct {
	To      State
	Effects Effect
}

// transitions is the complete presence machine. Pairs that are absent are no-ops.
var transitions = map[State]map[Trigger]Transition{
	Unregistered: {
		Login: {Online, EffectTouch | EffectBroadcast},
	},
	Online: {
		Login:      {Online, EffectTouch | EffectBroadcast},
		Activity:   {Online, EffectTouch},
		Stale:      {Away, EffectBroadcast},
		Disconnect: {Offline, EffectTouch | EffectSchedulePurge | EffectBroadcast},
	},
	Away: {
		Login:      {Online, EffectTouch | EffectBroadcast},
		Activity:   {Online, EffectTouch | EffectBroadcast},
		Disconnect: {Offline, EffectTouch | EffectSchedulePurge | EffectBroadcast},
	},
	Offline: {
		Login:        {Online, EffectTouch | EffectCancelPurge | EffectBroadcast},
		GraceExpired: {Removed, EffectDelete | EffectBroadcast},
	},
}

// Next looks up the transition for trigger t in state from.
func Next(from State, t Trigger) (Transition, bool) {
	tr, ok := transitions[from][t]
	return tr, ok
}

func stateOf(s models.Status) State {
	switch s {
	case models.StatusOnline:
		return Online
	case models.StatusAway:
		return Away
	case models.StatusOffline:
		return Offline
	}
	return Unregistered
}

func (s State) status() models.Status {
	switch s {
	case Away:
		return models.StatusAway
	case Offline:
		return models.StatusOffline
	}
	return models.StatusOnline
}
