package client

import (
	"strings"

	"github.com/aeolun/ymsg/pkg/protocol"
	"golang.org/x/text/unicode/norm"
)

// Presence is our per-buddy visibility override.
type Presence int

const (
	PresenceDefault Presence = iota
	PresenceOnline
	PresencePermOffline
)

func (p Presence) String() string {
	switch p {
	case PresenceOnline:
		return "online"
	case PresencePermOffline:
		return "perm-offline"
	default:
		return "default"
	}
}

// Friend is the session's cached view of one buddy.
type Friend struct {
	Status   protocol.Status
	Away     int   // 0, 1 away, 2 idle
	Idle     int64 // unix seconds, -1 means idle but undisclosed
	Message  string
	Game     string
	Presence Presence
	SMS      int
	Protocol int
	IP       string

	// NeedsIconRequest is set when the buddy dropped their icon, so the
	// next message carrying an icon flag triggers a picture request.
	NeedsIconRequest bool
}

// IsAway reports whether the friend should be shown as away.
func (f *Friend) IsAway() bool {
	return f.Away != 0
}

// State maps the friend onto the host's three presence states.
func (f *Friend) State() string {
	switch {
	case f.Status == protocol.StatusOffline:
		return StateOffline
	case f.Status == protocol.StatusAvailable:
		return StateAvailable
	case f.Status == protocol.StatusCustom || f.Status == protocol.StatusIdle:
		if f.IsAway() {
			return StateAway
		}
		return StateAvailable
	default:
		return StateAway
	}
}

// Normalize folds a handle the way the server compares them.
func Normalize(name string) string {
	return strings.ToLower(norm.NFD.String(name))
}

// friendTable maps normalized handles to friends.
type friendTable map[string]*Friend

func (t friendTable) find(name string) *Friend {
	return t[Normalize(name)]
}

func (t friendTable) findOrNew(name string) *Friend {
	key := Normalize(name)
	f, ok := t[key]
	if !ok {
		f = &Friend{Status: protocol.StatusOffline}
		t[key] = f
	}
	return f
}

func (t friendTable) remove(name string) {
	delete(t, Normalize(name))
}
