package botlib

import (
	"fmt"
	"time"
)

// EventKind classifies an Event.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventError
	EventBuddyList
	EventBuddyStatus
	EventMessage
	EventBuzz
	EventTyping
	EventNotice
	EventMail
	EventFileOffer
	EventIcon
	EventRoom
)

var eventNames = map[EventKind]string{
	EventConnected:    "connected",
	EventDisconnected: "disconnected",
	EventError:        "error",
	EventBuddyList:    "buddy-list",
	EventBuddyStatus:  "buddy-status",
	EventMessage:      "message",
	EventBuzz:         "buzz",
	EventTyping:       "typing",
	EventNotice:       "notice",
	EventMail:         "mail",
	EventFileOffer:    "file-offer",
	EventIcon:         "icon",
	EventRoom:         "room",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is something the host saw happen. Events feed monitors such as
// the TUI; handlers registered with On* are the way to react to them.
type Event struct {
	Kind EventKind
	Who  string
	Room string
	Text string
	Time time.Time
}

func (e Event) String() string {
	s := e.Kind.String()
	if e.Room != "" {
		s += " [" + e.Room + "]"
	}
	if e.Who != "" {
		s += " " + e.Who
	}
	if e.Text != "" {
		s += ": " + e.Text
	}
	return s
}

// emit hands e to the events channel. Events are dropped when nobody
// keeps up.
func (b *Bot) emit(e Event) {
	if e.Time.IsZero() {
		e.Time = b.now()
	}
	select {
	case b.events <- e:
	default:
	}
}

// Events returns the channel of host events.
func (b *Bot) Events() <-chan Event {
	return b.events
}
