// Package botlib provides a simple library for building YMSG bots.
package botlib

import (
	"strings"
	"time"

	"github.com/aeolun/ymsg/pkg/client"
)

// Kind says where a message was received.
type Kind int

const (
	KindIM Kind = iota
	KindConference
	KindChat
)

func (k Kind) String() string {
	switch k {
	case KindConference:
		return "conference"
	case KindChat:
		return "chat"
	default:
		return "im"
	}
}

// Message represents a message received by the bot.
type Message struct {
	Kind Kind
	From string
	// Room is the conference or chat room, empty for instant messages
	Room string
	// Text has the markup stripped; HTML is what the session delivered
	Text string
	HTML string
	Time time.Time

	// Internal: the bot's handle for mention detection
	botName string
}

// IsDirect returns true for instant messages.
func (m *Message) IsDirect() bool {
	return m.Kind == KindIM
}

// MentionsMe returns true if the message is direct or names the bot.
// Checks for @name and "name:" patterns (case-insensitive).
func (m *Message) MentionsMe() bool {
	if m.IsDirect() {
		return true
	}
	if m.botName == "" {
		return false
	}

	content := strings.ToLower(m.Text)
	name := strings.ToLower(m.botName)

	if strings.Contains(content, "@"+name) {
		return true
	}
	return strings.HasPrefix(content, name+":") ||
		strings.HasPrefix(content, name+",") ||
		strings.HasPrefix(content, name+" ")
}

// MentionedContent returns the text with the bot mention removed.
func (m *Message) MentionedContent() string {
	if m.botName == "" {
		return m.Text
	}

	content := m.Text
	name := m.botName

	lower := strings.ToLower(content)
	if i := strings.Index(lower, "@"+strings.ToLower(name)); i >= 0 {
		content = content[:i] + content[i+len(name)+1:]
		lower = strings.ToLower(content)
	}

	lowerName := strings.ToLower(name)
	for _, sep := range []string{":", ",", " "} {
		if strings.HasPrefix(lower, lowerName+sep) {
			content = content[len(name)+1:]
			break
		}
	}

	return strings.TrimSpace(content)
}

// Buddy is one entry of the bot's buddy list.
type Buddy struct {
	Name   string
	Groups []string
	State  string
	Status string
	Idle   int64
}

// IsOnline returns true unless the buddy is offline or unknown.
func (b Buddy) IsOnline() bool {
	return b.State != "" && b.State != client.StateOffline
}
