package client

import (
	"time"

	"github.com/aeolun/ymsg/pkg/protocol"
)

// Privacy is the account wide permit/deny mode owned by the host.
type Privacy int

const (
	PrivacyAllowAll Privacy = iota + 1
	PrivacyDenyAll
	PrivacyAllowUsers
	PrivacyDenyUsers
	PrivacyAllowBuddylist
)

// Presence states reported to the host
const (
	StateAvailable = "available"
	StateAway      = "away"
	StateOffline   = "offline"
)

// BuddyState is what the host receives when a buddy's presence changes.
type BuddyState struct {
	State   string // StateAvailable, StateAway or StateOffline
	Status  protocol.Status
	Message string // only set for custom statuses
	Idle    int64  // unix seconds idle since, -1 when idle time is hidden
	Game    string
}

// Directory is the host side buddy list and privacy list.
type Directory interface {
	HasBuddy(name string) bool
	BuddyGroups(name string) []string
	AddBuddy(name, group string)
	RemoveBuddy(name, group string)

	DenyList() []string
	AddDeny(name string)
	RemoveDeny(name string)
	PermitDeny() Privacy
	SetPermitDeny(p Privacy)

	// PrivacyCheck reports whether who may talk to us.
	PrivacyCheck(who string) bool
}

// Notifier receives account level events.
type Notifier interface {
	SetDisplayName(name string)
	Connected()
	ConnectionError(err *SessionError)
	BuddyStatus(name string, state BuddyState)

	Notice(title, text string)
	ErrorNotice(title, text string)

	Email(subject, from, to, url string)
	EmailCount(count int, to, url string)

	// RequestAuthorization asks whether who may keep us on their list.
	// deny may be called with an empty reason.
	RequestAuthorization(who, msg string, accept func(), deny func(reason string))
	Confirm(title, text string, yes, no func())
}

// Conversations receives everything that ends up in a conversation window.
type Conversations interface {
	GotIM(from, msg string, when time.Time)
	Typing(from string, typing bool)
	Buzz(from string, when time.Time)
	FileOffer(from, filename string, size int64, url string)

	ConferenceInvite(room, from, msg string, members []string)
	ConferenceUserJoined(room, who string)
	ConferenceUserLeft(room, who string)
	ConferenceMessage(room, from, msg string, when time.Time)
	ConferenceNotice(room, text string)

	ChatInvite(room, from, msg string)
	ChatJoined(room, topic string, members []string)
	ChatUsersJoined(room string, members []string)
	ChatUserLeft(room, who string)
	ChatTopic(room, topic string)
	ChatMessage(room, from, msg string, when time.Time)
	ChatLeft(room string)

	WhiteboardStarted(who string)
	WhiteboardCleared(who string)
	WhiteboardDraw(who string, stroke Stroke)
	WhiteboardClosed(who string)
}

// Icons is the host's buddy icon cache. Downloads and uploads happen
// outside the session.
type Icons interface {
	FetchIcon(who, url string, checksum int32)
	ClearIcon(who string)
	IconChecksum(who string) (int32, bool)
	ForgetIcon(who string)

	UploadIcon(data []byte)
	StorePicture(url string, checksum int32)
}

// Host is everything the session calls out to.
type Host interface {
	Directory
	Notifier
	Conversations
	Icons
}

// PacketWriter queues an outbound packet. Implementations must not block.
type PacketWriter interface {
	WritePacket(p *protocol.Packet, version uint16) error
}

// PacketWriterFunc adapts a function to PacketWriter
type PacketWriterFunc func(p *protocol.Packet, version uint16) error

func (f PacketWriterFunc) WritePacket(p *protocol.Packet, version uint16) error {
	return f(p, version)
}
