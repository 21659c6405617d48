package client

import (
	"fmt"
	"io"
	"log"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/aeolun/ymsg/pkg/auth"
	"github.com/aeolun/ymsg/pkg/protocol"
)

// Client version reported in the new auth response
const ClientVersion = "6,0,0,1710"

// Options configures a Session
type Options struct {
	Username string
	Password string

	// Charset is the local charset for text not flagged as UTF-8
	Charset string
	// Locale is used for the chat room login
	Locale string

	Japan         bool
	WebMessenger  bool
	CheckMail     bool
	IgnoreInvites bool

	InitialStatus  protocol.Status
	InitialMessage string

	// Known picture from a previous session
	PictureURL      string
	PictureChecksum int32
	// PictureExpires is when the server drops PictureURL, unix seconds
	PictureExpires int64

	// KeyFixup is handed to the new auth scheme. Without one, challenges
	// that need it are answered anyway and reported through ErrorNotice.
	KeyFixup auth.KeyFixup

	Logger  *log.Logger
	Metrics *Metrics

	// Now defaults to time.Now
	Now func() time.Time
}

// importBuffers accumulate legacy list fragments until the packet that
// completes them arrives with status 0.
type importBuffers struct {
	buddies  strings.Builder
	ignore   strings.Builder
	presence strings.Builder
}

func (b *importBuffers) reset() {
	b.buddies.Reset()
	b.ignore.Reset()
	b.presence.Reset()
}

// Session is the protocol state of one logged in account.
// It is not safe for concurrent use; the runner serialises Feed and all
// outbound calls.
type Session struct {
	opts  Options
	host  Host
	out   PacketWriter
	rx    protocol.Reassembler
	codec textCodec
	now   func() time.Time

	metrics *Metrics
	logger  *log.Logger

	status      protocol.Status
	baseStatus  protocol.Status
	message     string
	customAway  bool
	idle        bool
	loggedIn    bool
	displayName string
	sessionID   uint32
	web         bool
	closed      bool

	cookieY string
	cookieT string

	friends       friendTable
	imports       importBuffers
	gotServerList bool

	imvironments map[string]string
	whiteboards  map[string]*Whiteboard
	conferences  map[string]*Conference
	chat         chatState

	pictureURL      string
	pictureChecksum int32
	pendingUpload   []byte
}

// NewSession creates a session that reports to host and writes packets
// to out.
func NewSession(opts Options, host Host, out PacketWriter) *Session {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if opts.Locale == "" {
		opts.Locale = "us"
	}

	s := &Session{
		opts:            opts,
		host:            host,
		out:             out,
		codec:           newTextCodec(opts.Charset, opts.Japan),
		now:             now,
		metrics:         opts.Metrics,
		logger:          opts.Logger,
		displayName:     opts.Username,
		web:             opts.WebMessenger,
		friends:         make(friendTable),
		imvironments:    make(map[string]string),
		whiteboards:     make(map[string]*Whiteboard),
		conferences:     make(map[string]*Conference),
		pictureURL:      opts.PictureURL,
		pictureChecksum: opts.PictureChecksum,
	}

	s.status = opts.InitialStatus
	if s.status == protocol.StatusAvailable && opts.InitialMessage != "" {
		s.status = protocol.StatusCustom
		s.message = opts.InitialMessage
	} else if s.status == protocol.StatusCustom {
		s.customAway = true
		s.message = opts.InitialMessage
	}
	s.baseStatus = s.status

	s.rx.Logger = opts.Logger
	s.rx.OnResync = func(int) {
		s.metrics.RecordResync()
	}

	return s
}

// logf logs a message if a logger is set
func (s *Session) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// Feed hands received bytes to the session. Complete packets are
// dispatched before Feed returns.
func (s *Session) Feed(data []byte) {
	if s.closed {
		return
	}
	s.rx.Feed(data, s.Dispatch)
}

// ReadLoop feeds everything read from r until it fails. A read failure is
// reported to the host as a network error and returned.
func (s *Session) ReadLoop(r io.Reader) error {
	err := s.rx.ReadLoop(r, s.Dispatch)
	s.fail(ReasonNetwork, false, err.Error(), err)
	return err
}

// Version is the protocol version written into outgoing headers.
func (s *Session) Version() uint16 {
	switch {
	case s.web:
		return protocol.VersionWebMessenger
	case s.opts.Japan:
		return protocol.VersionJapan
	default:
		return protocol.VersionNormal
	}
}

// send queues p on the packet writer.
func (s *Session) send(p *protocol.Packet) error {
	if s.closed {
		return ErrSessionClosed
	}
	if n := p.Length(); n > protocol.MaxPayloadLen {
		s.logf("Not sending %s: payload of %d bytes", p.Service, n)
		return fmt.Errorf("send %s: %w", p.Service, protocol.ErrPayloadTooLarge)
	}
	if err := s.out.WritePacket(p, s.Version()); err != nil {
		s.logf("Failed to send %s: %v", p.Service, err)
		return fmt.Errorf("send %s: %w", p.Service, err)
	}
	s.metrics.RecordPacketSent(p.Service.String())
	return nil
}

// fail reports a session error to the host.
func (s *Session) fail(reason Reason, terminal bool, msg string, err error) {
	s.metrics.RecordSessionError(reason.String())
	s.host.ConnectionError(&SessionError{Reason: reason, Terminal: terminal, Message: msg, Err: err})
}

// normalizedName is our own handle, normalized
func (s *Session) normalizedName() string {
	return Normalize(s.opts.Username)
}

// encode and decode text for the wire
func (s *Session) encode(text string) string {
	return s.codec.Encode(text, false)
}

func (s *Session) decode(text string, utf8 bool) string {
	return s.codec.Decode(text, utf8)
}

// EncodeText converts text to what the session would put on the wire.
// utf8OK is whether the receiving side accepts UTF-8.
func (s *Session) EncodeText(text string, utf8OK bool) string {
	return s.codec.Encode(text, utf8OK)
}

// DecodeText converts wire text to UTF-8. utf8 is the sender's flag.
func (s *Session) DecodeText(text string, utf8 bool) string {
	return s.codec.Decode(text, utf8)
}

// LoggedIn reports whether the first logon packet has been seen.
func (s *Session) LoggedIn() bool { return s.loggedIn }

// DisplayName is the name the server told us we are.
func (s *Session) DisplayName() string { return s.displayName }

// Status is our current status.
func (s *Session) Status() protocol.Status { return s.status }

// SessionID is the id the server assigned in the buddy list packet.
func (s *Session) SessionID() uint32 { return s.sessionID }

// WebMessenger reports whether the session fell back to web messenger auth.
func (s *Session) WebMessenger() bool { return s.web }

// Friend returns the cached state for name.
func (s *Session) Friend(name string) (*Friend, bool) {
	f := s.friends.find(name)
	return f, f != nil
}

// Friends returns the normalized handles of every cached friend, sorted.
func (s *Session) Friends() []string {
	return s.sortedFriends()
}

func (s *Session) sortedFriends() []string {
	return slices.Sorted(maps.Keys(s.friends))
}

// Imvironment returns the IMVironment last announced by who.
func (s *Session) Imvironment(who string) string {
	return s.imvironments[who]
}

// Cookies formats the Y and T cookies as a Cookie header value.
func (s *Session) Cookies() string {
	var parts []string
	if s.cookieY != "" {
		parts = append(parts, "Y="+s.cookieY)
	}
	if s.cookieT != "" {
		parts = append(parts, "T="+s.cookieT)
	}
	return strings.Join(parts, "; ")
}

// Close leaves every conference and chat room and drops all session state.
func (s *Session) Close() {
	if s.closed {
		return
	}

	for room, conf := range s.conferences {
		s.sendConfLogoff(room, conf.Members)
	}
	s.chat.online = false
	if s.chat.in {
		s.leaveChat(s.chat.room, true)
	}

	s.closed = true
	s.loggedIn = false
	s.friends = make(friendTable)
	s.imvironments = make(map[string]string)
	s.whiteboards = make(map[string]*Whiteboard)
	s.conferences = make(map[string]*Conference)
	s.chat = chatState{}
	s.cookieY, s.cookieT = "", ""
	s.imports.reset()
	s.rx.Reset()
	s.pictureURL = ""
	s.pendingUpload = nil
	s.metrics.RecordFriends(0)
}
