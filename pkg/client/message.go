package client

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aeolun/ymsg/pkg/protocol"
)

// MaxMessageLen is the largest encoded MESSAGE packet, header included.
const MaxMessageLen = 2000

// buzzText is sent as the message body of a buzz
const buzzText = "<ding>"

// Mail and audible locations
const (
	MailURL    = "http://mail.yahoo.com/"
	MailURLJP  = "http://mail.yahoo.co.jp/"
	AudibleURL = "http://us.dl1.yimg.com/download.yahoo.com/dl/aud"
)

// MESSAGE status values
const (
	messageOffline = 5
	messageFailed  = 2
)

// handleNotify covers typing notifications and game presence.
func (s *Session) handleNotify(p *protocol.Packet) {
	var from, msg, state, game string
	haveFrom, haveMsg := false, false
	for _, pair := range p.Pairs {
		switch pair.Key {
		case protocol.KeyMsgFrom:
			from, haveFrom = pair.Value, true
		case protocol.KeyMsgNotify:
			msg, haveMsg = pair.Value, true
		case protocol.KeyMsgState:
			state = pair.Value
		case protocol.KeyMsgText:
			game = pair.Value
		}
	}
	if !haveFrom || !haveMsg {
		return
	}

	switch {
	case hasPrefixFold(msg, "TYPING"):
		if !s.host.PrivacyCheck(from) {
			return
		}
		s.host.Typing(from, strings.HasPrefix(state, "1"))

	case hasPrefixFold(msg, "GAME"):
		onList := s.host.HasBuddy(from)
		if !onList {
			s.logf("%s is playing a game, and doesn't want you to know", from)
		}
		f := s.friends.find(from)
		if f == nil {
			return
		}
		f.Game = ""
		if strings.HasPrefix(state, "1") {
			f.Game = game
			if onList {
				s.updateStatus(from, f)
			}
		}
	}
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// incomingIM is one message of a possibly multi-message packet
type incomingIM struct {
	from      string
	when      time.Time
	utf8      bool
	buddyIcon int
	msg       string
	hasMsg    bool
}

// handleMessage delivers instant messages. One packet may carry several,
// each starting at key 4. A privacy failure drops the rest of the packet.
func (s *Session) handleMessage(p *protocol.Packet) {
	var (
		ims []*incomingIM
		im  *incomingIM
		imv string
	)
	haveIMV := false

	switch {
	case p.Status <= 1 || p.Status == messageOffline:
		for _, pair := range p.Pairs {
			switch pair.Key {
			case protocol.KeyMsgFrom:
				im = &incomingIM{from: pair.Value, when: s.now()}
				ims = append(ims, im)
			case protocol.KeyMsgUTF8:
				if im != nil {
					im.utf8 = protocol.Atoi(pair.Value) != 0
				}
			case protocol.KeyMsgTime:
				if im != nil {
					im.when = time.Unix(int64(protocol.Atoi(pair.Value)), 0)
				}
			case protocol.KeyMsgIcon:
				if im != nil {
					im.buddyIcon = protocol.Atoi(pair.Value)
				}
			case protocol.KeyMsgText:
				if im != nil {
					im.msg, im.hasMsg = pair.Value, true
				}
			case protocol.KeyMsgIMV:
				imv, haveIMV = pair.Value, true
			}
		}
	case p.Status == messageFailed:
		s.host.ErrorNotice("Your Yahoo! message did not get sent.", "")
	}

	// the IMVironment applies to the packet, keyed on its last sender
	if im != nil && haveIMV && im.from != "" {
		s.imvironments[im.from] = imv
		if imv == imvDoodle {
			if !s.host.PrivacyCheck(im.from) {
				s.logf("Doodle request from %s dropped", im.from)
				return
			}
			if _, ok := s.whiteboards[im.from]; !ok {
				s.newWhiteboard(im.from, WhiteboardRequested)
				s.sendDoodle(im.from, "Request")
				s.sendDoodle(im.from, "Ready")
			}
		}
	}

	for _, im := range ims {
		if im.from == "" || !im.hasMsg {
			continue
		}
		if !s.host.PrivacyCheck(im.from) {
			s.logf("Message from %s dropped", im.from)
			return
		}

		m := s.decode(im.msg, im.utf8)
		m = strings.ReplaceAll(m, "\r\n", "\n")
		m = strings.ReplaceAll(m, "\r", "\n")

		if m == buzzText {
			s.host.Buzz(im.from, im.when)
			continue
		}

		s.host.GotIM(im.from, CodesToHTML(m), im.when)

		if f := s.friends.find(im.from); f != nil && im.buddyIcon == pictureIcon && f.NeedsIconRequest {
			s.sendPictureRequest(im.from)
			f.NeedsIconRequest = false
		}
	}
}

// handleSysMessage shows a server broadcast.
func (s *Session) handleSysMessage(p *protocol.Packet) {
	me, _ := p.Get(protocol.KeyMsgTo)
	msg, ok := p.Get(protocol.KeyMsgText)
	if !ok || !utf8.ValidString(msg) {
		return
	}
	if me == "" {
		me = s.displayName
	}
	s.host.Notice(fmt.Sprintf("Yahoo! system message for %s:", me), msg)
}

// handleMail reports new mail when mail checking is enabled.
func (s *Session) handleMail(p *protocol.Packet) {
	if !s.opts.CheckMail {
		return
	}

	var who, email, subject string
	haveWho, haveSubject := false, false
	count := 0
	for _, pair := range p.Pairs {
		switch pair.Key {
		case protocol.KeyMailCount:
			count = protocol.Atoi(pair.Value)
		case protocol.KeyMailFromName:
			who, haveWho = pair.Value, true
		case protocol.KeyMailFromAddr:
			email = pair.Value
		case protocol.KeyMailSubject:
			subject, haveSubject = pair.Value, true
		}
	}

	url := MailURL
	if s.opts.Japan {
		url = MailURLJP
	}

	switch {
	case haveWho && haveSubject && email != "":
		from := fmt.Sprintf("%s (%s)", yahooDecode(who), email)
		s.host.Email(yahooDecode(subject), from, s.opts.Username, url)
	case count > 0:
		s.host.EmailCount(count, s.opts.Username, url)
	}
}

// handleAudible delivers an audible as an IM pointing at its animation.
func (s *Session) handleAudible(p *protocol.Packet) {
	var who, msg, id string
	haveMsg := false
	for _, pair := range p.Pairs {
		switch pair.Key {
		case protocol.KeyMsgFrom:
			who = pair.Value
		case protocol.KeyMsgAudibleID:
			id = pair.Value
		case protocol.KeyMsgAudible:
			msg, haveMsg = pair.Value, true
		}
	}

	if !haveMsg {
		msg = id
	}
	if who == "" || msg == "" {
		return
	}
	if !utf8.ValidString(msg) {
		s.logf("Warning, non-UTF-8 audible, ignoring")
		return
	}
	if !s.host.PrivacyCheck(who) {
		s.logf("Audible message from %s dropped", who)
		return
	}

	if id != "" {
		s.host.GotIM(who, audibleText(id, msg), s.now())
		return
	}
	s.host.GotIM(who, msg, s.now())
}

// audibleText formats an audible. Ids look like base.tw.smiley.smiley43;
// the second segment is the locale. Ids without one fall back to the
// bare text.
func audibleText(id, msg string) string {
	parts := strings.Split(id, ".")
	if len(parts) < 2 || parts[1] == "" {
		return msg
	}
	return fmt.Sprintf("[ Audible %s/%s/%s.swf ] %s", AudibleURL, parts[1], id, msg)
}

// SendIM sends an instant message. msg is HTML and is converted to the
// client's markup before sending.
func (s *Session) SendIM(who, msg string) error {
	if who == "" {
		return ErrEmptyName
	}

	text := s.codec.Encode(HTMLToCodes(msg), true)

	pkt := protocol.NewPacket(protocol.ServiceMessage, protocol.StatusOffline, 0).
		Add(protocol.KeyMsgMe, s.displayName).
		Add(protocol.KeyMsgTo, who)
	if f := s.friends.find(who); f != nil && f.Protocol != 0 {
		pkt.AddInt(protocol.KeyMsgProtocol, f.Protocol)
	}
	pkt.Add(protocol.KeyMsgUTF8, "1").
		Add(protocol.KeyMsgText, text)

	// keep the peer's IMVironment so we don't reset it
	switch imv, ok := s.imvironments[who]; {
	case s.whiteboards[who] != nil:
		pkt.Add(protocol.KeyMsgIMV, imvDoodle)
	case ok:
		pkt.Add(protocol.KeyMsgIMV, imv)
	default:
		pkt.Add(protocol.KeyMsgIMV, imvShutdown)
	}

	pkt.Add(protocol.KeyMsgIMVFlag, "0").
		Add(protocol.KeyMsgTrailer, "1")
	if s.pictureURL == "" {
		pkt.AddInt(protocol.KeyMsgIcon, pictureNone)
	} else {
		pkt.AddInt(protocol.KeyMsgIcon, pictureIcon)
	}

	if protocol.HeaderLen+pkt.Length() > MaxMessageLen {
		return ErrMessageTooLong
	}
	return s.send(pkt)
}

// SendBuzz buzzes who.
func (s *Session) SendBuzz(who string) error {
	s.logf("Sending %s on account %s to buddy %s", buzzText, s.opts.Username, who)
	return s.SendIM(who, buzzText)
}

// SendTyping tells who whether we are typing.
func (s *Session) SendTyping(who string, typing bool) error {
	state := "0"
	if typing {
		state = "1"
	}
	return s.send(protocol.NewPacket(protocol.ServiceNotify, protocol.StatusTyping, 0).
		Add(protocol.KeyMsgNotify, "TYPING").
		Add(protocol.KeyMsgMe, s.displayName).
		Add(protocol.KeyMsgText, " ").
		Add(protocol.KeyMsgState, state).
		Add(protocol.KeyMsgTo, who).
		Add(protocol.KeyMsgTrailer, "1"))
}
